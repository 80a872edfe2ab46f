package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

// envSource returns a lookup that prefers the process environment and falls
// back to the values of envFile. A missing envFile is not an error.
func envSource(envFile string) (func(string) (string, bool), error) {
	fileValues := map[string]string{}
	if envFile != "" {
		m, err := godotenv.Read(envFile)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read env file %s: %w", envFile, err)
		default:
			fileValues = m
		}
	}

	return func(key string) (string, bool) {
		if v, ok := lookupEnv(key); ok {
			return v, true
		}
		v, ok := fileValues[key]
		return v, ok
	}, nil
}
