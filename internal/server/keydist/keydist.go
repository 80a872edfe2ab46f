// Package keydist decides how a share link is addressed and how the file
// key reaches the recipient: short id allocation, custom aliases and the
// share URL with its optional key-bearing fragment.
package keydist

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/dmitrijs2005/gophshare/internal/common"
	"github.com/dmitrijs2005/gophshare/internal/server/models"
)

const (
	DefaultShortIDLength = 8
	DefaultMaxAttempts   = 10

	// PasswordFragment marks password-derived links. It is a hint for the
	// client to prompt, not the password.
	PasswordFragment = "password"

	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

var aliasPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,64}$`)

// ShortIDChecker is the read side of the short id uniqueness check.
type ShortIDChecker interface {
	ShortIDExists(ctx context.Context, shortID string) (bool, error)
}

// InsertFunc persists the share under shortID. It must return an error
// matching common.ErrorAlreadyExists when the id is already taken.
type InsertFunc func(ctx context.Context, shortID string) error

// Scheme builds share identifiers and links for one public base URL.
type Scheme struct {
	BaseURL       string
	ShortIDLength int
	MaxAttempts   int

	random io.Reader
}

func New(baseURL string) *Scheme {
	return &Scheme{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		ShortIDLength: DefaultShortIDLength,
		MaxAttempts:   DefaultMaxAttempts,
		random:        rand.Reader,
	}
}

func (s *Scheme) randomID() (string, error) {
	out := make([]byte, 0, s.ShortIDLength)
	buf := make([]byte, s.ShortIDLength*2)
	// rejection sampling: bytes at or above limit are skipped
	const limit = 256 - 256%len(alphabet)
	for len(out) < s.ShortIDLength {
		if _, err := io.ReadFull(s.random, buf); err != nil {
			return "", fmt.Errorf("short id: random source: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == s.ShortIDLength {
				break
			}
		}
	}
	return string(out), nil
}

// NewShortID returns a random id that checker reports as unused. It gives up
// after MaxAttempts with common.ErrShortIDExhausted. The result is only a
// candidate: the insert remains the authority, see Claim.
func (s *Scheme) NewShortID(ctx context.Context, checker ShortIDChecker) (string, error) {
	for attempt := 0; attempt < s.MaxAttempts; attempt++ {
		id, exists, err := s.candidate(ctx, checker)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", common.ErrShortIDExhausted, s.MaxAttempts)
}

func (s *Scheme) candidate(ctx context.Context, checker ShortIDChecker) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	id, err := s.randomID()
	if err != nil {
		return "", false, err
	}
	exists, err := checker.ShortIDExists(ctx, id)
	if err != nil {
		return "", false, fmt.Errorf("short id lookup: %w", err)
	}
	return id, exists, nil
}

// ValidateAlias checks a custom alias: 3 to 64 characters of [A-Za-z0-9_-].
func ValidateAlias(alias string) error {
	if !aliasPattern.MatchString(alias) {
		return fmt.Errorf("%w: alias must be 3-64 characters of letters, digits, '_' or '-'", common.ErrValidation)
	}
	return nil
}

// Claim allocates a short id and persists it through insert.
//
// With an alias, the alias is validated and inserted once; a conflict is
// reported as common.ErrAliasTaken without retrying. Without one, random
// ids are generated and pre-checked, and an insert conflict counts as a
// collision like a positive pre-check. Both share the MaxAttempts budget.
func (s *Scheme) Claim(ctx context.Context, alias string, checker ShortIDChecker, insert InsertFunc) (string, error) {
	if alias != "" {
		if err := ValidateAlias(alias); err != nil {
			return "", err
		}
		if err := insert(ctx, alias); err != nil {
			if errors.Is(err, common.ErrorAlreadyExists) {
				return "", fmt.Errorf("%w: %q", common.ErrAliasTaken, alias)
			}
			return "", err
		}
		return alias, nil
	}

	for attempt := 0; attempt < s.MaxAttempts; attempt++ {
		id, exists, err := s.candidate(ctx, checker)
		if err != nil {
			return "", err
		}
		if exists {
			continue
		}
		err = insert(ctx, id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, common.ErrorAlreadyExists) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w after %d attempts", common.ErrShortIDExhausted, s.MaxAttempts)
}

// ShareURL is the fragment-free link persisted with the share.
func (s *Scheme) ShareURL(shortID string) string {
	return s.BaseURL + common.SharePathPrefix + shortID
}

// ShareLink is the link handed to the uploader. URL-fragment mode appends the
// encoded key, password mode appends PasswordFragment and embedded mode
// appends nothing.
func (s *Scheme) ShareLink(shortID string, mode models.KeyMode, encodedKey string) string {
	link := s.ShareURL(shortID)
	switch mode {
	case models.ModeURLFragment:
		if encodedKey != "" {
			link += "#" + encodedKey
		}
	case models.ModePasswordDerived:
		link += "#" + PasswordFragment
	}
	return link
}

// ParseShareLink extracts the short id and fragment from a share link. The
// fragment is returned raw; it is either an encoded key, PasswordFragment or
// empty.
func ParseShareLink(link string) (shortID, fragment string, err error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", "", fmt.Errorf("%w: share link: %w", common.ErrValidation, err)
	}
	i := strings.LastIndex(u.Path, common.SharePathPrefix)
	if i < 0 {
		return "", "", fmt.Errorf("%w: share link has no %s segment", common.ErrValidation, common.SharePathPrefix)
	}
	shortID = strings.TrimSuffix(u.Path[i+len(common.SharePathPrefix):], "/")
	if !aliasPattern.MatchString(shortID) {
		return "", "", fmt.Errorf("%w: share link has an invalid short id", common.ErrValidation)
	}
	return shortID, u.Fragment, nil
}
