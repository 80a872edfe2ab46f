package main

import (
	"os"

	"github.com/dmitrijs2005/gophshare/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:]))
}
