package main

import (
	"os"

	"github.com/roach88/versebase/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
