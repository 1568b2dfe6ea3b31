// Command loadorder manages mod load orders from the command line.
package main

import (
	"os"

	"github.com/roach88/loadorder/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
