// Command flintctl is a thin operational tool over the public flintdb
// package: create, inspect, dump, wal-status, and checkpoint. It has no SQL surface —
// that remains out of scope — but exercises the core's own open/read/
// traverse operations from the command line.
package main

import (
	"os"

	"github.com/flintdb/flintdb/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Stdout, os.Stderr, allCommands(), os.Args[1:]))
}
