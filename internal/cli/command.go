// Package cli implements flintctl's subcommand dispatch: a small command
// table with unified flag parsing and help generation. flintctl runs one
// synchronous operation and exits, so there is no signal handling or
// long-running session state to manage here.
package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	flag "github.com/spf13/pflag"
)

// Command is one flintctl subcommand.
type Command struct {
	// Usage is "name <args> [flags]", shown after "flintctl" in help.
	Usage string

	// Short is a one-line description for the top-level help listing.
	Short string

	// Flags holds the command's own flags. May be nil.
	Flags *flag.FlagSet

	// Exec runs the command after flags are parsed.
	Exec func(out, errOut io.Writer, args []string) error
}

// Name returns the command name (first word of Usage).
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")

	return name
}

// HelpLine returns the short help line for the top-level listing.
func (c *Command) HelpLine() string {
	return fmt.Sprintf("  %-28s %s", c.Usage, c.Short)
}

// Run parses flags and executes the command, returning an exit code.
func (c *Command) Run(out, errOut io.Writer, args []string) int {
	rest := args

	if c.Flags != nil {
		c.Flags.SetOutput(&strings.Builder{})

		if err := c.Flags.Parse(args); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return 0
			}

			fmt.Fprintln(errOut, "error:", err)

			return 1
		}

		rest = c.Flags.Args()
	}

	if err := c.Exec(out, errOut, rest); err != nil {
		fmt.Fprintln(errOut, "error:", err)

		return 1
	}

	return 0
}

// Run dispatches args[0] to the matching command in commands, printing
// top-level usage when args is empty or names an unknown command.
func Run(out, errOut io.Writer, commands []*Command, args []string) int {
	index := make(map[string]*Command, len(commands))
	for _, c := range commands {
		index[c.Name()] = c
	}

	if len(args) == 0 {
		printUsage(out, commands)

		return 0
	}

	cmd, ok := index[args[0]]
	if !ok {
		fmt.Fprintln(errOut, "error: unknown command:", args[0])
		printUsage(errOut, commands)

		return 1
	}

	return cmd.Run(out, errOut, args[1:])
}

func printUsage(w io.Writer, commands []*Command) {
	fmt.Fprintln(w, "flintctl - operational tool over a flintdb table")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: flintctl <command> [args] [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")

	for _, cmd := range commands {
		fmt.Fprintln(w, cmd.HelpLine())
	}
}
