package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	flag "github.com/spf13/pflag"
)

func testCommand() *Command {
	return &Command{
		Usage: "greet <name>",
		Short: "print a greeting",
		Exec: func(out, errOut io.Writer, args []string) error {
			if len(args) != 1 {
				return errors.New("greet needs exactly one name")
			}

			fmt.Fprintf(out, "hello, %s\n", args[0])

			return nil
		},
	}
}

func TestRunNoArgsPrintsUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := Run(&stdout, &stderr, []*Command{testCommand()}, nil)

	require.Equal(t, 0, code)
	require.Empty(t, stderr.String())
	require.Contains(t, stdout.String(), "flintctl - operational tool over a flintdb table")
	require.Contains(t, stdout.String(), "greet")
}

func TestRunUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := Run(&stdout, &stderr, []*Command{testCommand()}, []string{"bogus"})

	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "unknown command: bogus")
}

func TestRunDispatchesAndExecutes(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := Run(&stdout, &stderr, []*Command{testCommand()}, []string{"greet", "ada"})

	require.Equal(t, 0, code)
	require.Equal(t, "hello, ada\n", stdout.String())
	require.Empty(t, stderr.String())
}

func TestRunExecErrorSetsExitCode(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := Run(&stdout, &stderr, []*Command{testCommand()}, []string{"greet"})

	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "greet needs exactly one name")
}

func TestCommandFlagsAreParsedBeforeExec(t *testing.T) {
	fs := flag.NewFlagSet("loud", flag.ContinueOnError)
	shout := fs.Bool("shout", false, "uppercase the greeting")

	cmd := &Command{
		Usage: "loud <name>",
		Short: "greet loudly",
		Flags: fs,
		Exec: func(out, errOut io.Writer, args []string) error {
			msg := "hi " + args[0]
			if *shout {
				msg = strings.ToUpper(msg)
			}

			fmt.Fprintln(out, msg)

			return nil
		},
	}

	var stdout, stderr bytes.Buffer

	code := Run(&stdout, &stderr, []*Command{cmd}, []string{"loud", "--shout", "ada"})

	require.Equal(t, 0, code)
	require.Equal(t, "HI ADA\n", stdout.String())
}

func TestCommandHelpFlagExitsZero(t *testing.T) {
	fs := flag.NewFlagSet("loud", flag.ContinueOnError)

	cmd := &Command{
		Usage: "loud <name>",
		Short: "greet loudly",
		Flags: fs,
		Exec: func(out, errOut io.Writer, args []string) error {
			t.Fatal("Exec should not run for --help")
			return nil
		},
	}

	var stdout, stderr bytes.Buffer

	code := cmd.Run(&stdout, &stderr, []string{"--help"})

	require.Equal(t, 0, code)
}
