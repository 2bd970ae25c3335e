package main

import (
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/flintdb/flintdb"
	"github.com/flintdb/flintdb/internal/cli"
	"github.com/flintdb/flintdb/internal/vfs"
	"github.com/flintdb/flintdb/internal/wal"
)

func allCommands() []*cli.Command {
	return []*cli.Command{
		createCmd(),
		inspectCmd(),
		dumpCmd(),
		walStatusCmd(),
		checkpointCmd(),
	}
}

// createCmd materializes a new table data file and sidecar from a
// CREATE TABLE definition file.
func createCmd() *cli.Command {
	flags := flag.NewFlagSet("create", flag.ContinueOnError)
	def := flags.String("def", "", "path to a CREATE TABLE definition file")
	cfgPath := flags.String("config", "", "path to a flintctl JWCC config file with creation defaults")

	return &cli.Command{
		Usage: "create <table-path> --def <file>",
		Short: "create a table data file and sidecar from a CREATE TABLE file",
		Flags: flags,
		Exec: func(out, _ io.Writer, args []string) error {
			if len(args) != 1 || *def == "" {
				return fmt.Errorf("usage: flintctl create <table-path> --def <file>")
			}

			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}

			text, err := os.ReadFile(*def)
			if err != nil {
				return err
			}

			name, meta, err := flintdb.ParseSchema(string(text))
			if err != nil {
				return err
			}

			if cfg.DefaultStorage != "" && meta.Storage == flintdb.StorageMMap {
				meta.Storage = flintdb.StorageKind(cfg.DefaultStorage)
			}

			if cfg.DefaultCacheSize != 0 && meta.CacheSize == 0 {
				meta.CacheSize = cfg.DefaultCacheSize
			}

			tbl, err := flintdb.OpenTable(args[0], meta, flintdb.Options{})
			if err != nil {
				return err
			}

			defer tbl.Close()

			fmt.Fprintf(out, "created %s (table %q, %d columns)\n", args[0], name, len(meta.Columns))

			return nil
		},
	}
}

// inspectCmd prints a table's header summary: version, row count, free
// list head, and mode.
func inspectCmd() *cli.Command {
	return &cli.Command{
		Usage: "inspect <table-path>",
		Short: "print a table's header, row count, and free-list head",
		Exec: func(out, _ io.Writer, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: flintctl inspect <table-path>")
			}

			meta, err := readMeta(args[0])
			if err != nil {
				return err
			}

			tbl, err := flintdb.OpenTable(args[0], meta, flintdb.Options{ReadOnly: true})
			if err != nil {
				return err
			}

			defer tbl.Close()

			fmt.Fprintln(out, tbl.Status())

			return nil
		},
	}
}

// dumpCmd traverses the primary index and prints every row.
func dumpCmd() *cli.Command {
	return &cli.Command{
		Usage: "dump <table-path>",
		Short: "traverse the primary index and print every row",
		Exec: func(out, _ io.Writer, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: flintctl dump <table-path>")
			}

			meta, err := readMeta(args[0])
			if err != nil {
				return err
			}

			tbl, err := flintdb.OpenTable(args[0], meta, flintdb.Options{ReadOnly: true})
			if err != nil {
				return err
			}

			defer tbl.Close()

			n, err := tbl.Traverse(func(row flintdb.Row) error {
				fmt.Fprintf(out, "%d: %v\n", row.ID, row.Values)

				return nil
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "%d rows\n", n)

			return nil
		},
	}
}

// walStatusCmd reports whether a table's WAL file exists and, if so, how
// many committed records would replay on recovery.
func walStatusCmd() *cli.Command {
	return &cli.Command{
		Usage: "wal-status <table-path>",
		Short: "report whether a table's WAL has pending transactions",
		Exec: func(out, _ io.Writer, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: flintctl wal-status <table-path>")
			}

			walPath := args[0] + ".wal"
			fsys := vfs.NewReal()

			exists, err := fsys.Exists(walPath)
			if err != nil {
				return err
			}

			if !exists {
				fmt.Fprintln(out, "no wal file")

				return nil
			}

			w, err := wal.Open(walPath, true, fsys, nil)
			if err != nil {
				return err
			}

			defer w.Close()

			pending := 0

			err = w.Recover(func(wal.Op, uint64, []byte) error {
				pending++

				return nil
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "wal present, %d committed records would replay\n", pending)

			return nil
		},
	}
}

// checkpointCmd opens a table read-write, replaying any pending WAL
// records (Open already does this before the command runs), then
// truncates the WAL. A no-op on tables opened with WAL.OFF.
func checkpointCmd() *cli.Command {
	return &cli.Command{
		Usage: "checkpoint <table-path>",
		Short: "replay and truncate a table's WAL",
		Exec: func(out, _ io.Writer, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: flintctl checkpoint <table-path>")
			}

			meta, err := readMeta(args[0])
			if err != nil {
				return err
			}

			tbl, err := flintdb.OpenTable(args[0], meta, flintdb.Options{})
			if err != nil {
				return err
			}

			defer tbl.Close()

			if err := tbl.Checkpoint(); err != nil {
				return err
			}

			fmt.Fprintf(out, "checkpointed %s\n", args[0])

			return nil
		},
	}
}

// readMeta loads a table's schema from its sidecar file.
func readMeta(tablePath string) (flintdb.TableMeta, error) {
	text, err := os.ReadFile(tablePath + ".desc")
	if err != nil {
		return flintdb.TableMeta{}, err
	}

	_, meta, err := flintdb.ParseSchema(string(text))

	return meta, err
}
