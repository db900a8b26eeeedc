// Command x86shuf decodes x86 shuffle immediates into element masks, lowers
// them to LLVM IR and reports the shuffles found in Go assembly.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/xgo-dev/x86shuf/asmscan"
)

type rootCommand struct {
	cfg    config
	logger *logrus.Logger
	stdout io.Writer
	stderr io.Writer
}

func main() {
	c := newRootCommand(os.Stdout, os.Stderr)
	if err := c.command().Execute(); err != nil {
		c.logger.Error(err)
		os.Exit(1)
	}
}

func newRootCommand(stdout, stderr io.Writer) *rootCommand {
	logger := logrus.New()
	logger.SetOutput(stderr)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return &rootCommand{
		cfg:    configFromEnv(),
		logger: logger,
		stdout: stdout,
		stderr: stderr,
	}
}

func (c *rootCommand) command() *cobra.Command {
	root := &cobra.Command{
		Use:           "x86shuf",
		Short:         "Decode x86 shuffle masks",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
	}
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfg.LogLevel, "log-level", c.cfg.LogLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&c.cfg.Format, "format", c.cfg.Format, "output format (text or json)")

	root.AddCommand(
		c.decodeCommand(),
		c.irCommand(),
		c.scanCommand(),
		c.opsCommand(),
	)
	return root
}

func (c *rootCommand) setup() error {
	level, err := logrus.ParseLevel(c.cfg.LogLevel)
	if err != nil {
		return err
	}
	c.logger.SetLevel(level)
	switch c.cfg.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported output format %q", c.cfg.Format)
	}
	return nil
}

func (c *rootCommand) json() bool { return c.cfg.Format == "json" }

func (c *rootCommand) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.stdout, "%s\n", data)
	return err
}

func (c *rootCommand) opsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ops",
		Short: "List the supported instruction mnemonics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.json() {
				return c.printJSON(asmscan.Ops())
			}
			_, err := fmt.Fprintln(c.stdout, strings.Join(opNames(), "\n"))
			return err
		},
	}
}
