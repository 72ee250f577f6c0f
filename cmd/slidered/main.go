// Command slidered edits JSON parameter files through a page of range
// sliders. "slidered serve" runs the editor daemon; the other commands work
// on files directly.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/micro-nova/slidered/internal/config"
)

// options holds the global flags.
type options struct {
	configPath string
	debug      bool
	addr       string
	root       string
	jsonOutput bool

	out    io.Writer
	errOut io.Writer
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command with all subcommands.
func newRootCmd(out, errOut io.Writer) *cobra.Command {
	o := &options{out: out, errOut: errOut}

	rootCmd := &cobra.Command{
		Use:   "slidered",
		Short: "Edit JSON parameter files with range sliders",
		Long: `slidered opens JSON files that map parameter names to numbers and edits
them through a browser page with one range slider per parameter. Edits stay
in memory until saved.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.PersistentFlags().StringVar(&o.configPath, "config", config.DefaultPath(), "config file")
	rootCmd.PersistentFlags().BoolVar(&o.debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&o.root, "root", "", "directory relative document paths are resolved against")
	rootCmd.PersistentFlags().BoolVar(&o.jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newServeCmd(o))
	rootCmd.AddCommand(newShowCmd(o))
	rootCmd.AddCommand(newSetCmd(o))
	rootCmd.AddCommand(newVersionCmd(o))

	return rootCmd
}

// loadConfig reads the config file and applies flag overrides.
func (o *options) loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("debug") {
		cfg.Debug = o.debug
	}
	if flags.Changed("root") {
		cfg.Root = o.root
	}
	if flags.Changed("addr") {
		cfg.Addr = o.addr
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
