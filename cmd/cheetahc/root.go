// Command cheetahc is the CLI wrapper around the Cheetah-to-source
// compiler core (spec §1: "CLI wrappers" are named explicitly as the
// kind of surface that sits outside the core). It is grounded on
// leapsql's internal/cli root command: a Cobra root with a persistent
// --config flag that loads a project file before any subcommand runs.
package main

import (
	"fmt"
	"os"

	"github.com/juju/errors"
	"github.com/spf13/cobra"

	"github.com/cheetahc/cheetahc/internal/cliconfig"
	"github.com/cheetahc/cheetahc/internal/compilerlog"
)

var (
	cfgFile string
	verbose bool
	cfg     *cliconfig.Config
)

// Version is set at build time the way the teacher's root.go does.
var Version = "0.1.0"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "cheetahc",
		Short:   "Compile Cheetah templates into host-language source modules",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			compilerlog.SetDebug(verbose)

			path := cfgFile
			if path == "" {
				found, err := cliconfig.Find(".")
				if err != nil {
					return errors.Annotate(err, "finding config file")
				}
				path = found
			}
			loaded, err := cliconfig.Load(path)
			if err != nil {
				return errors.Annotatef(err, "loading config file %q", path)
			}
			cfg = loaded
			if verbose && cliconfig.FileUsed() != "" {
				fmt.Fprintf(os.Stderr, "using config file: %s\n", cliconfig.FileUsed())
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: search for .cheetahc.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newCompileCmd())
	root.AddCommand(newFmtCheckCmd())

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
