package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cheetahc/cheetahc"
)

// newFmtCheckCmd parses every given template without emitting generated
// source, for use as a CI gate: it exits non-zero on the first template
// that fails to compile, and prints nothing on success.
func newFmtCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fmt-check <file>...",
		Short: "Parse templates without emitting output, for CI",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cheetahc.Options{}
			if cfg != nil {
				opts = cfg.ToOptions()
			}

			failed := false
			for _, src := range args {
				data, err := os.ReadFile(src)
				if err != nil {
					fmt.Fprintf(os.Stderr, "%s: %v\n", src, err)
					failed = true
					continue
				}
				fileOpts := opts
				fileOpts.Filename = src
				if _, err := cheetahc.Compile(string(data), fileOpts); err != nil {
					fmt.Fprintf(os.Stderr, "%s: %v\n", src, err)
					failed = true
					continue
				}
			}
			if failed {
				return fmt.Errorf("fmt-check: one or more templates failed to compile")
			}
			return nil
		},
	}
	return cmd
}
