package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/cheetahc/cheetahc"
	"github.com/cheetahc/cheetahc/internal/compilerlog"
)

func newCompileCmd() *cobra.Command {
	var outPath string
	var mainClass string
	var watch bool

	cmd := &cobra.Command{
		Use:   "compile <file>",
		Short: "Compile a Cheetah template into a host-language source module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := args[0]
			if watch {
				return watchAndCompile(src, outPath, mainClass)
			}
			return compileFile(src, outPath, mainClass)
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output path (default: stdout)")
	cmd.Flags().StringVar(&mainClass, "class", "", "main class name (default: derived from filename)")
	cmd.Flags().BoolVar(&watch, "watch", false, "recompile whenever the source file changes")

	return cmd
}

// compileFile runs a single compile of src, applying the loaded project
// config (cfg, set by the root command's PersistentPreRunE) as the
// options baseline with mainClass and the .cheetahc.yaml's own
// MainClassName as overrides in that precedence order.
func compileFile(src, outPath, mainClass string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}

	opts := cheetahc.Options{}
	if cfg != nil {
		opts = cfg.ToOptions()
	}
	opts.Filename = src
	if mainClass != "" {
		opts.MainClassName = mainClass
	} else if opts.MainClassName == "" {
		opts.MainClassName = deriveClassName(src)
	}

	compilerlog.Tracef("compile", "compiling %s as class %s", src, opts.MainClassName)
	out, err := cheetahc.Compile(string(data), opts)
	if err != nil {
		return err
	}

	if outPath == "" {
		fmt.Print(out)
		return nil
	}
	if err := os.WriteFile(outPath, []byte(out), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	return nil
}

// deriveClassName turns "my_page.tmpl" into "MyPage", the way the
// original compiler names a template class after its source file when
// no explicit name is given.
func deriveClassName(path string) string {
	base := filepath.Base(path)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	var sb strings.Builder
	upperNext := true
	for _, r := range base {
		switch {
		case r == '_' || r == '-' || r == '.':
			upperNext = true
		case upperNext:
			sb.WriteRune(toUpperRune(r))
			upperNext = false
		default:
			sb.WriteRune(r)
		}
	}
	name := sb.String()
	if name == "" {
		return "DynamicallyCompiledCheetahTemplate"
	}
	return name
}

func toUpperRune(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - ('a' - 'A')
	}
	return r
}

// watchAndCompile compiles src once, then recompiles on every write
// event fsnotify reports for it, printing errors to stderr without
// exiting so the loop survives a bad intermediate save (grounded on the
// teacher's general "never let a transient source error kill a running
// process" stance, adapted here to file-watch rather than a test run).
func watchAndCompile(src, outPath, mainClass string) error {
	if err := compileFile(src, outPath, mainClass); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(src)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	compilerlog.Tracef("watch", "watching %s for changes to %s", dir, src)
	abs, _ := filepath.Abs(src)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			eventAbs, _ := filepath.Abs(event.Name)
			if eventAbs != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			compilerlog.Tracef("watch", "recompiling %s", src)
			if err := compileFile(src, outPath, mainClass); err != nil {
				fmt.Fprintln(os.Stderr, "Error:", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(os.Stderr, "watch error:", err)
		}
	}
}
