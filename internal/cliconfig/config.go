// Package cliconfig loads the project-level ".cheetahc.yaml" file the CLI
// reads before compiling a template, the way leapsql's internal/cli/config
// loads "leapsql.yaml": a typed struct unmarshaled with gopkg.in/yaml.v2,
// with CLI flags layered on top as overrides. It exists so a project can
// pin its Settings (token characters, indentation step, method names)
// once instead of repeating a "#compiler-settings" block in every
// template.
package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"

	"github.com/cheetahc/cheetahc"
)

// maxUpwardSearchLevels bounds how far Find climbs looking for a config
// file, mirroring the teacher's findProjectRootUpward.
const maxUpwardSearchLevels = 10

// fileNames are tried in order at each directory level.
var fileNames = []string{".cheetahc.yaml", ".cheetahc.yml"}

// Config is the on-disk shape of ".cheetahc.yaml". Every field is
// optional; a zero value means "use the compiler default" (spec §4.7).
type Config struct {
	MainClassName string `yaml:"main_class_name"`

	CheetahVarStartToken string `yaml:"cheetah_var_start_token"`
	DirectiveStartToken  string `yaml:"directive_start_token"`
	CommentStartToken    string `yaml:"comment_start_token"`
	ScriptletStartToken  string `yaml:"scriptlet_start_token"`
	ScriptletEndToken    string `yaml:"scriptlet_end_token"`

	UseNameMapper     *bool `yaml:"use_name_mapper"`
	UseSearchList     *bool `yaml:"use_search_list"`
	UseAutocalling    *bool `yaml:"use_autocalling"`
	UseDottedNotation *bool `yaml:"use_dotted_notation"`

	AlwaysFilterNone            *bool  `yaml:"always_filter_none"`
	AllowNestedDefScopes        *bool  `yaml:"allow_nested_def_scopes"`
	MainMethodName              string `yaml:"main_method_name"`
	MainMethodNameForSubclasses string `yaml:"main_method_name_for_subclasses"`
	IndentationStep             int    `yaml:"indentation_step"`
	LegacyImportMode            *bool  `yaml:"legacy_import_mode"`

	OutputDir string `yaml:"output_dir"`
	Verbose   bool   `yaml:"verbose"`
}

// configFileUsed records the path the last successful Load read, for the
// CLI's --verbose banner.
var configFileUsed string

// FileUsed returns the path of the config file the last successful call
// to Load read, or "" if Load was last called with an empty path.
func FileUsed() string { return configFileUsed }

// Find searches dir and then its ancestors, up to maxUpwardSearchLevels
// levels, for a ".cheetahc.yaml" or ".cheetahc.yml" file, and returns its
// path. It returns "" with a nil error if none is found; a project
// without a config file is not an error, since every Settings key has a
// documented default.
func Find(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("cliconfig: resolve %q: %w", dir, err)
	}
	cur := abs
	for i := 0; i < maxUpwardSearchLevels; i++ {
		for _, name := range fileNames {
			candidate := filepath.Join(cur, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}
	return "", nil
}

// Load reads and unmarshals the config file at path. An empty path is
// not an error; it returns a zero-valued Config so every field falls
// through to the compiler's documented defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		configFileUsed = ""
		return &Config{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cliconfig: read %q: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("cliconfig: parse %q: %w", path, err)
	}
	configFileUsed = path
	return &cfg, nil
}

// ToOptions converts a loaded Config into cheetahc.Options, so the CLI
// can pass the result straight to cheetahc.Compile. Flags the caller
// parsed from the command line should be applied to the returned value
// afterward, since flags take precedence over the config file.
func (c *Config) ToOptions() cheetahc.Options {
	return cheetahc.Options{
		MainClassName: c.MainClassName,

		CheetahVarStartToken: c.CheetahVarStartToken,
		DirectiveStartToken:  c.DirectiveStartToken,
		CommentStartToken:    c.CommentStartToken,
		ScriptletStartToken:  c.ScriptletStartToken,
		ScriptletEndToken:    c.ScriptletEndToken,

		UseNameMapper:     c.UseNameMapper,
		UseSearchList:     c.UseSearchList,
		UseAutocalling:    c.UseAutocalling,
		UseDottedNotation: c.UseDottedNotation,

		AlwaysFilterNone:            c.AlwaysFilterNone,
		AllowNestedDefScopes:        c.AllowNestedDefScopes,
		MainMethodName:              c.MainMethodName,
		MainMethodNameForSubclasses: c.MainMethodNameForSubclasses,
		IndentationStep:             c.IndentationStep,
		LegacyImportMode:            c.LegacyImportMode,
	}
}
