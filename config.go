// Completion: 100% - Configuration layering complete
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/xyproto/env/v2"
	"gopkg.in/yaml.v3"

	"github.com/xyproto/dawnc/internal/build"
	"github.com/xyproto/dawnc/internal/engine"
	"github.com/xyproto/dawnc/internal/source"
	"github.com/xyproto/dawnc/internal/translate"
)

// defaultConfigFile is read from the working directory when -c is not given.
const defaultConfigFile = "dawn.yml"

// LimitsConfig bounds the pipeline. Negative tokens or output remove the bound.
type LimitsConfig struct {
	Lines      int `yaml:"lines"`
	LineLength int `yaml:"line_length"`
	Tokens     int `yaml:"tokens"`
	Output     int `yaml:"output"`
}

// IncludeConfig maps a DawnLang module name to a C header.
type IncludeConfig struct {
	Module string `yaml:"module"`
	Header string `yaml:"header"`
}

// Config is the merged result of defaults, dawn.yml, DAWN_* variables and
// command-line flags, in increasing precedence.
type Config struct {
	Compiler     string          `yaml:"compiler"`
	Flags        argList         `yaml:"flags"`
	Intermediate string          `yaml:"intermediate"`
	Artifact     string          `yaml:"artifact"`
	Clean        bool            `yaml:"clean"`
	Debug        bool            `yaml:"debug"`
	Limits       LimitsConfig    `yaml:"limits"`
	Includes     []IncludeConfig `yaml:"includes"`
}

// DefaultConfig returns the built-in settings: gcc with -w -lstdc++, Main.cpp
// as the intermediate file and the default stage capacities.
func DefaultConfig() Config {
	tc := build.NewToolchain(build.HostOS().DefaultArtifact())
	return Config{
		Compiler:     tc.Command,
		Flags:        argList(tc.Args),
		Intermediate: build.DefaultIntermediate,
		Artifact:     tc.DefaultOutput,
		Limits: LimitsConfig{
			Lines:      source.DefaultMaxLines,
			LineLength: source.DefaultMaxLineLength,
			Tokens:     engine.DefaultMaxTokens,
			Output:     translate.DefaultMaxOutput,
		},
	}
}

// ConfigError lists every problem found in a configuration.
type ConfigError struct {
	Path   string
	Issues []string
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("invalid configuration")
	if e.Path != "" {
		b.WriteString(" in ")
		b.WriteString(e.Path)
	}
	b.WriteString(":")
	for _, issue := range e.Issues {
		b.WriteString("\n- ")
		b.WriteString(issue)
	}
	return b.String()
}

// LoadConfigFile merges the YAML file at path into cfg. A missing file is an
// error only when required is set. Unknown keys are rejected.
func LoadConfigFile(fs afero.Fs, path string, required bool, cfg *Config) error {
	file, err := fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return errors.Wrapf(err, "cannot read config %s", path)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errors.Wrapf(err, "parsing config %s", path)
	}
	return cfg.validate(path)
}

// ApplyEnv overrides cfg with the DAWN_* environment variables that are set.
// The environment is read again on every call.
func (c *Config) ApplyEnv() {
	env.Load()
	c.Compiler = env.Str("DAWN_CC", c.Compiler)
	if env.Has("DAWN_CFLAGS") {
		c.Flags = argList(strings.Fields(env.Str("DAWN_CFLAGS")))
	}
	c.Intermediate = env.Str("DAWN_INTERMEDIATE", c.Intermediate)
	if env.Has("DAWN_DEBUG") {
		c.Debug = env.Bool("DAWN_DEBUG")
	}
	if env.Has("DAWN_CLEAN") {
		c.Clean = env.Bool("DAWN_CLEAN")
	}
	c.Limits.Lines = env.Int("DAWN_MAX_LINES", c.Limits.Lines)
	c.Limits.LineLength = env.Int("DAWN_MAX_LINE_LENGTH", c.Limits.LineLength)
	c.Limits.Tokens = env.Int("DAWN_MAX_TOKENS", c.Limits.Tokens)
}

func (c *Config) validate(path string) error {
	var issues []string
	if strings.TrimSpace(c.Compiler) == "" {
		issues = append(issues, "compiler must be provided")
	}
	if c.Intermediate == "" {
		issues = append(issues, "intermediate must be provided")
	}
	if c.Limits.Lines < 0 {
		issues = append(issues, "limits.lines must not be negative")
	}
	if c.Limits.LineLength < 0 {
		issues = append(issues, "limits.line_length must not be negative")
	}
	for i, inc := range c.Includes {
		if inc.Module == "" || inc.Header == "" {
			issues = append(issues, fmt.Sprintf("includes[%d] needs both module and header", i))
		}
	}
	if len(issues) > 0 {
		return &ConfigError{Path: path, Issues: issues}
	}
	return nil
}

// Modules builds the include registry: the built-in modules followed by the
// configured ones.
func (c *Config) Modules() (*translate.Registry, error) {
	reg := translate.NewRegistry()
	for _, inc := range c.Includes {
		if err := reg.Register(inc.Module, inc.Header); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Toolchain returns the compiler invocation described by c.
func (c *Config) Toolchain() *build.Toolchain {
	tc := build.NewToolchain(c.Artifact)
	tc.Command = c.Compiler
	tc.Args = append([]string(nil), c.Flags...)
	return tc
}

// EngineLimits converts the configured limits.
func (c *Config) EngineLimits() engine.Limits {
	return engine.Limits{
		Lines:      c.Limits.Lines,
		LineLength: c.Limits.LineLength,
		Tokens:     c.Limits.Tokens,
		Output:     c.Limits.Output,
	}
}

// argList accepts either a YAML sequence or a single space-separated string.
type argList []string

func (l *argList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*l = nil
			return nil
		}
		*l = argList(strings.Fields(value.Value))
		return nil
	case yaml.SequenceNode:
		items := make([]string, 0, len(value.Content))
		for _, node := range value.Content {
			var str string
			if err := node.Decode(&str); err != nil {
				return err
			}
			if str = strings.TrimSpace(str); str != "" {
				items = append(items, str)
			}
		}
		*l = argList(items)
		return nil
	case yaml.AliasNode:
		return l.UnmarshalYAML(value.Alias)
	default:
		return fmt.Errorf("expected string or sequence for flags but found %s", value.ShortTag())
	}
}
