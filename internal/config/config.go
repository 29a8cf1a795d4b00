// Package config loads uncurl's code generation options from an optional config file
// and the environment, overlaid onto the defaults.
//
// The file may be TOML or YAML, chosen by its extension. Any option not set in the file
// keeps its default, then the UNCURL_* environment variables override the file:
//
//	language = "python"
//	framework = "httpx"
//	indentSize = 4
//	retryLogic = true
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"go.followtheprocess.codes/uncurl/internal/codegen"
	"go.yaml.in/yaml/v4"
)

// DefaultFile is the config file used when no path is given, it is only loaded if
// it exists in the current working directory.
const DefaultFile = ".uncurl.toml"

// Environment variables that override the config file.
const (
	EnvLanguage      = "UNCURL_LANGUAGE"
	EnvFramework     = "UNCURL_FRAMEWORK"
	EnvIndentSize    = "UNCURL_INDENT_SIZE"
	EnvIndentType    = "UNCURL_INDENT_TYPE"
	EnvErrorHandling = "UNCURL_ERROR_HANDLING"
)

// Config is the loaded configuration.
type Config struct {
	// File is the path of the config file that was loaded, empty if none was
	File string

	// Warnings are the invalid environment overrides that were ignored
	Warnings []string

	// Options are the resolved code generation options
	Options codegen.Options
}

// Load returns the configuration from the file at path and the environment.
//
// If path is empty, [DefaultFile] is loaded if it exists, otherwise the defaults are
// used. An explicit path that doesn't exist is an error. env looks up environment
// variables, it is [os.Getenv] outside of tests.
//
// Invalid environment values are not an error, they are ignored and reported in
// [Config.Warnings] as the file and defaults are still usable. The options are not
// validated, callers do that after applying any flags on top.
func Load(path string, env func(string) string) (Config, error) {
	cfg := Config{Options: codegen.DefaultOptions()}

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	if env == nil {
		env = os.Getenv
	}

	cfg.applyEnv(env)

	return cfg, nil
}

// loadFile decodes the file at path over the current options.
func (c *Config) loadFile(path string) error {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file %s does not exist", path)
		}

		return fmt.Errorf("could not read config file: %w", err)
	}

	// A framework only means anything alongside its language, so the default
	// framework is only kept if the file doesn't change the language
	defaults := c.Options
	c.Options.Language = ""
	c.Options.Framework = ""

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		meta, err := toml.Decode(string(contents), &c.Options)
		if err != nil {
			return fmt.Errorf("invalid TOML in %s: %w", path, err)
		}

		if undecoded := meta.Undecoded(); len(undecoded) != 0 {
			keys := make([]string, 0, len(undecoded))
			for _, key := range undecoded {
				keys = append(keys, key.String())
			}

			return fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
		}
	case ".yaml", ".yml":
		// An empty document is valid and leaves the defaults alone
		if len(bytes.TrimSpace(contents)) == 0 {
			break
		}

		if err := yaml.Unmarshal(contents, &c.Options); err != nil {
			return fmt.Errorf("invalid YAML in %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config file extension %q, must be .toml, .yaml or .yml", ext)
	}

	if c.Options.Language == "" {
		c.Options.Language = defaults.Language

		if c.Options.Framework == "" {
			c.Options.Framework = defaults.Framework
		}
	}

	c.File = path

	return nil
}

// applyEnv overrides the options with any UNCURL_* environment variables.
func (c *Config) applyEnv(env func(string) string) {
	if language := strings.TrimSpace(env(EnvLanguage)); language != "" {
		// A framework from the file belongs to the file's language
		c.Options = c.Options.WithLanguage(strings.ToLower(language))
	}

	if framework := strings.TrimSpace(env(EnvFramework)); framework != "" {
		c.Options.Framework = strings.ToLower(framework)
	}

	if value := strings.TrimSpace(env(EnvIndentSize)); value != "" {
		size, err := strconv.Atoi(value)
		if err != nil || size < codegen.MinIndentSize || size > codegen.MaxIndentSize {
			c.warn(EnvIndentSize, value, fmt.Sprintf("must be between %d and %d", codegen.MinIndentSize, codegen.MaxIndentSize))
		} else {
			c.Options.IndentSize = size
		}
	}

	if value := strings.TrimSpace(env(EnvIndentType)); value != "" {
		switch indent := codegen.IndentType(strings.ToLower(value)); indent {
		case codegen.IndentSpaces, codegen.IndentTabs:
			c.Options.IndentType = indent
		default:
			c.warn(EnvIndentType, value, "must be spaces or tabs")
		}
	}

	if value := strings.TrimSpace(env(EnvErrorHandling)); value != "" {
		switch strategy := codegen.ErrorHandling(strings.ToLower(value)); strategy {
		case codegen.ErrorHandlingNone, codegen.ErrorHandlingBasic, codegen.ErrorHandlingComprehensive:
			c.Options.ErrorHandling = strategy
		default:
			c.warn(EnvErrorHandling, value, "must be none, basic or comprehensive")
		}
	}
}

// warn records an ignored environment variable.
func (c *Config) warn(key, value, reason string) {
	c.Warnings = append(c.Warnings, fmt.Sprintf("ignoring %s=%q: %s", key, value, reason))
}
