package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"go.followtheprocess.codes/test"
	"go.followtheprocess.codes/uncurl/internal/codegen"
	"go.followtheprocess.codes/uncurl/internal/config"
)

// noEnv is an environment with nothing set.
func noEnv(string) string { return "" }

// envFrom returns an environment lookup backed by a map.
func envFrom(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

// write writes contents to name in a temporary directory, returning the full path.
func write(t *testing.T, name, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	test.Ok(t, os.WriteFile(path, []byte(contents), 0o644))

	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir()) // No .uncurl.toml here

	cfg, err := config.Load("", noEnv)
	test.Ok(t, err)

	test.Equal(t, cfg.Options, codegen.DefaultOptions())
	test.Equal(t, cfg.File, "")
	test.Equal(t, len(cfg.Warnings), 0)
}

func TestLoadFile(t *testing.T) {
	tests := []struct {
		name     string // Name of the test case
		file     string // Name of the config file
		contents string // Contents of the config file
		want     func(o *codegen.Options)
	}{
		{
			name:     "toml",
			file:     "uncurl.toml",
			contents: "language = \"python\"\nframework = \"httpx\"\nindentSize = 4\nretryLogic = true\n",
			want: func(o *codegen.Options) {
				o.Language = "python"
				o.Framework = "httpx"
				o.IndentSize = 4
				o.RetryLogic = true
			},
		},
		{
			name:     "yaml",
			file:     "uncurl.yaml",
			contents: "language: go\nframework: net/http\nindentType: tabs\nerrorHandling: comprehensive\n",
			want: func(o *codegen.Options) {
				o.Language = "go"
				o.Framework = "net/http"
				o.IndentType = codegen.IndentTabs
				o.ErrorHandling = codegen.ErrorHandlingComprehensive
			},
		},
		{
			name:     "yml",
			file:     "uncurl.yml",
			contents: "includeComments: false\ntimeout: 0\n",
			want: func(o *codegen.Options) {
				o.IncludeComments = false
				o.Timeout = 0
			},
		},
		{
			name:     "toml language only",
			file:     "uncurl.toml",
			contents: "language = \"ruby\"\n",
			want: func(o *codegen.Options) {
				o.Language = "ruby"
				o.Framework = ""
			},
		},
		{
			name:     "yaml language only",
			file:     "uncurl.yaml",
			contents: "language: python\n",
			want: func(o *codegen.Options) {
				o.Language = "python"
				o.Framework = ""
			},
		},
		{
			name:     "framework only",
			file:     "uncurl.toml",
			contents: "framework = \"axios\"\n",
			want: func(o *codegen.Options) {
				o.Framework = "axios"
			},
		},
		{
			name:     "empty yaml",
			file:     "uncurl.yaml",
			contents: "\n",
			want:     func(*codegen.Options) {},
		},
		{
			name:     "empty toml",
			file:     "uncurl.toml",
			contents: "",
			want:     func(*codegen.Options) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := write(t, tt.file, tt.contents)

			cfg, err := config.Load(path, noEnv)
			test.Ok(t, err)

			want := codegen.DefaultOptions()
			tt.want(&want)

			test.Equal(t, cfg.Options, want)
			test.Equal(t, cfg.File, path)
		})
	}
}

func TestLoadFileLanguageOnlyConverts(t *testing.T) {
	for _, file := range []string{"uncurl.toml", "uncurl.yaml"} {
		t.Run(file, func(t *testing.T) {
			contents := "language = \"ruby\"\n"
			if filepath.Ext(file) == ".yaml" {
				contents = "language: ruby\n"
			}

			cfg, err := config.Load(write(t, file, contents), noEnv)
			test.Ok(t, err)

			target, err := codegen.Lookup(cfg.Options.Language, cfg.Options.Framework)
			test.Ok(t, err)
			test.Equal(t, target.Framework, "net-http")
		})
	}
}

func TestLoadFileErrors(t *testing.T) {
	tests := []struct {
		name     string // Name of the test case
		file     string // Name of the config file, empty to not create one
		contents string // Contents of the config file
	}{
		{name: "unknown toml key", file: "uncurl.toml", contents: "langauge = \"python\"\n"},
		{name: "bad toml", file: "uncurl.toml", contents: "language = \n"},
		{name: "bad yaml", file: "uncurl.yaml", contents: "language: [python\n"},
		{name: "bad extension", file: "uncurl.json", contents: "{}"},
		{name: "missing", file: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "missing.toml")
			if tt.file != "" {
				path = write(t, tt.file, tt.contents)
			}

			_, err := config.Load(path, noEnv)
			test.Err(t, err)
		})
	}
}

func TestLoadDefaultFile(t *testing.T) {
	dir := t.TempDir()
	test.Ok(t, os.WriteFile(filepath.Join(dir, config.DefaultFile), []byte("language = \"ruby\"\n"), 0o644))
	t.Chdir(dir)

	cfg, err := config.Load("", noEnv)
	test.Ok(t, err)

	test.Equal(t, cfg.Options.Language, "ruby")
	test.Equal(t, cfg.File, config.DefaultFile)
}

func TestLoadEnv(t *testing.T) {
	path := write(t, "uncurl.toml", "language = \"python\"\nframework = \"httpx\"\n")

	env := envFrom(map[string]string{
		config.EnvLanguage:      "Rust",
		config.EnvIndentSize:    "4",
		config.EnvIndentType:    "tabs",
		config.EnvErrorHandling: "none",
	})

	cfg, err := config.Load(path, env)
	test.Ok(t, err)

	test.Equal(t, cfg.Options.Language, "rust")
	test.Equal(t, cfg.Options.Framework, "") // The file's framework was for python
	test.Equal(t, cfg.Options.IndentSize, 4)
	test.Equal(t, cfg.Options.IndentType, codegen.IndentTabs)
	test.Equal(t, cfg.Options.ErrorHandling, codegen.ErrorHandlingNone)
	test.Equal(t, len(cfg.Warnings), 0)
}

func TestLoadEnvFramework(t *testing.T) {
	t.Chdir(t.TempDir())

	env := envFrom(map[string]string{
		config.EnvLanguage:  "java",
		config.EnvFramework: "OkHttp",
	})

	cfg, err := config.Load("", env)
	test.Ok(t, err)

	test.Equal(t, cfg.Options.Language, "java")
	test.Equal(t, cfg.Options.Framework, "okhttp")
}

func TestLoadEnvInvalid(t *testing.T) {
	t.Chdir(t.TempDir())

	env := envFrom(map[string]string{
		config.EnvIndentSize:    "twelve",
		config.EnvIndentType:    "wide",
		config.EnvErrorHandling: "some",
	})

	cfg, err := config.Load("", env)
	test.Ok(t, err)

	// Invalid values are ignored so the defaults remain
	test.Equal(t, cfg.Options, codegen.DefaultOptions())
	test.Equal(t, len(cfg.Warnings), 3)
	test.Equal(t, cfg.Warnings[0], `ignoring UNCURL_INDENT_SIZE="twelve": must be between 1 and 8`)
}

func TestLoadEnvIndentOutOfRange(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load("", envFrom(map[string]string{config.EnvIndentSize: "9"}))
	test.Ok(t, err)

	test.Equal(t, cfg.Options.IndentSize, codegen.DefaultOptions().IndentSize)
	test.Equal(t, len(cfg.Warnings), 1)
}
