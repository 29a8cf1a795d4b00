package codegen

import (
	"fmt"
	"slices"
	"strings"

	"go.followtheprocess.codes/uncurl/internal/errs"
)

// Capabilities describe which generation options a target supports, options a
// target doesn't support are silently turned off before it runs.
type Capabilities struct {
	Async   bool `json:"async"   toml:"async"   yaml:"async"`
	Types   bool `json:"types"   toml:"types"   yaml:"types"`
	Retry   bool `json:"retry"   toml:"retry"   yaml:"retry"`
	Logging bool `json:"logging" toml:"logging" yaml:"logging"`
	Tests   bool `json:"tests"   toml:"tests"   yaml:"tests"`
}

// String implements [fmt.Stringer] for [Capabilities], listing the supported options.
func (c Capabilities) String() string {
	var supported []string

	for _, option := range []struct {
		name string
		ok   bool
	}{
		{"async", c.Async},
		{"types", c.Types},
		{"retry", c.Retry},
		{"logging", c.Logging},
		{"tests", c.Tests},
	} {
		if option.ok {
			supported = append(supported, option.name)
		}
	}

	if len(supported) == 0 {
		return "none"
	}

	return strings.Join(supported, ", ")
}

// emitter generates the program for a single target.
type emitter func(g *gen) program

// Target is a single (language, framework) pair code can be generated for.
type Target struct {
	emit emitter

	// Language is the target language e.g. "python"
	Language string `json:"language" toml:"language" yaml:"language"`

	// Framework is the HTTP library e.g. "requests"
	Framework string `json:"framework" toml:"framework" yaml:"framework"`

	// Extension is the file extension of generated code, including the dot
	Extension string `json:"extension" toml:"extension" yaml:"extension"`

	// Dependencies are the packages generated code always needs
	Dependencies []string `json:"dependencies,omitempty" toml:"dependencies,omitempty" yaml:"dependencies,omitempty"`

	// Capabilities are the options the target supports
	Capabilities Capabilities `json:"capabilities" toml:"capabilities" yaml:"capabilities"`
}

// String implements [fmt.Stringer] for a [Target] e.g. "python/requests".
func (t Target) String() string {
	return t.Language + "/" + t.Framework
}

// targets is the table of every supported target, languages appear in the order
// they are presented to users and a language's first framework is its default.
//
//nolint:gochecknoglobals // Effectively a constant lookup table
var targets = []Target{
	{
		Language:     "javascript",
		Framework:    "fetch",
		Extension:    ".js",
		Capabilities: Capabilities{Retry: true, Logging: true, Tests: true},
		emit:         emitJavaScript,
	},
	{
		Language:     "javascript",
		Framework:    "axios",
		Extension:    ".js",
		Dependencies: []string{"axios"},
		Capabilities: Capabilities{Retry: true, Logging: true, Tests: true},
		emit:         emitJavaScript,
	},
	{
		Language:     "typescript",
		Framework:    "fetch",
		Extension:    ".ts",
		Capabilities: Capabilities{Types: true, Retry: true, Logging: true, Tests: true},
		emit:         emitJavaScript,
	},
	{
		Language:     "typescript",
		Framework:    "axios",
		Extension:    ".ts",
		Dependencies: []string{"axios"},
		Capabilities: Capabilities{Types: true, Retry: true, Logging: true, Tests: true},
		emit:         emitJavaScript,
	},
	{
		Language:     "python",
		Framework:    "requests",
		Extension:    ".py",
		Dependencies: []string{"requests"},
		Capabilities: Capabilities{Types: true, Retry: true, Logging: true, Tests: true},
		emit:         emitPython,
	},
	{
		Language:     "python",
		Framework:    "httpx",
		Extension:    ".py",
		Dependencies: []string{"httpx"},
		Capabilities: Capabilities{Async: true, Types: true, Retry: true, Logging: true, Tests: true},
		emit:         emitPython,
	},
	{
		Language:     "python",
		Framework:    "aiohttp",
		Extension:    ".py",
		Dependencies: []string{"aiohttp"},
		Capabilities: Capabilities{Types: true, Retry: true, Logging: true, Tests: true},
		emit:         emitPython,
	},
	{
		// Always gofmt'd, indentType and indentSize don't apply
		Language:     "go",
		Framework:    "net/http",
		Extension:    ".go",
		Capabilities: Capabilities{Types: true, Retry: true, Logging: true, Tests: true},
		emit:         emitGo,
	},
	{
		Language:     "java",
		Framework:    "httpclient",
		Extension:    ".java",
		Capabilities: Capabilities{Async: true, Retry: true, Logging: true},
		emit:         emitJava,
	},
	{
		Language:     "java",
		Framework:    "okhttp",
		Extension:    ".java",
		Dependencies: []string{"com.squareup.okhttp3:okhttp:4.12.0"},
		Capabilities: Capabilities{Retry: true, Logging: true},
		emit:         emitJava,
	},
	{
		Language:     "csharp",
		Framework:    "httpclient",
		Extension:    ".cs",
		Capabilities: Capabilities{Async: true, Types: true, Retry: true, Logging: true},
		emit:         emitCSharp,
	},
	{
		Language:     "php",
		Framework:    "curl",
		Extension:    ".php",
		Dependencies: []string{"ext-curl"},
		Capabilities: Capabilities{Retry: true, Logging: true},
		emit:         emitPHP,
	},
	{
		Language:     "php",
		Framework:    "guzzle",
		Extension:    ".php",
		Dependencies: []string{"guzzlehttp/guzzle"},
		Capabilities: Capabilities{Retry: true, Logging: true},
		emit:         emitPHP,
	},
	{
		Language:     "ruby",
		Framework:    "net-http",
		Extension:    ".rb",
		Capabilities: Capabilities{Retry: true, Logging: true},
		emit:         emitRuby,
	},
	{
		Language:     "rust",
		Framework:    "reqwest",
		Extension:    ".rs",
		Dependencies: []string{"reqwest", "serde_json"},
		Capabilities: Capabilities{Async: true, Types: true, Retry: true, Logging: true},
		emit:         emitRust,
	},
	{
		Language:     "kotlin",
		Framework:    "okhttp",
		Extension:    ".kt",
		Dependencies: []string{"com.squareup.okhttp3:okhttp:4.12.0"},
		Capabilities: Capabilities{Retry: true, Logging: true},
		emit:         emitKotlin,
	},
	{
		Language:     "swift",
		Framework:    "urlsession",
		Extension:    ".swift",
		Capabilities: Capabilities{Retry: true, Logging: true},
		emit:         emitSwift,
	},
	{
		Language:     "dart",
		Framework:    "http",
		Extension:    ".dart",
		Dependencies: []string{"http"},
		Capabilities: Capabilities{Retry: true, Logging: true},
		emit:         emitDart,
	},
	{
		Language:     "shell",
		Framework:    "curl",
		Extension:    ".sh",
		Dependencies: []string{"curl"},
		Capabilities: Capabilities{Retry: true, Logging: true},
		emit:         emitCurl,
	},
	{
		Language:     "shell",
		Framework:    "httpie",
		Extension:    ".sh",
		Dependencies: []string{"httpie"},
		Capabilities: Capabilities{Retry: true, Logging: true},
		emit:         emitHTTPie,
	},
	{
		Language:  "http",
		Framework: "http-file",
		Extension: ".http",
		emit:      emitHTTPFile,
	},
}

// aliases maps common alternative spellings to language names.
//
//nolint:gochecknoglobals // Effectively a constant lookup table
var aliases = map[string]string{
	"js":     "javascript",
	"node":   "javascript",
	"ts":     "typescript",
	"py":     "python",
	"golang": "go",
	"c#":     "csharp",
	"cs":     "csharp",
	"rs":     "rust",
	"kt":     "kotlin",
	"rb":     "ruby",
	"sh":     "shell",
	"bash":   "shell",
	"curl":   "shell",
	"rest":   "http",
}

// Supported returns every supported target, the SUPPORTED_LANGUAGES table.
//
// The returned slice is a copy and may be freely modified.
func Supported() []Target {
	supported := make([]Target, 0, len(targets))
	for _, target := range targets {
		target.Dependencies = slices.Clone(target.Dependencies)
		supported = append(supported, target)
	}

	return supported
}

// Languages returns the names of the supported languages in presentation order.
func Languages() []string {
	var languages []string

	for _, target := range targets {
		if !slices.Contains(languages, target.Language) {
			languages = append(languages, target.Language)
		}
	}

	return languages
}

// Frameworks returns the frameworks supported for language, which must be a
// canonical name from [Languages].
func Frameworks(language string) []string {
	var frameworks []string

	for _, target := range targets {
		if target.Language == language {
			frameworks = append(frameworks, target.Framework)
		}
	}

	return frameworks
}

// Lookup returns the [Target] for a language and framework.
//
// Names are case insensitive and languages may be given by a common alias e.g.
// "py", an empty framework selects the language's default. An unknown language
// or framework results in an [errs.ConfigError].
func Lookup(language, framework string) (Target, error) {
	language = strings.ToLower(strings.TrimSpace(language))
	framework = strings.ToLower(strings.TrimSpace(framework))

	if canonical, ok := aliases[language]; ok {
		language = canonical
	}

	frameworks := Frameworks(language)
	if len(frameworks) == 0 {
		return Target{}, &errs.ConfigError{
			Kind:  errs.UnsupportedLanguage,
			Value: language,
			Msg: fmt.Sprintf(
				"unsupported language %q, expected one of %s",
				language,
				strings.Join(Languages(), ", "),
			),
		}
	}

	if framework == "" {
		framework = frameworks[0]
	}

	for _, target := range targets {
		if target.Language == language && target.Framework == framework {
			target.Dependencies = slices.Clone(target.Dependencies)
			return target, nil
		}
	}

	return Target{}, &errs.ConfigError{
		Kind:  errs.UnsupportedFramework,
		Value: framework,
		Msg: fmt.Sprintf(
			"unsupported framework %q for %s, expected one of %s",
			framework,
			language,
			strings.Join(frameworks, ", "),
		),
	}
}
