package uncurl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"go.followtheprocess.codes/msg"
	"go.followtheprocess.codes/uncurl/convert"
	"go.followtheprocess.codes/uncurl/internal/codegen"
	"go.followtheprocess.codes/uncurl/internal/config"
	"go.followtheprocess.codes/uncurl/internal/format"
)

// ConvertOptions are the options passed to the convert subcommand.
//
// Every generation option is an override, its zero value leaves whatever the
// config file, environment or defaults set alone.
type ConvertOptions struct {
	// Path is the file containing the curl command, "-" reads stdin.
	Path string

	// Config is the path to a config file, empty uses .uncurl.toml if present.
	Config string

	// Output is a file to write the generated code to, empty prints it.
	Output string

	// EnvFile is a file to write extracted environment variables to as a dotenv file.
	EnvFile string

	// From is the format of the input when it isn't a curl command, one of json or yaml
	// as written by the inspect subcommand.
	From string

	// Language is the target language.
	Language string

	// Framework is the target framework, empty selects the language's default.
	Framework string

	// ErrorHandling is the error handling strategy, one of none, basic or comprehensive.
	ErrorHandling string

	// Retry turns on retry logic with this many attempts, 0 leaves it as configured.
	Retry int

	// Indent is the indent size, 0 leaves it as configured.
	Indent int

	// Timeout is the default request timeout, 0 leaves it as configured.
	Timeout time.Duration

	// NoTimeout removes the default request timeout.
	NoTimeout bool

	// NoAsync generates blocking code where the target has a choice.
	NoAsync bool

	// NoEnv keeps secrets inline rather than extracting them to environment variables.
	NoEnv bool

	// NoTypes skips generating model types.
	NoTypes bool

	// Logging adds request and response logging.
	Logging bool

	// NoComments strips explanatory comments.
	NoComments bool

	// Tabs indents with tabs.
	Tabs bool

	// InsecureOK generates code that skips TLS verification.
	InsecureOK bool

	// Tests generates a test file alongside the code.
	Tests bool

	// Interactive picks the language and framework with a form.
	Interactive bool

	// JSON prints the whole conversion result as JSON.
	JSON bool

	// Debug enables debug logging.
	Debug bool
}

// Validate reports whether the ConvertOptions is valid, returning an error
// if it's not.
//
// nil means the options are valid.
func (c ConvertOptions) Validate() error {
	switch {
	case c.From != "" && c.From != "json" && c.From != "yaml":
		return fmt.Errorf("--from must be json or yaml, got %q", c.From)
	case c.Retry < 0:
		return fmt.Errorf("--retry cannot be negative, got %d", c.Retry)
	case c.Indent < 0 || c.Indent > codegen.MaxIndentSize:
		return fmt.Errorf("--indent must be between %d and %d, got %d", codegen.MinIndentSize, codegen.MaxIndentSize, c.Indent)
	case c.Timeout < 0:
		return fmt.Errorf("--timeout cannot be negative, got %s", c.Timeout)
	case c.Timeout != 0 && c.NoTimeout:
		return errors.New("--timeout and --no-timeout are mutually exclusive")
	case c.Interactive && c.Language != "":
		return errors.New("--interactive and --language are mutually exclusive")
	case c.Interactive && c.JSON:
		return errors.New("--interactive and --json are mutually exclusive")
	default:
		return nil
	}
}

// apply returns options with the overrides in c applied on top.
func (c ConvertOptions) apply(options codegen.Options) codegen.Options {
	if c.Language != "" {
		options = options.WithLanguage(c.Language)
	}

	if c.Framework != "" {
		options.Framework = c.Framework
	}

	if c.ErrorHandling != "" {
		options.ErrorHandling = codegen.ErrorHandling(strings.ToLower(c.ErrorHandling))
	}

	if c.Retry > 0 {
		options.RetryLogic = true
		options.RetryAttempts = c.Retry
	}

	if c.Indent > 0 {
		options.IndentSize = c.Indent
	}

	if c.Timeout > 0 {
		options.Timeout = int(c.Timeout.Milliseconds())
	}

	if c.NoTimeout {
		options.Timeout = 0
	}

	if c.NoAsync {
		options.Async = false
	}

	if c.NoEnv {
		options.ExtractEnvVars = false
	}

	if c.NoTypes {
		options.IncludeTypes = false
	}

	if c.Logging {
		options.IncludeLogging = true
	}

	if c.NoComments {
		options.IncludeComments = false
	}

	if c.Tabs {
		options.IndentType = codegen.IndentTabs
	}

	if c.InsecureOK {
		options.ValidateSSL = false
	}

	if c.Tests {
		options.IncludeTests = true
	}

	return options
}

// Convert implements the convert subcommand.
func (u Uncurl) Convert(ctx context.Context, options ConvertOptions) error {
	logger := u.logger.Prefixed("convert").With(slog.String("path", options.Path))
	logger.Debug("Convert configuration", slog.String("options", fmt.Sprintf("%+v", options)))

	if err := options.Validate(); err != nil {
		return err
	}

	generation, err := u.generationOptions(options.Config, options)
	if err != nil {
		return err
	}

	if options.Interactive {
		if err := u.pick(ctx, &generation); err != nil {
			return err
		}
	}

	logger.Debug(
		"Resolved generation options",
		slog.String("language", generation.Language),
		slog.String("framework", generation.Framework),
	)

	var result convert.Result

	start := time.Now()

	if options.From != "" {
		result, err = u.convertDocument(options.Path, options.From, generation)
		if err != nil {
			return err
		}
	} else {
		name, text, err := u.readCurl(options.Path)
		if err != nil {
			return err
		}

		result = convert.ConvertNamed(name, text, generation)
	}

	logger.Debug(
		"Converted",
		slog.Bool("success", result.Success),
		slog.Int("warnings", len(result.Warnings)),
		slog.Duration("took", time.Since(start)),
	)

	if options.JSON {
		encoder := json.NewEncoder(u.stdout)
		encoder.SetIndent("", "  ")

		if err := encoder.Encode(result); err != nil {
			return fmt.Errorf("could not encode result: %w", err)
		}

		return result.Err()
	}

	if !result.Success {
		return fmt.Errorf("could not convert %s: %w", displayPath(options.Path), result.Err())
	}

	for _, warning := range result.Warnings {
		msg.Fwarn(u.stderr, "%s", warning)
	}

	return u.writeCode(*result.GeneratedCode, options)
}

// generationOptions loads the config at path and applies the overrides on top.
func (u Uncurl) generationOptions(path string, options ConvertOptions) (codegen.Options, error) {
	cfg, err := config.Load(path, os.Getenv)
	if err != nil {
		return codegen.Options{}, err
	}

	if cfg.File != "" {
		u.logger.Debug("Loaded config file", slog.String("file", cfg.File))
	}

	for _, warning := range cfg.Warnings {
		u.logger.Warn(warning)
	}

	return options.apply(cfg.Options), nil
}

// convertDocument converts a request previously exported by the inspect subcommand.
func (u Uncurl) convertDocument(path, from string, options codegen.Options) (convert.Result, error) {
	importer, err := format.ImporterFor(from)
	if err != nil {
		return convert.Result{}, err
	}

	name, contents, err := u.read(path)
	if err != nil {
		return convert.Result{}, err
	}

	request, err := importer.Import(bytes.NewReader(contents))
	if err != nil {
		return convert.Result{}, fmt.Errorf("could not import %s as %s: %w", name, from, err)
	}

	return convert.ConvertRequest(request, options), nil
}

// writeCode writes the generated code, and its tests and dotenv file if there are
// any, to their destinations.
func (u Uncurl) writeCode(code convert.Code, options ConvertOptions) error {
	if options.EnvFile != "" {
		if len(code.EnvVars) == 0 {
			msg.Fwarn(u.stderr, "No environment variables were extracted, not writing %s", options.EnvFile)
		} else {
			if err := write(options.EnvFile, code.Dotenv()); err != nil {
				return err
			}

			msg.Fsuccess(u.stderr, "Wrote %d environment variable(s) to %s", len(code.EnvVars), options.EnvFile)
		}
	}

	if options.Output == "" {
		fmt.Fprint(u.stdout, code.Code)

		if code.Tests != "" {
			fmt.Fprintf(u.stdout, "\n%s\n\n%s", dimmed.Text("# "+code.TestFileName), code.Tests)
		}

		return nil
	}

	if err := write(options.Output, code.Code); err != nil {
		return err
	}

	msg.Fsuccess(u.stdout, "Wrote %s", options.Output)

	if code.Tests != "" {
		// Tests go next to the code
		testPath := siblingPath(options.Output, code.TestFileName)
		if err := write(testPath, code.Tests); err != nil {
			return err
		}

		msg.Fsuccess(u.stdout, "Wrote %s", testPath)
	}

	return nil
}

// pick asks the user for a language and framework with an interactive form.
func (u Uncurl) pick(ctx context.Context, options *codegen.Options) error {
	language := options.Language

	languages := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Language").
				Options(huh.NewOptions(codegen.Languages()...)...).
				Value(&language),
		),
	).WithInput(u.stdin).WithOutput(u.stderr)

	if err := languages.RunWithContext(ctx); err != nil {
		return fmt.Errorf("could not pick a language: %w", err)
	}

	frameworks := codegen.Frameworks(language)
	framework := frameworks[0]

	if len(frameworks) > 1 {
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("Framework").
					Options(huh.NewOptions(frameworks...)...).
					Value(&framework),
			),
		).WithInput(u.stdin).WithOutput(u.stderr)

		if err := form.RunWithContext(ctx); err != nil {
			return fmt.Errorf("could not pick a framework: %w", err)
		}
	}

	*options = options.WithLanguage(language)
	options.Framework = framework

	return nil
}

// displayPath returns how path should be shown to the user.
func displayPath(path string) string {
	if path == stdinPath || path == "" {
		return "stdin"
	}

	return path
}
