package mcpserver

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.followtheprocess.codes/uncurl/convert"
	"go.followtheprocess.codes/uncurl/internal/codegen"
	"go.followtheprocess.codes/uncurl/internal/format"
)

type convertInput struct {
	Curl            string `json:"curl"                       jsonschema:"The curl command to convert"`
	Language        string `json:"language,omitempty"         jsonschema:"Target language e.g. python\\, go\\, typescript"`
	Framework       string `json:"framework,omitempty"        jsonschema:"HTTP library for the language e.g. requests\\, httpx. Empty selects the language's default"`
	ErrorHandling   string `json:"error_handling,omitempty"   jsonschema:"Error handling strategy: none\\, basic or comprehensive"`
	IndentSize      int    `json:"indent_size,omitempty"      jsonschema:"Spaces per indent level\\, 1 to 8"`
	RetryAttempts   int    `json:"retry_attempts,omitempty"   jsonschema:"Turns on retries with exponential backoff\\, making this many attempts"`
	Async           *bool  `json:"async,omitempty"            jsonschema:"Use an asynchronous client API where the target has one"`
	ExtractEnvVars  *bool  `json:"extract_env_vars,omitempty" jsonschema:"Move secrets into environment variables"`
	IncludeTypes    *bool  `json:"include_types,omitempty"    jsonschema:"Generate model types for a JSON body where the language is typed"`
	IncludeLogging  *bool  `json:"include_logging,omitempty"  jsonschema:"Log the request and response"`
	IncludeComments *bool  `json:"include_comments,omitempty" jsonschema:"Keep explanatory comments"`
	IncludeTests    *bool  `json:"include_tests,omitempty"    jsonschema:"Generate a test file where the target supports it"`
	UseTabs         bool   `json:"use_tabs,omitempty"         jsonschema:"Indent with tabs instead of spaces"`
}

type warningOutput struct {
	Message  string `json:"message"`
	Position string `json:"position,omitempty"`
}

type convertOutput struct {
	Language     string            `json:"language"`
	Framework    string            `json:"framework"`
	Code         string            `json:"code"`
	FileName     string            `json:"file_name"`
	Tests        string            `json:"tests,omitempty"`
	TestFileName string            `json:"test_file_name,omitempty"`
	Dependencies []string          `json:"dependencies,omitempty"`
	EnvVars      map[string]string `json:"env_vars,omitempty"`
	Warnings     []warningOutput   `json:"warnings,omitempty"`
}

// options returns defaults with the overrides in the input applied.
func (c convertInput) options(defaults convert.Options) convert.Options {
	options := defaults

	if c.Language != "" {
		options = options.WithLanguage(c.Language)
	}

	if c.Framework != "" {
		options.Framework = c.Framework
	}

	if c.ErrorHandling != "" {
		options.ErrorHandling = codegen.ErrorHandling(strings.ToLower(c.ErrorHandling))
	}

	if c.IndentSize != 0 {
		options.IndentSize = c.IndentSize
	}

	if c.RetryAttempts > 0 {
		options.RetryLogic = true
		options.RetryAttempts = c.RetryAttempts
	}

	if c.UseTabs {
		options.IndentType = codegen.IndentTabs
	}

	set(&options.Async, c.Async)
	set(&options.ExtractEnvVars, c.ExtractEnvVars)
	set(&options.IncludeTypes, c.IncludeTypes)
	set(&options.IncludeLogging, c.IncludeLogging)
	set(&options.IncludeComments, c.IncludeComments)
	set(&options.IncludeTests, c.IncludeTests)

	return options
}

// set sets dst to the value of an optional override, if there is one.
func set(dst, override *bool) {
	if override != nil {
		*dst = *override
	}
}

func (s *Server) handleConvert(_ context.Context, _ *mcp.CallToolRequest, input convertInput) (*mcp.CallToolResult, convertOutput, error) {
	text, ok := convert.DetectAndNormalize(input.Curl)
	if !ok {
		return errResult(errors.New("curl is required and must be a curl command")), convertOutput{}, nil
	}

	options := input.options(s.defaults)

	s.logger.Debug("Handling convert_curl", slog.String("language", options.Language), slog.String("framework", options.Framework))

	result := convert.Convert(text, options)
	if !result.Success {
		return errResult(result.Err()), convertOutput{}, nil
	}

	// The options are valid if the conversion succeeded
	target, err := codegen.Lookup(options.Language, options.Framework)
	if err != nil {
		return errResult(err), convertOutput{}, nil
	}

	code := result.GeneratedCode
	output := convertOutput{
		Language:     target.Language,
		Framework:    target.Framework,
		Code:         code.Code,
		FileName:     code.FileName,
		Tests:        code.Tests,
		TestFileName: code.TestFileName,
		Dependencies: code.Dependencies,
		EnvVars:      code.EnvVars,
		Warnings:     warningsFrom(result.Warnings),
	}

	return nil, output, nil
}

type inspectInput struct {
	Curl   string `json:"curl"             jsonschema:"The curl command to inspect"`
	Format string `json:"format,omitempty" jsonschema:"Also export the full request in this format: json\\, yaml\\, toml\\, postman or curl"`
}

type inspectOutput struct {
	Request  convert.Summary `json:"request"`
	Document string          `json:"document,omitempty"`
	Warnings []warningOutput `json:"warnings,omitempty"`
}

func (s *Server) handleInspect(_ context.Context, _ *mcp.CallToolRequest, input inspectInput) (*mcp.CallToolResult, inspectOutput, error) {
	text, ok := convert.DetectAndNormalize(input.Curl)
	if !ok {
		return errResult(errors.New("curl is required and must be a curl command")), inspectOutput{}, nil
	}

	var exporter format.Exporter

	if input.Format != "" {
		var err error

		exporter, err = format.ExporterFor(input.Format)
		if err != nil {
			return errResult(err), inspectOutput{}, nil
		}
	}

	s.logger.Debug("Handling inspect_curl", slog.String("format", input.Format))

	request, warnings, err := convert.Parse(convert.DefaultName, text)
	if err != nil {
		return errResult(err), inspectOutput{}, nil
	}

	output := inspectOutput{
		Request:  convert.Summarise(request),
		Warnings: warningsFrom(warnings),
	}

	if exporter != nil {
		document := &strings.Builder{}
		if err := exporter.Export(document, request); err != nil {
			return errResult(err), inspectOutput{}, nil
		}

		output.Document = document.String()
	}

	return nil, output, nil
}

type languagesInput struct{}

type languagesOutput struct {
	Targets []convert.Target `json:"targets"`
}

func (s *Server) handleLanguages(_ context.Context, _ *mcp.CallToolRequest, _ languagesInput) (*mcp.CallToolResult, languagesOutput, error) {
	s.logger.Debug("Handling list_languages")

	return nil, languagesOutput{Targets: convert.Supported()}, nil
}

// warningsFrom converts conversion warnings to their tool output, nil if there are none.
func warningsFrom(warnings []convert.Warning) []warningOutput {
	if len(warnings) == 0 {
		return nil
	}

	out := make([]warningOutput, 0, len(warnings))
	for _, warning := range warnings {
		out = append(out, warningOutput{Message: warning.Msg, Position: warning.Position})
	}

	return out
}
