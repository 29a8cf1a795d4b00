// Package mcpserver implements an MCP (Model Context Protocol) server that exposes
// uncurl's conversions as MCP tools.
package mcpserver

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.followtheprocess.codes/log"
	"go.followtheprocess.codes/uncurl/convert"
)

const serverInstructions = `uncurl MCP server, converts curl commands into HTTP client code.

Tools:
- convert_curl: convert a curl command into code for a language and framework
- inspect_curl: show the request a curl command makes, optionally exported as json, yaml, toml, postman or curl
- list_languages: list every supported language and framework and the options each supports

Defaults for convert_curl come from the server's config file and UNCURL_* environment variables,
any option given in a tool call overrides them.`

// Server is the uncurl MCP server.
type Server struct {
	server   *mcp.Server
	logger   *log.Logger
	defaults convert.Options
}

// New returns a new [Server], conversions default to defaults unless a tool call
// overrides them.
func New(version string, defaults convert.Options, logger *log.Logger) *Server {
	s := &Server{
		server: mcp.NewServer(
			&mcp.Implementation{Name: "uncurl", Version: version},
			&mcp.ServerOptions{Instructions: serverInstructions},
		),
		logger:   logger,
		defaults: defaults,
	}

	s.registerTools()

	return s
}

// Run runs the server over transport and blocks until the client disconnects
// or the context is cancelled.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	s.logger.Debug("Starting MCP server")

	err := s.server.Run(ctx, transport)

	s.logger.Debug("MCP server stopped", slog.Any("err", err))

	return err
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "convert_curl",
		Description: "Convert a curl command into HTTP client code. Language defaults to the server's configured language (javascript unless configured), framework defaults to the language's first framework. Secrets like tokens and passwords are moved to environment variables unless extract_env_vars is false. Returns the code, a suggested file name, dependencies, extracted environment variables and any warnings about the command.",
	}, s.handleConvert)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "inspect_curl",
		Description: "Parse a curl command and return the request it makes: method, URL, headers, auth and body kinds. Set format to json, yaml, toml, postman or curl to also get the full request exported in that format.",
	}, s.handleInspect)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_languages",
		Description: "List every supported (language, framework) pair with its file extension and the generation options it supports (async, types, retry, logging, tests).",
	}, s.handleLanguages)
}

// errResult creates an MCP error result from an error.
func errResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}
