// Package cmd implements uncurl's CLI.
package cmd

import (
	"go.followtheprocess.codes/cli"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

// Build builds and returns the uncurl CLI.
func Build() (*cli.Command, error) {
	return cli.New(
		"uncurl",
		cli.Short("Convert curl commands into HTTP client code"),
		cli.Version(version),
		cli.Commit(commit),
		cli.BuildDate(date),
		cli.Example("Convert a curl command on stdin to JavaScript using fetch", "pbpaste | uncurl convert"),
		cli.Example("Convert a file to Python using httpx", "uncurl convert request.curl --language python --framework httpx"),
		cli.Example("Pick the language and framework interactively", "uncurl convert request.curl --interactive"),
		cli.Example("See the request a curl command makes as a Postman collection", "uncurl inspect request.curl --format postman"),
		cli.Example("Convert every .curl file in a directory (recursively) to Go", "uncurl batch ./requests --language go"),
		cli.Example("List the supported languages and frameworks", "uncurl languages"),
		cli.Example("Run an MCP server over stdio", "uncurl serve"),
		cli.SubCommands(convert, inspect, languages, batch, serve),
	)
}
