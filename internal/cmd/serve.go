package cmd

import (
	"context"

	"go.followtheprocess.codes/cli"
	"go.followtheprocess.codes/uncurl/internal/uncurl"
)

const serveLong = `
The server speaks the Model Context Protocol over stdin and stdout and
exposes the tools convert_curl, inspect_curl and list_languages.

The default conversion options come from the config file and UNCURL_*
environment variables, the same as the convert subcommand.
`

// serve returns the serve subcommand.
func serve() (*cli.Command, error) {
	var options uncurl.ServeOptions

	return cli.New(
		"serve",
		cli.Short("Run an MCP server over stdio"),
		cli.Long(serveLong),
		cli.Flag(&options.Config, "config", 'c', "Path to a config file"),
		cli.Flag(&options.Debug, "debug", 'd', "Enable debug logging"),
		cli.Run(func(ctx context.Context, cmd *cli.Command) error {
			app := uncurl.New(options.Debug, version, cmd.Stdin(), cmd.Stdout(), cmd.Stderr())
			return app.Serve(ctx, options)
		}),
	)
}
