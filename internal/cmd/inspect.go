package cmd

import (
	"context"

	"go.followtheprocess.codes/cli"
	"go.followtheprocess.codes/uncurl/internal/uncurl"
)

const inspectLong = `
Without '--format', a short human readable summary of the request is
printed: the method, URL, headers and the kinds of auth and body.

With '--format', the full request is exported. The json and yaml exports
can be read back with 'uncurl convert --from', curl prints a canonical
curl command and postman a Postman v2.1 collection.
`

// inspect returns the inspect subcommand.
func inspect() (*cli.Command, error) {
	var options uncurl.InspectOptions

	return cli.New(
		"inspect",
		cli.Short("Show the request a curl command makes"),
		cli.Long(inspectLong),
		cli.Arg(&options.Path, "path", "File containing the curl command, '-' for stdin", cli.ArgDefault("-")),
		cli.Flag(&options.Format, "format", 'f', "Export format, one of (json|yaml|toml|postman|curl)"),
		cli.Flag(&options.Debug, "debug", 'd', "Enable debug logging"),
		cli.Run(func(ctx context.Context, cmd *cli.Command) error {
			app := uncurl.New(options.Debug, version, cmd.Stdin(), cmd.Stdout(), cmd.Stderr())
			return app.Inspect(ctx, options)
		}),
	)
}
