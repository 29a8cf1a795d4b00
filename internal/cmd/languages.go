package cmd

import (
	"context"

	"go.followtheprocess.codes/cli"
	"go.followtheprocess.codes/uncurl/internal/uncurl"
)

// languages returns the languages subcommand.
func languages() (*cli.Command, error) {
	var options uncurl.LanguagesOptions

	return cli.New(
		"languages",
		cli.Short("List the supported languages and frameworks"),
		cli.Flag(&options.JSON, "json", 'j', "Print the table as JSON"),
		cli.Flag(&options.Debug, "debug", 'd', "Enable debug logging"),
		cli.Run(func(_ context.Context, cmd *cli.Command) error {
			app := uncurl.New(options.Debug, version, cmd.Stdin(), cmd.Stdout(), cmd.Stderr())
			return app.Languages(options)
		}),
	)
}
