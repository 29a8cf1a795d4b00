package cmd

import (
	"context"

	"go.followtheprocess.codes/cli"
	"go.followtheprocess.codes/uncurl/internal/uncurl"
)

const batchLong = `
The path argument may be a directory or a file.

If it is a file, the curl command in it is converted.

If it is a directory, this directory is scanned recursively for all
files with the '.curl' or '.sh' extension and the curl commands in them
are converted concurrently. Shell scripts that aren't a curl command
are skipped.

The code for each is written next to its input with the extension of
the target language e.g. users.curl becomes users.py.
`

// batch returns the batch subcommand.
func batch() (*cli.Command, error) {
	var options uncurl.BatchOptions

	return cli.New(
		"batch",
		cli.Short("Convert every curl command in a directory"),
		cli.Long(batchLong),
		cli.Arg(&options.Path, "path", "Path to convert, may be directory or file", cli.ArgDefault(".")),
		cli.Flag(&options.Language, "language", 'l', "Target language e.g. python, go, typescript"),
		cli.Flag(&options.Framework, "framework", 'f', "HTTP library to use, defaults to the language's first"),
		cli.Flag(&options.Config, "config", 'c', "Path to a config file"),
		cli.Flag(&options.Debug, "debug", 'd', "Enable debug logging"),
		cli.Run(func(ctx context.Context, cmd *cli.Command) error {
			app := uncurl.New(options.Debug, version, cmd.Stdin(), cmd.Stdout(), cmd.Stderr())
			return app.Batch(ctx, options)
		}),
	)
}
