package cmd

import (
	"context"

	"go.followtheprocess.codes/cli"
	"go.followtheprocess.codes/cli/flag"
	"go.followtheprocess.codes/uncurl/internal/uncurl"
)

const convertLong = `
The curl command is read from the file given by path, or from stdin if
path is '-' or omitted. Text pasted from a browser, a chat message or a
markdown document is cleaned up first: smart quotes, shell prompts, code
fences and Windows line continuations are all handled.

Generation options are taken from the defaults, then a config file
('--config', or .uncurl.toml in the current directory if present), then
UNCURL_* environment variables and finally the command line flags, each
overriding the last.

Secrets like bearer tokens and passwords are moved into environment
variables unless '--no-env' is given, pass '--env-file' to save their
values as a dotenv file.
`

// convert returns the convert subcommand.
func convert() (*cli.Command, error) {
	var options uncurl.ConvertOptions

	return cli.New(
		"convert",
		cli.Short("Convert a curl command into code"),
		cli.Long(convertLong),
		cli.Arg(&options.Path, "path", "File containing the curl command, '-' for stdin", cli.ArgDefault("-")),
		cli.Flag(&options.Language, "language", 'l', "Target language e.g. python, go, typescript"),
		cli.Flag(&options.Framework, "framework", 'f', "HTTP library to use, defaults to the language's first"),
		cli.Flag(
			&options.ErrorHandling,
			"error-handling",
			flag.NoShortHand,
			"Error handling strategy, one of (none|basic|comprehensive)",
		),
		cli.Flag(&options.Retry, "retry", flag.NoShortHand, "Retry failed requests, making this many attempts"),
		cli.Flag(&options.Indent, "indent", flag.NoShortHand, "Indent size, 1 to 8"),
		cli.Flag(&options.Tabs, "tabs", flag.NoShortHand, "Indent with tabs"),
		cli.Flag(&options.Timeout, "timeout", flag.NoShortHand, "Default request timeout when the command doesn't set one"),
		cli.Flag(&options.NoTimeout, "no-timeout", flag.NoShortHand, "Don't set a default request timeout"),
		cli.Flag(&options.NoAsync, "no-async", flag.NoShortHand, "Generate blocking code where the target has a choice"),
		cli.Flag(&options.NoEnv, "no-env", flag.NoShortHand, "Keep secrets inline instead of in environment variables"),
		cli.Flag(&options.NoTypes, "no-types", flag.NoShortHand, "Don't generate model types for a JSON body"),
		cli.Flag(&options.Logging, "logging", flag.NoShortHand, "Log the request and response"),
		cli.Flag(&options.NoComments, "no-comments", flag.NoShortHand, "Strip explanatory comments"),
		cli.Flag(&options.InsecureOK, "insecure-ok", flag.NoShortHand, "Skip TLS certificate verification"),
		cli.Flag(&options.Tests, "tests", flag.NoShortHand, "Generate a test file where the target supports it"),
		cli.Flag(&options.Output, "output", 'o', "File to write the code to"),
		cli.Flag(&options.EnvFile, "env-file", flag.NoShortHand, "File to write extracted environment variables to"),
		cli.Flag(&options.From, "from", flag.NoShortHand, "Read a request exported by inspect, one of (json|yaml)"),
		cli.Flag(&options.Config, "config", 'c', "Path to a config file"),
		cli.Flag(&options.Interactive, "interactive", 'i', "Pick the language and framework interactively"),
		cli.Flag(&options.JSON, "json", 'j', "Print the whole conversion result as JSON"),
		cli.Flag(&options.Debug, "debug", 'd', "Enable debug logging"),
		cli.Run(func(ctx context.Context, cmd *cli.Command) error {
			app := uncurl.New(options.Debug, version, cmd.Stdin(), cmd.Stdout(), cmd.Stderr())
			return app.Convert(ctx, options)
		}),
	)
}
