package uncurl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.followtheprocess.codes/hue"
	"go.followtheprocess.codes/msg"
	"go.followtheprocess.codes/uncurl/convert"
	"go.followtheprocess.codes/uncurl/internal/format"
)

// InspectOptions are the flags passed to the inspect subcommand.
type InspectOptions struct {
	// Path is the file containing the curl command, "-" reads stdin.
	Path string

	// Format is the format to print the request in e.g. json, postman etc. Empty
	// prints a human readable summary.
	Format string

	// Debug controls debug logging.
	Debug bool
}

// Validate reports whether the InspectOptions is valid, returning a non-nil
// error if it's not.
func (i InspectOptions) Validate() error {
	if i.Format == "" {
		return nil
	}

	_, err := format.ExporterFor(i.Format)
	if err != nil {
		return fmt.Errorf("invalid option for --format: %w", err)
	}

	return nil
}

// Inspect handles the inspect subcommand.
func (u Uncurl) Inspect(ctx context.Context, options InspectOptions) error {
	logger := u.logger.Prefixed("inspect").With(slog.String("path", options.Path))
	logger.Debug("Inspect configuration", slog.String("options", fmt.Sprintf("%+v", options)))

	if err := options.Validate(); err != nil {
		return err
	}

	name, text, err := u.readCurl(options.Path)
	if err != nil {
		return err
	}

	start := time.Now()

	request, warnings, err := convert.Parse(name, text)
	if err != nil {
		return fmt.Errorf("could not parse %s: %w", name, err)
	}

	logger.Debug("Parsed curl command", slog.Int("warnings", len(warnings)), slog.Duration("took", time.Since(start)))

	for _, warning := range warnings {
		msg.Fwarn(u.stderr, "%s", warning)
	}

	if options.Format == "" {
		u.showSummary(convert.Summarise(request))
		return nil
	}

	exporter, err := format.ExporterFor(options.Format)
	if err != nil {
		return err
	}

	logger.Debug("Exporting request", slog.String("format", options.Format))

	if err := exporter.Export(u.stdout, request); err != nil {
		return fmt.Errorf("could not export request as %s: %w", options.Format, err)
	}

	return nil
}

// showSummary prints a human readable summary of a request.
func (u Uncurl) showSummary(summary convert.Summary) {
	fmt.Fprintf(u.stdout, "%s %s\n", hue.Bold.Text(summary.Method), summary.URL)

	for _, header := range summary.Headers {
		fmt.Fprintf(u.stdout, "%s: %s\n", headerKeyStyle.Text(header.Name), header.Value)
	}

	fmt.Fprintln(u.stdout)
	fmt.Fprintf(u.stdout, "%s %s\n", dimmed.Text("auth:"), summary.Auth)
	fmt.Fprintf(u.stdout, "%s %s\n", dimmed.Text("body:"), summary.Body)

	if summary.ContentType != "" {
		fmt.Fprintf(u.stdout, "%s %s\n", dimmed.Text("content type:"), summary.ContentType)
	}
}
