package uncurl

import (
	"context"
	"io"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.followtheprocess.codes/uncurl/internal/mcpserver"
)

// ServeOptions are the options passed to the serve subcommand.
type ServeOptions struct {
	// Config is the path to a config file providing the default conversion options.
	Config string

	// Debug enables debug logging.
	Debug bool
}

// Serve implements the serve subcommand, running the MCP server over stdin and stdout
// until the client disconnects or ctx is cancelled.
//
// Logs go to stderr as stdout belongs to the protocol.
func (u Uncurl) Serve(ctx context.Context, options ServeOptions) error {
	logger := u.logger.Prefixed("serve")

	defaults, err := u.generationOptions(options.Config, ConvertOptions{})
	if err != nil {
		return err
	}

	logger.Debug(
		"Serving MCP over stdio",
		slog.String("version", u.version),
		slog.String("language", defaults.Language),
	)

	server := mcpserver.New(u.version, defaults, logger)

	return server.Run(ctx, &mcp.IOTransport{Reader: readCloser(u.stdin), Writer: writeCloser{u.stdout}})
}

// readCloser returns r as an [io.ReadCloser], closing it only if it already was one.
func readCloser(r io.Reader) io.ReadCloser {
	if rc, ok := r.(io.ReadCloser); ok {
		return rc
	}

	return io.NopCloser(r)
}

// writeCloser is an [io.WriteCloser] whose Close does nothing.
type writeCloser struct {
	io.Writer
}

// Close implements [io.Closer] for a writeCloser.
func (writeCloser) Close() error {
	return nil
}
