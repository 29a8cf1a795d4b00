package uncurl

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.followtheprocess.codes/msg"
	"go.followtheprocess.codes/uncurl/convert"
	"golang.org/x/sync/errgroup"
)

// batchExtensions are the file extensions the batch subcommand picks up.
//
//nolint:gochecknoglobals // Effectively a constant
var batchExtensions = []string{".curl", ".sh"}

// BatchOptions are the options passed to the batch subcommand.
type BatchOptions struct {
	// Path is the path (file or directory) to convert.
	Path string

	// Config is the path to a config file, empty uses .uncurl.toml if present.
	Config string

	// Language is the target language.
	Language string

	// Framework is the target framework.
	Framework string

	// Debug enables debug logging.
	Debug bool
}

// Batch implements the batch subcommand, converting every curl command under a path
// and writing the code next to each one.
func (u Uncurl) Batch(ctx context.Context, options BatchOptions) error {
	logger := u.logger.Prefixed("batch").With(slog.String("path", options.Path))
	logger.Debug("Converting path")

	generation, err := u.generationOptions(options.Config, ConvertOptions{
		Language:  options.Language,
		Framework: options.Framework,
	})
	if err != nil {
		return err
	}

	paths, err := collect(options.Path)
	if err != nil {
		return err
	}

	logger.Debug("Reading files given by path", slog.Int("number", len(paths)))

	inputs := make([]convert.Input, len(paths))
	group, groupCtx := errgroup.WithContext(ctx)

	for i, path := range paths {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			contents, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("could not read %s: %w", path, err)
			}

			inputs[i] = convert.Input{Name: filepath.ToSlash(path), Text: string(contents)}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}

	// Shell scripts are only picked up if they're a curl command, .curl files always are
	var toConvert []convert.Input

	for _, input := range inputs {
		normalised, ok := convert.DetectAndNormalize(input.Text)
		if !ok && filepath.Ext(input.Name) != ".curl" {
			logger.Debug("Skipping file that isn't a curl command", slog.String("file", input.Name))
			continue
		}

		if ok {
			input.Text = normalised
		}

		toConvert = append(toConvert, input)
	}

	if len(toConvert) == 0 {
		return fmt.Errorf("no curl commands found in %s", options.Path)
	}

	results, err := convert.ConvertAllNamed(ctx, toConvert, generation)
	if err != nil {
		return err
	}

	failed := 0

	for i, result := range results {
		input := toConvert[i].Name

		if !result.Success {
			failed++

			msg.Ferror(u.stderr, "%s: %v", input, result.Err())

			continue
		}

		for _, warning := range result.Warnings {
			msg.Fwarn(u.stderr, "%s", warning)
		}

		output := outputPath(input, result.GeneratedCode.FileExtension)
		if err := write(output, result.GeneratedCode.Code); err != nil {
			return err
		}

		msg.Fsuccess(u.stdout, "%s -> %s", input, output)
	}

	if failed != 0 {
		return fmt.Errorf("%d of %d curl commands could not be converted", failed, len(results))
	}

	return nil
}

// collect returns the paths of the files to convert under path, which may be a
// single file or a directory that is walked recursively.
func collect(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("could not get path info: %w", err)
	}

	if !info.IsDir() {
		return []string{path}, nil
	}

	var paths []string

	err = filepath.WalkDir(path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() && slices.Contains(batchExtensions, filepath.Ext(path)) {
			paths = append(paths, path)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not walk %s: %w", path, err)
	}

	return paths, nil
}

// outputPath returns the path to write the code converted from input to.
//
// It's input with its extension swapped for ext, unless that would overwrite the
// input itself.
func outputPath(input, ext string) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))

	output := base + ext
	if output == input {
		output = base + ".generated" + ext
	}

	return filepath.FromSlash(output)
}
