package convert

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Input is a single named curl command for [ConvertAll].
type Input struct {
	// Name identifies the command in warning and error positions e.g. its file path
	Name string

	// Text is the curl command
	Text string
}

// ConvertAll converts every curl command in inputs concurrently with the same
// options, returning the results in the same order as the inputs.
//
// A failed conversion is not an error, it is reported in its [Result] like
// [Convert] does. The only error ConvertAll returns is ctx's, in which case the
// results are discarded. Cancellation is checked between conversions, a single
// conversion is never interrupted.
func ConvertAll(ctx context.Context, inputs []string, options Options) ([]Result, error) {
	named := make([]Input, 0, len(inputs))
	for _, text := range inputs {
		named = append(named, Input{Text: text})
	}

	return ConvertAllNamed(ctx, named, options)
}

// ConvertAllNamed is like [ConvertAll] but each input carries its own name.
func ConvertAllNamed(ctx context.Context, inputs []Input, options Options) ([]Result, error) {
	results := make([]Result, len(inputs))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(runtime.GOMAXPROCS(0))

	for i, input := range inputs {
		if groupCtx.Err() != nil {
			break
		}

		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			name := input.Name
			if name == "" {
				name = DefaultName
			}

			// Each goroutine writes to its own index
			results[i] = ConvertNamed(name, input.Text, options)

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	// The group's context is always cancelled once Wait returns, only the
	// caller's says whether we were interrupted
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return results, nil
}
