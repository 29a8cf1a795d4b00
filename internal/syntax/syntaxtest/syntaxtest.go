// Package syntaxtest provides syntax level test utilities.
package syntaxtest

import (
	"io/fs"
	"iter"
	"path/filepath"
	"testing"

	"go.followtheprocess.codes/uncurl/internal/spec"
	"go.followtheprocess.codes/uncurl/internal/syntax/parser"
	"go.followtheprocess.codes/uncurl/internal/syntax/resolver"
)

// Resolve parses and resolves the curl command src, failing the test if it
// cannot be parsed.
//
// Non-fatal diagnostics are ignored, tests that care about them should drive
// the parser and resolver directly.
func Resolve(tb testing.TB, name, src string) spec.Request {
	tb.Helper()

	p := parser.New(name, []byte(src))

	cmd, err := p.Parse()
	if err != nil {
		tb.Fatalf("could not parse %s: %v", name, err)
	}

	return resolver.New(name, p.Source()).Resolve(cmd)
}

// AllFilesWithExtension returns an iterator over all filepaths under
// root with the matching extension, recursively.
//
// A call to AllFilesWithExtension like this:
//
//	for file, err := range AllFilesWithExtension("testdata", ".txtar") {
//	    // Loop body
//	}
//
// Is roughly equivalent to the following in bash:
//
//	for file in testdata/**/*.txtar; do { # stuff }; done
func AllFilesWithExtension(root, ext string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				yield("", walkErr)
				return walkErr
			}

			if d.Type().IsRegular() && filepath.Ext(d.Name()) == ext {
				if !yield(path, nil) {
					return fs.SkipAll
				}
			}

			return nil
		})
		// handle the error returned by WalkDir itself
		if err != nil {
			yield("", err)
		}
	}
}
