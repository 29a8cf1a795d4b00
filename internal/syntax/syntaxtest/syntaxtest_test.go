// That's right... how meta is this.
package syntaxtest_test

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"go.followtheprocess.codes/test"
	"go.followtheprocess.codes/uncurl/internal/syntax/syntaxtest"
)

func TestResolve(t *testing.T) {
	request := syntaxtest.Resolve(t, "test", `curl -d 'a=b' https://api.example.com/things`)

	test.Equal(t, request.Method, "POST")
	test.Equal(t, request.URL.String(), "https://api.example.com/things")
	test.Equal(t, request.Body.Kind.String(), "form")
}

func TestAllFilesWithExtension(t *testing.T) {
	cwd, err := os.Getwd()
	test.Ok(t, err)

	var results []string

	for file, err := range syntaxtest.AllFilesWithExtension(cwd, ".go") {
		test.Ok(t, err)

		results = append(results, file)
	}

	slices.Sort(results)

	want := []string{
		// Just the two files
		filepath.Join(cwd, "syntaxtest.go"),
		filepath.Join(cwd, "syntaxtest_test.go"),
	}

	test.EqualFunc(t, results, want, slices.Equal)
}

func TestAllFilesWithExtensionStopsEarly(t *testing.T) {
	cwd, err := os.Getwd()
	test.Ok(t, err)

	count := 0

	for _, err := range syntaxtest.AllFilesWithExtension(cwd, ".go") {
		test.Ok(t, err)

		count++

		break
	}

	test.Equal(t, count, 1)
}
