package uncurl_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.followtheprocess.codes/test"
	"go.followtheprocess.codes/uncurl/internal/uncurl"
	"go.uber.org/goleak"
)

// newApp returns an [uncurl.Uncurl] reading stdin from the given text and writing
// to the returned buffers.
func newApp(stdin string) (app uncurl.Uncurl, stdout, stderr *bytes.Buffer) {
	stdout = &bytes.Buffer{}
	stderr = &bytes.Buffer{}

	return uncurl.New(false, "test", strings.NewReader(stdin), stdout, stderr), stdout, stderr
}

// writeFile writes contents to name under dir, creating any parent directories.
func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	test.Ok(t, os.MkdirAll(filepath.Dir(path), 0o755))
	test.Ok(t, os.WriteFile(path, []byte(contents), 0o644))

	return path
}

func TestConvertStdin(t *testing.T) {
	t.Chdir(t.TempDir()) // Away from any config file

	app, stdout, stderr := newApp("curl https://api.example.com/users")

	err := app.Convert(t.Context(), uncurl.ConvertOptions{Path: "-", Language: "python"})
	test.Ok(t, err)

	test.True(t, strings.Contains(stdout.String(), "import requests"))
	test.Equal(t, stderr.String(), "")
}

func TestConvertDebug(t *testing.T) {
	t.Chdir(t.TempDir())

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	app := uncurl.New(true, "test", strings.NewReader("curl https://api.example.com/users"), stdout, stderr)

	err := app.Convert(t.Context(), uncurl.ConvertOptions{Path: "-", Language: "python"})
	test.Ok(t, err)

	test.True(t, strings.Contains(stdout.String(), "import requests"))
	test.True(t, strings.Contains(stderr.String(), "Convert configuration"), test.Context("no debug logs in:\n%s", stderr.String()))
	test.False(t, strings.Contains(stdout.String(), "Convert configuration"))
}

func TestConvertPastedText(t *testing.T) {
	t.Chdir(t.TempDir())

	app, stdout, _ := newApp("```\n$ curl https://api.example.com/users \\\n  -H 'Accept: application/json'\n```\n")

	err := app.Convert(t.Context(), uncurl.ConvertOptions{Path: "-", Language: "go"})
	test.Ok(t, err)

	test.True(t, strings.Contains(stdout.String(), "package main"))
	test.True(t, strings.Contains(stdout.String(), `"application/json"`))
}

func TestConvertFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := writeFile(t, dir, "login.curl", "curl -u admin:hunter2 https://api.example.com/login")
	output := filepath.Join(dir, "out", "login.py")
	envFile := filepath.Join(dir, ".env")

	app, stdout, stderr := newApp("")

	err := app.Convert(t.Context(), uncurl.ConvertOptions{
		Path:     path,
		Language: "python",
		Output:   output,
		EnvFile:  envFile,
	})
	test.Ok(t, err)

	code, err := os.ReadFile(output)
	test.Ok(t, err)
	test.False(t, strings.Contains(string(code), "hunter2"))

	env, err := os.ReadFile(envFile)
	test.Ok(t, err)
	test.True(t, strings.Contains(string(env), "hunter2"))

	test.True(t, strings.Contains(stdout.String(), output))
	test.True(t, strings.Contains(stderr.String(), envFile))
}

func TestConvertConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	writeFile(t, dir, ".uncurl.toml", "language = \"ruby\"\nincludeComments = false\n")

	app, stdout, _ := newApp("curl https://api.example.com/users")

	err := app.Convert(t.Context(), uncurl.ConvertOptions{Path: "-"})
	test.Ok(t, err)
	test.True(t, strings.Contains(stdout.String(), "require 'net/http'") || strings.Contains(stdout.String(), `require "net/http"`))

	// Flags win over the config file
	app, stdout, _ = newApp("curl https://api.example.com/users")

	err = app.Convert(t.Context(), uncurl.ConvertOptions{Path: "-", Language: "python"})
	test.Ok(t, err)
	test.True(t, strings.Contains(stdout.String(), "import requests"))
}

func TestConvertJSON(t *testing.T) {
	t.Chdir(t.TempDir())

	app, stdout, _ := newApp(`curl -H 'Content-Type: application/json' -d '{"name":"x"}' https://api.example.com/users`)

	err := app.Convert(t.Context(), uncurl.ConvertOptions{Path: "-", JSON: true})
	test.Ok(t, err)

	var result struct {
		ParsedCurl struct {
			Method string `json:"method"`
			Body   string `json:"body"`
		} `json:"parsedCurl"`
		GeneratedCode struct {
			Code string `json:"code"`
		} `json:"generatedCode"`
		Success bool `json:"success"`
	}

	test.Ok(t, json.Unmarshal(stdout.Bytes(), &result))

	test.True(t, result.Success)
	test.Equal(t, result.ParsedCurl.Method, "POST")
	test.Equal(t, result.ParsedCurl.Body, "json")
	test.True(t, result.GeneratedCode.Code != "")
}

func TestConvertJSONFailure(t *testing.T) {
	t.Chdir(t.TempDir())

	app, stdout, _ := newApp(`curl 'https://api.example.com`)

	err := app.Convert(t.Context(), uncurl.ConvertOptions{Path: "-", JSON: true})
	test.Err(t, err)

	// The failed result is still printed
	var result struct {
		Error   string `json:"error"`
		Success bool   `json:"success"`
	}

	test.Ok(t, json.Unmarshal(stdout.Bytes(), &result))
	test.False(t, result.Success)
	test.True(t, result.Error != "")
}

func TestConvertErrors(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name    string                // Name of the test case
		stdin   string                // Text on stdin
		options uncurl.ConvertOptions // Options to convert with
	}{
		{name: "empty", stdin: "", options: uncurl.ConvertOptions{Path: "-"}},
		{name: "not curl", stdin: "wget https://a.b", options: uncurl.ConvertOptions{Path: "-"}},
		{name: "unterminated quote", stdin: "curl 'https://a.b", options: uncurl.ConvertOptions{Path: "-"}},
		{name: "missing file", options: uncurl.ConvertOptions{Path: "missing.curl"}},
		{name: "unknown language", stdin: "curl https://a.b", options: uncurl.ConvertOptions{Path: "-", Language: "cobol"}},
		{name: "bad error handling", stdin: "curl https://a.b", options: uncurl.ConvertOptions{Path: "-", ErrorHandling: "loud"}},
		{name: "bad from", stdin: "{}", options: uncurl.ConvertOptions{Path: "-", From: "xml"}},
		{name: "bad indent", stdin: "curl https://a.b", options: uncurl.ConvertOptions{Path: "-", Indent: 9}},
		{name: "negative retry", stdin: "curl https://a.b", options: uncurl.ConvertOptions{Path: "-", Retry: -1}},
		{
			name:    "timeout and no timeout",
			stdin:   "curl https://a.b",
			options: uncurl.ConvertOptions{Path: "-", Timeout: 1, NoTimeout: true},
		},
		{
			name:    "interactive and language",
			stdin:   "curl https://a.b",
			options: uncurl.ConvertOptions{Path: "-", Interactive: true, Language: "go"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, stdout, _ := newApp(tt.stdin)

			err := app.Convert(t.Context(), tt.options)
			test.Err(t, err)
			test.Equal(t, stdout.String(), "")
		})
	}
}

func TestConvertWarnings(t *testing.T) {
	t.Chdir(t.TempDir())

	app, stdout, stderr := newApp("curl --frobnicate https://api.example.com")

	err := app.Convert(t.Context(), uncurl.ConvertOptions{Path: "-"})
	test.Ok(t, err)

	test.True(t, stdout.String() != "")
	test.True(t, strings.Contains(stderr.String(), "--frobnicate"))
}

func TestConvertFromJSON(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	app, stdout, _ := newApp(`curl -X PATCH -d '{"name":"x"}' https://api.example.com/users/1`)

	err := app.Inspect(t.Context(), uncurl.InspectOptions{Path: "-", Format: "json"})
	test.Ok(t, err)

	path := writeFile(t, dir, "request.json", stdout.String())

	app, stdout, _ = newApp("")

	err = app.Convert(t.Context(), uncurl.ConvertOptions{Path: path, From: "json", Language: "python"})
	test.Ok(t, err)

	test.True(t, strings.Contains(stdout.String(), `"PATCH"`))
}

func TestInspect(t *testing.T) {
	app, stdout, stderr := newApp(`curl -H 'Authorization: Bearer abc' https://api.example.com/users`)

	err := app.Inspect(t.Context(), uncurl.InspectOptions{Path: "-"})
	test.Ok(t, err)

	got := stdout.String()

	test.True(t, strings.HasPrefix(got, "GET https://api.example.com/users\n"))
	test.True(t, strings.Contains(got, "Authorization: Bearer abc\n"))
	test.True(t, strings.Contains(got, "auth: bearer\n"))
	test.True(t, strings.Contains(got, "body: none\n"))
	test.Equal(t, stderr.String(), "")
}

func TestInspectFormats(t *testing.T) {
	tests := []struct {
		format string // Export format
		want   string // Something the output must contain
	}{
		{format: "json", want: `"method": "DELETE"`},
		{format: "yaml", want: "method: DELETE"},
		{format: "toml", want: `method = "DELETE"`},
		{format: "postman", want: `"schema": "https://schema.getpostman.com/json/collection/v2.1.0/collection.json"`},
		{format: "curl", want: "curl -X DELETE"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			app, stdout, _ := newApp("curl -X DELETE https://api.example.com/users/1")

			err := app.Inspect(t.Context(), uncurl.InspectOptions{Path: "-", Format: tt.format})
			test.Ok(t, err)

			test.True(t, strings.Contains(stdout.String(), tt.want), test.Context("got:\n%s", stdout.String()))
		})
	}
}

func TestInspectBadFormat(t *testing.T) {
	app, _, _ := newApp("curl https://a.b")

	err := app.Inspect(t.Context(), uncurl.InspectOptions{Path: "-", Format: "har"})
	test.Err(t, err)
}

func TestLanguages(t *testing.T) {
	app, stdout, _ := newApp("")

	err := app.Languages(uncurl.LanguagesOptions{})
	test.Ok(t, err)

	got := stdout.String()
	for _, want := range []string{"LANGUAGE", "javascript", "net/http", "http-file", ".swift"} {
		test.True(t, strings.Contains(got, want), test.Context("missing %q", want))
	}

	app, stdout, _ = newApp("")

	err = app.Languages(uncurl.LanguagesOptions{JSON: true})
	test.Ok(t, err)

	var targets []struct {
		Language  string `json:"language"`
		Framework string `json:"framework"`
	}

	test.Ok(t, json.Unmarshal(stdout.Bytes(), &targets))
	test.Equal(t, targets[0].Language, "javascript")
	test.Equal(t, targets[0].Framework, "fetch")
}

func TestBatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	t.Chdir(dir)

	writeFile(t, dir, "users.curl", "curl https://api.example.com/users")
	writeFile(t, dir, "login.sh", "#!/bin/sh\ncurl -X POST https://api.example.com/login")
	writeFile(t, dir, "build.sh", "#!/bin/sh\ngo build ./...")
	writeFile(t, dir, "nested/orders.curl", "curl https://api.example.com/orders")
	writeFile(t, dir, "notes.txt", "curl https://ignored.example.com")

	app, stdout, stderr := newApp("")

	err := app.Batch(t.Context(), uncurl.BatchOptions{Path: ".", Language: "python"})
	test.Ok(t, err)

	for _, want := range []string{"users.py", "login.py", filepath.Join("nested", "orders.py")} {
		_, err := os.Stat(filepath.Join(dir, want))
		test.Ok(t, err, test.Context("%s was not written", want))
	}

	for _, unwanted := range []string{"build.py", "notes.py"} {
		_, err := os.Stat(filepath.Join(dir, unwanted))
		test.Err(t, err, test.Context("%s should not have been written", unwanted))
	}

	test.Equal(t, strings.Count(stdout.String(), "\n"), 3)
	test.Equal(t, stderr.String(), "")
}

func TestBatchShellDoesNotOverwrite(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	writeFile(t, dir, "users.sh", "curl https://api.example.com/users")

	app, _, _ := newApp("")

	err := app.Batch(t.Context(), uncurl.BatchOptions{Path: ".", Language: "shell"})
	test.Ok(t, err)

	original, err := os.ReadFile(filepath.Join(dir, "users.sh"))
	test.Ok(t, err)
	test.Equal(t, string(original), "curl https://api.example.com/users")

	_, err = os.Stat(filepath.Join(dir, "users.generated.sh"))
	test.Ok(t, err)
}

func TestBatchFailures(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	writeFile(t, dir, "good.curl", "curl https://api.example.com/users")
	writeFile(t, dir, "bad.curl", "curl 'https://api.example.com/users")

	app, stdout, stderr := newApp("")

	err := app.Batch(t.Context(), uncurl.BatchOptions{Path: "."})
	test.Err(t, err)

	_, err = os.Stat(filepath.Join(dir, "good.js"))
	test.Ok(t, err)

	test.True(t, strings.Contains(stdout.String(), "good.curl"))
	test.True(t, strings.Contains(stderr.String(), "bad.curl"))
}

func TestBatchNothingToConvert(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	writeFile(t, dir, "build.sh", "go build ./...")

	app, _, _ := newApp("")

	err := app.Batch(t.Context(), uncurl.BatchOptions{Path: "."})
	test.Err(t, err)
}
