package convert_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"go.followtheprocess.codes/test"
	"go.followtheprocess.codes/uncurl/convert"
	"go.followtheprocess.codes/uncurl/internal/errs"
	"go.uber.org/goleak"
)

func TestConvertEveryTarget(t *testing.T) {
	test.ColorEnabled(os.Getenv("CI") == "")

	for _, target := range convert.Supported() {
		t.Run(target.String(), func(t *testing.T) {
			options := convert.DefaultOptions()
			options.Language = target.Language
			options.Framework = target.Framework

			result := convert.Convert("curl https://a.b/c", options)
			test.True(t, result.Success, test.Context("conversion failed: %s", result.Error))
			test.Ok(t, result.Err())
			test.True(t, strings.TrimSpace(result.GeneratedCode.Code) != "")
			test.Equal(t, result.GeneratedCode.FileExtension, target.Extension)
		})
	}
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name    string   // Name of the test case
		src     string   // The curl command
		method  string   // Expected method
		body    string   // Expected body kind
		auth    string   // Expected auth kind
		headers []string // Expected header names, in order
	}{
		{
			name:   "get",
			src:    "curl https://a.b/c",
			method: "GET",
			body:   "none",
			auth:   "none",
		},
		{
			name:   "json data",
			src:    `curl -d '{"x":1}' https://a.b/c`,
			method: "POST",
			body:   "json",
			auth:   "none",
		},
		{
			name:    "headers without data",
			src:     `curl -H "X-Api-Key: abc123" -H "Content-Type: application/json" https://a.b/c`,
			method:  "GET",
			body:    "none",
			auth:    "none",
			headers: []string{"X-Api-Key", "Content-Type"},
		},
		{
			name:   "basic auth",
			src:    "curl -u alice:secret https://a.b",
			method: "GET",
			body:   "none",
			auth:   "basic",
		},
		{
			name:    "bearer header",
			src:     `curl -H "Authorization: Bearer tok" https://a.b`,
			method:  "GET",
			body:    "none",
			auth:    "bearer",
			headers: []string{"Authorization"},
		},
		{
			name:   "form",
			src:    "curl -d a=1 -d b=2 https://a.b",
			method: "POST",
			body:   "form",
			auth:   "none",
		},
		{
			name:   "multipart",
			src:    "curl -F name=x -F file=@photo.png https://a.b",
			method: "POST",
			body:   "multipart",
			auth:   "none",
		},
		{
			name:   "explicit method",
			src:    `curl -X PUT -d '{"x":1}' https://a.b`,
			method: "PUT",
			body:   "json",
			auth:   "none",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := convert.Convert(tt.src, convert.DefaultOptions())
			test.True(t, result.Success, test.Context("conversion failed: %s", result.Error))

			summary := result.ParsedCurl
			test.Equal(t, summary.Method, tt.method)
			test.Equal(t, summary.Body, tt.body)
			test.Equal(t, summary.Auth, tt.auth)

			var names []string
			for _, header := range summary.Headers {
				names = append(names, header.Name)
			}

			test.Equal(t, strings.Join(names, ","), strings.Join(tt.headers, ","))
		})
	}
}

func TestConvertExtractsBasicPassword(t *testing.T) {
	options := convert.DefaultOptions()
	options.ExtractEnvVars = true

	result := convert.Convert("curl -u alice:secret https://a.b", options)
	test.True(t, result.Success, test.Context("conversion failed: %s", result.Error))

	test.Equal(t, result.ParsedCurl.Auth, "basic")
	test.False(t, strings.Contains(result.GeneratedCode.Code, "secret"), test.Context("password leaked into code"))
	test.Equal(t, len(result.GeneratedCode.EnvVars), 1)

	for _, value := range result.GeneratedCode.EnvVars {
		test.Equal(t, value, "secret")
	}
}

func TestConvertErrors(t *testing.T) {
	tests := []struct {
		sentinel error  // The sentinel the error should match
		name     string // Name of the test case
		src      string // The curl command
		language string // Target language
		contains string // Substring of the error message
	}{
		{
			name:     "missing header value",
			src:      "curl -H",
			sentinel: errs.ErrParse,
			contains: "header",
		},
		{
			name:     "unterminated quote",
			src:      `curl -d '{"x":1} https://a.b`,
			sentinel: errs.ErrParse,
			contains: "input:1",
		},
		{
			name:     "empty",
			src:      "   \n\t ",
			sentinel: errs.ErrParse,
			contains: "no curl command",
		},
		{
			name:     "too big",
			src:      "curl https://a.b -d " + strings.Repeat("x", 1<<20),
			sentinel: errs.ErrParse,
			contains: "maximum",
		},
		{
			name:     "unsupported language",
			src:      "curl https://a.b",
			language: "cobol",
			sentinel: errs.ErrConfig,
			contains: "cobol",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			options := convert.DefaultOptions()
			if tt.language != "" {
				options = options.WithLanguage(tt.language)
			}

			result := convert.Convert(tt.src, options)
			test.False(t, result.Success)

			// No partial state
			test.True(t, result.ParsedCurl == nil)
			test.True(t, result.GeneratedCode == nil)
			test.Equal(t, len(result.Warnings), 0)

			test.True(t, errors.Is(result.Err(), tt.sentinel), test.Context("wrong error: %v", result.Err()))
			test.True(
				t,
				strings.Contains(result.Error, tt.contains),
				test.Context("error %q does not contain %q", result.Error, tt.contains),
			)
		})
	}
}

func TestConvertMissingFlagValueKind(t *testing.T) {
	result := convert.Convert("curl https://a.b -H", convert.DefaultOptions())
	test.False(t, result.Success)

	var parseErr *errs.ParseError

	test.True(t, errors.As(result.Err(), &parseErr))
	test.Equal(t, parseErr.Kind, errs.MissingFlagValue)
	test.Equal(t, parseErr.Flag, "-H")
}

func TestConvertUnknownFlagIsAWarning(t *testing.T) {
	result := convert.Convert("curl --fake-flag https://a.b/c", convert.DefaultOptions())
	test.True(t, result.Success, test.Context("conversion failed: %s", result.Error))
	test.Equal(t, result.ParsedCurl.URL, "https://a.b/c")

	var found bool

	for _, warning := range result.Warnings {
		if strings.Contains(warning.Msg, "--fake-flag") {
			found = true

			test.True(t, strings.HasPrefix(warning.Position, "input:1:"), test.Context("bad position %q", warning.Position))
		}
	}

	test.True(t, found, test.Context("no warning for --fake-flag in %v", result.Warnings))
}

func TestConvertContinuations(t *testing.T) {
	single := convert.Convert(`curl -X POST -H "Accept: text/plain" -d 'a=1' https://a.b/c`, convert.DefaultOptions())
	multi := convert.Convert("curl -X POST \\\n  -H \"Accept: text/plain\" \\\n  -d 'a=1' \\\n  https://a.b/c", convert.DefaultOptions())

	test.True(t, single.Success)
	test.True(t, multi.Success)

	test.Equal(t, multi.ParsedCurl.Method, single.ParsedCurl.Method)
	test.Diff(t, multi.GeneratedCode.Code, single.GeneratedCode.Code)
}

func TestConvertNamed(t *testing.T) {
	result := convert.ConvertNamed("request.curl", "curl --fake https://a.b", convert.DefaultOptions())
	test.True(t, result.Success)
	test.True(t, len(result.Warnings) != 0)
	test.True(t, strings.HasPrefix(result.Warnings[0].Position, "request.curl:"))
}

func TestConvertWithLanguage(t *testing.T) {
	for _, language := range []string{"python", "ruby", "go", "shell"} {
		t.Run(language, func(t *testing.T) {
			result := convert.Convert("curl https://a.b/c", convert.DefaultOptions().WithLanguage(language))
			test.True(t, result.Success, test.Context("conversion failed: %s", result.Error))
		})
	}

	// The default framework is fetch, which python doesn't have
	options := convert.DefaultOptions()
	options.Language = "python"

	result := convert.Convert("curl https://a.b/c", options)
	test.False(t, result.Success)

	var configErr *errs.ConfigError
	test.True(t, errors.As(result.Err(), &configErr), test.Context("error %T was not a *errs.ConfigError", result.Err()))
	test.Equal(t, configErr.Kind, errs.UnsupportedFramework)
}

func TestParseArgumentLooksLikeFlag(t *testing.T) {
	request, warnings, err := convert.Parse("test", "curl -d '--name=alice' -H 'X-Note: --x=y' https://a.b/c")
	test.Ok(t, err)

	test.Equal(t, len(warnings), 0, test.Context("warnings: %v", warnings))
	test.Equal(t, request.Body.Payload, "--name=alice")
	test.Equal(t, request.URL.String(), "https://a.b/c")

	note, ok := request.Headers.Get("X-Note")
	test.True(t, ok)
	test.Equal(t, note, "--x=y")
}

func TestConvertRequest(t *testing.T) {
	request, warnings, err := convert.Parse(convert.DefaultName, `curl -X PUT -d '{"a":1}' https://a.b/items/1`)
	test.Ok(t, err)
	test.Equal(t, len(warnings), 0)

	fromText := convert.Convert(`curl -X PUT -d '{"a":1}' https://a.b/items/1`, convert.DefaultOptions())
	fromRequest := convert.ConvertRequest(request, convert.DefaultOptions())

	test.True(t, fromRequest.Success)
	test.Equal(t, fromRequest.ParsedCurl.Method, "PUT")
	test.Diff(t, fromRequest.GeneratedCode.Code, fromText.GeneratedCode.Code)

	options := convert.DefaultOptions().WithLanguage("cobol")

	failed := convert.ConvertRequest(request, options)
	test.False(t, failed.Success)
	test.True(t, errors.Is(failed.Err(), errs.ErrConfig))
}

func TestWarningString(t *testing.T) {
	test.Equal(t, convert.Warning{Msg: "boom"}.String(), "boom")
	test.Equal(t, convert.Warning{Msg: "boom", Position: "input:1:2"}.String(), "input:1:2: boom")
}

func TestDetectAndNormalize(t *testing.T) {
	tests := []struct {
		name string // Name of the test case
		in   string // Pasted text
		want string // Expected normalised command
		ok   bool   // Expected ok
	}{
		{name: "empty", in: "", want: "", ok: false},
		{name: "whitespace", in: " \n\t", want: "", ok: false},
		{name: "plain", in: "curl https://a.b", want: "curl https://a.b", ok: true},
		{name: "prompt", in: "$ curl https://a.b", want: "curl https://a.b", ok: true},
		{name: "smart quotes", in: "curl -H “A: b” https://a.b", want: `curl -H "A: b" https://a.b`, ok: true},
		{name: "crlf continuation", in: "curl \\\r\n  https://a.b", want: "curl   https://a.b", ok: true},
		{name: "no curl url", in: "https://a.b/c", want: "curl https://a.b/c", ok: true},
		{name: "no curl flags", in: "-X POST https://a.b", want: "curl -X POST https://a.b", ok: true},
		{name: "path to curl", in: "/usr/bin/curl https://a.b", want: "/usr/bin/curl https://a.b", ok: true},
		{name: "prose", in: "hello there", want: "", ok: false},
		{name: "wget", in: "wget https://a.b", want: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := convert.DetectAndNormalize(tt.in)
			test.Equal(t, ok, tt.ok)
			test.Equal(t, got, tt.want)
		})
	}
}

func TestDetectAndNormalizeIdempotent(t *testing.T) {
	once, ok := convert.DetectAndNormalize("$ curl ‘https://a.b’ \\\n -d x=1;")
	test.True(t, ok)

	twice, ok := convert.DetectAndNormalize(once)
	test.True(t, ok)
	test.Equal(t, twice, once)
}

func TestConvertAll(t *testing.T) {
	defer goleak.VerifyNone(t)

	inputs := []string{
		"curl https://a.b/one",
		"curl -H",
		`curl -d '{"x":1}' https://a.b/two`,
		"",
		"curl https://a.b/three",
	}

	results, err := convert.ConvertAll(t.Context(), inputs, convert.DefaultOptions())
	test.Ok(t, err)
	test.Equal(t, len(results), len(inputs))

	test.True(t, results[0].Success)
	test.False(t, results[1].Success)
	test.True(t, results[2].Success)
	test.False(t, results[3].Success)
	test.True(t, results[4].Success)

	// Order is preserved
	test.True(t, strings.HasSuffix(results[0].ParsedCurl.URL, "/one"))
	test.Equal(t, results[2].ParsedCurl.Method, "POST")
	test.True(t, strings.HasSuffix(results[4].ParsedCurl.URL, "/three"))

	// Same as converting one at a time
	single := convert.Convert(inputs[2], convert.DefaultOptions())
	test.Diff(t, results[2].GeneratedCode.Code, single.GeneratedCode.Code)
}

func TestConvertAllCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	results, err := convert.ConvertAll(ctx, []string{"curl https://a.b"}, convert.DefaultOptions())
	test.Err(t, err)
	test.True(t, errors.Is(err, context.Canceled))
	test.Equal(t, len(results), 0)
}

func TestConvertAllNamed(t *testing.T) {
	defer goleak.VerifyNone(t)

	inputs := []convert.Input{
		{Name: "a.curl", Text: "curl --nope https://a.b"},
		{Text: "curl --nope https://a.b"},
	}

	results, err := convert.ConvertAllNamed(t.Context(), inputs, convert.DefaultOptions())
	test.Ok(t, err)

	test.True(t, strings.HasPrefix(results[0].Warnings[0].Position, "a.curl:"))
	test.True(t, strings.HasPrefix(results[1].Warnings[0].Position, convert.DefaultName+":"))
}

func BenchmarkConvert(b *testing.B) {
	src := `curl -X POST https://api.example.com/v1/items \
  -H "Authorization: Bearer abc123" \
  -H "Content-Type: application/json" \
  -d '{"name": "widget", "tags": ["a", "b"], "price": 9.99, "stock": {"count": 3}}'`

	options := convert.DefaultOptions().WithLanguage("go")

	for b.Loop() {
		result := convert.Convert(src, options)
		if !result.Success {
			b.Fatalf("conversion failed: %s", result.Error)
		}
	}
}
