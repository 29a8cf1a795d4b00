package uncurl

import (
	"path/filepath"
	"testing"
	"time"

	"go.followtheprocess.codes/test"
	"go.followtheprocess.codes/uncurl/internal/codegen"
)

func TestConvertOptionsApply(t *testing.T) {
	defaults := codegen.DefaultOptions()

	// No overrides leaves everything alone
	test.Equal(t, ConvertOptions{}.apply(defaults), defaults)

	options := ConvertOptions{
		Language:      "python",
		ErrorHandling: "Comprehensive",
		Retry:         5,
		Indent:        4,
		Timeout:       2500 * time.Millisecond,
		NoAsync:       true,
		NoEnv:         true,
		NoTypes:       true,
		Logging:       true,
		NoComments:    true,
		Tabs:          true,
		InsecureOK:    true,
		Tests:         true,
	}

	got := options.apply(defaults)

	want := codegen.Options{
		Language:        "python",
		Framework:       "",
		ErrorHandling:   codegen.ErrorHandlingComprehensive,
		IndentType:      codegen.IndentTabs,
		RetryAttempts:   5,
		IndentSize:      4,
		Timeout:         2500,
		Async:           false,
		ExtractEnvVars:  false,
		IncludeTypes:    false,
		RetryLogic:      true,
		IncludeLogging:  true,
		IncludeComments: false,
		ValidateSSL:     false,
		IncludeTests:    true,
	}

	test.Equal(t, got, want)

	got = ConvertOptions{NoTimeout: true, Framework: "axios"}.apply(defaults)
	test.Equal(t, got.Timeout, 0)
	test.Equal(t, got.Framework, "axios")
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		name  string // Name of the test case
		input string // Input file
		ext   string // Extension of the generated code
		want  string // Expected output path
	}{
		{name: "curl", input: "users.curl", ext: ".py", want: "users.py"},
		{name: "nested", input: "api/v1/users.curl", ext: ".go", want: filepath.Join("api", "v1", "users.go")},
		{name: "shell to python", input: "users.sh", ext: ".py", want: "users.py"},
		{name: "shell to shell", input: "users.sh", ext: ".sh", want: "users.generated.sh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			test.Equal(t, outputPath(tt.input, tt.ext), tt.want)
		})
	}
}

func TestConvertOptionsValidate(t *testing.T) {
	test.Ok(t, ConvertOptions{}.Validate())
	test.Ok(t, ConvertOptions{From: "yaml", Indent: 8, Retry: 3}.Validate())
	test.Err(t, ConvertOptions{JSON: true, Interactive: true}.Validate())
	test.Err(t, ConvertOptions{Timeout: -time.Second}.Validate())
}
