package naming_test

import (
	"slices"
	"testing"

	"go.followtheprocess.codes/test"
	"go.followtheprocess.codes/uncurl/internal/naming"
)

func TestWords(t *testing.T) {
	tests := []struct {
		name  string   // Name of the test case
		input string   // Input string
		want  []string // Expected words
	}{
		{name: "empty", input: "", want: nil},
		{name: "header", input: "X-Api-Key", want: []string{"X", "Api", "Key"}},
		{name: "snake", input: "api_key", want: []string{"api", "key"}},
		{name: "camel", input: "userId", want: []string{"user", "Id"}},
		{name: "acronym", input: "HTTPServer", want: []string{"HTTP", "Server"}},
		{name: "digits", input: "v2Items", want: []string{"v2", "Items"}},
		{name: "only separators", input: "-_ .", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			test.EqualFunc(t, naming.Words(tt.input), tt.want, slices.Equal)
		})
	}
}

func TestConversions(t *testing.T) {
	tests := []struct {
		name      string // Name of the test case
		input     string // Input string
		pascal    string // Expected PascalCase
		camel     string // Expected camelCase
		snake     string // Expected snake_case
		screaming string // Expected SCREAMING_SNAKE_CASE
		kebab     string // Expected kebab-case
	}{
		{
			name:      "header",
			input:     "X-Api-Key",
			pascal:    "XApiKey",
			camel:     "xApiKey",
			snake:     "x_api_key",
			screaming: "X_API_KEY",
			kebab:     "x-api-key",
		},
		{
			name:      "json key",
			input:     "user_name",
			pascal:    "UserName",
			camel:     "userName",
			snake:     "user_name",
			screaming: "USER_NAME",
			kebab:     "user-name",
		},
		{
			name:      "acronym",
			input:     "HTTPStatus",
			pascal:    "HttpStatus",
			camel:     "httpStatus",
			snake:     "http_status",
			screaming: "HTTP_STATUS",
			kebab:     "http-status",
		},
		{
			name:      "empty",
			input:     "",
			pascal:    "",
			camel:     "",
			snake:     "",
			screaming: "",
			kebab:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			test.Equal(t, naming.Pascal(tt.input), tt.pascal, test.Context("Pascal"))
			test.Equal(t, naming.Camel(tt.input), tt.camel, test.Context("Camel"))
			test.Equal(t, naming.Snake(tt.input), tt.snake, test.Context("Snake"))
			test.Equal(t, naming.ScreamingSnake(tt.input), tt.screaming, test.Context("ScreamingSnake"))
			test.Equal(t, naming.Kebab(tt.input), tt.kebab, test.Context("Kebab"))
		})
	}
}

func TestIdentifier(t *testing.T) {
	test.Equal(t, naming.Identifier("", "Item"), "Item")
	test.Equal(t, naming.Identifier("2fa", "Field"), "Field2fa")
	test.Equal(t, naming.Identifier("name", "Field"), "name")
}

func TestSingular(t *testing.T) {
	tests := []struct {
		name  string // Name of the test case
		input string // Plural word
		want  string // Expected singular
	}{
		{name: "regular", input: "items", want: "item"},
		{name: "ies", input: "categories", want: "category"},
		{name: "ies upper", input: "CATEGORIES", want: "CATEGORY"},
		{name: "es", input: "addresses", want: "address"},
		{name: "ches", input: "matches", want: "match"},
		{name: "ss", input: "class", want: "class"},
		{name: "us", input: "status", want: "status"},
		{name: "already singular", input: "data", want: "data"},
		{name: "single letter", input: "s", want: "s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			test.Equal(t, naming.Singular(tt.input), tt.want)
		})
	}
}
