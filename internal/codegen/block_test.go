package codegen

import (
	"slices"
	"testing"

	"go.followtheprocess.codes/test"
	"go.followtheprocess.codes/uncurl/internal/codegen/shape"
	"go.followtheprocess.codes/uncurl/internal/envvars"
)

func TestRender(t *testing.T) {
	w := newWriter("#")
	w.note("intro")
	w.blank()
	w.blank()
	w.open("def f():")
	w.line("return %d", 1)
	w.close("")
	w.line("f()   ")

	options := DefaultOptions()
	options.IndentSize = 4

	test.Diff(t, render(w.Block(), options), "# intro\n\ndef f():\n    return 1\n\nf()\n")

	options.IncludeComments = false
	options.IndentType = IndentTabs

	test.Diff(t, render(w.Block(), options), "def f():\n\treturn 1\n\nf()\n")
}

func TestJoin(t *testing.T) {
	a := Block{{Text: "a"}}
	b := Block{{Text: "b"}}

	got := join(a, nil, Block{}, b)

	test.Equal(t, len(got), 3)
	test.Equal(t, got[0].Text, "a")
	test.True(t, got[1].Text == "")
	test.Equal(t, got[2].Text, "b")
}

func TestBlockIndent(t *testing.T) {
	b := Block{{Text: "x", Depth: 1}, {}}

	indented := b.Indent(2)

	test.Equal(t, indented[0].Depth, 3)
	test.Equal(t, b[0].Depth, 1) // Original untouched
}

func TestBlockIsEmpty(t *testing.T) {
	test.True(t, Block{}.IsEmpty())
	test.True(t, Block{{}, {Text: "  "}}.IsEmpty())
	test.True(t, Block{{Text: "// note", Comment: true}}.IsEmpty())
	test.False(t, Block{{Text: "x"}}.IsEmpty())
}

func TestFunctionBlock(t *testing.T) {
	f := function{
		Open:    Block{{Text: "class A {"}, {Text: "void f() {", Depth: 1}},
		Build:   Block{{Text: "build"}},
		Execute: Block{{Text: "execute"}},
		Close:   Block{{Text: "}", Depth: 1}, {Text: "}"}},
		Guard: func(body Block) Block {
			out := Block{{Text: "try {"}}
			out = append(out, body.Indent(1)...)

			return append(out, Line{Text: "} catch {}"})
		},
	}

	got := render(f.Block(), DefaultOptions())
	want := "class A {\n  void f() {\n    try {\n      build\n\n      execute\n    } catch {}\n  }\n}\n"

	test.Diff(t, got, want)
}

func TestWriterCont(t *testing.T) {
	w := newWriter("//")
	w.open("f(")
	w.line("a,")
	w.cont("b")
	w.close(")")

	test.Diff(t, render(w.Block(), DefaultOptions()), "f(\n  a,\n      b\n)\n")
}

func TestQuoting(t *testing.T) {
	tests := []struct {
		name  string  // Name of the test case
		in    string  // String to quote
		want  string  // Expected literal
		style quoting // Quoting style
	}{
		{name: "c plain", style: cQuote, in: "abc", want: `"abc"`},
		{name: "c escapes", style: cQuote, in: "a\"b\\c\nd\te", want: `"a\"b\\c\nd\te"`},
		{name: "c control", style: cQuote, in: "\x01", want: `"\u0001"`},
		{name: "kotlin dollar", style: kotlinQuote, in: "$x", want: `"\$x"`},
		{name: "ruby hash", style: rubyQuote, in: "#{x}", want: `"\#{x}"`},
		{name: "rust control", style: rustQuote, in: "\x01", want: `"\u{1}"`},
		{name: "php dollar", style: phpQuote, in: "$x", want: `"\$x"`},
		{name: "dart single", style: dartQuote, in: "it's $x", want: `'it\'s \$x'`},
		{name: "shell single", style: shellQuote, in: "it's", want: `'it'\''s'`},
		{name: "shell double", style: shellDoubleQuote, in: "$HOME `x`", want: "\"\\$HOME \\`x\\`\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			test.Equal(t, tt.style.quote(tt.in), tt.want)
		})
	}
}

func TestShellWord(t *testing.T) {
	test.Equal(t, shellWord("--silent"), "--silent")
	test.Equal(t, shellWord("https://a.b/c"), "https://a.b/c")
	test.Equal(t, shellWord("a b"), "'a b'")
	test.Equal(t, shellWord(""), "''")
	test.Equal(t, shellWord("a&b"), "'a&b'")
}

func TestConcat(t *testing.T) {
	env := func(name string) string { return "env(" + name + ")" }

	value := envvars.Value{{Text: "Bearer "}, {Env: "AUTH_TOKEN"}}

	test.Equal(t, concat(value, cQuote, env, " + "), `"Bearer " + env(AUTH_TOKEN)`)
	test.Equal(t, concat(envvars.Literal("x"), cQuote, env, " + "), `"x"`)
	test.Equal(t, concat(nil, cQuote, env, " + "), `""`)
	test.Equal(t, concat(envvars.Env("A"), cQuote, env, " . "), "env(A)")
}

func TestDynamicLiteral(t *testing.T) {
	node, err := shape.Parse(`{"a":[1,true,null],"b":{},"c":"x"}`)
	test.Ok(t, err)

	got := render(pythonLiteral.block(node, "payload = ", ""), DefaultOptions())
	want := "payload = {\n  \"a\": [\n    1,\n    True,\n    None,\n  ],\n  \"b\": {},\n  \"c\": \"x\",\n}\n"

	test.Diff(t, got, want)

	got = render(jsonLiteral.block(node, "", ";"), DefaultOptions())
	want = "{\n  \"a\": [\n    1,\n    true,\n    null\n  ],\n  \"b\": {},\n  \"c\": \"x\"\n};\n"

	test.Diff(t, got, want)
}

func TestFormatSeconds(t *testing.T) {
	test.Equal(t, formatSeconds(30000), "30")
	test.Equal(t, formatSeconds(2500), "2.5")
	test.Equal(t, formatSeconds(1), "0.001")
}

func TestFieldNames(t *testing.T) {
	s := shape.StructType{
		Name: "X",
		Fields: []shape.StructField{
			{Key: "user-id"},
			{Key: "user_id"},
			{Key: ""},
		},
	}

	got := fieldNames(s, "field", func(key string) string {
		if key == "" {
			return ""
		}

		return "userId"
	})

	test.EqualFunc(t, got, []string{"userId", "userId2", "field"}, slices.Equal)
}
