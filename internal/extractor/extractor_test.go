package extractor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuzzlens/internal/ir"
)

func extract(t *testing.T, lang, name string) *ir.SourceFile {
	t.Helper()
	ext, err := NewExtractor(lang, Options{})
	require.NoError(t, err)
	sf, err := ext.ExtractFromFile(context.Background(), filepath.Join("testdata", name))
	require.NoError(t, err)
	return sf
}

func byName(sf *ir.SourceFile) map[string]*ir.Function {
	out := make(map[string]*ir.Function)
	for _, fn := range sf.Functions {
		out[fn.Name] = fn
	}
	return out
}

func callees(fn *ir.Function) []string {
	var out []string
	for _, c := range fn.Calls {
		out = append(out, c.Callee)
	}
	return out
}

func TestExtractor_C(t *testing.T) {
	sf := extract(t, "c", "sample.c")
	fns := byName(sf)

	t.Run("Functions in declaration order", func(t *testing.T) {
		var names []string
		for _, fn := range sf.Functions {
			names = append(names, fn.Name)
		}
		assert.Equal(t, []string{"helper", "parse_header", "LLVMFuzzerTestOneInput"}, names)
	})

	t.Run("Static linkage", func(t *testing.T) {
		assert.Equal(t, ir.VisibilityStatic, fns["helper"].Visibility)
		assert.True(t, fns["helper"].Restricted())
		assert.Equal(t, ir.VisibilityDefault, fns["parse_header"].Visibility)
	})

	t.Run("Span and params", func(t *testing.T) {
		fn := fns["parse_header"]
		assert.Equal(t, 8, fn.StartLine)
		assert.Equal(t, 14, fn.EndLine)
		require.Len(t, fn.Params, 2)
		assert.Equal(t, "data", fn.Params[0].Name)
		assert.Equal(t, "size", fn.Params[1].Name)
		assert.Equal(t, "size_t", fn.Params[1].Type)
	})

	t.Run("Call sites", func(t *testing.T) {
		assert.Equal(t, []string{"memcpy", "helper"}, callees(fns["parse_header"]))
		assert.Equal(t, 12, fns["parse_header"].Calls[0].Line)

		entry := fns["LLVMFuzzerTestOneInput"]
		require.Len(t, entry.Calls, 3)
		assert.Equal(t, "parse_header", entry.Calls[0].Callee)
		assert.False(t, entry.Calls[0].Member)
		assert.Equal(t, "c.cb", entry.Calls[1].Callee)
		assert.True(t, entry.Calls[1].Member)
		assert.Equal(t, "handler", entry.Calls[2].Callee)
		assert.True(t, entry.Calls[2].Member)
		for _, c := range entry.Calls {
			assert.Equal(t, entry.Key(), c.Caller)
			assert.False(t, c.Resolved())
		}
	})

	t.Run("Includes", func(t *testing.T) {
		require.Len(t, sf.Imports, 2)
		assert.Equal(t, "stdint.h", sf.Imports[0].Path)
		assert.Equal(t, "sample.h", sf.Imports[1].Path)
	})
}

func TestExtractor_CPP(t *testing.T) {
	sf := extract(t, "c++", "sample.cpp")
	fns := byName(sf)

	require.Contains(t, fns, "demo::Parser::parse")
	require.Contains(t, fns, "demo::Parser::validate")
	require.Contains(t, fns, "LLVMFuzzerTestOneInput")
	assert.Len(t, sf.Functions, 3)

	assert.Equal(t, []string{"validate"}, callees(fns["demo::Parser::parse"]))
	assert.Equal(t, []string{"s.empty"}, callees(fns["demo::Parser::validate"]))
	assert.Equal(t, []string{"p.parse", "to_string"}, callees(fns["LLVMFuzzerTestOneInput"]))
	assert.False(t, fns["LLVMFuzzerTestOneInput"].Header)
}

func TestExtractor_Go(t *testing.T) {
	sf := extract(t, "go", "sample.go")
	fns := byName(sf)

	require.Contains(t, fns, "Server.Handle")
	require.Contains(t, fns, "decode")
	require.Contains(t, fns, "FuzzHandle")

	assert.Equal(t, ir.VisibilityExported, fns["Server.Handle"].Visibility)
	assert.Equal(t, ir.VisibilityDefault, fns["decode"].Visibility)

	params := fns["decode"].Params
	require.Len(t, params, 2)
	assert.Equal(t, ir.Param{Name: "data", Type: "[]byte"}, params[0])
	assert.Equal(t, ir.Param{Name: "opts", Type: "...string"}, params[1])

	assert.Equal(t, []string{"decode"}, callees(fns["Server.Handle"]))
	assert.Equal(t, []string{"fmt.Println", "len"}, callees(fns["decode"]))
	// Calls inside the closure belong to the enclosing function.
	assert.Equal(t, []string{"f.Fuzz", "s.Handle"}, callees(fns["FuzzHandle"]))

	var imports []string
	for _, imp := range sf.Imports {
		imports = append(imports, imp.Path)
	}
	assert.Equal(t, []string{"fmt", "testing"}, imports)
}

func TestExtractor_Java(t *testing.T) {
	sf := extract(t, "jvm", "Sample.java")
	fns := byName(sf)

	entry := fns["Sample.fuzzerTestOneInput"]
	require.NotNil(t, entry)
	assert.Equal(t, ir.VisibilityPublic, entry.Visibility)
	assert.Equal(t, []string{"Parser.Parser", "p.parse", "data.consumeString", "check"}, callees(entry))

	assert.Equal(t, ir.VisibilityPrivate, fns["Sample.check"].Visibility)
	assert.True(t, fns["Codec.decode"].Header)
	assert.False(t, fns["Parser.parse"].Header)

	parse := fns["Parser.parse"]
	require.Len(t, parse.Calls, 1)
	assert.Equal(t, "validate", parse.Calls[0].Callee)
	assert.False(t, parse.Calls[0].Member, "this.m() is scope-resolvable")

	t.Run("Anonymous class methods", func(t *testing.T) {
		run := fns["Sample.Runnable$1.run"]
		require.NotNil(t, run)
		assert.Equal(t, []string{"check"}, callees(run))
		assert.Equal(t, []string{"Runnable.Runnable", "r.run"}, callees(fns["Sample.schedule"]))
	})

	require.Len(t, sf.Imports, 2)
	assert.Equal(t, "java.util.List", sf.Imports[0].Path)
}

func TestExtractor_Rust(t *testing.T) {
	sf := extract(t, "rust", "fuzz.rs")
	fns := byName(sf)

	parse := fns["Parser::parse"]
	require.NotNil(t, parse)
	assert.Equal(t, ir.VisibilityPublic, parse.Visibility)
	assert.Equal(t, []string{"helper", "data.len"}, callees(parse))
	assert.Equal(t, ir.VisibilityPrivate, fns["helper"].Visibility)

	t.Run("Nested functions", func(t *testing.T) {
		inner := fns["outer::inner"]
		require.NotNil(t, inner)
		assert.Equal(t, []string{"helper"}, callees(inner))
		assert.Equal(t, []string{"inner"}, callees(fns["outer"]))
	})

	target := fns[RustFuzzTarget]
	require.NotNil(t, target)
	require.Len(t, target.Calls, 2)
	assert.Equal(t, "parse", target.Calls[0].Callee)
	assert.True(t, target.Calls[0].Member)
	assert.Equal(t, 18, target.Calls[0].Line)
	assert.Equal(t, "helper", target.Calls[1].Callee)
	assert.False(t, target.Calls[1].Member)

	require.Len(t, sf.Imports, 1)
	assert.Equal(t, "libfuzzer_sys::fuzz_target", sf.Imports[0].Path)
}

func TestExtractor_Python(t *testing.T) {
	sf := extract(t, "python", "fuzz.py")
	fns := byName(sf)

	require.Contains(t, fns, "Decoder.decode")
	require.Contains(t, fns, "TestOneInput.inner")
	assert.Equal(t, ir.VisibilityPrivate, fns["_check"].Visibility)
	assert.Equal(t, ir.VisibilityPublic, fns["TestOneInput"].Visibility)

	// The nested function's body is not attributed to its parent.
	assert.Equal(t, []string{"Decoder", "d.decode", "inner"}, callees(fns["TestOneInput"]))
	assert.Equal(t, []string{"_check"}, callees(fns["Decoder.decode"]))

	var imports []string
	for _, imp := range sf.Imports {
		imports = append(imports, imp.Path)
	}
	assert.Equal(t, []string{"sys", "atheris"}, imports)
}

func TestExtractor_Skips(t *testing.T) {
	ctx := context.Background()
	ext, err := NewExtractor("c", Options{MaxFileBytes: 64})
	require.NoError(t, err)

	t.Run("Syntax error", func(t *testing.T) {
		_, err := ext.ExtractFromSource(ctx, "broken.c", []byte("int f( {\n"))
		assert.ErrorIs(t, err, ErrSyntax)
		assert.True(t, IsSkip(err))
	})

	t.Run("Too large", func(t *testing.T) {
		_, err := ext.ExtractFromFile(ctx, filepath.Join("testdata", "sample.c"))
		assert.ErrorIs(t, err, ErrFileTooLarge)
		assert.True(t, IsSkip(err))
	})

	t.Run("Generated", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "gen.c")
		require.NoError(t, os.WriteFile(path, []byte("// Code generated by x. DO NOT EDIT.\n"), 0o644))
		_, err := ext.ExtractFromFile(ctx, path)
		assert.ErrorIs(t, err, ErrGenerated)
	})

	t.Run("Missing file is not a skip", func(t *testing.T) {
		_, err := ext.ExtractFromFile(ctx, filepath.Join("testdata", "nope.c"))
		require.Error(t, err)
		assert.False(t, IsSkip(err))
	})
}

func TestParseLanguage(t *testing.T) {
	for in, want := range map[string]ir.Language{
		"c": ir.LanguageC, "cpp": ir.LanguageCPP, "C++": ir.LanguageCPP,
		"golang": ir.LanguageGo, "java": ir.LanguageJVM, "rust": ir.LanguageRust, "py": ir.LanguagePython,
	} {
		got, err := ParseLanguage(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := NewExtractor("cobol", Options{})
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}

func TestExtractor_Accepts(t *testing.T) {
	ext, err := NewExtractor("c++", Options{})
	require.NoError(t, err)
	assert.True(t, ext.Accepts("src/a.cc"))
	assert.True(t, ext.Accepts("include/a.h"))
	assert.False(t, ext.Accepts("a.py"))
}

func TestNewExtractor_DefaultBounds(t *testing.T) {
	ext, err := NewExtractor("c", Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultParseTimeout, ext.opts.ParseTimeout)
	assert.Equal(t, int64(DefaultMaxFileBytes), ext.opts.MaxFileBytes)
}
