package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	sitter "github.com/smacker/go-tree-sitter"

	"fuzzlens/internal/ir"
)

var (
	// ErrUnsupportedLanguage is returned for a language tag with no frontend.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// The following mark a file as skipped; they never abort a project scan.
	ErrSyntax       = errors.New("syntax error")
	ErrFileTooLarge = errors.New("file too large")
	ErrGenerated    = errors.New("generated file")
	ErrParseTimeout = errors.New("parse timed out")
)

const (
	DefaultMaxFileBytes = 4 << 20
	DefaultParseTimeout = 10 * time.Second
)

var generatedMarkers = [][]byte{
	[]byte("Code generated"),
	[]byte("DO NOT EDIT"),
	[]byte("@generated"),
}

// Options bounds the work spent on a single file.
type Options struct {
	MaxFileBytes int64
	ParseTimeout time.Duration
}

// Extractor orchestrates the extraction process using language-specific extractors.
type Extractor struct {
	langExtractor LanguageExtractor
	opts          Options
}

// ParseLanguage normalizes a user supplied language tag.
func ParseLanguage(lang string) (ir.Language, error) {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "c":
		return ir.LanguageC, nil
	case "c++", "cpp", "cxx", "c-cpp":
		return ir.LanguageCPP, nil
	case "go", "golang":
		return ir.LanguageGo, nil
	case "jvm", "java":
		return ir.LanguageJVM, nil
	case "rust":
		return ir.LanguageRust, nil
	case "python", "py":
		return ir.LanguagePython, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
}

// NewExtractor creates a new extractor for a given language.
func NewExtractor(lang string, opts Options) (*Extractor, error) {
	tag, err := ParseLanguage(lang)
	if err != nil {
		return nil, err
	}
	var langExt LanguageExtractor
	switch tag {
	case ir.LanguageC:
		langExt = &CExtractor{}
	case ir.LanguageCPP:
		langExt = &CExtractor{cpp: true}
	case ir.LanguageGo:
		langExt = &GoExtractor{}
	case ir.LanguageJVM:
		langExt = &JavaExtractor{}
	case ir.LanguageRust:
		langExt = &RustExtractor{}
	case ir.LanguagePython:
		langExt = &PythonExtractor{}
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = DefaultMaxFileBytes
	}
	if opts.ParseTimeout <= 0 {
		opts.ParseTimeout = DefaultParseTimeout
	}
	return &Extractor{langExtractor: langExt, opts: opts}, nil
}

func (e *Extractor) Language() ir.Language {
	return e.langExtractor.Language()
}

// Accepts reports whether a file name belongs to this extractor's language.
func (e *Extractor) Accepts(name string) bool {
	return hasExtension(name, e.langExtractor.Extensions())
}

// ExtractFromFile parses a single source file. Errors wrapping ErrSyntax,
// ErrFileTooLarge, ErrGenerated or ErrParseTimeout mean the file should be
// skipped and the scan should continue.
func (e *Extractor) ExtractFromFile(ctx context.Context, filepath string) (*ir.SourceFile, error) {
	info, err := os.Stat(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file %s: %w", filepath, err)
	}
	if info.Size() > e.opts.MaxFileBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrFileTooLarge, filepath, info.Size())
	}

	sourceCode, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filepath, err)
	}
	if isGenerated(sourceCode) {
		return nil, fmt.Errorf("%w: %s", ErrGenerated, filepath)
	}
	return e.ExtractFromSource(ctx, filepath, sourceCode)
}

// ExtractFromSource parses in-memory source attributed to filepath.
func (e *Extractor) ExtractFromSource(ctx context.Context, filepath string, sourceCode []byte) (*ir.SourceFile, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(e.langExtractor.GetLanguage())

	parseCtx, cancel := context.WithTimeout(ctx, e.opts.ParseTimeout)
	defer cancel()

	tree, err := parser.ParseCtx(parseCtx, nil, sourceCode)
	if err != nil {
		if parseCtx.Err() != nil {
			return nil, fmt.Errorf("%w: %s", ErrParseTimeout, filepath)
		}
		return nil, fmt.Errorf("failed to parse file %s: %w", filepath, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("%w: %s", ErrSyntax, filepath)
	}

	sf := e.langExtractor.Extract(root, sourceCode, filepath)
	sf.Path = filepath
	return sf, nil
}

// IsSkip reports whether err marks a per-file skip rather than a failure.
func IsSkip(err error) bool {
	return errors.Is(err, ErrSyntax) || errors.Is(err, ErrFileTooLarge) ||
		errors.Is(err, ErrGenerated) || errors.Is(err, ErrParseTimeout)
}

func isGenerated(sourceCode []byte) bool {
	head := sourceCode
	if len(head) > 1024 {
		head = head[:1024]
	}
	for _, m := range generatedMarkers {
		if bytes.Contains(head, m) {
			return true
		}
	}
	return false
}
