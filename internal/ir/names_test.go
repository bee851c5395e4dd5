package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShortName(t *testing.T) {
	cases := map[string]string{
		"isPositive":        "isPositive",
		"ns::Foo::bar":      "bar",
		"obj.run":           "run",
		"p->cb":             "cb",
		"self.parser.parse": "parse",
		"a::b.c":            "c",
	}
	for in, want := range cases {
		assert.Equal(t, want, ShortName(in), in)
	}
}

func TestProject_FunctionsInDeclarationOrder(t *testing.T) {
	p := &Project{
		Files: []*SourceFile{
			{Path: "b.c", Functions: []*Function{{Name: "b1", File: "b.c"}}},
			{Path: "a.c", Functions: []*Function{{Name: "a1", File: "a.c"}, {Name: "a2", File: "a.c"}}},
		},
	}
	p.SortFiles()

	var names []string
	for _, fn := range p.Functions() {
		names = append(names, fn.Name)
	}
	assert.Equal(t, []string{"a1", "a2", "b1"}, names)
	assert.NotNil(t, p.Function(FunctionKey{Name: "a2", File: "a.c"}))
	assert.Nil(t, p.Function(FunctionKey{Name: "a2", File: "b.c"}))
}

func TestConfidenceRank(t *testing.T) {
	assert.Greater(t, ConfidenceExact.Rank(), ConfidenceSameFile.Rank())
	assert.Greater(t, ConfidenceSameFile.Rank(), ConfidenceNameOnly.Rank())
}
