package graph

import (
	"strings"

	"fuzzlens/internal/ir"
)

// entryMatcher returns the fuzz harness predicate for lang. Go harnesses are
// any Fuzz* function taking *testing.F when the entrypoint is the bare
// "Fuzz" prefix.
func entryMatcher(lang ir.Language, entrypoint string) func(*ir.Function) bool {
	switch lang {
	case ir.LanguageGo:
		return func(fn *ir.Function) bool {
			if fn.Name == entrypoint {
				return true
			}
			return entrypoint == "Fuzz" && strings.HasPrefix(fn.Name, "Fuzz") && takesFuzzT(fn)
		}
	case ir.LanguageJVM:
		return func(fn *ir.Function) bool {
			return !fn.Header && fn.ShortName() == entrypoint
		}
	}
	return func(fn *ir.Function) bool {
		return fn.ShortName() == entrypoint
	}
}

func takesFuzzT(fn *ir.Function) bool {
	for _, p := range fn.Params {
		if strings.TrimSpace(p.Type) == "*testing.F" {
			return true
		}
	}
	return false
}
