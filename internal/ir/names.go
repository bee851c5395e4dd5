package ir

import "strings"

var qualifierSeparators = []string{"::", "->", "."}

// ShortName returns the last segment of a qualified name, e.g.
// "ns::Foo::bar" -> "bar", "obj.run" -> "run", "p->cb" -> "cb".
func ShortName(name string) string {
	cut := 0
	for _, sep := range qualifierSeparators {
		if i := strings.LastIndex(name, sep); i >= 0 && i+len(sep) > cut {
			cut = i + len(sep)
		}
	}
	return name[cut:]
}

// Qualify joins a scope and a name with the language separator.
func Qualify(scope []string, name, sep string) string {
	if len(scope) == 0 {
		return name
	}
	return strings.Join(scope, sep) + sep + name
}
