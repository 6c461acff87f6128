package manifest

import "strings"

// NamespaceFor derives a namespace name from a project name.
// "My Project" -> "my-project", "q3_plan" -> "q3-plan", "" -> "default".
func NamespaceFor(s string) string {
	var words []string
	current := ""
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			current += string(r)
		default:
			if current != "" {
				words = append(words, current)
				current = ""
			}
		}
	}
	if current != "" {
		words = append(words, current)
	}
	if len(words) == 0 {
		return DefaultNamespace
	}
	return strings.Join(words, "-")
}

// reservedNamespaces collide with session builtins, which would make
// `load <name>` and `save <name>` read ambiguously in scripts.
var reservedNamespaces = map[string]bool{
	"ls":      true,
	"save":    true,
	"load":    true,
	"run":     true,
	"exit":    true,
	"help":    true,
	"clear":   true,
	"history": true,
}

// IsReservedNamespace reports whether name is a builtin word.
func IsReservedNamespace(name string) bool {
	return reservedNamespaces[name]
}
