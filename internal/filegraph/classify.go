package filegraph

import "strings"

var extensionGroups = map[string]int{
	"ts":     GroupCode,
	"tsx":    GroupCode,
	"js":     GroupCode,
	"jsx":    GroupCode,
	"css":    GroupStyle,
	"scss":   GroupStyle,
	"html":   GroupStyle,
	"json":   GroupData,
	"yml":    GroupData,
	"config": GroupData,
}

// Classify returns the group of a file named name. The extension is whatever
// follows the last "." and is matched case-sensitively; unknown or missing
// extensions fall back to GroupOther.
func Classify(name string) int {
	if g, ok := extensionGroups[Extension(name)]; ok {
		return g
	}
	return GroupOther
}

// Extension returns the text after the last "." in name, or "" when name has
// no dot.
func Extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return name[i+1:]
}
