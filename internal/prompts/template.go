// Package prompts builds the system/user prompt pairs sent to the text
// and image services. Templates are plain strings with {{name}}
// placeholders filled from a fixed variable map; stored template text
// is never evaluated as code.
package prompts

import (
	"fmt"
	"strings"
)

// Render substitutes {{name}} placeholders in tmpl from vars. A
// placeholder with no entry in vars is an error so template drift
// surfaces instead of producing silently truncated prompts.
func Render(tmpl string, vars map[string]string) (string, error) {
	var b strings.Builder
	rest := tmpl
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		end += start
		b.WriteString(rest[:start])
		name := strings.TrimSpace(rest[start+2 : end])
		val, ok := vars[name]
		if !ok {
			return "", fmt.Errorf("unknown template variable %q", name)
		}
		b.WriteString(val)
		rest = rest[end+2:]
	}
}
