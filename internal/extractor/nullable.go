package extractor

import (
	"bytes"
	"regexp"
)

var nullableDirective = regexp.MustCompile(`^\s*#\s*nullable\s+(enable|disable|restore)\b(?:\s+(annotations|warnings))?`)

type nullableChange struct {
	row     uint32
	enabled bool
}

// nullableContext tracks the annotation context of one source file as
// changed by #nullable directives.
type nullableContext struct {
	defaultEnabled bool
	changes        []nullableChange
}

func scanNullableContext(src []byte, defaultEnabled bool) nullableContext {
	ctx := nullableContext{defaultEnabled: defaultEnabled}
	for i, line := range bytes.Split(src, []byte("\n")) {
		m := nullableDirective.FindSubmatch(line)
		if m == nil {
			continue
		}
		// Warnings-only directives leave annotations alone.
		if string(m[2]) == "warnings" {
			continue
		}
		enabled := defaultEnabled
		switch string(m[1]) {
		case "enable":
			enabled = true
		case "disable":
			enabled = false
		}
		ctx.changes = append(ctx.changes, nullableChange{row: uint32(i), enabled: enabled})
	}
	return ctx
}

// enabledAt reports whether annotations are enabled on the given row.
func (c nullableContext) enabledAt(row uint32) bool {
	enabled := c.defaultEnabled
	for _, ch := range c.changes {
		if ch.row >= row {
			break
		}
		enabled = ch.enabled
	}
	return enabled
}
