package extractor

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// transparentNodes wrap declarations without introducing a scope.
var transparentNodes = map[string]bool{
	"declaration_list": true,
	"declaration":      true,
	"ERROR":            true,
	"preproc_if":       true,
	"preproc_else":     true,
	"preproc_elif":     true,
	"preproc_region":   true,
}

var modifierKeywords = map[string]bool{
	"public": true, "private": true, "protected": true, "internal": true,
	"static": true, "abstract": true, "virtual": true, "override": true,
	"sealed": true, "readonly": true, "const": true, "extern": true,
	"new": true, "partial": true, "async": true, "unsafe": true,
	"volatile": true, "required": true, "file": true,
}

func field(n *sitter.Node, names ...string) *sitter.Node {
	if n == nil {
		return nil
	}
	for _, name := range names {
		if c := n.ChildByFieldName(name); c != nil {
			return c
		}
	}
	return nil
}

func children(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.ChildCount())
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c == nil || isExtra(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func childOfType(n *sitter.Node, types ...string) *sitter.Node {
	for _, c := range children(n) {
		for _, t := range types {
			if c.Type() == t {
				return c
			}
		}
	}
	return nil
}

func hasToken(n *sitter.Node, token string) bool {
	for _, c := range children(n) {
		if !c.IsNamed() && c.Type() == token {
			return true
		}
	}
	return false
}

// isExtra reports comments and preprocessor lines, which the grammar may
// attach anywhere in the tree.
func isExtra(n *sitter.Node) bool {
	t := n.Type()
	return t == "comment" || strings.HasPrefix(t, "preproc_") && !transparentNodes[t] || strings.HasSuffix(t, "_directive") && t != "using_directive"
}

// text returns the node source with runs of whitespace collapsed.
func text(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	return strings.Join(strings.Fields(n.Content(src)), " ")
}

// nameOf returns the declared name of a declaration node.
func nameOf(n *sitter.Node, src []byte) string {
	if name := field(n, "name"); name != nil {
		return text(name, src)
	}
	if id := childOfType(n, "identifier"); id != nil {
		return text(id, src)
	}
	return ""
}

// modifiers collects modifier keywords declared directly on n.
func modifiers(n *sitter.Node, src []byte) modifierSet {
	mods := modifierSet{}
	for _, c := range children(n) {
		switch {
		case c.Type() == "modifier":
			for _, word := range strings.Fields(c.Content(src)) {
				mods[word] = true
			}
		case !c.IsNamed() && modifierKeywords[c.Type()]:
			mods[c.Type()] = true
		}
	}
	return mods
}

type modifierSet map[string]bool

// accessibility returns the declared accessibility, or def when none is
// declared.
func (m modifierSet) accessibility(def string) string {
	switch {
	case m["protected"] && m["internal"]:
		return "protected internal"
	case m["private"] && m["protected"]:
		return "private protected"
	case m["public"]:
		return "public"
	case m["protected"]:
		return "protected"
	case m["internal"]:
		return "internal"
	case m["private"]:
		return "private"
	case m["file"]:
		return "private"
	}
	return def
}

// isExposed reports whether an accessibility can be seen outside the
// assembly.
func isExposed(acc string) bool {
	return acc == "public" || acc == "protected" || acc == "protected internal"
}

func isProtected(acc string) bool {
	return acc == "protected" || acc == "protected internal"
}
