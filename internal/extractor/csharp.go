package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"apisurface/internal/crawler"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"
)

// implicitUsings are the namespaces the .NET SDK imports when
// <ImplicitUsings> is enabled.
var implicitUsings = []string{
	"System",
	"System.Collections.Generic",
	"System.IO",
	"System.Linq",
	"System.Net.Http",
	"System.Threading",
	"System.Threading.Tasks",
}

var usingDirective = regexp.MustCompile(`^(global\s+)?using\s+(@?[\w.]+)\s*;$`)

var typeDeclarations = map[string]string{
	"class_declaration":         "class",
	"struct_declaration":        "struct",
	"interface_declaration":     "interface",
	"enum_declaration":          "enum",
	"record_declaration":        "record",
	"record_struct_declaration": "record struct",
	"delegate_declaration":      "delegate",
}

// CSharpSource extracts public API entries from C# source files.
type CSharpSource struct {
	crawler  *crawler.Crawler
	nullable *bool
	sources  []string
	logger   *slog.Logger
}

// NewCSharpSource creates a source reading .cs files with tree-sitter.
func NewCSharpSource(opts Options) *CSharpSource {
	return &CSharpSource{
		crawler:  crawler.NewCrawler(),
		nullable: opts.Nullable,
		sources:  opts.Sources,
		logger:   opts.logger(),
	}
}

// Extract parses every C# file under target and the configured source roots
// and renders their public API. Files under searchPaths only contribute type information used to render
// references; their declarations are not part of the result.
func (c *CSharpSource) Extract(ctx context.Context, target string, searchPaths []string) (*Extraction, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("failed to stat target %s: %w", target, err)
	}

	root, projectDir := target, target
	switch {
	case info.IsDir():
	case strings.EqualFold(filepath.Ext(target), ".csproj"):
		root = filepath.Dir(target)
	default:
		projectDir = filepath.Dir(target)
	}

	project, err := crawler.ReadProject(projectDir)
	if err != nil {
		return nil, err
	}
	defaultEnabled, implicit := false, false
	if project != nil {
		if project.Nullable != nil {
			defaultEnabled = *project.Nullable
		}
		implicit = project.ImplicitUsings
	}
	if c.nullable != nil {
		defaultEnabled = *c.nullable
	}

	parser := sitter.NewParser()
	parser.SetLanguage(csharp.GetLanguage())

	m := newModel(implicit)
	var primary []*sourceFile
	seen := map[string]bool{}

	parseRoot := func(dir string, emit bool) error {
		return c.crawler.ScanProject(dir, func(path string) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			// Roots may overlap; each file is parsed once.
			abs, err := filepath.Abs(path)
			if err != nil {
				return err
			}
			if seen[abs] {
				return nil
			}
			seen[abs] = true

			f, err := parseFile(ctx, parser, path, defaultEnabled)
			if err != nil {
				return err
			}
			m.add(f)
			if emit {
				primary = append(primary, f)
			}
			return nil
		})
	}

	for _, dir := range append([]string{root}, c.sources...) {
		if err := parseRoot(dir, true); err != nil {
			return nil, err
		}
	}
	for _, sp := range searchPaths {
		if err := parseRoot(sp, false); err != nil {
			return nil, err
		}
	}

	out := &Extraction{}
	emitted := map[*typeInfo]bool{}
	for _, f := range primary {
		for _, td := range f.types {
			e := emitter{model: m, decl: td, out: out}
			e.emitType(emitted)
		}
	}

	c.logger.Debug("extracted C# public API",
		"target", target,
		"files", len(primary),
		"types", len(m.types),
		"entries", len(out.Nullable),
		"nullable_default", defaultEnabled)
	return out, nil
}

type sourceFile struct {
	path     string
	src      []byte
	nullable nullableContext
	usings   []string
	types    []*typeDecl

	globalUsings []string
}

func parseFile(ctx context.Context, parser *sitter.Parser, path string, defaultEnabled bool) (*sourceFile, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file %s: %w", path, err)
	}

	f := &sourceFile{
		path:     path,
		src:      src,
		nullable: scanNullableContext(src, defaultEnabled),
	}
	f.collect(tree.RootNode(), "", nil)
	return f, nil
}

// collect records the type declarations and using directives below n.
func (f *sourceFile) collect(n *sitter.Node, ns string, parent *typeDecl) {
	for _, child := range namedChildren(n) {
		switch t := child.Type(); {
		case t == "namespace_declaration":
			body := field(child, "body")
			if body == nil {
				body = childOfType(child, "declaration_list")
			}
			f.collect(body, joinName(ns, nameOf(child, f.src)), nil)
		case t == "file_scoped_namespace_declaration":
			// Later siblings belong to the namespace as well.
			ns = joinName(ns, nameOf(child, f.src))
			f.collect(child, ns, nil)
		case t == "using_directive":
			if m := usingDirective.FindStringSubmatch(text(child, f.src)); m != nil {
				name := strings.TrimPrefix(m[2], "@")
				if m[1] != "" {
					f.globalUsings = append(f.globalUsings, name)
				} else {
					f.usings = append(f.usings, name)
				}
			}
		case typeDeclarations[t] != "":
			f.addType(child, ns, parent)
		case transparentNodes[t]:
			f.collect(child, ns, parent)
		}
	}
}

func (f *sourceFile) addType(n *sitter.Node, ns string, parent *typeDecl) {
	kind := typeDeclarations[n.Type()]
	if kind == "record" && (hasToken(n, "struct") || childOfType(n, "struct") != nil) {
		kind = "record struct"
	}

	td := &typeDecl{
		file:       f,
		node:       n,
		kind:       kind,
		name:       nameOf(n, f.src),
		typeParams: typeParameters(n, f.src),
		namespace:  ns,
		parent:     parent,
		mods:       modifiers(n, f.src),
	}
	if td.name == "" {
		return
	}
	f.types = append(f.types, td)

	switch kind {
	case "enum", "delegate":
		return
	}
	for _, member := range td.members() {
		if typeDeclarations[member.Type()] != "" {
			f.addType(member, ns, td)
		}
	}
}

func typeParameters(n *sitter.Node, src []byte) []string {
	list := field(n, "type_parameters")
	if list == nil {
		list = childOfType(n, "type_parameter_list")
	}
	var names []string
	for _, p := range namedChildren(list) {
		if p.Type() != "type_parameter" {
			continue
		}
		name := nameOf(p, src)
		if name == "" {
			words := strings.Fields(p.Content(src))
			if len(words) == 0 {
				continue
			}
			name = words[len(words)-1]
		}
		names = append(names, name)
	}
	return names
}

func joinName(prefix, name string) string {
	name = strings.ReplaceAll(name, " ", "")
	if prefix == "" {
		return name
	}
	if name == "" {
		return prefix
	}
	return prefix + "." + name
}
