package extractor

import (
	"slices"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// typeDecl is one declaration of a type. Partial types have several.
type typeDecl struct {
	file       *sourceFile
	node       *sitter.Node
	kind       string
	name       string
	typeParams []string
	namespace  string
	parent     *typeDecl
	mods       modifierSet
	info       *typeInfo
}

// path is the dotted name without type parameters, used for lookups.
func (td *typeDecl) path() string {
	if td.parent != nil {
		return td.parent.path() + "." + td.name
	}
	return joinName(td.namespace, td.name)
}

func (td *typeDecl) key() string {
	return td.path() + "`" + strconv.Itoa(len(td.typeParams))
}

// container renders the namespace and containing types of td.
func (td *typeDecl) container() string {
	if td.parent != nil {
		return td.parent.display()
	}
	return td.namespace
}

// display renders the fully qualified name with type parameters, the way
// it appears in entries.
func (td *typeDecl) display() string {
	name := td.name
	if len(td.typeParams) > 0 {
		name += "<" + strings.Join(td.typeParams, ", ") + ">"
	}
	if c := td.container(); c != "" {
		return c + "." + name
	}
	return name
}

func (td *typeDecl) body() *sitter.Node {
	if b := field(td.node, "body"); b != nil {
		return b
	}
	return childOfType(td.node, "declaration_list", "enum_member_declaration_list")
}

// members lists the member declarations of td, looking through
// preprocessor blocks.
func (td *typeDecl) members() []*sitter.Node {
	return flatten(td.body())
}

func flatten(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for _, c := range namedChildren(n) {
		if transparentNodes[c.Type()] {
			out = append(out, flatten(c)...)
			continue
		}
		out = append(out, c)
	}
	return out
}

// typeInfo merges all declarations of one type.
type typeInfo struct {
	decls  []*typeDecl
	kind   string
	mods   modifierSet
	parent *typeInfo

	// ctors holds the accessibility of every declared instance constructor.
	ctors                []string
	parameterlessCtor    bool
	primaryCtor          bool
	implicitCtorReported bool
}

func (ti *typeInfo) merge(td *typeDecl) {
	ti.decls = append(ti.decls, td)
	for k := range td.mods {
		ti.mods[k] = true
	}
	if td.parent != nil {
		ti.parent = td.parent.info
	}
	if params := primaryParameters(td.node); params != nil {
		ti.primaryCtor = true
		ti.ctors = append(ti.ctors, "public")
		if len(parameters(params)) == 0 {
			ti.parameterlessCtor = true
		}
	}
	if ti.kind == "enum" || ti.kind == "delegate" {
		return
	}
	for _, m := range td.members() {
		if m.Type() != "constructor_declaration" {
			continue
		}
		mods := modifiers(m, td.file.src)
		if mods["static"] {
			continue
		}
		ti.ctors = append(ti.ctors, mods.accessibility("private"))
		if len(parameters(field(m, "parameters"))) == 0 {
			ti.parameterlessCtor = true
		}
	}
}

func (ti *typeInfo) isValueType() bool {
	return ti.kind == "struct" || ti.kind == "enum" || ti.kind == "record struct"
}

func (ti *typeInfo) accessibility() string {
	def := "internal"
	if ti.parent != nil {
		def = "private"
		if ti.parent.kind == "interface" {
			def = "public"
		}
	}
	return ti.mods.accessibility(def)
}

// visible reports whether the type can be seen from outside the assembly.
func (ti *typeInfo) visible() bool {
	acc := ti.accessibility()
	if !isExposed(acc) {
		return false
	}
	if ti.parent == nil {
		return true
	}
	if isProtected(acc) && !ti.parent.extendable() {
		return false
	}
	return ti.parent.visible()
}

// extendable reports whether a derived type can be declared outside the
// assembly, which is what makes protected members reachable.
func (ti *typeInfo) extendable() bool {
	if ti.kind != "class" && ti.kind != "record" {
		return false
	}
	if ti.mods["sealed"] || ti.mods["static"] {
		return false
	}
	if len(ti.ctors) == 0 {
		return true
	}
	return slices.ContainsFunc(ti.ctors, isExposed)
}

// memberVisible applies the accessibility rules to a member of ti.
func (ti *typeInfo) memberVisible(acc string) bool {
	if !isExposed(acc) {
		return false
	}
	return !isProtected(acc) || ti.extendable()
}

func (ti *typeInfo) memberDefault() string {
	if ti.kind == "interface" || ti.kind == "enum" {
		return "public"
	}
	return "private"
}

// model is the type table of every parsed file.
type model struct {
	types        map[string]*typeInfo
	implicit     bool
	globalUsings []string
}

func newModel(implicit bool) *model {
	return &model{types: map[string]*typeInfo{}, implicit: implicit}
}

func (m *model) add(f *sourceFile) {
	for _, td := range f.types {
		key := td.key()
		info, ok := m.types[key]
		if !ok {
			info = &typeInfo{kind: td.kind, mods: modifierSet{}}
			m.types[key] = info
		}
		td.info = info
		info.merge(td)
	}
	m.globalUsings = append(m.globalUsings, f.globalUsings...)
}

// rendered is a type reference in both renderings.
type rendered struct {
	ann   string
	plain string
	// value marks types that never carry reference modifiers: value types
	// and type parameters.
	value     bool
	hasRef    bool
	oblivious bool
}

func (r rendered) nullableValue(nullable bool) rendered {
	if nullable {
		r.ann += "?"
		r.plain += "?"
	}
	return r
}

func (r *rendered) absorb(o rendered) {
	r.hasRef = r.hasRef || o.hasRef
	r.oblivious = r.oblivious || o.oblivious
}

var referenceKeywords = map[string]bool{"string": true, "object": true, "dynamic": true}

// systemAliases maps System type names to their C# keywords.
var systemAliases = map[string]string{
	"String": "string", "Object": "object", "Boolean": "bool",
	"Byte": "byte", "SByte": "sbyte", "Char": "char", "Decimal": "decimal",
	"Double": "double", "Single": "float", "Int16": "short",
	"UInt16": "ushort", "Int32": "int", "UInt32": "uint", "Int64": "long",
	"UInt64": "ulong", "Void": "void",
}

type bclType struct {
	namespace string
	value     bool
}

// bclTypes lists well-known framework types by name and arity so simple
// names can be qualified and value types recognised.
var (
	bclTypes       = map[string]bclType{}
	bclValueByPath = map[string]bool{}
)

func registerBCL(namespace string, value bool, names ...string) {
	for _, name := range names {
		if !strings.Contains(name, "`") {
			name += "`0"
		}
		bclTypes[name] = bclType{namespace: namespace, value: value}
		bclValueByPath[namespace+"."+name] = value
	}
}

func init() {
	registerBCL("System", false,
		"Action", "Action`1", "Action`2", "Action`3", "Action`4",
		"Func`1", "Func`2", "Func`3", "Func`4", "Func`5",
		"EventHandler", "EventHandler`1", "EventArgs", "Exception",
		"ArgumentException", "InvalidOperationException", "Type", "Uri",
		"Version", "Attribute", "Delegate", "Array", "IDisposable",
		"IAsyncDisposable", "IComparable", "IComparable`1", "IEquatable`1",
		"IFormatProvider", "IServiceProvider", "IObservable`1",
		"IObserver`1", "Lazy`1", "StringComparer", "Random", "WeakReference`1")
	registerBCL("System", true,
		"DateTime", "DateTimeOffset", "TimeSpan", "Guid", "Span`1",
		"ReadOnlySpan`1", "Memory`1", "ReadOnlyMemory`1", "IntPtr", "UIntPtr",
		"Half", "Index", "Range", "DateOnly", "TimeOnly", "ValueTuple`2",
		"ArraySegment`1", "StringComparison", "DayOfWeek", "Nullable`1")
	registerBCL("System.Collections", false,
		"IEnumerable", "IEnumerator", "ICollection", "IList", "IDictionary",
		"ArrayList", "Hashtable")
	registerBCL("System.Collections.Generic", false,
		"List`1", "Dictionary`2", "HashSet`1", "IEnumerable`1",
		"IEnumerator`1", "ICollection`1", "IList`1", "IReadOnlyList`1",
		"IReadOnlyCollection`1", "IDictionary`2", "IReadOnlyDictionary`2",
		"ISet`1", "IComparer`1", "IEqualityComparer`1", "Queue`1", "Stack`1",
		"IAsyncEnumerable`1", "IAsyncEnumerator`1", "SortedDictionary`2",
		"LinkedList`1")
	registerBCL("System.Collections.Generic", true, "KeyValuePair`2")
	registerBCL("System.Threading.Tasks", false,
		"Task", "Task`1", "TaskCompletionSource", "TaskCompletionSource`1")
	registerBCL("System.Threading.Tasks", true, "ValueTask", "ValueTask`1")
	registerBCL("System.Threading", false, "CancellationTokenSource", "SemaphoreSlim", "Timer")
	registerBCL("System.Threading", true, "CancellationToken")
	registerBCL("System.IO", false,
		"Stream", "TextReader", "TextWriter", "StreamReader", "StreamWriter",
		"FileInfo", "DirectoryInfo", "MemoryStream", "FileStream")
	registerBCL("System.IO", true, "FileMode", "FileAccess", "SeekOrigin")
	registerBCL("System.Text", false, "StringBuilder", "Encoding")
	registerBCL("System.Net.Http", false,
		"HttpClient", "HttpRequestMessage", "HttpResponseMessage",
		"HttpContent", "HttpMethod")
	registerBCL("System.Linq", false,
		"IQueryable`1", "IGrouping`2", "ILookup`2", "IOrderedEnumerable`1")
}

// scope renders type references as seen from one declaration.
type scope struct {
	model      *model
	decl       *typeDecl
	typeParams map[string]bool
	prefixes   []string
}

func newScope(m *model, decl *typeDecl, methodTypeParams []string) *scope {
	s := &scope{model: m, decl: decl, typeParams: map[string]bool{}}
	for _, tp := range methodTypeParams {
		s.typeParams[tp] = true
	}
	for d := decl; d != nil; d = d.parent {
		for _, tp := range d.typeParams {
			s.typeParams[tp] = true
		}
		s.prefixes = append(s.prefixes, d.path())
	}
	for ns := decl.namespace; ns != ""; {
		s.prefixes = append(s.prefixes, ns)
		i := strings.LastIndex(ns, ".")
		if i < 0 {
			break
		}
		ns = ns[:i]
	}
	s.prefixes = append(s.prefixes, "")
	s.prefixes = append(s.prefixes, s.usings()...)
	return s
}

func (s *scope) usings() []string {
	out := slices.Concat(s.decl.file.usings, s.model.globalUsings)
	if s.model.implicit {
		out = append(out, implicitUsings...)
	}
	return out
}

func (s *scope) imports(ns string) bool {
	if s.decl.namespace == ns || strings.HasPrefix(s.decl.namespace, ns+".") {
		return true
	}
	return slices.Contains(s.usings(), ns)
}

func (s *scope) src() []byte { return s.decl.file.src }

func (s *scope) render(n *sitter.Node) rendered {
	return s.renderType(n, false)
}

func (s *scope) renderType(n *sitter.Node, nullable bool) rendered {
	if n == nil {
		return rendered{}
	}
	enabled := s.decl.file.nullable.enabledAt(n.StartPoint().Row)

	switch n.Type() {
	case "nullable_type":
		return s.renderType(innerType(n), true)
	case "array_type":
		elem := s.render(innerType(n))
		rank := field(n, "rank")
		if rank == nil {
			rank = childOfType(n, "array_rank_specifier")
		}
		brackets := "[]"
		if rank != nil {
			brackets = strings.ReplaceAll(text(rank, s.src()), " ", "")
		}
		return s.reference(elem.ann+brackets, elem.plain+brackets, nullable, enabled, elem)
	case "predefined_type":
		return s.keyword(text(n, s.src()), nullable, enabled)
	case "identifier", "generic_name", "qualified_name", "alias_qualified_name":
		return s.named(n, nullable, enabled)
	case "tuple_type":
		r := rendered{value: true}
		var ann, plain []string
		for _, el := range namedChildren(n) {
			if el.Type() != "tuple_element" {
				continue
			}
			t := s.render(innerType(el))
			a, p := t.ann, t.plain
			if name := field(el, "name"); name != nil {
				a += " " + text(name, s.src())
				p += " " + text(name, s.src())
			}
			ann = append(ann, a)
			plain = append(plain, p)
			r.absorb(t)
		}
		r.ann = "(" + strings.Join(ann, ", ") + ")"
		r.plain = "(" + strings.Join(plain, ", ") + ")"
		return r.nullableValue(nullable)
	case "ref_type":
		inner := s.render(innerType(n))
		prefix := "ref "
		if hasToken(n, "readonly") {
			prefix = "ref readonly "
		}
		inner.ann = prefix + inner.ann
		inner.plain = prefix + inner.plain
		return inner
	}

	t := text(n, s.src())
	return rendered{ann: t, plain: t, value: true}.nullableValue(nullable)
}

func innerType(n *sitter.Node) *sitter.Node {
	if t := field(n, "type"); t != nil {
		return t
	}
	named := namedChildren(n)
	if len(named) == 0 {
		return nil
	}
	return named[0]
}

// reference applies the nullable context to a reference type.
func (s *scope) reference(ann, plain string, nullable, enabled bool, inner rendered) rendered {
	r := rendered{plain: plain, hasRef: true, oblivious: inner.oblivious}
	switch {
	case nullable:
		r.ann = ann + "?"
	case enabled:
		r.ann = ann + "!"
	default:
		r.ann = ann
		r.oblivious = true
	}
	return r
}

func (s *scope) keyword(name string, nullable, enabled bool) rendered {
	if referenceKeywords[name] {
		return s.reference(name, name, nullable, enabled, rendered{})
	}
	return rendered{ann: name, plain: name, value: true}.nullableValue(nullable)
}

type segment struct {
	name string
	args []*sitter.Node
}

func (s *scope) segments(n *sitter.Node) []segment {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "identifier":
		return []segment{{name: strings.TrimPrefix(text(n, s.src()), "@")}}
	case "generic_name":
		name := field(n, "name")
		if name == nil {
			name = childOfType(n, "identifier")
		}
		args := field(n, "type_arguments")
		if args == nil {
			args = childOfType(n, "type_argument_list")
		}
		return []segment{{name: strings.TrimPrefix(text(name, s.src()), "@"), args: namedChildren(args)}}
	case "qualified_name":
		qualifier, name := field(n, "qualifier"), field(n, "name")
		if qualifier == nil || name == nil {
			named := namedChildren(n)
			if len(named) < 2 {
				return nil
			}
			qualifier, name = named[0], named[len(named)-1]
		}
		return append(s.segments(qualifier), s.segments(name)...)
	case "alias_qualified_name":
		named := namedChildren(n)
		if len(named) == 0 {
			return nil
		}
		name := field(n, "name")
		if name == nil {
			name = named[len(named)-1]
		}
		var segs []segment
		if alias := field(n, "alias"); alias != nil && text(alias, s.src()) != "global" {
			segs = append(segs, segment{name: text(alias, s.src())})
		}
		return append(segs, s.segments(name)...)
	}
	return nil
}

func (s *scope) named(n *sitter.Node, nullable, enabled bool) rendered {
	segs := s.segments(n)
	if len(segs) == 0 {
		t := text(n, s.src())
		return rendered{ann: t, plain: t, value: true}.nullableValue(nullable)
	}
	last := segs[len(segs)-1]

	if len(segs) == 1 && len(last.args) == 0 && s.typeParams[last.name] {
		return rendered{ann: last.name, plain: last.name, value: true}.nullableValue(nullable)
	}

	var args rendered
	var ann, plain []string
	for _, a := range last.args {
		r := s.render(a)
		ann = append(ann, r.ann)
		plain = append(plain, r.plain)
		args.absorb(r)
	}

	base, value, alias := s.resolve(segs)
	if alias != "" {
		return s.keyword(alias, nullable, enabled)
	}
	if base == "System.Nullable" && len(last.args) == 1 {
		r := rendered{ann: ann[0] + "?", plain: plain[0] + "?", value: true}
		r.absorb(args)
		return r
	}
	if len(last.args) > 0 {
		args.ann = base + "<" + strings.Join(ann, ", ") + ">"
		args.plain = base + "<" + strings.Join(plain, ", ") + ">"
	} else {
		args.ann, args.plain = base, base
	}
	if value {
		args.value = true
		return args.nullableValue(nullable)
	}
	return s.reference(args.ann, args.plain, nullable, enabled, args)
}

// resolve qualifies a (possibly dotted) type name. alias is set when the
// name denotes a C# keyword type.
func (s *scope) resolve(segs []segment) (base string, value bool, alias string) {
	names := make([]string, len(segs))
	for i, seg := range segs {
		names[i] = seg.name
	}
	path := strings.Join(names, ".")
	arity := len(segs[len(segs)-1].args)

	if td := s.lookup(path, arity); td != nil {
		return joinName(td.container(), td.name), td.info.isValueType(), ""
	}

	switch {
	case len(names) == 1 && arity == 0 && systemAliases[names[0]] != "" && s.imports("System"):
		return "", false, systemAliases[names[0]]
	case len(names) == 2 && names[0] == "System" && arity == 0 && systemAliases[names[1]] != "":
		return "", false, systemAliases[names[1]]
	}

	key := path + "`" + strconv.Itoa(arity)
	if len(names) == 1 {
		if bt, ok := bclTypes[key]; ok {
			if s.imports(bt.namespace) {
				return bt.namespace + "." + path, bt.value, ""
			}
			return path, bt.value, ""
		}
	}
	return path, bclValueByPath[key], ""
}

func (s *scope) lookup(path string, arity int) *typeDecl {
	key := path + "`" + strconv.Itoa(arity)
	for _, prefix := range s.prefixes {
		if info, ok := s.model.types[joinName(prefix, key)]; ok {
			return info.decls[0]
		}
	}
	return nil
}
