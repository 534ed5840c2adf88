package extractor

import (
	"strconv"
	"strings"

	"apisurface/internal/surface"

	sitter "github.com/smacker/go-tree-sitter"
)

var parameterModifiers = map[string]bool{
	"this": true, "ref": true, "out": true, "in": true, "params": true, "readonly": true,
}

// signature accumulates one entry in both renderings.
type signature struct {
	ann       string
	plain     string
	hasRef    bool
	oblivious bool
	// unmarked entries never carry the oblivious marker.
	unmarked bool
}

func (s *signature) text(parts ...string) {
	for _, p := range parts {
		s.ann += p
		s.plain += p
	}
}

func (s *signature) write(ann, plain string) {
	s.ann += ann
	s.plain += plain
}

func (s *signature) typ(r rendered) {
	s.write(r.ann, r.plain)
	s.flags(r)
}

func (s *signature) flags(r rendered) {
	s.hasRef = s.hasRef || r.hasRef
	s.oblivious = s.oblivious || r.oblivious
}

// entries returns the nullable and oblivious renderings. The oblivious
// rendering has no annotations at all, so every entry mentioning a
// reference type is marked there.
func (s *signature) entries() (string, string) {
	ann, plain := s.ann, s.plain
	if s.unmarked {
		return ann, plain
	}
	if s.oblivious {
		ann = surface.ObliviousPrefix + ann
	}
	if s.hasRef {
		plain = surface.ObliviousPrefix + plain
	}
	return ann, plain
}

type emitter struct {
	model *model
	decl  *typeDecl
	out   *Extraction
}

func (e *emitter) src() []byte { return e.decl.file.src }

func (e *emitter) add(sig signature) {
	ann, plain := sig.entries()
	e.out.Nullable = append(e.out.Nullable, ann)
	e.out.Oblivious = append(e.out.Oblivious, plain)
}

// emitType renders the type declaration and its members. emitted tracks
// types whose declaration entry was already written by another part.
func (e *emitter) emitType(emitted map[*typeInfo]bool) {
	info := e.decl.info
	if !info.visible() {
		return
	}
	first := !emitted[info]
	emitted[info] = true

	s := newScope(e.model, e.decl, nil)
	if first {
		var sig signature
		sig.text(e.decl.display())
		sig.flags(e.constraints(s, e.decl.node))
		e.add(sig)
	}

	switch e.decl.kind {
	case "enum":
		e.emitEnumMembers()
		return
	case "delegate":
		e.emitInvoke(s)
		return
	}

	e.emitPrimaryConstructor(s)
	if first {
		e.emitImplicitConstructor()
	}
	for _, m := range e.decl.members() {
		e.emitMember(m)
	}
}

func (e *emitter) emitMember(m *sitter.Node) {
	switch m.Type() {
	case "field_declaration":
		e.emitField(m)
	case "event_field_declaration":
		e.emitEventField(m)
	case "event_declaration":
		e.emitEvent(m)
	case "method_declaration":
		e.emitMethod(m)
	case "constructor_declaration":
		e.emitConstructor(m)
	case "property_declaration":
		e.emitProperty(m)
	case "indexer_declaration":
		e.emitIndexer(m)
	case "operator_declaration":
		e.emitOperator(m)
	case "conversion_operator_declaration":
		e.emitConversion(m)
	}
}

func (e *emitter) visible(mods modifierSet) (string, bool) {
	acc := mods.accessibility(e.decl.info.memberDefault())
	return acc, e.decl.info.memberVisible(acc)
}

// memberModifiers renders the modifiers that are part of an entry.
func (e *emitter) memberModifiers(mods modifierSet) string {
	var words []string
	if mods["static"] {
		words = append(words, "static")
	}
	if e.decl.kind == "interface" {
		if mods["static"] && mods["abstract"] {
			words = append(words, "abstract")
		}
	} else {
		if mods["override"] {
			words = append(words, "override")
		}
		if mods["abstract"] {
			words = append(words, "abstract")
		}
		if mods["sealed"] && mods["override"] {
			words = append(words, "sealed")
		}
		if mods["virtual"] {
			words = append(words, "virtual")
		}
		if mods["readonly"] && e.decl.info.isValueType() {
			words = append(words, "readonly")
		}
	}
	if len(words) == 0 {
		return ""
	}
	return strings.Join(words, " ") + " "
}

func (e *emitter) member(name string) string {
	return e.decl.display() + "." + name
}

func isExplicitImplementation(m *sitter.Node) bool {
	return childOfType(m, "explicit_interface_specifier") != nil
}

func (e *emitter) emitMethod(m *sitter.Node) {
	if isExplicitImplementation(m) {
		return
	}
	mods := modifiers(m, e.src())
	if _, ok := e.visible(mods); !ok {
		return
	}

	typeParams := typeParameters(m, e.src())
	s := newScope(e.model, e.decl, typeParams)

	var sig signature
	sig.text(e.memberModifiers(mods), e.member(nameOf(m, e.src())))
	if len(typeParams) > 0 {
		sig.text("<" + strings.Join(typeParams, ", ") + ">")
	}
	e.writeParameters(&sig, s, field(m, "parameters"), "(", ")")
	sig.text(" -> ")
	sig.typ(s.render(field(m, "returns", "type")))
	sig.flags(e.constraints(s, m))
	e.add(sig)
}

func (e *emitter) emitConstructor(m *sitter.Node) {
	mods := modifiers(m, e.src())
	if mods["static"] {
		return
	}
	if _, ok := e.visible(mods); !ok {
		return
	}
	s := newScope(e.model, e.decl, nil)

	var sig signature
	sig.text(e.member(e.decl.name))
	e.writeParameters(&sig, s, field(m, "parameters"), "(", ")")
	sig.text(" -> void")
	e.add(sig)
}

// emitImplicitConstructor writes the parameterless constructor the compiler
// declares for types without one.
func (e *emitter) emitImplicitConstructor() {
	info := e.decl.info
	switch info.kind {
	case "struct", "record struct":
		if info.parameterlessCtor {
			return
		}
	case "class", "record":
		if len(info.ctors) > 0 || info.mods["static"] {
			return
		}
		acc := "public"
		if info.mods["abstract"] {
			acc = "protected"
		}
		if !info.memberVisible(acc) {
			return
		}
	default:
		return
	}
	var sig signature
	sig.text(e.member(e.decl.name) + "() -> void")
	e.add(sig)
}

// emitPrimaryConstructor writes the constructor declared in a type header
// and, for records, the positional properties.
func (e *emitter) emitPrimaryConstructor(s *scope) {
	params := primaryParameters(e.decl.node)
	if params == nil {
		return
	}

	var sig signature
	sig.text(e.member(e.decl.name))
	e.writeParameters(&sig, s, params, "(", ")")
	sig.text(" -> void")
	e.add(sig)

	if e.decl.kind != "record" && e.decl.kind != "record struct" {
		return
	}
	setter := "init"
	if e.decl.kind == "record struct" && !e.decl.info.mods["readonly"] {
		setter = "set"
	}
	for _, p := range parameters(params) {
		t := s.render(p.typ)
		name := e.member(text(p.name, e.src()))

		var get signature
		get.text(name + ".get -> ")
		get.typ(t)
		e.add(get)

		var set signature
		set.text(name + "." + setter + " -> void")
		set.flags(t)
		e.add(set)
	}
}

func primaryParameters(n *sitter.Node) *sitter.Node {
	if n.Type() == "delegate_declaration" {
		return nil
	}
	if p := field(n, "parameters"); p != nil {
		return p
	}
	return childOfType(n, "parameter_list")
}

func (e *emitter) emitField(m *sitter.Node) {
	mods := modifiers(m, e.src())
	if _, ok := e.visible(mods); !ok {
		return
	}
	decl := childOfType(m, "variable_declaration")
	if decl == nil {
		return
	}
	s := newScope(e.model, e.decl, nil)
	t := s.render(field(decl, "type"))

	prefix := ""
	switch {
	case mods["const"]:
		prefix = "const "
	case mods["static"] && mods["readonly"]:
		prefix = "static readonly "
	case mods["static"]:
		prefix = "static "
	case mods["readonly"]:
		prefix = "readonly "
	}

	for _, v := range namedChildren(decl) {
		if v.Type() != "variable_declarator" {
			continue
		}
		var sig signature
		sig.text(prefix, e.member(nameOf(v, e.src())))
		if mods["const"] {
			if value := initializer(v); value != nil {
				sig.text(" = " + constantText(value, e.src()))
			}
		}
		sig.text(" -> ")
		sig.typ(t)
		e.add(sig)
	}
}

func (e *emitter) emitEventField(m *sitter.Node) {
	mods := modifiers(m, e.src())
	if _, ok := e.visible(mods); !ok {
		return
	}
	decl := childOfType(m, "variable_declaration")
	if decl == nil {
		return
	}
	s := newScope(e.model, e.decl, nil)
	t := s.render(field(decl, "type"))
	for _, v := range namedChildren(decl) {
		if v.Type() != "variable_declarator" {
			continue
		}
		sig := signature{unmarked: true}
		sig.text(e.memberModifiers(mods), e.member(nameOf(v, e.src())), " -> ")
		sig.typ(t)
		e.add(sig)
	}
}

func (e *emitter) emitEvent(m *sitter.Node) {
	if isExplicitImplementation(m) {
		return
	}
	mods := modifiers(m, e.src())
	if _, ok := e.visible(mods); !ok {
		return
	}
	s := newScope(e.model, e.decl, nil)
	sig := signature{unmarked: true}
	sig.text(e.memberModifiers(mods), e.member(nameOf(m, e.src())), " -> ")
	sig.typ(s.render(field(m, "type")))
	e.add(sig)
}

func (e *emitter) emitProperty(m *sitter.Node) {
	if isExplicitImplementation(m) {
		return
	}
	mods := modifiers(m, e.src())
	acc, ok := e.visible(mods)
	if !ok {
		return
	}
	s := newScope(e.model, e.decl, nil)
	var head signature
	head.text(e.memberModifiers(mods), e.member(nameOf(m, e.src())))
	e.emitAccessors(m, acc, head, s.render(field(m, "type")))
}

func (e *emitter) emitIndexer(m *sitter.Node) {
	if isExplicitImplementation(m) {
		return
	}
	mods := modifiers(m, e.src())
	acc, ok := e.visible(mods)
	if !ok {
		return
	}
	s := newScope(e.model, e.decl, nil)
	var head signature
	head.text(e.memberModifiers(mods), e.member("this"))
	params := field(m, "parameters")
	if params == nil {
		params = childOfType(m, "bracketed_parameter_list")
	}
	e.writeParameters(&head, s, params, "[", "]")
	e.emitAccessors(m, acc, head, s.render(field(m, "type")))
}

type accessor struct {
	kind string
	mods modifierSet
}

func (e *emitter) accessors(m *sitter.Node) []accessor {
	list := field(m, "accessors")
	if list == nil {
		list = childOfType(m, "accessor_list")
	}
	if list == nil {
		// Expression-bodied members only have a getter.
		return []accessor{{kind: "get", mods: modifierSet{}}}
	}
	var out []accessor
	for _, a := range namedChildren(list) {
		if a.Type() != "accessor_declaration" {
			continue
		}
		kind := ""
		if name := field(a, "name"); name != nil {
			kind = text(name, e.src())
		}
		if kind == "" {
			for _, c := range children(a) {
				switch c.Type() {
				case "get", "set", "init", "add", "remove":
					kind = c.Type()
				}
			}
		}
		if kind == "" {
			continue
		}
		out = append(out, accessor{kind: kind, mods: modifiers(a, e.src())})
	}
	return out
}

func (e *emitter) emitAccessors(m *sitter.Node, acc string, head signature, t rendered) {
	for _, a := range e.accessors(m) {
		if !e.decl.info.memberVisible(a.mods.accessibility(acc)) {
			continue
		}
		sig := head
		if a.kind == "get" {
			sig.text(".get -> ")
			sig.typ(t)
		} else {
			sig.text("." + a.kind + " -> void")
			sig.flags(t)
		}
		e.add(sig)
	}
}

func (e *emitter) emitOperator(m *sitter.Node) {
	mods := modifiers(m, e.src())
	if _, ok := e.visible(mods); !ok {
		return
	}
	op := text(field(m, "operator"), e.src())
	if op == "" {
		seen := false
		for _, c := range children(m) {
			if c.Type() == "operator" {
				seen = true
				continue
			}
			if seen && !c.IsNamed() && c.Type() != "checked" {
				op = c.Type()
				break
			}
		}
	}
	s := newScope(e.model, e.decl, nil)

	var sig signature
	sig.text("static ", e.member("operator "+op))
	e.writeParameters(&sig, s, field(m, "parameters"), "(", ")")
	sig.text(" -> ")
	sig.typ(s.render(field(m, "type", "returns")))
	e.add(sig)
}

func (e *emitter) emitConversion(m *sitter.Node) {
	mods := modifiers(m, e.src())
	if _, ok := e.visible(mods); !ok {
		return
	}
	kind := "implicit"
	if hasToken(m, "explicit") {
		kind = "explicit"
	}
	s := newScope(e.model, e.decl, nil)
	t := s.render(field(m, "type"))

	var sig signature
	sig.text("static ", e.member(kind+" operator "))
	sig.typ(t)
	e.writeParameters(&sig, s, field(m, "parameters"), "(", ")")
	sig.text(" -> ")
	sig.typ(t)
	e.add(sig)
}

func (e *emitter) emitInvoke(s *scope) {
	n := e.decl.node
	var sig signature
	sig.text("virtual ", e.member("Invoke"))
	e.writeParameters(&sig, s, field(n, "parameters"), "(", ")")
	sig.text(" -> ")
	sig.typ(s.render(field(n, "returns", "type")))
	e.add(sig)
}

func (e *emitter) emitEnumMembers() {
	display := e.decl.display()
	values := map[string]int64{}
	next, known := int64(0), true
	lastText, offset := "", 0

	for _, m := range e.decl.members() {
		if m.Type() != "enum_member_declaration" {
			continue
		}
		name := nameOf(m, e.src())
		value := field(m, "value")
		if value == nil {
			value = initializer(m)
		}

		var v string
		switch {
		case value != nil:
			if n, ok := evalConstant(value, e.src(), values); ok {
				v = strconv.FormatInt(n, 10)
				values[name] = n
				next, known = n+1, true
			} else {
				v = text(value, e.src())
				lastText, offset, known = v, 0, false
			}
		case known:
			v = strconv.FormatInt(next, 10)
			values[name] = next
			next++
		default:
			offset++
			v = lastText + " + " + strconv.Itoa(offset)
		}

		var sig signature
		sig.text(display + "." + name + " = " + v + " -> " + display)
		e.add(sig)
	}
}

// constraints reports reference types named in type parameter constraints.
func (e *emitter) constraints(s *scope, n *sitter.Node) rendered {
	var r rendered
	for _, clause := range children(n) {
		if clause.Type() != "type_parameter_constraints_clause" {
			continue
		}
		enabled := e.decl.file.nullable.enabledAt(clause.StartPoint().Row)
		target := field(clause, "target")
		for i, c := range namedChildren(clause) {
			if target != nil && c.StartByte() == target.StartByte() || target == nil && i == 0 && c.Type() == "identifier" {
				continue
			}
			switch t := text(c, e.src()); {
			case t == "class":
				r.hasRef = true
				r.oblivious = r.oblivious || !enabled
			case t == "class?", t == "struct", t == "unmanaged", t == "notnull", t == "default", strings.HasPrefix(t, "new"):
			default:
				typeNode := field(c, "type")
				if typeNode == nil && c.Type() == "type_parameter_constraint" {
					typeNode = innerType(c)
				}
				if typeNode == nil {
					typeNode = c
				}
				r.absorb(s.render(typeNode))
			}
		}
	}
	return r
}

// param is one formal parameter. node is nil for a params array, whose
// type and name the grammar attaches to the parameter list itself.
type param struct {
	node *sitter.Node
	typ  *sitter.Node
	name *sitter.Node
}

func parameters(list *sitter.Node) []param {
	var out []param
	var pending *param
	for _, c := range children(list) {
		switch {
		case pending != nil && c.IsNamed() && !isExtra(c) && c.Type() != "attribute_list":
			if pending.typ == nil {
				pending.typ = c
				continue
			}
			pending.name = c
			out = append(out, *pending)
			pending = nil
		case !c.IsNamed() && c.Type() == "params":
			pending = &param{}
		case c.Type() == "parameter" || c.Type() == "parameter_array":
			out = append(out, param{node: c, typ: parameterType(c), name: parameterName(c)})
		}
	}
	return out
}

func parameterType(p *sitter.Node) *sitter.Node {
	if t := field(p, "type"); t != nil {
		return t
	}
	for _, c := range namedChildren(p) {
		switch c.Type() {
		case "attribute_list", "parameter_modifier", "modifier", "equals_value_clause", "identifier":
			continue
		}
		return c
	}
	// Only identifiers left: the first names the type.
	if ids := identifiers(p); len(ids) > 1 {
		return ids[0]
	}
	return nil
}

func parameterName(p *sitter.Node) *sitter.Node {
	if n := field(p, "name"); n != nil {
		return n
	}
	if ids := identifiers(p); len(ids) > 0 {
		return ids[len(ids)-1]
	}
	return nil
}

func identifiers(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for _, c := range namedChildren(n) {
		if c.Type() == "identifier" {
			out = append(out, c)
		}
	}
	return out
}

// initializer returns the value after "=" in a declarator, parameter or
// enum member.
func initializer(n *sitter.Node) *sitter.Node {
	if eq := childOfType(n, "equals_value_clause"); eq != nil {
		if named := namedChildren(eq); len(named) > 0 {
			return named[0]
		}
	}
	seen := false
	for _, c := range children(n) {
		if !c.IsNamed() && c.Type() == "=" {
			seen = true
			continue
		}
		if seen && c.IsNamed() && !isExtra(c) {
			return c
		}
	}
	return nil
}

func (e *emitter) writeParameters(sig *signature, s *scope, list *sitter.Node, open, close string) {
	sig.text(open)
	for i, p := range parameters(list) {
		if i > 0 {
			sig.text(", ")
		}
		e.writeParameter(sig, s, p)
	}
	sig.text(close)
}

func (e *emitter) writeParameter(sig *signature, s *scope, p param) {
	src := e.src()
	if p.node == nil {
		sig.text("params ")
	}
	for _, c := range children(p.node) {
		switch {
		case c.Type() == "parameter_modifier" || c.Type() == "modifier":
			for _, word := range strings.Fields(c.Content(src)) {
				if parameterModifiers[word] {
					sig.text(word + " ")
				}
			}
		case !c.IsNamed() && parameterModifiers[c.Type()]:
			sig.text(c.Type() + " ")
		}
	}

	t := s.render(p.typ)
	sig.typ(t)
	sig.text(" " + text(p.name, src))

	value := initializer(p.node)
	if value == nil {
		return
	}
	v := text(value, src)
	switch {
	case v == "default" || strings.HasPrefix(v, "default("):
		if t.value {
			sig.write(" = default("+t.ann+")", " = default("+t.plain+")")
		} else {
			sig.text(" = null")
		}
	default:
		sig.text(" = " + constantText(value, src))
	}
}

// constantText renders a constant, folding integer expressions.
func constantText(n *sitter.Node, src []byte) string {
	if v, ok := evalConstant(n, src, nil); ok && n.Type() != "integer_literal" {
		return strconv.FormatInt(v, 10)
	}
	return text(n, src)
}

// evalConstant folds integer constant expressions such as 1 << 3 or
// A | B, where names refers to previously declared enum members.
func evalConstant(n *sitter.Node, src []byte, names map[string]int64) (int64, bool) {
	if n == nil {
		return 0, false
	}
	switch n.Type() {
	case "integer_literal":
		return parseInteger(text(n, src))
	case "parenthesized_expression":
		named := namedChildren(n)
		if len(named) != 1 {
			return 0, false
		}
		return evalConstant(named[0], src, names)
	case "identifier":
		v, ok := names[text(n, src)]
		return v, ok
	case "member_access_expression":
		v, ok := names[text(field(n, "name"), src)]
		return v, ok
	case "cast_expression":
		return evalConstant(field(n, "value"), src, names)
	case "prefix_unary_expression":
		named := namedChildren(n)
		if len(named) != 1 {
			return 0, false
		}
		v, ok := evalConstant(named[0], src, names)
		if !ok {
			return 0, false
		}
		switch strings.TrimSpace(strings.TrimSuffix(text(n, src), text(named[0], src))) {
		case "-":
			return -v, true
		case "~":
			return ^v, true
		case "+":
			return v, true
		}
		return 0, false
	case "binary_expression":
		left, lok := evalConstant(field(n, "left"), src, names)
		right, rok := evalConstant(field(n, "right"), src, names)
		if !lok || !rok {
			return 0, false
		}
		op := text(field(n, "operator"), src)
		if op == "" {
			for _, c := range children(n) {
				if !c.IsNamed() {
					op = c.Type()
					break
				}
			}
		}
		switch op {
		case "|":
			return left | right, true
		case "&":
			return left & right, true
		case "^":
			return left ^ right, true
		case "<<":
			return left << uint64(right), true
		case ">>":
			return left >> uint64(right), true
		case "+":
			return left + right, true
		case "-":
			return left - right, true
		case "*":
			return left * right, true
		}
	}
	return 0, false
}

func parseInteger(s string) (int64, bool) {
	s = strings.TrimRight(s, "uUlL")
	if v, err := strconv.ParseInt(s, 0, 64); err == nil {
		return v, true
	}
	if v, err := strconv.ParseUint(s, 0, 64); err == nil {
		return int64(v), true
	}
	return 0, false
}
