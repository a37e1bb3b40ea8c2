package expr

// Shorthand constructors for building expressions in code.

func This() *AccessThis { return &AccessThis{} }

func Parent(ancestor int) *AccessThis { return &AccessThis{Ancestor: ancestor} }

func Scope(name string) *AccessScope { return &AccessScope{Name: name} }

// Member builds a chain of member accesses: Member(Scope("a"), "b", "c")
// is a.b.c.
func Member(obj Node, names ...string) Node {
	for _, name := range names {
		obj = &AccessMember{Object: obj, Name: name}
	}
	return obj
}

// Path is Member over a scope access: Path("user", "name") is user.name.
func Path(name string, names ...string) Node {
	return Member(Scope(name), names...)
}

func Keyed(obj, key Node) *AccessKeyed { return &AccessKeyed{Object: obj, Key: key} }

func Call(name string, args ...Node) *CallScope { return &CallScope{Name: name, Args: args} }

func CallOn(obj Node, name string, args ...Node) *CallMember {
	return &CallMember{Object: obj, Name: name, Args: args}
}

func Lit(v any) *LiteralPrimitive { return &LiteralPrimitive{Value: v} }

func Bin(op string, left, right Node) *Binary { return &Binary{Op: op, Left: left, Right: right} }

func Not(n Node) *Unary { return &Unary{Op: "!", Operand: n} }

func Cond(condition, yes, no Node) *Conditional {
	return &Conditional{Condition: condition, Yes: yes, No: no}
}

func Set(target, value Node) *AssignExpression {
	return &AssignExpression{Target: target, Value: value}
}

// Interp builds a Template from alternating strings and nodes, starting
// and ending with a string.
func Interp(parts ...any) *Template {
	t := &Template{}
	wantString := true
	for _, p := range parts {
		if n, ok := p.(Node); ok {
			if wantString {
				t.Cooked = append(t.Cooked, "")
			}
			t.Exprs = append(t.Exprs, n)
			wantString = true
			continue
		}
		s, _ := p.(string)
		if !wantString {
			t.Cooked[len(t.Cooked)-1] += s
			continue
		}
		t.Cooked = append(t.Cooked, s)
		wantString = false
	}
	if wantString {
		t.Cooked = append(t.Cooked, "")
	}
	return t
}

func Convert(n Node, name string, args ...Node) *ValueConverterExpression {
	return &ValueConverterExpression{Expr: n, Name: name, Args: args}
}
