package memdb

import (
	"bytes"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// item is a stored item or key.
type item = map[string]types.AttributeValue

// Condition is a parsed DynamoDB condition expression.
type Condition struct {
	eval func(item) bool
}

// Eval reports whether the condition holds for it. An absent item is
// represented by an empty or nil map.
func (c *Condition) Eval(it item) bool {
	if c == nil {
		return true
	}
	return c.eval(it)
}

// ParseCondition parses expr, resolving #name and :value placeholders.
// Like DynamoDB it rejects undefined and unused placeholders.
func ParseCondition(expr string, names map[string]string, values map[string]types.AttributeValue) (*Condition, error) {
	toks, err := lex(expr)
	if err != nil {
		return nil, err
	}
	p := &parser{
		toks:       toks,
		names:      names,
		values:     values,
		usedNames:  map[string]bool{},
		usedValues: map[string]bool{},
	}
	eval, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, fmt.Errorf("syntax error: unexpected %q", p.peek().text)
	}
	for k := range names {
		if !p.usedNames[k] {
			return nil, fmt.Errorf("expression attribute name %s is unused", k)
		}
	}
	for k := range values {
		if !p.usedValues[k] {
			return nil, fmt.Errorf("expression attribute value %s is unused", k)
		}
	}
	return &Condition{eval: eval}, nil
}

type tokKind int

const (
	tokIdent tokKind = iota
	tokName
	tokValue
	tokInt
	tokOp
	tokEOF
)

type token struct {
	kind tokKind
	text string
}

func lex(s string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '#' || c == ':':
			j := i + 1
			for j < len(s) && isIdentByte(s[j]) {
				j++
			}
			if j == i+1 {
				return nil, fmt.Errorf("syntax error: empty placeholder at %d", i)
			}
			kind := tokName
			if c == ':' {
				kind = tokValue
			}
			toks = append(toks, token{kind, s[i:j]})
			i = j
		case isIdentByte(c) && !(c >= '0' && c <= '9'):
			j := i
			for j < len(s) && isIdentByte(s[j]) {
				j++
			}
			toks = append(toks, token{tokIdent, s[i:j]})
			i = j
		case c >= '0' && c <= '9':
			j := i
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			toks = append(toks, token{tokInt, s[i:j]})
			i = j
		case c == '<' || c == '>':
			if i+1 < len(s) && (s[i+1] == '=' || (c == '<' && s[i+1] == '>')) {
				toks = append(toks, token{tokOp, s[i : i+2]})
				i += 2
			} else {
				toks = append(toks, token{tokOp, s[i : i+1]})
				i++
			}
		case strings.IndexByte("=(),.[]", c) >= 0:
			toks = append(toks, token{tokOp, s[i : i+1]})
			i++
		default:
			return nil, fmt.Errorf("syntax error: unexpected character %q at %d", c, i)
		}
	}
	return append(toks, token{tokEOF, ""}), nil
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

type parser struct {
	toks       []token
	pos        int
	names      map[string]string
	values     map[string]types.AttributeValue
	usedNames  map[string]bool
	usedValues map[string]bool
}

// operand yields a value for an item; false means the value is absent.
type operand func(item) (types.AttributeValue, bool)

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) done() bool { return p.peek().kind == tokEOF }

func (p *parser) keyword(kw string) bool {
	t := p.peek()
	if t.kind == tokIdent && strings.EqualFold(t.text, kw) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) op(op string) bool {
	t := p.peek()
	if t.kind == tokOp && t.text == op {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(op string) error {
	if !p.op(op) {
		return fmt.Errorf("syntax error: expected %q, got %q", op, p.peek().text)
	}
	return nil
}

func (p *parser) parseOr() (func(item) bool, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.keyword("OR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l, r := left, right
		left = func(it item) bool { return l(it) || r(it) }
	}
	return left, nil
}

func (p *parser) parseAnd() (func(item) bool, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.keyword("AND") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		l, r := left, right
		left = func(it item) bool { return l(it) && r(it) }
	}
	return left, nil
}

func (p *parser) parseNot() (func(item) bool, error) {
	if p.keyword("NOT") {
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return func(it item) bool { return !inner(it) }, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (func(item) bool, error) {
	if p.op("(") {
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		return inner, p.expect(")")
	}

	t := p.peek()
	if t.kind == tokIdent && p.toks[p.pos+1].text == "(" {
		switch strings.ToLower(t.text) {
		case "attribute_exists", "attribute_not_exists", "attribute_type", "begins_with", "contains":
			return p.parseFunction()
		}
	}

	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	if p.keyword("BETWEEN") {
		lo, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		if !p.keyword("AND") {
			return nil, fmt.Errorf("syntax error: BETWEEN without AND")
		}
		hi, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return func(it item) bool {
			v, ok1 := left(it)
			l, ok2 := lo(it)
			h, ok3 := hi(it)
			if !ok1 || !ok2 || !ok3 {
				return false
			}
			c1, ok1 := compare(l, v)
			c2, ok2 := compare(v, h)
			return ok1 && ok2 && c1 <= 0 && c2 <= 0
		}, nil
	}

	if p.keyword("IN") {
		if err := p.expect("("); err != nil {
			return nil, err
		}
		var set []operand
		for {
			o, err := p.parseOperand()
			if err != nil {
				return nil, err
			}
			set = append(set, o)
			if !p.op(",") {
				break
			}
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return func(it item) bool {
			v, ok := left(it)
			if !ok {
				return false
			}
			for _, o := range set {
				if w, ok := o(it); ok && Equal(v, w) {
					return true
				}
			}
			return false
		}, nil
	}

	cmp := p.next()
	if cmp.kind != tokOp {
		return nil, fmt.Errorf("syntax error: expected comparator, got %q", cmp.text)
	}
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return comparison(cmp.text, left, right)
}

func comparison(op string, left, right operand) (func(item) bool, error) {
	switch op {
	case "=":
		return func(it item) bool {
			l, ok1 := left(it)
			r, ok2 := right(it)
			return ok1 && ok2 && Equal(l, r)
		}, nil
	case "<>":
		return func(it item) bool {
			l, ok1 := left(it)
			r, ok2 := right(it)
			return !ok1 || !ok2 || !Equal(l, r)
		}, nil
	case "<", "<=", ">", ">=":
		return func(it item) bool {
			l, ok1 := left(it)
			r, ok2 := right(it)
			if !ok1 || !ok2 {
				return false
			}
			c, ok := compare(l, r)
			if !ok {
				return false
			}
			switch op {
			case "<":
				return c < 0
			case "<=":
				return c <= 0
			case ">":
				return c > 0
			default:
				return c >= 0
			}
		}, nil
	}
	return nil, fmt.Errorf("syntax error: expected comparator, got %q", op)
}

func (p *parser) parseFunction() (func(item) bool, error) {
	name := strings.ToLower(p.next().text)
	if err := p.expect("("); err != nil {
		return nil, err
	}
	path, err := p.parsePath()
	if err != nil {
		return nil, err
	}

	var arg operand
	if name != "attribute_exists" && name != "attribute_not_exists" {
		if err := p.expect(","); err != nil {
			return nil, err
		}
		if arg, err = p.parseOperand(); err != nil {
			return nil, err
		}
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}

	switch name {
	case "attribute_exists":
		return func(it item) bool { _, ok := path(it); return ok }, nil
	case "attribute_not_exists":
		return func(it item) bool { _, ok := path(it); return !ok }, nil
	case "attribute_type":
		return func(it item) bool {
			v, ok := path(it)
			t, ok2 := arg(it)
			s, isS := t.(*types.AttributeValueMemberS)
			return ok && ok2 && isS && typeName(v) == s.Value
		}, nil
	case "begins_with":
		return func(it item) bool {
			v, ok := path(it)
			prefix, ok2 := arg(it)
			if !ok || !ok2 {
				return false
			}
			switch v := v.(type) {
			case *types.AttributeValueMemberS:
				s, ok := prefix.(*types.AttributeValueMemberS)
				return ok && strings.HasPrefix(v.Value, s.Value)
			case *types.AttributeValueMemberB:
				b, ok := prefix.(*types.AttributeValueMemberB)
				return ok && bytes.HasPrefix(v.Value, b.Value)
			}
			return false
		}, nil
	default: // contains
		return func(it item) bool {
			v, ok := path(it)
			needle, ok2 := arg(it)
			if !ok || !ok2 {
				return false
			}
			return contains(v, needle)
		}, nil
	}
}

func (p *parser) parseOperand() (operand, error) {
	t := p.peek()
	switch {
	case t.kind == tokValue:
		p.pos++
		v, ok := p.values[t.text]
		if !ok {
			return nil, fmt.Errorf("expression attribute value %s is not defined", t.text)
		}
		p.usedValues[t.text] = true
		return func(item) (types.AttributeValue, bool) { return v, true }, nil
	case t.kind == tokIdent && strings.EqualFold(t.text, "size") && p.toks[p.pos+1].text == "(":
		p.pos += 2
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return func(it item) (types.AttributeValue, bool) {
			v, ok := path(it)
			if !ok {
				return nil, false
			}
			n, ok := size(v)
			if !ok {
				return nil, false
			}
			return &types.AttributeValueMemberN{Value: strconv.Itoa(n)}, true
		}, nil
	default:
		return p.parsePath()
	}
}

// parsePath parses a document path such as a.#b[2].c.
func (p *parser) parsePath() (operand, error) {
	type step struct {
		name  string
		index int
	}
	var steps []step

	name, err := p.pathName()
	if err != nil {
		return nil, err
	}
	steps = append(steps, step{name: name, index: -1})
	for {
		switch {
		case p.op("."):
			name, err := p.pathName()
			if err != nil {
				return nil, err
			}
			steps = append(steps, step{name: name, index: -1})
		case p.op("["):
			t := p.next()
			if t.kind != tokInt {
				return nil, fmt.Errorf("syntax error: expected list index, got %q", t.text)
			}
			idx, err := strconv.Atoi(t.text)
			if err != nil {
				return nil, fmt.Errorf("syntax error: list index %q", t.text)
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			steps = append(steps, step{index: idx})
		default:
			return func(it item) (types.AttributeValue, bool) {
				var cur types.AttributeValue = &types.AttributeValueMemberM{Value: it}
				for _, s := range steps {
					if s.index >= 0 {
						l, ok := cur.(*types.AttributeValueMemberL)
						if !ok || s.index >= len(l.Value) {
							return nil, false
						}
						cur = l.Value[s.index]
						continue
					}
					m, ok := cur.(*types.AttributeValueMemberM)
					if !ok {
						return nil, false
					}
					if cur, ok = m.Value[s.name]; !ok {
						return nil, false
					}
				}
				return cur, true
			}, nil
		}
	}
}

func (p *parser) pathName() (string, error) {
	t := p.next()
	switch t.kind {
	case tokName:
		n, ok := p.names[t.text]
		if !ok {
			return "", fmt.Errorf("expression attribute name %s is not defined", t.text)
		}
		p.usedNames[t.text] = true
		return n, nil
	case tokIdent:
		if isReserved(t.text) {
			return "", fmt.Errorf("attribute name is a reserved keyword: %s", t.text)
		}
		return t.text, nil
	}
	return "", fmt.Errorf("syntax error: expected attribute name, got %q", t.text)
}

func isReserved(s string) bool {
	switch strings.ToUpper(s) {
	case "AND", "OR", "NOT", "BETWEEN", "IN", "SIZE", "NAME", "VALUE", "TYPE", "TABLE", "KEY", "STATUS", "DATA", "COUNT", "DATE", "TIME", "YEAR", "USER", "ORDER":
		return true
	}
	return false
}

// Equal reports whether two attribute values are equal under DynamoDB
// semantics: numbers compare by value and sets ignore order.
func Equal(a, b types.AttributeValue) bool {
	switch a := a.(type) {
	case *types.AttributeValueMemberS:
		b, ok := b.(*types.AttributeValueMemberS)
		return ok && a.Value == b.Value
	case *types.AttributeValueMemberN:
		b, ok := b.(*types.AttributeValueMemberN)
		return ok && numCmp(a.Value, b.Value) == 0
	case *types.AttributeValueMemberB:
		b, ok := b.(*types.AttributeValueMemberB)
		return ok && bytes.Equal(a.Value, b.Value)
	case *types.AttributeValueMemberBOOL:
		b, ok := b.(*types.AttributeValueMemberBOOL)
		return ok && a.Value == b.Value
	case *types.AttributeValueMemberNULL:
		_, ok := b.(*types.AttributeValueMemberNULL)
		return ok
	case *types.AttributeValueMemberSS:
		b, ok := b.(*types.AttributeValueMemberSS)
		return ok && sameSet(a.Value, b.Value, func(x, y string) bool { return x == y })
	case *types.AttributeValueMemberNS:
		b, ok := b.(*types.AttributeValueMemberNS)
		return ok && sameSet(a.Value, b.Value, func(x, y string) bool { return numCmp(x, y) == 0 })
	case *types.AttributeValueMemberBS:
		b, ok := b.(*types.AttributeValueMemberBS)
		return ok && sameSet(a.Value, b.Value, bytes.Equal)
	case *types.AttributeValueMemberL:
		b, ok := b.(*types.AttributeValueMemberL)
		if !ok || len(a.Value) != len(b.Value) {
			return false
		}
		for i := range a.Value {
			if !Equal(a.Value[i], b.Value[i]) {
				return false
			}
		}
		return true
	case *types.AttributeValueMemberM:
		b, ok := b.(*types.AttributeValueMemberM)
		if !ok || len(a.Value) != len(b.Value) {
			return false
		}
		for k, v := range a.Value {
			w, ok := b.Value[k]
			if !ok || !Equal(v, w) {
				return false
			}
		}
		return true
	}
	return false
}

func sameSet[T any](a, b []T, eq func(x, y T) bool) bool {
	if len(a) != len(b) {
		return false
	}
	for _, x := range a {
		found := false
		for _, y := range b {
			if eq(x, y) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// compare orders two scalars of the same type.
func compare(a, b types.AttributeValue) (int, bool) {
	switch a := a.(type) {
	case *types.AttributeValueMemberS:
		if b, ok := b.(*types.AttributeValueMemberS); ok {
			return strings.Compare(a.Value, b.Value), true
		}
	case *types.AttributeValueMemberN:
		if b, ok := b.(*types.AttributeValueMemberN); ok {
			c := numCmp(a.Value, b.Value)
			return c, c != 2
		}
	case *types.AttributeValueMemberB:
		if b, ok := b.(*types.AttributeValueMemberB); ok {
			return bytes.Compare(a.Value, b.Value), true
		}
	}
	return 0, false
}

// numCmp compares two decimal strings, returning 2 if either is invalid.
func numCmp(a, b string) int {
	x, ok1 := new(big.Rat).SetString(a)
	y, ok2 := new(big.Rat).SetString(b)
	if !ok1 || !ok2 {
		return 2
	}
	return x.Cmp(y)
}

func contains(v, needle types.AttributeValue) bool {
	switch v := v.(type) {
	case *types.AttributeValueMemberS:
		s, ok := needle.(*types.AttributeValueMemberS)
		return ok && strings.Contains(v.Value, s.Value)
	case *types.AttributeValueMemberB:
		b, ok := needle.(*types.AttributeValueMemberB)
		return ok && bytes.Contains(v.Value, b.Value)
	case *types.AttributeValueMemberSS:
		s, ok := needle.(*types.AttributeValueMemberS)
		if !ok {
			return false
		}
		for _, x := range v.Value {
			if x == s.Value {
				return true
			}
		}
	case *types.AttributeValueMemberNS:
		n, ok := needle.(*types.AttributeValueMemberN)
		if !ok {
			return false
		}
		for _, x := range v.Value {
			if numCmp(x, n.Value) == 0 {
				return true
			}
		}
	case *types.AttributeValueMemberBS:
		b, ok := needle.(*types.AttributeValueMemberB)
		if !ok {
			return false
		}
		for _, x := range v.Value {
			if bytes.Equal(x, b.Value) {
				return true
			}
		}
	case *types.AttributeValueMemberL:
		for _, x := range v.Value {
			if Equal(x, needle) {
				return true
			}
		}
	}
	return false
}

func size(v types.AttributeValue) (int, bool) {
	switch v := v.(type) {
	case *types.AttributeValueMemberS:
		return utf8.RuneCountInString(v.Value), true
	case *types.AttributeValueMemberB:
		return len(v.Value), true
	case *types.AttributeValueMemberSS:
		return len(v.Value), true
	case *types.AttributeValueMemberNS:
		return len(v.Value), true
	case *types.AttributeValueMemberBS:
		return len(v.Value), true
	case *types.AttributeValueMemberL:
		return len(v.Value), true
	case *types.AttributeValueMemberM:
		return len(v.Value), true
	}
	return 0, false
}

func typeName(v types.AttributeValue) string {
	switch v.(type) {
	case *types.AttributeValueMemberS:
		return "S"
	case *types.AttributeValueMemberN:
		return "N"
	case *types.AttributeValueMemberB:
		return "B"
	case *types.AttributeValueMemberBOOL:
		return "BOOL"
	case *types.AttributeValueMemberNULL:
		return "NULL"
	case *types.AttributeValueMemberSS:
		return "SS"
	case *types.AttributeValueMemberNS:
		return "NS"
	case *types.AttributeValueMemberBS:
		return "BS"
	case *types.AttributeValueMemberL:
		return "L"
	case *types.AttributeValueMemberM:
		return "M"
	}
	return ""
}
