package engine

import (
	"fmt"
	"strconv"
	"unicode"
)

// Лексер и парсер условных выражений. Вынесены отдельно от AST,
// чтобы condition.go читался как описание семантики.

type tokKind int

const (
	tokEOF tokKind = iota
	tokIdent
	tokNumber
	tokString
	tokOp // == != < <= > >= && || !
	tokLParen
	tokRParen
	tokDot
)

type condToken struct {
	kind tokKind
	text string
	pos  int
}

type condLexer struct {
	src []rune
	pos int
}

func newCondLexer(src string) *condLexer {
	return &condLexer{src: []rune(src)}
}

func (l *condLexer) next() (condToken, error) {
	for l.pos < len(l.src) && unicode.IsSpace(l.src[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return condToken{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	ch := l.src[l.pos]

	switch {
	case ch == '(':
		l.pos++
		return condToken{kind: tokLParen, text: "(", pos: start}, nil
	case ch == ')':
		l.pos++
		return condToken{kind: tokRParen, text: ")", pos: start}, nil
	case ch == '.':
		l.pos++
		return condToken{kind: tokDot, text: ".", pos: start}, nil

	case ch == '\'' || ch == '"':
		return l.lexString(ch)

	case ch == '&' || ch == '|':
		if l.pos+1 < len(l.src) && l.src[l.pos+1] == ch {
			l.pos += 2
			return condToken{kind: tokOp, text: string([]rune{ch, ch}), pos: start}, nil
		}
		return condToken{}, fmt.Errorf("%w: unexpected %q at offset %d",
			ErrConditionParse, string(ch), start)

	case ch == '=':
		if l.pos+1 < len(l.src) && l.src[l.pos+1] == '=' {
			l.pos += 2
			return condToken{kind: tokOp, text: "==", pos: start}, nil
		}
		return condToken{}, fmt.Errorf("%w: single %q at offset %d, expected ==",
			ErrConditionParse, "=", start)

	case ch == '!':
		if l.pos+1 < len(l.src) && l.src[l.pos+1] == '=' {
			l.pos += 2
			return condToken{kind: tokOp, text: "!=", pos: start}, nil
		}
		l.pos++
		return condToken{kind: tokOp, text: "!", pos: start}, nil

	case ch == '<' || ch == '>':
		if l.pos+1 < len(l.src) && l.src[l.pos+1] == '=' {
			l.pos += 2
			return condToken{kind: tokOp, text: string(ch) + "=", pos: start}, nil
		}
		l.pos++
		return condToken{kind: tokOp, text: string(ch), pos: start}, nil

	case unicode.IsDigit(ch) || (ch == '-' && l.pos+1 < len(l.src) && unicode.IsDigit(l.src[l.pos+1])):
		return l.lexNumber()

	case isIdentStart(ch):
		return l.lexIdent()

	default:
		return condToken{}, fmt.Errorf("%w: unexpected %q at offset %d",
			ErrConditionParse, string(ch), start)
	}
}

func (l *condLexer) lexString(quote rune) (condToken, error) {
	start := l.pos
	l.pos++ // открывающая кавычка
	var out []rune
	for l.pos < len(l.src) {
		ch := l.src[l.pos]
		if ch == quote {
			l.pos++
			return condToken{kind: tokString, text: string(out), pos: start}, nil
		}
		if ch == '\\' && l.pos+1 < len(l.src) {
			l.pos++
			ch = l.src[l.pos]
		}
		out = append(out, ch)
		l.pos++
	}
	return condToken{}, fmt.Errorf("%w: unterminated string at offset %d",
		ErrConditionParse, start)
}

func (l *condLexer) lexNumber() (condToken, error) {
	start := l.pos
	if l.src[l.pos] == '-' {
		l.pos++
	}
	for l.pos < len(l.src) && (unicode.IsDigit(l.src[l.pos]) || l.src[l.pos] == '.') {
		// Точка после цифры — часть числа только если за ней цифра,
		// иначе это обращение к свойству
		if l.src[l.pos] == '.' {
			if l.pos+1 >= len(l.src) || !unicode.IsDigit(l.src[l.pos+1]) {
				break
			}
		}
		l.pos++
	}
	text := string(l.src[start:l.pos])
	if _, err := strconv.ParseFloat(text, 64); err != nil {
		return condToken{}, fmt.Errorf("%w: bad number %q at offset %d",
			ErrConditionParse, text, start)
	}
	return condToken{kind: tokNumber, text: text, pos: start}, nil
}

func (l *condLexer) lexIdent() (condToken, error) {
	start := l.pos
	for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
		l.pos++
	}
	return condToken{kind: tokIdent, text: string(l.src[start:l.pos]), pos: start}, nil
}

func isIdentStart(ch rune) bool {
	return unicode.IsLetter(ch) || ch == '_'
}

func isIdentPart(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' || ch == '-'
}

// --- Парсер ---

type condParser struct {
	lex *condLexer
	tok condToken
}

func (p *condParser) next() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *condParser) parseOr() (condExpr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOp && p.tok.text == "||" {
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = logicExpr{op: "||", left: left, right: right}
	}
	return left, nil
}

func (p *condParser) parseAnd() (condExpr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOp && p.tok.text == "&&" {
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = logicExpr{op: "&&", left: left, right: right}
	}
	return left, nil
}

func (p *condParser) parseUnary() (condExpr, error) {
	if p.tok.kind == tokOp && p.tok.text == "!" {
		if err := p.next(); err != nil {
			return nil, err
		}
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notExpr{inner: inner}, nil
	}
	return p.parseComparison()
}

func isCmpOp(text string) bool {
	switch text {
	case "==", "!=", "<", "<=", ">", ">=":
		return true
	}
	return false
}

func (p *condParser) parseComparison() (condExpr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.tok.kind == tokOp && isCmpOp(p.tok.text) {
		op := p.tok.text
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return cmpExpr{op: op, left: left, right: right}, nil
	}
	return left, nil
}

func (p *condParser) parsePrimary() (condExpr, error) {
	switch p.tok.kind {
	case tokNumber:
		n, err := strconv.ParseFloat(p.tok.text, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad number %q", ErrConditionParse, p.tok.text)
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		return litExpr{val: numValue(n)}, nil

	case tokString:
		text := p.tok.text
		if err := p.next(); err != nil {
			return nil, err
		}
		return litExpr{val: strValue(text)}, nil

	case tokLParen:
		if err := p.next(); err != nil {
			return nil, err
		}
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokRParen {
			return nil, fmt.Errorf("%w: expected ) at offset %d", ErrConditionParse, p.tok.pos)
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		return inner, nil

	case tokIdent:
		name := p.tok.text
		if err := p.next(); err != nil {
			return nil, err
		}

		if name == "true" || name == "false" {
			return litExpr{val: boolValue(name == "true")}, nil
		}

		if p.tok.kind != tokDot {
			return varExpr{name: name}, nil
		}

		// Ссылка на свойство шага: id.prop
		if err := p.next(); err != nil {
			return nil, err
		}
		if p.tok.kind != tokIdent {
			return nil, fmt.Errorf("%w: expected property after %q.", ErrConditionParse, name)
		}
		prop := p.tok.text
		if !condStepProps[prop] {
			return nil, fmt.Errorf("%w: unknown step property %q at offset %d",
				ErrConditionParse, prop, p.tok.pos)
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		return stepExpr{ref: StepRef{StepID: name, Prop: prop}}, nil

	default:
		return nil, fmt.Errorf("%w: unexpected %q at offset %d",
			ErrConditionParse, p.tok.text, p.tok.pos)
	}
}
