package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shaiso/Runbook/internal/domain"
)

// Условные выражения шагов.
//
// Вместо строковой интерполяции с eval (источник инъекций в прототипе)
// условие разбирается в небольшое типизированное AST и вычисляется
// над фиксированным контекстом: переменные run и результаты шагов.
//
// Грамматика:
//
//	expr       = or
//	or         = and { "||" and }
//	and        = unary { "&&" unary }
//	unary      = "!" unary | comparison
//	comparison = primary [ ("==" | "!=" | "<" | "<=" | ">" | ">=") primary ]
//	primary    = NUMBER | STRING | "true" | "false" | ref | "(" expr ")"
//	ref        = IDENT [ "." IDENT ]
//
// Ссылка ref без точки — переменная run (строка). Ссылка с точкой —
// свойство шага: stdout, stderr, exit_code, status, lines,
// succeeded, failed, skipped.

// Condition — разобранное условное выражение шага.
type Condition struct {
	src  string
	root condExpr
}

// StepRef — ссылка на свойство шага внутри условия.
type StepRef struct {
	StepID string
	Prop   string
}

// Допустимые свойства шагов в условиях.
var condStepProps = map[string]bool{
	"stdout":    true,
	"stderr":    true,
	"exit_code": true,
	"status":    true,
	"lines":     true,
	"succeeded": true,
	"failed":    true,
	"skipped":   true,
}

// ParseCondition разбирает условное выражение.
// Пустая строка — валидное условие, всегда истинное.
func ParseCondition(src string) (*Condition, error) {
	if strings.TrimSpace(src) == "" {
		return &Condition{src: src, root: litExpr{val: boolValue(true)}}, nil
	}

	p := &condParser{lex: newCondLexer(src)}
	if err := p.next(); err != nil {
		return nil, err
	}

	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, fmt.Errorf("%w: unexpected %q at offset %d",
			ErrConditionParse, p.tok.text, p.tok.pos)
	}

	return &Condition{src: src, root: root}, nil
}

// String возвращает исходный текст условия.
func (c *Condition) String() string {
	return c.src
}

// StepRefs возвращает все ссылки на шаги в условии.
func (c *Condition) StepRefs() []StepRef {
	var refs []StepRef
	c.root.collectRefs(&refs)
	return refs
}

// Eval вычисляет условие над контекстом резолвинга.
//
// Если условие ссылается на шаг, у которого ещё нет результата,
// возвращается ErrConditionDeferred: планировщик оставляет шаг
// в ожидании и вернётся к нему после следующего завершения.
func (c *Condition) Eval(rctx *ResolveContext) (bool, error) {
	v, err := c.root.eval(rctx)
	if err != nil {
		return false, err
	}
	if v.kind != kindBool {
		return false, fmt.Errorf("%w: condition %q is not boolean", ErrConditionEval, c.src)
	}
	return v.b, nil
}

// --- Значения ---

type valueKind int

const (
	kindStr valueKind = iota
	kindNum
	kindBool
)

// condValue — типизированное значение в условии.
type condValue struct {
	kind valueKind
	s    string
	n    float64
	b    bool
}

func strValue(s string) condValue  { return condValue{kind: kindStr, s: s} }
func numValue(n float64) condValue { return condValue{kind: kindNum, n: n} }
func boolValue(b bool) condValue   { return condValue{kind: kindBool, b: b} }

// asNum пытается привести значение к числу.
func (v condValue) asNum() (float64, bool) {
	switch v.kind {
	case kindNum:
		return v.n, true
	case kindStr:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// --- AST ---

type condExpr interface {
	eval(rctx *ResolveContext) (condValue, error)
	collectRefs(refs *[]StepRef)
}

// litExpr — литерал (строка, число, bool).
type litExpr struct {
	val condValue
}

func (e litExpr) eval(*ResolveContext) (condValue, error) { return e.val, nil }
func (e litExpr) collectRefs(*[]StepRef)                  {}

// varExpr — ссылка на переменную run.
type varExpr struct {
	name string
}

func (e varExpr) eval(rctx *ResolveContext) (condValue, error) {
	value, ok := rctx.Variables[e.name]
	if !ok {
		return condValue{}, fmt.Errorf("%w: unknown variable %q", ErrConditionEval, e.name)
	}
	return strValue(value), nil
}

func (e varExpr) collectRefs(*[]StepRef) {}

// stepExpr — ссылка на свойство шага.
type stepExpr struct {
	ref StepRef
}

func (e stepExpr) eval(rctx *ResolveContext) (condValue, error) {
	result, ok := rctx.Results[e.ref.StepID]
	if !ok {
		return condValue{}, fmt.Errorf("%w: step %q", ErrConditionDeferred, e.ref.StepID)
	}

	switch e.ref.Prop {
	case "stdout":
		return strValue(strings.TrimSpace(result.Stdout)), nil
	case "stderr":
		return strValue(strings.TrimSpace(result.Stderr)), nil
	case "exit_code":
		return numValue(float64(result.ExitCode)), nil
	case "status":
		return strValue(string(result.Status)), nil
	case "lines":
		return numValue(float64(countLines(result.Stdout))), nil
	case "succeeded":
		return boolValue(result.Status == domain.StepStatusSucceeded), nil
	case "failed":
		return boolValue(result.Status == domain.StepStatusFailed ||
			result.Status == domain.StepStatusTimedOut), nil
	case "skipped":
		return boolValue(result.Status == domain.StepStatusSkipped), nil
	default:
		return condValue{}, fmt.Errorf("%w: unknown step property %q",
			ErrConditionEval, e.ref.Prop)
	}
}

func (e stepExpr) collectRefs(refs *[]StepRef) {
	*refs = append(*refs, e.ref)
}

// notExpr — логическое отрицание.
type notExpr struct {
	inner condExpr
}

func (e notExpr) eval(rctx *ResolveContext) (condValue, error) {
	v, err := e.inner.eval(rctx)
	if err != nil {
		return condValue{}, err
	}
	if v.kind != kindBool {
		return condValue{}, fmt.Errorf("%w: operand of ! is not boolean", ErrConditionEval)
	}
	return boolValue(!v.b), nil
}

func (e notExpr) collectRefs(refs *[]StepRef) { e.inner.collectRefs(refs) }

// logicExpr — && или ||.
type logicExpr struct {
	op          string // "&&" или "||"
	left, right condExpr
}

func (e logicExpr) eval(rctx *ResolveContext) (condValue, error) {
	lv, err := e.left.eval(rctx)
	if err != nil {
		return condValue{}, err
	}
	if lv.kind != kindBool {
		return condValue{}, fmt.Errorf("%w: operand of %s is not boolean", ErrConditionEval, e.op)
	}

	// Короткое замыкание не используем: правый операнд может ссылаться
	// на незавершённый шаг, и это должно отложить вычисление целиком,
	// а не зависеть от порядка операндов.
	rv, err := e.right.eval(rctx)
	if err != nil {
		return condValue{}, err
	}
	if rv.kind != kindBool {
		return condValue{}, fmt.Errorf("%w: operand of %s is not boolean", ErrConditionEval, e.op)
	}

	if e.op == "&&" {
		return boolValue(lv.b && rv.b), nil
	}
	return boolValue(lv.b || rv.b), nil
}

func (e logicExpr) collectRefs(refs *[]StepRef) {
	e.left.collectRefs(refs)
	e.right.collectRefs(refs)
}

// cmpExpr — сравнение двух значений.
type cmpExpr struct {
	op          string
	left, right condExpr
}

func (e cmpExpr) eval(rctx *ResolveContext) (condValue, error) {
	lv, err := e.left.eval(rctx)
	if err != nil {
		return condValue{}, err
	}
	rv, err := e.right.eval(rctx)
	if err != nil {
		return condValue{}, err
	}

	switch e.op {
	case "==", "!=":
		eq, err := valuesEqual(lv, rv)
		if err != nil {
			return condValue{}, err
		}
		if e.op == "!=" {
			eq = !eq
		}
		return boolValue(eq), nil

	default: // < <= > >=
		ln, lok := lv.asNum()
		rn, rok := rv.asNum()
		if !lok || !rok {
			return condValue{}, fmt.Errorf("%w: operands of %s are not numeric",
				ErrConditionEval, e.op)
		}
		switch e.op {
		case "<":
			return boolValue(ln < rn), nil
		case "<=":
			return boolValue(ln <= rn), nil
		case ">":
			return boolValue(ln > rn), nil
		default:
			return boolValue(ln >= rn), nil
		}
	}
}

func (e cmpExpr) collectRefs(refs *[]StepRef) {
	e.left.collectRefs(refs)
	e.right.collectRefs(refs)
}

// valuesEqual сравнивает значения на равенство с числовой коэрцией:
// число и строка равны, если строка парсится в то же число.
func valuesEqual(a, b condValue) (bool, error) {
	if a.kind == b.kind {
		switch a.kind {
		case kindStr:
			return a.s == b.s, nil
		case kindNum:
			return a.n == b.n, nil
		default:
			return a.b == b.b, nil
		}
	}

	if a.kind == kindBool || b.kind == kindBool {
		return false, fmt.Errorf("%w: cannot compare boolean with non-boolean", ErrConditionEval)
	}

	an, aok := a.asNum()
	bn, bok := b.asNum()
	if aok && bok {
		return an == bn, nil
	}

	// Строка, не являющаяся числом, не равна числу
	return false, nil
}
