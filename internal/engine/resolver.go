package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shaiso/Runbook/internal/domain"
)

// ResolveContext — контекст для подстановки плейсхолдеров.
//
// Используется в командах, рабочих директориях, окружении и условиях:
//   - ${variable}        — значение переменной workflow
//   - ${step.stdout}     — stdout завершённого шага (обрезанный)
//   - ${step.stderr}     — stderr завершённого шага
//   - ${step.exit_code}  — код завершения
//   - ${step.status}     — терминальный статус (SUCCEEDED, FAILED, ...)
//   - ${step.lines}      — количество непустых строк в stdout
type ResolveContext struct {
	// Variables — переменные run (workflow variables + входные).
	Variables map[string]string

	// Results — снимок результатов завершённых шагов на момент резолвинга.
	// Шаг никогда не видит результатов, записанных после его резолвинга.
	Results map[string]*domain.StepResult
}

// NewResolveContext создаёт контекст резолвинга.
func NewResolveContext(variables map[string]string, results map[string]*domain.StepResult) *ResolveContext {
	if variables == nil {
		variables = make(map[string]string)
	}
	if results == nil {
		results = make(map[string]*domain.StepResult)
	}
	return &ResolveContext{Variables: variables, Results: results}
}

// Resolve выполняет однопроходную подстановку плейсхолдеров в шаблон.
//
// Каждый плейсхолдер заменяется строковым значением референта ровно
// один раз; значения подстановки повторно не сканируются, поэтому
// содержимое переменных не может внедрить новые плейсхолдеры.
// Неразрешимый плейсхолдер — ошибка ErrUnresolvedReference.
func Resolve(tmpl string, rctx *ResolveContext) (string, error) {
	if !strings.Contains(tmpl, "${") {
		return tmpl, nil
	}

	var b strings.Builder
	b.Grow(len(tmpl))

	rest := tmpl
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}

		end := strings.Index(rest[start:], "}")
		if end < 0 {
			// Незакрытый плейсхолдер оставляем как есть
			b.WriteString(rest)
			return b.String(), nil
		}
		end += start

		b.WriteString(rest[:start])
		name := rest[start+2 : end]

		value, err := rctx.lookup(name)
		if err != nil {
			return "", err
		}
		b.WriteString(value)

		rest = rest[end+1:]
	}
}

// lookup возвращает значение плейсхолдера.
// Переменные имеют приоритет над ссылками на шаги.
func (rctx *ResolveContext) lookup(name string) (string, error) {
	if value, ok := rctx.Variables[name]; ok {
		return value, nil
	}

	stepID, prop, found := strings.Cut(name, ".")
	if !found {
		return "", fmt.Errorf("%w: unknown variable %q", ErrUnresolvedReference, name)
	}

	result, ok := rctx.Results[stepID]
	if !ok {
		return "", fmt.Errorf("%w: step %q has no recorded result", ErrUnresolvedReference, stepID)
	}

	switch prop {
	case "stdout":
		return strings.TrimSpace(result.Stdout), nil
	case "stderr":
		return strings.TrimSpace(result.Stderr), nil
	case "exit_code":
		return strconv.Itoa(result.ExitCode), nil
	case "status":
		return string(result.Status), nil
	case "lines":
		return strconv.Itoa(countLines(result.Stdout)), nil
	default:
		return "", fmt.Errorf("%w: unknown step property %q of step %q",
			ErrUnresolvedReference, prop, stepID)
	}
}

// ResolveEnv резолвит значения переменных окружения.
// Ключи не резолвятся.
func ResolveEnv(env map[string]string, rctx *ResolveContext) (map[string]string, error) {
	if len(env) == 0 {
		return nil, nil
	}

	resolved := make(map[string]string, len(env))
	for key, value := range env {
		v, err := Resolve(value, rctx)
		if err != nil {
			return nil, fmt.Errorf("env %s: %w", key, err)
		}
		resolved[key] = v
	}
	return resolved, nil
}

// countLines считает непустые строки (наследие findings_count:
// грубая оценка количества находок в выводе команды).
func countLines(s string) int {
	n := 0
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
