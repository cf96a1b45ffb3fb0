package engine

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/shaiso/Runbook/internal/domain"
)

// ParseWorkflow разбирает JSON-определение workflow и валидирует его.
//
// Если в определении нет ID, генерируется новый. Возвращает
// ValidationError (или CycleError) при любом нарушении структуры.
func ParseWorkflow(data []byte) (*domain.Workflow, error) {
	var wf domain.Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse workflow: %w", err)
	}

	if wf.ID == uuid.Nil {
		wf.ID = uuid.New()
	}

	if err := Validate(&wf); err != nil {
		return nil, err
	}

	return &wf, nil
}

// Validate выполняет полную валидацию определения workflow.
//
// Проверяет:
// - Наличие шагов
// - Уникальность и непустоту ID шагов
// - Непустоту команд
// - Валидность зависимостей (depends_on)
// - Валидность таймаутов, retry-политик и режимов
// - Синтаксис условий и то, что условия ссылаются только на предков
// - Отсутствие циклов (делегируется графу)
func Validate(wf *domain.Workflow) error {
	if wf == nil || len(wf.Steps) == 0 {
		return ErrEmptySteps
	}

	stepIDs := make(map[string]bool, len(wf.Steps))

	for i := range wf.Steps {
		step := &wf.Steps[i]

		if err := validateStep(step, stepIDs); err != nil {
			return err
		}
	}

	if err := validateDependencies(wf.Steps, stepIDs); err != nil {
		return err
	}

	if err := validateConditions(wf.Steps); err != nil {
		return err
	}

	// Проверка на циклы — строим граф
	if _, err := BuildGraph(wf); err != nil {
		return err
	}

	return nil
}

// validateStep валидирует один шаг.
// stepIDs — уже встреченные ID шагов (для проверки уникальности).
func validateStep(step *domain.Step, stepIDs map[string]bool) error {
	if step.ID == "" {
		return NewValidationError("", "id", "step has empty ID", ErrEmptyStepID)
	}

	if stepIDs[step.ID] {
		return NewValidationError(step.ID, "id",
			fmt.Sprintf("duplicate step ID: %s", step.ID), ErrDuplicateStepID)
	}
	stepIDs[step.ID] = true

	if step.Command == "" {
		return NewValidationError(step.ID, "command",
			"step has empty command", ErrEmptyCommand)
	}

	for _, dep := range step.DependsOn {
		if dep == step.ID {
			return NewValidationError(step.ID, "depends_on",
				"step depends on itself", ErrSelfDependency)
		}
	}

	if step.TimeoutSec < 0 {
		return NewValidationError(step.ID, "timeout_sec",
			fmt.Sprintf("negative timeout: %d", step.TimeoutSec), ErrInvalidTimeout)
	}

	if step.Retry != nil {
		if step.Retry.MaxAttempts < 1 {
			return NewValidationError(step.ID, "retry",
				fmt.Sprintf("max_attempts must be >= 1, got %d", step.Retry.MaxAttempts),
				ErrInvalidRetry)
		}
		if step.Retry.BackoffSec < 0 {
			return NewValidationError(step.ID, "retry",
				fmt.Sprintf("negative backoff: %g", step.Retry.BackoffSec), ErrInvalidRetry)
		}
	}

	switch step.Mode {
	case "", domain.ModeParallel, domain.ModeSequential:
	default:
		return NewValidationError(step.ID, "mode",
			fmt.Sprintf("unknown execution mode: %s", step.Mode), ErrInvalidMode)
	}

	return nil
}

// validateDependencies проверяет, что все depends_on ссылаются на существующие шаги.
func validateDependencies(steps []domain.Step, stepIDs map[string]bool) error {
	for i := range steps {
		step := &steps[i]

		for _, dep := range step.DependsOn {
			if !stepIDs[dep] {
				return NewValidationError(step.ID, "depends_on",
					fmt.Sprintf("depends on unknown step: %s", dep), ErrUnknownDependency)
			}
		}
	}
	return nil
}

// validateConditions проверяет синтаксис условий и область ссылок.
//
// Условие может ссылаться только на (транзитивных) предков шага:
// это гарантирует, что к моменту вычисления условия у ссылки уже есть
// результат, и отложенное условие не зависнет навсегда.
func validateConditions(steps []domain.Step) error {
	deps := make(map[string][]string, len(steps))
	for i := range steps {
		deps[steps[i].ID] = steps[i].DependsOn
	}

	ancestors := make(map[string]map[string]bool, len(steps))

	for i := range steps {
		step := &steps[i]
		if step.Condition == "" {
			continue
		}

		cond, err := ParseCondition(step.Condition)
		if err != nil {
			return NewValidationError(step.ID, "condition", err.Error(), ErrConditionParse)
		}

		anc := collectAncestors(step.ID, deps, ancestors)
		for _, ref := range cond.StepRefs() {
			if !anc[ref.StepID] {
				return NewValidationError(step.ID, "condition",
					fmt.Sprintf("condition references step %q which is not a dependency", ref.StepID),
					ErrConditionScope)
			}
		}
	}

	return nil
}

// collectAncestors возвращает множество транзитивных предков шага.
// Результаты мемоизируются в cache. Циклы здесь не проблема:
// обход помечает узел до рекурсии, а сами циклы ловит BuildGraph.
func collectAncestors(id string, deps map[string][]string, cache map[string]map[string]bool) map[string]bool {
	if anc, ok := cache[id]; ok {
		return anc
	}

	anc := make(map[string]bool)
	cache[id] = anc

	for _, dep := range deps[id] {
		if anc[dep] {
			continue
		}
		anc[dep] = true
		for parent := range collectAncestors(dep, deps, cache) {
			anc[parent] = true
		}
	}

	return anc
}
