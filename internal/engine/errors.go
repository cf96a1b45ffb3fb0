package engine

import (
	"errors"
	"strings"
)

// Ошибки валидации определения workflow.
var (
	// ErrEmptySteps — workflow не содержит шагов.
	ErrEmptySteps = errors.New("workflow has no steps")

	// ErrEmptyStepID — шаг не имеет ID.
	ErrEmptyStepID = errors.New("step has empty ID")

	// ErrDuplicateStepID — несколько шагов с одинаковым ID.
	ErrDuplicateStepID = errors.New("duplicate step ID")

	// ErrEmptyCommand — шаг не имеет команды.
	ErrEmptyCommand = errors.New("step has empty command")

	// ErrUnknownDependency — шаг зависит от несуществующего шага.
	ErrUnknownDependency = errors.New("step depends on unknown step")

	// ErrSelfDependency — шаг зависит от самого себя.
	ErrSelfDependency = errors.New("step depends on itself")

	// ErrCyclicDependency — обнаружен цикл в зависимостях.
	ErrCyclicDependency = errors.New("cyclic dependency detected")

	// ErrInvalidRetry — некорректная политика retry.
	ErrInvalidRetry = errors.New("invalid retry policy")

	// ErrInvalidTimeout — отрицательный таймаут.
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrInvalidMode — неизвестный режим выполнения шага.
	ErrInvalidMode = errors.New("unknown execution mode")
)

// Ошибки резолвинга и условий.
var (
	// ErrUnresolvedReference — плейсхолдер ссылается на неизвестную
	// переменную или незавершённый шаг.
	ErrUnresolvedReference = errors.New("unresolved reference")

	// ErrConditionParse — условное выражение не разбирается.
	ErrConditionParse = errors.New("condition parse failed")

	// ErrConditionEval — ошибка вычисления условного выражения.
	ErrConditionEval = errors.New("condition evaluation failed")

	// ErrConditionScope — условие ссылается на шаг, не являющийся
	// (транзитивной) зависимостью.
	ErrConditionScope = errors.New("condition references step outside dependencies")

	// ErrConditionDeferred — условие ссылается на шаг, который ещё
	// не достиг терминального статуса; вычисление откладывается.
	ErrConditionDeferred = errors.New("condition references non-terminal step")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	StepID  string // ID шага, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.StepID != "" {
		return "step " + e.StepID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(stepID, field, message string, err error) *ValidationError {
	return &ValidationError{
		StepID:  stepID,
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// CycleError — обнаруженный цикл зависимостей с участвующими шагами.
type CycleError struct {
	// StepIDs — шаги, оставшиеся в цикле после отработки алгоритма Кана.
	// Гарантированно содержит хотя бы один шаг цикла.
	StepIDs []string
}

// Error реализует интерфейс error.
func (e *CycleError) Error() string {
	return "cyclic dependency detected: " + strings.Join(e.StepIDs, ", ")
}

// Unwrap возвращает базовую ошибку.
func (e *CycleError) Unwrap() error {
	return ErrCyclicDependency
}
