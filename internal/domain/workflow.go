package domain

import (
	"github.com/google/uuid"
)

// Workflow — определение рабочего процесса: набор шагов с зависимостями.
//
// Workflow — неизменяемый вход движка. Движок никогда не модифицирует
// определение: всё изменяемое состояние одного запуска живёт в Run.
type Workflow struct {
	// ID — уникальный идентификатор workflow.
	ID uuid.UUID `json:"id"`

	// Name — имя workflow (например, "nightly-backup", "recon-scan").
	Name string `json:"name,omitempty"`

	// Description — описание назначения workflow.
	Description string `json:"description,omitempty"`

	// WorkingDir — рабочая директория по умолчанию для всех шагов.
	// Если пустая, используется sandbox-директория движка.
	WorkingDir string `json:"working_dir,omitempty"`

	// Env — переменные окружения по умолчанию для всех шагов.
	// Накладываются поверх окружения процесса.
	Env map[string]string `json:"env,omitempty"`

	// Variables — начальные значения переменных для подстановки
	// (${name} в командах и условиях). Могут быть переопределены
	// входными переменными при запуске.
	Variables map[string]string `json:"variables,omitempty"`

	// Steps — шаги workflow. Порядок в списке не влияет на порядок
	// выполнения — его определяют только depends_on.
	Steps []Step `json:"steps"`
}

// Step — один исполняемый шаг workflow.
type Step struct {
	// ID — уникальный идентификатор шага в рамках workflow.
	// Используется в depends_on, условиях и плейсхолдерах (${id.stdout}).
	ID string `json:"id"`

	// Name — человекочитаемое имя шага. Движком не используется.
	Name string `json:"name,omitempty"`

	// Description — описание шага. Движком не используется.
	Description string `json:"description,omitempty"`

	// Command — шаблон команды. Может содержать плейсхолдеры
	// ${variable} и ${step_id.stdout|stderr|exit_code|status|lines}.
	Command string `json:"command"`

	// WorkingDir — рабочая директория шага.
	// Переопределяет Workflow.WorkingDir. Поддерживает плейсхолдеры.
	WorkingDir string `json:"working_dir,omitempty"`

	// Env — переменные окружения шага. Накладываются поверх Workflow.Env.
	// Значения поддерживают плейсхолдеры.
	Env map[string]string `json:"env,omitempty"`

	// DependsOn — ID шагов, которые должны достичь терминального статуса
	// до старта этого шага. Исход зависимостей (успех/провал) по умолчанию
	// не важен — для ветвления по исходу используется Condition.
	DependsOn []string `json:"depends_on,omitempty"`

	// Condition — условное выражение. Если задано и вычисляется в false,
	// шаг получает статус SKIPPED без запуска команды.
	// Примеры: `prepare.exit_code == 0`, `env == "prod" && !scan.failed`.
	Condition string `json:"condition,omitempty"`

	// TimeoutSec — таймаут одной попытки в секундах. 0 — без таймаута.
	TimeoutSec int `json:"timeout_sec,omitempty"`

	// Retry — политика повторных попыток. Nil — одна попытка.
	Retry *RetryPolicy `json:"retry,omitempty"`

	// Mode — подсказка о параллельности. Пустая строка эквивалентна ModeParallel.
	Mode ExecutionMode `json:"mode,omitempty"`
}

// RetryPolicy — политика повторных попыток шага.
//
// Повтор выполняется только после FAILED или TIMED_OUT.
// Успешный шаг никогда не перезапускается.
type RetryPolicy struct {
	// MaxAttempts — максимальное количество попыток (включая первую).
	// Минимум 1.
	MaxAttempts int `json:"max_attempts"`

	// BackoffSec — пауза между попытками в секундах. Может быть дробной.
	BackoffSec float64 `json:"backoff_sec,omitempty"`
}

// StepByID возвращает шаг по ID или nil, если такого шага нет.
func (w *Workflow) StepByID(id string) *Step {
	for i := range w.Steps {
		if w.Steps[i].ID == id {
			return &w.Steps[i]
		}
	}
	return nil
}

// MaxAttempts возвращает количество попыток с учётом политики retry.
func (s *Step) MaxAttempts() int {
	if s.Retry == nil || s.Retry.MaxAttempts < 1 {
		return 1
	}
	return s.Retry.MaxAttempts
}

// IsSequential возвращает true, если шаг должен выполняться в одиночку.
func (s *Step) IsSequential() bool {
	return s.Mode == ModeSequential
}
