package domain

// StepStatus — статус выполнения шага.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
//	                  ↘ TIMED_OUT
//	        ↘ SKIPPED (условие не выполнено)
//	        ↘ CANCELLED (run отменён до или во время выполнения)
type StepStatus string

const (
	// StepStatusPending — шаг ещё не начал выполняться.
	StepStatusPending StepStatus = "PENDING"

	// StepStatusRunning — шаг выполняется.
	StepStatusRunning StepStatus = "RUNNING"

	// StepStatusSucceeded — команда завершилась с нулевым exit code.
	StepStatusSucceeded StepStatus = "SUCCEEDED"

	// StepStatusFailed — команда завершилась с ненулевым exit code,
	// не смогла запуститься или не разрешились переменные.
	StepStatusFailed StepStatus = "FAILED"

	// StepStatusTimedOut — шаг принудительно завершён по таймауту.
	StepStatusTimedOut StepStatus = "TIMED_OUT"

	// StepStatusSkipped — условие шага вернуло false, команда не запускалась.
	StepStatusSkipped StepStatus = "SKIPPED"

	// StepStatusCancelled — run отменён, шаг не выполнялся или был прерван.
	StepStatusCancelled StepStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный (шаг больше не изменится).
// Для удовлетворения зависимостей терминальными считаются все исходы,
// включая SKIPPED и CANCELLED.
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StepStatusSucceeded, StepStatusFailed, StepStatusTimedOut,
		StepStatusSkipped, StepStatusCancelled:
		return true
	default:
		return false
	}
}

// RunStatus — итоговый статус выполнения workflow.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ PARTIAL_FAILURE (часть шагов упала, run доехал до конца)
//	                  ↘ FAILED (валидация графа или фатальная ошибка движка)
//	                  ↘ CANCELLED
type RunStatus string

const (
	// RunStatusPending — run создан, но ещё не начал выполняться.
	RunStatusPending RunStatus = "PENDING"

	// RunStatusRunning — run в процессе выполнения.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusSucceeded — все не-пропущенные шаги завершились успешно.
	RunStatusSucceeded RunStatus = "SUCCEEDED"

	// RunStatusFailed — run прерван до выполнения шагов (невалидный граф)
	// или фатальной ошибкой движка.
	RunStatusFailed RunStatus = "FAILED"

	// RunStatusPartialFailure — хотя бы один шаг FAILED/TIMED_OUT,
	// независимые ветки при этом выполнены.
	RunStatusPartialFailure RunStatus = "PARTIAL_FAILURE"

	// RunStatusCancelled — run отменён до завершения.
	RunStatusCancelled RunStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed, RunStatusPartialFailure, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// ExecutionMode — подсказка планировщику, как можно выполнять шаг.
type ExecutionMode string

const (
	// ModeParallel — шаг может выполняться одновременно с другими
	// готовыми шагами (значение по умолчанию).
	ModeParallel ExecutionMode = "parallel"

	// ModeSequential — шаг выполняется в одиночку: планировщик дожидается
	// завершения запущенных шагов и не запускает новые, пока этот не закончится.
	ModeSequential ExecutionMode = "sequential"
)
