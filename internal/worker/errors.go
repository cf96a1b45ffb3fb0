package worker

import "errors"

var (
	// ErrRunAlreadyRunning — run с таким ID уже выполняется этим
	// процессом (дубликат заявки).
	ErrRunAlreadyRunning = errors.New("run already running")

	// ErrRunFinished — run уже в терминальном статусе (например,
	// отменён до старта).
	ErrRunFinished = errors.New("run already finished")
)
