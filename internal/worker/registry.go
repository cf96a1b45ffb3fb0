package worker

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// runRegistry отслеживает выполняющиеся runs и их функции отмены.
type runRegistry struct {
	mu      sync.Mutex
	running map[uuid.UUID]context.CancelFunc
}

func newRunRegistry() *runRegistry {
	return &runRegistry{
		running: make(map[uuid.UUID]context.CancelFunc),
	}
}

// add регистрирует run. Возвращает false, если run уже выполняется.
func (r *runRegistry) add(runID uuid.UUID, cancel context.CancelFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.running[runID]; ok {
		return false
	}
	r.running[runID] = cancel
	return true
}

// remove снимает run с учёта.
func (r *runRegistry) remove(runID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, runID)
}

// cancel отменяет run, если он выполняется.
func (r *runRegistry) cancel(runID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cancelFunc, ok := r.running[runID]
	if !ok {
		return false
	}
	cancelFunc()
	return true
}

// count возвращает количество выполняющихся runs.
func (r *runRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.running)
}
