package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/shaiso/Runbook/internal/domain"
	"github.com/shaiso/Runbook/internal/engine"
	"github.com/shaiso/Runbook/internal/mq"
	"github.com/shaiso/Runbook/internal/repo"
)

// SubmitRun принимает определение workflow и ставит run в очередь.
// POST /api/v1/runs
func (h *Handler) SubmitRun(w http.ResponseWriter, r *http.Request) {
	var req SubmitRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	wf := req.Workflow
	if wf.ID == uuid.Nil {
		wf.ID = uuid.New()
	}

	if err := engine.Validate(&wf); err != nil {
		HandleValidationError(w, h.logger, err)
		return
	}

	run := domain.NewRun(&wf, req.Variables, req.DryRun)

	if err := h.runRepo.Create(r.Context(), run); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	// Заявка несёт workflow целиком: воркеру не нужна библиотека
	// определений.
	if err := h.publisher.PublishRunRequested(r.Context(), mq.RunRequestedPayload{
		RunID:     run.ID,
		Workflow:  wf,
		Variables: req.Variables,
		DryRun:    req.DryRun,
	}); err != nil {
		h.logger.Error("failed to publish run.requested", "run_id", run.ID, "error", err)
		run.MarkFailed("failed to enqueue run")
		if uerr := h.runRepo.Update(r.Context(), run); uerr != nil {
			h.logger.Error("failed to mark run failed", "run_id", run.ID, "error", uerr)
		}
		InternalError(w, h.logger, err)
		return
	}

	Created(w, RunFromDomain(*run))
}

// ListRuns возвращает список runs с фильтрацией.
// GET /api/v1/runs?workflow_id=...&workflow_name=...&status=...&limit=...&offset=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	filter := repo.RunFilter{}

	// Парсим query параметры
	if wfIDStr := r.URL.Query().Get("workflow_id"); wfIDStr != "" {
		wfID, err := uuid.Parse(wfIDStr)
		if err != nil {
			BadRequest(w, "invalid workflow_id")
			return
		}
		filter.WorkflowID = &wfID
	}

	filter.WorkflowName = r.URL.Query().Get("workflow_name")

	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = domain.RunStatus(status)
	}

	filter.Limit = queryInt(r, "limit", 50)
	filter.Offset = queryInt(r, "offset", 0)

	runs, err := h.runRepo.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]RunResponse, len(runs))
	for i, run := range runs {
		result[i] = RunFromDomain(run)
	}

	List(w, result, len(result))
}

// GetRun возвращает run по ID вместе с результатами шагов.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	Success(w, RunFromDomain(*run))
}

// CancelRun отменяет run.
// POST /api/v1/runs/{id}/cancel
//
// Выполняющийся run получает сигнал отмены и сам фиксирует
// терминальный статус. Run, ещё не взятый воркером, помечается
// CANCELLED сразу.
func (h *Handler) CancelRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	if run.Status.IsTerminal() {
		InvalidState(w, "run is already finished")
		return
	}

	if h.canceller != nil && h.canceller.Cancel(id) {
		h.logger.Info("cancel signal sent", "run_id", id)
		Success(w, RunFromDomain(*run))
		return
	}

	run.Finish(domain.RunStatusCancelled)

	if err := h.runRepo.Update(r.Context(), run); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, RunFromDomain(*run))
}

// queryInt парсит целочисленный query параметр с дефолтным значением.
func queryInt(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
