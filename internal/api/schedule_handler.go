package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Runbook/internal/domain"
	"github.com/shaiso/Runbook/internal/engine"
	"github.com/shaiso/Runbook/internal/repo"
	"github.com/shaiso/Runbook/internal/scheduler"
)

// CreateSchedule создаёт новое расписание.
// POST /api/v1/schedules
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req CreateScheduleRequest
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

	if err := validateTrigger(req.CronExpr, req.IntervalSec); err != "" {
		BadRequest(w, err)
		return
	}

	timezone := req.Timezone
	if timezone == "" {
		timezone = "UTC"
	}

	now := time.Now()
	sched := &domain.Schedule{
		ID:          uuid.New(),
		Name:        req.Name,
		Workflow:    wf,
		CronExpr:    req.CronExpr,
		IntervalSec: req.IntervalSec,
		Timezone:    timezone,
		Enabled:     req.Enabled,
		Variables:   req.Variables,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	nextDue, err := scheduler.CalculateInitialNextDue(sched)
	if err != nil {
		BadRequest(w, "invalid schedule: "+err.Error())
		return
	}
	sched.NextDueAt = &nextDue

	if err := h.scheduleRepo.Create(r.Context(), sched); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, ScheduleFromDomain(sched))
}

// ListSchedules возвращает список расписаний.
// GET /api/v1/schedules?enabled=...&limit=...&offset=...
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	filter := scheduleFilterFromQuery(r)

	schedules, err := h.scheduleRepo.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ScheduleResponse, len(schedules))
	for i := range schedules {
		result[i] = ScheduleFromDomain(&schedules[i])
	}

	List(w, result, len(result))
}

// GetSchedule возвращает расписание по ID.
// GET /api/v1/schedules/{id}
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid schedule id")
		return
	}

	sched, err := h.scheduleRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	Success(w, ScheduleFromDomain(sched))
}

// UpdateSchedule обновляет расписание. nil-поля запроса не меняются.
// PUT /api/v1/schedules/{id}
func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid schedule id")
		return
	}

	var req UpdateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	sched, err := h.scheduleRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	if req.Name != nil {
		sched.Name = *req.Name
	}
	if req.Workflow != nil {
		wf := *req.Workflow
		if wf.ID == uuid.Nil {
			wf.ID = sched.Workflow.ID
		}
		if err := engine.Validate(&wf); err != nil {
			HandleValidationError(w, h.logger, err)
			return
		}
		sched.Workflow = wf
	}
	if req.CronExpr != nil {
		sched.CronExpr = *req.CronExpr
	}
	if req.IntervalSec != nil {
		sched.IntervalSec = *req.IntervalSec
	}
	if req.Timezone != nil {
		sched.Timezone = *req.Timezone
	}
	if req.Variables != nil {
		sched.Variables = *req.Variables
	}

	if errMsg := validateTrigger(sched.CronExpr, sched.IntervalSec); errMsg != "" {
		BadRequest(w, errMsg)
		return
	}

	// Триггер мог измениться: пересчитываем время следующего запуска.
	nextDue, err := scheduler.CalculateInitialNextDue(sched)
	if err != nil {
		BadRequest(w, "invalid schedule: "+err.Error())
		return
	}
	sched.NextDueAt = &nextDue
	sched.UpdatedAt = time.Now()

	if err := h.scheduleRepo.Update(r.Context(), sched); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, ScheduleFromDomain(sched))
}

// DeleteSchedule удаляет расписание.
// DELETE /api/v1/schedules/{id}
func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid schedule id")
		return
	}

	if err := h.scheduleRepo.Delete(r.Context(), id); HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	NoContent(w)
}

// SetScheduleEnabled включает или выключает расписание.
// PUT /api/v1/schedules/{id}/enabled
func (h *Handler) SetScheduleEnabled(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid schedule id")
		return
	}

	var req SetEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	sched, err := h.scheduleRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	sched.Enabled = req.Enabled
	sched.UpdatedAt = time.Now()

	// При включении пропущенное время запуска сдвигается вперёд,
	// иначе тикер немедленно выполнит все накопленные запуски.
	if req.Enabled && (sched.NextDueAt == nil || sched.NextDueAt.Before(time.Now())) {
		nextDue, err := scheduler.CalculateInitialNextDue(sched)
		if err != nil {
			BadRequest(w, "invalid schedule: "+err.Error())
			return
		}
		sched.NextDueAt = &nextDue
	}

	if err := h.scheduleRepo.Update(r.Context(), sched); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, ScheduleFromDomain(sched))
}

// scheduleFilterFromQuery собирает фильтр списка из query параметров.
func scheduleFilterFromQuery(r *http.Request) repo.ScheduleFilter {
	filter := repo.ScheduleFilter{
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}
	switch r.URL.Query().Get("enabled") {
	case "true":
		enabled := true
		filter.Enabled = &enabled
	case "false":
		enabled := false
		filter.Enabled = &enabled
	}
	return filter
}

// validateTrigger проверяет, что задан ровно корректный триггер.
// Возвращает текст ошибки или пустую строку.
func validateTrigger(cronExpr string, intervalSec int) string {
	if cronExpr == "" && intervalSec <= 0 {
		return "either cron_expr or positive interval_sec is required"
	}
	if cronExpr != "" {
		if err := scheduler.ValidateCronExpr(cronExpr); err != nil {
			return "invalid cron_expr: " + err.Error()
		}
	}
	return ""
}
