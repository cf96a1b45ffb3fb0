package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/shaiso/Runbook/internal/engine"
)

// ValidateWorkflow проверяет определение workflow без запуска.
// POST /api/v1/workflows/validate
//
// Тело запроса — JSON определения workflow как есть, без обёртки.
func (h *Handler) ValidateWorkflow(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		BadRequest(w, "failed to read request body")
		return
	}

	wf, err := engine.ParseWorkflow(data)
	if err != nil {
		var verr *engine.ValidationError
		var cerr *engine.CycleError
		if errors.As(err, &verr) || errors.As(err, &cerr) {
			ValidationFailed(w, err)
			return
		}
		// Битый JSON и прочие структурные ошибки
		BadRequest(w, err.Error())
		return
	}

	Success(w, ValidateWorkflowResponse{
		Valid: true,
		Steps: len(wf.Steps),
		Name:  wf.Name,
	})
}
