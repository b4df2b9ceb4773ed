package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/calclog"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/payroll"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/handler/http/middleware"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/handler/http/response"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/pkg/jwt"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/pkg/notify"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/pkg/sse"
	"github.com/go-chi/chi/v5"
)

const streamKeepalive = 30 * time.Second

type PayrollHandler interface {
	// Runs
	StartRun(w http.ResponseWriter, r *http.Request)
	RunSync(w http.ResponseWriter, r *http.Request)
	GetRun(w http.ResponseWriter, r *http.Request)
	ListRuns(w http.ResponseWriter, r *http.Request)
	RunStats(w http.ResponseWriter, r *http.Request)
	CancelRun(w http.ResponseWriter, r *http.Request)

	// Progress stream
	StreamToken(w http.ResponseWriter, r *http.Request)
	Stream(w http.ResponseWriter, r *http.Request)

	// Audit
	GetCalculationLog(w http.ResponseWriter, r *http.Request)
}

// Subscriber hands out event channels per topic.
type Subscriber interface {
	Subscribe(topic string) (chan sse.Event, func())
}

type payrollHandlerImpl struct {
	runService payroll.RunService
	jwtService jwt.Service
	events     Subscriber
	keepalive  time.Duration
}

func NewPayrollHandler(runService payroll.RunService, jwtService jwt.Service, events Subscriber) PayrollHandler {
	return &payrollHandlerImpl{
		runService: runService,
		jwtService: jwtService,
		events:     events,
		keepalive:  streamKeepalive,
	}
}

// ========== RUNS ==========

func (h *payrollHandlerImpl) StartRun(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRunRequest(w, r)
	if !ok {
		return
	}

	result, err := h.runService.Start(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Accepted(w, "Payroll run started", result)
}

func (h *payrollHandlerImpl) RunSync(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRunRequest(w, r)
	if !ok {
		return
	}

	result, err := h.runService.RunSync(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMeta(w, result, &response.Meta{Total: result.Requested})
}

func (h *payrollHandlerImpl) GetRun(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.HandleError(w, payroll.ErrCompanyRequired)
		return
	}

	result, err := h.runService.Get(r.Context(), claims.CompanyID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) ListRuns(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.HandleError(w, payroll.ErrCompanyRequired)
		return
	}

	req := payroll.ListRunsRequest{
		CompanyID: claims.CompanyID,
		Status:    r.URL.Query().Get("status"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			response.BadRequest(w, "Invalid limit", map[string]string{"limit": "must be a number"})
			return
		}
		req.Limit = limit
	}

	runs, err := h.runService.List(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMeta(w, runs, &response.Meta{Total: len(runs)})
}

func (h *payrollHandlerImpl) RunStats(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.HandleError(w, payroll.ErrCompanyRequired)
		return
	}

	stats, err := h.runService.Stats(r.Context(), claims.CompanyID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, stats)
}

func (h *payrollHandlerImpl) CancelRun(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.HandleError(w, payroll.ErrCompanyRequired)
		return
	}

	runID := chi.URLParam(r, "id")
	if err := h.runService.Cancel(r.Context(), claims.CompanyID, runID); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll run cancellation requested", map[string]string{"run_id": runID})
}

func (h *payrollHandlerImpl) decodeRunRequest(w http.ResponseWriter, r *http.Request) (payroll.StartRunRequest, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.HandleError(w, payroll.ErrCompanyRequired)
		return payroll.StartRunRequest{}, false
	}

	var req payroll.StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return payroll.StartRunRequest{}, false
	}
	// The company always comes from the token, never from the body.
	req.CompanyID = claims.CompanyID

	return req, true
}

// ========== STREAM ==========

func (h *payrollHandlerImpl) StreamToken(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.HandleError(w, payroll.ErrCompanyRequired)
		return
	}

	runID := chi.URLParam(r, "id")
	if _, err := h.runService.Get(r.Context(), claims.CompanyID, runID); err != nil {
		response.HandleError(w, err)
		return
	}

	token, expiresIn, err := h.jwtService.GenerateStreamToken(jwt.StreamClaims{
		UserID:    claims.UserID,
		CompanyID: claims.CompanyID,
		RunID:     runID,
	})
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, map[string]interface{}{
		"token":      token,
		"expires_in": expiresIn,
	})
}

func (h *payrollHandlerImpl) Stream(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	// Get token from query parameter (SSE doesn't support custom headers)
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.jwtService.ValidateStreamToken(tokenStr, runID)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// Subscribe before reading the status so a run finishing in between is not missed.
	events, cleanup := h.events.Subscribe(runID)
	defer cleanup()

	status, err := h.runService.Get(r.Context(), claims.CompanyID, runID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	writeEvent(w, "status", status)
	flusher.Flush()

	if calclog.Status(status.Status).Terminal() {
		return
	}

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			writeEvent(w, event.Event, event.Data)
			flusher.Flush()
			if event.Event == notify.EventRunFinished {
				return
			}

		case <-keepalive.C:
			// The finish event may have been dropped by a full buffer.
			if current, err := h.runService.Get(r.Context(), claims.CompanyID, runID); err == nil && calclog.Status(current.Status).Terminal() {
				writeEvent(w, "status", current)
				flusher.Flush()
				return
			}
			fmt.Fprintf(w, "event: ping\ndata: {\"timestamp\":%d}\n\n", time.Now().Unix())
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}

// ========== AUDIT ==========

func (h *payrollHandlerImpl) GetCalculationLog(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.HandleError(w, payroll.ErrCompanyRequired)
		return
	}

	log, err := h.runService.GetCalculationLog(r.Context(), claims.CompanyID, chi.URLParam(r, "id"), chi.URLParam(r, "employeeID"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, log)
}
