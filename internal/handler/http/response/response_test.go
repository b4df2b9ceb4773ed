package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/payroll"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		write      func(w http.ResponseWriter)
		wantStatus int
		wantCode   string
	}{
		{name: "bad request", write: func(w http.ResponseWriter) { BadRequest(w, "bad", map[string]string{"limit": "x"}) }, wantStatus: http.StatusBadRequest, wantCode: CodeBadRequest},
		{name: "validation", write: func(w http.ResponseWriter) { ValidationError(w, map[string]string{"period": "x"}) }, wantStatus: http.StatusUnprocessableEntity, wantCode: CodeValidation},
		{name: "unprocessable", write: func(w http.ResponseWriter) { UnprocessableEntity(w, "INVALID_CONFIGURATION", "x") }, wantStatus: http.StatusUnprocessableEntity, wantCode: "INVALID_CONFIGURATION"},
		{name: "unauthorized", write: func(w http.ResponseWriter) { Unauthorized(w, "x") }, wantStatus: http.StatusUnauthorized, wantCode: CodeUnauthorized},
		{name: "forbidden", write: func(w http.ResponseWriter) { Forbidden(w, "x") }, wantStatus: http.StatusForbidden, wantCode: CodeForbidden},
		{name: "not found", write: func(w http.ResponseWriter) { NotFound(w, "x") }, wantStatus: http.StatusNotFound, wantCode: CodeNotFound},
		{name: "conflict", write: func(w http.ResponseWriter) { Conflict(w, "x") }, wantStatus: http.StatusConflict, wantCode: CodeConflict},
		{name: "internal", write: func(w http.ResponseWriter) { InternalServerError(w, "x") }, wantStatus: http.StatusInternalServerError, wantCode: CodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			tt.write(rec)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			resp := decode(t, rec)
			assert.False(t, resp.Success)
			assert.Nil(t, resp.Data)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestSuccessHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		write       func(w http.ResponseWriter)
		wantStatus  int
		wantMessage string
		wantTotal   int
	}{
		{name: "success", write: func(w http.ResponseWriter) { Success(w, "ok") }, wantStatus: http.StatusOK},
		{name: "with message", write: func(w http.ResponseWriter) { SuccessWithMessage(w, "done", "ok") }, wantStatus: http.StatusOK, wantMessage: "done"},
		{name: "accepted", write: func(w http.ResponseWriter) { Accepted(w, "started", "ok") }, wantStatus: http.StatusAccepted, wantMessage: "started"},
		{name: "with meta", write: func(w http.ResponseWriter) { SuccessWithMeta(w, "ok", &Meta{Total: 3}) }, wantStatus: http.StatusOK, wantTotal: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			tt.write(rec)

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decode(t, rec)
			assert.True(t, resp.Success)
			assert.Nil(t, resp.Error)
			assert.Equal(t, "ok", resp.Data)
			assert.Equal(t, tt.wantMessage, resp.Message)
			if tt.wantTotal > 0 {
				require.NotNil(t, resp.Meta)
				assert.Equal(t, tt.wantTotal, resp.Meta.Total)
			} else {
				assert.Nil(t, resp.Meta)
			}
		})
	}
}

func TestSuccess_UnencodableDataBecomesInternalError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	Success(rec, make(chan int))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode(t, rec)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInternalError, resp.Error.Code)
}

func TestHandleError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "validation", err: validator.ValidationErrors{{Field: "limit", Message: "x"}}, wantStatus: http.StatusUnprocessableEntity, wantCode: CodeValidation},
		{name: "run not found", err: fmt.Errorf("lookup: %w", payroll.ErrRunNotFound), wantStatus: http.StatusNotFound, wantCode: CodeNotFound},
		{name: "already finished", err: payroll.ErrRunAlreadyFinished, wantStatus: http.StatusConflict, wantCode: CodeConflict},
		{name: "company required", err: payroll.ErrCompanyRequired, wantStatus: http.StatusForbidden, wantCode: CodeForbidden},
		{name: "configuration", err: payroll.ErrInvalidTaxTable, wantStatus: http.StatusUnprocessableEntity, wantCode: "INVALID_CONFIGURATION"},
		{name: "unknown", err: assert.AnError, wantStatus: http.StatusInternalServerError, wantCode: CodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			HandleError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decode(t, rec)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}
