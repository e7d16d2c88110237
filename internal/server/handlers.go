package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"formpilot/internal/automation"
	"formpilot/internal/declaration"
	"formpilot/internal/logging"
	"formpilot/internal/store"
)

// signatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const signatureHeader = "X-Signature"

// submitRequest is the caller-facing submission payload. Options are
// optional per-call overrides of the configured defaults.
type submitRequest struct {
	FormData *declaration.Record `json:"formData"`
	Options  *submitOptions      `json:"options"`
}

type submitOptions struct {
	Headless  *bool `json:"headless"`
	TimeoutMs int   `json:"timeoutMs"`
	Retries   *int  `json:"retries"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	defer func() { _ = r.Body.Close() }()

	var req submitRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		writeResult(w, s.log, &automation.Result{
			Success: false,
			Error: &automation.Error{
				Code:    automation.CodeInvalidJSON,
				Message: "request body is not valid JSON",
			},
		})
		return
	}
	if req.FormData == nil {
		writeResult(w, s.log, &automation.Result{
			Success: false,
			Error: &automation.Error{
				Code:    automation.CodeMissingFormData,
				Message: "formData is required",
			},
		})
		return
	}

	// One slot per browser run. Queued requests still honor disconnects.
	if err := s.runSlots.Acquire(r.Context(), 1); err != nil {
		writeResult(w, s.log, &automation.Result{
			Success: false,
			Error: &automation.Error{
				Code:    automation.CodeInternalServerError,
				Message: "request cancelled while waiting for a run slot",
			},
		})
		return
	}
	defer s.runSlots.Release(1)

	opts := automation.Options{}
	if req.Options != nil {
		opts.Headless = req.Options.Headless
		opts.TimeoutMs = req.Options.TimeoutMs
		if req.Options.Retries != nil {
			opts.Retries = *req.Options.Retries
		}
	}

	res := s.runner.Run(r.Context(), req.FormData, opts)

	if res.Success && s.records != nil {
		rec := &store.SubmissionRecord{
			ID:             uuid.NewString(),
			PassportNumber: req.FormData.PassportNumber,
			Status:         "SUBMITTED",
			SubmittedAt:    time.Now().UTC(),
		}
		if res.SubmissionDetails != nil {
			rec.SubmissionID = res.SubmissionDetails.SubmissionID
			if res.SubmissionDetails.Status != "" {
				rec.Status = res.SubmissionDetails.Status
			}
		}
		if err := s.records.SaveSubmission(r.Context(), rec); err != nil {
			// The traveler already has their confirmation; record loss is
			// an operator problem, not a caller failure.
			s.log.Error("persist submission record", zap.Error(err))
			logging.StoreError("persist submission %s: %v", rec.SubmissionID, err)
		}
	}

	writeResult(w, s.log, res)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.log, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "formpilot",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// paymentEvent is the parsed webhook body. Parsing happens only after the
// signature over the raw bytes has been verified.
type paymentEvent struct {
	EventID      string `json:"eventId"`
	SubmissionID string `json:"submissionId"`
	Status       string `json:"status"`
}

func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	defer func() { _ = r.Body.Close() }()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, s.log, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	if !s.verifySignature(body, r.Header.Get(signatureHeader)) {
		logging.WebhookWarn("rejected webhook: bad signature from %s", r.RemoteAddr)
		writeJSON(w, s.log, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
		return
	}

	var ev paymentEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		writeJSON(w, s.log, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if ev.SubmissionID == "" || ev.Status == "" {
		writeJSON(w, s.log, http.StatusBadRequest, map[string]string{"error": "submissionId and status are required"})
		return
	}

	if err := s.records.UpdatePayment(r.Context(), ev.SubmissionID, ev.Status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, s.log, http.StatusNotFound, map[string]string{"error": "unknown submission"})
			return
		}
		s.log.Error("update payment", zap.String("submission_id", ev.SubmissionID), zap.Error(err))
		writeJSON(w, s.log, http.StatusInternalServerError, map[string]string{"error": "store failure"})
		return
	}

	logging.Webhook("payment %s for submission %s (event %s)", ev.Status, ev.SubmissionID, ev.EventID)
	writeJSON(w, s.log, http.StatusOK, map[string]bool{"received": true})
}

// verifySignature compares the hex HMAC-SHA256 of body against the supplied
// header value in constant time. A missing secret rejects everything.
func (s *Server) verifySignature(body []byte, given string) bool {
	if len(s.secret) == 0 || given == "" {
		return false
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(given))
}

func writeResult(w http.ResponseWriter, log *zap.Logger, res *automation.Result) {
	status := http.StatusOK
	if res.Error != nil {
		status = automation.HTTPStatus(res.Error.Code)
	}
	writeJSON(w, log, status, res)
}

func writeJSON(w http.ResponseWriter, log *zap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("write response", zap.Error(err))
	}
}
