package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/okian/scoreboard/internal/domain/auth"
	"github.com/okian/scoreboard/internal/domain/types"
	"github.com/okian/scoreboard/pkg/logger"
	"github.com/okian/scoreboard/pkg/metrics"
)

// DispatchStatusHeader is set to "failed" when a stored entry was not relayed.
const DispatchStatusHeader = "X-Dispatch-Status"

// handleSubmit handles POST /scoreboard. The rate limit has already been
// applied by the middleware.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_scoreboard"
	ctx := r.Context()

	if !s.policy.Authorize(r.Header.Get(auth.Header)) {
		metrics.RecordSubmissionRejected(metrics.ReasonUnauthorized)
		s.log.Warn(ctx, "unauthorized submission", logger.Error(NewKind(op, ErrUnauthorized)))
		writeError(w, http.StatusUnauthorized, "Invalid X-Scoreboard-Secret header.")
		return
	}

	body, status, msg := readBody(w, r)
	if status != http.StatusOK {
		reason := metrics.ReasonDecode
		if status != http.StatusBadRequest {
			reason = metrics.ReasonLength
		}
		metrics.RecordSubmissionRejected(reason)
		s.log.Debug(ctx, "rejected submission body", logger.Error(WrapKind(op, statusKind(status), errors.New(msg))))
		writeError(w, status, msg)
		return
	}

	rcpt, err := s.deps.Submit(ctx, body)
	switch {
	case errors.Is(err, types.ErrInvalidPayload):
		metrics.RecordSubmissionRejected(metrics.ReasonDecode)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		metrics.RecordSubmissionRejected(metrics.ReasonStorage)
		s.internalError(w, r, "Failed to store entry.", WrapKind(op, ErrInternal, err))
		return
	}

	metrics.RecordSubmissionAccepted()
	if rcpt.Dispatch == types.DispatchFailed {
		w.Header().Set(DispatchStatusHeader, "failed")
	}
	s.log.Info(ctx, "submission accepted",
		logger.String("entry_id", rcpt.Entry.ID),
		logger.String("dispatch", string(rcpt.Dispatch)),
	)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte("queued"))
}

// readBody enforces the Content-Length rules and decodes the body as a JSON
// object. Any status other than 200 is the reply to send, with msg as its message.
func readBody(w http.ResponseWriter, r *http.Request) (body map[string]any, status int, msg string) {
	length := r.ContentLength
	if r.Header.Get("Content-Length") == "" && length <= 0 {
		return nil, http.StatusLengthRequired, "Missing Content-Length header."
	}
	if length <= 0 || length > maxBodyBytes {
		return nil, http.StatusRequestEntityTooLarge, "Payload too large."
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge, "Payload too large."
		}
		return nil, http.StatusBadRequest, "Request body could not be read."
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, http.StatusBadRequest, "Request body must be valid JSON."
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, http.StatusBadRequest, "Request body must be valid JSON."
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, http.StatusBadRequest, "Request body must be a JSON object."
	}
	return obj, http.StatusOK, ""
}
