package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/54b3r/caselaw-rag/internal/logging"
	"github.com/54b3r/caselaw-rag/internal/rag"
)

// maxRequestBody caps the size of a POST /rag-chat body.
const maxRequestBody = 1 << 20

// handleRagChat handles POST /rag-chat. The bearer token is checked for
// presence before the body is read; everything after decoding is delegated
// to the answerer and its error kind is mapped to a status by statusFor.
func (s *Server) handleRagChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := logging.FromContext(r.Context())

	token := bearerToken(r)
	if token == "" {
		s.fail(w, r, start, rag.NewError(rag.KindUnauthenticated, "Unauthorized", nil))
		return
	}

	var req chatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		s.fail(w, r, start, rag.NewError(rag.KindInvalidRequest, "Invalid JSON", err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.fail(w, r, start, rag.NewError(rag.KindInvalidRequest, validationMessage(err), err))
		return
	}

	answer, err := s.answerer.Answer(r.Context(), rag.Request{
		Token:    token,
		DialogID: req.DialogID,
		Message:  req.Message,
	})
	if err != nil {
		s.fail(w, r, start, err)
		return
	}

	s.metrics.observeChat(answer.Outcome, time.Since(start), len(answer.Sources))
	log.Info("rag-chat answered",
		slog.String("outcome", string(answer.Outcome)),
		slog.Int("sources", len(answer.Sources)),
		slog.Duration("duration", time.Since(start)),
	)
	writeJSON(w, http.StatusOK, answer)
}

// fail records the failed turn and writes the client-facing message of err
// with the status its kind maps to.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, start time.Time, err error) {
	log := logging.FromContext(r.Context())
	kind := rag.KindOf(err)
	status := statusFor(kind)

	s.metrics.observeChat(rag.OutcomeFor(err), time.Since(start), 0)

	attrs := []any{slog.String("kind", string(kind)), slog.Int("status", status)}
	if status >= http.StatusInternalServerError {
		log.Error("rag-chat failed", append(attrs, slog.Any("error", err))...)
	} else {
		log.Warn("rag-chat rejected", attrs...)
	}

	if kind == rag.KindUnauthenticated {
		w.Header().Set("WWW-Authenticate", `Bearer realm="caselaw"`)
	}
	writeMessage(w, status, rag.MessageOf(err, "Internal error"))
}

// statusFor maps an error kind to its HTTP status code.
func statusFor(kind rag.Kind) int {
	switch kind {
	case rag.KindInvalidRequest:
		return http.StatusBadRequest
	case rag.KindUnauthenticated:
		return http.StatusUnauthorized
	case rag.KindNotFound:
		return http.StatusNotFound
	case rag.KindGenerationUnavailable:
		return http.StatusServiceUnavailable
	case rag.KindGenerationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// validationMessage turns the first failed field into "<field> is required".
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		field := verrs[0].Field()
		if verrs[0].Tag() == "required" {
			return field + " is required"
		}
		return field + " is invalid"
	}
	return "Invalid request"
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("server: response encode failed", slog.Any("error", err))
	}
}

// writeMessage writes {"message": msg} with the given status.
func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}
