package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/mediascribe/mediascribe/internal/pipeline"
	"github.com/mediascribe/mediascribe/internal/request"
)

// maxBodyBytes bounds inbound payloads; every accepted shape is a small
// JSON document around one URL.
const maxBodyBytes = 64 << 10

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// debug echoes the parsed payload and its normalization outcome so
// clients can see what the service made of their request, alongside the
// current in-flight jobs.
func (s *Server) debug(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	out := map[string]any{}

	var parsed any
	if len(body) == 0 {
		out["received"] = nil
	} else if err := json.Unmarshal(body, &parsed); err != nil {
		out["received"] = string(body)
		out["parse_error"] = err.Error()
	} else {
		out["received"] = parsed
	}

	if norm, err := request.Normalize(body); err != nil {
		var ve *request.ValidationError
		if errors.As(err, &ve) {
			out["normalize_error"] = ve.Reason
		} else {
			out["normalize_error"] = err.Error()
		}
	} else {
		out["normalized"] = norm
	}

	jobs := s.jobs.Snapshot()
	out["jobs_in_flight"] = len(jobs)
	out["jobs"] = jobs
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) transcribe(w http.ResponseWriter, r *http.Request) {
	runJob(s, w, r, request.NormalizeStrict, s.runner.Transcribe)
}

func (s *Server) scrapeTweet(w http.ResponseWriter, r *http.Request) {
	runJob(s, w, r, request.NormalizeStrict, s.runner.ScrapeTweet)
}

func (s *Server) scrapePage(w http.ResponseWriter, r *http.Request) {
	runJob(s, w, r, request.NormalizeStrict, s.runner.ScrapePage)
}

func (s *Server) rawTranscribe(w http.ResponseWriter, r *http.Request) {
	runJob(s, w, r, request.Normalize, s.runner.Transcribe)
}

func (s *Server) rawScrapeTweet(w http.ResponseWriter, r *http.Request) {
	runJob(s, w, r, request.Normalize, s.runner.ScrapeTweet)
}

func (s *Server) rawScrapePage(w http.ResponseWriter, r *http.Request) {
	runJob(s, w, r, request.Normalize, s.runner.ScrapePage)
}

type normalizeFunc func(raw []byte) (request.Normalized, error)

// readNormalized reads and normalizes the request body, writing the 400
// response itself when the payload is rejected.
func readNormalized(w http.ResponseWriter, r *http.Request, normalize normalizeFunc) (request.Normalized, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return request.Normalized{}, false
	}
	norm, err := normalize(body)
	if err != nil {
		var ve *request.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Reason)
		} else {
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return request.Normalized{}, false
	}
	return norm, true
}

// runJob is the shared handler body: read, normalize, execute, map the
// outcome to a status code.
func runJob[T any](s *Server, w http.ResponseWriter, r *http.Request, normalize normalizeFunc, run func(ctx context.Context, url string) (T, error)) {
	norm, ok := readNormalized(w, r, normalize)
	if !ok {
		return
	}
	result, err := run(r.Context(), norm.URL)
	if err != nil {
		s.writeJobError(w, norm.URL, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeJobError maps terminal failure classes onto HTTP status codes:
// fatal content problems are the client's resource (422), an exhausted
// chain means every upstream strategy failed (502), and timeouts map to
// gateway timeout (504).
func (s *Server) writeJobError(w http.ResponseWriter, url string, err error) {
	status := http.StatusInternalServerError
	switch pipeline.Classify(err) {
	case pipeline.ClassFatal:
		status = http.StatusUnprocessableEntity
	case pipeline.ClassExhausted:
		status = http.StatusBadGateway
	case pipeline.ClassTimeout:
		status = http.StatusGatewayTimeout
	}
	s.logger.Warn("job request failed",
		zap.String("url", url),
		zap.Int("status", status),
		zap.Error(err),
	)
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
