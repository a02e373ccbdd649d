package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/muurk/salus/internal/feed"
	"github.com/muurk/salus/internal/logging"
	"github.com/muurk/salus/internal/salus"
	"github.com/muurk/salus/internal/urls"
)

// maxRequestBody bounds API request bodies
const maxRequestBody = 4096

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+urls.FeedWebSocket, s.serveWebSocket)
	mux.HandleFunc("GET "+urls.FeedState, s.handleState)
	mux.HandleFunc("POST "+urls.FeedTemperature, s.handleTemperature)
	mux.HandleFunc("POST "+urls.FeedMode, s.handleMode)
	mux.Handle("GET "+urls.FeedMetrics, promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))
	return logRequests(mux)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	msg := s.Snapshot()
	if msg.State == nil {
		writeJSON(w, http.StatusServiceUnavailable, feed.ErrorMessage{Error: "no state received from the thermostat yet"})
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (s *Server) handleTemperature(w http.ResponseWriter, r *http.Request) {
	var req feed.TemperatureRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, feed.ErrorMessage{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.CommandTimeout)
	defer cancel()
	s.writeCommandResult(w, s.device.SetTargetTemperature(ctx, req.Value))
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	var req feed.ModeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, feed.ErrorMessage{Error: err.Error()})
		return
	}
	mode, err := salus.ParseMode(req.Mode)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, feed.ErrorMessage{Error: err.Error(), Kind: salus.KindOutOfRange.String()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.CommandTimeout)
	defer cancel()
	s.writeCommandResult(w, s.device.SetMode(ctx, mode))
}

func (s *Server) writeCommandResult(w http.ResponseWriter, err error) {
	if err == nil {
		writeJSON(w, http.StatusAccepted, s.Snapshot())
		return
	}
	writeJSON(w, StatusForError(err), errorMessage(err))
}

// StatusForError maps a command error to the API status code
func StatusForError(err error) int {
	switch {
	case errors.Is(err, salus.ErrNotImplemented):
		return http.StatusNotImplemented
	case salus.IsClientError(err, salus.KindOutOfRange):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func errorMessage(err error) feed.ErrorMessage {
	msg := feed.ErrorMessage{Error: salus.GetShortErrorMessage(err)}
	if kind, ok := salus.KindOf(err); ok {
		msg.Kind = kind.String()
	} else if salus.IsAuthError(err) {
		msg.Kind = "auth"
	}
	return msg
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("Failed to write response", zap.Error(err))
	}
}

// statusRecorder captures the response status for logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrader take over the connection
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.LogRequest(r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}
