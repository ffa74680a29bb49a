package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/nickh0112/insta-captions/internal/api"
	"github.com/nickh0112/insta-captions/internal/archive"
	"github.com/nickh0112/insta-captions/internal/jobs"
	"github.com/nickh0112/insta-captions/internal/logging"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(bind string, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(bind),
		logger: logger,
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/submit", srv.handleSubmit)
	mux.HandleFunc("/status/", srv.handleStatus)
	mux.HandleFunc("/result/", srv.handleResult)
	mux.HandleFunc("/jobs", srv.handleJobs)
	mux.HandleFunc("/jobs/", srv.handleJobItem)
	mux.HandleFunc("/healthz", srv.handleHealth)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr returns the bound listener address, for tests using port 0.
func (s *apiServer) Addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req api.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	urls := tokenizeURLs(req.URLs)
	if len(urls) == 0 {
		s.writeError(w, http.StatusBadRequest, "No URLs provided")
		return
	}

	job, err := s.daemon.registry.Create(urls)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.daemon.dispatcher.Dispatch(job.ID); err != nil {
		// The record exists but nothing will run it; resolve it now.
		_ = s.daemon.registry.SetFailed(job.ID, "Error: "+err.Error())
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	s.log().Info("job submitted",
		logging.String(logging.FieldJobID, job.ID),
		logging.Int("url_count", len(urls)),
	)
	s.writeJSON(w, http.StatusCreated, api.SubmitResponse{
		JobID:   job.ID,
		Message: "Job submitted successfully",
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jobID, ok := pathID(r.URL.Path, "/status/")
	if !ok {
		s.writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	job, err := s.daemon.registry.Get(jobID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromJob(job, false))
}

func (s *apiServer) handleResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jobID, ok := pathID(r.URL.Path, "/result/")
	if !ok {
		s.writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	job, err := s.daemon.registry.Get(jobID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	if job.State != jobs.StateCompleted {
		s.writeError(w, http.StatusBadRequest, "Job not completed yet")
		return
	}
	ws := job.Workspace
	if ws == nil || ws.Destroyed() {
		s.writeError(w, http.StatusNotFound, "Results not found")
		return
	}
	if _, err := os.Stat(ws.Root()); err != nil {
		s.writeError(w, http.StatusNotFound, "Results not found")
		return
	}

	archivePath, err := archive.Package(ws)
	if err != nil {
		s.log().Error("package result", logging.String(logging.FieldJobID, jobID), logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to package results")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "transcripts_"+jobID+".zip"))
	http.ServeFile(w, r, archivePath)
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	all := s.daemon.registry.List()
	out := make([]api.JobStatus, 0, len(all))
	for _, job := range all {
		out = append(out, api.FromJob(job, true))
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: out})
}

func (s *apiServer) handleJobItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jobID, ok := pathID(r.URL.Path, "/jobs/")
	if !ok {
		s.writeError(w, http.StatusNotFound, "Job not found")
		return
	}

	// Interrupt a running pipeline before the record disappears.
	s.daemon.dispatcher.Cancel(jobID)

	job, err := s.daemon.registry.Delete(jobID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	if job.Workspace != nil {
		if err := job.Workspace.Destroy(); err != nil {
			s.log().Warn("destroy workspace", logging.String(logging.FieldJobID, jobID), logging.Error(err))
		}
	}

	s.log().Info("job deleted", logging.String(logging.FieldJobID, jobID))
	s.writeJSON(w, http.StatusOK, api.MessageResponse{Message: "Job deleted successfully"})
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, api.HealthResponse{
		Running:      s.daemon.Running(),
		ActiveJobs:   s.daemon.dispatcher.Active(),
		Dependencies: s.daemon.Dependencies(),
	})
}

// tokenizeURLs splits every submitted entry on whitespace and discards
// empties, so pasted URL blobs separated by spaces or newlines work.
func tokenizeURLs(raw []string) []string {
	var urls []string
	for _, entry := range raw {
		urls = append(urls, strings.Fields(entry)...)
	}
	return urls
}

func pathID(path, prefix string) (string, bool) {
	id := strings.TrimPrefix(path, prefix)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
