package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackkerouac/aphrodite-sub000/internal/api"
	"github.com/jackkerouac/aphrodite-sub000/internal/config"
	"github.com/jackkerouac/aphrodite-sub000/internal/logging"
	"github.com/jackkerouac/aphrodite-sub000/internal/notifications"
	"github.com/jackkerouac/aphrodite-sub000/internal/services"
)

// maxRequestBody bounds JSON request bodies; custom poster uploads carry
// base64 image payloads.
const maxRequestBody = 32 << 20

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	jobs      *api.JobService
	posters   *api.PosterService
	config    *api.ConfigService
	schedules *api.ScheduleService

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	var discovery api.PosterDiscovery
	if tmdb, ok := d.registry.TMDb(); ok {
		discovery = tmdb
	}
	var reloader api.Reloader
	if d.scheduler != nil {
		reloader = d.scheduler
	}

	srv := &apiServer{
		bind:      bind,
		logger:    logger,
		daemon:    d,
		jobs:      api.NewJobService(d.engine, d.catalog),
		posters:   api.NewPosterService(d.catalog, discovery, d.posterStore, d.engine),
		config:    api.NewConfigService(d.settingsStore),
		schedules: api.NewScheduleService(d.jobsStore, reloader),
	}

	token := strings.TrimSpace(cfg.Paths.APIToken)
	mux := http.NewServeMux()
	route := func(pattern string, handler http.HandlerFunc) {
		mux.HandleFunc(pattern, authMiddleware(token, handler))
	}

	route("POST /api/jobs/batch", srv.handleJobBatch)
	route("POST /api/jobs/single", srv.handleJobSingle)
	route("POST /api/jobs/revert", srv.handleJobRevert)
	route("GET /api/jobs", srv.handleJobList)
	route("GET /api/jobs/{id}", srv.handleJobGet)
	route("POST /api/jobs/{id}/cancel", srv.handleJobCancel)
	route("GET /api/jobs/{id}/events", srv.handleJobEvents)
	route("POST /api/items/{id}/revert", srv.handleItemRevert)
	route("POST /api/items/restore-all", srv.handleRestoreAll)
	route("GET /api/posters/{id}/sources", srv.handlePosterSources)
	route("POST /api/posters/{id}/replace", srv.handlePosterReplace)
	route("POST /api/posters/{id}/custom", srv.handlePosterCustom)
	route("GET /api/config/{category}", srv.handleConfigGet)
	route("PUT /api/config/{category}", srv.handleConfigPut)
	route("GET /api/schedules", srv.handleScheduleList)
	route("POST /api/schedules", srv.handleScheduleCreate)
	route("DELETE /api/schedules/{id}", srv.handleScheduleDelete)
	route("POST /api/schedules/{id}/enable", srv.handleScheduleEnable)
	route("POST /api/schedules/{id}/disable", srv.handleScheduleDisable)
	route("GET /api/logs", srv.handleLogTail)
	route("GET /api/logs/stream", srv.handleLogStream)
	route("POST /api/notify/test", srv.handleNotifyTest)
	route("GET /api/status", srv.handleStatus)
	route("GET /api/health", srv.handleHealth)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.FieldErrorHint, err.Error())
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", "address", listener.Addr().String())
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
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

func (s *apiServer) handleJobBatch(w http.ResponseWriter, r *http.Request) {
	var req api.BatchRequest
	if !s.decode(w, r, &req) {
		return
	}
	job, err := s.jobs.SubmitBatch(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.JobResponse{Job: job})
}

func (s *apiServer) handleJobSingle(w http.ResponseWriter, r *http.Request) {
	var req api.SingleRequest
	if !s.decode(w, r, &req) {
		return
	}
	job, err := s.jobs.SubmitSingle(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.JobResponse{Job: job})
}

func (s *apiServer) handleJobRevert(w http.ResponseWriter, r *http.Request) {
	var req api.RevertRequest
	if !s.decode(w, r, &req) {
		return
	}
	job, err := s.jobs.SubmitRevert(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.JobResponse{Job: job})
}

func (s *apiServer) handleJobList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	var statuses []string
	for _, value := range query["status"] {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			statuses = append(statuses, trimmed)
		}
	}
	listed, err := s.jobs.List(r.Context(), limit, statuses...)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: listed})
}

func (s *apiServer) handleJobGet(w http.ResponseWriter, r *http.Request) {
	detail, err := s.jobs.Describe(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

func (s *apiServer) handleJobCancel(w http.ResponseWriter, r *http.Request) {
	cancelled, err := s.jobs.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CancelResponse{Cancelled: cancelled})
}

// handleJobEvents streams progress events as newline-delimited JSON until the
// job reaches a terminal status or the client goes away. The server's write
// timeout bounds one poll; clients resume by reconnecting.
func (s *apiServer) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	events, release, err := s.jobs.Stream(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	defer release()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	encoder := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-events:
			if !open {
				return
			}
			if err := encoder.Encode(event); err != nil {
				return
			}
			if canFlush {
				flusher.Flush()
			}
		}
	}
}

func (s *apiServer) handleItemRevert(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.SubmitRevert(r.Context(), api.RevertRequest{ItemIDs: []string{r.PathValue("id")}})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.JobResponse{Job: job})
}

func (s *apiServer) handleRestoreAll(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.SubmitRestore(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.JobResponse{Job: job})
}

func (s *apiServer) handlePosterSources(w http.ResponseWriter, r *http.Request) {
	resp, err := s.posters.Sources(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handlePosterReplace(w http.ResponseWriter, r *http.Request) {
	var req api.ReplacePosterRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.posters.Replace(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handlePosterCustom(w http.ResponseWriter, r *http.Request) {
	var req api.CustomPosterRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.posters.Custom(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleConfigGet(w http.ResponseWriter, r *http.Request) {
	resp, err := s.config.Category(r.Context(), r.PathValue("category"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleConfigPut(w http.ResponseWriter, r *http.Request) {
	var req api.ConfigUpdateRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.config.Update(r.Context(), r.PathValue("category"), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleScheduleList(w http.ResponseWriter, r *http.Request) {
	listed, err := s.schedules.List(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ScheduleListResponse{Schedules: listed})
}

func (s *apiServer) handleScheduleCreate(w http.ResponseWriter, r *http.Request) {
	var req api.ScheduleRequest
	if !s.decode(w, r, &req) {
		return
	}
	created, err := s.schedules.Create(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.ScheduleResponse{Schedule: created})
}

func (s *apiServer) handleScheduleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.scheduleID(w, r)
	if !ok {
		return
	}
	deleted, err := s.schedules.Delete(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !deleted {
		s.writeError(w, http.StatusNotFound, "schedule not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *apiServer) handleScheduleEnable(w http.ResponseWriter, r *http.Request) {
	s.toggleSchedule(w, r, true)
}

func (s *apiServer) handleScheduleDisable(w http.ResponseWriter, r *http.Request) {
	s.toggleSchedule(w, r, false)
}

func (s *apiServer) toggleSchedule(w http.ResponseWriter, r *http.Request, enabled bool) {
	id, ok := s.scheduleID(w, r)
	if !ok {
		return
	}
	schedule, err := s.schedules.SetEnabled(r.Context(), id, enabled)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ScheduleResponse{Schedule: schedule})
}

func (s *apiServer) scheduleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid schedule id")
		return 0, false
	}
	return id, true
}

// handleLogTail returns the most recent daemon log events. When the in-memory
// buffer has rolled past the requested window the on-disk archive backfills.
func (s *apiServer) handleLogTail(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 100
	}

	events, next := s.daemon.logHub.Tail(limit)
	if len(events) < limit && s.daemon.logArchive != nil {
		first := s.daemon.logHub.FirstSequence()
		if archived, _, err := s.daemon.logArchive.ReadSince(0, 0); err == nil {
			var older []logging.LogEvent
			for _, evt := range archived {
				if evt.Sequence < first {
					older = append(older, evt)
				}
			}
			if missing := limit - len(events); len(older) > missing {
				older = older[len(older)-missing:]
			}
			events = append(older, events...)
		}
	}
	s.writeJSON(w, http.StatusOK, api.LogListResponse{Events: events, NextSeq: next})
}

// handleLogStream follows the daemon log as newline-delimited JSON. One poll
// is bounded by the server write timeout; clients resume with ?since=.
func (s *apiServer) handleLogStream(w http.ResponseWriter, r *http.Request) {
	if s.daemon.logHub == nil {
		s.writeError(w, http.StatusNotFound, "log streaming not enabled")
		return
	}
	since, _ := strconv.ParseUint(r.URL.Query().Get("since"), 10, 64)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	encoder := json.NewEncoder(w)
	for {
		events, next, err := s.daemon.logHub.Fetch(r.Context(), since, 100, true)
		if err != nil {
			return
		}
		for _, event := range events {
			if err := encoder.Encode(event); err != nil {
				return
			}
		}
		if canFlush {
			flusher.Flush()
		}
		since = next
	}
}

func (s *apiServer) handleNotifyTest(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.notifier.Publish(r.Context(), notifications.EventTest, nil); err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"sent": true})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.daemon.Health(r.Context())
	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, health)
}

func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

// writeServiceError maps pipeline error kinds onto HTTP statuses so clients
// can distinguish bad requests from upstream failures.
func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	kind := services.Kind(err)
	status := http.StatusInternalServerError
	switch kind {
	case "config_invalid", "config_missing", "image_invalid", "image_too_large":
		status = http.StatusBadRequest
	case "catalog_not_found", "source_not_found":
		status = http.StatusNotFound
	case "busy", "storage_conflict", "cannot_revert":
		status = http.StatusConflict
	case "catalog_rate_limited", "source_rate_limited":
		status = http.StatusTooManyRequests
	case "catalog_unreachable", "source_unreachable", "image_fetch_failed":
		status = http.StatusBadGateway
	case "timeout":
		status = http.StatusGatewayTimeout
	}
	s.writeJSON(w, status, api.ErrorResponse{Error: err.Error(), Kind: kind})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.FieldErrorHint, err.Error())
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With("component", "api-server")
	}
	return logging.NewNop()
}
