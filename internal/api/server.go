package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"linkstash/internal/config"
	"linkstash/internal/ingest"
	"linkstash/internal/links"
	"linkstash/internal/metrics"
	"linkstash/internal/recycle"
)

// maxURLLength bounds submitted URLs before the pipeline sees them.
const maxURLLength = 2000

// Server wires HTTP handlers to the ingest pipeline and recycle bin.
type Server struct {
	router   chi.Router
	ingestor *ingest.Service
	queue    *ingest.Queue
	bin      *recycle.Bin
	store    links.Store
	clock    links.Clock
	cfg      config.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	ingestor *ingest.Service,
	queue *ingest.Queue,
	bin *recycle.Bin,
	store links.Store,
	clock links.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	s := &Server{
		ingestor: ingestor,
		queue:    queue,
		bin:      bin,
		store:    store,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metricsMiddleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(ownerMiddleware(cfg.Auth))
		r.Route("/links", func(r chi.Router) {
			r.Post("/", s.addLink)
			r.Get("/", s.listLinks)
			r.Route("/{link_id}", func(r chi.Router) {
				r.Post("/bin", s.binLink)
				r.Post("/restore", s.restoreLink)
				r.Delete("/", s.deleteLink)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type addLinkRequest struct {
	URL string `json:"url"`
}

func (s *Server) addLink(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())

	var req addLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := validateURL(req.URL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if r.URL.Query().Get("wait") == "true" {
		s.addLinkSync(w, r, owner, req.URL)
		return
	}

	// The user shouldn't sit staring at a spinner while we fetch; the
	// add runs to completion on a worker even if the caller goes away.
	queueCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	task := ingest.Task{Owner: owner, URL: req.URL, EnqueuedAt: s.clock.Now()}
	if err := s.queue.Enqueue(queueCtx, task); err != nil {
		writeError(w, http.StatusServiceUnavailable, "too many saves in flight, try again shortly")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) addLinkSync(w http.ResponseWriter, r *http.Request, owner, rawURL string) {
	// Same contract as the queued path: once accepted, the save runs to
	// completion even if the caller disconnects mid-fetch.
	link, inserted, err := s.ingestor.Add(context.WithoutCancel(r.Context()), owner, rawURL)
	switch {
	case errors.Is(err, links.ErrPoolExhausted):
		writeError(w, http.StatusServiceUnavailable, "too many saves in flight, try again shortly")
	case isFetchError(err):
		writeError(w, http.StatusUnprocessableEntity, "couldn't fetch that URL")
	case err != nil:
		// Detail is already logged server-side; don't leak internals.
		writeError(w, http.StatusInternalServerError, "couldn't save that link")
	case !inserted:
		writeJSON(w, http.StatusOK, map[string]string{"status": "already_saved"})
	default:
		writeJSON(w, http.StatusCreated, map[string]any{"status": "saved", "link": link})
	}
}

type listResponse struct {
	Groups []links.Group `json:"groups"`
	Bin    []links.Link  `json:"bin"`
}

func (s *Server) listLinks(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())

	active, err := s.store.ListActive(r.Context(), owner)
	if err != nil {
		s.logger.Error("list links failed", zap.String("owner", owner), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "couldn't load your links")
		return
	}
	binned, err := s.bin.Contents(r.Context(), owner)
	if err != nil {
		s.logger.Error("list bin failed", zap.String("owner", owner), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "couldn't load your links")
		return
	}
	writeJSON(w, http.StatusOK, listResponse{
		Groups: links.GroupByDomain(active, s.cfg.Links.MinGroupSize),
		Bin:    binned,
	})
}

func (s *Server) binLink(w http.ResponseWriter, r *http.Request) {
	s.linkAction(w, r, s.bin.SoftDelete)
}

func (s *Server) restoreLink(w http.ResponseWriter, r *http.Request) {
	s.linkAction(w, r, s.bin.Restore)
}

func (s *Server) deleteLink(w http.ResponseWriter, r *http.Request) {
	s.linkAction(w, r, s.bin.Delete)
}

func (s *Server) linkAction(
	w http.ResponseWriter,
	r *http.Request,
	action func(ctx context.Context, owner string, id int64) error,
) {
	owner := ownerFrom(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "link_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid link id")
		return
	}
	if err := action(r.Context(), owner, id); err != nil {
		if errors.Is(err, links.ErrNotFound) {
			writeError(w, http.StatusNotFound, "link not found")
			return
		}
		s.logger.Error("link action failed",
			zap.String("owner", owner), zap.Int64("link_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "couldn't update that link")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// validateURL enforces the submission rules before the core pipeline is
// invoked: http/https only, bounded length, parseable with a host.
func validateURL(raw string) error {
	if raw == "" {
		return errors.New("it doesn't look like you passed us a URL")
	}
	if len(raw) > maxURLLength {
		return fmt.Errorf("URL exceeds %d characters", maxURLLength)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return errors.New("that URL doesn't parse")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("only http and https URLs are supported")
	}
	if u.Host == "" {
		return errors.New("that URL has no host")
	}
	return nil
}

func isFetchError(err error) bool {
	var fe *links.FetchError
	return errors.As(err, &fe)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
