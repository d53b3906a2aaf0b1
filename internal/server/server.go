package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/casetrace/casetrace/internal/ai"
	"github.com/casetrace/casetrace/internal/casedir"
)

// Server is the casetrace HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
type ServerConfig struct {
	Manager *casedir.Manager
	Client  *ai.Client // nil disables model-backed endpoints.
	Logger  *slog.Logger

	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64
	MaxUploadBytes      int64
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := &Handlers{
		mgr:       cfg.Manager,
		client:    cfg.Client,
		logger:    cfg.Logger,
		version:   cfg.Version,
		maxBody:   cfg.MaxRequestBodyBytes,
		maxUpload: cfg.MaxUploadBytes,
		open:      make(map[string]*casedir.Case),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.HandleHealth)

	// Case lifecycle.
	mux.HandleFunc("POST /v1/cases", h.HandleCreateCase)
	mux.HandleFunc("GET /v1/cases", h.HandleListCases)
	mux.HandleFunc("DELETE /v1/cases/{case}", h.HandleDeleteCase)
	mux.HandleFunc("GET /v1/cases/{case}/summary", h.HandleCaseSummary)

	// Sources.
	mux.HandleFunc("POST /v1/cases/{case}/sources", h.HandleCreateSource)
	mux.HandleFunc("GET /v1/cases/{case}/sources", h.HandleListSources)
	mux.HandleFunc("GET /v1/cases/{case}/sources/{id}", h.HandleGetSource)
	mux.HandleFunc("PUT /v1/cases/{case}/sources/{id}/rating", h.HandleRateSource)
	mux.HandleFunc("GET /v1/cases/{case}/sources/{id}/suggestion", h.HandleSuggestRating)
	mux.HandleFunc("POST /v1/cases/{case}/sources/{id}/extract", h.HandleExtractSource)
	mux.HandleFunc("POST /v1/cases/{case}/sources/{id}/classify", h.HandleClassifySource)

	// Entities and relationships.
	mux.HandleFunc("POST /v1/cases/{case}/entities", h.HandleCreateEntity)
	mux.HandleFunc("GET /v1/cases/{case}/entities", h.HandleListEntities)
	mux.HandleFunc("GET /v1/cases/{case}/entities/{id}", h.HandleGetEntity)
	mux.HandleFunc("PUT /v1/cases/{case}/entities/{id}", h.HandleUpdateEntity)
	mux.HandleFunc("PUT /v1/cases/{case}/entities/{id}/canonical", h.HandleSetCanonical)
	mux.HandleFunc("GET /v1/cases/{case}/entities/{id}/aliases", h.HandleEntityAliases)
	mux.HandleFunc("POST /v1/cases/{case}/relationships", h.HandleCreateRelationship)
	mux.HandleFunc("GET /v1/cases/{case}/relationships", h.HandleListRelationships)
	mux.HandleFunc("POST /v1/cases/{case}/relationships/{id}/confirm", h.HandleConfirmRelationship)
	mux.HandleFunc("DELETE /v1/cases/{case}/relationships/{id}", h.HandleDeleteRelationship)

	// Timeline.
	mux.HandleFunc("POST /v1/cases/{case}/events", h.HandleCreateEvent)
	mux.HandleFunc("GET /v1/cases/{case}/events", h.HandleListEvents)
	mux.HandleFunc("PUT /v1/cases/{case}/events/{id}", h.HandleUpdateEvent)
	mux.HandleFunc("DELETE /v1/cases/{case}/events/{id}", h.HandleDeleteEvent)
	mux.HandleFunc("GET /v1/cases/{case}/timeline/gaps", h.HandleTimelineGaps)

	// Evidence.
	mux.HandleFunc("POST /v1/cases/{case}/evidence", h.HandleCreateEvidence)
	mux.HandleFunc("GET /v1/cases/{case}/evidence", h.HandleListEvidence)
	mux.HandleFunc("GET /v1/cases/{case}/evidence/{id}", h.HandleGetEvidence)
	mux.HandleFunc("PUT /v1/cases/{case}/evidence/{id}", h.HandleUpdateEvidence)
	mux.HandleFunc("PUT /v1/cases/{case}/evidence/{id}/resubmission", h.HandleSetResubmission)
	mux.HandleFunc("GET /v1/cases/{case}/evidence/resubmission-candidates", h.HandleResubmissionCandidates)

	// Hypotheses and indicators.
	mux.HandleFunc("POST /v1/cases/{case}/hypotheses", h.HandleCreateHypothesis)
	mux.HandleFunc("GET /v1/cases/{case}/hypotheses", h.HandleListHypotheses)
	mux.HandleFunc("GET /v1/cases/{case}/hypotheses/{id}", h.HandleGetHypothesis)
	mux.HandleFunc("PUT /v1/cases/{case}/hypotheses/{id}", h.HandleUpdateHypothesis)
	mux.HandleFunc("PUT /v1/cases/{case}/hypotheses/{id}/tier", h.HandleSetTier)
	mux.HandleFunc("POST /v1/cases/{case}/hypotheses/{id}/indicators", h.HandleCreateIndicator)
	mux.HandleFunc("GET /v1/cases/{case}/indicators", h.HandleListIndicators)
	mux.HandleFunc("PUT /v1/cases/{case}/indicators/{id}/status", h.HandleSetIndicatorStatus)

	// Competing-hypotheses matrix.
	mux.HandleFunc("PUT /v1/cases/{case}/ach/scores", h.HandleSetScore)
	mux.HandleFunc("GET /v1/cases/{case}/ach/matrix", h.HandleMatrix)
	mux.HandleFunc("GET /v1/cases/{case}/ach/summaries", h.HandleSummaries)
	mux.HandleFunc("GET /v1/cases/{case}/ach/diagnosticity", h.HandleDiagnosticity)

	// Suspect pools.
	mux.HandleFunc("POST /v1/cases/{case}/suspect-pools", h.HandleCreatePool)
	mux.HandleFunc("GET /v1/cases/{case}/suspect-pools", h.HandleListPools)
	mux.HandleFunc("POST /v1/cases/{case}/suspect-pools/{id}/members", h.HandleAddPoolMember)
	mux.HandleFunc("GET /v1/cases/{case}/suspect-pools/{id}/members", h.HandlePoolMembers)
	mux.HandleFunc("DELETE /v1/cases/{case}/suspect-pools/{id}/members/{entity_id}", h.HandleRemovePoolMember)
	mux.HandleFunc("DELETE /v1/cases/{case}/suspect-pools/{id}", h.HandleDeletePool)

	// Case file records.
	mux.HandleFunc("POST /v1/cases/{case}/statements", h.HandleCreateStatement)
	mux.HandleFunc("GET /v1/cases/{case}/statements", h.HandleListStatements)
	mux.HandleFunc("POST /v1/cases/{case}/anomalies", h.HandleCreateAnomaly)
	mux.HandleFunc("GET /v1/cases/{case}/anomalies", h.HandleListAnomalies)
	mux.HandleFunc("PUT /v1/cases/{case}/victim-profile", h.HandleSetVictimField)
	mux.HandleFunc("GET /v1/cases/{case}/victim-profile", h.HandleVictimProfile)
	mux.HandleFunc("POST /v1/cases/{case}/review-items", h.HandleCreateReviewItem)
	mux.HandleFunc("GET /v1/cases/{case}/review-items", h.HandleListReviewItems)
	mux.HandleFunc("PUT /v1/cases/{case}/review-items/{id}/status", h.HandleSetReviewStatus)

	// Attachments.
	mux.HandleFunc("POST /v1/cases/{case}/files", h.HandleUploadFile)
	mux.HandleFunc("GET /v1/cases/{case}/files", h.HandleListFiles)
	mux.HandleFunc("GET /v1/cases/{case}/files/verify", h.HandleVerifyFiles)
	mux.HandleFunc("GET /v1/cases/{case}/files/{id}", h.HandleGetFile)
	mux.HandleFunc("GET /v1/cases/{case}/files/{id}/content", h.HandleFileContent)
	mux.HandleFunc("DELETE /v1/cases/{case}/files/{id}", h.HandleDeleteFile)
	mux.HandleFunc("POST /v1/cases/{case}/files/{id}/links", h.HandleLinkFile)
	mux.HandleFunc("DELETE /v1/cases/{case}/files/{id}/links", h.HandleUnlinkFile)
	mux.HandleFunc("POST /v1/cases/{case}/files/{id}/analyze", h.HandleAnalyzeFile)

	// Staged review queue.
	mux.HandleFunc("GET /v1/cases/{case}/staged", h.HandleListStaged)
	mux.HandleFunc("POST /v1/cases/{case}/staged/{id}/accept", h.HandleAcceptStaged)
	mux.HandleFunc("POST /v1/cases/{case}/staged/{id}/reject", h.HandleRejectStaged)
	mux.HandleFunc("POST /v1/cases/{case}/staged/batch", h.HandleBatchStaged)
	mux.HandleFunc("POST /v1/cases/{case}/staged/accept-all", h.HandleAcceptAllStaged)
	mux.HandleFunc("POST /v1/cases/{case}/staged/reject-all", h.HandleRejectAllStaged)

	// Imports and analyst reviews.
	mux.HandleFunc("POST /v1/cases/{case}/import", h.HandleImport)
	mux.HandleFunc("POST /v1/cases/{case}/ai-review", h.HandleAIReview)
	mux.HandleFunc("POST /v1/cases/{case}/cross-reference", h.HandleCrossReference)

	// Middleware chain, outermost first: request ID, then security headers,
	// tracing, logging, recovery.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// securityHeadersMiddleware sets baseline security headers.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Start begins listening for requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server and closes open cases.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.handlers.closeAll()
	return err
}

// Handlers carries request handler state: the case manager and a cache of
// open case handles so each case database opens once per process.
type Handlers struct {
	mgr       *casedir.Manager
	client    *ai.Client
	logger    *slog.Logger
	version   string
	maxBody   int64
	maxUpload int64

	mu   sync.Mutex
	open map[string]*casedir.Case
}

// caseFor returns the open handle for a case slug, opening it on first use.
func (h *Handlers) caseFor(ctx context.Context, slug string) (*casedir.Case, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cs, ok := h.open[slug]; ok {
		return cs, nil
	}
	cs, err := h.mgr.Open(ctx, slug)
	if err != nil {
		return nil, err
	}
	h.open[slug] = cs
	return cs, nil
}

// evict drops a cached handle, closing it.
func (h *Handlers) evict(slug string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cs, ok := h.open[slug]; ok {
		if err := cs.Close(); err != nil {
			h.logger.Warn("close case", "slug", slug, "error", err)
		}
		delete(h.open, slug)
	}
}

func (h *Handlers) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for slug, cs := range h.open {
		if err := cs.Close(); err != nil {
			h.logger.Warn("close case", "slug", slug, "error", err)
		}
		delete(h.open, slug)
	}
}
