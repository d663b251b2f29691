package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	sdkmath "cosmossdk.io/math"

	"caravel/internal/oracle/models"
	"caravel/pkg/domain"
	dErrors "caravel/pkg/domain-errors"
	"caravel/pkg/platform/httputil"
	"caravel/pkg/requestcontext"
)

// Service defines the interface for NAV feed operations.
type Service interface {
	CreateFeed(ctx context.Context, admin domain.Address, feedID domain.FeedID, cfg models.Config) (*models.Feed, error)
	Report(ctx context.Context, feedID domain.FeedID, reporter domain.Address, price sdkmath.Int, reportedAt time.Time) error
	SetConfig(ctx context.Context, feedID domain.FeedID, admin domain.Address, cfg models.Config) error
	Pause(ctx context.Context, feedID domain.FeedID, guardian domain.Address) error
	Unpause(ctx context.Context, feedID domain.FeedID, guardian domain.Address) error
	GetFeed(ctx context.Context, feedID domain.FeedID) (*models.Feed, error)
}

// Handler wires NAV endpoints to the feed service.
type Handler struct {
	service     Service
	defaultFeed domain.FeedID
	logger      *slog.Logger
}

// New constructs a NAV handler. Requests that do not name a feed are served
// by defaultFeed.
func New(service Service, defaultFeed domain.FeedID, logger *slog.Logger) *Handler {
	return &Handler{
		service:     service,
		defaultFeed: defaultFeed,
		logger:      logger,
	}
}

// Register mounts NAV endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/nav", h.HandleGetNav)
	r.Post("/nav/report", h.HandleReport)
	r.Put("/nav/config", h.HandleSetConfig)
	r.Post("/nav/pause", h.HandlePause)
	r.Post("/nav/unpause", h.HandleUnpause)
	r.Post("/nav/feeds", h.HandleCreateFeed)
}

// HandleGetNav handles GET /nav requests. Public read.
func (h *Handler) HandleGetNav(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	feedID, err := h.feedFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	feed, err := h.service.GetFeed(ctx, feedID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromFeed(feed))
}

// HandleReport handles POST /nav/report requests.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	principal, ok := h.requirePrincipal(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ReportRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	feedID := h.orDefault(req.ParsedFeed())

	if err := h.service.Report(ctx, feedID, principal, req.ParsedPrice(), req.ParsedReportedAt()); err != nil {
		h.logger.WarnContext(ctx, "nav report rejected",
			"request_id", requestID,
			"feed", feedID,
			"reporter", principal,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "nav report accepted",
		"request_id", requestID,
		"feed", feedID,
		"reporter", principal,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetConfig handles PUT /nav/config requests.
func (h *Handler) HandleSetConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	principal, ok := h.requirePrincipal(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ConfigRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	feedID := h.orDefault(req.ParsedFeed())

	if err := h.service.SetConfig(ctx, feedID, principal, req.ParsedConfig()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePause handles POST /nav/pause requests. The feed is named by the
// optional "feed" query parameter.
func (h *Handler) HandlePause(w http.ResponseWriter, r *http.Request) {
	h.handleSetPaused(w, r, h.service.Pause)
}

// HandleUnpause handles POST /nav/unpause requests.
func (h *Handler) HandleUnpause(w http.ResponseWriter, r *http.Request) {
	h.handleSetPaused(w, r, h.service.Unpause)
}

func (h *Handler) handleSetPaused(w http.ResponseWriter, r *http.Request, op func(context.Context, domain.FeedID, domain.Address) error) {
	ctx := r.Context()

	principal, ok := h.requirePrincipal(w, ctx)
	if !ok {
		return
	}
	feedID, err := h.feedFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := op(ctx, feedID, principal); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCreateFeed handles POST /nav/feeds requests.
func (h *Handler) HandleCreateFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	principal, ok := h.requirePrincipal(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateFeedRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	feed, err := h.service.CreateFeed(ctx, principal, req.ParsedFeed(), req.ParsedConfig())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromFeed(feed))
}

func (h *Handler) requirePrincipal(w http.ResponseWriter, ctx context.Context) (domain.Address, bool) {
	principal := requestcontext.Principal(ctx)
	if principal.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return domain.ZeroAddress, false
	}
	return principal, true
}

func (h *Handler) feedFromQuery(r *http.Request) (domain.FeedID, error) {
	raw := r.URL.Query().Get("feed")
	if raw == "" {
		return h.defaultFeed, nil
	}
	return domain.ParseFeedID(raw)
}

func (h *Handler) orDefault(feedID domain.FeedID) domain.FeedID {
	if feedID == "" {
		return h.defaultFeed
	}
	return feedID
}
