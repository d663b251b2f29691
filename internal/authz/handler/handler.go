package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"caravel/pkg/domain"
	dErrors "caravel/pkg/domain-errors"
	"caravel/pkg/platform/httputil"
	"caravel/pkg/requestcontext"
)

// Service defines the interface for capability management.
type Service interface {
	Grant(ctx context.Context, admin, principal domain.Address, capability domain.Capability) error
	Revoke(ctx context.Context, admin, principal domain.Address, capability domain.Capability) error
	List(ctx context.Context, principal domain.Address) ([]domain.Capability, error)
}

// Handler wires capability endpoints to the authz service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts capability endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/authz/grant", h.HandleGrant)
	r.Post("/authz/revoke", h.HandleRevoke)
	r.Get("/authz/capabilities", h.HandleList)
}

// HandleGrant handles POST /authz/grant requests.
func (h *Handler) HandleGrant(w http.ResponseWriter, r *http.Request) {
	h.handleChange(w, r, "granted", h.service.Grant)
}

// HandleRevoke handles POST /authz/revoke requests.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	h.handleChange(w, r, "revoked", h.service.Revoke)
}

func (h *Handler) handleChange(w http.ResponseWriter, r *http.Request, verb string,
	op func(ctx context.Context, admin, principal domain.Address, capability domain.Capability) error,
) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	principal, ok := h.requirePrincipal(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CapabilityRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := op(ctx, principal, req.ParsedPrincipal(), req.ParsedCapability()); err != nil {
		h.logger.WarnContext(ctx, "capability change rejected",
			"request_id", requestID,
			"admin", principal,
			"principal", req.ParsedPrincipal(),
			"capability", req.ParsedCapability(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "capability "+verb,
		"request_id", requestID,
		"admin", principal,
		"principal", req.ParsedPrincipal(),
		"capability", req.ParsedCapability(),
	)
	w.WriteHeader(http.StatusNoContent)
}

// HandleList handles GET /authz/capabilities requests. A principal may list
// their own grants.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := h.requirePrincipal(w, ctx)
	if !ok {
		return
	}

	capabilities, err := h.service.List(ctx, principal)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CapabilitiesResponse{
		Principal:    principal.String(),
		Capabilities: capabilities,
	})
}

func (h *Handler) requirePrincipal(w http.ResponseWriter, ctx context.Context) (domain.Address, bool) {
	principal := requestcontext.Principal(ctx)
	if principal == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return principal, true
}

// CapabilitiesResponse lists a principal's grants.
type CapabilitiesResponse struct {
	Principal    string              `json:"principal"`
	Capabilities []domain.Capability `json:"capabilities"`
}
