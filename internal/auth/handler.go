package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"caravel/pkg/domain"
	dErrors "caravel/pkg/domain-errors"
	"caravel/pkg/platform/httputil"
	"caravel/pkg/requestcontext"
)

// Handler wires the token endpoint to the auth service.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the token endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/token", h.HandleToken)
}

// TokenRequest is the payload for the secret-for-token exchange.
type TokenRequest struct {
	Address string `json:"address"`
	Secret  string `json:"secret"`

	parsedAddress domain.Address
}

// Validate parses and validates the request fields.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *TokenRequest) Validate() error {
	address, err := domain.ParseAddress(r.Address)
	if err != nil {
		return err
	}
	if r.Secret == "" {
		return dErrors.New(dErrors.CodeValidation, "secret is required")
	}
	r.parsedAddress = address
	return nil
}

// TokenResponse carries the issued bearer token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// HandleToken handles POST /auth/token requests.
func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[TokenRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	token, err := h.service.IssueToken(ctx, req.parsedAddress, req.Secret)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "access token issued",
		"request_id", requestID,
		"principal", req.parsedAddress,
	)
	httputil.WriteJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(token.ExpiresIn.Seconds()),
	})
}
