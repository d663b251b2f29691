package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	sdkmath "cosmossdk.io/math"

	"caravel/internal/vault/models"
	"caravel/internal/vault/service"
	"caravel/pkg/domain"
	dErrors "caravel/pkg/domain-errors"
	"caravel/pkg/platform/httputil"
	"caravel/pkg/requestcontext"
)

// Service defines the interface for vault operations.
type Service interface {
	Deposit(ctx context.Context, caller, receiver domain.Address, assets sdkmath.Int) (*service.FlowResult, error)
	DepositWithCheck(ctx context.Context, caller, receiver, referrer domain.Address, assets, minShares sdkmath.Int) (*service.FlowResult, error)
	Mint(ctx context.Context, caller, receiver domain.Address, shares sdkmath.Int) (*service.FlowResult, error)
	MintWithCheck(ctx context.Context, caller, receiver, referrer domain.Address, shares, maxAssets sdkmath.Int) (*service.FlowResult, error)
	Withdraw(ctx context.Context, caller, owner, receiver domain.Address, assets sdkmath.Int) (*service.FlowResult, error)
	WithdrawWithCheck(ctx context.Context, caller, owner, receiver domain.Address, assets, maxShares sdkmath.Int) (*service.FlowResult, error)
	Redeem(ctx context.Context, caller, owner, receiver domain.Address, shares sdkmath.Int) (*service.FlowResult, error)
	RedeemWithCheck(ctx context.Context, caller, owner, receiver domain.Address, shares, minAssets sdkmath.Int) (*service.FlowResult, error)
	QueueWithdrawal(ctx context.Context, caller, receiver domain.Address, shares sdkmath.Int) (*models.WithdrawalRequest, error)
	ClaimWithdrawal(ctx context.Context, caller domain.Address, id uint64) (*service.FlowResult, error)
	CancelWithdrawal(ctx context.Context, caller domain.Address, id uint64) (*models.WithdrawalRequest, error)
	RequestsOf(ctx context.Context, owner domain.Address) ([]*models.WithdrawalRequest, error)
	State(ctx context.Context) (*models.State, error)
	TotalAssets(ctx context.Context) (sdkmath.Int, error)
	TotalShares(ctx context.Context) (sdkmath.Int, error)
	BufferBalance(ctx context.Context) (sdkmath.Int, error)
	ConvertToShares(ctx context.Context, assets sdkmath.Int) (sdkmath.Int, error)
	ConvertToAssets(ctx context.Context, shares sdkmath.Int) (sdkmath.Int, error)
	SetMaxPriceAge(ctx context.Context, operator domain.Address, age time.Duration) error
	SetEpochLength(ctx context.Context, admin domain.Address, length time.Duration) error
	SetExitFee(ctx context.Context, admin domain.Address, bps uint32) error
	SetLiquidityRecipient(ctx context.Context, admin, recipient domain.Address) error
	Pause(ctx context.Context, guardian domain.Address) error
	Unpause(ctx context.Context, guardian domain.Address) error
	MoveAssets(ctx context.Context, operator domain.Address, amount sdkmath.Int) error
	FundLiquidity(ctx context.Context, caller domain.Address, amount sdkmath.Int) error
	SweepExitFees(ctx context.Context, admin, to domain.Address) (sdkmath.Int, error)
	QueueFeedChange(ctx context.Context, admin domain.Address, feed domain.FeedID) error
	ExecuteFeedChange(ctx context.Context, admin domain.Address) (domain.FeedID, error)
	RescueTokens(ctx context.Context, admin domain.Address, denom domain.Denom, to domain.Address, amount sdkmath.Int) error
}

// Handler wires vault endpoints to the vault service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a vault handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts vault endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/vault", h.HandleOverview)
	r.Get("/vault/convert", h.HandleConvert)
	r.Post("/vault/deposit", h.HandleDeposit)
	r.Post("/vault/mint", h.HandleMint)
	r.Post("/vault/withdraw", h.HandleWithdraw)
	r.Post("/vault/redeem", h.HandleRedeem)
	r.Post("/vault/withdrawals", h.HandleQueueWithdrawal)
	r.Get("/vault/withdrawals", h.HandleListWithdrawals)
	r.Post("/vault/withdrawals/{id}/claim", h.HandleClaim)
	r.Post("/vault/withdrawals/{id}/cancel", h.HandleCancel)
	r.Put("/vault/config/max-price-age", h.HandleSetMaxPriceAge)
	r.Put("/vault/config/epoch-length", h.HandleSetEpochLength)
	r.Put("/vault/config/exit-fee", h.HandleSetExitFee)
	r.Put("/vault/config/liquidity-recipient", h.HandleSetLiquidityRecipient)
	r.Post("/vault/pause", h.HandlePause)
	r.Post("/vault/unpause", h.HandleUnpause)
	r.Post("/vault/liquidity/move", h.HandleMoveAssets)
	r.Post("/vault/liquidity/fund", h.HandleFundLiquidity)
	r.Post("/vault/fees/sweep", h.HandleSweepFees)
	r.Post("/vault/feed-change", h.HandleQueueFeedChange)
	r.Post("/vault/feed-change/execute", h.HandleExecuteFeedChange)
	r.Post("/vault/rescue", h.HandleRescue)
}

// HandleOverview handles GET /vault requests. Public read. Ledger facts are
// always served; the priced total drops out while the feed cannot price.
func (h *Handler) HandleOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	state, err := h.service.State(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	shares, err := h.service.TotalShares(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	buffer, err := h.service.BufferBalance(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var totalAssets *sdkmath.Int
	switch ta, err := h.service.TotalAssets(ctx); {
	case err == nil:
		totalAssets = &ta
	case dErrors.HasCode(err, dErrors.CodeOracleInvalid) || dErrors.HasCode(err, dErrors.CodeOracleStale):
		// unpriceable right now, serve the rest
	default:
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromState(state, totalAssets, shares, buffer))
}

// HandleConvert handles GET /vault/convert requests. Exactly one of the
// assets and shares query parameters selects the direction. Public read, but
// it revalidates the oracle like every conversion.
func (h *Handler) HandleConvert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	assetsRaw := strings.TrimSpace(r.URL.Query().Get("assets"))
	sharesRaw := strings.TrimSpace(r.URL.Query().Get("shares"))
	if (assetsRaw == "") == (sharesRaw == "") {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "exactly one of assets or shares is required"))
		return
	}

	if assetsRaw != "" {
		assets, ok := sdkmath.NewIntFromString(assetsRaw)
		if !ok {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "assets must be an integer string"))
			return
		}
		shares, err := h.service.ConvertToShares(ctx, assets)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, ConvertResponse{Assets: assets.String(), Shares: shares.String()})
		return
	}

	shares, ok := sdkmath.NewIntFromString(sharesRaw)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "shares must be an integer string"))
		return
	}
	assets, err := h.service.ConvertToAssets(ctx, shares)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ConvertResponse{Assets: assets.String(), Shares: shares.String()})
}

// HandleDeposit handles POST /vault/deposit requests.
func (h *Handler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	principal, ok := h.requirePrincipal(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[DepositRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	var result *service.FlowResult
	var err error
	if req.Checked() {
		result, err = h.service.DepositWithCheck(ctx, principal, req.ParsedReceiver(), req.ParsedReferrer(), req.ParsedAssets(), req.ParsedMinShares())
	} else {
		result, err = h.service.Deposit(ctx, principal, req.ParsedReceiver(), req.ParsedAssets())
	}
	if err != nil {
		h.logger.WarnContext(ctx, "vault deposit rejected",
			"request_id", requestID,
			"caller", principal,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "vault deposit settled",
		"request_id", requestID,
		"caller", principal,
		"receiver", req.ParsedReceiver(),
		"assets", result.Assets.String(),
		"shares", result.Shares.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromFlow(result))
}

// HandleMint handles POST /vault/mint requests.
func (h *Handler) HandleMint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	principal, ok := h.requirePrincipal(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[MintRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	var result *service.FlowResult
	var err error
	if req.Checked() {
		result, err = h.service.MintWithCheck(ctx, principal, req.ParsedReceiver(), req.ParsedReferrer(), req.ParsedShares(), req.ParsedMaxAssets())
	} else {
		result, err = h.service.Mint(ctx, principal, req.ParsedReceiver(), req.ParsedShares())
	}
	if err != nil {
		h.logger.WarnContext(ctx, "vault mint rejected",
			"request_id", requestID,
			"caller", principal,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "vault mint settled",
		"request_id", requestID,
		"caller", principal,
		"receiver", req.ParsedReceiver(),
		"assets", result.Assets.String(),
		"shares", result.Shares.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromFlow(result))
}

// HandleWithdraw handles POST /vault/withdraw requests.
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	principal, ok := h.requirePrincipal(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[WithdrawRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	owner := orCaller(req.ParsedOwner(), principal)
	receiver := orCaller(req.ParsedReceiver(), principal)

	var result *service.FlowResult
	var err error
	if req.Checked() {
		result, err = h.service.WithdrawWithCheck(ctx, principal, owner, receiver, req.ParsedAssets(), req.ParsedMaxShares())
	} else {
		result, err = h.service.Withdraw(ctx, principal, owner, receiver, req.ParsedAssets())
	}
	if err != nil {
		h.logger.WarnContext(ctx, "vault withdraw rejected",
			"request_id", requestID,
			"caller", principal,
			"owner", owner,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "vault withdraw settled",
		"request_id", requestID,
		"caller", principal,
		"owner", owner,
		"receiver", receiver,
		"assets", result.Assets.String(),
		"shares", result.Shares.String(),
		"fee", result.Fee.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromFlow(result))
}

// HandleRedeem handles POST /vault/redeem requests.
func (h *Handler) HandleRedeem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	principal, ok := h.requirePrincipal(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RedeemRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	owner := orCaller(req.ParsedOwner(), principal)
	receiver := orCaller(req.ParsedReceiver(), principal)

	var result *service.FlowResult
	var err error
	if req.Checked() {
		result, err = h.service.RedeemWithCheck(ctx, principal, owner, receiver, req.ParsedShares(), req.ParsedMinAssets())
	} else {
		result, err = h.service.Redeem(ctx, principal, owner, receiver, req.ParsedShares())
	}
	if err != nil {
		h.logger.WarnContext(ctx, "vault redeem rejected",
			"request_id", requestID,
			"caller", principal,
			"owner", owner,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "vault redeem settled",
		"request_id", requestID,
		"caller", principal,
		"owner", owner,
		"receiver", receiver,
		"assets", result.Assets.String(),
		"shares", result.Shares.String(),
		"fee", result.Fee.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromFlow(result))
}

// HandleQueueWithdrawal handles POST /vault/withdrawals requests.
func (h *Handler) HandleQueueWithdrawal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	principal, ok := h.requirePrincipal(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[QueueRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	receiver := orCaller(req.ParsedReceiver(), principal)

	request, err := h.service.QueueWithdrawal(ctx, principal, receiver, req.ParsedShares())
	if err != nil {
		h.logger.WarnContext(ctx, "withdrawal queue rejected",
			"request_id", requestID,
			"caller", principal,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "withdrawal queued",
		"request_id", requestID,
		"caller", principal,
		"withdrawal_id", request.ID,
		"shares", request.Shares.String(),
		"claimable_at", request.ClaimableAt,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromWithdrawal(request))
}

// HandleClaim handles POST /vault/withdrawals/{id}/claim requests.
func (h *Handler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	principal, ok := h.requirePrincipal(w, ctx)
	if !ok {
		return
	}
	id, err := withdrawalIDFromPath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.ClaimWithdrawal(ctx, principal, id)
	if err != nil {
		h.logger.WarnContext(ctx, "withdrawal claim rejected",
			"request_id", requestID,
			"caller", principal,
			"withdrawal_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "withdrawal claimed",
		"request_id", requestID,
		"caller", principal,
		"withdrawal_id", id,
		"assets", result.Assets.String(),
		"shares", result.Shares.String(),
		"fee", result.Fee.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromFlow(result))
}

// HandleCancel handles POST /vault/withdrawals/{id}/cancel requests.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	principal, ok := h.requirePrincipal(w, ctx)
	if !ok {
		return
	}
	id, err := withdrawalIDFromPath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	request, err := h.service.CancelWithdrawal(ctx, principal, id)
	if err != nil {
		h.logger.WarnContext(ctx, "withdrawal cancel rejected",
			"request_id", requestID,
			"caller", principal,
			"withdrawal_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "withdrawal cancelled",
		"request_id", requestID,
		"caller", principal,
		"withdrawal_id", id,
		"shares", request.Shares.String(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromWithdrawal(request))
}

// HandleListWithdrawals handles GET /vault/withdrawals requests. The owner
// query parameter defaults to the authenticated caller.
func (h *Handler) HandleListWithdrawals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var owner domain.Address
	if raw := strings.TrimSpace(r.URL.Query().Get("owner")); raw != "" {
		parsed, err := domain.ParseAddress(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "owner must be a 0x-prefixed address"))
			return
		}
		owner = parsed
	} else {
		principal, ok := h.requirePrincipal(w, ctx)
		if !ok {
			return
		}
		owner = principal
	}

	reqs, err := h.service.RequestsOf(ctx, owner)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromWithdrawals(owner.String(), reqs))
}

// HandleSetMaxPriceAge handles PUT /vault/config/max-price-age requests.
func (h *Handler) HandleSetMaxPriceAge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	principal, ok := h.requirePrincipal(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[MaxPriceAgeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.SetMaxPriceAge(ctx, principal, time.Duration(req.MaxPriceAgeSeconds)*time.Second); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetEpochLength handles PUT /vault/config/epoch-length requests.
func (h *Handler) HandleSetEpochLength(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	principal, ok := h.requirePrincipal(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[EpochLengthRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.SetEpochLength(ctx, principal, time.Duration(req.EpochLengthSeconds)*time.Second); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetExitFee handles PUT /vault/config/exit-fee requests.
func (h *Handler) HandleSetExitFee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	principal, ok := h.requirePrincipal(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ExitFeeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.SetExitFee(ctx, principal, req.ExitFeeBps); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetLiquidityRecipient handles PUT /vault/config/liquidity-recipient
// requests.
func (h *Handler) HandleSetLiquidityRecipient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	principal, ok := h.requirePrincipal(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RecipientRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.SetLiquidityRecipient(ctx, principal, req.ParsedRecipient()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePause handles POST /vault/pause requests.
func (h *Handler) HandlePause(w http.ResponseWriter, r *http.Request) {
	h.handleSetPaused(w, r, h.service.Pause)
}

// HandleUnpause handles POST /vault/unpause requests.
func (h *Handler) HandleUnpause(w http.ResponseWriter, r *http.Request) {
	h.handleSetPaused(w, r, h.service.Unpause)
}

func (h *Handler) handleSetPaused(w http.ResponseWriter, r *http.Request, op func(context.Context, domain.Address) error) {
	ctx := r.Context()

	principal, ok := h.requirePrincipal(w, ctx)
	if !ok {
		return
	}
	if err := op(ctx, principal); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMoveAssets handles POST /vault/liquidity/move requests.
func (h *Handler) HandleMoveAssets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	principal, ok := h.requirePrincipal(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AmountRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.MoveAssets(ctx, principal, req.ParsedAmount()); err != nil {
		h.logger.WarnContext(ctx, "liquidity move rejected",
			"request_id", requestID,
			"caller", principal,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "liquidity moved",
		"request_id", requestID,
		"caller", principal,
		"amount", req.ParsedAmount().String(),
	)
	w.WriteHeader(http.StatusNoContent)
}

// HandleFundLiquidity handles POST /vault/liquidity/fund requests.
func (h *Handler) HandleFundLiquidity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	principal, ok := h.requirePrincipal(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AmountRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.FundLiquidity(ctx, principal, req.ParsedAmount()); err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "liquidity funded",
		"request_id", requestID,
		"caller", principal,
		"amount", req.ParsedAmount().String(),
	)
	w.WriteHeader(http.StatusNoContent)
}

// HandleSweepFees handles POST /vault/fees/sweep requests.
func (h *Handler) HandleSweepFees(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	principal, ok := h.requirePrincipal(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RecipientRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	paid, err := h.service.SweepExitFees(ctx, principal, req.ParsedRecipient())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "exit fees swept",
		"request_id", requestID,
		"caller", principal,
		"recipient", req.ParsedRecipient(),
		"paid", paid.String(),
	)
	httputil.WriteJSON(w, http.StatusOK, SweepResponse{Paid: paid.String()})
}

// HandleQueueFeedChange handles POST /vault/feed-change requests.
func (h *Handler) HandleQueueFeedChange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	principal, ok := h.requirePrincipal(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[FeedChangeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.QueueFeedChange(ctx, principal, req.ParsedFeed()); err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "feed change queued",
		"request_id", requestID,
		"caller", principal,
		"feed", req.ParsedFeed(),
	)
	w.WriteHeader(http.StatusNoContent)
}

// HandleExecuteFeedChange handles POST /vault/feed-change/execute requests.
func (h *Handler) HandleExecuteFeedChange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	principal, ok := h.requirePrincipal(w, ctx)
	if !ok {
		return
	}
	active, err := h.service.ExecuteFeedChange(ctx, principal)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "feed change executed",
		"request_id", requestID,
		"caller", principal,
		"feed", active,
	)
	httputil.WriteJSON(w, http.StatusOK, FeedChangeResponse{ActiveFeed: active.String()})
}

// HandleRescue handles POST /vault/rescue requests.
func (h *Handler) HandleRescue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	principal, ok := h.requirePrincipal(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RescueRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.RescueTokens(ctx, principal, req.ParsedDenom(), req.ParsedRecipient(), req.ParsedAmount()); err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "tokens rescued",
		"request_id", requestID,
		"caller", principal,
		"denom", req.ParsedDenom(),
		"recipient", req.ParsedRecipient(),
		"amount", req.ParsedAmount().String(),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requirePrincipal(w http.ResponseWriter, ctx context.Context) (domain.Address, bool) {
	principal := requestcontext.Principal(ctx)
	if principal.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return domain.ZeroAddress, false
	}
	return principal, true
}

func withdrawalIDFromPath(r *http.Request) (uint64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "request id must be a positive integer")
	}
	return id, nil
}

func orCaller(addr, caller domain.Address) domain.Address {
	if addr == "" {
		return caller
	}
	return addr
}
