package handler

import (
	"time"

	sdkmath "cosmossdk.io/math"

	"caravel/internal/vault/models"
	"caravel/internal/vault/service"
)

// FlowResponse is the JSON view of a settled flow.
type FlowResponse struct {
	Assets string `json:"assets"`
	Shares string `json:"shares"`
	Fee    string `json:"fee"`
	Price  string `json:"price"`
}

// FromFlow converts a flow result into its response shape.
func FromFlow(result *service.FlowResult) FlowResponse {
	return FlowResponse{
		Assets: result.Assets.String(),
		Shares: result.Shares.String(),
		Fee:    result.Fee.String(),
		Price:  result.Price.String(),
	}
}

// WithdrawalResponse is the JSON view of a withdrawal request.
type WithdrawalResponse struct {
	ID           uint64    `json:"id"`
	Owner        string    `json:"owner"`
	Receiver     string    `json:"receiver"`
	Shares       string    `json:"shares"`
	RequestedAt  time.Time `json:"requested_at"`
	ClaimableAt  time.Time `json:"claimable_at"`
	Closed       bool      `json:"closed"`
	ClosedReason string    `json:"closed_reason,omitempty"`
}

// FromWithdrawal converts a withdrawal request into its response shape.
func FromWithdrawal(req *models.WithdrawalRequest) WithdrawalResponse {
	return WithdrawalResponse{
		ID:           req.ID,
		Owner:        req.Owner.String(),
		Receiver:     req.Receiver.String(),
		Shares:       req.Shares.String(),
		RequestedAt:  req.RequestedAt,
		ClaimableAt:  req.ClaimableAt,
		Closed:       req.Closed,
		ClosedReason: req.ClosedReason,
	}
}

// WithdrawalListResponse is the JSON view of an owner's requests, newest
// first.
type WithdrawalListResponse struct {
	Owner    string               `json:"owner"`
	Requests []WithdrawalResponse `json:"requests"`
}

// FromWithdrawals converts a request list into its response shape.
func FromWithdrawals(owner string, reqs []*models.WithdrawalRequest) WithdrawalListResponse {
	out := WithdrawalListResponse{
		Owner:    owner,
		Requests: make([]WithdrawalResponse, 0, len(reqs)),
	}
	for _, req := range reqs {
		out.Requests = append(out.Requests, FromWithdrawal(req))
	}
	return out
}

// ConfigResponse is the JSON view of the vault configuration.
type ConfigResponse struct {
	MaxPriceAgeSeconds int64  `json:"max_price_age_seconds"`
	EpochLengthSeconds int64  `json:"epoch_length_seconds"`
	ExitFeeBps         uint32 `json:"exit_fee_bps"`
	LiquidityRecipient string `json:"liquidity_recipient"`
}

// PendingFeedChangeResponse is the JSON view of a queued feed swap.
type PendingFeedChangeResponse struct {
	Feed       string    `json:"feed"`
	QueuedAt   time.Time `json:"queued_at"`
	ExecutesAt time.Time `json:"executes_at"`
}

// VaultResponse is the JSON view returned by GET /vault. TotalAssets is
// omitted while the feed cannot validly price the supply (paused or stale);
// the ledger facts are always present.
type VaultResponse struct {
	ActiveFeed        string                     `json:"active_feed"`
	Paused            bool                       `json:"paused"`
	TotalAssets       string                     `json:"total_assets,omitempty"`
	TotalShares       string                     `json:"total_shares"`
	Buffer            string                     `json:"buffer"`
	AccruedFees       string                     `json:"accrued_fees"`
	GrossDeposits     string                     `json:"gross_deposits"`
	GrossWithdrawals  string                     `json:"gross_withdrawals"`
	Config            ConfigResponse             `json:"config"`
	PendingFeedChange *PendingFeedChangeResponse `json:"pending_feed_change,omitempty"`
	UpdatedAt         time.Time                  `json:"updated_at"`
}

// FromState assembles the vault overview. totalAssets may be nil when the
// feed cannot price right now.
func FromState(state *models.State, totalAssets *sdkmath.Int, totalShares, buffer sdkmath.Int) VaultResponse {
	resp := VaultResponse{
		ActiveFeed:       state.ActiveFeed.String(),
		Paused:           state.Paused,
		TotalShares:      totalShares.String(),
		Buffer:           buffer.String(),
		AccruedFees:      state.AccruedFees.String(),
		GrossDeposits:    state.Flows.GrossDeposits.String(),
		GrossWithdrawals: state.Flows.GrossWithdrawals.String(),
		Config: ConfigResponse{
			MaxPriceAgeSeconds: int64(state.Config.MaxPriceAge / time.Second),
			EpochLengthSeconds: int64(state.Config.EpochLength / time.Second),
			ExitFeeBps:         state.Config.ExitFeeBps,
			LiquidityRecipient: state.Config.LiquidityRecipient.String(),
		},
		UpdatedAt: state.UpdatedAt,
	}
	if totalAssets != nil {
		resp.TotalAssets = totalAssets.String()
	}
	if !state.Pending.IsZero() {
		resp.PendingFeedChange = &PendingFeedChangeResponse{
			Feed:       state.Pending.Feed.String(),
			QueuedAt:   state.Pending.QueuedAt,
			ExecutesAt: state.Pending.QueuedAt.Add(models.FeedChangeDelay),
		}
	}
	return resp
}

// ConvertResponse is the JSON view returned by GET /vault/convert.
type ConvertResponse struct {
	Assets string `json:"assets"`
	Shares string `json:"shares"`
}

// SweepResponse is the JSON view returned by POST /vault/fees/sweep.
type SweepResponse struct {
	Paid string `json:"paid"`
}

// FeedChangeResponse is the JSON view returned by the feed-change endpoints.
type FeedChangeResponse struct {
	ActiveFeed string `json:"active_feed"`
}
