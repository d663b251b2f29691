package handler

import (
	"strings"

	sdkmath "cosmossdk.io/math"

	"caravel/pkg/domain"
	dErrors "caravel/pkg/domain-errors"
)

// DepositRequest is the HTTP request body for POST /vault/deposit. Supplying
// min_shares or referrer selects the checked variant.
type DepositRequest struct {
	Receiver  string `json:"receiver"`
	Assets    string `json:"assets"`
	MinShares string `json:"min_shares,omitempty"`
	Referrer  string `json:"referrer,omitempty"`

	parsedReceiver  domain.Address
	parsedAssets    sdkmath.Int
	parsedMinShares sdkmath.Int
	parsedReferrer  domain.Address
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *DepositRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if err := parseRequiredAddress(&r.parsedReceiver, r.Receiver, "receiver"); err != nil {
		return err
	}
	if err := parseRequiredAmount(&r.parsedAssets, r.Assets, "assets"); err != nil {
		return err
	}
	if err := parseOptionalAmount(&r.parsedMinShares, r.MinShares, "min_shares"); err != nil {
		return err
	}
	return parseOptionalAddress(&r.parsedReferrer, r.Referrer, "referrer")
}

func (r *DepositRequest) ParsedReceiver() domain.Address { return r.parsedReceiver }
func (r *DepositRequest) ParsedAssets() sdkmath.Int      { return r.parsedAssets }
func (r *DepositRequest) ParsedMinShares() sdkmath.Int   { return r.parsedMinShares }
func (r *DepositRequest) ParsedReferrer() domain.Address { return r.parsedReferrer }

// Checked reports whether the caller asked for the checked variant.
func (r *DepositRequest) Checked() bool {
	return strings.TrimSpace(r.MinShares) != "" || strings.TrimSpace(r.Referrer) != ""
}

// MintRequest is the HTTP request body for POST /vault/mint. Supplying
// max_assets or referrer selects the checked variant.
type MintRequest struct {
	Receiver  string `json:"receiver"`
	Shares    string `json:"shares"`
	MaxAssets string `json:"max_assets,omitempty"`
	Referrer  string `json:"referrer,omitempty"`

	parsedReceiver  domain.Address
	parsedShares    sdkmath.Int
	parsedMaxAssets sdkmath.Int
	parsedReferrer  domain.Address
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *MintRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if err := parseRequiredAddress(&r.parsedReceiver, r.Receiver, "receiver"); err != nil {
		return err
	}
	if err := parseRequiredAmount(&r.parsedShares, r.Shares, "shares"); err != nil {
		return err
	}
	if err := parseOptionalAmount(&r.parsedMaxAssets, r.MaxAssets, "max_assets"); err != nil {
		return err
	}
	return parseOptionalAddress(&r.parsedReferrer, r.Referrer, "referrer")
}

func (r *MintRequest) ParsedReceiver() domain.Address { return r.parsedReceiver }
func (r *MintRequest) ParsedShares() sdkmath.Int      { return r.parsedShares }
func (r *MintRequest) ParsedMaxAssets() sdkmath.Int   { return r.parsedMaxAssets }
func (r *MintRequest) ParsedReferrer() domain.Address { return r.parsedReferrer }

// Checked reports whether the caller asked for the checked variant.
func (r *MintRequest) Checked() bool {
	return strings.TrimSpace(r.MaxAssets) != "" || strings.TrimSpace(r.Referrer) != ""
}

// WithdrawRequest is the HTTP request body for POST /vault/withdraw. Owner
// and receiver default to the caller. Supplying max_shares selects the
// checked variant.
type WithdrawRequest struct {
	Owner     string `json:"owner,omitempty"`
	Receiver  string `json:"receiver,omitempty"`
	Assets    string `json:"assets"`
	MaxShares string `json:"max_shares,omitempty"`

	parsedOwner     domain.Address
	parsedReceiver  domain.Address
	parsedAssets    sdkmath.Int
	parsedMaxShares sdkmath.Int
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *WithdrawRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if err := parseOptionalAddress(&r.parsedOwner, r.Owner, "owner"); err != nil {
		return err
	}
	if err := parseOptionalAddress(&r.parsedReceiver, r.Receiver, "receiver"); err != nil {
		return err
	}
	if err := parseRequiredAmount(&r.parsedAssets, r.Assets, "assets"); err != nil {
		return err
	}
	return parseOptionalAmount(&r.parsedMaxShares, r.MaxShares, "max_shares")
}

func (r *WithdrawRequest) ParsedOwner() domain.Address    { return r.parsedOwner }
func (r *WithdrawRequest) ParsedReceiver() domain.Address { return r.parsedReceiver }
func (r *WithdrawRequest) ParsedAssets() sdkmath.Int      { return r.parsedAssets }
func (r *WithdrawRequest) ParsedMaxShares() sdkmath.Int   { return r.parsedMaxShares }

// Checked reports whether the caller asked for the checked variant.
func (r *WithdrawRequest) Checked() bool {
	return strings.TrimSpace(r.MaxShares) != ""
}

// RedeemRequest is the HTTP request body for POST /vault/redeem. Owner and
// receiver default to the caller. Supplying min_assets selects the checked
// variant.
type RedeemRequest struct {
	Owner     string `json:"owner,omitempty"`
	Receiver  string `json:"receiver,omitempty"`
	Shares    string `json:"shares"`
	MinAssets string `json:"min_assets,omitempty"`

	parsedOwner     domain.Address
	parsedReceiver  domain.Address
	parsedShares    sdkmath.Int
	parsedMinAssets sdkmath.Int
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *RedeemRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if err := parseOptionalAddress(&r.parsedOwner, r.Owner, "owner"); err != nil {
		return err
	}
	if err := parseOptionalAddress(&r.parsedReceiver, r.Receiver, "receiver"); err != nil {
		return err
	}
	if err := parseRequiredAmount(&r.parsedShares, r.Shares, "shares"); err != nil {
		return err
	}
	return parseOptionalAmount(&r.parsedMinAssets, r.MinAssets, "min_assets")
}

func (r *RedeemRequest) ParsedOwner() domain.Address    { return r.parsedOwner }
func (r *RedeemRequest) ParsedReceiver() domain.Address { return r.parsedReceiver }
func (r *RedeemRequest) ParsedShares() sdkmath.Int      { return r.parsedShares }
func (r *RedeemRequest) ParsedMinAssets() sdkmath.Int   { return r.parsedMinAssets }

// Checked reports whether the caller asked for the checked variant.
func (r *RedeemRequest) Checked() bool {
	return strings.TrimSpace(r.MinAssets) != ""
}

// QueueRequest is the HTTP request body for POST /vault/withdrawals.
// Receiver defaults to the caller.
type QueueRequest struct {
	Receiver string `json:"receiver,omitempty"`
	Shares   string `json:"shares"`

	parsedReceiver domain.Address
	parsedShares   sdkmath.Int
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *QueueRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if err := parseOptionalAddress(&r.parsedReceiver, r.Receiver, "receiver"); err != nil {
		return err
	}
	return parseRequiredAmount(&r.parsedShares, r.Shares, "shares")
}

func (r *QueueRequest) ParsedReceiver() domain.Address { return r.parsedReceiver }
func (r *QueueRequest) ParsedShares() sdkmath.Int      { return r.parsedShares }

// MaxPriceAgeRequest is the HTTP request body for
// PUT /vault/config/max-price-age.
type MaxPriceAgeRequest struct {
	MaxPriceAgeSeconds int64 `json:"max_price_age_seconds"`
}

// Validate validates the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *MaxPriceAgeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.MaxPriceAgeSeconds <= 0 {
		return dErrors.New(dErrors.CodeValidation, "max_price_age_seconds must be positive")
	}
	return nil
}

// EpochLengthRequest is the HTTP request body for
// PUT /vault/config/epoch-length.
type EpochLengthRequest struct {
	EpochLengthSeconds int64 `json:"epoch_length_seconds"`
}

// Validate validates the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *EpochLengthRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.EpochLengthSeconds <= 0 {
		return dErrors.New(dErrors.CodeValidation, "epoch_length_seconds must be positive")
	}
	return nil
}

// ExitFeeRequest is the HTTP request body for PUT /vault/config/exit-fee.
// A zero rate is legal and disables the fee.
type ExitFeeRequest struct {
	ExitFeeBps uint32 `json:"exit_fee_bps"`
}

// Validate validates the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *ExitFeeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return nil
}

// RecipientRequest is the HTTP request body for
// PUT /vault/config/liquidity-recipient and POST /vault/fees/sweep.
type RecipientRequest struct {
	Recipient string `json:"recipient"`

	parsedRecipient domain.Address
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *RecipientRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return parseRequiredAddress(&r.parsedRecipient, r.Recipient, "recipient")
}

func (r *RecipientRequest) ParsedRecipient() domain.Address { return r.parsedRecipient }

// AmountRequest is the HTTP request body for POST /vault/liquidity/move and
// POST /vault/liquidity/fund.
type AmountRequest struct {
	Amount string `json:"amount"`

	parsedAmount sdkmath.Int
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *AmountRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return parseRequiredAmount(&r.parsedAmount, r.Amount, "amount")
}

func (r *AmountRequest) ParsedAmount() sdkmath.Int { return r.parsedAmount }

// FeedChangeRequest is the HTTP request body for POST /vault/feed-change.
type FeedChangeRequest struct {
	Feed string `json:"feed"`

	parsedFeed domain.FeedID
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *FeedChangeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Feed = strings.TrimSpace(r.Feed)
	if r.Feed == "" {
		return dErrors.New(dErrors.CodeValidation, "feed is required")
	}
	feedID, err := domain.ParseFeedID(r.Feed)
	if err != nil {
		return err
	}
	r.parsedFeed = feedID
	return nil
}

func (r *FeedChangeRequest) ParsedFeed() domain.FeedID { return r.parsedFeed }

// RescueRequest is the HTTP request body for POST /vault/rescue.
type RescueRequest struct {
	Denom     string `json:"denom"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`

	parsedDenom     domain.Denom
	parsedRecipient domain.Address
	parsedAmount    sdkmath.Int
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *RescueRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	denom, err := domain.ParseDenom(r.Denom)
	if err != nil {
		return err
	}
	r.parsedDenom = denom
	if err := parseRequiredAddress(&r.parsedRecipient, r.Recipient, "recipient"); err != nil {
		return err
	}
	return parseRequiredAmount(&r.parsedAmount, r.Amount, "amount")
}

func (r *RescueRequest) ParsedDenom() domain.Denom       { return r.parsedDenom }
func (r *RescueRequest) ParsedRecipient() domain.Address { return r.parsedRecipient }
func (r *RescueRequest) ParsedAmount() sdkmath.Int       { return r.parsedAmount }

func parseRequiredAddress(dst *domain.Address, raw, field string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	addr, err := domain.ParseAddress(raw)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, field+" must be a 0x-prefixed address")
	}
	*dst = addr
	return nil
}

func parseOptionalAddress(dst *domain.Address, raw, field string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*dst = ""
		return nil
	}
	addr, err := domain.ParseAddress(raw)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, field+" must be a 0x-prefixed address")
	}
	*dst = addr
	return nil
}

func parseRequiredAmount(dst *sdkmath.Int, raw, field string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	amount, ok := sdkmath.NewIntFromString(raw)
	if !ok {
		return dErrors.New(dErrors.CodeValidation, field+" must be an integer string")
	}
	*dst = amount
	return nil
}

func parseOptionalAmount(dst *sdkmath.Int, raw, field string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*dst = sdkmath.Int{}
		return nil
	}
	return parseRequiredAmount(dst, raw, field)
}
