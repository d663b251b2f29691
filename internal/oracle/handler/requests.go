package handler

import (
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"

	"caravel/internal/oracle/models"
	"caravel/pkg/domain"
	dErrors "caravel/pkg/domain-errors"
)

// ReportRequest is the HTTP request body for POST /nav/report.
type ReportRequest struct {
	Feed       string `json:"feed,omitempty"`
	Price      string `json:"price"`
	ReportedAt string `json:"reported_at"`

	// Parsed values (populated by Validate)
	parsedFeed       domain.FeedID
	parsedPrice      sdkmath.Int
	parsedReportedAt time.Time
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *ReportRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	if err := parseOptionalFeed(&r.parsedFeed, r.Feed); err != nil {
		return err
	}

	r.Price = strings.TrimSpace(r.Price)
	if r.Price == "" {
		return dErrors.New(dErrors.CodeValidation, "price is required")
	}
	price, ok := sdkmath.NewIntFromString(r.Price)
	if !ok {
		return dErrors.New(dErrors.CodeValidation, "price must be an integer string")
	}
	r.parsedPrice = price

	r.ReportedAt = strings.TrimSpace(r.ReportedAt)
	if r.ReportedAt == "" {
		return dErrors.New(dErrors.CodeValidation, "reported_at is required")
	}
	reportedAt, err := time.Parse(time.RFC3339, r.ReportedAt)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "reported_at must be RFC 3339")
	}
	r.parsedReportedAt = reportedAt

	return nil
}

func (r *ReportRequest) ParsedFeed() domain.FeedID   { return r.parsedFeed }
func (r *ReportRequest) ParsedPrice() sdkmath.Int    { return r.parsedPrice }
func (r *ReportRequest) ParsedReportedAt() time.Time { return r.parsedReportedAt }

// ConfigRequest is the HTTP request body for PUT /nav/config and the
// config portion of POST /nav/feeds.
type ConfigRequest struct {
	Feed                string `json:"feed,omitempty"`
	MaxStalenessSeconds int64  `json:"max_staleness_seconds"`
	MaxMoveBps          uint32 `json:"max_move_bps"`

	parsedFeed domain.FeedID
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *ConfigRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if err := parseOptionalFeed(&r.parsedFeed, r.Feed); err != nil {
		return err
	}
	if r.MaxStalenessSeconds <= 0 {
		return dErrors.New(dErrors.CodeValidation, "max_staleness_seconds must be positive")
	}
	return nil
}

func (r *ConfigRequest) ParsedFeed() domain.FeedID { return r.parsedFeed }

// ParsedConfig returns the validated feed configuration.
func (r *ConfigRequest) ParsedConfig() models.Config {
	return models.Config{
		MaxStaleness: time.Duration(r.MaxStalenessSeconds) * time.Second,
		MaxMoveBps:   r.MaxMoveBps,
	}
}

// CreateFeedRequest is the HTTP request body for POST /nav/feeds.
type CreateFeedRequest struct {
	Feed                string `json:"feed"`
	MaxStalenessSeconds int64  `json:"max_staleness_seconds"`
	MaxMoveBps          uint32 `json:"max_move_bps"`

	parsedFeed domain.FeedID
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CreateFeedRequest) Validate() error {
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
	if r.MaxStalenessSeconds <= 0 {
		return dErrors.New(dErrors.CodeValidation, "max_staleness_seconds must be positive")
	}
	return nil
}

func (r *CreateFeedRequest) ParsedFeed() domain.FeedID { return r.parsedFeed }

// ParsedConfig returns the validated feed configuration.
func (r *CreateFeedRequest) ParsedConfig() models.Config {
	return models.Config{
		MaxStaleness: time.Duration(r.MaxStalenessSeconds) * time.Second,
		MaxMoveBps:   r.MaxMoveBps,
	}
}

func parseOptionalFeed(dst *domain.FeedID, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*dst = ""
		return nil
	}
	feedID, err := domain.ParseFeedID(raw)
	if err != nil {
		return err
	}
	*dst = feedID
	return nil
}
