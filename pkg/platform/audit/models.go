package audit

import (
	"time"

	"caravel/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events that move value or change ledger state.
	// The full share ledger must be reconstructable from these alone, so they
	// require tamper-proof storage and long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers privileged actions: pauses, capability changes,
	// parameter updates, feed swaps. These feed into alerting pipelines.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine high-frequency activity that can be
	// sampled or aggregated with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out. Numeric fields are
// decimal strings in base units to survive any serialization unchanged.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// Actor is the principal that performed the action.
	Actor domain.Address
	// Action is one of the AuditEvent constants.
	Action string
	// Subject identifies what was acted on: a receiver address, a withdrawal
	// request ID, a feed ID.
	Subject string
	Denom   string
	Amount  string
	Shares  string
	// Price is the 1e18-scaled NAV used for the conversion, when one was.
	Price string
	Fee   string
	// Referrer is the originally bound referrer, set on referral events and on
	// attributed deposit flows. Empty when the receiver has no referral.
	Referrer  domain.Address
	Reason    string
	RequestID string
	ClientIP  string
}

type AuditEvent string

const (
	// Price feed events
	EventPriceReported       AuditEvent = "price_reported"
	EventFeedCreated         AuditEvent = "feed_created"
	EventOracleConfigUpdated AuditEvent = "oracle_config_updated"
	EventOraclePaused        AuditEvent = "oracle_paused"
	EventOracleUnpaused      AuditEvent = "oracle_unpaused"

	// Vault flow events
	EventVaultDeposit        AuditEvent = "vault_deposit"
	EventVaultWithdraw       AuditEvent = "vault_withdraw"
	EventWithdrawalQueued    AuditEvent = "withdrawal_queued"
	EventWithdrawalClaimed   AuditEvent = "withdrawal_claimed"
	EventWithdrawalCancelled AuditEvent = "withdrawal_cancelled"
	EventExitFeeAccrued      AuditEvent = "exit_fee_accrued"
	EventExitFeesSwept       AuditEvent = "exit_fees_swept"
	EventLiquidityMoved      AuditEvent = "liquidity_moved"
	EventLiquidityFunded     AuditEvent = "liquidity_funded"
	EventTokensRescued       AuditEvent = "tokens_rescued"

	// Referral events
	EventReferralBound      AuditEvent = "referral_bound"
	EventReferralAttributed AuditEvent = "referral_attributed"

	// Governance events
	EventVaultConfigUpdated AuditEvent = "vault_config_updated"
	EventVaultPaused        AuditEvent = "vault_paused"
	EventVaultUnpaused      AuditEvent = "vault_unpaused"
	EventFeedChangeQueued   AuditEvent = "feed_change_queued"
	EventFeedChangeExecuted AuditEvent = "feed_change_executed"
	EventCapabilityGranted  AuditEvent = "capability_granted"
	EventCapabilityRevoked  AuditEvent = "capability_revoked"
)

// eventCategories maps each audit event to its category.
// Compliance: value movement and ledger state, reconstruction source of truth.
// Security: privileged actions, feeds into alerting.
// Operations: routine activity, can be sampled.
var eventCategories = map[AuditEvent]EventCategory{
	// Compliance events - the ledger history
	EventVaultDeposit:        CategoryCompliance,
	EventVaultWithdraw:       CategoryCompliance,
	EventWithdrawalQueued:    CategoryCompliance,
	EventWithdrawalClaimed:   CategoryCompliance,
	EventWithdrawalCancelled: CategoryCompliance,
	EventExitFeeAccrued:      CategoryCompliance,
	EventExitFeesSwept:       CategoryCompliance,
	EventLiquidityMoved:      CategoryCompliance,
	EventLiquidityFunded:     CategoryCompliance,
	EventTokensRescued:       CategoryCompliance,
	EventReferralBound:       CategoryCompliance,
	EventReferralAttributed:  CategoryCompliance,

	// Security events - privileged state changes
	EventOraclePaused:        CategorySecurity,
	EventOracleUnpaused:      CategorySecurity,
	EventOracleConfigUpdated: CategorySecurity,
	EventVaultPaused:         CategorySecurity,
	EventVaultUnpaused:       CategorySecurity,
	EventVaultConfigUpdated:  CategorySecurity,
	EventFeedChangeQueued:    CategorySecurity,
	EventFeedChangeExecuted:  CategorySecurity,
	EventCapabilityGranted:   CategorySecurity,
	EventCapabilityRevoked:   CategorySecurity,
	EventFeedCreated:         CategorySecurity,

	// Operations events - routine activity
	EventPriceReported: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
