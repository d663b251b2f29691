package referral

import (
	"caravel/internal/referral/service"
	"caravel/internal/referral/store"
)

// Service enforces write-once referral binding.
type Service = service.Service

// Store persists bindings.
type Store = store.Store

// Attribution is the referral outcome a flow carries into its audit events.
type Attribution = service.Attribution

// NewService constructs the registry service.
func NewService(bindings Store, recorder service.AuditRecorder) *Service {
	return service.New(bindings, recorder)
}
