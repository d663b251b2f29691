package handler

import (
	"caravel/pkg/domain"
)

// CapabilityRequest is the payload for grant and revoke.
type CapabilityRequest struct {
	Principal  string `json:"principal"`
	Capability string `json:"capability"`

	parsedPrincipal  domain.Address
	parsedCapability domain.Capability
}

// Validate parses and validates the request fields.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CapabilityRequest) Validate() error {
	principal, err := domain.ParseAddress(r.Principal)
	if err != nil {
		return err
	}
	capability, err := domain.ParseCapability(r.Capability)
	if err != nil {
		return err
	}
	r.parsedPrincipal = principal
	r.parsedCapability = capability
	return nil
}

func (r *CapabilityRequest) ParsedPrincipal() domain.Address     { return r.parsedPrincipal }
func (r *CapabilityRequest) ParsedCapability() domain.Capability { return r.parsedCapability }
