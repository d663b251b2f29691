package jwttoken

import (
	"caravel/internal/platform/middleware"
	"caravel/pkg/domain"
	dErrors "caravel/pkg/domain-errors"
)

func ToMiddlewareClaims(claims *Claims) (*middleware.JWTClaims, error) {
	address, err := domain.ParseAddress(claims.Subject)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token subject is not a ledger address")
	}
	if address.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token subject is the zero address")
	}
	return &middleware.JWTClaims{Address: address}, nil
}

type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims)
}
