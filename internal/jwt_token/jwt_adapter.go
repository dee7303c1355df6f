package jwttoken

import (
	"idstatus/internal/platform/middleware"
)

// MiddlewareValidator exposes a JWTService as a middleware.JWTValidator.
type MiddlewareValidator struct {
	service *JWTService
}

func NewMiddlewareValidator(service *JWTService) *MiddlewareValidator {
	return &MiddlewareValidator{service: service}
}

func (v *MiddlewareValidator) ValidateToken(raw string) (*middleware.JWTClaims, error) {
	claims, err := v.service.ValidateToken(raw)
	if err != nil {
		return nil, err
	}
	return &middleware.JWTClaims{Subject: claims.Subject, JTI: claims.ID}, nil
}
