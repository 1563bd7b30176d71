package services

import (
	"strings"

	"github.com/google/logger"

	apperrors "easybet/internal/errors"
)

// AccessGuard checks caller identity before operations are dispatched.
// Identity itself is established outside the core; the guard only compares.
type AccessGuard struct {
	admin string
}

// NewAccessGuard creates a guard for the given administrator address.
// An empty admin makes every privileged call fail.
func NewAccessGuard(admin string) *AccessGuard {
	return &AccessGuard{admin: NormalizeAddress(admin)}
}

// Admin returns the administrator address.
func (g *AccessGuard) Admin() string {
	return g.admin
}

// RequireCaller rejects anonymous calls.
func (g *AccessGuard) RequireCaller(caller string) error {
	if caller == "" {
		return apperrors.New(apperrors.CodeUnauthorized, "caller identity is required")
	}
	return nil
}

// RequireAdmin rejects calls not made by the administrator.
func (g *AccessGuard) RequireAdmin(caller, op string) error {
	if err := g.RequireCaller(caller); err != nil {
		return err
	}
	if g.admin == "" || caller != g.admin {
		logger.Warningf("rejected %s from non-administrator %s", op, caller)
		return apperrors.Newf(apperrors.CodeUnauthorized, "%s is restricted to the administrator", op)
	}
	return nil
}

// NormalizeAddress canonicalizes an address for comparison.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
