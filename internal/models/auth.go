package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin    UserRole = "ADMIN"
	RoleHslStaff UserRole = "HSL_STAFF"
	RoleOperator UserRole = "OPERATOR"
)

// JWTClaims carries the authenticated actor. OperatorIDs scope operator
// users to the transit operators they act for. TestUser marks an
// end-to-end test account; the override only takes effect when the
// deployment enables it (never in production).
type JWTClaims struct {
	UserID      string   `json:"uid"`
	Email       string   `json:"email"`
	Role        UserRole `json:"role"`
	OperatorIDs []int64  `json:"operatorIds,omitempty"`
	TestUser    bool     `json:"testUser,omitempty"`
	jwt.RegisteredClaims
}

// CanActForOperator reports whether the actor's operator scope covers the
// given operator. Admins and HSL staff are not operator-scoped.
func (c *JWTClaims) CanActForOperator(operatorID int64) bool {
	if c == nil {
		return false
	}
	if c.Role == RoleAdmin || c.Role == RoleHslStaff {
		return true
	}
	for _, id := range c.OperatorIDs {
		if id == operatorID {
			return true
		}
	}
	return false
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
