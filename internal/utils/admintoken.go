package utils // package utils provides token helpers shared across handlers

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AdminToken represents a signed HS256 session token for the operator
// dashboard along with its expiry.  Admin sessions are short-lived; the
// static operator credential is only presented once, at login.
type AdminToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewAdminToken builds and signs an HS256 JWT carrying the admin role.
func NewAdminToken(secret string, ttlMin int) (AdminToken, error) {
	exp := time.Now().UTC().Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"role": "admin",
		"exp":  exp.Unix(),
		"iat":  time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AdminToken{}, err
	}
	return AdminToken{Token: signed, Exp: exp}, nil
}
