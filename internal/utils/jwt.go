package utils // package utils provides helpers for token minting, key hashing and logging

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Capabilities carried in the "caps" claim of operator tokens.  Reads and
// schedule edits need CapEdit; deletions and refunds need CapDelete.
const (
	CapEdit   = "edit"
	CapDelete = "delete"
)

// AccessToken is a signed operator JWT along with its expiry.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT for an operator.  subject
// identifies the operator in logs; caps lists the granted capabilities.
func NewAccessToken(secret, subject string, caps []string, ttlMin int) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":  subject,
		"caps": caps,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}
