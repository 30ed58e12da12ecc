package utils // package utils provides helper functions for token creation

import (
    "errors" // errors reports invalid arguments
    "time"   // time utilities for generating expirations

    "github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// AccessToken represents a signed JWT access token along with its expiry.
// The Token field contains the JWT string.  Exp stores the expiration
// timestamp.  Access tokens are sent in the Authorization header when
// calling the session endpoints.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT for a user.  The subject (sub)
// is the opaque user id that seat rows record in selected_by and
// reserved_by; name is informational only.  Identity issuance belongs to an
// upstream auth service, so this is used by tests and the devtoken command.
func NewAccessToken(secret, userID, name string, ttl time.Duration) (AccessToken, error) {
    if userID == "" {
        return AccessToken{}, errors.New("token subject is required")
    }
    now := time.Now().UTC()
    exp := now.Add(ttl)
    claims := jwt.MapClaims{
        "sub": userID,
        "exp": exp.Unix(),
        "iat": now.Unix(),
    }
    if name != "" {
        claims["name"] = name
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}
