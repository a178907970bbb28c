package domain

import "github.com/golang-jwt/jwt/v5"

// TokenPair carries a freshly issued access/refresh credential pair.
// ExpiresIn is the access token's remaining lifetime in seconds.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// AccessClaims are the claims asserted by a short-lived access token.
// Verification is stateless: signature + expiry + issuer only.
type AccessClaims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	RoleID   int    `json:"roleId"`
	IsAdmin  bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// RefreshClaims are the claims carried by a long-lived refresh token. The
// token is only redeemable while its digest is present and unexpired in the
// credential store.
type RefreshClaims struct {
	UserID    string `json:"userId"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// RefreshTokenType is the required value of the refresh token's type claim.
const RefreshTokenType = "refresh"
