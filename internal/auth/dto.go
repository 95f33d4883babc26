package auth

import "github.com/google/uuid"

// OTPChallenge is handed back after registration, password reset requests
// and resends. The key identifies the challenge in follow-up calls; the
// code itself travels out of band.
type OTPChallenge struct {
	OTPKey uuid.UUID `json:"otp_key"`
}

// TokenPair is the login and refresh response payload.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}
