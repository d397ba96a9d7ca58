package oidc

import (
	"errors"
)

var (
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrNilParameter      = errors.New("nil parameter")
	ErrInvalidCACert     = errors.New("invalid CA certificate")
	ErrIDGeneratorFailed = errors.New("id generation failed")
	ErrExpiredRequest    = errors.New("request is expired")
	ErrResponseState     = errors.New("response state and request state are not equal")
	ErrMissingIDToken    = errors.New("id_token is missing")
	ErrInvalidNonce      = errors.New("invalid nonce")
	ErrInvalidAudience   = errors.New("invalid audience")
	ErrUserInfoFailed    = errors.New("user info request failed")
)
