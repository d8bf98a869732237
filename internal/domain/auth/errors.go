package auth

import "errors"

var (
	ErrExchangeFailed  = errors.New("oauth code exchange failed")
	ErrUserInfo        = errors.New("google userinfo unavailable")
	ErrMissingIdentity = errors.New("google account has no id or email")
)
