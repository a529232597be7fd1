package services

import "errors"

// Account flow failures. Handlers map each one to its own response.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("user already exist with this email")
	ErrPhoneTaken         = errors.New("user already exist with this phone number")
	ErrContactTaken       = errors.New("email or phone already in use")
	ErrInvalidOTP         = errors.New("invalid otp")
	ErrOTPExpired         = errors.New("otp expired")
	ErrNotVerified        = errors.New("account not verified")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWrongPassword      = errors.New("current password wrong")
	ErrMailDelivery       = errors.New("verification email could not be sent")
)
