package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/example/ecomserver/internal/models"
	"github.com/example/ecomserver/internal/repository"
	"github.com/example/ecomserver/internal/utils"
)

const otpMailSubject = "Verify Email"

// AccountConfig tunes the verification and recovery flow.
type AccountConfig struct {
	JWTSecret string
	// TokenTTL of zero issues tokens without an expiry.
	TokenTTL time.Duration
	OTPTTL   time.Duration
	// IssueTokenOnMailFailure keeps signup returning a token when the OTP
	// email could not be sent.
	IssueTokenOnMailFailure bool
	// RequireResetOTP makes the forgot-password finalization check the OTP.
	RequireResetOTP bool
}

// AccountService implements signup, OTP verification, sign-in and password recovery.
type AccountService struct {
	users  repository.UserRepository
	mailer Mailer
	cfg    AccountConfig

	now         func() time.Time
	generateOTP func() (string, error)
}

// NewAccountService constructs an AccountService.
func NewAccountService(users repository.UserRepository, mailer Mailer, cfg AccountConfig) *AccountService {
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = 10 * time.Minute
	}
	return &AccountService{
		users:       users,
		mailer:      mailer,
		cfg:         cfg,
		now:         time.Now,
		generateOTP: GenerateOTP,
	}
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignupInput is a new account registration.
type SignupInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
	IsAdmin  bool
}

// SignupResult is the outcome of a registration.
type SignupResult struct {
	User     *models.User
	Token    string
	MailSent bool
}

// Signup registers an unverified user and emails a fresh OTP. The user stays
// persisted even when the email cannot be delivered.
func (s *AccountService) Signup(ctx context.Context, in SignupInput) (*SignupResult, error) {
	email := NormalizeEmail(in.Email)
	phone := strings.TrimSpace(in.Phone)

	if err := s.ensureAvailable(ctx, email, phone); err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	code, err := s.generateOTP()
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}
	expires := s.now().Add(s.cfg.OTPTTL)

	user := &models.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		Phone:        phone,
		PasswordHash: hash,
		IsAdmin:      in.IsAdmin,
		IsVerified:   false,
		OTP:          &code,
		OTPExpires:   &expires,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, s.duplicateCause(ctx, email)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	sent := s.sendOTP(ctx, email, code)
	if !sent && !s.cfg.IssueTokenOnMailFailure {
		return nil, ErrMailDelivery
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}

	return &SignupResult{User: user, Token: token, MailSent: sent}, nil
}

// ensureAvailable checks email and phone independently; email wins when both are taken.
func (s *AccountService) ensureAvailable(ctx context.Context, email, phone string) error {
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("lookup email: %w", err)
	}

	if phone == "" {
		return nil
	}
	if _, err := s.users.FindByPhone(ctx, phone); err == nil {
		return ErrPhoneTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("lookup phone: %w", err)
	}
	return nil
}

// duplicateCause resolves a unique violation that raced past ensureAvailable.
func (s *AccountService) duplicateCause(ctx context.Context, email string) error {
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return ErrEmailTaken
	}
	return ErrPhoneTaken
}

// ResendOTP regenerates and emails the OTP of the account registered under email.
// Delivery is best effort: the new code is stored even if sending fails.
func (s *AccountService) ResendOTP(ctx context.Context, email string) (*models.User, error) {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if _, err := s.refreshOTP(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// RequestEmailVerification regenerates the OTP for the user with the given id,
// emails it and returns a bearer token for the account.
func (s *AccountService) RequestEmailVerification(ctx context.Context, id uuid.UUID, email string) (string, error) {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user.ID != id {
		return "", ErrUserNotFound
	}
	if _, err := s.refreshOTP(ctx, user); err != nil {
		return "", err
	}
	return s.issueToken(user)
}

// VerifyEmail consumes the user's OTP and marks the account verified.
// A wrong code is reported before an expired one.
func (s *AccountService) VerifyEmail(ctx context.Context, email, otp string) error {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}
	return s.consumeOTP(ctx, user, otp)
}

func (s *AccountService) consumeOTP(ctx context.Context, user *models.User, otp string) error {
	now := s.now()
	if user.OTP == nil || subtle.ConstantTimeCompare([]byte(*user.OTP), []byte(otp)) != 1 {
		return ErrInvalidOTP
	}
	if !user.HasPendingOTP(now) {
		return ErrOTPExpired
	}

	swapped, err := s.users.ConsumeOTP(ctx, user.ID, otp, now)
	if err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}
	if !swapped {
		// a concurrent resend or verification changed the code first
		return ErrInvalidOTP
	}
	return nil
}

// SignIn authenticates a verified user. Unverified accounts are rejected
// before the password is compared.
func (s *AccountService) SignIn(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if !user.IsVerified {
		return nil, "", ErrNotVerified
	}
	if !utils.CheckPassword(user.PasswordHash, password) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// ForgotPassword stores and emails a fresh OTP for the account under email.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}
	_, err = s.refreshOTP(ctx, user)
	return err
}

// ResetPassword replaces the password of the account under email.
//
// Unless RequireResetOTP is set the OTP is not checked, so anyone who knows the
// address can reset it. Unknown addresses succeed silently.
func (s *AccountService) ResetPassword(ctx context.Context, email, newPassword, otp string) error {
	user, err := s.findByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if s.cfg.RequireResetOTP {
		if err := s.consumeOTP(ctx, user, otp); err != nil {
			return err
		}
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.SetPassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return nil
}

// ProfileInput is a partial profile update; nil fields are left unchanged.
type ProfileInput struct {
	Name     *string
	Phone    *string
	Email    *string
	Password *string
	Images   *[]string
}

// ChangePassword checks the current password and then applies newPassword and
// any profile fields. Nothing is written when the current password is wrong.
// An empty newPassword keeps the existing hash.
func (s *AccountService) ChangePassword(ctx context.Context, id uuid.UUID, currentPassword, newPassword string, profile ProfileInput) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !utils.CheckPassword(user.PasswordHash, currentPassword) {
		return nil, ErrWrongPassword
	}

	profile.Password = nil
	if newPassword != "" {
		profile.Password = &newPassword
	}
	return s.UpdateProfile(ctx, id, profile)
}

// UpdateProfile applies a partial update, hashing the password when present.
func (s *AccountService) UpdateProfile(ctx context.Context, id uuid.UUID, in ProfileInput) (*models.User, error) {
	patch := repository.UserPatch{
		Name:   in.Name,
		Phone:  in.Phone,
		Images: in.Images,
	}
	if in.Email != nil {
		email := NormalizeEmail(*in.Email)
		patch.Email = &email
	}
	if in.Password != nil && *in.Password != "" {
		hash, err := utils.HashPassword(*in.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		patch.PasswordHash = &hash
	}

	user, err := s.users.Update(ctx, id, patch)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrUserNotFound
	case errors.Is(err, repository.ErrDuplicate):
		return nil, ErrContactTaken
	case err != nil:
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// GoogleInput is the profile handed over by the Google sign-in client.
type GoogleInput struct {
	Name     string
	Phone    string
	Email    string
	Password string
	Images   []string
	IsAdmin  bool
}

// AuthWithGoogle signs in the account under email, creating a verified one on
// first use.
func (s *AccountService) AuthWithGoogle(ctx context.Context, in GoogleInput) (*models.User, string, error) {
	user, err := s.findByEmail(ctx, in.Email)
	if errors.Is(err, ErrUserNotFound) {
		user, err = s.createGoogleUser(ctx, in)
	}
	if err != nil {
		return nil, "", err
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *AccountService) createGoogleUser(ctx context.Context, in GoogleInput) (*models.User, error) {
	user := &models.User{
		Name:       strings.TrimSpace(in.Name),
		Email:      NormalizeEmail(in.Email),
		Phone:      strings.TrimSpace(in.Phone),
		Images:     pq.StringArray(in.Images),
		IsAdmin:    in.IsAdmin,
		IsVerified: true,
	}
	if in.Password != "" {
		hash, err := utils.HashPassword(in.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = hash
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrContactTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *AccountService) findByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// refreshOTP stores a new code on the user and emails it. It reports whether
// the email went out.
func (s *AccountService) refreshOTP(ctx context.Context, user *models.User) (bool, error) {
	code, err := s.generateOTP()
	if err != nil {
		return false, fmt.Errorf("generate otp: %w", err)
	}
	expires := s.now().Add(s.cfg.OTPTTL)

	if err := s.users.SetOTP(ctx, user.ID, code, expires); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrUserNotFound
		}
		return false, fmt.Errorf("store otp: %w", err)
	}
	user.OTP = &code
	user.OTPExpires = &expires

	return s.sendOTP(ctx, user.Email, code), nil
}

func (s *AccountService) sendOTP(ctx context.Context, to, code string) bool {
	id, err := s.mailer.Send(ctx, Mail{
		To:      to,
		Subject: otpMailSubject,
		HTML:    "Your OTP is " + code,
	})
	if err != nil {
		log.Printf("[Account] OTP email to %s failed: %v", to, err)
		return false
	}
	log.Printf("[Account] OTP email sent to %s (%s)", to, id)
	return true
}

func (s *AccountService) issueToken(user *models.User) (string, error) {
	token, err := utils.GenerateToken(s.cfg.JWTSecret, user.ID, user.Email, s.cfg.TokenTTL)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}
