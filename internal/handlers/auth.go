package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/ecomserver/internal/services"
	"github.com/example/ecomserver/internal/utils"
)

const notVerifiedMessage = "Your account is not active yet please verify your account first or Sign Up with a new user"

// AuthHandler bundles the signup, verification and sign-in endpoints.
type AuthHandler struct {
	accounts *services.AccountService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(accounts *services.AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

// failed renders the {status: "FAILED", msg} body used by the signup and OTP endpoints.
func failed(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"status": "FAILED",
		"msg":    msg,
	})
}

type signupRequest struct {
	Name     string `json:"name" validate:"required"`
	Phone    string `json:"phone" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,pwbytes"`
	IsAdmin  bool   `json:"isAdmin"`
}

// Signup registers an unverified account and emails its OTP.
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req signupRequest
	if err := utils.ParseBody(c, &req); err != nil {
		return err
	}

	result, err := h.accounts.Signup(c.UserContext(), services.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
		IsAdmin:  req.IsAdmin,
	})
	switch {
	case errors.Is(err, services.ErrEmailTaken):
		return failed(c, fiber.StatusConflict, "User already exist with this email!")
	case errors.Is(err, services.ErrPhoneTaken):
		return failed(c, fiber.StatusConflict, "User already exist with this phone number!")
	case errors.Is(err, services.ErrMailDelivery):
		return failed(c, fiber.StatusBadGateway, "Verification email could not be sent, please request a new OTP")
	case err != nil:
		return internalError(c, "Account", err, fiber.Map{"status": "FAILED", "msg": genericFailure})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "User registered successfully! Please verify your email.",
		"token":   result.Token,
	})
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResendOTP issues a new OTP for an existing account.
func (h *AuthHandler) ResendOTP(c *fiber.Ctx) error {
	var req emailRequest
	if err := utils.ParseBody(c, &req); err != nil {
		return err
	}

	user, err := h.accounts.ResendOTP(c.UserContext(), req.Email)
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		return failed(c, fiber.StatusNotFound, "User not exist with this email!")
	case err != nil:
		return internalError(c, "Account", err, fiber.Map{"status": "FAILED", "msg": genericFailure})
	}

	return c.JSON(fiber.Map{
		"success":        true,
		"message":        "OTP SEND",
		"existingUserId": user.ID,
	})
}

// EmailVerify regenerates the OTP of the account in the path and returns a token.
func (h *AuthHandler) EmailVerify(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req emailRequest
	if err := utils.ParseBody(c, &req); err != nil {
		return err
	}

	token, err := h.accounts.RequestEmailVerification(c.UserContext(), id, req.Email)
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		return failed(c, fiber.StatusNotFound, "User not exist with this email!")
	case err != nil:
		return internalError(c, "Account", err, fiber.Map{"status": "FAILED", "msg": genericFailure})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "OTP SEND",
		"token":   token,
	})
}

type verifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required"`
}

// VerifyEmail checks the submitted OTP and activates the account.
func (h *AuthHandler) VerifyEmail(c *fiber.Ctx) error {
	var req verifyEmailRequest
	if err := utils.ParseBody(c, &req); err != nil {
		return err
	}

	err := h.accounts.VerifyEmail(c.UserContext(), req.Email, req.OTP)
	if err != nil {
		message := ""
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			message = "User not found"
		case errors.Is(err, services.ErrInvalidOTP):
			message = "Invalid OTP"
		case errors.Is(err, services.ErrOTPExpired):
			message = "OTP expired"
		default:
			return internalError(c, "Account", err, fiber.Map{"success": false, "message": "Error in verifying email"})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": message})
	}

	return c.JSON(fiber.Map{"success": true, "message": "OTP verified successfully"})
}

type signinRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,pwbytes"`
}

// SignIn authenticates a verified account.
func (h *AuthHandler) SignIn(c *fiber.Ctx) error {
	var req signinRequest
	if err := utils.ParseBody(c, &req); err != nil {
		return err
	}

	user, token, err := h.accounts.SignIn(c.UserContext(), req.Email, req.Password)
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": true, "msg": "User not found!"})
	case errors.Is(err, services.ErrNotVerified):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":    true,
			"isVerify": false,
			"msg":      notVerifiedMessage,
		})
	case errors.Is(err, services.ErrInvalidCredentials):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": true, "msg": "Invalid credentials"})
	case err != nil:
		return internalError(c, "Account", err, fiber.Map{"error": true, "msg": genericFailure})
	}

	return c.JSON(fiber.Map{
		"user":  user,
		"token": token,
		"msg":   "User Authenticated",
	})
}

type googleAuthRequest struct {
	Name     string   `json:"name"`
	Phone    string   `json:"phone"`
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"pwbytes"`
	Images   []string `json:"images"`
	IsAdmin  bool     `json:"isAdmin"`
}

// AuthWithGoogle signs in, creating a verified account on first use.
func (h *AuthHandler) AuthWithGoogle(c *fiber.Ctx) error {
	var req googleAuthRequest
	if err := utils.ParseBody(c, &req); err != nil {
		return err
	}

	user, token, err := h.accounts.AuthWithGoogle(c.UserContext(), services.GoogleInput{
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		Password: req.Password,
		Images:   req.Images,
		IsAdmin:  req.IsAdmin,
	})
	switch {
	case errors.Is(err, services.ErrContactTaken):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": true, "msg": "User already exist with this phone number!"})
	case err != nil:
		return internalError(c, "Account", err, fiber.Map{"error": true, "msg": genericFailure})
	}

	return c.JSON(fiber.Map{
		"user":  user,
		"token": token,
		"msg":   "User Login Successfully!",
	})
}
