package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/ecomserver/internal/services"
	"github.com/example/ecomserver/internal/utils"
)

// PasswordHandler manages forgot-password and change-password endpoints.
type PasswordHandler struct {
	accounts *services.AccountService
}

// NewPasswordHandler constructs a PasswordHandler.
func NewPasswordHandler(accounts *services.AccountService) *PasswordHandler {
	return &PasswordHandler{accounts: accounts}
}

// ForgotPassword emails a fresh OTP to the account owner.
func (h *PasswordHandler) ForgotPassword(c *fiber.Ctx) error {
	var req emailRequest
	if err := utils.ParseBody(c, &req); err != nil {
		return err
	}

	err := h.accounts.ForgotPassword(c.UserContext(), req.Email)
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		return failed(c, fiber.StatusNotFound, "User not exist with this email!")
	case err != nil:
		return internalError(c, "Password", err, fiber.Map{"status": "FAILED", "msg": genericFailure})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"status":  "SUCCESS",
		"message": "OTP Send",
	})
}

type resetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	NewPass     string `json:"newPass" validate:"required,min=6,pwbytes"`
	ConfirmPass string `json:"confirmPass" validate:"omitempty,eqfield=NewPass"`
	OTP         string `json:"otp"`
}

// ResetPassword finishes the forgot-password flow.
func (h *PasswordHandler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := utils.ParseBody(c, &req); err != nil {
		return err
	}

	err := h.accounts.ResetPassword(c.UserContext(), req.Email, req.NewPass, req.OTP)
	switch {
	case errors.Is(err, services.ErrInvalidOTP):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid OTP"})
	case errors.Is(err, services.ErrOTPExpired):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "OTP expired"})
	case err != nil:
		return internalError(c, "Password", err, fiber.Map{"status": "FAILED", "msg": genericFailure})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"status":  "SUCCESS",
		"message": "Password change successfully",
	})
}

type changePasswordRequest struct {
	Name     *string   `json:"name"`
	Phone    *string   `json:"phone"`
	Email    *string   `json:"email" validate:"omitempty,email"`
	Password string    `json:"password" validate:"required,pwbytes"`
	NewPass  string    `json:"newPass" validate:"omitempty,min=6,pwbytes"`
	Images   *[]string `json:"images"`
}

// ChangePassword verifies the current password before applying the new one
// together with any submitted profile fields.
func (h *PasswordHandler) ChangePassword(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req changePasswordRequest
	if err := utils.ParseBody(c, &req); err != nil {
		return err
	}

	user, err := h.accounts.ChangePassword(c.UserContext(), id, req.Password, req.NewPass, services.ProfileInput{
		Name:   req.Name,
		Phone:  req.Phone,
		Email:  req.Email,
		Images: req.Images,
	})
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": true, "msg": "User not found!"})
	case errors.Is(err, services.ErrWrongPassword):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": true, "msg": "current password wrong"})
	case errors.Is(err, services.ErrContactTaken):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": true, "msg": "Email or phone number already in use"})
	case err != nil:
		return internalError(c, "Password", err, fiber.Map{"error": true, "msg": genericFailure})
	}

	return c.JSON(user)
}
