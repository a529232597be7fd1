package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/ecomserver/internal/repository"
	"github.com/example/ecomserver/internal/services"
	"github.com/example/ecomserver/internal/utils"
)

// UserHandler manages the user listing and profile endpoints.
type UserHandler struct {
	users    repository.UserRepository
	accounts *services.AccountService
}

// NewUserHandler constructs UserHandler.
func NewUserHandler(users repository.UserRepository, accounts *services.AccountService) *UserHandler {
	return &UserHandler{users: users, accounts: accounts}
}

// ListUsers returns every registered user.
func (h *UserHandler) ListUsers(c *fiber.Ctx) error {
	users, err := h.users.List(c.UserContext())
	if err != nil {
		return internalError(c, "User", err, fiber.Map{"success": false})
	}
	return c.JSON(users)
}

// GetUser returns a single user.
func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	user, err := h.users.FindByID(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "The user with the given ID was not found.",
			})
		}
		return internalError(c, "User", err, fiber.Map{"success": false})
	}
	return c.JSON(user)
}

// CountUsers returns the number of registered users.
func (h *UserHandler) CountUsers(c *fiber.Ctx) error {
	count, err := h.users.Count(c.UserContext())
	if err != nil {
		return internalError(c, "User", err, fiber.Map{"success": false})
	}
	return c.JSON(fiber.Map{"userCount": count})
}

type updateUserRequest struct {
	Name     *string   `json:"name"`
	Phone    *string   `json:"phone"`
	Email    *string   `json:"email" validate:"omitempty,email"`
	Password *string   `json:"password" validate:"omitempty,min=6,pwbytes"`
	Images   *[]string `json:"images"`
}

// UpdateUser applies a partial profile update.
func (h *UserHandler) UpdateUser(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req updateUserRequest
	if err := utils.ParseBody(c, &req); err != nil {
		return err
	}

	user, err := h.accounts.UpdateProfile(c.UserContext(), id, services.ProfileInput{
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		Password: req.Password,
		Images:   req.Images,
	})
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "the user cannot be Updated!",
		})
	case errors.Is(err, services.ErrContactTaken):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "Email or phone number already in use",
		})
	case err != nil:
		return internalError(c, "User", err, fiber.Map{"success": false})
	}
	return c.JSON(user)
}

// DeleteUser removes a user.
func (h *UserHandler) DeleteUser(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	if err := h.users.Delete(c.UserContext(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"message": "user not found!",
			})
		}
		return internalError(c, "User", err, fiber.Map{"success": false})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "the user is deleted!",
	})
}
