package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
)

const genericFailure = "something went wrong"

// ErrorHandler renders errors that escape handlers. *fiber.Error keeps its
// status and message; anything else is logged and hidden behind a 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := genericFailure

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	} else {
		log.Printf("[HTTP] %s %s: %v", c.Method(), c.Path(), err)
	}

	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}

// internalError logs err with its component prefix and returns the given body with a 500.
func internalError(c *fiber.Ctx, component string, err error, body fiber.Map) error {
	log.Printf("[%s] %s %s: %v", component, c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(body)
}
