package utils

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// RespondWithError sends a JSON error response.
func RespondWithError(c *fiber.Ctx, statusCode int, message string) error {
	return c.Status(statusCode).JSON(fiber.Map{
		"status":  "error",
		"message": message,
	})
}

// RespondWithJSON sends a JSON success response.
func RespondWithJSON(c *fiber.Ctx, statusCode int, data interface{}) error {
	return c.Status(statusCode).JSON(fiber.Map{
		"status": "success",
		"data":   data,
	})
}

// FormatValidationErrors turns validator/v10 errors into per-field messages
// keyed by the struct field, so clients can attach them to form inputs.
func FormatValidationErrors(err error) map[string]string {
	fieldErrors := make(map[string]string)
	if err == nil {
		return fieldErrors
	}
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		fieldErrors["_"] = err.Error()
		return fieldErrors
	}
	for _, fe := range validationErrs {
		msg := fmt.Sprintf("failed on the '%s' rule", fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("%s (%s)", msg, fe.Param())
		}
		fieldErrors[fe.Field()] = msg
	}
	return fieldErrors
}

// SanitizeInput trims surrounding whitespace from user-submitted text.
func SanitizeInput(input string) string {
	return strings.TrimSpace(input)
}
