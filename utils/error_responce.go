package utils

import "github.com/gofiber/fiber/v2"

// ErrorResponse is a struct for error response
type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// WriteError renders err with the status its kind maps to. Internal details
// never reach the body.
func WriteError(c *fiber.Ctx, err error) error {
	return c.Status(HTTPStatus(err)).JSON(ErrorResponse{
		Message: PublicMessage(err),
		Error:   string(KindOf(err)),
	})
}
