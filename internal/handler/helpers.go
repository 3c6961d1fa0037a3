package handler

import (
	"errors"
	"mime/multipart"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/opencourse/lms-api/internal/middleware"
	"github.com/opencourse/lms-api/internal/service"
)

func parseUintParam(c *fiber.Ctx, key string) (uint, error) {
	parsed, err := strconv.ParseUint(c.Params(key), 10, 64)
	if err != nil || parsed == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+key)
	}
	return uint(parsed), nil
}

func actorFromCtx(c *fiber.Ctx) service.ActivityActor {
	return service.ActivityActor{
		ID:   middleware.UserIDFromCtx(c),
		Role: middleware.UserRoleFromCtx(c),
	}
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// formFile extracts an optional file part; a missing part is not an error.
func formFile(c *fiber.Ctx, key string) *multipart.FileHeader {
	file, err := c.FormFile(key)
	if err != nil {
		return nil
	}
	return file
}
