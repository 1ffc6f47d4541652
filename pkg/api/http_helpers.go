package api

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/unowned-ai/nursery/pkg/diary"
	"github.com/unowned-ai/nursery/pkg/records"
)

func apiError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": message})
}

// statusFor maps store and diary error kinds to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, diary.ErrChildNotFound), errors.Is(err, diary.ErrRecordNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, diary.ErrInvalidRecord), errors.Is(err, records.ErrInvalidBackup), errors.Is(err, records.ErrQuery):
		return fiber.StatusBadRequest
	case errors.Is(err, records.ErrWrite):
		return fiber.StatusConflict
	case errors.Is(err, records.ErrConnection), errors.Is(err, records.ErrStorageUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func (handler *Handler) fail(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		handler.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return apiError(c, status, err.Error())
}

func parseChildID(c *fiber.Ctx) (int64, error) {
	raw := strings.TrimSpace(c.Params("id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid child id %q", raw)
	}
	return id, nil
}

// parseDay reads ?day=YYYY-MM-DD in the handler's location, defaulting to today.
func (handler *Handler) parseDay(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return handler.now().In(handler.location), nil
	}
	day, err := time.ParseInLocation(diary.DateLayout, raw, handler.location)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: want YYYY-MM-DD", raw)
	}
	return day, nil
}

func setExportAttachmentHeaders(c *fiber.Ctx, contentType string, filename string) {
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%s", filename))
}
