package web

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/teslashibe/go-qrcam/pkg/camera"
	"github.com/teslashibe/go-qrcam/pkg/capture"
)

var (
	// ErrScanRunning is returned when a scan is already in progress.
	ErrScanRunning = errors.New("web: scan already running")

	// ErrNoCameraConfig is returned when the backend has no local camera settings.
	ErrNoCameraConfig = errors.New("web: camera settings not available for this backend")
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, capture.ErrUnsupportedCapability):
		return fiber.StatusNotImplemented
	case errors.Is(err, capture.ErrStreamNotActive), errors.Is(err, ErrScanRunning):
		return fiber.StatusConflict
	case errors.Is(err, camera.ErrInvalidDevice):
		return fiber.StatusBadRequest
	case errors.Is(err, capture.ErrAcquisitionFailed):
		return fiber.StatusBadGateway
	case errors.Is(err, ErrNoCameraConfig):
		return fiber.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

// handleError renders every handler error as {"error": "..."}.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "status", code, "error", err)
	} else {
		s.logger.Debug("request rejected", "method", c.Method(), "path", c.Path(), "status", code, "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
