package web

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/teslashibe/go-qrcam/pkg/camera"
	"github.com/teslashibe/go-qrcam/pkg/capture"
)

// handleStatus returns the session state
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.status())
}

// handleDevices lists devices. ?kind=videoinput narrows to cameras.
func (s *Server) handleDevices(c *fiber.Ctx) error {
	var (
		devices []capture.DeviceDescriptor
		err     error
	)
	if c.Query("kind") == string(capture.KindVideoInput) {
		devices, err = s.session.ListVideoInputDevices(c.UserContext())
	} else {
		devices, err = s.session.ListDevices(c.UserContext())
	}
	if err != nil {
		return err
	}
	if devices == nil {
		devices = []capture.DeviceDescriptor{}
	}
	return c.JSON(devices)
}

// handleAcquire acquires a stream. An empty body uses the default constraints.
func (s *Server) handleAcquire(c *fiber.Ctx) error {
	constraints := capture.DefaultConstraints()
	if len(c.Body()) > 0 {
		constraints = capture.Constraints{}
		if err := c.BodyParser(&constraints); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid constraints: "+err.Error())
		}
	}

	// Scanning a stream that is about to be replaced would end with "inactive".
	s.StopScan()

	if _, err := s.session.AcquireStream(c.UserContext(), constraints); err != nil {
		s.publishStatus()
		return err
	}
	s.publishStatus()
	return c.Status(fiber.StatusCreated).JSON(s.status())
}

// handleTeardown stops any scan and releases the camera
func (s *Server) handleTeardown(c *fiber.Ctx) error {
	s.StopScan()
	s.session.Teardown()
	s.publishStatus()
	return c.JSON(s.status())
}

// handleSwitch moves to the next camera. A running scan carries on with
// the new camera under a new scan id.
func (s *Server) handleSwitch(c *fiber.Ctx) error {
	resume := s.pauseScan()
	stream, err := s.session.SwitchToNextDevice(c.UserContext())
	resume()
	if err != nil {
		return err
	}
	if stream != nil {
		s.publishStatus()
	}
	return c.JSON(fiber.Map{
		"switched": stream != nil,
		"status":   s.status(),
	})
}

// handlePhoto takes a photo. ?raw=1 returns the image bytes.
func (s *Server) handlePhoto(c *fiber.Ctx) error {
	photo, err := s.session.TakePhoto(c.UserContext())
	if err != nil {
		return err
	}
	if c.QueryBool("raw") {
		c.Set(fiber.HeaderContentType, photo.MIMEType)
		return c.Send(photo.Data)
	}
	return c.JSON(fiber.Map{
		"mime_type": photo.MIMEType,
		"data_uri":  photo.DataURI(),
	})
}

// handleDecode runs one recognition pass on the current frame
func (s *Server) handleDecode(c *fiber.Ctx) error {
	result, err := s.session.DecodeOnce(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// ScanRequest is the body of POST /api/scan
type ScanRequest struct {
	Once bool `json:"once"`
}

// handleStartScan starts a recognition loop; results arrive on /ws/events
func (s *Server) handleStartScan(c *fiber.Ctx) error {
	var req ScanRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid scan request: "+err.Error())
		}
	}

	id, err := s.StartScan(req.Once)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"scan_id": id})
}

// handleStopScan stops the running scan, if any
func (s *Server) handleStopScan(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"stopped": s.StopScan()})
}

// handleGetCameraConfig returns the local camera settings
func (s *Server) handleGetCameraConfig(c *fiber.Ctx) error {
	if s.camera == nil {
		return ErrNoCameraConfig
	}
	return c.JSON(s.camera.GetConfig())
}

// handleUpdateCameraConfig applies a partial update, e.g. {"preset": "scan"}
func (s *Server) handleUpdateCameraConfig(c *fiber.Ctx) error {
	if s.camera == nil {
		return ErrNoCameraConfig
	}

	var params map[string]any
	if err := c.BodyParser(&params); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid settings: "+err.Error())
	}

	// Applying settings may reopen the camera; a running scan is resumed
	// under a new scan id once it is back.
	resume := s.pauseScan()
	err := s.camera.UpdateConfig(params)
	resume()
	s.publishStatus()
	if err != nil {
		if errors.Is(err, capture.ErrAcquisitionFailed) {
			return err
		}
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(s.camera.GetConfig())
}

// handleListPresets returns the named camera presets
func (s *Server) handleListPresets(c *fiber.Ctx) error {
	return c.JSON(camera.Presets())
}

// handleCapabilities describes the local camera backend
func (s *Server) handleCapabilities(c *fiber.Ctx) error {
	if s.camera == nil {
		return ErrNoCameraConfig
	}
	return c.JSON(camera.Capabilities())
}

// handleMetrics reports counters in Prometheus text format
func (s *Server) handleMetrics(c *fiber.Ctx) error {
	active, scanning := 0, 0
	if s.session.IsActive() {
		active = 1
	}
	if s.currentScan() != nil {
		scanning = 1
	}
	c.Set(fiber.HeaderContentType, "text/plain; version=0.0.4")
	return c.SendString(fmt.Sprintf(`# HELP qrcam_stream_active Whether a camera stream is active
# TYPE qrcam_stream_active gauge
qrcam_stream_active %d

# HELP qrcam_scanning Whether a recognition loop is running
# TYPE qrcam_scanning gauge
qrcam_scanning %d

# HELP qrcam_scans_started_total Recognition loops started
# TYPE qrcam_scans_started_total counter
qrcam_scans_started_total %d

# HELP qrcam_matches_total QR codes recognised
# TYPE qrcam_matches_total counter
qrcam_matches_total %d

# HELP qrcam_event_clients Connected event subscribers
# TYPE qrcam_event_clients gauge
qrcam_event_clients %d

# HELP qrcam_event_clients_dropped_total Subscribers dropped for falling behind
# TYPE qrcam_event_clients_dropped_total counter
qrcam_event_clients_dropped_total %d
`, active, scanning, s.scansStarted.Load(), s.matches.Load(), s.events.ClientCount(), s.events.Dropped()))
}
