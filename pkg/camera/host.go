package camera

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/teslashibe/go-qrcam/pkg/capture"
	"gocv.io/x/gocv"
)

// Host opens the machine's video devices through OpenCV. Device ids are
// the OpenCV device indices as strings ("0", "1", ...).
type Host struct {
	manager *Manager
	logger  *slog.Logger

	mu   sync.Mutex
	open map[int]*Stream
}

// NewHost creates a host that reads its settings from manager.
func NewHost(manager *Manager, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{
		manager: manager,
		logger:  logger.With("backend", "gocv"),
		open:    make(map[int]*Stream),
	}
}

// EnumerateDevices tries to open each device index below Config.DeviceIndices.
// Devices this host already has open are reported without reopening them.
func (h *Host) EnumerateDevices(ctx context.Context) ([]capture.DeviceDescriptor, error) {
	cfg := h.manager.GetConfig()

	var devices []capture.DeviceDescriptor
	for i := 0; i < cfg.DeviceIndices; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if h.isOpen(i) || canOpen(i) {
			devices = append(devices, capture.DeviceDescriptor{
				DeviceID: strconv.Itoa(i),
				Kind:     capture.KindVideoInput,
				Label:    deviceLabel(i),
			})
		}
	}

	h.logger.Debug("devices enumerated", "count", len(devices), "tried", cfg.DeviceIndices)
	return devices, nil
}

// Acquire opens the requested device and applies the current settings.
// Default constraints open Config.DefaultDevice; OpenCV has no notion of
// facing mode.
func (h *Host) Acquire(ctx context.Context, c capture.Constraints) (capture.Stream, error) {
	if c.Audio {
		return nil, ErrAudioUnsupported
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := h.manager.GetConfig()
	index := cfg.DefaultDevice
	if c.IsExactDevice() {
		var err error
		index, err = parseDeviceIndex(c.Video.DeviceID)
		if err != nil {
			return nil, err
		}
	}

	cam, err := gocv.VideoCaptureDevice(index)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, deviceLabel(index), err)
	}
	if !cam.IsOpened() {
		cam.Close()
		return nil, fmt.Errorf("%w: %s is not open", ErrDeviceUnavailable, deviceLabel(index))
	}

	cam.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	cam.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	cam.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	stream := newStream(h, index, cam)

	h.mu.Lock()
	h.open[index] = stream
	h.mu.Unlock()

	h.logger.Info("camera opened",
		"device", index,
		"width", cfg.Width,
		"height", cfg.Height,
		"framerate", cfg.Framerate,
	)
	return stream, nil
}

func (h *Host) isOpen(index int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.open[index]
	return ok
}

func (h *Host) release(s *Stream) {
	h.mu.Lock()
	if h.open[s.index] == s {
		delete(h.open, s.index)
	}
	h.mu.Unlock()
	h.logger.Info("camera closed", "device", s.index)
}

// canOpen reports whether a device index can be opened.
func canOpen(index int) bool {
	cam, err := gocv.VideoCaptureDevice(index)
	if err != nil {
		return false
	}
	defer cam.Close()
	return cam.IsOpened()
}

func parseDeviceIndex(id string) (int, error) {
	index, err := strconv.Atoi(id)
	if err != nil || index < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDevice, id)
	}
	return index, nil
}

func deviceLabel(index int) string {
	if index == 0 {
		return "Built-in Camera"
	}
	return fmt.Sprintf("Camera %d", index)
}
