// Package camera provides the local camera backend: runtime-configurable
// capture settings and a gocv host that enumerates and opens the
// machine's video devices for a capture.Session.
package camera

import "fmt"

// Config holds local camera capture settings.
// These can be modified via the camera API at runtime; changes apply to
// the next acquisition.
type Config struct {
	// === Resolution ===
	Width     int `json:"width"`     // Requested frame width in pixels
	Height    int `json:"height"`    // Requested frame height in pixels
	Framerate int `json:"framerate"` // Requested FPS, also paces recognition
	Quality   int `json:"quality"`   // JPEG quality 1-100 for photos

	// === Devices ===
	// DefaultDevice is the device index opened for default constraints.
	// Most hosts list the built-in (front) camera first, so rear-preferring
	// setups point this at the external camera.
	DefaultDevice int `json:"default_device"`

	// DeviceIndices is how many device indices enumeration tries.
	DeviceIndices int `json:"device_indices"`

	// PhotoFormat is "png" or "jpeg".
	PhotoFormat string `json:"photo_format"`
}

// Limits for validation.
const (
	MaxWidth         = 4096
	MaxHeight        = 2160
	MaxFramerate     = 120
	MaxDeviceIndices = 16
)

// DefaultConfig returns 720p at 30 fps, probing the first five devices.
func DefaultConfig() Config {
	return Config{
		Width:     1280,
		Height:    720,
		Framerate: 30,
		Quality:   90,

		DefaultDevice: 0,
		DeviceIndices: 5,

		PhotoFormat: "png",
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Width < 160 || c.Width > MaxWidth {
		errors = append(errors, fmt.Sprintf("width must be between 160 and %d", MaxWidth))
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errors = append(errors, fmt.Sprintf("height must be between 120 and %d", MaxHeight))
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, fmt.Sprintf("framerate must be between 1 and %d", MaxFramerate))
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}
	if c.DeviceIndices < 1 || c.DeviceIndices > MaxDeviceIndices {
		errors = append(errors, fmt.Sprintf("device_indices must be between 1 and %d", MaxDeviceIndices))
	}
	if c.DefaultDevice < 0 || c.DefaultDevice >= c.DeviceIndices {
		errors = append(errors, "default_device must be below device_indices")
	}

	validFormats := map[string]bool{"png": true, "jpeg": true}
	if !validFormats[c.PhotoFormat] {
		errors = append(errors, "photo_format must be png or jpeg")
	}

	return errors
}

// Capabilities describes what the local backend supports.
func Capabilities() map[string]interface{} {
	return map[string]interface{}{
		"backend":       "gocv",
		"max_width":     MaxWidth,
		"max_height":    MaxHeight,
		"max_framerate": MaxFramerate,
		"photo_formats": []string{"png", "jpeg"},
		"presets":       PresetNames(),
	}
}
