package capture

import "fmt"

// Facing modes understood by hosts that can tell cameras apart by direction.
const (
	FacingEnvironment = "environment"
	FacingUser        = "user"
)

// VideoConstraints selects the video source.
// DeviceID, when set, wins over FacingMode.
type VideoConstraints struct {
	FacingMode string `json:"facing_mode,omitempty"`
	DeviceID   string `json:"device_id,omitempty"`
}

// Constraints describes how to acquire a stream. It is a plain value:
// every acquisition builds its own copy.
type Constraints struct {
	Audio bool             `json:"audio"`
	Video VideoConstraints `json:"video"`
}

// DefaultConstraints prefers the rear camera and never asks for audio.
func DefaultConstraints() Constraints {
	return Constraints{
		Audio: false,
		Video: VideoConstraints{FacingMode: FacingEnvironment},
	}
}

// ExactDeviceConstraints pins acquisition to one device.
func ExactDeviceConstraints(deviceID string) Constraints {
	c := Constraints{}
	c.Video.DeviceID = deviceID
	return c
}

// IsExactDevice reports whether the constraints name a specific device.
func (c Constraints) IsExactDevice() bool {
	return c.Video.DeviceID != ""
}

// String implements fmt.Stringer for log lines and error messages.
func (c Constraints) String() string {
	if c.IsExactDevice() {
		return fmt.Sprintf("device=%s", c.Video.DeviceID)
	}
	if c.Video.FacingMode != "" {
		return fmt.Sprintf("facing=%s", c.Video.FacingMode)
	}
	return "any"
}
