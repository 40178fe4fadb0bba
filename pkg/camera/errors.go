package camera

import "errors"

var (
	// ErrInvalidDevice is returned for device ids that are not an index.
	ErrInvalidDevice = errors.New("camera: invalid device id")

	// ErrDeviceUnavailable is returned when a device cannot be opened.
	ErrDeviceUnavailable = errors.New("camera: device unavailable")

	// ErrAudioUnsupported is returned for constraints that ask for audio.
	ErrAudioUnsupported = errors.New("camera: audio capture not supported")

	// ErrNoFrame is returned when the device yields no picture.
	ErrNoFrame = errors.New("camera: no frame available")

	// ErrSinkClosed is returned when drawing from a closed sink.
	ErrSinkClosed = errors.New("camera: sink closed")
)
