package capture

import (
	"context"
	"fmt"
)

// ListDevices asks the host for its devices. Nothing is cached.
func (s *Session) ListDevices(ctx context.Context) ([]DeviceDescriptor, error) {
	if !s.SupportsDeviceEnumeration() {
		return nil, fmt.Errorf("%w: device enumeration", ErrUnsupportedCapability)
	}
	return s.enumerator.EnumerateDevices(ctx)
}

// ListVideoInputDevices returns the video inputs in discovery order.
func (s *Session) ListVideoInputDevices(ctx context.Context) ([]DeviceDescriptor, error) {
	devices, err := s.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	var video []DeviceDescriptor
	for _, d := range devices {
		if d.Kind == KindVideoInput {
			video = append(video, d)
		}
	}
	return video, nil
}

// SwitchToNextDevice acquires the first video input whose id differs from
// the current device. It returns (nil, nil) when the host cannot enumerate
// devices or when no other device exists; the active stream is then left
// alone.
func (s *Session) SwitchToNextDevice(ctx context.Context) (Stream, error) {
	if !s.SupportsDeviceEnumeration() {
		s.logger.Debug("device switch skipped: enumeration unsupported")
		return nil, nil
	}

	devices, err := s.ListVideoInputDevices(ctx)
	if err != nil {
		return nil, err
	}

	current := s.ActiveDeviceID()
	next, ok := nextDevice(devices, current)
	if !ok {
		s.logger.Debug("device switch skipped: no alternate device",
			"current", current,
			"devices", len(devices),
		)
		return nil, nil
	}

	stream, err := s.AcquireStreamByDeviceID(ctx, next.DeviceID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.activeDeviceID = next.DeviceID
	s.mu.Unlock()

	s.logger.Info("switched camera", "from", current, "to", next.DeviceID, "label", next.Label)
	return stream, nil
}

// nextDevice finds the first device with a non-empty id other than current.
func nextDevice(devices []DeviceDescriptor, current string) (DeviceDescriptor, bool) {
	for _, d := range devices {
		if d.DeviceID != "" && d.DeviceID != current {
			return d, true
		}
	}
	return DeviceDescriptor{}, false
}
