package capture

import (
	"context"
	"errors"
	"testing"
)

func TestListDevices_Unsupported(t *testing.T) {
	host := NewMockHost()
	s, err := NewSession(Config{Acquirer: host, Decoder: &MockDecoder{}, Encoder: &MockEncoder{}}, nil)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	if _, err := s.ListDevices(context.Background()); !errors.Is(err, ErrUnsupportedCapability) {
		t.Errorf("Expected ErrUnsupportedCapability, got %v", err)
	}
	if _, err := s.ListVideoInputDevices(context.Background()); !errors.Is(err, ErrUnsupportedCapability) {
		t.Errorf("Expected ErrUnsupportedCapability, got %v", err)
	}
}

func TestListVideoInputDevices_FiltersInOrder(t *testing.T) {
	host := NewMockHost(
		DeviceDescriptor{DeviceID: "mic", Kind: KindAudioInput, Label: "Mic"},
		VideoDevice("front", "Front"),
		DeviceDescriptor{DeviceID: "spk", Kind: KindOther, Label: "Speaker"},
		VideoDevice("back", "Back"),
	)
	s := newTestSession(t, host, nil, nil)

	devices, err := s.ListVideoInputDevices(context.Background())
	if err != nil {
		t.Fatalf("ListVideoInputDevices failed: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("Expected 2 video devices, got %d", len(devices))
	}
	if devices[0].DeviceID != "front" || devices[1].DeviceID != "back" {
		t.Errorf("Unexpected order: %+v", devices)
	}
}

func TestListDevices_NotCached(t *testing.T) {
	host := NewMockHost(VideoDevice("a", "A"))
	s := newTestSession(t, host, nil, nil)
	ctx := context.Background()

	if _, err := s.ListDevices(ctx); err != nil {
		t.Fatalf("ListDevices failed: %v", err)
	}
	host.mu.Lock()
	host.Devices = append(host.Devices, VideoDevice("b", "B"))
	host.mu.Unlock()

	devices, err := s.ListDevices(ctx)
	if err != nil {
		t.Fatalf("ListDevices failed: %v", err)
	}
	if len(devices) != 2 {
		t.Errorf("Expected fresh enumeration with 2 devices, got %d", len(devices))
	}
	if host.Enumerations() != 2 {
		t.Errorf("Expected 2 enumerations, got %d", host.Enumerations())
	}
}

func TestSwitchToNextDevice_SingleDevice(t *testing.T) {
	host := NewMockHost(VideoDevice("only", "Only"))
	s := newTestSession(t, host, nil, nil)
	ctx := context.Background()

	if _, err := s.SwitchToNextDevice(ctx); err != nil {
		t.Fatalf("first switch failed: %v", err)
	}
	if s.ActiveDeviceID() != "only" {
		t.Fatalf("ActiveDeviceID = %q, want only", s.ActiveDeviceID())
	}
	before := s.ActiveStream()

	stream, err := s.SwitchToNextDevice(ctx)
	if err != nil {
		t.Fatalf("second switch failed: %v", err)
	}
	if stream != nil {
		t.Error("switch with no alternate should return nil stream")
	}
	if s.ActiveDeviceID() != "only" {
		t.Errorf("ActiveDeviceID changed to %q", s.ActiveDeviceID())
	}
	if s.ActiveStream() != before || !s.IsActive() {
		t.Error("active stream should be left untouched")
	}
	if n := len(host.Requests()); n != 1 {
		t.Errorf("Expected 1 acquisition, got %d", n)
	}
}

func TestSwitchToNextDevice_Toggles(t *testing.T) {
	host := NewMockHost(VideoDevice("A", "Front"), VideoDevice("B", "Back"))
	s := newTestSession(t, host, nil, nil)
	ctx := context.Background()

	if _, err := s.SwitchToNextDevice(ctx); err != nil {
		t.Fatalf("switch failed: %v", err)
	}
	if s.ActiveDeviceID() != "A" {
		t.Fatalf("ActiveDeviceID = %q, want A", s.ActiveDeviceID())
	}

	stream, err := s.SwitchToNextDevice(ctx)
	if err != nil {
		t.Fatalf("switch failed: %v", err)
	}
	if stream == nil {
		t.Fatal("switch should return the new stream")
	}
	if s.ActiveDeviceID() != "B" {
		t.Errorf("ActiveDeviceID = %q, want B", s.ActiveDeviceID())
	}
	reqs := host.Requests()
	if got := reqs[len(reqs)-1].Video.DeviceID; got != "B" {
		t.Errorf("last acquisition for %q, want B", got)
	}
	if host.LiveStreams() != 1 {
		t.Errorf("Expected 1 live stream, got %d", host.LiveStreams())
	}

	if _, err := s.SwitchToNextDevice(ctx); err != nil {
		t.Fatalf("switch failed: %v", err)
	}
	if s.ActiveDeviceID() != "A" {
		t.Errorf("ActiveDeviceID = %q, want A after toggling back", s.ActiveDeviceID())
	}
}

func TestSwitchToNextDevice_SkipsEmptyIDs(t *testing.T) {
	host := NewMockHost(
		VideoDevice("", "Unlabelled"),
		DeviceDescriptor{DeviceID: "mic", Kind: KindAudioInput},
		VideoDevice("cam", "Camera"),
	)
	s := newTestSession(t, host, nil, nil)

	if _, err := s.SwitchToNextDevice(context.Background()); err != nil {
		t.Fatalf("switch failed: %v", err)
	}
	if s.ActiveDeviceID() != "cam" {
		t.Errorf("ActiveDeviceID = %q, want cam", s.ActiveDeviceID())
	}
}

func TestSwitchToNextDevice_TriesOnlyFirstCandidate(t *testing.T) {
	host := NewMockHost(VideoDevice("A", "A"), VideoDevice("B", "B"), VideoDevice("C", "C"))
	s := newTestSession(t, host, nil, nil)
	host.AcquireErr = errors.New("device busy")

	_, err := s.SwitchToNextDevice(context.Background())
	if !errors.Is(err, ErrAcquisitionFailed) {
		t.Errorf("Expected ErrAcquisitionFailed, got %v", err)
	}
	if n := len(host.Requests()); n != 1 {
		t.Errorf("Expected exactly one attempt, got %d", n)
	}
	if s.ActiveDeviceID() != "" {
		t.Errorf("ActiveDeviceID should stay empty after failure, got %q", s.ActiveDeviceID())
	}
}

func TestSwitchToNextDevice_NoEnumeration(t *testing.T) {
	host := NewMockHost(VideoDevice("A", "A"))
	s, err := NewSession(Config{Acquirer: host, Decoder: &MockDecoder{}, Encoder: &MockEncoder{}}, nil)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	stream, err := s.SwitchToNextDevice(context.Background())
	if err != nil || stream != nil {
		t.Errorf("Expected silent no-op, got stream=%v err=%v", stream, err)
	}
	if len(host.Requests()) != 0 {
		t.Error("no acquisition should happen")
	}
}

func TestNextDevice(t *testing.T) {
	devices := []DeviceDescriptor{VideoDevice("A", ""), VideoDevice("B", "")}

	if d, ok := nextDevice(devices, "A"); !ok || d.DeviceID != "B" {
		t.Errorf("nextDevice(A) = %v, %v", d, ok)
	}
	if d, ok := nextDevice(devices, ""); !ok || d.DeviceID != "A" {
		t.Errorf("nextDevice(\"\") = %v, %v", d, ok)
	}
	if _, ok := nextDevice(devices[:1], "A"); ok {
		t.Error("nextDevice should find nothing with a single current device")
	}
	if _, ok := nextDevice(nil, ""); ok {
		t.Error("nextDevice should find nothing in an empty list")
	}
}
