package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/teslashibe/go-qrcam/pkg/camera"
	"github.com/teslashibe/go-qrcam/pkg/capture"
	"github.com/teslashibe/go-qrcam/pkg/protocol"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	server  *Server
	host    *capture.MockHost
	decoder *capture.MockDecoder
	clock   *capture.ManualClock
	manager *camera.Manager
}

func newTestEnv(t *testing.T, devices ...capture.DeviceDescriptor) *testEnv {
	t.Helper()
	return newTestEnvWithEncoder(t, func(*camera.Manager) capture.Encoder {
		return &capture.MockEncoder{}
	}, devices...)
}

// newTestEnvWithEncoder builds the session encoder from the server's
// camera settings.
func newTestEnvWithEncoder(t *testing.T, encoder func(*camera.Manager) capture.Encoder, devices ...capture.DeviceDescriptor) *testEnv {
	t.Helper()
	manager, err := camera.NewManager(camera.DefaultConfig())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	env := &testEnv{
		host:    capture.NewMockHost(devices...),
		decoder: &capture.MockDecoder{},
		clock:   capture.NewManualClock(),
		manager: manager,
	}

	session, err := capture.NewSession(capture.Config{
		Enumerator: env.host,
		Acquirer:   env.host,
		Clock:      env.clock,
		Decoder:    env.decoder,
		Encoder:    encoder(manager),
	}, testLogger())
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	env.server = NewServer(session, manager, testLogger())
	t.Cleanup(func() { env.server.Shutdown() })
	return env
}

// listen serves the app on a loopback port and returns its address.
func (e *testEnv) listen(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go e.server.Serve(ln)
	return ln.Addr().String()
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.server.App().Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return v
}

func (e *testEnv) acquire(t *testing.T) {
	t.Helper()
	if code, body := e.do(t, http.MethodPost, "/api/stream", nil); code != http.StatusCreated {
		t.Fatalf("acquire: status %d: %s", code, body)
	}
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/status", nil)
	if code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	st := decode[protocol.StatusData](t, body)
	if st.Active || st.Scanning || !st.Capture || !st.Enumeration {
		t.Errorf("unexpected status: %+v", st)
	}
}

func TestDevices(t *testing.T) {
	env := newTestEnv(t,
		capture.VideoDevice("a", "Front"),
		capture.DeviceDescriptor{DeviceID: "mic", Kind: capture.KindAudioInput, Label: "Mic"},
		capture.VideoDevice("b", "Rear"),
	)

	_, body := env.do(t, http.MethodGet, "/api/devices", nil)
	if all := decode[[]capture.DeviceDescriptor](t, body); len(all) != 3 {
		t.Errorf("got %d devices, want 3", len(all))
	}

	_, body = env.do(t, http.MethodGet, "/api/devices?kind=videoinput", nil)
	video := decode[[]capture.DeviceDescriptor](t, body)
	if len(video) != 2 || video[0].DeviceID != "a" || video[1].DeviceID != "b" {
		t.Errorf("unexpected video devices: %+v", video)
	}
}

func TestDevices_Unsupported(t *testing.T) {
	session, err := capture.NewSession(capture.Config{
		Decoder: &capture.MockDecoder{},
		Encoder: &capture.MockEncoder{},
	}, testLogger())
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	s := NewServer(session, nil, testLogger())
	defer s.Shutdown()

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/api/devices", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", resp.StatusCode)
	}

	resp, _ = s.App().Test(httptest.NewRequest(http.MethodPost, "/api/stream", nil))
	if resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("acquire without capture: status = %d, want 501", resp.StatusCode)
	}
}

func TestAcquireAndTeardown(t *testing.T) {
	env := newTestEnv(t, capture.VideoDevice("a", "Front"))

	env.acquire(t)
	if reqs := env.host.Requests(); len(reqs) != 1 || reqs[0] != capture.DefaultConstraints() {
		t.Errorf("default acquire sent %+v", reqs)
	}

	code, body := env.do(t, http.MethodPost, "/api/stream", capture.ExactDeviceConstraints("a"))
	if code != http.StatusCreated {
		t.Fatalf("exact acquire: status %d: %s", code, body)
	}
	if reqs := env.host.Requests(); reqs[1].Video.DeviceID != "a" {
		t.Errorf("exact acquire sent %+v", reqs[1])
	}
	if env.host.LiveStreams() != 1 {
		t.Errorf("LiveStreams = %d, want 1", env.host.LiveStreams())
	}

	code, body = env.do(t, http.MethodDelete, "/api/stream", nil)
	if code != http.StatusOK {
		t.Fatalf("teardown: status %d", code)
	}
	if st := decode[protocol.StatusData](t, body); st.Active {
		t.Error("stream should be inactive after teardown")
	}
	if env.host.LiveStreams() != 0 {
		t.Errorf("LiveStreams = %d, want 0", env.host.LiveStreams())
	}
}

func TestAcquire_Errors(t *testing.T) {
	env := newTestEnv(t)

	env.host.AcquireErr = errors.New("permission denied")
	code, body := env.do(t, http.MethodPost, "/api/stream", nil)
	if code != http.StatusBadGateway {
		t.Errorf("host failure: status = %d, want 502", code)
	}
	if resp := decode[map[string]string](t, body); resp["error"] == "" {
		t.Error("error body missing")
	}

	req := httptest.NewRequest(http.MethodPost, "/api/stream", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := env.server.App().Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad body: status = %d, want 400", resp.StatusCode)
	}
}

func TestSwitch(t *testing.T) {
	env := newTestEnv(t, capture.VideoDevice("a", "Front"), capture.VideoDevice("b", "Rear"))

	code, body := env.do(t, http.MethodPost, "/api/stream/switch", nil)
	if code != http.StatusOK {
		t.Fatalf("switch: status %d: %s", code, body)
	}
	resp := decode[struct {
		Switched bool                `json:"switched"`
		Status   protocol.StatusData `json:"status"`
	}](t, body)
	if !resp.Switched || resp.Status.DeviceID != "a" || !resp.Status.Active {
		t.Errorf("first switch: %+v", resp)
	}

	_, body = env.do(t, http.MethodPost, "/api/stream/switch", nil)
	resp = decode[struct {
		Switched bool                `json:"switched"`
		Status   protocol.StatusData `json:"status"`
	}](t, body)
	if resp.Status.DeviceID != "b" {
		t.Errorf("second switch landed on %q, want b", resp.Status.DeviceID)
	}
}

func TestSwitch_SingleDevice(t *testing.T) {
	env := newTestEnv(t, capture.VideoDevice("a", "Front"))

	env.do(t, http.MethodPost, "/api/stream/switch", nil)
	_, body := env.do(t, http.MethodPost, "/api/stream/switch", nil)
	resp := decode[map[string]any](t, body)
	if resp["switched"] != false {
		t.Errorf("switch with one device should be a no-op: %s", body)
	}
}

func TestPhoto(t *testing.T) {
	env := newTestEnv(t)

	if code, _ := env.do(t, http.MethodGet, "/api/photo", nil); code != http.StatusConflict {
		t.Errorf("photo without stream: status = %d, want 409", code)
	}

	env.acquire(t)

	code, body := env.do(t, http.MethodGet, "/api/photo", nil)
	if code != http.StatusOK {
		t.Fatalf("photo: status %d: %s", code, body)
	}
	photo := decode[map[string]string](t, body)
	if photo["data_uri"] != "data:image/x-mock;base64,NjR4NDg=" {
		t.Errorf("data_uri = %q", photo["data_uri"])
	}

	req := httptest.NewRequest(http.MethodGet, "/api/photo?raw=true", nil)
	resp, err := env.server.App().Test(req, -1)
	if err != nil {
		t.Fatalf("raw photo: %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	if resp.Header.Get("Content-Type") != "image/x-mock" || string(raw) != "64x48" {
		t.Errorf("raw photo: type=%q body=%q", resp.Header.Get("Content-Type"), raw)
	}
}

func TestPhoto_FollowsCameraConfig(t *testing.T) {
	env := newTestEnvWithEncoder(t, (*camera.Manager).Encoder)
	env.acquire(t)

	photoType := func() string {
		t.Helper()
		code, body := env.do(t, http.MethodGet, "/api/photo", nil)
		if code != http.StatusOK {
			t.Fatalf("photo: status %d: %s", code, body)
		}
		return decode[map[string]string](t, body)["mime_type"]
	}

	if got := photoType(); got != "image/png" {
		t.Errorf("default photo type = %q, want image/png", got)
	}

	if code, body := env.do(t, http.MethodPut, "/api/camera/config", map[string]any{"photo_format": "jpeg"}); code != http.StatusOK {
		t.Fatalf("put config: status %d: %s", code, body)
	}
	if got := photoType(); got != "image/jpeg" {
		t.Errorf("photo type after update = %q, want image/jpeg", got)
	}
}

func TestDecode(t *testing.T) {
	env := newTestEnv(t)
	env.decoder.Func = func(call int) (string, bool, error) {
		return "hello", true, nil
	}

	if code, _ := env.do(t, http.MethodPost, "/api/decode", nil); code != http.StatusConflict {
		t.Errorf("decode without stream: status = %d, want 409", code)
	}

	env.acquire(t)
	code, body := env.do(t, http.MethodPost, "/api/decode", nil)
	if code != http.StatusOK {
		t.Fatalf("decode: status %d: %s", code, body)
	}
	result := decode[capture.RecognitionResult](t, body)
	if !result.Found || result.Payload != "hello" {
		t.Errorf("unexpected result: %+v", result)
	}
	if opts := env.decoder.Options(); opts[0].Inversion != capture.DontInvert {
		t.Errorf("decode used inversion %q", opts[0].Inversion)
	}
}

func TestCameraConfig(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/camera/config", nil)
	if code != http.StatusOK {
		t.Fatalf("get config: status %d", code)
	}
	if cfg := decode[camera.Config](t, body); cfg != camera.DefaultConfig() {
		t.Errorf("config = %+v", cfg)
	}

	code, body = env.do(t, http.MethodPut, "/api/camera/config", map[string]any{"preset": "scan", "framerate": 10})
	if code != http.StatusOK {
		t.Fatalf("put config: status %d: %s", code, body)
	}
	cfg := decode[camera.Config](t, body)
	if cfg.Width != 640 || cfg.Framerate != 10 {
		t.Errorf("updated config = %+v", cfg)
	}

	if code, _ := env.do(t, http.MethodPut, "/api/camera/config", map[string]any{"preset": "imax"}); code != http.StatusBadRequest {
		t.Errorf("unknown preset: status = %d, want 400", code)
	}

	code, body = env.do(t, http.MethodGet, "/api/camera/presets", nil)
	if presets := decode[map[string]camera.Config](t, body); code != http.StatusOK || len(presets) == 0 {
		t.Errorf("presets: status %d, %d entries", code, len(presets))
	}

	code, body = env.do(t, http.MethodGet, "/api/camera/capabilities", nil)
	if code != http.StatusOK {
		t.Fatalf("capabilities: status %d", code)
	}
	caps := decode[map[string]any](t, body)
	if caps["backend"] != "gocv" || caps["max_framerate"] != float64(camera.MaxFramerate) {
		t.Errorf("capabilities = %v", caps)
	}
}

func TestCameraConfig_NoManager(t *testing.T) {
	session, _ := capture.NewSession(capture.Config{
		Decoder: &capture.MockDecoder{},
		Encoder: &capture.MockEncoder{},
	}, testLogger())
	s := NewServer(session, nil, testLogger())
	defer s.Shutdown()

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/api/camera/config", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{capture.ErrUnsupportedCapability, http.StatusNotImplemented},
		{capture.ErrStreamNotActive, http.StatusConflict},
		{ErrScanRunning, http.StatusConflict},
		{&capture.AcquisitionError{Err: errors.New("busy")}, http.StatusBadGateway},
		{&capture.AcquisitionError{Err: camera.ErrInvalidDevice}, http.StatusBadRequest},
		{ErrNoCameraConfig, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/health", nil)
	if code != http.StatusOK {
		t.Fatalf("health: status %d", code)
	}
	h := decode[map[string]any](t, body)
	if h["status"] != "ok" || h["version"] != "dev" {
		t.Errorf("unexpected health: %v", h)
	}
	if _, ok := h["events"]; !ok {
		t.Error("health should report the event hub")
	}

	env.acquire(t)
	if _, err := env.server.StartScan(false); err != nil {
		t.Fatalf("StartScan failed: %v", err)
	}

	code, body = env.do(t, http.MethodGet, "/metrics", nil)
	if code != http.StatusOK {
		t.Fatalf("metrics: status %d", code)
	}
	for _, want := range []string{
		"qrcam_stream_active 1",
		"qrcam_scanning 1",
		"qrcam_scans_started_total 1",
		"qrcam_matches_total 0",
	} {
		if !bytes.Contains(body, []byte(want)) {
			t.Errorf("metrics missing %q", want)
		}
	}
}
