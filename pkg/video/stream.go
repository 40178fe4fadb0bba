package video

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"github.com/teslashibe/go-qrcam/pkg/capture"
)

// Stream is a WebRTC session with one producer. It is active from the
// moment the session is requested until it is stopped locally or the
// signalling connection ends.
type Stream struct {
	producer producer
	sig      *signalling
	pc       *webrtc.PeerConnection
	decoder  *H264Decoder
	cfg      Config
	logger   *slog.Logger
	track    *Track
	frames   *frameStore

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	sessionMu sync.Mutex
	sessionID string

	decodeReq chan []byte
}

func newStream(cfg Config, decoder *H264Decoder, logger *slog.Logger, p producer) *Stream {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Stream{
		producer:  p,
		decoder:   decoder,
		cfg:       cfg,
		logger:    logger.With("producer", p.ID),
		frames:    newFrameStore(),
		ctx:       ctx,
		cancel:    cancel,
		decodeReq: make(chan []byte, 1),
	}
	s.track = &Track{id: uuid.New().String(), stream: s}
	s.track.enabled.Store(true)
	return s
}

// startStream sets up the peer connection and asks the producer for a session.
func startStream(h *Host, sig *signalling, p producer) (*Stream, error) {
	s := newStream(h.cfg, h.decoder, h.logger, p)
	s.sig = sig

	var iceServers []webrtc.ICEServer
	if len(h.cfg.ICEServers) > 0 {
		iceServers = []webrtc.ICEServer{{URLs: h.cfg.ICEServers}}
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
	if err != nil {
		return nil, err
	}
	s.pc = pc

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		pc.Close()
		return nil, err
	}

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		s.logger.Info("remote track", "kind", remote.Kind().String(), "codec", remote.Codec().MimeType)
		if remote.Kind() == webrtc.RTPCodecTypeVideo {
			go s.consume(remote)
		}
	})

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate != nil {
			s.sendICECandidate(candidate)
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.logger.Debug("peer connection state", "state", state.String())
		if state == webrtc.PeerConnectionStateFailed {
			go s.stop()
		}
	})

	if err := sig.send(message{Type: "startSession", PeerID: p.ID}); err != nil {
		pc.Close()
		return nil, err
	}

	go s.handleSignalling()
	go s.decodeLoop()
	return s, nil
}

// DeviceID returns the producer id.
func (s *Stream) DeviceID() string {
	return s.producer.ID
}

// Active reports whether the session is still running.
func (s *Stream) Active() bool {
	return !s.closed.Load()
}

// Tracks returns the single video track.
func (s *Stream) Tracks() []capture.Track {
	return []capture.Track{s.track}
}

// Attach returns a sink that plays once a frame has been decoded.
func (s *Stream) Attach() capture.Sink {
	return newSink(s)
}

func (s *Stream) handleSignalling() {
	for {
		msg, err := s.sig.read()
		if err != nil {
			if !s.closed.Load() {
				s.logger.Warn("signalling closed", "error", err)
				s.stop()
			}
			return
		}

		switch msg.Type {
		case "sessionStarted":
			s.sessionMu.Lock()
			s.sessionID = msg.SessionID
			s.sessionMu.Unlock()
			s.logger.Debug("session started", "session_id", msg.SessionID)

		case "peer":
			s.handlePeerMessage(msg)

		case "endSession":
			s.logger.Info("producer ended session")
			s.stop()
			return
		}
	}
}

func (s *Stream) handlePeerMessage(msg message) {
	if msg.SDP != nil && msg.SDP.Type == "offer" {
		offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: msg.SDP.SDP}
		if err := s.pc.SetRemoteDescription(offer); err != nil {
			s.logger.Error("set remote description", "error", err)
			return
		}

		answer, err := s.pc.CreateAnswer(nil)
		if err != nil {
			s.logger.Error("create answer", "error", err)
			return
		}
		if err := s.pc.SetLocalDescription(answer); err != nil {
			s.logger.Error("set local description", "error", err)
			return
		}

		s.sendPeer(message{SDP: &sdpMessage{Type: answer.Type.String(), SDP: answer.SDP}})
	}

	if msg.ICE != nil {
		if err := s.pc.AddICECandidate(webrtc.ICECandidateInit{
			Candidate:     msg.ICE.Candidate,
			SDPMid:        msg.ICE.SDPMid,
			SDPMLineIndex: msg.ICE.SDPMLineIndex,
		}); err != nil {
			s.logger.Debug("add ice candidate", "error", err)
		}
	}
}

func (s *Stream) sendICECandidate(candidate *webrtc.ICECandidate) {
	init := candidate.ToJSON()
	s.sendPeer(message{ICE: &iceMessage{
		Candidate:     init.Candidate,
		SDPMid:        init.SDPMid,
		SDPMLineIndex: init.SDPMLineIndex,
	}})
}

// sendPeer relays msg to the producer. Messages before sessionStarted are dropped.
func (s *Stream) sendPeer(msg message) {
	s.sessionMu.Lock()
	id := s.sessionID
	s.sessionMu.Unlock()
	if id == "" {
		return
	}

	msg.Type = "peer"
	msg.SessionID = id
	if err := s.sig.send(msg); err != nil {
		s.logger.Debug("send peer message", "error", err)
	}
}

// consume reads RTP until the track ends and queues decodable GOPs.
func (s *Stream) consume(remote *webrtc.TrackRemote) {
	var (
		depack     depacketizer
		gop        gopBuffer
		lastDecode time.Time
	)

	for {
		pkt, _, err := remote.ReadRTP()
		if err != nil {
			if !s.closed.Load() {
				s.logger.Debug("track read ended", "error", err)
			}
			return
		}

		unit, err := depack.push(pkt)
		if err != nil || unit == nil {
			continue
		}
		if !gop.add(unit) || time.Since(lastDecode) < s.cfg.DecodeInterval {
			continue
		}
		lastDecode = time.Now()

		select {
		case s.decodeReq <- gop.snapshot():
		default:
			// A decode is already pending.
		}
	}
}

func (s *Stream) decodeLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case data := <-s.decodeReq:
			ctx, cancel := context.WithTimeout(s.ctx, s.cfg.DecodeTimeout)
			frame, err := s.decoder.Decode(ctx, data)
			cancel()
			if err != nil {
				s.logger.Debug("h264 decode failed", "error", err)
				continue
			}
			img, err := decodeJPEG(frame)
			if err != nil {
				continue
			}
			s.frames.put(img)
		}
	}
}

func (s *Stream) stop() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.cancel()

	if s.sig != nil {
		s.sessionMu.Lock()
		id := s.sessionID
		s.sessionMu.Unlock()
		if id != "" {
			s.sig.send(message{Type: "endSession", SessionID: id})
		}
		s.sig.close()
	}
	if s.pc != nil {
		s.pc.Close()
	}
	s.logger.Info("remote camera session stopped")
}

// Track is the stream's video track.
type Track struct {
	id      string
	stream  *Stream
	enabled atomic.Bool
}

// ID returns the track id.
func (t *Track) ID() string { return t.id }

// Kind returns "video".
func (t *Track) Kind() string { return "video" }

// Enabled reports whether the track is enabled.
func (t *Track) Enabled() bool { return t.enabled.Load() }

// SetEnabled enables or disables the track.
func (t *Track) SetEnabled(v bool) { t.enabled.Store(v) }

// Stop ends the WebRTC session.
func (t *Track) Stop() { t.stream.stop() }

// frameStore keeps the latest decoded picture.
type frameStore struct {
	mu    sync.RWMutex
	img   *image.RGBA
	first chan struct{}
	once  sync.Once
}

func newFrameStore() *frameStore {
	return &frameStore{first: make(chan struct{})}
}

func (f *frameStore) put(img *image.RGBA) {
	f.mu.Lock()
	f.img = img
	f.mu.Unlock()
	f.once.Do(func() { close(f.first) })
}

func (f *frameStore) latest() *image.RGBA {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.img
}

func (f *frameStore) ready() <-chan struct{} {
	return f.first
}

// sink is an off-screen view of a stream.
type sink struct {
	stream  *Stream
	playing chan struct{}
	done    chan struct{}
	once    sync.Once
	err     error // set before playing closes
}

func newSink(s *Stream) *sink {
	k := &sink{
		stream:  s,
		playing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(k.playing)
		select {
		case <-s.frames.ready():
		case <-s.ctx.Done():
			k.err = ErrStreamEnded
		case <-k.done:
			k.err = ErrSinkClosed
		}
	}()
	return k
}

func (k *sink) Playing() <-chan struct{} {
	return k.playing
}

func (k *sink) Draw() (*image.RGBA, error) {
	select {
	case <-k.playing:
	default:
		return nil, ErrNoFrame
	}
	if k.err != nil {
		return nil, k.err
	}
	select {
	case <-k.done:
		return nil, ErrSinkClosed
	default:
	}

	img := k.stream.frames.latest()
	if img == nil {
		return nil, ErrNoFrame
	}
	out := image.NewRGBA(img.Rect)
	copy(out.Pix, img.Pix)
	return out, nil
}

func (k *sink) Close() error {
	k.once.Do(func() { close(k.done) })
	return nil
}

var _ capture.Stream = (*Stream)(nil)
