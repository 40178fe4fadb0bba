package web

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/teslashibe/go-qrcam/pkg/capture"
	"github.com/teslashibe/go-qrcam/pkg/protocol"
)

// Reasons reported in ended events
const (
	ReasonInactive  = "inactive"
	ReasonCancelled = "cancelled"
	ReasonError     = "error"
	ReasonOnce      = "once"
)

// scanRun is one recognition loop started through the API
type scanRun struct {
	id      string
	once    bool
	cancel  context.CancelFunc
	done    chan struct{}
	matches atomic.Int64
}

// StartScan runs the recognition loop on the active stream and publishes
// match and ended events. With once set, the stream is torn down after the
// first match, which ends the loop.
func (s *Server) StartScan(once bool) (string, error) {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	if s.scan != nil {
		return "", ErrScanRunning
	}
	if !s.session.IsActive() {
		return "", capture.ErrStreamNotActive
	}

	ctx, cancel := context.WithCancel(s.ctx)
	run := &scanRun{
		id:     uuid.New().String(),
		once:   once,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.scan = run
	s.scansStarted.Add(1)

	s.scans.Add(1)
	go func() {
		defer s.scans.Done()
		defer cancel()
		s.session.RunRecognitionLoop(ctx,
			func(payload string) { s.onMatch(run, payload) },
			func(reason error) { s.onEnded(run, reason) },
		)
	}()

	s.logger.Info("scan started", "scan_id", run.id, "once", once)
	s.publishStatus()
	return run.id, nil
}

// StopScan cancels the running scan and waits for it to end. It reports
// whether a scan was running.
func (s *Server) StopScan() bool {
	s.scanMu.Lock()
	run := s.scan
	s.scanMu.Unlock()

	if run == nil {
		return false
	}
	run.cancel()
	<-run.done
	return true
}

// pauseScan stops the running scan before the stream is replaced. The
// returned resume starts a new scan with the same mode if the stream is
// live again; it does nothing when no scan was running.
func (s *Server) pauseScan() (resume func()) {
	run := s.currentScan()
	if run == nil {
		return func() {}
	}
	s.StopScan()
	return func() {
		if !s.session.IsActive() {
			s.logger.Info("scan not resumed: stream inactive", "scan_id", run.id)
			return
		}
		id, err := s.StartScan(run.once)
		if err != nil {
			s.logger.Warn("scan not resumed", "scan_id", run.id, "error", err)
			return
		}
		s.logger.Info("scan resumed", "previous", run.id, "scan_id", id)
	}
}

func (s *Server) currentScan() *scanRun {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()
	return s.scan
}

func (s *Server) onMatch(run *scanRun, payload string) {
	n := run.matches.Add(1)
	s.matches.Add(1)
	s.publish(protocol.NewMatchMessage(run.id, payload, s.session.ActiveDeviceID()))

	if run.once && n == 1 {
		s.session.Teardown()
	}
}

func (s *Server) onEnded(run *scanRun, reason error) {
	kind, detail := classifyEnd(run, reason)

	s.scanMu.Lock()
	if s.scan == run {
		s.scan = nil
	}
	s.scanMu.Unlock()

	s.logger.Info("scan ended", "scan_id", run.id, "reason", kind, "matches", run.matches.Load())
	s.publish(protocol.NewEndedMessage(run.id, kind, detail, int(run.matches.Load())))
	s.publishStatus()
	close(run.done)
}

// classifyEnd maps the loop's end reason to an ended event reason.
func classifyEnd(run *scanRun, reason error) (string, string) {
	switch {
	case errors.Is(reason, capture.ErrStreamNotActive):
		if run.once && run.matches.Load() > 0 {
			return ReasonOnce, ""
		}
		return ReasonInactive, ""
	case errors.Is(reason, context.Canceled), errors.Is(reason, context.DeadlineExceeded):
		return ReasonCancelled, ""
	case reason == nil:
		return ReasonInactive, ""
	default:
		return ReasonError, reason.Error()
	}
}
