// Package web exposes a capture session over HTTP and WebSocket.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/teslashibe/go-qrcam/pkg/camera"
	"github.com/teslashibe/go-qrcam/pkg/capture"
	"github.com/teslashibe/go-qrcam/pkg/hub"
	"github.com/teslashibe/go-qrcam/pkg/protocol"
)

// Server is the qrcam API server
type Server struct {
	app     *fiber.App
	session *capture.Session
	camera  *camera.Manager // nil when the backend has no local settings
	events  *hub.Hub
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	scanMu sync.Mutex
	scan   *scanRun
	scans  sync.WaitGroup

	// Stats
	scansStarted atomic.Uint64
	matches      atomic.Uint64
}

// Option configures a Server.
type Option func(*options)

type options struct {
	version    string
	requestLog bool
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// WithRequestLog logs every HTTP request.
func WithRequestLog() Option {
	return func(o *options) { o.requestLog = true }
}

// NewServer creates a server for session. manager may be nil.
func NewServer(session *capture.Session, manager *camera.Manager, log *slog.Logger, opts ...Option) *Server {
	o := options{version: "dev"}
	for _, opt := range opts {
		opt(&o)
	}
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		session: session,
		camera:  manager,
		events:  hub.New("events", log),
		logger:  log.With("component", "web"),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.events.SetGreeting(s.statusGreeting)
	go s.events.Run(ctx)

	app := fiber.New(fiber.Config{
		AppName:               "qrcam",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	if o.requestLog {
		app.Use(logger.New())
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"version": o.version,
			"active":  s.session.IsActive(),
			"events":  s.events.IsRunning(),
		})
	})
	app.Get("/metrics", s.handleMetrics)

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/devices", s.handleDevices)
	api.Post("/stream", s.handleAcquire)
	api.Delete("/stream", s.handleTeardown)
	api.Post("/stream/switch", s.handleSwitch)
	api.Get("/photo", s.handlePhoto)
	api.Post("/decode", s.handleDecode)
	api.Post("/scan", s.handleStartScan)
	api.Delete("/scan", s.handleStopScan)
	api.Get("/camera/config", s.handleGetCameraConfig)
	api.Put("/camera/config", s.handleUpdateCameraConfig)
	api.Get("/camera/presets", s.handleListPresets)
	api.Get("/camera/capabilities", s.handleCapabilities)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/events", s.events.Handler())
	app.Get("/ws/control", websocket.New(s.handleControl))

	s.app = app
	return s
}

// App returns the fiber app, for tests and embedding.
func (s *Server) App() *fiber.App {
	return s.app
}

// Events returns the event hub.
func (s *Server) Events() *hub.Hub {
	return s.events
}

// Start listens on port and blocks until the server stops.
func (s *Server) Start(port string) error {
	s.logger.Info("listening", "url", fmt.Sprintf("http://localhost:%s", port))
	return s.app.Listen(":" + port)
}

// Serve accepts connections on ln until the server stops.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// Shutdown stops any scan, releases the camera and stops the server.
func (s *Server) Shutdown() error {
	s.StopScan()
	s.scans.Wait()
	s.cancel()
	s.session.Teardown()
	return s.app.Shutdown()
}

// status snapshots the session.
func (s *Server) status() protocol.StatusData {
	st := protocol.StatusData{
		Active:       s.session.IsActive(),
		DeviceID:     s.session.ActiveDeviceID(),
		Capture:      s.session.SupportsCapture(),
		Enumeration:  s.session.SupportsDeviceEnumeration(),
		ClientsCount: s.events.ClientCount(),
	}
	if run := s.currentScan(); run != nil {
		st.Scanning = true
		st.ScanID = run.id
	}
	return st
}

func (s *Server) statusGreeting() (hub.Message, bool) {
	msg, err := protocol.NewStatusMessage(s.status())
	if err != nil {
		return hub.Message{}, false
	}
	out, err := hub.FromProtocol(msg)
	return out, err == nil
}

// publish broadcasts an event to /ws/events subscribers.
func (s *Server) publish(msg *protocol.Message, err error) {
	if err != nil {
		s.logger.Error("build event", "error", err)
		return
	}
	if err := s.events.BroadcastJSON(msg); err != nil {
		s.logger.Error("encode event", "type", msg.Type, "error", err)
	}
}

func (s *Server) publishStatus() {
	s.publish(protocol.NewStatusMessage(s.status()))
}
