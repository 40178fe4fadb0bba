// qrcam: camera capture and QR recognition service
//
// Serves the capture session over HTTP/WebSocket, or with -scan runs the
// recognition loop in the terminal and prints every payload to stdout.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-qrcam/internal/config"
	"github.com/teslashibe/go-qrcam/internal/log"
	"github.com/teslashibe/go-qrcam/pkg/capture"
	"github.com/teslashibe/go-qrcam/pkg/qr"
	"github.com/teslashibe/go-qrcam/pkg/web"
)

var version = "0.1.0"

var (
	backendName = flag.String("backend", config.Backend(), "Capture backend: gocv or webrtc")
	signalling  = flag.String("signalling", "", "WebRTC signalling URL (webrtc backend)")
	producer    = flag.String("producer", config.Producer(), "Preferred producer name (webrtc backend)")
	preset      = flag.String("preset", "default", "Camera preset (gocv backend)")
	port        = flag.String("port", config.Port(), "HTTP server port")
	logLevel    = flag.String("log-level", config.LogLevel(), "Log level: debug, info, warn, error")
	requestLog  = flag.Bool("request-log", false, "Log every HTTP request")
	scan        = flag.Bool("scan", false, "Scan in the terminal instead of serving HTTP")
	once        = flag.Bool("once", false, "With -scan, stop after the first code")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("qrcam " + version)
		return
	}

	log.Init(*logLevel)
	logger := log.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := newBackend(*backendName, backendOptions{
		signallingURL: *signalling,
		producer:      *producer,
		preset:        *preset,
	}, logger)
	if err != nil {
		logger.Error("backend setup failed", "backend", *backendName, "error", err)
		os.Exit(1)
	}

	decoder := qr.NewDecoder(logger)
	defer decoder.Close()

	session, err := capture.NewSession(capture.Config{
		Enumerator: b.host,
		Acquirer:   b.host,
		Clock:      b.clock,
		Decoder:    decoder,
		Encoder:    b.encoder,
	}, logger)
	if err != nil {
		logger.Error("session setup failed", "error", err)
		os.Exit(1)
	}
	b.bind(ctx, session, logger)

	if *scan {
		if err := runScan(ctx, session, *once); err != nil {
			logger.Error("scan failed", "error", err)
			os.Exit(1)
		}
		return
	}

	opts := []web.Option{web.WithVersion(version)}
	if *requestLog {
		opts = append(opts, web.WithRequestLog())
	}
	srv := web.NewServer(session, b.manager, logger, opts...)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		if err := srv.Shutdown(); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()

	logger.Info("qrcam started", "version", version, "backend", *backendName, "port", *port)
	if err := srv.Start(*port); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// runScan acquires the default camera and prints payloads until ctx is
// done or, with once set, until the first code has been read.
func runScan(ctx context.Context, session *capture.Session, once bool) error {
	if _, err := session.AcquireDefaultStream(ctx); err != nil {
		return err
	}
	defer session.Teardown()

	var (
		reason  error
		matched bool
	)
	session.RunRecognitionLoop(ctx,
		func(payload string) {
			fmt.Println(payload)
			matched = true
			if once {
				session.Teardown()
			}
		},
		func(r error) { reason = r },
	)

	switch {
	case once && matched && errors.Is(reason, capture.ErrStreamNotActive):
		return nil
	case errors.Is(reason, context.Canceled):
		return nil
	default:
		return reason
	}
}
