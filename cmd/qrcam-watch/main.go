// qrcam-watch: prints recognition events from a running qrcam
//
// Subscribes to /ws/events and, with -start, asks the server to acquire
// the default camera and start scanning over /ws/control first. With
// -photo, the size of a still of the frame is logged for every match.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-qrcam/internal/httpc"
	"github.com/teslashibe/go-qrcam/internal/log"
	"github.com/teslashibe/go-qrcam/pkg/protocol"
)

var (
	addr     = flag.String("addr", "localhost:8080", "qrcam address")
	start    = flag.Bool("start", false, "Start a scan before watching")
	once     = flag.Bool("once", false, "With -start, stop the camera after the first code")
	exitOn   = flag.Bool("exit-on-match", false, "Exit after the first match")
	photo    = flag.Bool("photo", false, "Take a photo on every match")
	logLevel = flag.String("log-level", "info", "Log level: debug, info, warn, error")
)

func main() {
	flag.Parse()
	log.Init(*logLevel)
	logger := log.L()

	client, err := httpc.New(*addr)
	if err != nil {
		logger.Error("bad address", "addr", *addr, "error", err)
		os.Exit(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), httpc.DefaultTimeout)
	health, err := client.Health(ctx)
	cancel()
	if err != nil {
		logger.Error("server not reachable", "addr", *addr, "error", err)
		os.Exit(1)
	}
	logger.Info("connected", "addr", *addr, "version", health.Version, "active", health.Active)

	events, _, err := websocket.DefaultDialer.Dial(wsURL("/ws/events"), nil)
	if err != nil {
		logger.Error("connect failed", "addr", *addr, "error", err)
		os.Exit(1)
	}
	defer events.Close()

	if *start {
		if err := startScan(client, *once); err != nil {
			logger.Error("start scan failed", "error", err)
			os.Exit(1)
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		events.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		events.Close()
	}()

	for {
		_, data, err := events.ReadMessage()
		if err != nil {
			logger.Debug("event stream closed", "error", err)
			return
		}

		msg, err := protocol.ParseMessage(data)
		if err != nil {
			logger.Warn("bad event", "error", err)
			continue
		}

		switch msg.Type {
		case protocol.TypeMatch:
			match, err := msg.GetMatchData()
			if err != nil {
				continue
			}
			fmt.Println(match.Payload)
			if *photo {
				takePhoto(client)
			}
			if *exitOn {
				return
			}

		case protocol.TypeEnded:
			ended, err := msg.GetEndedData()
			if err != nil {
				continue
			}
			logger.Info("scan ended", "scan_id", ended.ScanID, "reason", ended.Reason, "matches", ended.Matches, "error", ended.Error)

		case protocol.TypeStatus:
			st, err := msg.GetStatusData()
			if err != nil {
				continue
			}
			logger.Info("status", "active", st.Active, "device", st.DeviceID, "scanning", st.Scanning)
		}
	}
}

func wsURL(path string) string {
	u := url.URL{Scheme: "ws", Host: *addr, Path: path}
	return u.String()
}

// startScan asks for the default camera and a scan over /ws/control.
func startScan(client *httpc.Client, once bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), httpc.DefaultTimeout)
	defer cancel()
	st, err := client.Status(ctx)
	if err != nil {
		return err
	}
	if st.Scanning {
		log.Info("scan already running", "scan_id", st.ScanID)
		return nil
	}

	ctl, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL("/ws/control"), nil)
	if err != nil {
		return err
	}
	defer ctl.Close()

	if !st.Active {
		acquire, err := protocol.NewAcquireMessage("", "")
		if err != nil {
			return err
		}
		if _, err := roundTrip(ctl, acquire); err != nil {
			return err
		}
	}

	scan, err := protocol.NewScanMessage(once)
	if err != nil {
		return err
	}
	_, err = roundTrip(ctl, scan)
	return err
}

func roundTrip(conn *websocket.Conn, msg *protocol.Message) (*protocol.Message, error) {
	data, err := msg.Bytes()
	if err != nil {
		return nil, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return nil, err
	}

	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	_, out, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	reply, err := protocol.ParseMessage(out)
	if err != nil {
		return nil, err
	}
	if reply.Type == protocol.TypeError {
		e, _ := reply.GetErrorData()
		if e != nil {
			return nil, fmt.Errorf("%s: %s", msg.Type, e.Message)
		}
		return nil, fmt.Errorf("%s failed", msg.Type)
	}
	return reply, nil
}

// takePhoto grabs a still of the current frame. A once scan has already
// released the camera by the time its match arrives.
func takePhoto(client *httpc.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), httpc.DefaultTimeout)
	defer cancel()

	data, mime, err := client.Photo(ctx)
	if err != nil {
		log.Warn("photo failed", "error", err)
		return
	}
	log.Info("photo taken", "mime", mime, "bytes", len(data))
}
