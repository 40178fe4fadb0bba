package web

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/teslashibe/go-qrcam/pkg/capture"
	"github.com/teslashibe/go-qrcam/pkg/protocol"
)

// controlTimeout bounds a single control command.
const controlTimeout = 30 * time.Second

// handleControl serves /ws/control: each command gets one reply on the
// same connection. Recognition events are published on /ws/events.
func (s *Server) handleControl(c *websocket.Conn) {
	logger := s.logger.With("remote", c.RemoteAddr().String())
	logger.Debug("control client connected")
	defer logger.Debug("control client disconnected")

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}

		reply := s.runCommand(data)
		out, err := reply.Bytes()
		if err != nil {
			logger.Error("encode reply", "error", err)
			continue
		}
		if err := c.WriteMessage(websocket.TextMessage, out); err != nil {
			return
		}
	}
}

// runCommand executes one control message and builds its reply.
func (s *Server) runCommand(data []byte) *protocol.Message {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		return errorReply("", err)
	}

	ctx, cancel := context.WithTimeout(s.ctx, controlTimeout)
	defer cancel()

	var reply *protocol.Message
	switch msg.Type {
	case protocol.TypeStatus:
		reply, err = protocol.NewStatusMessage(s.status())

	case protocol.TypeAcquire:
		var cmd *protocol.AcquireCommand
		if cmd, err = msg.GetAcquireCommand(); err == nil {
			s.StopScan()
			if _, err = s.session.AcquireStream(ctx, acquireConstraints(cmd)); err == nil {
				s.publishStatus()
				reply, err = protocol.NewStatusMessage(s.status())
			}
		}

	case protocol.TypeSwitch:
		resume := s.pauseScan()
		_, err = s.session.SwitchToNextDevice(ctx)
		resume()
		if err == nil {
			s.publishStatus()
			reply, err = protocol.NewStatusMessage(s.status())
		}

	case protocol.TypeStop:
		s.StopScan()
		s.session.Teardown()
		s.publishStatus()
		reply, err = protocol.NewStatusMessage(s.status())

	case protocol.TypeScan:
		var cmd *protocol.ScanCommand
		if cmd, err = msg.GetScanCommand(); err == nil {
			if _, err = s.StartScan(cmd.Once); err == nil {
				reply, err = protocol.NewStatusMessage(s.status())
			}
		}

	case protocol.TypePhoto:
		photo, perr := s.session.TakePhoto(ctx)
		if err = perr; err == nil {
			reply, err = protocol.NewPhotoMessage(photo.MIMEType, photo.DataURI())
		}

	case protocol.TypePing:
		var ping *protocol.PingData
		if ping, err = msg.GetPingData(); err == nil {
			reply, err = protocol.NewPongMessage(ping.ID, msg.Timestamp, time.Now().UnixMilli())
		}

	default:
		err = fmt.Errorf("unknown command %q", msg.Type)
	}

	if err != nil {
		return errorReply(msg.Type, err)
	}
	return reply
}

// acquireConstraints turns an acquire command into constraints.
func acquireConstraints(cmd *protocol.AcquireCommand) capture.Constraints {
	switch {
	case cmd.DeviceID != "":
		return capture.ExactDeviceConstraints(cmd.DeviceID)
	case cmd.FacingMode != "":
		return capture.Constraints{Video: capture.VideoConstraints{FacingMode: cmd.FacingMode}}
	default:
		return capture.DefaultConstraints()
	}
}

func errorReply(command protocol.MessageType, err error) *protocol.Message {
	reply, merr := protocol.NewErrorMessage(command, err)
	if merr != nil {
		return &protocol.Message{Type: protocol.TypeError}
	}
	return reply
}
