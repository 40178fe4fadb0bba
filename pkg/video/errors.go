package video

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-qrcam/pkg/capture"
)

var (
	// ErrNoProducer is returned when the signalling server lists no producers.
	ErrNoProducer = errors.New("video: no producer available")

	// ErrProducerNotFound is returned when an exact device id matches no producer.
	ErrProducerNotFound = errors.New("video: producer not found")

	// ErrAudioUnsupported is returned for constraints that ask for audio.
	ErrAudioUnsupported = errors.New("video: audio capture not supported")

	// ErrUnexpectedMessage is returned when the signalling server breaks protocol.
	ErrUnexpectedMessage = errors.New("video: unexpected signalling message")

	// ErrNoFrame is returned when nothing has been decoded yet.
	ErrNoFrame = errors.New("video: no frame available")

	// ErrStreamEnded is returned by sinks whose stream stopped before a frame
	// arrived. It matches capture.ErrStreamNotActive.
	ErrStreamEnded = fmt.Errorf("video: stream ended: %w", capture.ErrStreamNotActive)

	// ErrSinkClosed is returned when drawing from a closed sink.
	ErrSinkClosed = errors.New("video: sink closed")
)
