package protocol

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewMatchMessage creates a match event
func NewMatchMessage(scanID, payload, deviceID string) (*Message, error) {
	return NewMessage(TypeMatch, MatchData{
		ScanID:   scanID,
		Payload:  payload,
		DeviceID: deviceID,
	})
}

// NewEndedMessage creates an ended event. errMsg is only sent with reason "error".
func NewEndedMessage(scanID, reason, errMsg string, matches int) (*Message, error) {
	data := EndedData{ScanID: scanID, Reason: reason, Matches: matches}
	if reason == "error" {
		data.Error = errMsg
	}
	return NewMessage(TypeEnded, data)
}

// NewStatusMessage creates a status event
func NewStatusMessage(status StatusData) (*Message, error) {
	return NewMessage(TypeStatus, status)
}

// NewPhotoMessage creates a photo event
func NewPhotoMessage(mimeType, dataURI string) (*Message, error) {
	return NewMessage(TypePhoto, PhotoData{
		MIMEType: mimeType,
		DataURI:  dataURI,
	})
}

// NewErrorMessage creates an error reply to a command
func NewErrorMessage(command MessageType, err error) (*Message, error) {
	return NewMessage(TypeError, ErrorData{Command: command, Message: err.Error()})
}

// NewAcquireMessage creates an acquire command
func NewAcquireMessage(deviceID, facingMode string) (*Message, error) {
	return NewMessage(TypeAcquire, AcquireCommand{DeviceID: deviceID, FacingMode: facingMode})
}

// NewScanMessage creates a scan command
func NewScanMessage(once bool) (*Message, error) {
	return NewMessage(TypeScan, ScanCommand{Once: once})
}

// NewCommandMessage creates a command without a body (switch, stop, photo, status)
func NewCommandMessage(command MessageType) (*Message, error) {
	return NewMessage(command, nil)
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{ID: id})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetMatchData extracts match data from a message
func (m *Message) GetMatchData() (*MatchData, error) {
	var data MatchData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetEndedData extracts ended data from a message
func (m *Message) GetEndedData() (*EndedData, error) {
	var data EndedData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetStatusData extracts status data from a message
func (m *Message) GetStatusData() (*StatusData, error) {
	var data StatusData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPhotoData extracts photo data from a message
func (m *Message) GetPhotoData() (*PhotoData, error) {
	var data PhotoData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetErrorData extracts error data from a message
func (m *Message) GetErrorData() (*ErrorData, error) {
	var data ErrorData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetAcquireCommand extracts an acquire command
func (m *Message) GetAcquireCommand() (*AcquireCommand, error) {
	var data AcquireCommand
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetScanCommand extracts a scan command. A scan without data uses defaults.
func (m *Message) GetScanCommand() (*ScanCommand, error) {
	var data ScanCommand
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
