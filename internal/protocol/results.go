package protocol

// Handshake results.
const (
	ResultSuccess            = "SUCCESS"
	ResultInvalidCredentials = "FAIL_INVALID_CREDENTIALS"
	ResultVersionMismatch    = "FAIL_VERSION_MISMATCH"
	ResultRoundNotStarted    = "FAIL_ROUND_NOT_STARTED"
	ResultRoundOver          = "FAIL_ROUND_OVER"
	ResultBadRequest         = "FAIL_BAD_REQUEST"
)

var knownResults = map[string]struct{}{
	ResultSuccess:            {},
	ResultInvalidCredentials: {},
	ResultVersionMismatch:    {},
	ResultRoundNotStarted:    {},
	ResultRoundOver:          {},
	ResultBadRequest:         {},
}

func IsKnownResult(r string) bool {
	_, ok := knownResults[r]
	return ok
}

// Close reasons sent with a websocket close frame.
const (
	CloseBadHandshake   = "bad handshake"
	CloseUnknownMessage = "unknown message type"
	CloseSuperseded     = "superseded by newer transport"
	CloseRoundOver      = "round over"
	CloseSlowConsumer   = "outbound backlog overflow"
)
