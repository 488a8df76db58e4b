package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHandshake      = "HANDSHAKE"
	TypeHandshakeAck   = "HANDSHAKE_ACK"
	TypeAction         = "ACTION"
	TypeActionResult   = "ACTION_RESULT"
	TypeViewFrame      = "VIEW_FRAME"
	TypeRoundComplete  = "ROUND_COMPLETE"
	TypeHealthProbe    = "HEALTH_PROBE"
	TypeHealthProbeAck = "HEALTH_PROBE_ACK"
)

const CompressionZstd = "zstd"

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
