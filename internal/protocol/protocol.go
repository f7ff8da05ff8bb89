package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	// client -> server
	TypeAddPoint  = "add_point"
	TypeResetGame = "reset_game"

	// server -> client
	TypeGridUpdate  = "grid_update"
	TypeTimerUpdate = "timer_update"
	TypeGameReset   = "game_reset"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type string `json:"type"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
