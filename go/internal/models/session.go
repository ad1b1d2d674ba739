package models

// ConnectionStatus is the lifecycle state of the session connection.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusWaiting      ConnectionStatus = "waiting"
)

// Session identifies one seat at one game. JoinCode is only known to
// the creator until an opponent joins.
type Session struct {
	SessionID     string `json:"session_id" yaml:"session_id"`
	LocalPlayerID string `json:"player_id" yaml:"player_id"`
	OpponentID    string `json:"opponent_id,omitempty" yaml:"-"`
	JoinCode      string `json:"join_code,omitempty" yaml:"join_code,omitempty"`
}
