package lobby_client

const (
	// Default server, matching the websocket default
	DefaultBaseURL = "http://localhost:8000"

	// API Endpoints
	CreateSessionEndpoint = "/api/session"
	JoinSessionEndpoint   = "/api/session/join"

	// Headers
	ContentTypeHeader = "Content-Type"
	ContentTypeJSON   = "application/json"
)
