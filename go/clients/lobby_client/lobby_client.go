package lobby_client

import (
	"github.com/mcdev12/scopa/go/clients"
)

// LobbyClient talks to the session lobby of the game server. It only
// obtains seat identifiers; gameplay happens over the websocket.
type LobbyClient struct {
	*clients.BaseClient
}

func NewLobbyClient(baseURL string) *LobbyClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := &LobbyClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	client.SetHeader(ContentTypeHeader, ContentTypeJSON)

	return client
}
