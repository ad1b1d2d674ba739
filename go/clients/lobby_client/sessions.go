package lobby_client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mcdev12/scopa/go/clients"
	"github.com/mcdev12/scopa/go/internal/models"
)

var (
	// ErrJoinCodeNotFound is returned when no session has the join code.
	ErrJoinCodeNotFound = errors.New("join code not found")

	// ErrSessionUnavailable is returned when the session is full or
	// already started.
	ErrSessionUnavailable = errors.New("session no longer accepting players")
)

type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
	JoinCode  string `json:"join_code"`
	PlayerID  string `json:"player_id"`
}

type JoinRequest struct {
	JoinCode string `json:"join_code"`
}

type JoinResponse struct {
	SessionID string `json:"session_id"`
	PlayerID  string `json:"player_id"`
}

// CreateSession opens a new session. The creator waits for an opponent
// to join with the returned code.
func (c *LobbyClient) CreateSession(ctx context.Context) (models.Session, error) {
	var response CreateSessionResponse
	if err := c.PostJSON(ctx, CreateSessionEndpoint, nil, &response); err != nil {
		return models.Session{}, fmt.Errorf("failed to create session: %w", err)
	}
	if response.SessionID == "" || response.PlayerID == "" {
		return models.Session{}, fmt.Errorf("failed to create session: incomplete response")
	}

	return models.Session{
		SessionID:     response.SessionID,
		LocalPlayerID: response.PlayerID,
		JoinCode:      response.JoinCode,
	}, nil
}

// JoinSession takes the second seat of the session behind joinCode.
func (c *LobbyClient) JoinSession(ctx context.Context, joinCode string) (models.Session, error) {
	code := NormalizeJoinCode(joinCode)
	if code == "" {
		return models.Session{}, fmt.Errorf("failed to join session: %w", ErrJoinCodeNotFound)
	}

	var response JoinResponse
	if err := c.PostJSON(ctx, JoinSessionEndpoint, JoinRequest{JoinCode: code}, &response); err != nil {
		var statusErr *clients.StatusError
		if errors.As(err, &statusErr) {
			switch statusErr.StatusCode {
			case http.StatusNotFound:
				err = ErrJoinCodeNotFound
			case http.StatusConflict:
				err = ErrSessionUnavailable
			}
		}
		return models.Session{}, fmt.Errorf("failed to join session %s: %w", code, err)
	}

	return models.Session{
		SessionID:     response.SessionID,
		LocalPlayerID: response.PlayerID,
	}, nil
}

// NormalizeJoinCode trims and upper-cases a code the way the lobby
// stores it.
func NormalizeJoinCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
