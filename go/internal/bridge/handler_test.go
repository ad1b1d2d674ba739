package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mcdev12/scopa/go/internal/models"
	"github.com/mcdev12/scopa/go/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	mu       sync.Mutex
	view     table.View
	selected []string
	toggled  []string
	cancels  int
	finishes int
	err      error
}

func (f *fakeSession) View(ctx context.Context) (table.View, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view, f.err
}

func (f *fakeSession) SelectCard(ctx context.Context, cardID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.selected = append(f.selected, cardID)
	return nil
}

func (f *fakeSession) ToggleCard(ctx context.Context, cardID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.toggled = append(f.toggled, cardID)
	return nil
}

func (f *fakeSession) Cancel(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	return f.err
}

func (f *fakeSession) FinishDeal(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finishes++
	return f.err
}

func (f *fakeSession) snapshot() (selected, toggled []string, cancels, finishes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.selected...), append([]string(nil), f.toggled...), f.cancels, f.finishes
}

func (f *fakeSession) ConnectionStats() map[string]interface{} {
	return map[string]interface{}{"status": "connected"}
}

func newBridge(t *testing.T, session *fakeSession, counters *table.CounterMetrics) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer("", NewHandler(session, counters)).Handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestGetView(t *testing.T) {
	session := &fakeSession{view: table.View{
		Session: models.Session{SessionID: "s-1", LocalPlayerID: "p-1"},
		Status:  models.StatusConnected,
		Game: &models.GameState{
			IsLocalTurn: true,
			Players:     map[string]models.PlayerInfo{"p-1": {}, "p-2": {}},
		},
	}}
	srv := newBridge(t, session, nil)

	resp, err := http.Get(srv.URL + "/api/view")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["is_local_turn"])
	assert.Equal(t, "p-1", body["current_player"])
	assert.Equal(t, "p-2", body["opponent"])
	assert.Equal(t, "connected", body["status"])
}

func TestSelectAndToggle(t *testing.T) {
	session := &fakeSession{}
	srv := newBridge(t, session, nil)

	resp, err := http.Post(srv.URL+"/api/select", "application/json", strings.NewReader(`{"card_id":"h1"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/toggle", "application/json", strings.NewReader(`{"card_id":"c1"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	selected, toggled, _, _ := session.snapshot()
	assert.Equal(t, []string{"h1"}, selected)
	assert.Equal(t, []string{"c1"}, toggled)
}

func TestCommands(t *testing.T) {
	session := &fakeSession{}
	srv := newBridge(t, session, nil)

	for _, path := range []string{"/api/cancel", "/api/deal/finish"} {
		resp, err := http.Post(srv.URL+path, "application/json", nil)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode, path)
	}
	_, _, cancels, finishes := session.snapshot()
	assert.Equal(t, 1, cancels)
	assert.Equal(t, 1, finishes)
}

func TestCardErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"bad body", `{`, nil, http.StatusBadRequest},
		{"missing card", `{}`, nil, http.StatusBadRequest},
		{"unknown card", `{"card_id":"x"}`, fmt.Errorf("select x: %w", table.ErrUnknownCard), http.StatusNotFound},
		{"closed", `{"card_id":"x"}`, table.ErrClientClosed, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newBridge(t, &fakeSession{err: tt.err}, nil)

			resp, err := http.Post(srv.URL+"/api/select", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newBridge(t, &fakeSession{}, nil)

	resp, err := http.Get(srv.URL + "/api/select")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStats(t *testing.T) {
	counters := table.NewCounterMetrics()
	counters.RecordFrame("state")
	srv := newBridge(t, &fakeSession{}, counters)

	resp, err := http.Get(srv.URL + "/api/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var stats StatsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, "connected", stats.Connection["status"])
	assert.Equal(t, uint64(1), stats.Counters["frames.state"])
}

func TestCORSPreflight(t *testing.T) {
	srv := newBridge(t, &fakeSession{}, nil)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/select", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
