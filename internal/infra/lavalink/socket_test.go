package lavalink

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		check func(t *testing.T, msg any)
	}{
		{
			name:  "ready",
			frame: `{"op":"ready","resumed":false,"sessionId":"abc"}`,
			check: func(t *testing.T, msg any) {
				assert.Equal(t, Ready{SessionID: "abc"}, msg)
			},
		},
		{
			name:  "stats",
			frame: `{"op":"stats","players":3,"playingPlayers":2,"uptime":1000,"memory":{"free":1,"used":2,"allocated":3,"reservable":4},"cpu":{"cores":4,"systemLoad":0.5,"lavalinkLoad":0.1},"frameStats":{"sent":6000,"nulled":10,"deficit":-5}}`,
			check: func(t *testing.T, msg any) {
				s, ok := msg.(Stats)
				require.True(t, ok)
				assert.Equal(t, 2, s.PlayingPlayers)
				assert.Equal(t, 0.5, s.CPU.SystemLoad)
				require.NotNil(t, s.FrameStats)
				assert.Equal(t, -5, s.FrameStats.Deficit)
			},
		},
		{
			name:  "player update",
			frame: `{"op":"playerUpdate","guildId":"42","state":{"time":1,"position":5000,"connected":true,"ping":20}}`,
			check: func(t *testing.T, msg any) {
				u, ok := msg.(PlayerUpdateEvent)
				require.True(t, ok)
				assert.Equal(t, "42", u.GuildID)
				assert.Equal(t, int64(5000), u.State.Position)
				assert.True(t, u.State.Connected)
			},
		},
		{
			name:  "track end",
			frame: `{"op":"event","type":"TrackEndEvent","guildId":"42","reason":"finished","track":{"encoded":"QAAA","info":{"identifier":"id","title":"t","author":"a","length":2000,"uri":"https://x/1","isrc":null,"sourceName":"deezer"},"pluginInfo":{}}}`,
			check: func(t *testing.T, msg any) {
				e, ok := msg.(Event)
				require.True(t, ok)
				assert.Equal(t, EventTrackEnd, e.Type)
				assert.True(t, e.MayStartNext())
				require.NotNil(t, e.Track)
				assert.Equal(t, "QAAA", e.Track.Encoded)
				assert.Equal(t, int64(2000), e.Track.Info.Length)
				require.NotNil(t, e.Track.Info.URI)
				assert.Equal(t, "https://x/1", *e.Track.Info.URI)
				assert.Nil(t, e.Track.Info.ISRC)
			},
		},
		{
			name:  "exception",
			frame: `{"op":"event","type":"TrackExceptionEvent","guildId":"42","exception":{"message":"boom","severity":"fault","cause":"io"}}`,
			check: func(t *testing.T, msg any) {
				e, ok := msg.(Event)
				require.True(t, ok)
				require.NotNil(t, e.Exception)
				assert.Equal(t, "boom", e.Exception.Message)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := decodeMessage([]byte(tt.frame))
			require.NoError(t, err)
			tt.check(t, msg)
		})
	}
}

func TestDecodeMessage_Errors(t *testing.T) {
	_, err := decodeMessage([]byte(`{"op":"nope"}`))
	assert.ErrorIs(t, err, ErrUnknownOp)

	_, err = decodeMessage([]byte(`not json`))
	assert.Error(t, err)
}

func TestEventMayStartNext(t *testing.T) {
	tests := []struct {
		reason string
		want   bool
	}{
		{EndReasonFinished, true},
		{EndReasonLoadFailed, true},
		{EndReasonStopped, true},
		{EndReasonReplaced, false},
		{EndReasonCleanup, false},
	}
	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			e := Event{Reason: tt.reason}
			assert.Equal(t, tt.want, e.MayStartNext())
		})
	}
}

type recordingHandler struct {
	mu          sync.Mutex
	ready       []Ready
	events      []Event
	disconnects int
	gotEvent    chan struct{}
}

func (h *recordingHandler) OnReady(r Ready) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = append(h.ready, r)
}

func (h *recordingHandler) OnStats(Stats) {}

func (h *recordingHandler) OnPlayerUpdate(PlayerUpdateEvent) {}

func (h *recordingHandler) OnEvent(e Event) {
	h.mu.Lock()
	h.events = append(h.events, e)
	h.mu.Unlock()
	h.gotEvent <- struct{}{}
}

func (h *recordingHandler) OnDisconnect(error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnects++
}

func TestSocket_ReceivesMessages(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var gotHeader http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"op":"ready","resumed":false,"sessionId":"s1"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"op":"event","type":"TrackStartEvent","guildId":"42"}`))
		// Hold the connection until the client closes it.
		_, _, _ = conn.ReadMessage()
	}))
	defer server.Close()

	handler := &recordingHandler{gotEvent: make(chan struct{}, 1)}
	sock := NewSocket(SocketConfig{Password: "pw", UserID: "bot", ClientName: "test"}, handler)
	sock.endpoint = "ws" + strings.TrimPrefix(server.URL, "http") + "/v4/websocket"

	require.NoError(t, sock.Connect(context.Background()))

	select {
	case <-handler.gotEvent:
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
	require.NoError(t, sock.Close())

	assert.Equal(t, "pw", gotHeader.Get("Authorization"))
	assert.Equal(t, "bot", gotHeader.Get("User-Id"))
	assert.Equal(t, "test", gotHeader.Get("Client-Name"))
	assert.Equal(t, "s1", sock.SessionID())

	handler.mu.Lock()
	defer handler.mu.Unlock()
	require.Len(t, handler.ready, 1)
	require.Len(t, handler.events, 1)
	assert.Equal(t, EventTrackStart, handler.events[0].Type)
	assert.Equal(t, 0, handler.disconnects)
}

func TestSocket_ConnectFailure(t *testing.T) {
	sock := NewSocket(SocketConfig{Host: "127.0.0.1", Port: 1}, &recordingHandler{})
	err := sock.Connect(context.Background())
	assert.Error(t, err)
}
