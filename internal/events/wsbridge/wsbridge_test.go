package wsbridge

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/veighnsche/ralph/internal/events"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestBridge_SendsProtocolVersionOnConnect(t *testing.T) {
	b := New("")
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	conn := dial(t, srv)

	var info ProtocolVersionInfo
	readMessage(t, conn, &info)
	require.Equal(t, ProtocolVersion, info.ProtocolVersion)
}

func TestBridge_ClientCountTracksConnectAndClose(t *testing.T) {
	b := New("")
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	readMessage(t, conn, &ProtocolVersionInfo{}) // drain the version handshake

	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return b.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestBridge_EmitOutputBroadcastsTerminalOutput(t *testing.T) {
	b := New("")
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	readMessage(t, conn, &ProtocolVersionInfo{})

	b.EmitOutput("sess-1", 7, "aGVsbG8=")

	var msg wireMessage
	readMessage(t, conn, &msg)
	require.Equal(t, "terminal:output", msg.Type)

	raw, err := json.Marshal(msg.Data)
	require.NoError(t, err)
	var out terminalOutput
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Equal(t, "sess-1", out.SessionID)
	require.Equal(t, uint64(7), out.Seq)
	require.Equal(t, "aGVsbG8=", out.Data)
}

func TestBridge_EmitClosedBroadcastsTerminalClosed(t *testing.T) {
	b := New("")
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	readMessage(t, conn, &ProtocolVersionInfo{})

	b.EmitClosed("sess-1", 1)

	var msg wireMessage
	readMessage(t, conn, &msg)
	require.Equal(t, "terminal:closed", msg.Type)

	raw, err := json.Marshal(msg.Data)
	require.NoError(t, err)
	var closed terminalClosed
	require.NoError(t, json.Unmarshal(raw, &closed))
	require.Equal(t, "sess-1", closed.SessionID)
	require.Equal(t, 1, closed.ExitCode)
}

func TestBridge_EmitDiagnosticBroadcastsBackendDiagnostic(t *testing.T) {
	b := New("")
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	readMessage(t, conn, &ProtocolVersionInfo{})

	b.EmitDiagnostic("sess-1", events.DiagnosticWarning, "rag", "R-5020", "rag search failed")

	var msg wireMessage
	readMessage(t, conn, &msg)
	require.Equal(t, "backend-diagnostic", msg.Type)

	raw, err := json.Marshal(msg.Data)
	require.NoError(t, err)
	var diag backendDiagnostic
	require.NoError(t, json.Unmarshal(raw, &diag))
	require.Equal(t, "warning", diag.Level)
	require.Equal(t, "rag", diag.Source)
	require.Equal(t, "R-5020", diag.Code)
	require.Equal(t, "rag search failed", diag.Message)
}

func TestBridge_BroadcastToMultipleClients(t *testing.T) {
	b := New("")
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	conn1 := dial(t, srv)
	readMessage(t, conn1, &ProtocolVersionInfo{})
	conn2 := dial(t, srv)
	readMessage(t, conn2, &ProtocolVersionInfo{})

	require.Eventually(t, func() bool { return b.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	b.EmitClosed("sess-1", 0)

	var msg1, msg2 wireMessage
	readMessage(t, conn1, &msg1)
	readMessage(t, conn2, &msg2)
	require.Equal(t, "terminal:closed", msg1.Type)
	require.Equal(t, "terminal:closed", msg2.Type)
}

func TestBridge_RejectsDisallowedOrigin(t *testing.T) {
	b := New("https://dashboard.example.com")
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := map[string][]string{"Origin": {"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	if resp != nil {
		require.NotEqual(t, 101, resp.StatusCode)
	}
}

var _ events.Sink = (*Bridge)(nil)
