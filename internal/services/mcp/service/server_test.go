package service

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/louisbranch/spar/internal/services/mcp/domain"
	"github.com/louisbranch/spar/internal/services/session"
	"github.com/louisbranch/spar/internal/services/session/api/grpc/sessions"
	sessionsqlite "github.com/louisbranch/spar/internal/services/session/storage/sqlite"
	"github.com/louisbranch/spar/internal/spar/content"
	"github.com/louisbranch/spar/internal/spar/content/packs"
)

func shippedCatalog(t *testing.T) *content.Store {
	t.Helper()
	catalog, err := packs.Store()
	if err != nil {
		t.Fatalf("load packs: %v", err)
	}
	return catalog
}

// connect runs server on in-memory transports and returns a client session.
func connect(t *testing.T, server *Server) *mcp.ClientSession {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.mcpServer.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("connect server: %v", err)
	}
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	clientSession, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("connect client: %v", err)
	}
	t.Cleanup(func() { _ = clientSession.Close() })
	return clientSession
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any, out any) *mcp.CallToolResult {
	t.Helper()
	result, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("call %s: %v", name, err)
	}
	if out != nil && !result.IsError {
		data, err := json.Marshal(result.StructuredContent)
		if err != nil {
			t.Fatalf("marshal %s result: %v", name, err)
		}
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("decode %s result: %v", name, err)
		}
	}
	return result
}

func toolNames(t *testing.T, cs *mcp.ClientSession) []string {
	t.Helper()
	tools, err := cs.ListTools(context.Background(), &mcp.ListToolsParams{})
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	slices.Sort(names)
	return names
}

func TestNewRequiresCatalog(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Fatal("expected error without a catalog")
	}
}

func TestStatelessTools(t *testing.T) {
	server, err := New(shippedCatalog(t), nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	cs := connect(t, server)

	want := []string{"apply_delta", "generate_complication", "list_content", "tick_state"}
	if got := toolNames(t, cs); !slices.Equal(got, want) {
		t.Fatalf("tools = %v, want %v", got, want)
	}

	var generated domain.GenerateComplicationResult
	result := callTool(t, cs, "generate_complication", map[string]any{
		"scene": map[string]any{"preset": "confined", "scene_phase": "engage"},
		"seed":  42,
		"count": 2,
	}, &generated)
	if result.IsError {
		t.Fatalf("generate returned tool error: %+v", result.Content)
	}
	if generated.Seed != 42 || len(generated.Events) != 2 {
		t.Fatalf("generated = %+v", generated)
	}

	var ticked domain.StateResult
	callTool(t, cs, "tick_state", map[string]any{"state": generated.State, "ticks": 1}, &ticked)
	if len(ticked.State.RecentEventIDs) != len(generated.State.RecentEventIDs)-1 {
		t.Fatalf("recent after tick = %v (was %v)", ticked.State.RecentEventIDs, generated.State.RecentEventIDs)
	}

	var listed domain.ListContentResult
	callTool(t, cs, "list_content", map[string]any{"query": `tags:"mystic"`}, &listed)
	if listed.Total != 2 {
		t.Fatalf("mystic entries = %+v", listed)
	}

	bad := callTool(t, cs, "generate_complication", map[string]any{
		"scene": map[string]any{"scene_phase": "lunch"},
	}, nil)
	if !bad.IsError {
		t.Fatal("expected tool error for an unknown phase")
	}

	resource, err := cs.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: domain.PacksResourceURI})
	if err != nil {
		t.Fatalf("read packs resource: %v", err)
	}
	if !strings.Contains(resource.Contents[0].Text, "core_loot") {
		t.Fatalf("packs resource = %s", resource.Contents[0].Text)
	}
}

func startSessionServer(t *testing.T) *grpc.ClientConn {
	t.Helper()
	store, err := sessionsqlite.Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	listener := bufconn.Listen(1 << 20)
	grpcServer := grpc.NewServer()
	sessions.RegisterSessionServiceServer(grpcServer, sessions.NewService(session.NewService(store, shippedCatalog(t))))
	go func() { _ = grpcServer.Serve(listener) }()
	t.Cleanup(grpcServer.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestGenerateFromUntaggedEntry(t *testing.T) {
	pack, err := content.Load(strings.NewReader(`[{"event_id": "quiet_draft", "title": "A quiet draft", "severity_band": [1, 10]}]`), "quiet")
	if err != nil {
		t.Fatalf("load pack: %v", err)
	}
	server, err := New(content.NewStore(pack), nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	cs := connect(t, server)

	var generated domain.GenerateComplicationResult
	result := callTool(t, cs, "generate_complication", map[string]any{
		"scene": map[string]any{"scene_phase": "engage"},
		"seed":  7,
	}, &generated)
	if result.IsError {
		t.Fatalf("generate returned tool error: %+v", result.Content)
	}
	if len(generated.Events) != 1 || generated.Events[0].EventID != "quiet_draft" {
		t.Fatalf("generated = %+v", generated)
	}
	if generated.Events[0].Tags == nil {
		t.Fatal("tags decoded as null")
	}
}

func TestSessionTools(t *testing.T) {
	server, err := New(shippedCatalog(t), startSessionServer(t))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() { _ = server.Close() })
	cs := connect(t, server)

	names := toolNames(t, cs)
	for _, name := range []string{"session_create", "session_generate", "session_events", "set_context"} {
		if !slices.Contains(names, name) {
			t.Fatalf("tool %s not registered: %v", name, names)
		}
	}

	var created domain.SessionResult
	callTool(t, cs, "session_create", map[string]any{
		"name":  "Vault heist",
		"seed":  "42",
		"scene": map[string]any{"preset": "confined"},
	}, &created)
	if created.Session.SessionID == "" || server.getContext().SessionID != created.Session.SessionID {
		t.Fatalf("created = %+v, context = %+v", created, server.getContext())
	}

	var generated sessions.GenerateResponse
	callTool(t, cs, "session_generate", map[string]any{"count": 2}, &generated)
	if len(generated.Events) != 2 || generated.Session.Sequence != 2 {
		t.Fatalf("generated = %+v", generated)
	}

	var events sessions.ListEventsResponse
	callTool(t, cs, "session_events", map[string]any{"newest": true, "page_size": 1}, &events)
	if len(events.Events) != 1 || events.Events[0].Sequence != 2 {
		t.Fatalf("events = %+v", events)
	}

	missing := callTool(t, cs, "set_context", map[string]any{"session_id": "missing"}, nil)
	if !missing.IsError {
		t.Fatal("expected tool error for a missing session")
	}
}

func TestRunUnsupportedTransport(t *testing.T) {
	err := Run(context.Background(), Config{Transport: "websocket", Catalog: shippedCatalog(t)})
	if err == nil || !strings.Contains(err.Error(), "not supported") {
		t.Fatalf("err = %v, want unsupported transport", err)
	}
}

func TestServeHTTPStopsOnCancel(t *testing.T) {
	server, err := New(shippedCatalog(t), nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.serveHTTP(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve HTTP: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serveHTTP did not stop after cancel")
	}
}

func TestMonitorHealthExitsOnCancel(t *testing.T) {
	server := &Server{conn: startSessionServer(t)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		server.monitorHealth(ctx, 10*time.Millisecond)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("monitorHealth did not exit after cancel")
	}
	_ = server.Close()
}
