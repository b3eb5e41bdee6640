package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	platformgrpc "github.com/louisbranch/spar/internal/platform/grpc"
	"github.com/louisbranch/spar/internal/services/session/api/grpc/sessions"
	"github.com/louisbranch/spar/internal/spar/scene"
)

const extraPack = `{
  "name": "heist_extras",
  "generator_type": "event",
  "entries": [
    {
      "event_id": "vault_door_seals",
      "title": "The vault door seals",
      "tags": ["hazard"],
      "severity_band": [1, 10],
      "weight": 1
    }
  ]
}`

func TestServerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SPAR_SESSION_DB_PATH", filepath.Join(dir, "nested", "sessions.db"))
	packPath := filepath.Join(dir, "heist_extras.json")
	if err := os.WriteFile(packPath, []byte(extraPack), 0o644); err != nil {
		t.Fatalf("write pack: %v", err)
	}

	srv, err := NewWithAddr("127.0.0.1:0", Options{PackPaths: []string{packPath}})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- srv.Serve(runCtx)
	}()
	t.Cleanup(func() {
		runCancel()
		select {
		case serveErr := <-serveDone:
			if serveErr != nil {
				t.Fatalf("serve: %v", serveErr)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for server shutdown")
		}
	})

	conn, err := platformgrpc.Dial(context.Background(), srv.Addr(), platformgrpc.DialOptions{
		Timeout: 3 * time.Second,
		Service: sessions.ServiceName,
	})
	if err != nil {
		t.Fatalf("dial session server: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	client := sessions.NewClient(conn)

	created, err := client.CreateSession(context.Background(), sessions.CreateSessionRequest{
		Seed: "42",
		Scene: scene.Context{
			SceneID:     "vault",
			Phase:       scene.PhaseEngage,
			Environment: []string{"confined"},
			Constraints: scene.Constraints{Confinement: 0.8, Connectivity: 0.3, Visibility: 0.6},
		},
		Selection: scene.Selection{EnabledPacks: []string{"heist_extras"}},
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	resp, err := client.Generate(context.Background(), sessions.GenerateRequest{SessionID: created.SessionID})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got := resp.Events[0].Event.EventID; got != "vault_door_seals" {
		t.Fatalf("event = %q, want vault_door_seals", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "nested", "sessions.db")); err != nil {
		t.Fatalf("db not created: %v", err)
	}
}

func TestNewRejectsMissingPack(t *testing.T) {
	t.Setenv("SPAR_SESSION_DB_PATH", filepath.Join(t.TempDir(), "sessions.db"))
	if _, err := NewWithAddr("127.0.0.1:0", Options{PackPaths: []string{"/no/such/pack.json"}}); err == nil {
		t.Fatal("expected error for missing pack")
	}
}

func TestNilServer(t *testing.T) {
	var srv *Server
	if srv.Addr() != "" {
		t.Fatal("nil server addr should be empty")
	}
	if err := srv.Serve(context.Background()); err == nil {
		t.Fatal("expected error serving nil server")
	}
	srv.Close()
}
