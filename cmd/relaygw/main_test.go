package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/relay-gateway/internal/infrastructure/config"
	"github.com/nerrad567/relay-gateway/internal/infrastructure/database"
	"github.com/nerrad567/relay-gateway/internal/provider"
	"github.com/nerrad567/relay-gateway/migrations"
)

const relaysYAML = `
relays:
  - type: KasaPlug
    ip: 10.0.0.1
    name: Lamp
    room: office
    tags: [all, lights]
  - type: KasaMultiPlug
    ip: 10.0.0.2
    names: [Desk, Monitor]
    room: office
presets:
  - name: Evening
    relays:
      Lamp: true
      Desk: false
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// freePort returns a TCP port that was free a moment ago.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close() //nolint:errcheck // Only needed the port number
	return port
}

func TestGetConfigPath(t *testing.T) {
	tests := []struct {
		name string
		flag string
		env  string
		want string
	}{
		{name: "default", want: defaultConfigPath},
		{name: "environment", env: "/etc/relaygw/config.yaml", want: "/etc/relaygw/config.yaml"},
		{name: "flag wins", flag: "local.yaml", env: "/etc/relaygw/config.yaml", want: "local.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("RELAYGW_CONFIG", tt.env)
			if got := getConfigPath(tt.flag); got != tt.want {
				t.Errorf("getConfigPath(%q) = %q, want %q", tt.flag, got, tt.want)
			}
		})
	}
}

func TestRun_InvalidConfigPath(t *testing.T) {
	err := run(context.Background(), "/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("run() expected error for missing config, got nil")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("error = %v, want it to mention loading config", err)
	}
}

func TestRun_MissingRelayDocument(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", fmt.Sprintf(`
source:
  kind: local
  path: %s
logging:
  level: error
`, filepath.Join(dir, "missing.yaml")))

	err := run(context.Background(), cfgPath)
	if err == nil {
		t.Fatal("run() expected error for missing relay document, got nil")
	}
	if !strings.Contains(err.Error(), "loading relay configuration") {
		t.Errorf("error = %v, want it to mention the relay configuration", err)
	}
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	dir := t.TempDir()
	docPath := writeFile(t, dir, "relays.yaml", "relays: []\n")
	port := freePort(t)
	cfgPath := writeFile(t, dir, "config.yaml", fmt.Sprintf(`
source:
  kind: local
  path: %s
refresh:
  auto: true
  interval: 60
database:
  path: %s
audit:
  enabled: true
api:
  host: 127.0.0.1
  port: %d
logging:
  level: error
`, docPath, filepath.Join(dir, "relaygw.db"), port))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfgPath) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/health", port)
	deadline := time.Now().Add(5 * time.Second)
	healthy := false
	for time.Now().Before(deadline) {
		resp, err := http.Get(url) //nolint:gosec // Test URL
		if err == nil {
			resp.Body.Close() //nolint:errcheck // Test cleanup
			if resp.StatusCode == http.StatusOK {
				healthy = true
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	if !healthy {
		cancel()
		t.Fatalf("gateway never reported healthy on %s", url)
	}

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/history", port)) //nolint:gosec // Test URL
	if err != nil {
		cancel()
		t.Fatalf("GET /history error = %v", err)
	}
	resp.Body.Close() //nolint:errcheck // Test cleanup
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /history status = %d, want 200 with audit enabled", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() = %v, want nil on shutdown", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancellation")
	}
}

func TestRunImport_SQLite(t *testing.T) {
	dir := t.TempDir()
	docPath := writeFile(t, dir, "relays.yaml", relaysYAML)
	dbPath := filepath.Join(dir, "relaygw.db")

	cfg, err := config.Load(writeFile(t, dir, "config.yaml", fmt.Sprintf(`
source:
  kind: sqlite
database:
  path: %s
logging:
  level: error
`, dbPath)))
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}

	var out bytes.Buffer
	if err := runImport(context.Background(), cfg, docPath, "", &out); err != nil {
		t.Fatalf("runImport() error = %v", err)
	}
	if !strings.Contains(out.String(), "imported 2 relays and 1 presets") {
		t.Errorf("output = %q", out.String())
	}

	db, err := database.Open(database.Config{Path: dbPath, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup
	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	doc, err := provider.NewSQLiteProvider(db, provider.NewBuilder(nil, 1, nil)).Document(context.Background())
	if err != nil {
		t.Fatalf("Document() error = %v", err)
	}
	if len(doc.Relays) != 2 || len(doc.Presets) != 1 {
		t.Errorf("stored %d relays / %d presets, want 2 / 1", len(doc.Relays), len(doc.Presets))
	}
}

func TestRunImport_Errors(t *testing.T) {
	dir := t.TempDir()
	docPath := writeFile(t, dir, "relays.yaml", relaysYAML)
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("config.Default() error = %v", err)
	}
	cfg.Database.Path = filepath.Join(dir, "relaygw.db")

	tests := []struct {
		name   string
		path   string
		target string
		want   string
	}{
		{name: "missing document", path: filepath.Join(dir, "nope.yaml"), want: "reading"},
		{name: "unknown target", path: docPath, target: "etcd", want: `"etcd"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runImport(context.Background(), cfg, tt.path, tt.target, &bytes.Buffer{})
			if err == nil {
				t.Fatal("runImport() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to mention %s", err, tt.want)
			}
		})
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "relaygw "+version) {
		t.Errorf("output = %q", out.String())
	}
}
