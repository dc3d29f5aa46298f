package kasa

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"
)

// mockRelay is a minimal relay that answers each connection with reply(request).
type mockRelay struct {
	listener net.Listener
	reply    func(req []byte) []byte

	mu       sync.Mutex
	requests [][]byte

	wg sync.WaitGroup
}

func newMockRelay(t *testing.T, reply func(req []byte) []byte) *mockRelay {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	m := &mockRelay{listener: ln, reply: reply}
	m.wg.Add(1)
	go m.serve()
	t.Cleanup(m.Close)
	return m
}

func (m *mockRelay) serve() {
	defer m.wg.Done()
	for {
		conn, err := m.listener.Accept()
		if err != nil {
			return
		}
		m.wg.Add(1)
		go m.handle(conn)
	}
}

func (m *mockRelay) handle(conn net.Conn) {
	defer m.wg.Done()
	defer conn.Close()

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(conn, header); err != nil {
		return
	}
	body := make([]byte, binary.BigEndian.Uint32(header))
	if _, err := io.ReadFull(conn, body); err != nil {
		return
	}
	req := Decrypt(body)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if out := m.reply(req); out != nil {
		_, _ = conn.Write(out)
	}
}

func (m *mockRelay) Addr() string {
	return m.listener.Addr().String()
}

func (m *mockRelay) Requests() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.requests...)
}

func (m *mockRelay) Close() {
	m.listener.Close()
	m.wg.Wait()
}

func TestClient_Query(t *testing.T) {
	relay := newMockRelay(t, func([]byte) []byte {
		return Encrypt([]byte(`{"system":{"get_sysinfo":{"alias":"Lamp","relay_state":1,"err_code":0}}}`))
	})

	client := NewClient(ClientConfig{Timeout: time.Second})
	var resp SysInfoResponse
	if err := client.Query(context.Background(), relay.Addr(), GetSysInfoRequest(), &resp); err != nil {
		t.Fatalf("Query() error = %v", err)
	}

	if !resp.System.GetSysInfo.On() {
		t.Error("On() = false, want true")
	}
	if resp.System.GetSysInfo.Alias != "Lamp" {
		t.Errorf("Alias = %q, want Lamp", resp.System.GetSysInfo.Alias)
	}

	reqs := relay.Requests()
	if len(reqs) != 1 {
		t.Fatalf("relay saw %d requests, want 1", len(reqs))
	}
	var sent map[string]any
	if err := json.Unmarshal(reqs[0], &sent); err != nil {
		t.Fatalf("relay received invalid JSON %q: %v", reqs[0], err)
	}
	if _, ok := sent["system"]; !ok {
		t.Errorf("request %s has no system key", reqs[0])
	}

	stats := client.Stats()
	if stats.RequestsTotal != 1 {
		t.Errorf("RequestsTotal = %d, want 1", stats.RequestsTotal)
	}
	if stats.LastActivity.IsZero() {
		t.Error("LastActivity not recorded")
	}
}

func TestClient_Send_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	client := NewClient(ClientConfig{Timeout: 500 * time.Millisecond})
	_, err = client.Send(context.Background(), addr, []byte(`{}`))
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("Send() error = %v, want ErrUnreachable", err)
	}
	if got := client.Stats().Unreachable; got != 1 {
		t.Errorf("Unreachable = %d, want 1", got)
	}
}

func TestClient_Send_Timeout(t *testing.T) {
	relay := newMockRelay(t, func([]byte) []byte {
		time.Sleep(500 * time.Millisecond)
		return nil
	})

	client := NewClient(ClientConfig{Timeout: 100 * time.Millisecond})
	start := time.Now()
	_, err := client.Send(context.Background(), relay.Addr(), []byte(`{}`))
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("Send() error = %v, want ErrUnreachable", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Send() took %v, timeout not enforced", elapsed)
	}
}

func TestClient_Send_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		reply []byte
	}{
		{name: "oversize prefix", reply: []byte{0xFF, 0xFF, 0xFF, 0xFF}},
		{name: "truncated body", reply: []byte{0x00, 0x00, 0x00, 0x10, 0x01, 0x02}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			relay := newMockRelay(t, func([]byte) []byte { return tt.reply })
			client := NewClient(ClientConfig{Timeout: time.Second})

			_, err := client.Send(context.Background(), relay.Addr(), []byte(`{}`))
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("Send() error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestClient_Query_InvalidJSON(t *testing.T) {
	relay := newMockRelay(t, func([]byte) []byte {
		return Encrypt([]byte("not json"))
	})

	client := NewClient(ClientConfig{Timeout: time.Second})
	var resp SysInfoResponse
	err := client.Query(context.Background(), relay.Addr(), GetSysInfoRequest(), &resp)
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("Query() error = %v, want ErrMalformed", err)
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	relay := newMockRelay(t, func([]byte) []byte { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(ClientConfig{Timeout: time.Second})
	_, err := client.Send(ctx, relay.Addr(), []byte(`{}`))
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("Send() error = %v, want ErrUnreachable", err)
	}
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(ClientConfig{})
	if client.cfg.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", client.cfg.Port, DefaultPort)
	}
	if client.Timeout() != defaultTimeout {
		t.Errorf("Timeout() = %v, want %v", client.Timeout(), defaultTimeout)
	}
	if got := client.address("10.0.0.5"); got != "10.0.0.5:9999" {
		t.Errorf("address() = %q, want 10.0.0.5:9999", got)
	}
	if got := client.address("10.0.0.5:10000"); got != "10.0.0.5:10000" {
		t.Errorf("address() = %q, want explicit port kept", got)
	}
}
