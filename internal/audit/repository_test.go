package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/relay-gateway/internal/infrastructure/database"
	"github.com/nerrad567/relay-gateway/migrations"
)

func openRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "audit.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db)
}

func seed(t *testing.T, repo *SQLiteRepository, base time.Time) {
	t.Helper()
	entries := []Entry{
		{Action: ActionCommand, Kind: "relay", Outcome: "ok", Details: map[string]any{"elapsed_ms": 12}},
		{Action: ActionState, Kind: "relay.state", Details: map[string]any{"relays": map[string]any{"Lamp": true}}},
		{Action: ActionCommand, Kind: "preset_set", Outcome: "ok"},
		{Action: ActionFailure, Kind: "relay", Outcome: "error", Details: map[string]any{"error": "unreachable"}},
	}
	for i := range entries {
		entries[i].CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := repo.Create(context.Background(), &entries[i]); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if entries[i].ID == "" {
			t.Fatal("Create() did not assign an ID")
		}
	}
}

func TestSQLiteRepository_List(t *testing.T) {
	repo := openRepo(t)
	seed(t, repo, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
		wantKinds []string
	}{
		{
			name:      "all newest first",
			filter:    Filter{},
			wantTotal: 4,
			wantKinds: []string{"relay", "preset_set", "relay.state", "relay"},
		},
		{
			name:      "by action",
			filter:    Filter{Action: ActionCommand},
			wantTotal: 2,
			wantKinds: []string{"preset_set", "relay"},
		},
		{
			name:      "by action and kind",
			filter:    Filter{Action: ActionFailure, Kind: "relay"},
			wantTotal: 1,
			wantKinds: []string{"relay"},
		},
		{
			name:      "paged",
			filter:    Filter{Limit: 2, Offset: 1},
			wantTotal: 4,
			wantKinds: []string{"preset_set", "relay.state"},
		},
		{
			name:      "no match",
			filter:    Filter{Kind: "tag"},
			wantTotal: 0,
			wantKinds: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := repo.List(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if res.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", res.Total, tt.wantTotal)
			}
			if len(res.Entries) != len(tt.wantKinds) {
				t.Fatalf("got %d entries, want %d", len(res.Entries), len(tt.wantKinds))
			}
			for i, want := range tt.wantKinds {
				if res.Entries[i].Kind != want {
					t.Errorf("Entries[%d].Kind = %q, want %q", i, res.Entries[i].Kind, want)
				}
			}
		})
	}
}

func TestSQLiteRepository_ListDecodesFields(t *testing.T) {
	repo := openRepo(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seed(t, repo, base)

	res, err := repo.List(context.Background(), Filter{Action: ActionFailure})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	e := res.Entries[0]
	if e.Outcome != "error" {
		t.Errorf("Outcome = %q, want error", e.Outcome)
	}
	if e.Details["error"] != "unreachable" {
		t.Errorf("Details = %v", e.Details)
	}
	if !e.CreatedAt.Equal(base.Add(3 * time.Second)) {
		t.Errorf("CreatedAt = %v", e.CreatedAt)
	}

	res, err = repo.List(context.Background(), Filter{Kind: "preset_set"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Entries[0].Details != nil {
		t.Errorf("Details = %v, want nil for entry stored without details", res.Entries[0].Details)
	}
}

func TestSQLiteRepository_ListClampsLimit(t *testing.T) {
	repo := openRepo(t)

	for _, tt := range []struct{ in, want int }{{0, defaultLimit}, {-5, defaultLimit}, {1000, maxLimit}, {10, 10}} {
		res, err := repo.List(context.Background(), Filter{Limit: tt.in, Offset: -1})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if res.Limit != tt.want || res.Offset != 0 {
			t.Errorf("Limit %d -> %d/%d, want %d/0", tt.in, res.Limit, res.Offset, tt.want)
		}
	}
}

func TestSQLiteRepository_Prune(t *testing.T) {
	repo := openRepo(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seed(t, repo, base)

	n, err := repo.Prune(context.Background(), base.Add(2*time.Second))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Prune() removed %d, want 2", n)
	}

	res, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Total != 2 {
		t.Errorf("Total after prune = %d, want 2", res.Total)
	}
}
