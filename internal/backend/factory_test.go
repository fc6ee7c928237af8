package backend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"billsplit/internal/config"
	"billsplit/internal/core"
)

func TestFromAppConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.Config
		want    BackendType
		wantErr string
	}{
		{name: "nil config", cfg: nil, wantErr: "app config is nil"},
		{name: "unknown backend", cfg: &config.Config{DataBackend: "sheets"}, wantErr: "invalid backend type in config: sheets"},
		{name: "memory", cfg: &config.Config{DataBackend: "memory"}, want: MemoryBackend},
		{name: "sqlite", cfg: &config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db"}, want: SQLiteBackend},
		{name: "postgres", cfg: &config.Config{DataBackend: "postgres", PostgresDSN: "postgres://x"}, want: PostgresBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAppConfig(tt.cfg)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Type != tt.want {
				t.Errorf("Type = %s, want %s", got.Type, tt.want)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory needs nothing", Config{Type: MemoryBackend}, false},
		{"sqlite needs a path", Config{Type: SQLiteBackend}, true},
		{"postgres needs a dsn", Config{Type: PostgresBackend}, true},
		{"empty type", Config{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	ctx := context.Background()
	seed := []core.Expense{{ID: 7, Name: "Seeded", Amount: 10, Category: core.Food, EventName: "Default", CreatedAt: time.Unix(0, 0)}}

	res, err := NewFactory(nil).CreateBackend(ctx, Config{Type: MemoryBackend, Seed: seed})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer res.Cleanup()

	d, err := core.NewDraft("Lunch", 250, core.Food, "Default", time.Now())
	if err != nil {
		t.Fatalf("draft: %v", err)
	}
	e, err := res.Backend.InsertExpense(ctx, d)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if e.ID != 8 {
		t.Errorf("id = %d, want 8 after seeded id 7", e.ID)
	}
}

func TestCreateSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "billsplit.db")

	res, err := NewFactory(nil).CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: path})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	d, err := core.NewDraft("Taxi", 300, core.Travel, "Goa", time.Now())
	if err != nil {
		t.Fatalf("draft: %v", err)
	}
	if _, err := res.Backend.InsertExpense(ctx, d); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := res.Cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	res, err = NewFactory(nil).CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer res.Cleanup()
	list, err := res.Backend.ListExpenses(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Name != "Taxi" {
		t.Fatalf("reopened list = %+v", list)
	}
}

func TestCreateBackendRejectsInvalidConfig(t *testing.T) {
	if _, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: "sheets"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
