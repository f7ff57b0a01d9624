package postgres

import (
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/martelinho/martelinho/internal/domain"
)

func TestDSN(t *testing.T) {
	cases := map[string]struct {
		cfg  ClientConfig
		want string
	}{
		"explicit dsn wins": {
			cfg:  ClientConfig{DSN: "postgres://x@y/z", Host: "ignored"},
			want: "postgres://x@y/z",
		},
		"defaults": {
			cfg:  ClientConfig{Host: "db", User: "mart", Password: "pw", Database: "martelinho"},
			want: "postgres://mart:pw@db:5432/martelinho?sslmode=disable",
		},
		"custom port and ssl": {
			cfg:  ClientConfig{Host: "db", Port: 6543, User: "u", Password: "p", Database: "d", SSLMode: "require"},
			want: "postgres://u:p@db:6543/d?sslmode=require",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := DSN(tc.cfg); got != tc.want {
				t.Errorf("DSN = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	joined := strings.Join(names, ",")
	for _, want := range []string{"001_listings.sql", "002_audit_log.sql"} {
		if !strings.Contains(joined, want) {
			t.Errorf("migration %s not embedded (have %s)", want, joined)
		}
	}
}

func TestNullable(t *testing.T) {
	if nullable("") != nil {
		t.Error("empty string should map to NULL")
	}
	if p := nullable("u1"); p == nil || *p != "u1" {
		t.Errorf("nullable(u1) = %v", p)
	}
}

func TestDSNEscapesCredentials(t *testing.T) {
	got := DSN(ClientConfig{Host: "db", User: "mart", Password: "p@ss/word", Database: "martelinho"})
	if !strings.Contains(got, "mart:p%40ss%2Fword@db:5432") {
		t.Errorf("DSN = %q", got)
	}
}

func TestPendingMigrations(t *testing.T) {
	all, err := pendingMigrations(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) < 2 || all[0] != "001_listings.sql" {
		t.Fatalf("pending = %v", all)
	}
	rest, err := pendingMigrations([]string{"001_listings.sql"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != len(all)-1 || rest[0] != "002_audit_log.sql" {
		t.Errorf("pending after 001 = %v", rest)
	}
}

func TestAuditQuery(t *testing.T) {
	since := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	cases := map[string]struct {
		opts     domain.ListOpts
		wantSQL  string
		wantArgs int
	}{
		"no filters": {
			wantSQL: "SELECT id, event, detail, created_at FROM audit_log ORDER BY created_at DESC, id DESC",
		},
		"listing and since with paging": {
			opts:     domain.ListOpts{ListingID: "ad-1", Since: &since, Limit: 20, Offset: 40},
			wantSQL:  "SELECT id, event, detail, created_at FROM audit_log WHERE listing_id = $1 AND created_at >= $2 ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4",
			wantArgs: 4,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			sql, args := auditQuery(tc.opts)
			if sql != tc.wantSQL {
				t.Errorf("sql = %q", sql)
			}
			if len(args) != tc.wantArgs {
				t.Errorf("args = %v", args)
			}
		})
	}
}
