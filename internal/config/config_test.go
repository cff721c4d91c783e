package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parley.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{}`))
	if err != nil {
		t.Fatal(err)
	}
	s := cfg.Scheduling
	if s.BusinessOpen != 8 || s.BusinessClose != 17 {
		t.Errorf("business hours defaults: %d-%d", s.BusinessOpen, s.BusinessClose)
	}
	if s.GranularityMin != 15 || s.TopN != 5 || s.MaxRounds != 10 {
		t.Errorf("scheduling defaults not applied: %+v", s)
	}
	if s.SearchHorizonDays != 3 || s.CounterLookaheadDays != 7 {
		t.Errorf("horizon defaults not applied: %+v", s)
	}
	if len(s.AllowedDurations) == 0 {
		t.Errorf("allowed durations default missing")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port default = %d", cfg.Server.Port)
	}
}

func TestLoadSubstitutesEnvVars(t *testing.T) {
	t.Setenv("TEST_PARLEY_DSN", "postgres://real:cred@db:5432/parley")
	path := writeConfig(t, `{
		"database": {
			"postgres": {"dsn": "${TEST_PARLEY_DSN}"},
			"redis": {"url": "${TEST_PARLEY_REDIS:redis://localhost:6379/0}"}
		}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database.Postgres.DSN != "postgres://real:cred@db:5432/parley" {
		t.Errorf("env value not substituted: %q", cfg.Database.Postgres.DSN)
	}
	// Unset variable falls back to the inline default.
	if cfg.Database.Redis.URL != "redis://localhost:6379/0" {
		t.Errorf("default not applied: %q", cfg.Database.Redis.URL)
	}
}

func TestLoadParsesParties(t *testing.T) {
	path := writeConfig(t, `{
		"parties": [
			{"id": "bob", "name": "Bob", "profile": "collaborative", "agent_ref": "agent://bob"},
			{"id": "alice", "name": "Alice", "profile": "analytical"}
		]
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Parties) != 2 {
		t.Fatalf("expected 2 parties, got %d", len(cfg.Parties))
	}
	if cfg.Parties[0].AgentRef != "agent://bob" || cfg.Parties[1].Profile != "analytical" {
		t.Errorf("party fields not preserved: %+v", cfg.Parties)
	}
}

func TestLoadValidDateBounds(t *testing.T) {
	path := writeConfig(t, `{
		"scheduling": {"valid_from": "2026-08-01", "valid_until": "2026-12-31"}
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	from, err := cfg.ValidFrom()
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 8, 1, 0, 0, 0, 0, time.Local)
	if !from.Equal(want) {
		t.Errorf("valid_from = %s, want %s", from, want)
	}

	empty, _ := Load(writeConfig(t, `{}`))
	if zero, _ := empty.ValidFrom(); !zero.IsZero() {
		t.Errorf("unset bound should parse to the zero time")
	}
}

func TestProfileOverrides(t *testing.T) {
	path := writeConfig(t, `{
		"parties": [{"id": "bob", "name": "Bob", "profile": "strict"}],
		"profiles": {"strict": {"soft_tolerance": 1}}
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	p, err := cfg.Party(cfg.Parties[0])
	if err != nil {
		t.Fatal(err)
	}
	if p.SoftTolerance != 1 {
		t.Errorf("override not applied: tolerance = %d", p.SoftTolerance)
	}
	// Unset fields keep the catalog values.
	if p.Flexibility != 3 || p.PriorityThreshold != 8 {
		t.Errorf("catalog values not preserved: %+v", p)
	}

	if _, err := Load(writeConfig(t, `{"profiles": {"chaotic": {}}}`)); err == nil {
		t.Errorf("override for an unknown profile should be rejected")
	}
}

func TestLoadRejectsBadConfig(t *testing.T) {
	if _, err := Load(writeConfig(t, `{"scheduling": {"business_open_hour": 18, "business_close_hour": 9}}`)); err == nil {
		t.Errorf("inverted business hours should be rejected")
	}
	if _, err := Load(writeConfig(t, `{"scheduling": {"valid_from": "next tuesday"}}`)); err == nil {
		t.Errorf("unparseable date bound should be rejected")
	}
	if _, err := Load(writeConfig(t, `{not json`)); err == nil {
		t.Errorf("malformed JSON should be rejected")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Errorf("missing file should be rejected")
	}
}
