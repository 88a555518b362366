package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{
		"logging": {"level": "debug", "console": true},
		"shutdown": {
			"enabled": true,
			"time": "04:00:00",
			"pre_announce": {"seconds": 1800, "message": "restart in %s"},
			"grace_delay": "15s",
			"exit_code": 2,
			"driver": "process"
		},
		"tick_interval": "250ms"
	}`)

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Shutdown.Enabled || cfg.Shutdown.Time != "04:00:00" {
		t.Fatalf("shutdown section: %+v", cfg.Shutdown)
	}
	if got := cfg.Shutdown.PreAnnounce.LeadSeconds(); got != 1800 {
		t.Fatalf("LeadSeconds = %d, want 1800", got)
	}
	if cfg.Shutdown.GraceDelay != "15s" || cfg.Shutdown.ExitCode != 2 {
		t.Fatalf("shutdown section: %+v", cfg.Shutdown)
	}
	if m.Get() != cfg {
		t.Fatal("Get should return the committed config")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{"shutdown": {"enabled": true, "tiem": "04:00:00"}, "logging": {}}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("typo'd field should be rejected")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{"logging": {}, "shutdown": {}}{"extra": 1}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("trailing JSON should be rejected")
	}
}

func TestParseYAML(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
logging:
  level: info
  console: true
shutdown:
  enabled: true
  time: "05:30:00"
  pre_announce:
    delay: 900
`)
	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Shutdown.Time != "05:30:00" {
		t.Fatalf("time = %q", cfg.Shutdown.Time)
	}
	if got := cfg.Shutdown.PreAnnounce.LeadSeconds(); got != 900 {
		t.Fatalf("LeadSeconds = %d, want 900 (delay alias)", got)
	}
}

func TestLeadSecondsAlias(t *testing.T) {
	t.Parallel()
	u := func(v uint32) *uint32 { return &v }
	cases := []struct {
		name string
		cfg  PreAnnounceConfig
		want uint32
	}{
		{"default", PreAnnounceConfig{}, DefaultPreAnnounceSeconds},
		{"seconds", PreAnnounceConfig{Seconds: u(10)}, 10},
		{"delay", PreAnnounceConfig{Delay: u(20)}, 20},
		{"seconds wins over delay", PreAnnounceConfig{Seconds: u(10), Delay: u(20)}, 10},
		{"explicit zero seconds", PreAnnounceConfig{Seconds: u(0)}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.LeadSeconds(); got != tc.want {
				t.Fatalf("LeadSeconds = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	t.Parallel()
	var sc ShutdownConfig
	if got := sc.TimeOrDefault(); got != DefaultShutdownTime {
		t.Fatalf("TimeOrDefault = %q", got)
	}
	var pa PreAnnounceConfig
	if got := pa.MessageOrDefault(); got != DefaultPreAnnounceMessage {
		t.Fatalf("MessageOrDefault = %q", got)
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()
	base := func() *Config {
		return &Config{
			Logging:  LoggingConfig{Level: "info"},
			Shutdown: ShutdownConfig{Enabled: true, Time: "04:00:00"},
		}
	}

	old, cur := base(), base()
	if got := SummarizeChange(old, cur); got != nil {
		t.Fatalf("identical configs reported changes: %v", got)
	}

	cur.Shutdown.Time = "05:00:00"
	cur.TickInterval = "1s"
	got := SummarizeChange(old, cur)
	want := []string{"shutdown", "tick_interval"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SummarizeChange = %v, want %v", got, want)
	}

	cur.Telegram = &TelegramConfig{Enabled: true, Token: "secret"}
	for _, section := range SummarizeChange(old, cur) {
		if section == "secret" {
			t.Fatal("summary leaked a value")
		}
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("grace_delay", "  10s "); err != nil || d != 10*time.Second {
		t.Fatalf("got %v, %v", d, err)
	}
	if d, err := ParseDurationField("grace_delay", ""); err != nil || d != 0 {
		t.Fatalf("empty should be zero, got %v, %v", d, err)
	}
	if _, err := ParseDurationField("grace_delay", "-5s"); err == nil {
		t.Fatal("negative duration should fail")
	}
	if _, err := ParseDurationField("grace_delay", "soon"); err == nil {
		t.Fatal("garbage should fail")
	}
	if d, err := ParseDurationOrDefault("tick_interval", "", 500*time.Millisecond); err != nil || d != 500*time.Millisecond {
		t.Fatalf("default not applied: %v, %v", d, err)
	}
}

func TestParseMissingFile(t *testing.T) {
	t.Parallel()
	_, err := NewManager(filepath.Join(t.TempDir(), "absent.json")).Parse()
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want not-exist", err)
	}
}
