package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/unklstewy/aprs-notify/internal/db"
	"github.com/unklstewy/aprs-notify/internal/notify"
	"github.com/unklstewy/aprs-notify/internal/runner"
	"github.com/unklstewy/aprs-notify/pkg/config"
)

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	return writeConfigJSON(t, fmt.Sprintf(`{
		"aprsfi": {"api_key": "test-key", "base_url": %q},
		"monitor": {"callsign": "N0CALL-9"},
		"home": {"latitude": 0, "longitude": 0, "timezone": "UTC"}
	}`, baseURL))
}

func writeConfigJSON(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"Unknown mode", []string{"loud"}},
		{"Too many modes", []string{"auto", "text"}},
		{"Unknown flag", []string{"-x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := run(tt.args, &stdout, &stderr); code != exitUsage {
				t.Errorf("run(%v) = %d, want %d", tt.args, code, exitUsage)
			}
			if !strings.Contains(stderr.String(), "Usage: aprs-notify") {
				t.Errorf("Expected usage text, got %q", stderr.String())
			}
		})
	}
}

func TestRunNotConfigured(t *testing.T) {
	t.Setenv("APRS_NOTIFY_API_KEY", "")
	t.Setenv("APRS_NOTIFY_CALLSIGN", "")
	var stdout, stderr bytes.Buffer
	missing := filepath.Join(t.TempDir(), "config.json")

	if code := run([]string{"-config", missing, "text"}, &stdout, &stderr); code != exitError {
		t.Fatalf("run() = %d, want %d", code, exitError)
	}
	if !strings.Contains(stderr.String(), "https://aprs.fi/account/") {
		t.Errorf("Expected instructions on stderr, got %q", stderr.String())
	}
	if !strings.Contains(stderr.String(), missing) {
		t.Errorf("Expected config path in instructions, got %q", stderr.String())
	}
}

func TestRunTextMode(t *testing.T) {
	now := time.Now().Unix()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("name") != "N0CALL-9" {
			t.Errorf("Unexpected name %q", r.URL.Query().Get("name"))
		}
		fmt.Fprintf(w, `{"command":"get","result":"ok","what":"loc","found":1,"entries":[
			{"name":"N0CALL-9","type":"l","time":"%d","lasttime":"%d","lat":"0.00000","lng":"0.00000",
			 "comment":"parked","srccall":"N0CALL-9"}]}`, now, now)
	}))
	defer server.Close()

	var stdout, stderr bytes.Buffer
	code := run([]string{"-config", writeConfig(t, server.URL), "text"}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("run() = %d, stderr %q", code, stderr.String())
	}
	if !strings.HasPrefix(stdout.String(), "N0CALL-9: parked: At 0.00000 0.00000 as of ") {
		t.Errorf("Unexpected console output %q", stdout.String())
	}
	if !strings.Contains(stdout.String(), "Currently at home. ") {
		t.Errorf("Expected home clause, got %q", stdout.String())
	}
}

func parkedServer(t *testing.T) *httptest.Server {
	t.Helper()
	now := time.Now().Unix()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"command":"get","result":"ok","what":"loc","found":1,"entries":[
			{"name":"N0CALL-9","type":"l","time":"%d","lasttime":"%d","lat":"0.00000","lng":"0.00000",
			 "comment":"parked","srccall":"N0CALL-9"}]}`, now, now)
	}))
}

func TestRunWithSQLiteHistory(t *testing.T) {
	server := parkedServer(t)
	defer server.Close()

	dsn := filepath.Join(t.TempDir(), "history.db")
	path := writeConfigJSON(t, fmt.Sprintf(`{
		"aprsfi": {"api_key": "test-key", "base_url": %q},
		"monitor": {"callsign": "N0CALL-9"},
		"home": {"latitude": 0, "longitude": 0, "timezone": "UTC"},
		"history": {"enabled": true, "driver": "sqlite", "dsn": %q, "retention_days": 30}
	}`, server.URL, dsn))

	var stdout, stderr bytes.Buffer
	code := run([]string{"-config", path, "-v", "text"}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("run() = %d, stderr %q", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "History stored in sqlite database") {
		t.Errorf("Expected driver in verbose log, got %q", stderr.String())
	}
	if !strings.HasPrefix(stdout.String(), "N0CALL-9: parked: ") {
		t.Errorf("Unexpected console output %q", stdout.String())
	}

	database, err := db.Open(context.Background(), config.HistoryConfig{Driver: db.DriverSQLite, DSN: dsn})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer database.Close()

	recs, err := db.NewPositionRepository(database).Recent(context.Background(), "N0CALL-9", 5)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(recs) != 1 || recs[0].Title != "N0CALL-9: parked" {
		t.Errorf("Expected one recorded position, got %+v", recs)
	}
}

func TestRunTextModeNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"command":"get","result":"ok","what":"loc","found":0,"entries":[]}`)
	}))
	defer server.Close()

	var stdout, stderr bytes.Buffer
	code := run([]string{"-config", writeConfig(t, server.URL), "text"}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("run() = %d, stderr %q", code, stderr.String())
	}
	if stdout.String() != "Can't find N0CALL-9: No results returned from aprs.fi\n" {
		t.Errorf("Unexpected console output %q", stdout.String())
	}
}

func TestRunFetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"command":"get","result":"fail","description":"authentication failed"}`)
	}))
	defer server.Close()

	var stdout, stderr bytes.Buffer
	code := run([]string{"-config", writeConfig(t, server.URL), "text"}, &stdout, &stderr)
	if code != exitError {
		t.Fatalf("run() = %d, want %d", code, exitError)
	}
	if !strings.Contains(stderr.String(), "authentication failed") {
		t.Errorf("Expected API error on stderr, got %q", stderr.String())
	}
	if stdout.Len() != 0 {
		t.Errorf("Expected no notification, got %q", stdout.String())
	}
}

func TestBuildNotifier(t *testing.T) {
	cfg := config.DefaultConfig()

	if _, ok := buildNotifier(cfg, runner.NotifyDesktop, nil).(*notify.Desktop); !ok {
		t.Error("Expected desktop notifier")
	}
	if _, ok := buildNotifier(cfg, runner.NotifyConsole, &bytes.Buffer{}).(*notify.Console); !ok {
		t.Error("Expected console notifier")
	}
	if _, ok := buildNotifier(cfg, runner.NotifyNone, nil).(notify.Nop); !ok {
		t.Error("Expected no-op notifier")
	}

	cfg.MQTT.Enabled = true
	multi, ok := buildNotifier(cfg, runner.NotifyNone, nil).(notify.Multi)
	if !ok || len(multi) != 2 {
		t.Fatalf("Expected desktop-less fan-out with MQTT, got %T", multi)
	}
	if _, ok := multi[1].(*notify.MQTT); !ok {
		t.Errorf("Expected MQTT notifier, got %T", multi[1])
	}
}
