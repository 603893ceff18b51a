package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/webcrawler/internal/config"
	"github.com/nao1215/webcrawler/internal/database"
	"github.com/nao1215/webcrawler/internal/engine"
	"github.com/nao1215/webcrawler/internal/log"
	"github.com/nao1215/webcrawler/internal/model"
)

// writeConfigFile writes a YAML config file and returns its path.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestNewCrawlCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()
	tests := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{"url", "u", ""},
		{"file", "f", ""},
		{"output", "o", ""},
		{"format", "", "csv"},
		{"workers", "w", "5"},
		{"timeout", "t", "10s"},
		{"max-retries", "", "3"},
		{"ignore-robots", "", "false"},
		{"crawl-delay", "", "0s"},
		{"config", "c", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected shorthand %q, got %q", tt.shorthand, flag.Shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("expected default %q, got %q", tt.defValue, flag.DefValue)
			}
		})
	}
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("flags override defaults", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("config", writeConfigFile(t, "{}\n"))
		_ = cmd.Flags().Set("url", "https://example.com")
		_ = cmd.Flags().Set("output", "out")
		_ = cmd.Flags().Set("format", "json")
		_ = cmd.Flags().Set("workers", "8")
		_ = cmd.Flags().Set("max-retries", "5")
		_ = cmd.Flags().Set("ignore-robots", "true")
		_ = cmd.Flags().Set("no-history", "true")
		_ = cmd.Flags().Set("header", "Accept-Language: en-US")

		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.URL != "https://example.com" || cfg.OutputName != "out" {
			t.Errorf("unexpected target or output: %q, %q", cfg.URL, cfg.OutputName)
		}
		if cfg.Format != "json" {
			t.Errorf("expected format json, got %q", cfg.Format)
		}
		if cfg.Workers != 8 {
			t.Errorf("expected 8 workers, got %d", cfg.Workers)
		}
		if cfg.MaxRetries != 5 {
			t.Errorf("expected 5 retries, got %d", cfg.MaxRetries)
		}
		if cfg.RespectRobots {
			t.Error("expected robots to be ignored")
		}
		if cfg.SaveHistory {
			t.Error("expected history to be disabled")
		}
		if got := cfg.Headers["Accept-Language"]; got != "en-US" {
			t.Errorf("expected Accept-Language header en-US, got %q", got)
		}
		if cfg.OutputPath() != "out.json" {
			t.Errorf("expected output path out.json, got %q", cfg.OutputPath())
		}
	})

	t.Run("config file values apply unless a flag is set", func(t *testing.T) {
		t.Parallel()

		path := writeConfigFile(t, "workers: 12\ntimeout: 30s\nrespect_robots: false\nformat: json\n")
		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("config", path)
		_ = cmd.Flags().Set("workers", "2")

		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Workers != 2 {
			t.Errorf("expected flag to win with 2 workers, got %d", cfg.Workers)
		}
		if cfg.Timeout != 30*time.Second {
			t.Errorf("expected timeout from file 30s, got %v", cfg.Timeout)
		}
		if cfg.RespectRobots {
			t.Error("expected respect_robots from file to be false")
		}
		if cfg.Format != "json" {
			t.Errorf("expected format from file json, got %q", cfg.Format)
		}
		if cfg.ConfigFilePath != path {
			t.Errorf("expected config path %q, got %q", path, cfg.ConfigFilePath)
		}
	})

	t.Run("missing explicit config file is an error", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("config", filepath.Join(t.TempDir(), "missing.yaml"))

		_, err := buildConfig(cmd)
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("malformed header is an error", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("config", writeConfigFile(t, "{}\n"))
		_ = cmd.Flags().Set("header", "no-colon")

		_, err := buildConfig(cmd)
		if !errors.Is(err, errInvalidHeader) {
			t.Errorf("expected errInvalidHeader, got %v", err)
		}
	})
}

func TestRunCrawlCmdValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{"no target", []string{"-o", "out"}, config.ErrNoTarget},
		{"no output", []string{"-u", "https://example.com"}, config.ErrNoOutput},
		{"bad format", []string{"-u", "https://example.com", "-o", "out", "--format", "xml"}, config.ErrUnsupportedFormat},
		{"bad workers", []string{"-u", "https://example.com", "-o", "out", "-w", "0"}, config.ErrInvalidWorkers},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd := NewCrawlCmd()
			cmd.SetArgs(append(tt.args, "-c", writeConfigFile(t, "{}\n")))
			cmd.SetOut(io.Discard)
			cmd.SetErr(io.Discard)

			err := cmd.Execute()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// newSiteServer serves a small site with a robots.txt that blocks /private/.
func newSiteServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" && r.URL.Path != "/about" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<html><body><h1>Page %s</h1><p>Some text.</p><a href="/about">About</a></body></html>`, r.URL.Path)
	})
	mux.HandleFunc("/private/", func(w http.ResponseWriter, _ *http.Request) {
		t.Error("disallowed page was fetched")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRunCrawl(t *testing.T) {
	t.Parallel()

	srv := newSiteServer(t)
	dir := t.TempDir()

	urlFile := filepath.Join(dir, "urls.txt")
	urls := strings.Join([]string{
		"# pages to crawl",
		srv.URL + "/",
		srv.URL + "/about",
		srv.URL + "/private/secret",
		srv.URL + "/missing",
		srv.URL + "/",
	}, "\n")
	if err := os.WriteFile(urlFile, []byte(urls), 0600); err != nil {
		t.Fatal(err)
	}

	cfg := config.NewConfig()
	cfg.InputFile = urlFile
	cfg.OutputName = filepath.Join(dir, "out", "result")
	cfg.Format = "json"
	cfg.DBDir = filepath.Join(dir, "db")
	cfg.ShowProgress = true

	var stdout bytes.Buffer
	if err := runCrawl(context.Background(), cfg, log.Discard(), &stdout, io.Discard); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(cfg.OutputPath())
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	var got []model.ExtractedContent
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("output is not a JSON array: %v\n%s", err, data)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	for _, c := range got {
		if len(c.Titles) != 1 || !strings.HasPrefix(c.Titles[0], "Page /") {
			t.Errorf("unexpected titles for %s: %v", c.URL, c.Titles)
		}
	}

	output := stdout.String()
	for _, want := range []string{"Summary", "Wrote 2 result(s)", "Run #1 recorded"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, output)
		}
	}

	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open history: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	run, err := db.GetRun(ctx, 1)
	if err != nil {
		t.Fatalf("run not recorded: %v", err)
	}
	if !run.Finished() {
		t.Error("expected run to be finished")
	}
	want := model.Summary{Total: 4, Succeeded: 2, Disallowed: 1, Failed: 1}
	if run.Summary != want {
		t.Errorf("expected summary %+v, got %+v", want, run.Summary)
	}
	if run.Source != urlFile {
		t.Errorf("expected source %q, got %q", urlFile, run.Source)
	}

	pages, err := db.RunPages(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 2 {
		t.Errorf("expected 2 stored pages, got %d", len(pages))
	}

	failures, err := db.RunFailures(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	states := make(map[string]string, len(failures))
	for _, f := range failures {
		states[f.URL] = f.State
	}
	if states[srv.URL+"/private/secret"] != "disallowed" {
		t.Errorf("expected disallowed failure, got %v", states)
	}
	if states[srv.URL+"/missing"] != "failed" {
		t.Errorf("expected failed failure, got %v", states)
	}
}

func TestRunCrawlSingleURLWithoutHistory(t *testing.T) {
	t.Parallel()

	srv := newSiteServer(t)
	dir := t.TempDir()

	cfg := config.NewConfig()
	cfg.URL = srv.URL + "/"
	cfg.OutputName = filepath.Join(dir, "single")
	cfg.SaveHistory = false
	cfg.DBDir = filepath.Join(dir, "db")

	var stdout bytes.Buffer
	if err := runCrawl(context.Background(), cfg, log.Discard(), &stdout, io.Discard); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "single.csv"))
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %d lines:\n%s", len(lines), data)
	}
	if !strings.Contains(lines[0], "url") {
		t.Errorf("expected header with url column, got %q", lines[0])
	}
	if strings.Contains(stdout.String(), "recorded") {
		t.Error("expected no history line when history is disabled")
	}
	if _, err := os.Stat(cfg.DBDir); !os.IsNotExist(err) {
		t.Error("expected no history database to be created")
	}
}

func TestRunCrawlRobotsTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			select {
			case <-r.Context().Done():
			case <-release:
			}
			return
		}
		fmt.Fprint(w, "<html><body>ok</body></html>")
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.URL = srv.URL + "/"
	cfg.OutputName = filepath.Join(dir, "slow")
	cfg.Timeout = 300 * time.Millisecond
	cfg.SaveHistory = false

	var stdout bytes.Buffer
	start := time.Now()
	if err := runCrawl(context.Background(), cfg, log.Discard(), &stdout, io.Discard); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("expected crawl to finish after the robots timeout, took %v", elapsed)
	}
	if !strings.Contains(stdout.String(), "Wrote 0 result(s)") {
		t.Errorf("expected no results for a host whose robots.txt hangs, got:\n%s", stdout.String())
	}
}

func TestRunCrawlInvalidURL(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.URL = "not a url"
	cfg.OutputName = filepath.Join(dir, "bad")
	cfg.Format = "json"
	cfg.SaveHistory = false

	err := runCrawl(context.Background(), cfg, log.Discard(), io.Discard, io.Discard)
	if !errors.Is(err, engine.ErrNoValidURLs) {
		t.Fatalf("expected ErrNoValidURLs, got %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "bad.json"))
	if err != nil {
		t.Fatalf("expected output to be finalized: %v", err)
	}
	if string(data) != "[]\n" {
		t.Errorf("expected empty JSON array, got %q", data)
	}
}

func TestRunCrawlMissingURLFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.InputFile = filepath.Join(dir, "missing.txt")
	cfg.OutputName = filepath.Join(dir, "out")
	cfg.SaveHistory = false
	cfg.ShowProgress = false

	err := runCrawl(context.Background(), cfg, log.Discard(), io.Discard, io.Discard)
	if !errors.Is(err, engine.ErrNoValidURLs) {
		t.Fatalf("expected ErrNoValidURLs, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "out.csv")); err != nil {
		t.Errorf("expected output file to exist: %v", err)
	}
}
