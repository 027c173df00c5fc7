package config

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/waypoint/internal/errors"
	"github.com/vango-dev/waypoint/pkg/navigation"
	"github.com/vango-dev/waypoint/pkg/route"
)

const yamlConfig = `history:
  mode: hash
  base: /app
guards:
  timeout: 250ms
  parallel: true
navigation:
  maxRedirects: 4
state:
  store: memory:
  ttl: 1h
routes:
  - path: /
    name: home
  - path: /old
    redirect: /new
  - path: /new
    name: new
    meta:
      title: New
  - path: /users/:id
    name: user
    params:
      id: int
    children:
      - path: posts
        name: user-posts
`

const tomlConfig = `[history]
mode = "hash"
base = "/app"

[guards]
timeout = "250ms"
parallel = true

[navigation]
maxRedirects = 4

[state]
store = "memory:"
ttl = "1h"

[[routes]]
path = "/"
name = "home"

[[routes]]
path = "/old"
redirect = "/new"

[[routes]]
path = "/new"
name = "new"
[routes.meta]
title = "New"

[[routes]]
path = "/users/:id"
name = "user"
[routes.params]
id = "int"
[[routes.children]]
path = "posts"
name = "user-posts"
`

const jsonConfig = `{
  "history": {"mode": "hash", "base": "/app"},
  "guards": {"timeout": "250ms", "parallel": true},
  "navigation": {"maxRedirects": 4},
  "state": {"store": "memory:", "ttl": "1h"},
  "routes": [
    {"path": "/", "name": "home"},
    {"path": "/old", "redirect": "/new"},
    {"path": "/new", "name": "new", "meta": {"title": "New"}},
    {"path": "/users/:id", "name": "user", "params": {"id": "int"},
     "children": [{"path": "posts", "name": "user-posts"}]}
  ]
}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.History.Mode != ModeMemory {
		t.Errorf("History.Mode = %q, want %q", cfg.History.Mode, ModeMemory)
	}
	if cfg.Server.Addr != DefaultAddr {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, DefaultAddr)
	}
	if cfg.GuardTimeout() != 5*time.Second {
		t.Errorf("GuardTimeout() = %v, want 5s", cfg.GuardTimeout())
	}
	if cfg.Navigation.MaxRedirects != navigation.DefaultMaxRedirects {
		t.Errorf("MaxRedirects = %d", cfg.Navigation.MaxRedirects)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadFile_AllFormatsAgree(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"waypoint.yaml": yamlConfig,
		"waypoint.toml": tomlConfig,
		"waypoint.json": jsonConfig,
	}

	var configs []*Config
	for name, content := range files {
		cfg, err := LoadFile(writeFile(t, dir, name, content))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if cfg.History.Mode != ModeHash || cfg.History.Base != "/app" {
			t.Errorf("%s: history = %+v", name, cfg.History)
		}
		if cfg.GuardTimeout() != 250*time.Millisecond || !cfg.Guards.Parallel {
			t.Errorf("%s: guards = %+v", name, cfg.Guards)
		}
		if cfg.Navigation.MaxRedirects != 4 {
			t.Errorf("%s: maxRedirects = %d", name, cfg.Navigation.MaxRedirects)
		}
		if cfg.StateTTL() != time.Hour {
			t.Errorf("%s: state ttl = %v", name, cfg.StateTTL())
		}
		// Defaults fill what the file left out.
		if cfg.Server.BridgePath != DefaultBridgePath {
			t.Errorf("%s: bridge path = %q", name, cfg.Server.BridgePath)
		}
		configs = append(configs, cfg)
	}

	for _, cfg := range configs[1:] {
		if diff := cmp.Diff(configs[0].Routes, cfg.Routes); diff != "" {
			t.Errorf("routes differ between %s and %s (-first +other):\n%s", configs[0].Path(), cfg.Path(), diff)
		}
	}
}

func TestLoad_FindsConfigInDir(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for missing config")
	}
	if Exists(dir) {
		t.Error("Exists() = true for empty dir")
	}

	writeFile(t, dir, "waypoint.toml", tomlConfig)
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Dir() != dir {
		t.Errorf("Dir() = %q, want %q", cfg.Dir(), dir)
	}
	if !Exists(dir) {
		t.Error("Exists() = false")
	}
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		file     string
		content  string
		code     string
		line     int
		column   int
		noCreate bool
	}{
		{name: "missing", file: "none.yaml", code: "E100", noCreate: true},
		{name: "unsupported extension", file: "waypoint.ini", content: "x=1", code: "E102"},
		{name: "json syntax", file: "bad.json", content: "{\n  \"history\": {\"mode\": \"hash\",}\n}\n", code: "E101", line: 2, column: 30},
		{name: "json type", file: "type.json", content: "{\n  \"routes\": 3\n}\n", code: "E101", line: 2},
		{name: "yaml syntax", file: "bad.yaml", content: "history:\n\tmode: hash\n", code: "E101", line: 2},
		{name: "toml duplicate key", file: "bad.toml", content: "[history]\nmode = \"hash\"\nmode = \"memory\"\n", code: "E101", line: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			if !tt.noCreate {
				path = writeFile(t, dir, tt.file, tt.content)
			}
			_, err := LoadFile(path)
			var ce *errors.Error
			if !stderrors.As(err, &ce) {
				t.Fatalf("LoadFile error = %v, want *errors.Error", err)
			}
			if ce.Code != tt.code {
				t.Errorf("code = %s, want %s (%v)", ce.Code, tt.code, err)
			}
			if tt.line == 0 {
				return
			}
			if ce.Location == nil {
				t.Fatalf("no location on %v", err)
			}
			if ce.Location.File != path || ce.Location.Line != tt.line {
				t.Errorf("location = %s, want %s:%d", ce.Location, path, tt.line)
			}
			if tt.column != 0 && ce.Location.Column != tt.column {
				t.Errorf("column = %d, want %d", ce.Location.Column, tt.column)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		code   string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad mode", func(c *Config) { c.History.Mode = "pushstate" }, "E104"},
		{"negative cap", func(c *Config) { c.History.Cap = -1 }, "E104"},
		{"tier order", func(c *Config) { c.Matcher.WarmAfter = 9 }, "E104"},
		{"bad duration", func(c *Config) { c.Guards.Timeout = "soon" }, "E103"},
		{"negative duration", func(c *Config) { c.State.TTL = "-1h" }, "E103"},
		{"route without path", func(c *Config) { c.Routes = []RouteConfig{{Name: "x"}} }, "E110"},
		{"two redirects", func(c *Config) {
			c.Routes = []RouteConfig{{Path: "/a", Redirect: "/b", RedirectName: "b"}}
		}, "E113"},
		{"duplicate nested name", func(c *Config) {
			c.Routes = []RouteConfig{
				{Path: "/a", Name: "a"},
				{Path: "/b", Children: []RouteConfig{{Path: "c", Name: "a"}}},
			}
		}, "E111"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.code == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			var ce *errors.Error
			if !stderrors.As(err, &ce) || ce.Code != tt.code {
				t.Errorf("Validate() = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestRouteTable(t *testing.T) {
	cfg, err := Parse([]byte(yamlConfig), FormatYAML)
	if err != nil {
		t.Fatal(err)
	}
	routes := cfg.RouteTable()
	if len(routes) != 4 {
		t.Fatalf("routes = %d, want 4", len(routes))
	}
	if got, ok := routes[1].Redirect.(route.RedirectPath); !ok || got != "/new" {
		t.Errorf("redirect = %#v, want RedirectPath(/new)", routes[1].Redirect)
	}
	if routes[2].Meta["title"] != "New" {
		t.Errorf("meta = %v", routes[2].Meta)
	}
	if routes[3].Params["id"] != "int" || len(routes[3].Children) != 1 {
		t.Errorf("user route = %+v", routes[3])
	}

	cfg.Routes = append(cfg.Routes, RouteConfig{Path: "/me", RedirectName: "user"})
	last := cfg.RouteTable()[4]
	if got, ok := last.Redirect.(route.RedirectLocation); !ok || got.Name != "user" {
		t.Errorf("named redirect = %#v", last.Redirect)
	}
}

func TestEngineOptions(t *testing.T) {
	cfg, err := Parse([]byte(jsonConfig), FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	opts, err := cfg.EngineOptions()
	if err != nil {
		t.Fatalf("EngineOptions: %v", err)
	}

	e, err := navigation.NewEngine(opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Destroy()

	ctx := context.Background()
	if err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := e.PushPath(ctx, "/old"); err != nil {
		t.Fatalf("push /old: %v", err)
	}
	if got := e.CurrentRoute().Name; got != "new" {
		t.Errorf("route = %q, want new", got)
	}
	if err := e.PushPath(ctx, "/users/7/posts"); err != nil {
		t.Fatalf("push posts: %v", err)
	}
	if got := e.CurrentRoute().Name; got != "user-posts" {
		t.Errorf("route = %q, want user-posts", got)
	}

	cfg.Guards.Timeout = "never"
	if _, err := cfg.EngineOptions(); err == nil {
		t.Error("EngineOptions accepted an invalid config")
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		spec string
		code string
	}{
		{"memory:", ""},
		{"", ""},
		{"bolt:" + filepath.Join(dir, "state.db"), ""},
		{"sqlite:" + filepath.Join(dir, "state.sqlite"), ""},
		{"bolt:", "E131"},
		{"redis:localhost", "E131"},
		{"bolt:" + filepath.Join(dir, "missing", "state.db"), "E130"},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			store, err := OpenStore(ctx, tt.spec)
			if tt.code != "" {
				var ce *errors.Error
				if !stderrors.As(err, &ce) || ce.Code != tt.code {
					t.Errorf("OpenStore(%q) = %v, want %s", tt.spec, err, tt.code)
				}
				return
			}
			if err != nil {
				t.Fatalf("OpenStore(%q): %v", tt.spec, err)
			}
			defer store.Close()

			expires := time.Now().Add(time.Hour)
			if err := store.Save(ctx, "k", []byte("v"), expires); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, err := store.Load(ctx, "k")
			if err != nil || string(got) != "v" {
				t.Errorf("Load = %q, %v", got, err)
			}
		})
	}
}
