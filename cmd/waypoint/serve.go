package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/vango-dev/waypoint/internal/config"
	"github.com/vango-dev/waypoint/internal/errors"
	"github.com/vango-dev/waypoint/pkg/cache"
	"github.com/vango-dev/waypoint/pkg/history"
	"github.com/vango-dev/waypoint/pkg/history/bridge"
	"github.com/vango-dev/waypoint/pkg/middleware"
	"github.com/vango-dev/waypoint/pkg/navigation"
	"github.com/vango-dev/waypoint/pkg/route"
)

//go:embed client.js
var clientJS []byte

const clientPath = "/_waypoint/client.js"

func serveCmd(c *cli) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the history bridge for browsers",
		Long: `Serve a page that connects to the history bridge. Every browser tab
gets its own navigation engine over the route table, driving the tab's
history through a WebSocket.

Endpoints:
  /                    demo page (any unknown path)
  /ws                  history bridge (server.bridgePath)
  /metrics             Prometheus metrics (server.metricsPath)
  /healthz             liveness
  /_waypoint/sessions  connected tabs and their routes

Examples:
  waypoint serve
  waypoint serve --addr 0.0.0.0:8080 -r /=home -r /about=about`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := newServer(c, cfg)
			printBanner(cmd.OutOrStdout())
			c.success(cmd.OutOrStdout(), "Listening on http://%s", cfg.Server.Addr)
			c.info(cmd.OutOrStdout(), "bridge %s, metrics %s, history %s", cfg.Server.BridgePath, cfg.Server.MetricsPath, cfg.History.Mode)
			return srv.run(ctx)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Address to listen on (default from config)")

	return cmd
}

// server runs one engine per connected browser tab.
type server struct {
	cli      *cli
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *middleware.Metrics
	tabs     prometheus.Gauge

	mu      sync.Mutex
	engines map[*bridge.Remote]*navigation.Engine

	// retired accumulates the cache counters of closed engines.
	retired map[string]cache.Stats
}

func newServer(c *cli, cfg *config.Config) *server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &server{
		cli:      c,
		cfg:      cfg,
		logger:   c.logger.With("component", "serve"),
		registry: registry,
		metrics:  middleware.NewMetrics(middleware.WithRegistry(registry)),
		tabs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "waypoint",
			Name:      "bridge_connections",
			Help:      "Connected browser tabs",
		}),
		engines: make(map[*bridge.Remote]*navigation.Engine),
		retired: make(map[string]cache.Stats),
	}
	registry.MustRegister(s.tabs, middleware.NewCacheCollector(s))
	return s
}

func (s *server) handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get(clientPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		w.Write(clientJS)
	})
	r.Get("/_waypoint/sessions", s.sessions)
	r.Method(http.MethodGet, s.cfg.Server.MetricsPath,
		promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))
	r.Method(http.MethodGet, s.cfg.Server.BridgePath, &bridge.Handler{
		OnConnect:    s.connect,
		OnDisconnect: s.disconnect,
		CheckOrigin:  s.checkOrigin(),
		ReadTimeout:  s.cfg.IdleTimeout(),
		Logger:       s.logger.With("component", "bridge"),
	})

	// Page requests are logged; the bridge and metrics are not.
	r.Group(func(r chi.Router) {
		r.Use(chimw.Logger)
		r.Get("/*", s.page)
	})
	return r
}

func (s *server) run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.closeAll()
		return errors.New("E141").WithDetail(s.cfg.Server.Addr).Wrap(err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := httpServer.Shutdown(shutdownCtx)
	s.closeAll()
	if err != nil {
		return errors.New("E141").WithDetail("shutdown").Wrap(err)
	}
	return nil
}

// closeAll ends the hijacked bridge connections, which Shutdown leaves open.
func (s *server) closeAll() {
	s.mu.Lock()
	remotes := make([]*bridge.Remote, 0, len(s.engines))
	for r := range s.engines {
		remotes = append(remotes, r)
	}
	s.mu.Unlock()
	for _, r := range remotes {
		r.Close()
	}
}

func (s *server) connect(r *bridge.Remote) {
	logger := s.logger.With("conn", r.ID)

	var h history.History
	webOpts := append(s.cfg.WebOptions(), history.WithLogger(logger))
	if s.cfg.History.Mode == config.ModeHash || !r.SupportsHistory() {
		h = history.NewHash(r, webOpts...)
	} else {
		browser, err := history.NewBrowser(r, webOpts...)
		if err != nil {
			logger.Error("history unavailable", "error", err)
			r.Close()
			return
		}
		h = browser
	}

	engine, err := s.cli.newEngine(s.cfg, h,
		navigation.WithLogger(logger),
		navigation.WithMiddleware(s.metrics.Middleware(), middleware.OpenTelemetry()),
	)
	if err != nil {
		logger.Error("engine setup failed", "error", err)
		r.Close()
		return
	}

	r.OnNavigate(func(url string, replace bool) {
		raw := route.ParsePath(strings.TrimPrefix(url, "#"))
		raw.Replace = replace
		if err := engine.Push(context.Background(), raw); err != nil {
			logger.Info("navigation did not commit", "to", url, "error", err)
		}
	})

	s.mu.Lock()
	s.engines[r] = engine
	s.mu.Unlock()
	s.tabs.Inc()

	if err := engine.Start(context.Background()); err != nil {
		logger.Warn("initial navigation failed", "url", r.URL(), "error", err)
	}
}

func (s *server) disconnect(r *bridge.Remote) {
	s.mu.Lock()
	engine, ok := s.engines[r]
	if ok {
		delete(s.engines, r)
		for name, st := range engine.Caches().Snapshot() {
			s.retired[name] = addStats(s.retired[name], st, false)
		}
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	s.tabs.Dec()
	engine.Destroy()
}

// Snapshot sums the cache stats of all engines, live and closed. Entry
// counts cover live engines only.
func (s *server) Snapshot() map[string]cache.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]cache.Stats, len(s.retired))
	for name, st := range s.retired {
		out[name] = addStats(cache.Stats{}, st, false)
	}
	for _, engine := range s.engines {
		for name, st := range engine.Caches().Snapshot() {
			out[name] = addStats(out[name], st, true)
		}
	}
	return out
}

func addStats(sum, st cache.Stats, live bool) cache.Stats {
	sum.Hits += st.Hits
	sum.Misses += st.Misses
	sum.Evictions += st.Evictions
	sum.Expired += st.Expired
	sum.Promotions += st.Promotions
	sum.Demotions += st.Demotions
	if !live {
		return sum
	}
	sum.Entries += st.Entries
	for tier, n := range st.TierEntries {
		if sum.TierEntries == nil {
			sum.TierEntries = make(map[string]int)
		}
		sum.TierEntries[tier] += n
	}
	return sum
}

func (s *server) checkOrigin() func(*http.Request) bool {
	allowed := s.cfg.Server.AllowedOrigins
	if len(allowed) == 0 {
		return nil
	}
	return func(req *http.Request) bool {
		origin := req.Header.Get("Origin")
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

type sessionInfo struct {
	ID    string `json:"id"`
	Route string `json:"route"`
	Name  string `json:"name,omitempty"`
	State string `json:"state"`
}

func (s *server) sessions(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	list := make([]sessionInfo, 0, len(s.engines))
	for r, engine := range s.engines {
		cur := engine.CurrentRoute()
		list = append(list, sessionInfo{
			ID:    r.ID,
			Route: cur.FullPath,
			Name:  cur.Name,
			State: engine.State().String(),
		})
	}
	s.mu.Unlock()
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>waypoint</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; }
nav a { margin-right: 1rem; }
#location { font-family: monospace; margin-top: 1rem; }
</style>
</head>
<body>
<nav>
{{- range .Links}}
<a href="{{.Href}}" data-waypoint>{{.Label}}</a>
{{- end}}
</nav>
<div id="location"></div>
<script src="{{.Client}}" data-bridge="{{.Bridge}}"></script>
<script>
document.addEventListener("waypoint:location", function (ev) {
  document.getElementById("location").textContent = ev.detail;
});
document.getElementById("location").textContent = location.pathname + location.search + location.hash;
</script>
</body>
</html>
`))

type pageLink struct {
	Href  string
	Label string
}

func (s *server) page(w http.ResponseWriter, _ *http.Request) {
	data := struct {
		Links  []pageLink
		Client string
		Bridge string
	}{
		Links:  staticLinks(s.cfg.Routes, ""),
		Client: clientPath,
		Bridge: s.cfg.Server.BridgePath,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		s.logger.Error("page render failed", "error", err)
	}
}

// staticLinks lists the configured routes without params, for the demo
// page's navigation bar.
func staticLinks(routes []config.RouteConfig, prefix string) []pageLink {
	var links []pageLink
	for _, rc := range routes {
		path := rc.Path
		if !strings.HasPrefix(path, "/") {
			path = strings.TrimSuffix(prefix, "/") + "/" + path
		}
		if strings.ContainsAny(path, ":*") {
			continue
		}
		label := rc.Name
		if label == "" {
			label = path
		}
		links = append(links, pageLink{Href: path, Label: label})
		links = append(links, staticLinks(rc.Children, path)...)
	}
	return links
}
