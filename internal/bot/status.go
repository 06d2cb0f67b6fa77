package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"boobot/internal/logger"
	"boobot/internal/plugin"
)

// statusServer is a localhost HTTP endpoint for operators: a liveness
// check plus a JSON snapshot of uptime, counters and plugin state. It is
// not a public API.
type statusServer struct {
	bot    *Bot
	server *http.Server
}

// statusSnapshot is the GET /status response body.
type statusSnapshot struct {
	Uptime    string            `json:"uptime"`
	Platforms []string          `json:"platforms"`
	Counters  map[string]uint64 `json:"counters"`
	Plugins   []plugin.Info     `json:"plugins"`
	Failed    map[string]string `json:"failed"`
}

func newStatusServer(bot *Bot, port int) *statusServer {
	s := &statusServer{bot: bot}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/status", s.handleStatus)

	s.server = &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", port),
		Handler: mux,
	}
	return s
}

// start runs the server in its own goroutine. When Shutdown is called,
// ListenAndServe returns ErrServerClosed.
func (s *statusServer) start() {
	logger.WithField("address", s.server.Addr).Info("status-server-listening")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("status-server-error: %v", err)
		}
		logger.Info("status-server-stopped")
	}()
}

// shutdown stops the server gracefully, force-closing when the graceful
// path times out.
func (s *statusServer) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logger.Errorf("failed-to-gracefully-stop-status-server: %v", err)
		s.server.Close()
	}
}

func (s *statusServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

func (s *statusServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := s.bot.PluginStatus()
	snapshot := statusSnapshot{
		Uptime:    time.Since(s.bot.StartedAt()).Round(time.Second).String(),
		Platforms: s.bot.platforms(),
		Counters:  s.bot.Counters(),
		Plugins:   status.Plugins,
		Failed:    status.Failed,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		logger.Errorf("failed-to-encode-status: %v", err)
	}
}
