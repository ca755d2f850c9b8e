package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"macroBot/internal/domain"
	"macroBot/internal/usecase/commands"
)

type Config struct {
	Addr string
	// TrustClients lets web clients claim a role in their payload.
	TrustClients bool

	Commands CommandLister
	Metrics  http.Handler
}

type CommandLister interface {
	List(ctx context.Context, community domain.CommunityID) (commands.CommunityDTO, error)
}

func (c *Config) addr() string {
	if strings.TrimSpace(c.Addr) == "" {
		return ":8080"
	}
	return c.Addr
}

type apiHandlers struct {
	commands CommandLister
	metrics  http.Handler
}

func newAPIHandlers(cfg Config) *apiHandlers {
	return &apiHandlers{
		commands: cfg.Commands,
		metrics:  cfg.Metrics,
	}
}

func (a *apiHandlers) register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/commands", a.handleCommands)
	if a.metrics != nil {
		mux.Handle("/metrics", a.metrics)
	}
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func (a *apiHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCommands lists builtins and custom commands of ?community=platform:channel.
// A bare ?platform=&channel= pair is accepted too.
func (a *apiHandlers) handleCommands(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if a.commands == nil {
		writeError(w, http.StatusServiceUnavailable, "command service unavailable")
		return
	}

	community, ok := communityParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "community is required")
		return
	}

	dto, err := a.commands.List(r.Context(), community)
	if err != nil {
		log.Error().Err(err).Str("community", string(community)).Msg("ws: list commands")
		writeError(w, http.StatusInternalServerError, "could not list commands")
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

func communityParam(r *http.Request) (domain.CommunityID, bool) {
	q := r.URL.Query()
	if raw := strings.TrimSpace(q.Get("community")); raw != "" {
		platform, channel, ok := strings.Cut(raw, ":")
		if !ok || strings.TrimSpace(platform) == "" || strings.TrimSpace(channel) == "" {
			return "", false
		}
		return domain.NewCommunityID(domain.Platform(strings.ToLower(strings.TrimSpace(platform))), channel), true
	}

	platform := strings.ToLower(strings.TrimSpace(q.Get("platform")))
	channel := strings.TrimSpace(q.Get("channel"))
	if platform == "" || channel == "" {
		return "", false
	}
	return domain.NewCommunityID(domain.Platform(platform), channel), true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Debug().Err(err).Msg("ws: write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
