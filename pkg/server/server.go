package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/bdashore3/Ferrite/internal/config"
	"github.com/bdashore3/Ferrite/internal/request"
	"github.com/bdashore3/Ferrite/pkg/debrid/engine"
	"github.com/bdashore3/Ferrite/pkg/debrid/types"
)

// Server exposes the debrid engine over HTTP for local frontends.
type Server struct {
	engine *engine.Engine
	logger zerolog.Logger
	bind   string
}

func New(cfg config.Server, eng *engine.Engine, logger zerolog.Logger) *Server {
	return &Server{
		engine: eng,
		logger: logger,
		bind:   cfg.Bind,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/providers", s.handleProviders)
		r.Post("/providers/{provider}/enabled", s.handleSetEnabled)
		r.Post("/providers/{provider}/activate", s.handleActivate)

		r.Route("/auth/{provider}", func(r chi.Router) {
			r.Post("/begin", s.handleAuthBegin)
			r.Post("/complete", s.handleAuthComplete)
			r.Post("/cancel", s.handleAuthCancel)
			r.Post("/logout", s.handleLogout)
		})

		r.Post("/availability", s.handleAvailability)
		r.Get("/match", s.handleMatch)

		r.Post("/resolve", s.handleResolve)
		r.Post("/resolve/cancel", s.handleResolveCancel)

		r.Delete("/torrents/{provider}/{id}", s.handleDeleteTorrent)
	})
	return r
}

// Start runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.bind,
		Handler:      s.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // auth completion blocks on user confirmation
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Msgf("Listening on %s", s.bind)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	TorrentID string `json:"torrent_id,omitempty"`
}

// writeError maps the error taxonomy onto HTTP statuses. EmptyTorrentsError
// carries the torrent id so the caller can offer a delete.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	code := http.StatusInternalServerError

	var (
		authErr     *types.AuthError
		inputErr    *types.InvalidInputError
		emptyErr    *types.EmptyTorrentsError
		netErr      *types.NetworkError
		providerErr *types.ProviderError
	)
	switch {
	case types.IsCancelled(err):
		resp.Kind = "cancelled"
		code = http.StatusConflict
	case errors.As(err, &authErr):
		resp.Kind = "auth"
		code = http.StatusUnauthorized
	case errors.As(err, &inputErr):
		resp.Kind = "invalid_input"
		code = http.StatusBadRequest
	case errors.As(err, &emptyErr):
		resp.Kind = "empty_torrent"
		resp.TorrentID = emptyErr.TorrentID
		code = http.StatusNotFound
	case errors.As(err, &netErr):
		resp.Kind = "network"
		code = http.StatusBadGateway
	case errors.As(err, &providerErr):
		resp.Kind = "provider"
		code = http.StatusBadGateway
	default:
		resp.Kind = "internal"
	}
	request.JSONResponse(w, resp, code)
}

func provider(r *http.Request) types.Provider {
	return types.Provider(chi.URLParam(r, "provider"))
}

type providerInfo struct {
	Name    types.Provider `json:"name"`
	State   string         `json:"state"`
	Enabled bool           `json:"enabled"`
	Active  bool           `json:"active"`
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	sessions := s.engine.Sessions()
	active := sessions.Active()
	out := make([]providerInfo, 0)
	for _, name := range sessions.Providers() {
		out = append(out, providerInfo{
			Name:    name,
			State:   sessions.State(name).String(),
			Enabled: sessions.Enabled(name),
			Active:  name == active,
		})
	}
	request.JSONResponse(w, out, http.StatusOK)
}

func (s *Server) handleSetEnabled(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, &types.InvalidInputError{Reason: "malformed body"})
		return
	}
	s.engine.Sessions().SetEnabled(provider(r), body.Enabled)
	request.JSONResponse(w, nil, http.StatusNoContent)
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Sessions().SetActive(provider(r)); err != nil {
		s.writeError(w, err)
		return
	}
	request.JSONResponse(w, nil, http.StatusNoContent)
}

func (s *Server) handleAuthBegin(w http.ResponseWriter, r *http.Request) {
	prompt, err := s.engine.Sessions().BeginAuth(r.Context(), provider(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	request.JSONResponse(w, map[string]any{
		"verification_url": prompt.VerificationURL,
		"user_code":        prompt.UserCode,
		"poll_code":        prompt.PollCode,
		"interval_sec":     int(prompt.Interval.Seconds()),
		"expires_in_sec":   int(prompt.ExpiresIn.Seconds()),
	}, http.StatusOK)
}

// handleAuthComplete blocks for polling providers until the user confirms on
// the provider's site, or the flow is cancelled.
func (s *Server) handleAuthComplete(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, &types.InvalidInputError{Reason: "malformed body"})
		return
	}
	if err := s.engine.Sessions().CompleteAuth(r.Context(), provider(r), body.Code); err != nil {
		s.writeError(w, err)
		return
	}
	request.JSONResponse(w, map[string]string{"status": "authenticated"}, http.StatusOK)
}

func (s *Server) handleAuthCancel(w http.ResponseWriter, r *http.Request) {
	s.engine.Sessions().CancelAuth(provider(r))
	request.JSONResponse(w, nil, http.StatusNoContent)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Sessions().Logout(provider(r)); err != nil {
		s.writeError(w, err)
		return
	}
	request.JSONResponse(w, nil, http.StatusNoContent)
}

// handleAvailability populates the cache for a result page and returns the
// per-provider match status of every result that carried a usable magnet.
func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Results []types.SearchResult `json:"results"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, &types.InvalidInputError{Reason: "malformed body"})
		return
	}
	if err := s.engine.PopulateAvailability(r.Context(), body.Results); err != nil {
		s.writeError(w, err)
		return
	}

	providers := s.engine.Sessions().Providers()
	matches := make([]map[string]string, len(body.Results))
	for i, result := range body.Results {
		row := make(map[string]string, len(providers))
		for _, p := range providers {
			row[string(p)] = s.engine.MatchStatus(result, p).String()
		}
		matches[i] = row
	}
	request.JSONResponse(w, map[string]any{"matches": matches}, http.StatusOK)
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	p := types.Provider(r.URL.Query().Get("provider"))
	if p == "" {
		p = s.engine.Sessions().Active()
	}
	result := types.SearchResult{MagnetHash: r.URL.Query().Get("hash")}
	status := s.engine.MatchStatus(result, p)
	request.JSONResponse(w, map[string]string{"status": status.String()}, http.StatusOK)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Provider  types.Provider     `json:"provider,omitempty"`
		Result    types.SearchResult `json:"result"`
		FileIndex *int               `json:"file_index,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, &types.InvalidInputError{Reason: "malformed body"})
		return
	}
	sel := types.Selection{FileIndex: -1}
	if body.FileIndex != nil {
		sel.FileIndex = *body.FileIndex
	}

	var lastState engine.State
	dl, err := s.engine.Resolve(r.Context(), body.Provider, body.Result, sel, func(st engine.State) {
		lastState = st
		s.logger.Debug().Msgf("Resolve state: %s", st)
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	request.JSONResponse(w, map[string]any{
		"url":    dl.URL,
		"origin": dl.Origin,
		"state":  lastState.String(),
	}, http.StatusOK)
}

func (s *Server) handleResolveCancel(w http.ResponseWriter, r *http.Request) {
	s.engine.CancelResolve()
	request.JSONResponse(w, nil, http.StatusNoContent)
}

func (s *Server) handleDeleteTorrent(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteTorrent(r.Context(), provider(r), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	request.JSONResponse(w, nil, http.StatusNoContent)
}
