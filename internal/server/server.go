// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

// Package server serves a playground session over HTTP: the preview
// document, the compiled modules, a JSON API over the tabs and a websocket
// announcing every compilation.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	solidrepl "github.com/buke/solid-repl-go"
	"golang.org/x/sync/errgroup"
)

const (
	maxBodySize     = 8 << 20
	shutdownTimeout = 5 * time.Second
)

// Config configures the HTTP surface.
type Config struct {
	ModuleBase      string   // URL prefix of compiled modules, "/modules" by default
	LiveReload      bool     // inject the live reload script into the preview
	RemoveTagXPaths []string // nodes removed from the preview document
}

// Server exposes one session over HTTP.
type Server struct {
	session *solidrepl.Session
	cfg     Config
	hub     *Hub
	logger  *slog.Logger
	handler http.Handler
}

// New returns a server for session. The session is mounted and run by
// Serve; Handler alone can be used when the caller runs the session.
func New(session *solidrepl.Session, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.ModuleBase = "/" + strings.Trim(cfg.ModuleBase, "/")
	if cfg.ModuleBase == "/" {
		cfg.ModuleBase = "/modules"
	}
	s := &Server{
		session: session,
		cfg:     cfg,
		hub:     NewHub(logger),
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handlePreview)
	mux.HandleFunc("GET "+cfg.ModuleBase+"/{path...}", s.handleModule)
	mux.HandleFunc("GET /api/tabs", s.handleState)
	mux.HandleFunc("PUT /api/tabs/{name...}", s.handleEdit)
	mux.HandleFunc("DELETE /api/tabs/{name...}", s.handleRemove)
	mux.HandleFunc("PUT /api/current", s.handleCurrent)
	mux.HandleFunc("POST /api/rename", s.handleRename)
	mux.HandleFunc("PUT /api/mode", s.handleMode)
	mux.HandleFunc("POST /api/compile", s.handleCompile)
	mux.HandleFunc("GET /api/tree", s.handleTree)
	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.Handle("GET /ws", s.hub)
	s.handler = logRequests(logger, mux)
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Hub returns the live preview hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve mounts the hub on the session, runs the session and serves HTTP on
// ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.session.MountPreview(s.hub)
	s.session.MountInspector(s.hub)
	defer s.session.UnmountInspector()
	defer s.session.UnmountPreview()
	defer s.hub.Close()

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Serving playground", "addr", ln.Addr().String(), "modules", s.cfg.ModuleBase)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.session.Run(gctx)
	})
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	opts := solidrepl.PreviewOptions{
		Tabs:            s.session.Tabs(),
		ModuleBase:      s.cfg.ModuleBase,
		RemoveTagXPaths: s.cfg.RemoveTagXPaths,
	}
	if s.cfg.LiveReload {
		opts.LiveReload = liveReloadURL(r)
	}
	doc, err := solidrepl.RenderPreview(opts, s.session.ImportMap())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(doc)
}

func liveReloadURL(r *http.Request) string {
	scheme := "ws"
	if r.TLS != nil {
		scheme = "wss"
	}
	return scheme + "://" + r.Host + "/ws"
}

func (s *Server) handleModule(w http.ResponseWriter, r *http.Request) {
	modules := s.session.Modules()
	if modules == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("project not compiled yet"))
		return
	}
	specifier := solidrepl.LocalPrefix + r.PathValue("path")
	code, ok := modules.Get(specifier)
	if !ok && strings.HasSuffix(specifier, ".js") {
		code, ok = modules.Get(strings.TrimSuffix(specifier, ".js"))
	}
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("module %s not found", specifier))
		return
	}
	header := w.Header()
	header.Set("Content-Type", "application/javascript; charset=utf-8")
	header.Set("Cache-Control", "max-age=0, must-revalidate")
	io.WriteString(w, code)
}

// State is the body of GET /api/tabs.
type State struct {
	Tabs      []solidrepl.Tab      `json:"tabs"`
	Current   string               `json:"current"`
	Mode      solidrepl.ModeConfig `json:"mode"`
	ImportMap *solidrepl.ImportMap `json:"importMap"`
	Error     string               `json:"error,omitempty"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, State{
		Tabs:      s.session.Tabs(),
		Current:   s.session.Current(),
		Mode:      s.session.Mode(),
		ImportMap: s.session.ImportMap(),
		Error:     s.session.Error(),
	})
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing tab name"))
		return
	}
	source, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}
	s.session.Edit(name, string(source))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	if err := s.session.RemoveTab(r.PathValue("name")); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type nameBody struct {
	Name string `json:"name"`
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	var body nameBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := s.session.SetCurrent(body.Name); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var body nameBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := s.session.RenameCurrent(body.Name); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	var mode solidrepl.ModeConfig
	if !decodeJSON(w, r, &mode) {
		return
	}
	if err := s.session.SetMode(mode); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCompile answers one bridge request synchronously, outside the
// session's scheduler.
func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	var req solidrepl.Request
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, ok := solidrepl.ChannelOf(req.Event); !ok {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown event %q", req.Event))
		return
	}
	writeJSON(w, http.StatusOK, solidrepl.Dispatch(r.Context(), s.session.Compiler(), req))
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	tree, err := solidrepl.BuildFileTree(s.session.Tabs())
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="solid-playground.zip"`)
	if err := solidrepl.ExportZip(w, s.session.Tabs()); err != nil {
		s.logger.Error("Failed to export project", "error", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
