package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-cli/internal/export"
	"github.com/sells-group/catalog-cli/internal/gateway"
	"github.com/sells-group/catalog-cli/internal/model"
	"github.com/sells-group/catalog-cli/internal/pipeline"
	"github.com/sells-group/catalog-cli/internal/source"
	"github.com/sells-group/catalog-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local API server for the catalog UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			return eris.Wrap(err, "server listen")
		}

		zap.L().Info("starting server", zap.Int("port", port))
		return serveUntilDone(ctx, &http.Server{Handler: newRouter(env)}, ln)
	},
}

// shutdownGrace is how long in-flight requests get to drain on shutdown.
const shutdownGrace = 10 * time.Second

// serveUntilDone serves on ln until ctx is canceled, then drains in-flight
// requests. The drain gets its own deadline; the canceled signal context
// would cut requests off immediately.
func serveUntilDone(ctx context.Context, srv *http.Server, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = srv.Shutdown(drainCtx)
	}()

	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server serve")
	}
	return nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// apiServer holds per-process server state: the app environment plus live
// chat sessions keyed by catalog id.
type apiServer struct {
	env      *appEnv
	mu       sync.Mutex
	sessions map[string]*gateway.ChatSession
}

func newRouter(env *appEnv) http.Handler {
	s := &apiServer{env: env, sessions: make(map[string]*gateway.ChatSession)}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/progress", s.handleProgress)
		r.Post("/ingest", s.handleIngest)
		r.Get("/catalogs", s.handleList)
		r.Route("/catalogs/{id}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Put("/", s.handleUpdate)
			r.Delete("/", s.handleDelete)
			r.Get("/export", s.handleExport)
			r.Post("/summary", s.handleSummary)
			r.Post("/chat", s.handleChat)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps store errors to HTTP responses.
func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "catalog not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func (s *apiServer) handleProgress(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.env.Pipeline.Tracker().Snapshot())
}

func (s *apiServer) handleIngest(w http.ResponseWriter, r *http.Request) {
	src, cleanup, err := s.ingestSource(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.env.Pipeline.Tracker().Busy() {
		cleanup()
		writeError(w, http.StatusConflict, "an extraction run is already in progress")
		return
	}

	// Run asynchronously; the UI polls /api/progress. The run must outlive
	// the accepted request, so it gets a fresh context.
	go func() {
		defer cleanup()
		res, err := s.env.Pipeline.Run(context.Background(), src)
		if err != nil {
			zap.L().Error("ingest failed",
				zap.String("source", src.Label()),
				zap.Error(err))
			return
		}
		if res.Chat != nil {
			s.mu.Lock()
			s.sessions[res.Record.ID] = res.Chat
			s.mu.Unlock()
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"source": src.Label(),
	})
}

// maxUploadBytes caps browser PDF uploads.
const maxUploadBytes = 100 << 20

// ingestSource builds the document source for an ingest request. Browsers
// upload the PDF itself as multipart form data; JSON bodies reference a
// server-side path or a URL. The cleanup func releases any temp file once
// the run is finished with it.
func (s *apiServer) ingestSource(r *http.Request) (source.Source, func(), error) {
	noop := func() {}

	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, noop, eris.Wrap(err, "parse upload")
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, noop, eris.Wrap(err, `upload needs a "file" part`)
		}
		defer file.Close()

		tmp, err := os.CreateTemp("", "catalog-upload-*.pdf")
		if err != nil {
			return nil, noop, eris.Wrap(err, "create upload temp file")
		}
		cleanup := func() { _ = os.Remove(tmp.Name()) }

		if _, err := io.Copy(tmp, file); err != nil {
			_ = tmp.Close()
			cleanup()
			return nil, noop, eris.Wrap(err, "write upload temp file")
		}
		if err := tmp.Close(); err != nil {
			cleanup()
			return nil, noop, eris.Wrap(err, "close upload temp file")
		}

		return source.NewPDF(tmp.Name(), s.env.Render).WithLabel(header.Filename), cleanup, nil
	}

	var req struct {
		Path string `json:"path"`
		URL  string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, noop, eris.New("invalid request body")
	}
	src, err := s.env.newSource(req.Path, req.URL)
	return src, noop, err
}

func (s *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	recs, err := s.env.Store.ListCatalogs(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *apiServer) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.env.Store.GetCatalog(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleUpdate persists edited records. Edits are explicit: the UI sends the
// full edited record set when the user saves.
func (s *apiServer) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := s.env.Store.GetCatalog(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	var req struct {
		SourceLabel *string                   `json:"source_label"`
		Specs       *[]model.CarSpecification `json:"extracted_data"`
		Summary     *string                   `json:"summary"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.SourceLabel != nil {
		rec.SourceLabel = *req.SourceLabel
	}
	if req.Specs != nil {
		rec.Specs = *req.Specs
	}
	if req.Summary != nil {
		rec.Summary = req.Summary
	}

	if err := s.env.Store.UpdateCatalog(r.Context(), rec); err != nil {
		writeStoreError(w, err)
		return
	}

	// Edited data invalidates any chat grounded in the old records.
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, rec)
}

func (s *apiServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.env.Store.DeleteCatalog(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}

	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.env.Store.GetCatalog(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="catalog-%s.%s"`, rec.ID, format))
	if err := export.Write(w, format, rec.Specs); err != nil {
		zap.L().Error("export failed", zap.String("catalog_id", rec.ID), zap.Error(err))
	}
}

func (s *apiServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.env.Pipeline.EnsureSummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "catalog not found")
			return
		}
		writeError(w, http.StatusBadGateway, pipeline.UserMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

func (s *apiServer) handleChat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	session, err := s.chatSession(r, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	answer, err := session.Ask(r.Context(), req.Question)
	if err != nil {
		writeError(w, http.StatusBadGateway, pipeline.UserMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

// chatSession returns the live session for a catalog, creating one from the
// stored records on first use.
func (s *apiServer) chatSession(r *http.Request, id string) (*gateway.ChatSession, error) {
	s.mu.Lock()
	session, ok := s.sessions[id]
	s.mu.Unlock()
	if ok {
		return session, nil
	}

	rec, err := s.env.Store.GetCatalog(r.Context(), id)
	if err != nil {
		return nil, err
	}
	session, err = s.env.Gateway.NewChatSession(rec.Specs)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()
	return session, nil
}
