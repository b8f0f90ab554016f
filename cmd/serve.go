package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/franzenjb/arc-relationship-manager-v2-sub002/internal/coordinates"
	"github.com/franzenjb/arc-relationship-manager-v2-sub002/internal/model"
	"github.com/franzenjb/arc-relationship-manager-v2-sub002/internal/store"
)

var servePort int

// apiEntity is the wire form of an addressable entity in coordinate requests.
type apiEntity struct {
	ID      string `json:"id"`
	Address string `json:"address,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
}

func (e apiEntity) EntityID() string    { return e.ID }
func (e apiEntity) AddressLine() string { return e.Address }
func (e apiEntity) CityName() string    { return e.City }
func (e apiEntity) StateCode() string   { return e.State }

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the map-data API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		cache, err := openGeocodeCache(ctx, st)
		if err != nil {
			return err
		}

		coords, err := newCoordinatesService(cache)
		if err != nil {
			return err
		}

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/api/coordinates", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Entities []apiEntity `json:"entities"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}

			entities := make([]coordinates.Addressable, len(body.Entities))
			for i, e := range body.Entities {
				entities[i] = e
			}

			resolved, err := coords.Resolve(req.Context(), entities)
			if err != nil {
				zap.L().Error("coordinate resolution failed", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "resolution failed"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"coordinates": resolved})
		})

		r.Get("/api/viewport/{region}", func(w http.ResponseWriter, req *http.Request) {
			vp := coords.Viewport(chi.URLParam(req, "region"))
			writeJSON(w, http.StatusOK, vp)
		})

		r.Get("/api/organizations", func(w http.ResponseWriter, req *http.Request) {
			q := req.URL.Query()
			orgs, err := st.ListOrganizations(req.Context(), store.OrgFilter{
				RegionCode: q.Get("region"),
				State:      q.Get("state"),
				Status:     model.OrgStatus(q.Get("status")),
			})
			if err != nil {
				zap.L().Error("list organizations failed", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list failed"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"organizations": orgs})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
