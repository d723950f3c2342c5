package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/borealmotors/reconcile-cli/internal/model"
	"github.com/borealmotors/reconcile-cli/internal/monitoring"
	"github.com/borealmotors/reconcile-cli/internal/resilience"
	"github.com/borealmotors/reconcile-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reconciliation webhook server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Resolver.WarmCache(ctx); err != nil {
			zap.L().Warn("prompt cache not warmed", zap.Error(err))
		}

		if cfg.Monitoring.WebhookURL != "" {
			checker := monitoring.NewChecker(
				monitoring.NewCollector(env.Store),
				monitoring.NewAlerter(cfg.Monitoring),
				cfg.Monitoring,
			)
			go checker.Run(ctx)
		}

		mux := buildMux(env)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func buildMux(env *engineEnv) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{"status": "ok"}
		if env.Resolver != nil {
			body["resolver_breaker"] = env.Resolver.BreakerState().String()
		}
		writeJSON(w, http.StatusOK, body)
	})

	mux.HandleFunc("POST /reconcile", func(w http.ResponseWriter, r *http.Request) {
		var row model.PriceListRow
		if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if err := row.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		rec, err := env.Engine.Reconcile(r.Context(), row)
		if err != nil {
			zap.L().Error("webhook reconcile failed",
				zap.String("model_code", row.ModelCode),
				zap.String("class", resilience.ClassifyError(err)),
				zap.Error(err),
			)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "reconciliation unavailable"})
			return
		}

		if err := routeRecord(r.Context(), env, rec); err != nil {
			zap.L().Error("webhook record routing failed",
				zap.String("record_id", rec.ID),
				zap.Error(err),
			)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "record not persisted"})
			return
		}

		writeJSON(w, http.StatusOK, rec)
	})

	mux.HandleFunc("GET /records/{id}", func(w http.ResponseWriter, r *http.Request) {
		rec, err := env.Store.GetRecord(r.Context(), r.PathValue("id"))
		if eris.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "record not found"})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "store unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, rec)
	})

	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
		hours := 24
		if h := r.URL.Query().Get("hours"); h != "" {
			n, err := strconv.Atoi(h)
			if err != nil || n <= 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "hours must be a positive integer"})
				return
			}
			hours = n
		}

		snap, err := monitoring.NewCollector(env.Store).Collect(r.Context(), hours)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "metrics unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	return mux
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
