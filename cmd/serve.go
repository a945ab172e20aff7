package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/apexdesk/enrich-cli/internal/model"
	"github.com/apexdesk/enrich-cli/internal/queue"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server and worker pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		mux := buildMux(env.Queue)

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

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return env.Workers.Run(gctx)
		})
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		return g.Wait()
	},
}

// buildMux sets up the intake routes over the given queue.
func buildMux(q queue.Queue) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /webhook/enhance", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			TenantID    string `json:"tenant_id"`
			TicketID    string `json:"ticket_id"`
			Description string `json:"description"`
			Priority    string `json:"priority"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		if req.TenantID == "" || req.TicketID == "" {
			http.Error(w, `{"error":"tenant_id and ticket_id are required"}`, http.StatusBadRequest)
			return
		}

		// The correlation id is assigned once at ingress and carried through
		// every redelivery of this event.
		job := model.JobDescriptor{
			TenantID:      req.TenantID,
			TicketID:      req.TicketID,
			Description:   req.Description,
			Priority:      model.Priority(req.Priority),
			CorrelationID: uuid.NewString(),
		}.Normalize()

		if err := q.Enqueue(r.Context(), job); err != nil {
			zap.L().Error("enqueue failed",
				zap.String("tenant_id", job.TenantID),
				zap.String("ticket_id", job.TicketID),
				zap.Error(err),
			)
			http.Error(w, `{"error":"queue unavailable"}`, http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{
			"status":    "accepted",
			"ticket_id": job.TicketID,
		})
	})

	return mux
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
