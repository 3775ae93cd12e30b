package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/saturn-platform/opsclaw/internal/config"
	"github.com/saturn-platform/opsclaw/internal/logging"
	"github.com/saturn-platform/opsclaw/internal/scheduler"
)

func newWatchCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run scheduled instructions and serve /metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Watch.Listen = listen
			}
			a, err := newApp(cmd.Context(), cfg, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			svc, err := newWatchService(a, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if len(svc.Jobs()) == 0 {
				logging.Logger().Warn("no watch jobs configured; serving metrics only")
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(runCtx, svc, newMetricsServer(cfg.Watch.Listen, a.registry))
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Metrics listen address (overrides watch.listen)")

	return cmd
}

// newWatchService runs every job through its own assistant. Scheduled runs
// have no approver, so dangerous commands in a job are always refused.
func newWatchService(a *app, out io.Writer) (*scheduler.Service, error) {
	var mu sync.Mutex
	return scheduler.NewService(
		watchJobs(a.cfg.Watch.Jobs),
		func(ctx context.Context, job scheduler.Job) (string, error) {
			turn, err := a.assistant(nil).Handle(ctx, job.Instruction)
			if err != nil {
				return "", err
			}
			return turn.Reply, nil
		},
		scheduler.WithRegisterer(a.registry),
		scheduler.WithNotify(func(job scheduler.Job, reply string) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(out, "[%s] %s\n", job.ID, reply)
		}),
	)
}

func watchJobs(cfgJobs []config.JobConfig) []scheduler.Job {
	jobs := make([]scheduler.Job, 0, len(cfgJobs))
	for _, j := range cfgJobs {
		jobs = append(jobs, scheduler.Job{ID: j.ID, Cron: j.Cron, Instruction: j.Instruction})
	}
	return jobs
}

func newMetricsServer(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func runWatch(ctx context.Context, svc *scheduler.Service, srv *http.Server) error {
	if err := svc.Start(ctx); err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		logging.Logger().Info("metrics listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("serve metrics: %w", err)
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("shutdown metrics server: %w", err)
	}
	if err := svc.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	logging.Logger().Info("watch stopped")
	return runErr
}
