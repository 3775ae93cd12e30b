package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/saturn-platform/opsclaw/internal/approval"
	"github.com/saturn-platform/opsclaw/internal/assistant"
	"github.com/saturn-platform/opsclaw/internal/config"
	"github.com/saturn-platform/opsclaw/internal/executor"
	"github.com/saturn-platform/opsclaw/internal/insights"
	"github.com/saturn-platform/opsclaw/internal/logging"
	"github.com/saturn-platform/opsclaw/internal/metrics"
	"github.com/saturn-platform/opsclaw/internal/platform"
	"github.com/saturn-platform/opsclaw/internal/provider"
	"github.com/saturn-platform/opsclaw/internal/store"
)

var providerFactory = provider.NewProviderFromConfig

// app holds the backends shared by every command of one process.
type app struct {
	cfg      *config.Config
	model    provider.Provider
	deps     executor.Deps
	registry *prometheus.Registry
	recorder *executor.Recorder
	pending  *approval.PendingStore
	closers  []func() error
}

type appOptions struct {
	noModel bool
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logging.Logger().Info(
		"config loaded",
		"path", cfg.ConfigPath(),
		"provider", cfg.DefaultLLM().Provider,
		"read_only", cfg.Executor.ReadOnly,
	)
	return cfg, nil
}

func newModel(cfg *config.Config, opts appOptions) (provider.Provider, error) {
	if opts.noModel {
		return nil, nil
	}
	return providerFactory(cfg.DefaultLLM())
}

// newApp connects every configured backend. Sections left empty in the
// config stay nil and the executor reports them as not configured.
func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	a := &app{cfg: cfg, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.recorder = executor.NewRecorder(a.registry)

	model, err := newModel(cfg, opts)
	if err != nil {
		return nil, err
	}
	a.model = model

	if cfg.Database.DSN != "" {
		db, err := store.Open(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.deps.Lookup = store.NewResources(db)
	}

	if cfg.Platform.URL != "" {
		client := platform.New(
			cfg.Platform.URL,
			cfg.Platform.Token,
			platform.WithHTTPClient(&http.Client{Timeout: cfg.Platform.RequestTimeout}),
			platform.WithLogLines(cfg.Platform.LogLines),
		)
		a.deps.Dispatcher = client
		a.deps.Insights = insights.New(client, model)
	}

	if cfg.Prometheus.Address != "" {
		source, err := metrics.New(cfg.Prometheus.Address, nil)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.deps.Metrics = source
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)
		a.pending = approval.NewPendingStore(client, cfg.Redis.ConfirmationTTL)
	}

	return a, nil
}

// newExecutor builds a fresh executor so no resolution outlives its turn.
func (a *app) newExecutor() assistant.CommandRunner {
	return executor.New(
		executor.Scope{TeamID: a.cfg.Executor.TeamID, Operator: a.cfg.Executor.Operator},
		a.deps,
		executor.WithRecorder(a.recorder),
		executor.WithDefaultPeriod(a.cfg.Executor.DefaultPeriod),
	)
}

func (a *app) assistant(approver approval.Approver) *assistant.Assistant {
	return assistant.New(
		a.model,
		a.newExecutor,
		approver,
		assistant.WithReadOnly(a.cfg.Executor.ReadOnly),
		assistant.WithStructuredOutput(a.cfg.DefaultLLM().StructuredOutput),
	)
}

func (a *app) pendingStore() (*approval.PendingStore, error) {
	if a.pending == nil {
		return nil, errors.New("redis.addr is not configured; pending confirmations need redis")
	}
	return a.pending, nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("close backends: %w", errors.Join(errs...))
	}
	return nil
}

// approveAll approves every request. Used when the operator already said yes.
type approveAll struct{}

func (approveAll) RequestApproval(context.Context, approval.Request) (approval.Decision, error) {
	return approval.Approved, nil
}

// deferApprover denies every request so the dangerous tail of an intent can
// be parked for a later confirm.
type deferApprover struct{}

func (deferApprover) RequestApproval(context.Context, approval.Request) (approval.Decision, error) {
	return approval.Denied, nil
}
