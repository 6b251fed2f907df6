// Package modelgate provides a top-level convenience entry point that wires
// the whole routing and cost-governance graph with minimal boilerplate.
//
// Usage:
//
//	import "github.com/phoenixedu/modelgate"
//
//	gw, err := modelgate.New(modelgate.WithInvoker(myInvoker))
//	gw, err := modelgate.New(
//	    modelgate.WithConfig(cfg),
//	    modelgate.WithInvoker(myInvoker),
//	    modelgate.WithLogger(logger),
//	)
//
// A Gateway bundles the model catalog, usage ledger, budget policy, alert
// engine, router and dispatcher behind one construction call.
package modelgate

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/phoenixedu/modelgate/alert"
	"github.com/phoenixedu/modelgate/budget"
	"github.com/phoenixedu/modelgate/catalog"
	"github.com/phoenixedu/modelgate/config"
	"github.com/phoenixedu/modelgate/internal/metrics"
	"github.com/phoenixedu/modelgate/ledger"
	"github.com/phoenixedu/modelgate/persona"
	"github.com/phoenixedu/modelgate/recorder"
	"github.com/phoenixedu/modelgate/router"
	"github.com/phoenixedu/modelgate/types"
)

// Option configures the gateway created by [New].
type Option func(*options)

type options struct {
	cfg         *config.Config
	logger      *zap.Logger
	invoker     recorder.Invoker
	channels    []alert.Channel
	ledgerStore ledger.Store
	alertStore  alert.Store
}

// WithConfig sets the full configuration. Defaults to [config.DefaultConfig].
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger sets a custom zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithInvoker sets the upstream model invoker. Without one the gateway
// still routes and keeps books, but Dispatch returns an error.
func WithInvoker(inv recorder.Invoker) Option {
	return func(o *options) { o.invoker = inv }
}

// WithChannels appends alert delivery channels to those derived from config.
func WithChannels(channels ...alert.Channel) Option {
	return func(o *options) { o.channels = append(o.channels, channels...) }
}

// WithLedgerStore overrides the ledger store built from config.
func WithLedgerStore(s ledger.Store) Option {
	return func(o *options) { o.ledgerStore = s }
}

// WithAlertStore overrides the alert store built from config.
func WithAlertStore(s alert.Store) Option {
	return func(o *options) { o.alertStore = s }
}

// Gateway bundles the routing and cost-governance components.
type Gateway struct {
	Catalog  *catalog.Catalog
	Ledger   *ledger.Ledger
	Policy   *budget.Policy
	Alerts   *alert.Engine
	Router   *router.Router
	Personas *persona.Policy

	dispatcher *recorder.Recorder
	collector  *metrics.Collector
	logger     *zap.Logger
}

// New wires a complete Gateway. Configuration problems surface here,
// before any routing happens.
func New(opts ...Option) (*Gateway, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	cfg := o.cfg
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cat, err := cfg.Catalog.BuildCatalog()
	if err != nil {
		return nil, err
	}

	ledgerStore := o.ledgerStore
	if ledgerStore == nil {
		ledgerStore, err = ledger.NewStore(cfg.Storage.StoreConfig())
		if err != nil {
			return nil, err
		}
	}
	l, err := ledger.New(cat, ledgerStore, logger)
	if err != nil {
		return nil, err
	}

	policy, err := budget.NewPolicy(l, cfg.Budget.Limits(), logger)
	if err != nil {
		return nil, err
	}

	alertStore := o.alertStore
	if alertStore == nil {
		alertStore, err = alert.NewStore(cfg.Storage.StoreConfig())
		if err != nil {
			return nil, err
		}
	}
	channels := o.channels
	if cfg.Alert.LogChannel {
		channels = append(channels, alert.NewLogChannel(logger))
	}
	if cfg.Alert.WebhookURL != "" {
		channels = append(channels, alert.NewWebhookChannel(cfg.Alert.WebhookURL))
	}
	if cfg.Alert.SlackWebhookURL != "" {
		channels = append(channels, alert.NewSlackChannel(cfg.Alert.SlackWebhookURL))
	}
	engine, err := alert.NewEngine(policy, alertStore, cfg.Alert.Thresholds(), logger, channels...)
	if err != nil {
		return nil, err
	}

	personas := persona.NewPolicy()
	r, err := router.New(cat, policy, personas, logger)
	if err != nil {
		return nil, err
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Metrics.Namespace, logger)
	}

	gw := &Gateway{
		Catalog:   cat,
		Ledger:    l,
		Policy:    policy,
		Alerts:    engine,
		Router:    r,
		Personas:  personas,
		collector: collector,
		logger:    logger,
	}
	if o.invoker != nil {
		gw.dispatcher = recorder.New(r, l, policy, engine, o.invoker, collector, logger)
	}

	logger.Info("modelgate initialized",
		zap.Int("models", len(cat.ModelIDs())),
		zap.Float64("daily_limit", cfg.Budget.DailyLimit),
		zap.Float64("monthly_limit", cfg.Budget.MonthlyLimit),
		zap.Bool("dispatch_enabled", gw.dispatcher != nil))
	return gw, nil
}

// Select routes a request without invoking anything.
func (g *Gateway) Select(req router.Request) router.Result {
	res := g.Router.Select(req)
	if g.collector != nil {
		g.collector.RecordRouting(string(req.TaskType), res.ModelID, res.Reason, res.Fallback)
	}
	return res
}

// Dispatch routes, invokes and records one call end to end.
func (g *Gateway) Dispatch(ctx context.Context, req recorder.Request) (*recorder.Outcome, error) {
	if g.dispatcher == nil {
		return nil, types.NewError(types.ErrInvalidInput, "no invoker configured: use WithInvoker")
	}
	return g.dispatcher.Dispatch(ctx, req)
}

// Status reports budget verdicts and remaining headroom per scope.
func (g *Gateway) Status() map[budget.Scope]ScopeStatus {
	out := make(map[budget.Scope]ScopeStatus, 2)
	for _, scope := range budget.Scopes() {
		verdict, spent, limit := g.Policy.StatusDetail(scope)
		out[scope] = ScopeStatus{
			Verdict:   verdict,
			Spent:     spent,
			Limit:     limit,
			Remaining: g.Policy.Remaining(scope),
		}
	}
	return out
}

// ScopeStatus is one scope's budget position.
type ScopeStatus struct {
	Verdict   budget.Verdict `json:"verdict"`
	Spent     float64        `json:"spent"`
	Limit     float64        `json:"limit"`
	Remaining float64        `json:"remaining"`
}

// UsageSummary reports the last N days of recorded usage.
func (g *Gateway) UsageSummary(days int) ledger.Summary {
	return g.Ledger.UsageSummary(days)
}

// ResetDay is an administrative wipe of one day's usage.
func (g *Gateway) ResetDay(ctx context.Context, day time.Time) error {
	return g.Ledger.ResetDay(ctx, day)
}

// Close flushes and closes the underlying stores.
func (g *Gateway) Close() error {
	err := g.Ledger.Close()
	if cerr := g.Alerts.Close(); err == nil {
		err = cerr
	}
	return err
}
