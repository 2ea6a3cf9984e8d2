package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vsinha/cidery/pkg/application/services/allocation"
	"github.com/vsinha/cidery/pkg/domain/entities"
	"github.com/vsinha/cidery/pkg/domain/repositories"
	"github.com/vsinha/cidery/pkg/domain/services"
	"github.com/vsinha/cidery/pkg/infrastructure/events"
	"github.com/vsinha/cidery/pkg/infrastructure/events/rabbitmq"
	"github.com/vsinha/cidery/pkg/infrastructure/locking"
	"github.com/vsinha/cidery/pkg/infrastructure/logging"
	"github.com/vsinha/cidery/pkg/infrastructure/metrics"
	"github.com/vsinha/cidery/pkg/infrastructure/repositories/csv"
	"github.com/vsinha/cidery/pkg/infrastructure/repositories/memory"
	"github.com/vsinha/cidery/pkg/infrastructure/repositories/sqlstore"
	"github.com/vsinha/cidery/pkg/interfaces/cli/output"
)

// Exit codes by error kind
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitUsage      = 2
	ExitNotFound   = 3
	ExitValidation = 4
	ExitConflict   = 5
	ExitInvariant  = 6
)

// ErrUsage marks configuration problems found before anything ran
var ErrUsage = errors.New("usage error")

// ExitCode maps an Execute error to the process exit status
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, ErrUsage) {
		return ExitUsage
	}
	switch entities.KindOf(err) {
	case entities.NotFound:
		return ExitNotFound
	case entities.Validation:
		return ExitValidation
	case entities.Conflict:
		return ExitConflict
	case entities.Invariant:
		return ExitInvariant
	default:
		return ExitFailure
	}
}

type store interface {
	repositories.AllocationStore
	repositories.BatchReader
	repositories.Seeder
}

// Command runs one cidery command against the configured store
type Command struct {
	config Config
	stdout io.Writer

	logger  *zap.Logger
	store   store
	closers []func() error
}

// NewCommand creates a command with the given configuration
func NewCommand(config Config, stdout io.Writer) *Command {
	return &Command{
		config: config,
		stdout: stdout,
	}
}

// Execute validates the configuration, wires the infrastructure and runs the command
func (c *Command) Execute(ctx context.Context) (err error) {
	if c.config.Help {
		ShowHelp(c.stdout)
		return nil
	}

	if err := c.config.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	logger, err := logging.New(c.config.LogLevel, c.config.LogFormat)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	c.logger = logger.With(zap.String("command", c.config.Command))
	defer func() { _ = logger.Sync() }()
	defer c.close()

	if err := c.openStore(ctx); err != nil {
		return err
	}

	if c.config.SeedDir != "" {
		if err := c.seed(ctx); err != nil {
			return err
		}
	}

	switch c.config.Command {
	case SeedCommand:
		return nil
	case AllocateCommand:
		return c.allocate(ctx)
	case ShowCommand:
		return c.show(ctx)
	default:
		return fmt.Errorf("%w: unknown command %q", ErrUsage, c.config.Command)
	}
}

func (c *Command) openStore(ctx context.Context) error {
	if c.config.DBDriver == MemoryDriver {
		c.store = memory.NewStore()
		return nil
	}

	dialect, err := sqlstore.DialectByName(c.config.DBDriver)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	db, err := sqlstore.Open(ctx, dialect, c.config.DBDSN)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", dialect.Name, err)
	}
	c.store = db
	c.closers = append(c.closers, db.Close)
	c.logger.Debug("store opened", zap.String("driver", dialect.Name))
	return nil
}

func (c *Command) seed(ctx context.Context) error {
	data, err := csv.NewLoader().LoadDirectory(c.config.SeedDir)
	if err != nil {
		return fmt.Errorf("error loading seed data: %w", err)
	}
	if err := c.store.Seed(ctx, data); err != nil {
		return fmt.Errorf("failed to seed store: %w", err)
	}

	c.logger.Info("seed data loaded",
		zap.String("dir", c.config.SeedDir),
		zap.Int("press_runs", len(data.PressRuns)),
		zap.Int("vessels", len(data.Vessels)),
		zap.Int("purchase_lines", len(data.PurchaseLines)),
	)
	if c.config.Command == SeedCommand {
		fmt.Fprintf(c.stdout, "✅ Seeded %d press runs, %d vessels, %d purchase lines\n",
			len(data.PressRuns), len(data.Vessels), len(data.PurchaseLines))
	}
	return nil
}

func (c *Command) allocate(ctx context.Context) error {
	assignments, err := ParseAssignments(c.config.Assignments)
	if err != nil {
		return err
	}
	mode, err := services.ParseAllocationMode(c.config.Mode)
	if err != nil {
		return err
	}
	costCheck, err := allocation.ParseCostCheck(c.config.CostCheck)
	if err != nil {
		return err
	}

	recorder, err := c.metrics(ctx)
	if err != nil {
		return err
	}
	locker, err := c.locker()
	if err != nil {
		return err
	}
	publisher, err := c.publisher()
	if err != nil {
		return err
	}

	svc := allocation.NewService(c.store,
		allocation.WithLogger(c.logger),
		allocation.WithLocker(locker),
		allocation.WithPublisher(publisher),
		allocation.WithMetrics(recorder),
		allocation.WithCostCheck(costCheck),
	)

	start := time.Now()
	result, err := svc.AllocatePressRun(ctx, allocation.Request{
		PressRunID:  c.config.PressRunID,
		Assignments: assignments,
		Mode:        mode,
		DryRun:      c.config.DryRun,
	})
	if err != nil {
		return err
	}

	return output.Generate(c.stdout, result, output.Config{
		Format:    c.config.Format,
		OutputDir: c.config.OutputDir,
		Verbose:   c.config.Verbose,
		Elapsed:   time.Since(start),
	})
}

func (c *Command) show(ctx context.Context) error {
	batches, err := c.store.BatchesForPressRun(ctx, c.config.PressRunID)
	if err != nil {
		return fmt.Errorf("failed to read batches: %w", err)
	}
	if len(batches) == 0 {
		return entities.NewAllocationError(entities.NotFound, "press run has no batches",
			"press_run_id", c.config.PressRunID)
	}

	rows := make(map[string][]*entities.BatchComposition, len(batches))
	for _, b := range batches {
		comps, err := c.store.CompositionsForBatch(ctx, b.ID)
		if err != nil {
			return fmt.Errorf("failed to read compositions for batch %s: %w", b.ID, err)
		}
		rows[b.ID] = comps
	}

	return output.Generate(c.stdout, output.FromStored(c.config.PressRunID, batches, rows), output.Config{
		Format:    c.config.Format,
		OutputDir: c.config.OutputDir,
		Verbose:   c.config.Verbose,
	})
}

// metrics builds the recorder and, when an address is configured, serves it
// for the lifetime of the command
func (c *Command) metrics(ctx context.Context) (*metrics.Recorder, error) {
	if c.config.MetricsAddr == "" {
		return metrics.NewRecorder(nil)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.NewRecorder(registry)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              c.config.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	c.closers = append(c.closers, func() error {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	c.logger.Info("serving metrics", zap.String("addr", c.config.MetricsAddr))
	return recorder, nil
}

func (c *Command) locker() (locking.Locker, error) {
	if c.config.RedisAddr == "" {
		return locking.NewKeyedMutex(), nil
	}

	client := goredislib.NewClient(&goredislib.Options{Addr: c.config.RedisAddr})
	c.closers = append(c.closers, client.Close)
	locker, err := locking.NewRedisLocker(client, locking.DefaultRedisLockOptions(), c.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis locker: %w", err)
	}
	return locker, nil
}

func (c *Command) publisher() (events.Publisher, error) {
	if c.config.AMQPURL == "" {
		return events.NewInMemoryEventStoreWithLogger(c.logger), nil
	}

	publisher, err := rabbitmq.Dial(c.config.AMQPURL, c.config.AMQPExchange)
	if err != nil {
		return nil, fmt.Errorf("failed to connect audit publisher: %w", err)
	}
	c.closers = append(c.closers, publisher.Close)
	return publisher, nil
}

func (c *Command) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && c.logger != nil {
			c.logger.Warn("failed to release resource", zap.Error(err))
		}
	}
	c.closers = nil
}

// ShowHelp prints usage
func ShowHelp(w io.Writer) {
	fmt.Fprint(w, `cidery allocates press runs into batches.

Usage:
  cidery seed -dir DIR
  cidery allocate -press-run ID -assign VESSEL=VOLUME [-assign ...] [flags]
  cidery show -press-run ID [flags]

Seed files (in DIR): vessels.csv, press_runs.csv, purchase_lines.csv

Allocate flags:
  -mode weight|sugar          fraction basis (default weight)
  -cost-check allocated|global
  -dry-run                    check everything, then roll back
  -seed DIR                   load seed data first

Common flags:
  -driver sqlite|postgres|memory   (CIDERY_DB_DRIVER)
  -dsn DSN                         (CIDERY_DB_DSN)
  -format text|json|csv
  -output DIR
  -log-level, -log-format          (CIDERY_LOG_LEVEL)
  -redis ADDR                      (CIDERY_REDIS_ADDR)
  -amqp URL, -exchange NAME        (CIDERY_AMQP_URL, CIDERY_AMQP_EXCHANGE)
  -metrics-addr ADDR               (CIDERY_METRICS_ADDR)

Exit codes: 3 not found, 4 validation, 5 conflict, 6 invariant, 2 usage, 1 other.
`)
}
