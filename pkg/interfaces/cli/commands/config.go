package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vsinha/cidery/pkg/application/services/allocation"
	"github.com/vsinha/cidery/pkg/domain/entities"
	"github.com/vsinha/cidery/pkg/domain/services"
	"github.com/vsinha/cidery/pkg/infrastructure/repositories/sqlstore"
)

// Supported commands
const (
	SeedCommand     = "seed"
	AllocateCommand = "allocate"
	ShowCommand     = "show"
)

// MemoryDriver keeps everything in process; useful with -seed for one-shot runs
const MemoryDriver = "memory"

const (
	defaultDriver   = "sqlite"
	defaultDSN      = "file:cidery.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	defaultExchange = "cidery.audit"
)

// Config holds configuration for the cidery commands
type Config struct {
	Command string

	DBDriver string
	DBDSN    string
	SeedDir  string

	PressRunID  string
	Assignments StringList
	Mode        string
	CostCheck   string
	DryRun      bool

	Format    string
	OutputDir string
	Verbose   bool

	LogLevel  string
	LogFormat string

	RedisAddr    string
	AMQPURL      string
	AMQPExchange string
	MetricsAddr  string

	Help bool
}

// StringList is a repeatable string flag
type StringList []string

func (l *StringList) String() string {
	if l == nil {
		return ""
	}
	return strings.Join(*l, ",")
}

func (l *StringList) Set(value string) error {
	*l = append(*l, value)
	return nil
}

// ApplyEnv fills unset fields from CIDERY_* variables, then from defaults
func (c *Config) ApplyEnv(getenv func(string) string) {
	fallback := func(field *string, key, def string) {
		if *field != "" {
			return
		}
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*field = v
			return
		}
		*field = def
	}

	fallback(&c.DBDriver, "CIDERY_DB_DRIVER", defaultDriver)
	fallback(&c.DBDSN, "CIDERY_DB_DSN", "")
	fallback(&c.LogLevel, "CIDERY_LOG_LEVEL", "info")
	fallback(&c.LogFormat, "CIDERY_LOG_FORMAT", "console")
	fallback(&c.RedisAddr, "CIDERY_REDIS_ADDR", "")
	fallback(&c.AMQPURL, "CIDERY_AMQP_URL", "")
	fallback(&c.AMQPExchange, "CIDERY_AMQP_EXCHANGE", defaultExchange)
	fallback(&c.MetricsAddr, "CIDERY_METRICS_ADDR", "")

	if c.DBDSN == "" && c.DBDriver != MemoryDriver {
		if dialect, err := sqlstore.DialectByName(c.DBDriver); err == nil && dialect.Name == sqlstore.SQLite.Name {
			c.DBDSN = defaultDSN
		}
	}
	if c.Format == "" {
		c.Format = "text"
	}
}

// Validate checks the configuration before anything runs
func (c *Config) Validate() error {
	var errs []error

	switch c.Command {
	case SeedCommand:
		if c.SeedDir == "" {
			errs = append(errs, errors.New("seed requires -dir"))
		}
	case AllocateCommand:
		if c.PressRunID == "" {
			errs = append(errs, errors.New("allocate requires -press-run"))
		}
		if len(c.Assignments) == 0 {
			errs = append(errs, errors.New("allocate requires at least one -assign VESSEL=VOLUME"))
		}
		if _, err := ParseAssignments(c.Assignments); err != nil {
			errs = append(errs, err)
		}
		if _, err := services.ParseAllocationMode(c.Mode); err != nil {
			errs = append(errs, err)
		}
		if _, err := allocation.ParseCostCheck(c.CostCheck); err != nil {
			errs = append(errs, err)
		}
	case ShowCommand:
		if c.PressRunID == "" {
			errs = append(errs, errors.New("show requires -press-run"))
		}
	case "":
		errs = append(errs, errors.New("no command given"))
	default:
		errs = append(errs, fmt.Errorf("unknown command %q", c.Command))
	}

	if c.DBDriver != MemoryDriver {
		if _, err := sqlstore.DialectByName(c.DBDriver); err != nil {
			errs = append(errs, err)
		}
		if c.DBDSN == "" {
			errs = append(errs, fmt.Errorf("database driver %s requires a DSN (-dsn or CIDERY_DB_DSN)", c.DBDriver))
		}
	} else if c.Command == ShowCommand || (c.Command == AllocateCommand && c.SeedDir == "") {
		errs = append(errs, errors.New("the memory driver needs -seed to have anything to work on"))
	}

	switch c.Format {
	case "text", "json", "csv":
	default:
		errs = append(errs, fmt.Errorf("unsupported output format: %s (expected text, json or csv)", c.Format))
	}

	return errors.Join(errs...)
}

// ParseAssignments converts VESSEL=VOLUME pairs into assignments, keeping order
func ParseAssignments(values []string) ([]entities.Assignment, error) {
	assignments := make([]entities.Assignment, 0, len(values))
	for _, v := range values {
		vessel, volume, ok := strings.Cut(v, "=")
		vessel = strings.TrimSpace(vessel)
		if !ok || vessel == "" {
			return nil, entities.NewAllocationError(entities.Validation, "assignment must look like VESSEL=VOLUME",
				"assignment", v)
		}
		d, err := decimal.NewFromString(strings.TrimSpace(volume))
		if err != nil {
			return nil, entities.NewAllocationError(entities.Validation, "assignment volume is not a number",
				"assignment", v)
		}
		assignments = append(assignments, entities.Assignment{ToVesselID: vessel, Volume: d})
	}
	return assignments, nil
}
