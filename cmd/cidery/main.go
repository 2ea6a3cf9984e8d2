package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/vsinha/cidery/pkg/interfaces/cli/commands"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	config, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		commands.ShowHelp(stdout)
		return commands.ExitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return commands.ExitUsage
	}
	config.ApplyEnv(os.Getenv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := commands.NewCommand(config, stdout)
	if err := cmd.Execute(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return commands.ExitCode(err)
	}
	return commands.ExitOK
}

// parseArgs reads "<command> [flags]"
func parseArgs(args []string, stderr io.Writer) (commands.Config, error) {
	var config commands.Config
	if len(args) == 0 {
		return config, flag.ErrHelp
	}
	switch args[0] {
	case "-h", "-help", "--help", "help":
		return config, flag.ErrHelp
	}
	config.Command = args[0]

	fs := flag.NewFlagSet("cidery "+config.Command, flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&config.DBDriver, "driver", "", "Database driver: sqlite, postgres or memory")
	fs.StringVar(&config.DBDSN, "dsn", "", "Database connection string")
	fs.StringVar(&config.Format, "format", "text", "Output format: text, json, csv")
	fs.StringVar(&config.OutputDir, "output", "", "Output directory for results (optional)")
	fs.BoolVar(&config.Verbose, "verbose", false, "Enable verbose output")
	fs.StringVar(&config.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&config.LogFormat, "log-format", "", "Log format: console or json")
	fs.BoolVar(&config.Help, "help", false, "Show help message")

	switch config.Command {
	case commands.SeedCommand:
		fs.StringVar(&config.SeedDir, "dir", "", "Directory containing the seed CSV files")
	case commands.AllocateCommand:
		fs.StringVar(&config.PressRunID, "press-run", "", "Press run to allocate")
		fs.Var(&config.Assignments, "assign", "Vessel assignment as VESSEL=VOLUME (repeatable)")
		fs.StringVar(&config.Mode, "mode", "weight", "Fraction basis: weight or sugar")
		fs.StringVar(&config.CostCheck, "cost-check", "allocated", "Cost invariant: allocated or global")
		fs.BoolVar(&config.DryRun, "dry-run", false, "Check the allocation, then roll it back")
		fs.StringVar(&config.SeedDir, "seed", "", "Load seed CSV files from this directory first")
		fs.StringVar(&config.RedisAddr, "redis", "", "Redis address for the press-run lock")
		fs.StringVar(&config.AMQPURL, "amqp", "", "RabbitMQ URL for audit events")
		fs.StringVar(&config.AMQPExchange, "exchange", "", "RabbitMQ exchange for audit events")
		fs.StringVar(&config.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	case commands.ShowCommand:
		fs.StringVar(&config.PressRunID, "press-run", "", "Press run whose batches to show")
		fs.StringVar(&config.SeedDir, "seed", "", "Load seed CSV files from this directory first")
	default:
		return config, fmt.Errorf("unknown command %q", config.Command)
	}

	if err := fs.Parse(args[1:]); err != nil {
		return config, err
	}
	if fs.NArg() > 0 {
		return config, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return config, nil
}
