package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/config"
	"github.com/marmos91/dittofiles/pkg/content"
	"github.com/marmos91/dittofiles/pkg/files"
	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/server"
)

const usage = `dittofiles - content-addressed file storage

Usage:
  dittofiles <command> [flags] [args]

Commands:
  init     Write a sample configuration file
  serve    Run the orphan collector and the metrics endpoint
  put      Upload a local file:           put <local-file> [remote-folder]
  get      Download a file by id:         get <id> [local-file]
  mkdir    Create a folder chain:         mkdir <path>
  ls       List records:                  ls [field=value|field<value|field>value ...]
  rm       Delete a record and its subtree: rm <id>
  usage    Show storage used against the quota
  gc       Run one collection pass

Run 'dittofiles <command> -h' for the flags of a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "init":
		err = runInit(args)
	case "serve":
		err = runServe(args)
	case "put":
		err = runPut(args)
	case "get":
		err = runGet(args)
	case "mkdir":
		err = runMkdir(args)
	case "ls":
		err = runList(args)
	case "rm":
		err = runRemove(args)
	case "usage":
		err = runUsage(args)
	case "gc":
		err = runGC(args)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing configuration file")
	path := fs.String("config", "", "Write to this path instead of the default location")
	_ = fs.Parse(args)

	if *path != "" {
		if err := config.InitConfigToPath(*path, *force); err != nil {
			return err
		}
		fmt.Printf("Configuration written to %s\n", *path)
		return nil
	}

	written, err := config.InitConfig(*force)
	if err != nil {
		return err
	}
	fmt.Printf("Configuration written to %s\n", written)
	return nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to the configuration file")
	_ = fs.Parse(args)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env, err := setup(ctx, *configPath, true)
	if err != nil {
		return err
	}
	defer env.close()

	srv := server.New(env.cfg.Server.ShutdownTimeout)
	if env.cfg.GC.Enabled {
		collector, err := config.CreateCollector(&env.cfg.GC, env.store, env.blobs, env.ctrl, env.metrics)
		if err != nil {
			return err
		}
		if err := srv.AddService(server.Collector(collector)); err != nil {
			return err
		}
	}
	if env.metrics.Server != nil {
		if err := srv.AddService(env.metrics.Server); err != nil {
			return err
		}
	}
	if len(srv.Services()) == 0 {
		return fmt.Errorf("nothing to serve: enable gc or server.metrics in the configuration")
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("dittofiles is running with %d service(s). Press Ctrl+C to stop.", len(srv.Services()))

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
		cancel()

		if err := <-serverDone; err != nil && err != context.Canceled {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("Server stopped gracefully")
		return nil

	case err := <-serverDone:
		return err
	}
}

// environment holds the stores and controller built from one configuration.
type environment struct {
	cfg      *config.Config
	metrics  *config.MetricsResult
	store    metadata.Store
	blobs    content.Store
	ctrl     *files.Controller
	closeLog func() error
}

// setup loads the configuration, configures logging and opens the stores.
// Metrics collectors are only registered when withMetrics is set, since the
// one-shot commands exit before anything could scrape them.
func setup(ctx context.Context, configPath string, withMetrics bool) (*environment, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	out, closeLog, err := logger.OpenOutput(cfg.Logging.Output)
	if err != nil {
		return nil, err
	}
	logger.SetOutput(out)
	logger.SetLevel(cfg.Logging.Level)
	logger.SetFormat(cfg.Logging.Format)

	env := &environment{cfg: cfg, closeLog: closeLog}

	if withMetrics {
		env.metrics = config.InitializeMetrics(cfg)
	} else {
		disabled := *cfg
		disabled.Server.Metrics.Enabled = false
		env.metrics = config.InitializeMetrics(&disabled)
	}

	env.store, err = config.CreateMetadataStore(ctx, &cfg.Metadata, env.metrics)
	if err != nil {
		env.close()
		return nil, err
	}

	env.blobs, err = config.CreateContentStore(ctx, &cfg.Content, env.metrics)
	if err != nil {
		env.close()
		return nil, err
	}

	env.ctrl, err = config.CreateController(&cfg.Files, env.store, env.blobs, env.metrics)
	if err != nil {
		env.close()
		return nil, err
	}

	logger.Debug("Opened %s metadata store and %s content store", cfg.Metadata.Type, cfg.Content.Type)
	return env, nil
}

func (e *environment) close() {
	if e.blobs != nil {
		if err := e.blobs.Close(); err != nil {
			logger.Warn("Failed to close content store: %v", err)
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			logger.Warn("Failed to close metadata store: %v", err)
		}
	}
	if e.closeLog != nil {
		_ = e.closeLog()
	}
}
