package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/metorial/runhistory/internal/catalog"
	"github.com/metorial/runhistory/internal/cli"
	"github.com/metorial/runhistory/internal/config"
	"github.com/metorial/runhistory/internal/hostinfo"
	"github.com/metorial/runhistory/internal/publish"
	"github.com/metorial/runhistory/internal/runner"
	"github.com/metorial/runhistory/internal/versions"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load(config.GetEnv("RUNHISTORY_DIR", "."))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v", sig)
		cancel()
	}()

	host := hostinfo.CollectOrMinimal()
	store := versions.NewStore(cfg.VersionsPath())
	recorder := versions.NewRecorder(store, versions.NewGitRevision(cfg.Git, cfg.ScriptsDir))

	var sinks []runner.Sink

	if cfg.Catalog {
		db, err := openCatalog(cfg.VersionsPath())
		if err != nil {
			log.Printf("Run catalog disabled: %v", err)
		} else {
			defer db.Close()

			sink, err := db.NewBatchSink(host)
			if err != nil {
				log.Printf("Run catalog disabled: %v", err)
			} else {
				sinks = append(sinks, sink)
			}
		}
	}

	if cfg.ConsulAddr != "" {
		publisher, err := publish.NewConsulPublisher(cfg.ConsulAddr, cfg.ConsulPrefix, host.Hostname)
		if err != nil {
			log.Printf("Consul publishing disabled: %v", err)
		} else {
			sinks = append(sinks, publisher)
		}
	}

	batch := &runner.Batch{
		Dir:         cfg.ScriptsDir,
		Extensions:  cfg.Extensions(),
		Exclude:     cfg.Exclude,
		VersionsDir: cfg.VersionsPath(),
		Host:        host,
		Executor:    runner.NewScriptExecutor(cfg.Interpreters, cfg.Timeout),
		Recorder:    recorder,
		Reporter:    cli.NewReporter(os.Stdout, os.Stderr, cfg.ScriptsDir),
		Sinks:       sinks,
	}

	_, err = batch.Run(ctx)
	return err
}

func openCatalog(versionsDir string) (*catalog.DB, error) {
	if err := os.MkdirAll(versionsDir, 0755); err != nil {
		return nil, err
	}
	return catalog.NewDB(filepath.Join(versionsDir, catalog.FileName))
}
