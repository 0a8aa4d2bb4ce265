// manifest-seed loads a YAML roster, group and queue fixture into the shared
// store selected by STORE_BACKEND. The memory backend only lives inside the
// API process; point the API at the file with SEED_FILE instead.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/noah-isme/dz-manifest-api/internal/bootstrap"
	"github.com/noah-isme/dz-manifest-api/internal/repository"
	"github.com/noah-isme/dz-manifest-api/internal/seed"
	"github.com/noah-isme/dz-manifest-api/pkg/config"
	"github.com/noah-isme/dz-manifest-api/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		file    string
		dryRun  bool
		timeout time.Duration
	)
	flagSet := pflag.NewFlagSet("manifest-seed", pflag.ContinueOnError)
	flagSet.StringVarP(&file, "file", "f", "fixtures/dropzone.yaml", "path to the YAML fixture")
	flagSet.BoolVar(&dryRun, "dry-run", false, "validate the fixture without writing")
	flagSet.DurationVar(&timeout, "timeout", 30*time.Second, "overall deadline")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	fixture, err := seed.LoadFile(file)
	if err != nil {
		return err
	}
	if dryRun {
		fmt.Printf("%s: %d instructors, %d groups, %d queue entries\n", file, len(fixture.Instructors), len(fixture.Groups), len(fixture.Queue))
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Store.Backend == config.StoreMemory {
		return fmt.Errorf("STORE_BACKEND=memory is process-local; set SEED_FILE on the API instead")
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	backend, err := bootstrap.OpenStore(ctx, cfg, logr, nil)
	if err != nil {
		return err
	}
	defer backend.Close()

	tx := backend.Transactor
	sum, err := seed.Apply(ctx, fixture, seed.Targets{
		Instructors: repository.NewInstructorRepository(backend.Store, tx),
		Groups:      repository.NewGroupRepository(backend.Store, tx),
		Queue:       repository.NewQueueRepository(backend.Store, tx),
		Settings:    repository.NewSettingsRepository(backend.Store, tx),
	}, time.Now().UTC())
	if err != nil {
		return err
	}
	logr.Info("fixture loaded",
		zap.String("file", file),
		zap.String("backend", cfg.Store.Backend),
		zap.Int("instructors", sum.Instructors),
		zap.Int("groups", sum.Groups),
		zap.Int("queue", sum.Queue),
		zap.Bool("settings", sum.Settings),
	)
	return nil
}
