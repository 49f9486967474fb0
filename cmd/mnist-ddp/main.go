// Command mnist-ddp trains a small convolutional classifier on MNIST,
// optionally data-parallel across processes and with mixed-precision
// updates. Rendezvous follows the usual launcher environment:
// MASTER_ADDR, MASTER_PORT, RANK and WORLD_SIZE.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tsawler/go-ddp/amp"
	"github.com/tsawler/go-ddp/config"
	"github.com/tsawler/go-ddp/data"
	"github.com/tsawler/go-ddp/data/mnist"
	"github.com/tsawler/go-ddp/device"
	"github.com/tsawler/go-ddp/dist"
	"github.com/tsawler/go-ddp/nn"
	"github.com/tsawler/go-ddp/optimizer"
	"github.com/tsawler/go-ddp/train"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := config.Default()
	var configPath string
	var localRank int

	cmd := &cobra.Command{
		Use:           "mnist-ddp",
		Short:         "Distributed data-parallel MNIST training",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				fileCfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				mergeFile(cmd, &cfg, fileCfg)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, localRank)
		},
	}

	flags := cmd.Flags()
	// Launchers pass underscore spellings such as --local_rank; accept
	// both forms.
	flags.SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	flags.StringVar(&configPath, "config", "", "YAML config file; flags override its values")
	flags.IntVar(&localRank, "local-rank", 0, "rank on this host, supplied by the launcher")
	flags.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "input batch size for training")
	flags.IntVar(&cfg.TestBatchSize, "test-batch-size", cfg.TestBatchSize, "input batch size for testing")
	flags.IntVar(&cfg.Epochs, "epochs", cfg.Epochs, "number of epochs to train")
	flags.Float32Var(&cfg.LearningRate, "lr", cfg.LearningRate, "learning rate")
	flags.Float32Var(&cfg.Gamma, "gamma", cfg.Gamma, "learning rate step decay factor")
	flags.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	flags.IntVar(&cfg.LogInterval, "log-interval", cfg.LogInterval, "batches between progress lines")
	flags.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory holding the MNIST IDX files")
	flags.IntVar(&cfg.Prefetch, "prefetch", cfg.Prefetch, "batches prepared ahead of the training loop")
	flags.BoolVar(&cfg.NoAccel, "no-accel", cfg.NoAccel, "disable BLAS-backed matrix products")
	flags.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "run a single batch per loop and exit")
	flags.BoolVar(&cfg.SaveModel, "save-model", cfg.SaveModel, "save the final model checkpoint")
	flags.StringVar(&cfg.SavePath, "save-path", cfg.SavePath, "checkpoint file path")
	flags.BoolVar(&cfg.EnableAMP, "enable-amp", cfg.EnableAMP, "enable mixed-precision training")
	flags.StringVar(&cfg.OptLevel, "opt-level", cfg.OptLevel, "mixed-precision level, O1 or O2")

	return cmd
}

// mergeFile folds file values into cfg for every flag the user did not
// set explicitly, so precedence is flags over file over defaults.
func mergeFile(cmd *cobra.Command, cfg *config.Config, file config.Config) {
	keep := func(name string, apply func()) {
		if !cmd.Flags().Changed(name) {
			apply()
		}
	}
	keep("batch-size", func() { cfg.BatchSize = file.BatchSize })
	keep("test-batch-size", func() { cfg.TestBatchSize = file.TestBatchSize })
	keep("epochs", func() { cfg.Epochs = file.Epochs })
	keep("lr", func() { cfg.LearningRate = file.LearningRate })
	keep("gamma", func() { cfg.Gamma = file.Gamma })
	keep("seed", func() { cfg.Seed = file.Seed })
	keep("log-interval", func() { cfg.LogInterval = file.LogInterval })
	keep("data-dir", func() { cfg.DataDir = file.DataDir })
	keep("prefetch", func() { cfg.Prefetch = file.Prefetch })
	keep("no-accel", func() { cfg.NoAccel = file.NoAccel })
	keep("dry-run", func() { cfg.DryRun = file.DryRun })
	keep("save-model", func() { cfg.SaveModel = file.SaveModel })
	keep("save-path", func() { cfg.SavePath = file.SavePath })
	keep("enable-amp", func() { cfg.EnableAMP = file.EnableAMP })
	keep("opt-level", func() { cfg.OptLevel = file.OptLevel })
}

func run(ctx context.Context, cfg config.Config, localRank int) error {
	logger := log.New(os.Stdout, "", log.LstdFlags)
	info := device.Configure(cfg.NoAccel)

	pg, err := dist.Init(ctx)
	if err != nil {
		return fmt.Errorf("init process group: %w", err)
	}
	defer pg.Close()

	if pg.IsPrimary() {
		logger.Printf("device: %s", info)
		logger.Printf("world size %d, batch size %d per rank", pg.WorldSize(), cfg.BatchSize)
	}
	if pg.WorldSize() > 1 {
		logger.Printf("rank %d (local rank %d) joined", pg.Rank(), localRank)
	}

	// Each rank seeds its own dropout; initial parameters are aligned by
	// the broadcast below regardless.
	rng := rand.New(rand.NewSource(cfg.Seed + int64(pg.Rank())))
	model := nn.NewNet(rng)

	ddp, err := dist.NewDDP(ctx, model, pg)
	if err != nil {
		return fmt.Errorf("wrap model: %w", err)
	}

	base := optimizer.NewAdamW(optimizer.DefaultAdamWConfig(cfg.LearningRate))
	var stepper optimizer.Optimizer = base
	var mixed *amp.Optimizer
	if cfg.EnableAMP {
		mixed, err = amp.Initialize(model.Parameters(), base, amp.DefaultOptions(cfg.OptLevel))
		if err != nil {
			return fmt.Errorf("mixed precision: %w", err)
		}
		stepper = mixed
		if pg.IsPrimary() {
			logger.Printf("mixed precision enabled at %s", cfg.OptLevel)
		}
	}

	scheduler := optimizer.NewStepDecayScheduler(cfg.LearningRate, cfg.Gamma, 1)
	scheduler.SetOptimizer(stepper)

	trainSet, err := mnist.LoadTrain(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("load training data: %w", err)
	}
	trainSampler := data.NewDistributedSampler(trainSet.Len(), pg.Rank(), pg.WorldSize(), true, cfg.Seed)
	trainLoader, err := data.NewDataLoader(trainSet, trainSampler, data.DataLoaderConfig{
		BatchSize: cfg.BatchSize,
		Prefetch:  cfg.Prefetch,
	})
	if err != nil {
		return fmt.Errorf("training loader: %w", err)
	}

	// Only rank 0 evaluates, so only it needs the test split.
	var testLoader *data.DataLoader
	if pg.IsPrimary() {
		testSet, err := mnist.LoadTest(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("load test data: %w", err)
		}
		testLoader, err = data.NewDataLoader(testSet, data.NewSequentialSampler(testSet.Len()), data.DataLoaderConfig{
			BatchSize: cfg.TestBatchSize,
			Prefetch:  cfg.Prefetch,
		})
		if err != nil {
			return fmt.Errorf("test loader: %w", err)
		}
	}

	savePath := ""
	if cfg.SaveModel {
		savePath = cfg.SavePath
	}
	trainer, err := train.New(model, ddp, pg, stepper, mixed, scheduler, logger, train.Config{
		Epochs:      cfg.Epochs,
		LogInterval: cfg.LogInterval,
		DryRun:      cfg.DryRun,
		SavePath:    savePath,
	})
	if err != nil {
		return err
	}
	return trainer.Fit(ctx, trainLoader, testLoader)
}
