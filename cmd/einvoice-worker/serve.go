package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/einvoice-platform/pipeline/internal/blobstore/miniostore"
	"github.com/einvoice-platform/pipeline/internal/config"
	"github.com/einvoice-platform/pipeline/internal/erpadapter/sqlxerp"
	"github.com/einvoice-platform/pipeline/internal/logging"
	"github.com/einvoice-platform/pipeline/internal/processor"
	"github.com/einvoice-platform/pipeline/internal/queue"
	"github.com/einvoice-platform/pipeline/internal/queue/redisqueue"
	"github.com/einvoice-platform/pipeline/internal/store"
)

// newServeCmd starts the worker pool against the queue and blocks. The
// pool itself is golang.org/x/sync/errgroup bounded by
// worker-concurrency, per SPEC_FULL.md §5.
func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the worker pool against the durable queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			config.BindFlags(cmd.Flags(), v)
			cfg := config.Load(v)
			return runServe(cmd.Context(), cfg)
		},
	}
	config.BindFlags(cmd.Flags(), v)
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(zapcore.InfoLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	repo, err := store.Open(cfg.MetadataDSN)
	if err != nil {
		return err
	}
	erp, err := sqlxerp.Open(cfg.ERPDSN)
	if err != nil {
		return err
	}
	defer erp.Close()

	blobs, err := miniostore.Open(miniostore.Config{
		Endpoint:        cfg.BlobEndpoint,
		AccessKeyID:     cfg.BlobAccessKey,
		SecretAccessKey: cfg.BlobSecretKey,
		UseSSL:          cfg.BlobUseSSL,
		Bucket:          cfg.BlobBucket,
	})
	if err != nil {
		return err
	}

	q := redisqueue.Open(cfg.QueueEndpoint)

	driverCfg := processor.Config{
		MonetaryTolerance:   cfg.MonetaryTolerance,
		RetryMaxAttempts:    cfg.RetryMaxAttempts,
		RetryBase:           cfg.RetryBase,
		RetryCap:            cfg.RetryCap,
		KositTimeout:        cfg.KositTimeout,
		KositBinaryPath:     cfg.KositBinaryPath,
		KositScenariosPath:  cfg.KositScenariosPath,
		KositRepositoryPath: cfg.KositRepositoryPath,
	}
	driver := processor.New(repo, blobs, erp, logger, driverCfg)

	group, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.WorkerConcurrency; i++ {
		workerID := uuid.NewString()
		group.Go(func() error {
			return workerLoop(groupCtx, q, driver, logger, workerID, cfg.TaskTimeout)
		})
	}
	return group.Wait()
}

func workerLoop(ctx context.Context, q queue.Queue, driver *processor.Driver, logger *zap.Logger, workerID string, taskTimeout time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		delivery, err := q.Dequeue(ctx)
		if err == queue.ErrEmpty {
			time.Sleep(time.Second)
			continue
		}
		if err != nil {
			logger.Error("dequeue failed", zap.Error(err), zap.String("worker_id", workerID))
			time.Sleep(time.Second)
			continue
		}

		id, err := uuid.Parse(delivery.TransactionID())
		if err != nil {
			_ = delivery.Ack(ctx)
			continue
		}

		taskCtx, cancel := context.WithTimeout(ctx, taskTimeout)
		outcome := driver.Run(taskCtx, id, delivery.DeliveryCount())
		cancel()

		switch {
		case outcome.Skipped:
			_ = delivery.Ack(ctx)
		case outcome.Retry:
			delay := driver.NextRetryDelay(delivery.DeliveryCount())
			_ = delivery.Nack(ctx, delay)
		default:
			_ = delivery.Ack(ctx)
		}
	}
}
