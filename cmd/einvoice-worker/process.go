package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/einvoice-platform/pipeline/internal/blobstore/miniostore"
	"github.com/einvoice-platform/pipeline/internal/config"
	"github.com/einvoice-platform/pipeline/internal/erpadapter/sqlxerp"
	"github.com/einvoice-platform/pipeline/internal/logging"
	"github.com/einvoice-platform/pipeline/internal/processor"
	"github.com/einvoice-platform/pipeline/internal/store"
)

// newProcessCmd runs one transaction synchronously, for operators and
// integration tests, per SPEC_FULL.md §4.19.
func newProcessCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process <transaction-id>",
		Short: "Run one transaction synchronously",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config.BindFlags(cmd.Flags(), v)
			cfg := config.Load(v)
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid transaction id: %w", err)
			}
			return runProcess(cmd.Context(), cfg, id)
		},
	}
	config.BindFlags(cmd.Flags(), v)
	return cmd
}

func runProcess(ctx context.Context, cfg *config.Config, id uuid.UUID) error {
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

	driver := processor.New(repo, blobs, erp, logger, processor.Config{
		MonetaryTolerance:   cfg.MonetaryTolerance,
		RetryMaxAttempts:    cfg.RetryMaxAttempts,
		RetryBase:           cfg.RetryBase,
		RetryCap:            cfg.RetryCap,
		KositTimeout:        cfg.KositTimeout,
		KositBinaryPath:     cfg.KositBinaryPath,
		KositScenariosPath:  cfg.KositScenariosPath,
		KositRepositoryPath: cfg.KositRepositoryPath,
		WorkerID:            "cli",
	})

	outcome := driver.Run(ctx, id, 1)
	if outcome.Err != nil {
		return outcome.Err
	}
	fmt.Printf("transaction %s terminal status: %s\n", id, outcome.Terminal)
	return nil
}
