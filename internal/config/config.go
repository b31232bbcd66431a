// Package config loads process settings via github.com/spf13/viper, with
// flag overrides bound through cobra at the CLI layer, per
// SPEC_FULL.md §4.17. Recognised options mirror §6 exactly.
package config

import (
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "EINVOICE"

// Config is the fully-resolved set of process settings.
type Config struct {
	WorkerConcurrency int
	TaskTimeout       time.Duration

	RetryMaxAttempts int
	RetryBase        time.Duration
	RetryCap         time.Duration

	KositTimeout       time.Duration
	KositBinaryPath    string
	KositScenariosPath string
	KositRepositoryPath string

	MonetaryTolerance float64

	MetadataDSN string
	ERPDSN      string

	BlobEndpoint  string
	BlobAccessKey string
	BlobSecretKey string
	BlobBucket    string
	BlobUseSSL    bool

	QueueEndpoint string
}

// BindFlags registers the flag overrides the "serve"/"process"/"migrate"
// commands accept, mirroring the printesoi-e-factura-go cobra+pflag+viper
// wiring style. Calling it again on a flag set that already carries the
// flags only re-binds them to v.
func BindFlags(flags *pflag.FlagSet, v *viper.Viper) {
	if flags.Lookup("worker-concurrency") != nil {
		v.BindPFlags(flags)
		return
	}
	flags.Int("worker-concurrency", 4, "number of concurrent worker goroutines")
	flags.Int("task-timeout-seconds", 600, "per-transaction processing timeout")
	flags.Int("retry-max-attempts", 5, "maximum transient-failure retries before terminal ERROR")
	flags.Int("retry-base-seconds", 60, "exponential backoff base duration")
	flags.Int("retry-cap-seconds", 600, "exponential backoff cap duration")
	flags.Int("kosit-timeout-seconds", 120, "KoSIT subprocess timeout")
	flags.Float64("monetary-tolerance", 0.02, "absolute currency-unit tolerance for arithmetic cross-checks")
	flags.String("metadata-dsn", "", "Postgres DSN for the metadata store")
	flags.String("erp-dsn", "", "Postgres DSN for the read-only ERP store")
	flags.String("blob-endpoint", "", "object storage endpoint")
	flags.String("blob-access-key", "", "object storage access key")
	flags.String("blob-secret-key", "", "object storage secret key")
	flags.String("blob-bucket", "einvoice", "object storage bucket name")
	flags.Bool("blob-use-ssl", true, "use TLS when talking to object storage")
	flags.String("queue-endpoint", "127.0.0.1:6379", "Redis address backing the task queue")
	flags.String("kosit-binary-path", "", "path to the KoSIT validator executable; empty skips Schematron validation")
	flags.String("kosit-scenarios-path", "", "path to the KoSIT scenarios.xml")
	flags.String("kosit-repository-path", "", "path to the KoSIT Schematron repository")

	v.BindPFlags(flags)
}

// Load resolves a Config from v, after BindFlags/flags.Parse and
// v.BindPFlags have already run, reading EINVOICE_-prefixed environment
// variables as the lowest-priority override beneath explicit flags.
func Load(v *viper.Viper) *Config {
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	return &Config{
		WorkerConcurrency:   v.GetInt("worker-concurrency"),
		TaskTimeout:         time.Duration(v.GetInt("task-timeout-seconds")) * time.Second,
		RetryMaxAttempts:    v.GetInt("retry-max-attempts"),
		RetryBase:           time.Duration(v.GetInt("retry-base-seconds")) * time.Second,
		RetryCap:            time.Duration(v.GetInt("retry-cap-seconds")) * time.Second,
		KositTimeout:        time.Duration(v.GetInt("kosit-timeout-seconds")) * time.Second,
		KositBinaryPath:     v.GetString("kosit-binary-path"),
		KositScenariosPath:  v.GetString("kosit-scenarios-path"),
		KositRepositoryPath: v.GetString("kosit-repository-path"),
		MonetaryTolerance:   v.GetFloat64("monetary-tolerance"),
		MetadataDSN:         v.GetString("metadata-dsn"),
		ERPDSN:              v.GetString("erp-dsn"),
		BlobEndpoint:        v.GetString("blob-endpoint"),
		BlobAccessKey:       v.GetString("blob-access-key"),
		BlobSecretKey:       v.GetString("blob-secret-key"),
		BlobBucket:          v.GetString("blob-bucket"),
		BlobUseSSL:          v.GetBool("blob-use-ssl"),
		QueueEndpoint:       v.GetString("queue-endpoint"),
	}
}
