package cmd

import (
	"time"

	"github.com/foomo/receptionsuite/pkg/connectivity"
	"github.com/foomo/receptionsuite/pkg/handler"
	"github.com/foomo/receptionsuite/pkg/storage"
	"github.com/foomo/receptionsuite/pkg/syncqueue"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func logLevelFlag(v *viper.Viper) string {
	return v.GetString("log.level")
}

func addLogLevelFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("log-level", "info", "log level")
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindEnv("log.level", "LOG_LEVEL")
}

func logFormatFlag(v *viper.Viper) string {
	return v.GetString("log.format")
}

func addLogFormatFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("log-format", "json", "log format")
	_ = v.BindPFlag("log.format", flags.Lookup("log-format"))
	_ = v.BindEnv("log.format", "LOG_FORMAT")
}

// ------------------------------------------------------------------------------------------------
// ~ Server
// ------------------------------------------------------------------------------------------------

func addressFlag(v *viper.Viper) string {
	return v.GetString("address")
}

func addAddressFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("address", ":8080", "Address to bind to (host:port)")
	_ = v.BindPFlag("address", flags.Lookup("address"))
	_ = v.BindEnv("address", "RECEPTIONSUITE_ADDRESS")
}

func basePathFlag(v *viper.Viper) string {
	return v.GetString("base_path")
}

func addBasePathFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("base-path", handler.DefaultBasePath, "Base path to export the storage api on")
	_ = v.BindPFlag("base_path", flags.Lookup("base-path"))
	_ = v.BindEnv("base_path", "RECEPTIONSUITE_BASE_PATH")
}

func staticDirFlag(v *viper.Viper) string {
	return v.GetString("static_dir")
}

func addStaticDirFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("static-dir", "", "Directory served on / (e.g. the dashboard bundle)")
	_ = v.BindPFlag("static_dir", flags.Lookup("static-dir"))
	_ = v.BindEnv("static_dir", "RECEPTIONSUITE_STATIC_DIR")
}

func idleTimeoutFlag(v *viper.Viper) time.Duration {
	return v.GetDuration("idle_timeout")
}

func addIdleTimeoutFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Duration("idle-timeout", 0, "Shut down after this long without requests, 0 disables")
	_ = v.BindPFlag("idle_timeout", flags.Lookup("idle-timeout"))
	_ = v.BindEnv("idle_timeout", "RECEPTIONSUITE_IDLE_TIMEOUT")
}

func historyLimitFlag(v *viper.Viper) int {
	return v.GetInt("history.limit")
}

func addHistoryLimitFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Int("history-limit", 2, "Number of previous versions to keep per resource, 0 disables")
	_ = v.BindPFlag("history.limit", flags.Lookup("history-limit"))
	_ = v.BindEnv("history.limit", "RECEPTIONSUITE_HISTORY_LIMIT")
}

func gracefulPeriodFlag(v *viper.Viper) time.Duration {
	return v.GetDuration("graceful_period")
}

func addGracefulPeriodFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Duration("graceful-period", 0, "Graceful period before shutting down")
	_ = v.BindPFlag("graceful_period", flags.Lookup("graceful-period"))
	_ = v.BindEnv("graceful_period", "RECEPTIONSUITE_GRACEFUL_PERIOD")
}

func gzipLevelFlag(v *viper.Viper) int {
	return v.GetInt("gzip.level")
}

func addGzipLevelFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Int("gzip-level", 6, "Compression level of http responses")
	_ = v.BindPFlag("gzip.level", flags.Lookup("gzip-level"))
	_ = v.BindEnv("gzip.level", "RECEPTIONSUITE_GZIP_LEVEL")
}

func serviceHealthzEnabledFlag(v *viper.Viper) bool {
	return v.GetBool("service.healthz.enabled")
}

func addServiceHealthzEnabledFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Bool("service-healthz-enabled", false, "Enable healthz service")
	_ = v.BindPFlag("service.healthz.enabled", flags.Lookup("service-healthz-enabled"))
}

func servicePrometheusEnabledFlag(v *viper.Viper) bool {
	return v.GetBool("service.prometheus.enabled")
}

func addServicePrometheusEnabledFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Bool("service-prometheus-enabled", false, "Enable prometheus service")
	_ = v.BindPFlag("service.prometheus.enabled", flags.Lookup("service-prometheus-enabled"))
}

func servicePProfEnabledFlag(v *viper.Viper) bool {
	return v.GetBool("service.pprof.enabled")
}

func addServicePProfEnabledFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Bool("service-pprof-enabled", false, "Enable pprof service")
	_ = v.BindPFlag("service.pprof.enabled", flags.Lookup("service-pprof-enabled"))
}

func otelEnabledFlag(v *viper.Viper) bool {
	return v.GetBool("otel.enabled")
}

func addOtelEnabledFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Bool("otel-enabled", false, "Enable otel service")
	_ = v.BindPFlag("otel.enabled", flags.Lookup("otel-enabled"))
	_ = v.BindEnv("otel.enabled", "OTEL_ENABLED")
}

// ------------------------------------------------------------------------------------------------
// ~ Storage
// ------------------------------------------------------------------------------------------------

// storageConfigFlag returns the storage config of the server
func storageConfigFlag(v *viper.Viper) storage.Config {
	return storage.Config{
		Type:       v.GetString("storage.type"),
		Dir:        v.GetString("storage.dir"),
		BlobBucket: v.GetString("storage.blob.bucket"),
		BlobPrefix: v.GetString("storage.blob.prefix"),
		SQLitePath: v.GetString("storage.sqlite.path"),
	}
}

func addStorageFlags(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("storage-type", storage.TypeFilesystem, "Storage backend (filesystem, blob, sqlite)")
	_ = v.BindPFlag("storage.type", flags.Lookup("storage-type"))
	_ = v.BindEnv("storage.type", "RECEPTIONSUITE_STORAGE_TYPE")

	flags.String("storage-dir", "data", "Directory of the filesystem storage")
	_ = v.BindPFlag("storage.dir", flags.Lookup("storage-dir"))
	_ = v.BindEnv("storage.dir", "RECEPTIONSUITE_STORAGE_DIR")

	flags.String("storage-blob-bucket", "", "Blob bucket url (gs://, s3://, azblob://, file://)")
	_ = v.BindPFlag("storage.blob.bucket", flags.Lookup("storage-blob-bucket"))
	_ = v.BindEnv("storage.blob.bucket", "RECEPTIONSUITE_STORAGE_BLOB_BUCKET")

	flags.String("storage-blob-prefix", "", "Key prefix within the blob bucket")
	_ = v.BindPFlag("storage.blob.prefix", flags.Lookup("storage-blob-prefix"))
	_ = v.BindEnv("storage.blob.prefix", "RECEPTIONSUITE_STORAGE_BLOB_PREFIX")

	flags.String("storage-sqlite-path", "data/receptionsuite.db", "Path of the sqlite database")
	_ = v.BindPFlag("storage.sqlite.path", flags.Lookup("storage-sqlite-path"))
	_ = v.BindEnv("storage.sqlite.path", "RECEPTIONSUITE_STORAGE_SQLITE_PATH")
}

// ------------------------------------------------------------------------------------------------
// ~ Client
// ------------------------------------------------------------------------------------------------

func serverFlag(v *viper.Viper) string {
	return v.GetString("server")
}

func addServerFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("server", "http://127.0.0.1:8080"+handler.DefaultBasePath, "Storage api url")
	_ = v.BindPFlag("server", flags.Lookup("server"))
	_ = v.BindEnv("server", "RECEPTIONSUITE_SERVER")
}

func modeFlag(v *viper.Viper) string {
	return v.GetString("mode")
}

func addModeFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("mode", "remote", "Where resources are read from and written to (remote, local)")
	_ = v.BindPFlag("mode", flags.Lookup("mode"))
	_ = v.BindEnv("mode", "RECEPTIONSUITE_MODE")
}

// localConfigFlag returns the config of the client's local store
func localConfigFlag(v *viper.Viper) storage.Config {
	return storage.Config{
		Type:       v.GetString("local.type"),
		Dir:        v.GetString("local.dir"),
		SQLitePath: v.GetString("local.sqlite.path"),
	}
}

func addLocalFlags(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("local-type", storage.TypeFilesystem, "Local store backend (filesystem, sqlite)")
	_ = v.BindPFlag("local.type", flags.Lookup("local-type"))
	_ = v.BindEnv("local.type", "RECEPTIONSUITE_LOCAL_TYPE")

	flags.String("local-dir", ".receptionsuite", "Directory of the local filesystem store")
	_ = v.BindPFlag("local.dir", flags.Lookup("local-dir"))
	_ = v.BindEnv("local.dir", "RECEPTIONSUITE_LOCAL_DIR")

	flags.String("local-sqlite-path", ".receptionsuite/local.db", "Path of the local sqlite store")
	_ = v.BindPFlag("local.sqlite.path", flags.Lookup("local-sqlite-path"))
	_ = v.BindEnv("local.sqlite.path", "RECEPTIONSUITE_LOCAL_SQLITE_PATH")
}

func requestTimeoutFlag(v *viper.Viper) time.Duration {
	return v.GetDuration("request_timeout")
}

func addRequestTimeoutFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Duration("request-timeout", 30*time.Second, "Timeout of a single storage api request")
	_ = v.BindPFlag("request_timeout", flags.Lookup("request-timeout"))
	_ = v.BindEnv("request_timeout", "RECEPTIONSUITE_REQUEST_TIMEOUT")
}

func retryDelayFlag(v *viper.Viper) time.Duration {
	return v.GetDuration("queue.retry_delay")
}

func addRetryDelayFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Duration("retry-delay", syncqueue.DefaultRetryDelay, "Delay before failed deliveries are retried")
	_ = v.BindPFlag("queue.retry_delay", flags.Lookup("retry-delay"))
	_ = v.BindEnv("queue.retry_delay", "RECEPTIONSUITE_RETRY_DELAY")
}

func syncIntervalFlag(v *viper.Viper) time.Duration {
	return v.GetDuration("queue.interval")
}

func addSyncIntervalFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Duration("sync-interval", syncqueue.DefaultInterval, "Interval of the recurring queue drain")
	_ = v.BindPFlag("queue.interval", flags.Lookup("sync-interval"))
	_ = v.BindEnv("queue.interval", "RECEPTIONSUITE_SYNC_INTERVAL")
}

func maxAgeFlag(v *viper.Viper) time.Duration {
	return v.GetDuration("queue.max_age")
}

func addMaxAgeFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Duration("max-age", 0, "Evict queued writes older than this, 0 keeps them forever")
	_ = v.BindPFlag("queue.max_age", flags.Lookup("max-age"))
	_ = v.BindEnv("queue.max_age", "RECEPTIONSUITE_MAX_AGE")
}

func deliveryTimeoutFlag(v *viper.Viper) time.Duration {
	return v.GetDuration("queue.delivery_timeout")
}

func addDeliveryTimeoutFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Duration("delivery-timeout", 0, "Timeout of a single queued delivery, 0 waits for the request timeout")
	_ = v.BindPFlag("queue.delivery_timeout", flags.Lookup("delivery-timeout"))
	_ = v.BindEnv("queue.delivery_timeout", "RECEPTIONSUITE_DELIVERY_TIMEOUT")
}

func probeIntervalFlag(v *viper.Viper) time.Duration {
	return v.GetDuration("probe_interval")
}

func addProbeIntervalFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Duration("probe-interval", connectivity.DefaultInterval, "Interval of the connectivity probe")
	_ = v.BindPFlag("probe_interval", flags.Lookup("probe-interval"))
	_ = v.BindEnv("probe_interval", "RECEPTIONSUITE_PROBE_INTERVAL")
}

func waitFlag(v *viper.Viper) time.Duration {
	return v.GetDuration("wait")
}

func addWaitFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Duration("wait", 5*time.Second, "How long to wait for the write to be delivered")
	_ = v.BindPFlag("wait", flags.Lookup("wait"))
	_ = v.BindEnv("wait", "RECEPTIONSUITE_WAIT")
}

// addClientFlags adds the flags shared by all commands talking to the storage server
func addClientFlags(flags *pflag.FlagSet, v *viper.Viper) {
	addServerFlag(flags, v)
	addModeFlag(flags, v)
	addLocalFlags(flags, v)
	addRequestTimeoutFlag(flags, v)
	addRetryDelayFlag(flags, v)
	addSyncIntervalFlag(flags, v)
	addMaxAgeFlag(flags, v)
	addDeliveryTimeoutFlag(flags, v)
}
