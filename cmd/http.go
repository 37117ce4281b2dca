package cmd

import (
	"context"
	"fmt"

	"github.com/foomo/keel"
	"github.com/foomo/keel/healthz"
	"github.com/foomo/keel/net/http/middleware"
	"github.com/foomo/keel/service"
	"github.com/foomo/receptionsuite/pkg/handler"
	"github.com/foomo/receptionsuite/pkg/idle"
	"github.com/foomo/receptionsuite/pkg/repo"
	"github.com/foomo/receptionsuite/pkg/storage"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func NewHTTPCommand() *cobra.Command {
	v := newViper()
	// TODO: When keel is updated, set it in the correct place
	service.DefaultHTTPPProfAddr = ":6060"

	cmd := &cobra.Command{
		Use:   "http",
		Short: "Start the storage server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, shutdown := context.WithCancel(cmd.Context())
			defer shutdown()

			svr := keel.NewServer(
				keel.WithContext(ctx),
				keel.WithHTTPPrometheusService(servicePrometheusEnabledFlag(v)),
				keel.WithHTTPHealthzService(serviceHealthzEnabledFlag(v)),
				keel.WithPrometheusMeter(servicePrometheusEnabledFlag(v)),
				keel.WithGracefulPeriod(gracefulPeriodFlag(v)),
				keel.WithOTLPGRPCTracer(otelEnabledFlag(v)),
				keel.WithHTTPPProfService(servicePProfEnabledFlag(v)),
			)

			l := svr.Logger()

			s, err := storage.New(ctx, l.Named("inst.storage"), storageConfigFlag(v))
			if err != nil {
				return fmt.Errorf("failed to create storage: %w", err)
			}

			history := repo.NewHistory(l.Named("inst.history"), s,
				repo.HistoryWithLimit(historyLimitFlag(v)),
			)
			r := repo.New(l.Named("inst.repo"), s, repo.WithHistory(history))
			watchdog := idle.New(l.Named("inst.idle"), idleTimeoutFlag(v))

			storageHealthzerFn := healthz.NewHealthzerFn(func(ctx context.Context) error {
				_, err := r.Keys(ctx)
				return err
			})
			svr.AddStartupHealthzers(storageHealthzerFn)
			svr.AddReadinessHealthzers(storageHealthzerFn)

			svr.AddClosers(func(ctx context.Context) error {
				return s.Close()
			})

			svr.AddServices(
				service.NewGoRoutine(l.Named("go.idle"), "idle", func(ctx context.Context, l *zap.Logger) error {
					if err := watchdog.Run(ctx); !errors.Is(err, idle.ErrIdle) {
						return err
					}
					l.Info("no requests within the idle timeout, shutting down", zap.Duration("timeout", idleTimeoutFlag(v)))
					shutdown()
					return nil
				}),
				service.NewHTTP(l.Named("svc.http"), "http", addressFlag(v),
					handler.NewHTTP(l.Named("inst.handler"), r,
						handler.WithBasePath(basePathFlag(v)),
						handler.WithStaticDir(staticDirFlag(v)),
						handler.WithIdleWatchdog(watchdog),
					),
					middleware.Telemetry(),
					middleware.Logger(),
					middleware.GZip(middleware.GZipWithLevel(gzipLevelFlag(v))),
					middleware.Recover(),
				),
			)

			svr.Run()
			return nil
		},
	}

	flags := cmd.Flags()
	addAddressFlag(flags, v)
	addBasePathFlag(flags, v)
	addStaticDirFlag(flags, v)
	addIdleTimeoutFlag(flags, v)
	addHistoryLimitFlag(flags, v)
	addGracefulPeriodFlag(flags, v)
	addOtelEnabledFlag(flags, v)
	addServiceHealthzEnabledFlag(flags, v)
	addServicePrometheusEnabledFlag(flags, v)
	addServicePProfEnabledFlag(flags, v)
	addStorageFlags(flags, v)
	addGzipLevelFlag(flags, v)

	return cmd
}
