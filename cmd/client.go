package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	keelhttp "github.com/foomo/keel/net/http"
	"github.com/foomo/receptionsuite/client"
	"github.com/foomo/receptionsuite/pkg/connectivity"
	"github.com/foomo/receptionsuite/pkg/resource"
	"github.com/foomo/receptionsuite/pkg/storage"
	"github.com/foomo/receptionsuite/pkg/syncqueue"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func NewGetCommand() *cobra.Command {
	v := newViper()
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := newBackend(cmd.Context(), zap.L(), v)
			if err != nil {
				return err
			}
			defer closeBackend(b)

			value, err := resource.New[jsoniter.RawMessage](b, args[0]).ReadAll(cmd.Context(), jsoniter.RawMessage("null"))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(value))
			return err
		},
	}

	addClientFlags(cmd.Flags(), v)

	return cmd
}

func NewPutCommand() *cobra.Command {
	v := newViper()
	cmd := &cobra.Command{
		Use:   "put <key> [file|-]",
		Short: "Save a resource, it is queued while the storage server is unreachable",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[1:])
			if err != nil {
				return err
			}

			b, err := newBackend(cmd.Context(), zap.L(), v)
			if err != nil {
				return err
			}
			defer closeBackend(b)

			flush, err := resource.New[jsoniter.RawMessage](b, args[0]).Save(cmd.Context(), jsoniter.RawMessage(data))
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), waitFlag(v))
			defer cancel()
			// a timeout leaves the write queued
			report, _ := flush.Wait(ctx)
			switch {
			case report.Skipped == syncqueue.SkipLocal:
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: stored locally\n", args[0])
			case report.Delivered(args[0]):
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: delivered\n", args[0])
			default:
				if deliveryErr := report.Err(); deliveryErr != nil {
					zap.L().Warn("delivery failed", zap.Error(deliveryErr))
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: queued (%d pending)\n", args[0], b.Queue().Len())
			}
			return err
		},
	}

	flags := cmd.Flags()
	addClientFlags(flags, v)
	addWaitFlag(flags, v)

	return cmd
}

func NewSyncCommand() *cobra.Command {
	v := newViper()
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Keep draining the offline queue until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l := zap.L().Named("sync")
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := newClient(v)
			if err != nil {
				return err
			}
			monitor := connectivity.New(l, c, connectivity.WithInterval(probeIntervalFlag(v)))

			b, err := newBackend(ctx, l, v, syncqueue.WithConnectivity(monitor))
			if err != nil {
				return err
			}
			defer closeBackend(b)

			monitor.OnOnline(func() {
				b.Queue().HandleOnline()
			})

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return b.Queue().Start(gctx)
			})
			g.Go(func() error {
				return monitor.Run(gctx)
			})
			l.Info("syncing", zap.String("server", serverFlag(v)), zap.Int("pending", b.Queue().Len()))
			return g.Wait()
		},
	}

	flags := cmd.Flags()
	addClientFlags(flags, v)
	addProbeIntervalFlag(flags, v)

	return cmd
}

func NewQueueCommand() *cobra.Command {
	v := newViper()
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Print the pending writes of the offline queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := newBackend(cmd.Context(), zap.L(), v)
			if err != nil {
				return err
			}
			defer closeBackend(b)

			data, err := json.MarshalIndent(b.Queue().Entries(), "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}

	addClientFlags(cmd.Flags(), v)

	return cmd
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

func newClient(v *viper.Viper) (*client.Client, error) {
	return client.NewHTTPClient(serverFlag(v),
		client.WithHTTPClient(
			keelhttp.NewHTTPClient(
				keelhttp.HTTPClientWithTimeout(requestTimeoutFlag(v)),
				keelhttp.HTTPClientWithTelemetry(),
			),
		),
	)
}

// newBackend wires the client, the local store and the offline queue
func newBackend(ctx context.Context, l *zap.Logger, v *viper.Viper, opts ...syncqueue.Option) (*resource.Backend, error) {
	mode, err := resource.ParseMode(modeFlag(v))
	if err != nil {
		return nil, err
	}

	c, err := newClient(v)
	if err != nil {
		return nil, err
	}

	local, err := storage.New(ctx, l.Named("inst.local"), localConfigFlag(v))
	if err != nil {
		return nil, fmt.Errorf("failed to create local storage: %w", err)
	}

	q, err := syncqueue.New(ctx, l, local, c, append([]syncqueue.Option{
		syncqueue.WithInterval(syncIntervalFlag(v)),
		syncqueue.WithRetryDelay(retryDelayFlag(v)),
		syncqueue.WithMaxAge(maxAgeFlag(v)),
		syncqueue.WithDeliveryTimeout(deliveryTimeoutFlag(v)),
	}, opts...)...)
	if err != nil {
		_ = local.Close()
		return nil, fmt.Errorf("failed to create queue: %w", err)
	}

	return resource.NewBackend(l, c, local, q, resource.NewSwitch(mode)), nil
}

func closeBackend(b *resource.Backend) {
	if err := b.Close(); err != nil {
		zap.L().Warn("failed to close backend", zap.Error(err))
	}
}

// readInput reads the document from the named file or stdin
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}
