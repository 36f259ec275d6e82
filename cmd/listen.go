/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/allbin/sergw/internal/advertise"
	"github.com/allbin/sergw/internal/bridge"
	"github.com/allbin/sergw/internal/metrics"
	"github.com/allbin/sergw/serial"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// listenCmd represents the listen command
var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Bridge a serial device to a TCP listener",
	Long: `Open a serial device and share it with every client that connects
to the TCP listener.

When --serial is not given, the single USB serial device present is used;
with none or several present the command fails and lists what it found.

When stdout is a terminal an interactive overview is shown with the link
state, connected clients, throughput and a live byte inspector. Logs then
go to --log-file, or sergw.log in the temp directory. Pass --no-tui to log
to stderr instead.

Example usage:
  sergw listen
  sergw listen --serial /dev/ttyUSB0 --baud 9600 --parity even
  sergw listen --host 0.0.0.0:5656 --open lazy --metrics-addr :9100 --advertise`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := settings(cmd)
		if err != nil {
			return err
		}

		cfg, err := listenConfig(v)
		if err != nil {
			return err
		}

		device, err := serial.AutoSelectPort(v.GetString("serial"))
		if err != nil {
			return err
		}
		cfg.Device = device

		useTUI := !v.GetBool("no-tui") && isatty.IsTerminal(os.Stdout.Fd())
		var logFallback string
		if useTUI {
			logFallback = filepath.Join(os.TempDir(), "sergw.log")
		}
		logger, logCloser, err := newLogger(v, logFallback)
		if err != nil {
			return err
		}
		defer logCloser.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runListen(ctx, cfg, listenOptions{
			tui:         useTUI,
			metricsAddr: v.GetString("metrics-addr"),
			advertise:   v.GetBool("advertise"),
		}, logger)
	},
}

func init() {
	rootCmd.AddCommand(listenCmd)

	listenCmd.Flags().StringP("serial", "s", "", "Serial device path (default: the only USB serial device)")
	listenCmd.Flags().IntP("baud", "b", 115200, "Baud rate")
	listenCmd.Flags().String("data-bits", "8", "Data bits: 5, 6, 7, 8 (or five..eight)")
	listenCmd.Flags().String("parity", "none", "Parity: none, odd, even")
	listenCmd.Flags().String("stop-bits", "1", "Stop bits: 1, 2 (or one, two)")
	listenCmd.Flags().StringP("host", "H", bridge.DefaultListen, "TCP address to listen on")
	listenCmd.Flags().Int("buffer", bridge.DefaultQueueCapacity, "Per-client outbound queue, in chunks; a client that falls this far behind is dropped")
	listenCmd.Flags().Int("write-queue", bridge.DefaultWriteQueue, "Client-to-serial queue, in chunks")
	listenCmd.Flags().String("open", "eager", "When to open the device: eager, lazy, on-demand")
	listenCmd.Flags().Duration("reconnect-min", bridge.DefaultReconnectMin, "Initial delay between reopen attempts")
	listenCmd.Flags().Duration("reconnect-max", bridge.DefaultReconnectMax, "Maximum delay between reopen attempts")
	listenCmd.Flags().Bool("no-tui", false, "Log to stderr instead of showing the interactive view")
	listenCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics at http://<addr>/metrics")
	listenCmd.Flags().Bool("advertise", false, "Advertise the bridge over mDNS as _sergw._tcp")
}

// listenConfig resolves the bridge configuration, minus the device path
func listenConfig(v *viper.Viper) (bridge.Config, error) {
	dataBits, err := serial.ParseDataBits(v.GetString("data-bits"))
	if err != nil {
		return bridge.Config{}, err
	}
	stopBits, err := serial.ParseStopBits(v.GetString("stop-bits"))
	if err != nil {
		return bridge.Config{}, err
	}
	parity, err := serial.ParseParity(v.GetString("parity"))
	if err != nil {
		return bridge.Config{}, err
	}

	line, err := serial.NewConfig(
		serial.WithBaudRate(v.GetInt("baud")),
		serial.WithDataBits(dataBits),
		serial.WithStopBits(stopBits),
		serial.WithParity(parity),
	)
	if err != nil {
		return bridge.Config{}, fmt.Errorf("baud %d: %w", v.GetInt("baud"), err)
	}

	policy, err := bridge.ParseOpenPolicy(v.GetString("open"))
	if err != nil {
		return bridge.Config{}, err
	}

	cfg := bridge.DefaultConfig("")
	cfg.Serial = line
	cfg.Listen = v.GetString("host")
	cfg.QueueCapacity = v.GetInt("buffer")
	cfg.WriteQueue = v.GetInt("write-queue")
	cfg.OpenPolicy = policy
	cfg.ReconnectMin = v.GetDuration("reconnect-min")
	cfg.ReconnectMax = v.GetDuration("reconnect-max")
	return cfg, nil
}

// eventBuffer is how many bus events a consumer may lag behind before
// losing some
const eventBuffer = 4096

type listenOptions struct {
	tui         bool
	metricsAddr string
	advertise   bool
}

// runListen runs the bridge and its companions until ctx is done, the
// bridge fails, or the user quits the TUI
func runListen(ctx context.Context, cfg bridge.Config, opts listenOptions, logger *logrus.Logger) error {
	id := uuid.New()
	log := logger.WithField("instance", id.String())

	b, err := bridge.New(cfg, bridge.WithLogger(log))
	if err != nil {
		return err
	}

	collector := metrics.NewCollector(b)
	collectorSub := b.Subscribe(eventBuffer)
	var tuiSub *bridge.Subscription
	if opts.tui {
		tuiSub = b.Subscribe(eventBuffer)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Everything else winds down with the bridge
		defer cancel()
		return b.Run(gctx)
	})
	g.Go(func() error {
		collector.Run(gctx, collectorSub)
		return nil
	})
	g.Go(func() error {
		metrics.NewReporter(collector.Throughput(), log.WithField("component", "throughput")).Run(gctx)
		return nil
	})

	if opts.metricsAddr != "" {
		g.Go(func() error {
			mlog := log.WithField("component", "metrics")
			if err := collector.Serve(gctx, opts.metricsAddr, mlog); err != nil {
				mlog.WithError(err).Warn("metrics endpoint failed, continuing without it")
			}
			return nil
		})
	}

	if opts.advertise {
		g.Go(func() error {
			select {
			case <-b.Ready():
			case <-gctx.Done():
				return nil
			}
			advertise.Run(gctx, cfg.Device, b.Addr().Port, id, log.WithField("component", "advertise"))
			return nil
		})
	}

	if opts.tui {
		g.Go(func() error {
			defer cancel()
			return runListenTUI(gctx, b, tuiSub)
		})
	}

	return g.Wait()
}
