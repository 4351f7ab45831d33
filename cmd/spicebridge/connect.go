package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/spicebridge/internal/clip"
	"go.klb.dev/spicebridge/internal/clipsync"
	"go.klb.dev/spicebridge/internal/spice/spicetest"
	"go.klb.dev/spicebridge/internal/stream"
)

// frameLogEvery throttles frame logging to roughly every 10s at 30fps.
const frameLogEvery = 300

func newConnectCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Open a bridge stream and run it until interrupted",
		Long: `Opens one stream to a SPICE guest, keeps the local clipboard in sync,
and logs metadata/frame/closed activity until SIGINT or SIGTERM.

With --fd the session runs over a pre-connected descriptor (shared-memory
transport); otherwise --host/--port are used, optionally with --tls and a
--ticket.

Config file search order:
  /etc/spicebridge/spicebridge.toml
  $HOME/.config/spicebridge/spicebridge.toml
  path supplied via --config

Precedence (lowest → highest): defaults → config file → SPICEBRIDGE_* env vars → flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runConnect(v) },
	}

	f := cmd.Flags()
	f.String("host", "127.0.0.1", "guest host")
	f.Uint16("port", 5900, "guest port")
	f.Bool("tls", false, "connect over TLS")
	f.String("ticket", "", "session password (empty = no auth)")
	f.Int("fd", -1, "pre-connected descriptor; >= 0 selects the shared transport")
	f.Uint64("window-id", 1, "guest window identifier")
	f.Bool("no-clipboard", false, "disable local clipboard sync")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runConnect(v *viper.Viper) error {
	setupLogging(v)

	host := v.GetString("host")
	port := v.GetUint16("port")
	useTLS := v.GetBool("tls")
	fd := v.GetInt("fd")
	windowID := v.GetUint64("window-id")
	noClipboard := v.GetBool("no-clipboard")

	slog.Info("spicebridge starting",
		"version", Version,
		"window", windowID,
		"clipboard", !noClipboard,
	)

	var frames atomic.Uint64
	cfg := stream.Config{
		WindowID: windowID,
		// The in-memory doubles stand in for a real protocol-client
		// adapter (a libspice-client binding) until one is wired up.
		Factory: &spicetest.Factory{AutoChannels: true},
		Ticket:  v.GetString("ticket"),
		Frame: func(data []byte) {
			if n := frames.Add(1); n%frameLogEvery == 0 {
				slog.Debug("frames delivered", "count", n, "bytes", len(data))
			}
		},
		Metadata: func(m stream.WindowMetadata) {
			slog.Info("window metadata",
				"window", m.WindowID,
				"size", fmt.Sprintf("%.0fx%.0f", m.Width, m.Height),
				"scale", m.ScaleFactor,
				"title", m.Title,
			)
		},
		Closed: func(reason stream.CloseReason, msg string) {
			slog.Info("stream closed by guest", "reason", reason.String(), "msg", msg)
		},
	}

	var (
		s   *stream.Stream
		err error
	)
	if fd >= 0 {
		s, err = stream.OpenFD(fd, cfg)
	} else {
		s, err = stream.OpenTCP(host, port, useTLS, cfg)
	}
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !noClipboard {
		backend := clip.New()
		defer backend.Close()
		go func() {
			_ = clipsync.New(s, backend).Run(ctx)
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	got := <-sig
	slog.Info("shutting down", "signal", got.String())

	cancel()
	s.Close()
	return nil
}
