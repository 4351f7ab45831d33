// spicebridge: session bridge between a local display client and a SPICE guest.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go.klb.dev/spicebridge/internal/logging"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "spicebridge",
		Short: "Session bridge to a SPICE guest",
		Long: `spicebridge owns one logical remote-display connection: it binds the
inputs and main channels as the protocol client discovers them, forwards
mouse/keyboard/clipboard/drag events to the guest, and delivers frames,
window metadata, and clipboard updates back to the embedding application.

"spicebridge connect" runs a standalone bridge with local clipboard sync,
which is also the quickest way to exercise the whole surface.

Config file search order (first found wins):
  /etc/spicebridge/spicebridge.toml
  $HOME/.config/spicebridge/spicebridge.toml
  path supplied via --config

All flags can be set via SPICEBRIDGE_<FLAG> env vars or config-file keys.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newConnectCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("spicebridge %s\n", Version)
		},
	}
}

// resolveLogging sets up the global slog logger after flags are parsed.
func resolveLogging(interactive bool, formatStr, levelStr string) {
	format := logging.ParseFormat(formatStr)
	level := logging.ParseLevel(levelStr)
	if levelStr == "" {
		if interactive {
			level = logging.ParseLevel("debug")
		} else {
			level = logging.ParseLevel("info")
		}
	}
	logging.Setup(format, level)
}
