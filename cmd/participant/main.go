package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/immxrtalbeast/codetutor/lib/logger/slogpretty"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	flagServer  string
	flagName    string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "participant",
	Short: "Headless participant of a CodeTutor room",
	Long: `participant joins a CodeTutor room the way a browser would: it signals
through the room server, calls every other participant over WebRTC and keeps
local replicas of the roster, editor, whiteboard and terminal.

Examples:
  participant host --name Tutor
  participant join "https://tutor.example/?session=abcd1234&room=ROOM42"`,
}

func main() {
	_ = godotenv.Load(".env")

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	rootCmd.PersistentFlags().StringVar(&flagServer, "server", envOr("CODETUTOR_SERVER", "http://localhost:8080"), "room server base URL")
	rootCmd.PersistentFlags().StringVar(&flagName, "name", "", "display name")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log pion and signaling details")

	rootCmd.AddCommand(hostCmd, joinCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func setupLogger() *slog.Logger {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{Level: level},
	}
	return slog.New(opts.NewPrettyHandler(os.Stderr))
}
