package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Global flags
var (
	remote  bool
	natsURL string
	timeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "modcheck",
	Short: "Check listings and messages against the Pocket Market content policy",
	Long: `modcheck classifies listing and message text the same way the moderation
service does. By default checks run in-process against the built-in
blocklists. With --remote they are sent to a running moderator over NATS,
which also applies rate limits, strikes and the audit log.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env is fine; flags and the environment still apply.
		_ = godotenv.Load()
		if natsURL == "" {
			natsURL = os.Getenv("NATS_URL")
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&remote, "remote", "r", false, "send the check to a moderator over NATS")
	rootCmd.PersistentFlags().StringVar(&natsURL, "nats-url", "", "NATS server URL (default $NATS_URL or nats://localhost:4222)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 3*time.Second, "remote request timeout")
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
