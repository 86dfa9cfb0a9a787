package main

import (
	"fmt"
	"runtime"

	"github.com/pocketmarket/moderation/internal/moderation"
	"github.com/spf13/cobra"
)

// Version is set by build flags.
var Version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and blocklist information",
	Run: func(cmd *cobra.Command, args []string) {
		sets := moderation.DefaultSets()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "modcheck %s\n", Version)
		fmt.Fprintf(out, "Filter version: %s\n", moderation.Default().Version())
		fmt.Fprintf(out, "Phrases: prohibited=%d hate=%d scam=%d contact=%d safe_context=%d\n",
			sets.Prohibited.Len(), sets.HateSpeech.Len(), sets.Scam.Len(),
			sets.ContactBypass.Len(), sets.SafeContext.Len())
		fmt.Fprintf(out, "Go Version: %s\n", runtime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
