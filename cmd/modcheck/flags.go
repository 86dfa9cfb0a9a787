package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pocketmarket/moderation/internal/audit"
	"github.com/spf13/cobra"
)

var flagsFlags struct {
	driver string
	dsn    string
	user   string
	limit  int
	window time.Duration
}

var flagsCmd = &cobra.Command{
	Use:   "flags",
	Short: "List recent flags from the audit log",
	Long: `Read the newest flagged checks from the audit database.

The database defaults to $DATABASE_URL with the driver from $AUDIT_DRIVER.

Examples:
  modcheck flags --limit 20
  modcheck flags --user u42 --window 24h
  modcheck flags --driver sqlite --dsn ./audit.db`,
	RunE: runFlags,
}

func init() {
	rootCmd.AddCommand(flagsCmd)

	flagsCmd.Flags().StringVar(&flagsFlags.driver, "driver", "", "database driver: postgres, sqlite (default $AUDIT_DRIVER or postgres)")
	flagsCmd.Flags().StringVar(&flagsFlags.dsn, "dsn", "", "database DSN (default $DATABASE_URL)")
	flagsCmd.Flags().StringVar(&flagsFlags.user, "user", "", "only show flags for this user")
	flagsCmd.Flags().IntVarP(&flagsFlags.limit, "limit", "n", 20, "maximum number of flags")
	flagsCmd.Flags().DurationVar(&flagsFlags.window, "window", 0, "also count the user's flags within this window")
}

func runFlags(cmd *cobra.Command, args []string) error {
	driver := flagsFlags.driver
	if driver == "" {
		driver = os.Getenv("AUDIT_DRIVER")
	}
	if driver == "" {
		driver = audit.DriverPostgres
	}
	dsn := flagsFlags.dsn
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		return fmt.Errorf("no database: set --dsn or DATABASE_URL")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	db, err := audit.Open(ctx, driver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	store := audit.NewStore(db, driver)

	out := cmd.OutOrStdout()
	if flagsFlags.window > 0 && flagsFlags.user != "" {
		n, err := store.CountRecent(ctx, flagsFlags.user, flagsFlags.window)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %d flags in the last %s\n\n", flagsFlags.user, n, flagsFlags.window)
	}

	recs, err := store.Recent(ctx, flagsFlags.user, flagsFlags.limit)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(out, "no flags recorded")
		return nil
	}

	for _, r := range recs {
		fmt.Fprintf(out, "%s  %-8s %-16s %-12s user=%s subject=%s term=%q\n    %s\n",
			r.FlaggedAt.UTC().Format(time.RFC3339),
			r.Channel,
			r.Category,
			shortID(r.ID),
			r.UserID,
			r.SubjectID,
			r.Term,
			r.Excerpt,
		)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
