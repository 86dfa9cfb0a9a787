package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/pocketmarket/moderation/internal/logger"
	"github.com/pocketmarket/moderation/internal/messaging"
	"github.com/pocketmarket/moderation/internal/moderation"
	"github.com/pocketmarket/moderation/internal/service"
	"github.com/spf13/cobra"
)

var listingFlags struct {
	title       string
	description string
	userID      string
}

var messageFlags struct {
	text   string
	userID string
}

var listingCmd = &cobra.Command{
	Use:   "listing",
	Short: "Check a listing title and description",
	Long: `Check a listing against every listing rule: prohibited items, hate speech,
scam language and attempts to move buyers off the platform.

Examples:
  modcheck listing --title "Glock 19" --description "never fired"
  modcheck listing --remote --user u42 --title "Bike" --description "text me at 555-123-4567"`,
	RunE: runListing,
}

var messageCmd = &cobra.Command{
	Use:   "message",
	Short: "Check a buyer/seller chat message",
	Long: `Check a chat message for hate speech and scam language. Contact details
are allowed in messages.

Examples:
  modcheck message --text "can you do western union?"`,
	RunE: runMessage,
}

func init() {
	rootCmd.AddCommand(listingCmd)
	rootCmd.AddCommand(messageCmd)

	listingCmd.Flags().StringVarP(&listingFlags.title, "title", "t", "", "listing title")
	listingCmd.Flags().StringVarP(&listingFlags.description, "description", "d", "", "listing description")
	listingCmd.Flags().StringVar(&listingFlags.userID, "user", "", "seller user ID (remote only)")

	messageCmd.Flags().StringVarP(&messageFlags.text, "text", "t", "", "message text")
	messageCmd.Flags().StringVar(&messageFlags.userID, "user", "", "sender user ID (remote only)")
	_ = messageCmd.MarkFlagRequired("text")
}

// localResult is printed for in-process checks. Unlike the service response
// it includes the matched term.
type localResult struct {
	Flagged       bool                `json:"flagged"`
	Reason        string              `json:"reason,omitempty"`
	Category      moderation.Category `json:"category,omitempty"`
	Term          string              `json:"term,omitempty"`
	FilterVersion string              `json:"filter_version"`
}

func printLocal(cmd *cobra.Command, f *moderation.Filter, v moderation.Verdict) error {
	return printJSON(cmd.OutOrStdout(), localResult{
		Flagged:       v.Flagged,
		Reason:        v.Reason,
		Category:      v.Category,
		Term:          v.Term,
		FilterVersion: f.Version(),
	})
}

func runListing(cmd *cobra.Command, args []string) error {
	if !remote {
		f := moderation.Default()
		return printLocal(cmd, f, f.CheckListing(listingFlags.title, listingFlags.description))
	}

	req := service.ListingCheckRequest{
		UserID:      listingFlags.userID,
		Title:       listingFlags.title,
		Description: listingFlags.description,
	}
	return requestRemote(cmd, req, func(ctx context.Context, c *messaging.NATSClient, data []byte) ([]byte, error) {
		return c.RequestListingCheck(ctx, data)
	})
}

func runMessage(cmd *cobra.Command, args []string) error {
	if !remote {
		f := moderation.Default()
		return printLocal(cmd, f, f.CheckMessage(messageFlags.text))
	}

	req := service.MessageCheckRequest{
		UserID: messageFlags.userID,
		Text:   messageFlags.text,
	}
	return requestRemote(cmd, req, func(ctx context.Context, c *messaging.NATSClient, data []byte) ([]byte, error) {
		return c.RequestMessageCheck(ctx, data)
	})
}

type requestFunc func(ctx context.Context, c *messaging.NATSClient, data []byte) ([]byte, error)

func requestRemote(cmd *cobra.Command, req interface{}, send requestFunc) error {
	if timeout <= 0 {
		return fmt.Errorf("--timeout must be positive, got %s", timeout)
	}

	cfg := messaging.DefaultNATSConfig()
	cfg.Name = "modcheck"
	cfg.MaxReconnects = 0
	if natsURL != "" {
		cfg.URL = natsURL
	}

	client, err := messaging.NewNATSClient(cfg, logger.NewWithWriter(cmd.ErrOrStderr(), "warn", "console"))
	if err != nil {
		return err
	}
	defer client.Close()

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	reply, err := send(ctx, client, data)
	if err != nil {
		return fmt.Errorf("remote check: %w", err)
	}

	var out bytes.Buffer
	if err := json.Indent(&out, reply, "", "  "); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	out.WriteByte('\n')
	_, err = out.WriteTo(cmd.OutOrStdout())
	return err
}
