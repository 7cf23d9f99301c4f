package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/oraclegate/internal/layout"
)

var (
	feedMantissa     int64
	feedScale        uint32
	feedNumSuccess   uint32
	feedMinResponses uint32
	feedUpdatedAt    int64
	feedMaxStaleness int64
	feedLabel        string
)

func init() {
	f := feedPublishCmd.Flags()
	f.Int64Var(&feedMantissa, "mantissa", 0, "Value mantissa; the value is mantissa / 10^scale (required)")
	f.Uint32Var(&feedScale, "scale", 0, "Decimal scale, at most 28")
	f.Uint32Var(&feedNumSuccess, "num-success", 1, "Oracle responses in the confirmed round")
	f.Uint32Var(&feedMinResponses, "min-responses", 1, "Responses required for a valid round")
	f.Int64Var(&feedUpdatedAt, "updated-at", 0, "Round time, unix seconds (default now)")
	f.Int64Var(&feedMaxStaleness, "max-staleness", 0, "Seconds a round stays fresh; 0 disables the check")
	f.StringVar(&feedLabel, "label", "", "Label stored with the account")
	_ = feedPublishCmd.MarkFlagRequired("mantissa")

	feedCmd.AddCommand(feedPublishCmd)
	rootCmd.AddCommand(feedCmd)
}

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Oracle feed accounts",
}

var feedPublishCmd = &cobra.Command{
	Use:   "publish <feed>",
	Short: "Write a feed result as the oracle program",
	Long: "Stores a confirmed feed round owned by the configured oracle program.\n" +
		"Use it to stand in for the oracle network in local and test setups.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		feed, err := address("feed", args[0])
		if err != nil {
			return err
		}
		updated := feedUpdatedAt
		if updated == 0 {
			updated = time.Now().Unix()
		}
		res := layout.FeedResult{
			Mantissa:     feedMantissa,
			Scale:        feedScale,
			NumSuccess:   feedNumSuccess,
			MinResponses: feedMinResponses,
			UpdatedAt:    updated,
			MaxStaleness: feedMaxStaleness,
		}
		label := feedLabel
		if label == "" {
			label = args[0]
		}
		return withHost(cmd, func(ctx context.Context, h *host) error {
			if err := h.gate.PublishFeed(ctx, feed, label, res); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %s: %d x 10^-%d at %d\n", feed.Short(), res.Mantissa, res.Scale, res.UpdatedAt)
			return nil
		})
	},
}
