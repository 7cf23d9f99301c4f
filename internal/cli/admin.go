package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ppiankov/oraclegate/internal/claim"
	"github.com/ppiankov/oraclegate/internal/model"
	"github.com/ppiankov/oraclegate/internal/oracle"
)

var (
	adminCaller    string
	adminThreshold float64
	adminRegion    string
	adminFeed      string
	adminMagnitude float64

	regOwner   string
	regRegion  string
	regInsured uint64
	regPremium uint64
	regDays    uint64
)

func init() {
	thresholdCmd.Flags().StringVar(&adminCaller, "authority", "", "Config authority (required)")
	thresholdCmd.Flags().Float64Var(&adminThreshold, "value", 0, "New threshold magnitude, 2.0 to 9.0 (required)")
	_ = thresholdCmd.MarkFlagRequired("authority")
	_ = thresholdCmd.MarkFlagRequired("value")

	regionFeedCmd.Flags().StringVar(&adminCaller, "authority", "", "Config authority (required)")
	regionFeedCmd.Flags().StringVar(&adminRegion, "region", "", "Region name or ordinal (required)")
	regionFeedCmd.Flags().StringVar(&adminFeed, "feed", "", "Feed account for the region (required)")
	_ = regionFeedCmd.MarkFlagRequired("authority")
	_ = regionFeedCmd.MarkFlagRequired("region")
	_ = regionFeedCmd.MarkFlagRequired("feed")

	disasterCmd.Flags().StringVar(&adminCaller, "authority", "", "Config authority (required)")
	disasterCmd.Flags().StringVar(&adminRegion, "region", "", "Region name or ordinal (required)")
	disasterCmd.Flags().Float64Var(&adminMagnitude, "magnitude", 0, "Observed magnitude, 2.0 to 9.0 (required)")
	_ = disasterCmd.MarkFlagRequired("authority")
	_ = disasterCmd.MarkFlagRequired("region")
	_ = disasterCmd.MarkFlagRequired("magnitude")

	registerCmd.Flags().StringVar(&regOwner, "owner", "", "Policy owner (required)")
	registerCmd.Flags().StringVar(&regRegion, "region", "", "Region name, ordinal, or raw u8 tag (required)")
	registerCmd.Flags().Uint64Var(&regInsured, "insured", 0, "Insured amount (required)")
	registerCmd.Flags().Uint64Var(&regPremium, "premium", 0, "Premium paid (required)")
	registerCmd.Flags().Uint64Var(&regDays, "days", 0, "Coverage duration in days (required)")
	for _, f := range []string{"owner", "region", "insured", "premium", "days"} {
		_ = registerCmd.MarkFlagRequired(f)
	}

	reviseCmd.Flags().StringVar(&regOwner, "owner", "", "Policy owner (required)")
	reviseCmd.Flags().Uint64Var(&regInsured, "insured", 0, "New insured amount")
	reviseCmd.Flags().Uint64Var(&regPremium, "premium", 0, "New premium paid")
	reviseCmd.Flags().Uint64Var(&regDays, "extend-days", 0, "Days to add to the coverage end")
	_ = reviseCmd.MarkFlagRequired("owner")

	rootCmd.AddCommand(thresholdCmd, regionFeedCmd, disasterCmd, registerCmd, reviseCmd)
}

var thresholdCmd = &cobra.Command{
	Use:   "threshold",
	Short: "Change the claim magnitude threshold",
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := address("authority", adminCaller)
		if err != nil {
			return err
		}
		return withHost(cmd, func(ctx context.Context, h *host) error {
			cfg, err := h.gate.UpdateThreshold(ctx, caller, adminThreshold)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Threshold set to %s\n", oracle.FormatHundredths(cfg.Threshold))
			return nil
		})
	},
}

var regionFeedCmd = &cobra.Command{
	Use:   "region-feed",
	Short: "Set the oracle feed for a region",
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := address("authority", adminCaller)
		if err != nil {
			return err
		}
		region, err := model.ParseRegion(adminRegion)
		if err != nil {
			return err
		}
		feed, err := address("feed", adminFeed)
		if err != nil {
			return err
		}
		return withHost(cmd, func(ctx context.Context, h *host) error {
			reg, err := h.gate.UpdateRegionFeed(ctx, caller, region, feed)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range model.Regions() {
				slot := "(unset)"
				if !reg[r].IsZero() {
					slot = reg[r].String()
				}
				fmt.Fprintf(out, "  %-10s %s\n", r, slot)
			}
			return nil
		})
	},
}

var disasterCmd = &cobra.Command{
	Use:   "disaster",
	Short: "Record a disaster event for a region",
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := address("authority", adminCaller)
		if err != nil {
			return err
		}
		region, err := model.ParseRegion(adminRegion)
		if err != nil {
			return err
		}
		return withHost(cmd, func(ctx context.Context, h *host) error {
			ev, err := h.gate.RecordDisaster(ctx, caller, region, adminMagnitude)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ev)
		})
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register an insurance policy",
	Long: "Creates the owner's policy record. Coverage starts now and lasts --days.\n" +
		"The region tag is stored as given; an unsupported tag is only rejected\n" +
		"when a claim is made.",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := address("owner", regOwner)
		if err != nil {
			return err
		}
		tag, err := regionTag(regRegion)
		if err != nil {
			return err
		}
		return withHost(cmd, func(ctx context.Context, h *host) error {
			rec, err := h.gate.Register(ctx, claim.Registration{
				Owner: owner, Region: tag, InsuredAmount: regInsured, Premium: regPremium, DurationDays: regDays,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rec)
		})
	},
}

var reviseCmd = &cobra.Command{
	Use:   "revise",
	Short: "Change the insured amount, premium, or coverage end of a policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := address("owner", regOwner)
		if err != nil {
			return err
		}
		var rev claim.Revision
		if cmd.Flags().Changed("insured") {
			rev.InsuredAmount = &regInsured
		}
		if cmd.Flags().Changed("premium") {
			rev.Premium = &regPremium
		}
		if cmd.Flags().Changed("extend-days") {
			rev.ExtensionDays = &regDays
		}
		if rev.Empty() {
			return fmt.Errorf("nothing to revise: set --insured, --premium, or --extend-days")
		}
		return withHost(cmd, func(ctx context.Context, h *host) error {
			rec, err := h.gate.Revise(ctx, owner, rev)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rec)
		})
	},
}

// regionTag accepts a region name or ordinal, or any raw u8 tag.
func regionTag(s string) (uint8, error) {
	if r, err := model.ParseRegion(s); err == nil {
		return uint8(r), nil
	}
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("--region %q: not a region name or u8 tag", s)
	}
	return uint8(n), nil
}
