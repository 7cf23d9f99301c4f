package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var policyFormat string

func init() {
	policyShowCmd.Flags().StringVarP(&policyFormat, "format", "f", "text", "Output format (text|json)")
	policyCmd.AddCommand(policyShowCmd)
	rootCmd.AddCommand(policyCmd)
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Insurance policy records",
}

var policyShowCmd = &cobra.Command{
	Use:   "show <owner>",
	Short: "Show an owner's policy and its status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := address("owner", args[0])
		if err != nil {
			return err
		}
		return withHost(cmd, func(ctx context.Context, h *host) error {
			view, err := h.gate.Policy(ctx, owner)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if policyFormat == "json" {
				return printJSON(out, view)
			}
			r := view.Record
			fmt.Fprintf(out, "Policy   %s\n", view.Address)
			fmt.Fprintf(out, "Owner    %s\n", r.Owner)
			fmt.Fprintf(out, "Region   %s (tag %d)\n", view.Region, r.Region)
			fmt.Fprintf(out, "Status   %s\n", view.Status)
			fmt.Fprintf(out, "Insured  %d\n", r.InsuredAmount)
			fmt.Fprintf(out, "Premium  %d\n", r.PremiumPaid)
			fmt.Fprintf(out, "Covers   %s .. %s\n", unixUTC(r.StartTime), unixUTC(r.EndTime))
			return nil
		})
	},
}

func unixUTC(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}
