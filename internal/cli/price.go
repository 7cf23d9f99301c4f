package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/oraclegate/internal/layout"
	"github.com/ppiankov/oraclegate/internal/ledger"
	"github.com/ppiankov/oraclegate/internal/model"
	"github.com/ppiankov/oraclegate/internal/price"
)

var (
	priceAuthority string
	priceProduct   string
	priceToken     string
	priceTolerance uint64
	priceActive    bool
	priceMint      string
)

func init() {
	priceInitCmd.Flags().StringVar(&priceAuthority, "authority", "", "Price state authority (required)")
	priceInitCmd.Flags().StringVar(&priceProduct, "product-feed", "", "Product price feed, USD per unit (required)")
	priceInitCmd.Flags().StringVar(&priceToken, "token-feed", "", "Token/USD feed; omit for single-feed mode")
	priceInitCmd.Flags().Uint64Var(&priceTolerance, "tolerance-bp", 500, "Band half-width in basis points")
	priceInitCmd.Flags().BoolVar(&priceActive, "active", true, "Enforce the band")
	priceInitCmd.Flags().StringVar(&priceMint, "mint", "", "Payment token mint; writes its extra account list")
	_ = priceInitCmd.MarkFlagRequired("authority")
	_ = priceInitCmd.MarkFlagRequired("product-feed")

	priceUpdateCmd.Flags().StringVar(&priceAuthority, "authority", "", "Price state authority (required)")
	priceUpdateCmd.Flags().StringVar(&priceProduct, "product-feed", "", "New product price feed")
	priceUpdateCmd.Flags().StringVar(&priceToken, "token-feed", "", "New token/USD feed; \"none\" clears it")
	priceUpdateCmd.Flags().Uint64Var(&priceTolerance, "tolerance-bp", 0, "New band half-width in basis points")
	priceUpdateCmd.Flags().BoolVar(&priceActive, "active", true, "Enforce the band")
	_ = priceUpdateCmd.MarkFlagRequired("authority")

	priceCmd.AddCommand(priceInitCmd, priceUpdateCmd)
	rootCmd.AddCommand(priceCmd)
}

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Payment price band configuration",
}

var priceInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the payment price state",
	RunE: func(cmd *cobra.Command, args []string) error {
		st := layout.PriceState{ToleranceBasisPoints: priceTolerance, Active: priceActive}
		var err error
		if st.Authority, err = address("authority", priceAuthority); err != nil {
			return err
		}
		if st.ProductFeed, err = address("product-feed", priceProduct); err != nil {
			return err
		}
		if priceToken != "" {
			if st.TokenUSDFeed, err = address("token-feed", priceToken); err != nil {
				return err
			}
		}
		return withHost(cmd, func(ctx context.Context, h *host) error {
			if _, err := h.gate.InitPriceState(ctx, st); err != nil {
				return err
			}
			if priceMint != "" {
				mint, err := address("mint", priceMint)
				if err != nil {
					return err
				}
				_, err = h.gate.InitExtraAccountMetas(ctx, mint, model.PolicyPayment)
				if err != nil && !errors.Is(err, ledger.ErrAlreadyExists) {
					return err
				}
			}
			return printJSON(cmd.OutOrStdout(), st)
		})
	},
}

var priceUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Change feeds, tolerance, or the active flag of the price state",
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := address("authority", priceAuthority)
		if err != nil {
			return err
		}
		var u price.Update
		flags := cmd.Flags()
		if flags.Changed("product-feed") {
			a, err := address("product-feed", priceProduct)
			if err != nil {
				return err
			}
			u.ProductFeed = &a
		}
		if flags.Changed("token-feed") {
			a := model.ZeroAddress
			if priceToken != "none" {
				if a, err = address("token-feed", priceToken); err != nil {
					return err
				}
			}
			u.TokenUSDFeed = &a
		}
		if flags.Changed("tolerance-bp") {
			u.ToleranceBasisPoints = &priceTolerance
		}
		if flags.Changed("active") {
			u.Active = &priceActive
		}
		if u == (price.Update{}) {
			return fmt.Errorf("nothing to update")
		}
		return withHost(cmd, func(ctx context.Context, h *host) error {
			st, err := h.gate.UpdatePriceState(ctx, caller, u)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		})
	},
}
