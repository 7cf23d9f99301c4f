package cli

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/oraclegate/internal/gate"
	"github.com/ppiankov/oraclegate/internal/layout"
	"github.com/ppiankov/oraclegate/internal/model"
	"github.com/ppiankov/oraclegate/internal/router"
)

var (
	authOwner  string
	authFeed   string
	authAmount uint64
	authDryRun bool
	authFormat string

	execProgram     string
	execData        string
	execAccounts    string
	execMint        string
	execSource      string
	execDestination string
)

func init() {
	claimCmd.Flags().StringVar(&authOwner, "owner", "", "Policy owner making the claim (required)")
	claimCmd.Flags().StringVar(&authFeed, "feed", "", "Feed account presented with the claim (required)")
	claimCmd.Flags().Uint64Var(&authAmount, "amount", 0, "Claim amount (required)")
	_ = claimCmd.MarkFlagRequired("owner")
	_ = claimCmd.MarkFlagRequired("feed")
	_ = claimCmd.MarkFlagRequired("amount")

	payCmd.Flags().Uint64Var(&authAmount, "amount", 0, "Payment amount in token base units (required)")
	_ = payCmd.MarkFlagRequired("amount")

	f := executeCmd.Flags()
	f.StringVar(&execProgram, "program", "claim", "Policy to run: claim or payment")
	f.StringVar(&execData, "data", "", "Hex instruction data (default: execute opcode with --amount)")
	f.Uint64Var(&authAmount, "amount", 0, "Transfer amount when --data is not given")
	f.StringVar(&execAccounts, "accounts", "", "JSON file of positional accounts [{address, signer, writable}]")
	f.StringVar(&execMint, "mint", "", "Mint whose stored extra accounts complete the list")
	f.StringVar(&execSource, "source", "source", "Source token account")
	f.StringVar(&execDestination, "destination", "destination", "Destination token account")
	f.StringVar(&authOwner, "owner", "", "Transfer owner")
	f.StringVar(&authFeed, "feed", "", "Feed account (claims)")

	for _, c := range []*cobra.Command{claimCmd, payCmd, executeCmd} {
		c.Flags().BoolVar(&authDryRun, "dry-run", false, "Evaluate without persisting the policy write")
		c.Flags().StringVarP(&authFormat, "format", "f", "text", "Output format (text|json)")
		rootCmd.AddCommand(c)
	}
}

var claimCmd = &cobra.Command{
	Use:   "claim",
	Short: "Authorize an insurance claim on the structured path",
	Long: "Loads the config, registry, policy and feed records and runs the claim\n" +
		"decision. An allowed claim marks the policy claimed.\n\n" +
		"Exit code 0 if allowed, 1 if denied.",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := address("owner", authOwner)
		if err != nil {
			return err
		}
		feed, err := address("feed", authFeed)
		if err != nil {
			return err
		}
		return withHost(cmd, func(ctx context.Context, h *host) error {
			v, err := h.gate.Claim(ctx, gate.ClaimRequest{Owner: owner, Feed: feed, Amount: authAmount, DryRun: authDryRun})
			if err != nil {
				return err
			}
			return printVerdict(cmd.OutOrStdout(), v, authFormat)
		})
	},
}

var payCmd = &cobra.Command{
	Use:   "pay",
	Short: "Authorize a payment against the oracle price band",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHost(cmd, func(ctx context.Context, h *host) error {
			v, err := h.gate.Pay(ctx, gate.PayRequest{Amount: authAmount, DryRun: authDryRun})
			if err != nil {
				return err
			}
			return printVerdict(cmd.OutOrStdout(), v, authFormat)
		})
	},
}

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Run a raw transfer hook invocation",
	Long: `Runs the raw entry point with instruction bytes and a positional account
list, the way the token program invokes the hook.

Accounts come from --accounts, or are assembled from --mint, --owner and
--feed using the extra account list stored for the mint.`,
	RunE: runExecute,
}

func runExecute(cmd *cobra.Command, args []string) error {
	policy := model.Policy(strings.ToLower(execProgram))
	if policy != model.PolicyClaim && policy != model.PolicyPayment {
		return fmt.Errorf("--program must be claim or payment, got %q", execProgram)
	}
	data := router.EncodeExecute(authAmount)
	if execData != "" {
		var err error
		if data, err = hex.DecodeString(strings.TrimPrefix(execData, "0x")); err != nil {
			return fmt.Errorf("--data: %w", err)
		}
	}
	return withHost(cmd, func(ctx context.Context, h *host) error {
		metas, err := executeAccounts(ctx, h, policy)
		if err != nil {
			return err
		}
		v, err := h.gate.Execute(ctx, gate.ExecuteRequest{
			Policy: policy, Instruction: data, Accounts: metas, DryRun: authDryRun,
		})
		if err != nil {
			return err
		}
		return printVerdict(cmd.OutOrStdout(), v, authFormat)
	})
}

// accountSpec is one entry of an --accounts file.
type accountSpec struct {
	Address  string `json:"address"`
	Signer   bool   `json:"signer"`
	Writable bool   `json:"writable"`
}

func executeAccounts(ctx context.Context, h *host, policy model.Policy) ([]layout.AccountMeta, error) {
	if execAccounts != "" {
		raw, err := os.ReadFile(execAccounts)
		if err != nil {
			return nil, fmt.Errorf("read accounts: %w", err)
		}
		var specs []accountSpec
		if err := json.Unmarshal(raw, &specs); err != nil {
			return nil, fmt.Errorf("parse accounts: %w", err)
		}
		metas := make([]layout.AccountMeta, len(specs))
		for i, s := range specs {
			a, err := model.ResolveAddress(s.Address)
			if err != nil {
				return nil, fmt.Errorf("account %d: %w", i, err)
			}
			metas[i] = layout.AccountMeta{Address: a, Signer: s.Signer, Writable: s.Writable}
		}
		return metas, nil
	}

	if execMint == "" || authOwner == "" {
		return nil, fmt.Errorf("give --accounts, or --mint and --owner")
	}
	var t gate.Transfer
	var err error
	if t.Mint, err = address("mint", execMint); err != nil {
		return nil, err
	}
	if t.Owner, err = address("owner", authOwner); err != nil {
		return nil, err
	}
	if t.Source, err = address("source", execSource); err != nil {
		return nil, err
	}
	if t.Destination, err = address("destination", execDestination); err != nil {
		return nil, err
	}
	if policy == model.PolicyPayment {
		return h.gate.PaymentAccounts(ctx, t)
	}
	feed, err := address("feed", authFeed)
	if err != nil {
		return nil, err
	}
	return h.gate.ClaimAccounts(ctx, t, feed)
}
