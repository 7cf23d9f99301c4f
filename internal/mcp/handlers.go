package mcp

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/oraclegate/internal/gate"
	"github.com/ppiankov/oraclegate/internal/layout"
	"github.com/ppiankov/oraclegate/internal/ledger"
	"github.com/ppiankov/oraclegate/internal/model"
)

// CheckClaimInput defines parameters for the oraclegate_check_claim tool.
type CheckClaimInput struct {
	Owner  string `json:"owner" jsonschema:"policy owner address (hex) or name"`
	Feed   string `json:"feed" jsonschema:"feed account presented with the claim"`
	Amount uint64 `json:"amount" jsonschema:"claim amount in base units"`
}

// CheckPaymentInput defines parameters for the oraclegate_check_payment tool.
type CheckPaymentInput struct {
	Amount uint64 `json:"amount" jsonschema:"payment amount in token base units (9 decimals)"`
}

// AccountInput is one positional account of a raw invocation.
type AccountInput struct {
	Address  string `json:"address" jsonschema:"account address (hex) or name"`
	Signer   bool   `json:"signer,omitempty"`
	Writable bool   `json:"writable,omitempty"`
}

// CheckExecuteInput defines parameters for the oraclegate_check_execute tool.
type CheckExecuteInput struct {
	Program     string         `json:"program" jsonschema:"claim or payment"`
	Instruction string         `json:"instruction" jsonschema:"hex instruction data"`
	Accounts    []AccountInput `json:"accounts" jsonschema:"positional accounts"`
}

// VerdictOutput is the decision for any check tool.
type VerdictOutput struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason,omitempty"`
	Message  string `json:"message,omitempty"`
	Detail   string `json:"detail,omitempty"`
	Policy   string `json:"policy"`
	Path     string `json:"path"`
}

// PolicyInput defines parameters for the oraclegate_policy tool.
type PolicyInput struct {
	Owner string `json:"owner" jsonschema:"policy owner address (hex) or name"`
}

// PolicyOutput describes one policy record.
type PolicyOutput struct {
	Found         bool   `json:"found"`
	Address       string `json:"address"`
	Region        string `json:"region,omitempty"`
	Status        string `json:"status,omitempty"`
	InsuredAmount uint64 `json:"insured_amount,omitempty"`
	PremiumPaid   uint64 `json:"premium_paid,omitempty"`
	StartTime     int64  `json:"start_time,omitempty"`
	EndTime       int64  `json:"end_time,omitempty"`
}

func (s *Server) handleCheckClaim(ctx context.Context, _ *mcpsdk.CallToolRequest, input CheckClaimInput) (*mcpsdk.CallToolResult, VerdictOutput, error) {
	owner, err := model.ResolveAddress(input.Owner)
	if err != nil {
		return nil, VerdictOutput{}, fmt.Errorf("owner: %w", err)
	}
	feed, err := model.ResolveAddress(input.Feed)
	if err != nil {
		return nil, VerdictOutput{}, fmt.Errorf("feed: %w", err)
	}
	v, err := s.gate.Claim(ctx, gate.ClaimRequest{Owner: owner, Feed: feed, Amount: input.Amount, DryRun: true})
	if err != nil {
		return nil, VerdictOutput{}, err
	}
	return nil, output(v), nil
}

func (s *Server) handleCheckPayment(ctx context.Context, _ *mcpsdk.CallToolRequest, input CheckPaymentInput) (*mcpsdk.CallToolResult, VerdictOutput, error) {
	v, err := s.gate.Pay(ctx, gate.PayRequest{Amount: input.Amount, DryRun: true})
	if err != nil {
		return nil, VerdictOutput{}, err
	}
	return nil, output(v), nil
}

func (s *Server) handleCheckExecute(ctx context.Context, _ *mcpsdk.CallToolRequest, input CheckExecuteInput) (*mcpsdk.CallToolResult, VerdictOutput, error) {
	policy := model.Policy(strings.ToLower(input.Program))
	if policy != model.PolicyClaim && policy != model.PolicyPayment {
		return nil, VerdictOutput{}, fmt.Errorf("program must be claim or payment, got %q", input.Program)
	}
	data, err := hex.DecodeString(strings.TrimPrefix(input.Instruction, "0x"))
	if err != nil {
		return nil, VerdictOutput{}, fmt.Errorf("instruction: %w", err)
	}
	metas := make([]layout.AccountMeta, len(input.Accounts))
	for i, a := range input.Accounts {
		addr, err := model.ResolveAddress(a.Address)
		if err != nil {
			return nil, VerdictOutput{}, fmt.Errorf("account %d: %w", i, err)
		}
		metas[i] = layout.AccountMeta{Address: addr, Signer: a.Signer, Writable: a.Writable}
	}
	v, err := s.gate.Execute(ctx, gate.ExecuteRequest{Policy: policy, Instruction: data, Accounts: metas, DryRun: true})
	if err != nil {
		return nil, VerdictOutput{}, err
	}
	return nil, output(v), nil
}

func (s *Server) handlePolicy(ctx context.Context, _ *mcpsdk.CallToolRequest, input PolicyInput) (*mcpsdk.CallToolResult, PolicyOutput, error) {
	owner, err := model.ResolveAddress(input.Owner)
	if err != nil {
		return nil, PolicyOutput{}, fmt.Errorf("owner: %w", err)
	}
	view, err := s.gate.Policy(ctx, owner)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, PolicyOutput{Address: view.Address.String()}, nil
	}
	if err != nil {
		return nil, PolicyOutput{}, err
	}
	return nil, PolicyOutput{
		Found:         true,
		Address:       view.Address.String(),
		Region:        view.Region,
		Status:        view.Status,
		InsuredAmount: view.Record.InsuredAmount,
		PremiumPaid:   view.Record.PremiumPaid,
		StartTime:     view.Record.StartTime,
		EndTime:       view.Record.EndTime,
	}, nil
}

func output(v model.Verdict) VerdictOutput {
	out := VerdictOutput{
		Decision: string(v.Decision),
		Reason:   string(v.Reason),
		Detail:   v.Detail,
		Policy:   string(v.Policy),
		Path:     string(v.Path),
	}
	if v.Reason != "" {
		out.Message = v.Reason.Message()
	}
	return out
}
