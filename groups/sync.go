package groups

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/giovaborgogno/siwe-auth/core"
	"github.com/giovaborgogno/siwe-auth/ports"
)

// Rule binds a group name to the checker that decides its membership.
type Rule struct {
	Name    string
	Checker Checker
}

// Syncer re-derives group membership edges from chain state.
type Syncer struct {
	groups ports.GroupStore
	caller ports.ContractCaller
	logger *zap.Logger
}

// NewSyncer creates a membership syncer.
func NewSyncer(groups ports.GroupStore, caller ports.ContractCaller, logger *zap.Logger) *Syncer {
	return &Syncer{groups: groups, caller: caller, logger: logger}
}

// Sync evaluates one rule for a wallet and reconciles the edge. The
// group record is created on first evaluation. A definitive member
// answer ensures the edge, a definitive non-member answer removes it,
// and a failed check leaves membership exactly as it was before the
// call: the error is logged and never reaches the authentication
// outcome.
//
// Store failures do propagate; they are infrastructure faults, not
// membership answers.
func (s *Syncer) Sync(ctx context.Context, wallet *core.Wallet, rule Rule) error {
	created, err := s.groups.Ensure(ctx, rule.Name)
	if err != nil {
		return fmt.Errorf("failed to ensure group %q: %w", rule.Name, err)
	}
	if created {
		s.logger.Info("created group", zap.String("group", rule.Name))
	}

	member, err := rule.Checker.IsMember(ctx, wallet, s.caller)
	if err != nil {
		s.logger.Error("membership check unavailable",
			zap.String("group", rule.Name),
			zap.String("address", wallet.Address),
			zap.Error(err))
		return nil
	}

	if member {
		if err := s.groups.AddMember(ctx, rule.Name, wallet.Address); err != nil {
			return err
		}
		wallet.AddGroup(rule.Name)
		s.logger.Info("added wallet to group",
			zap.String("group", rule.Name),
			zap.String("address", wallet.Address))
		return nil
	}

	if err := s.groups.RemoveMember(ctx, rule.Name, wallet.Address); err != nil {
		return err
	}
	wallet.RemoveGroup(rule.Name)
	s.logger.Info("removed wallet from group",
		zap.String("group", rule.Name),
		zap.String("address", wallet.Address))
	return nil
}
