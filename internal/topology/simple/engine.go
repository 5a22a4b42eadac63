// Package simple implements the single-namespace topology (spec.md §4.5):
// a TAP device on the host, masqueraded out of a named outbound interface.
// It is a close port of the retrieved fcnet Rust source's simple.rs, with
// the netlink/nftables calls routed through this repository's rtnl/ruleset
// abstractions instead of rtnetlink+nftables-async.
package simple

import (
	"context"

	"github.com/fcnet/fcnet/internal/fcerrors"
	"github.com/fcnet/fcnet/internal/netmodel"
	"github.com/fcnet/fcnet/internal/nftjson"
	"github.com/fcnet/fcnet/internal/rtnl"
	"github.com/fcnet/fcnet/internal/ruleset"
	"github.com/fcnet/fcnet/pkg/logger"
)

// Engine runs Add/Check/Delete for the simple topology.
type Engine struct {
	Ops         rtnl.Ops
	Reconciler  *ruleset.Reconciler
	Log         *logger.Logger
}

// Add creates the TAP device, assigns its address, and ensures the
// masquerade+forward nftables rules exist (spec.md §4.5 Add).
func (e *Engine) Add(ctx context.Context, n netmodel.Network) error {
	if err := n.Validate(); err != nil {
		return err
	}

	e.Log.Debug("simple: creating tap", "tap", n.TapName)
	if err := e.Ops.CreateTap(n.TapName); err != nil {
		e.Log.Error("simple: create tap failed", "tap", n.TapName, "error", err)
		return err
	}
	tapIdx, err := rtnl.LinkIndexByNameOrNotFound(e.Ops, n.TapName, fcerrors.Tap)
	if err != nil {
		return err
	}
	if err := e.Ops.AddressAdd(tapIdx, n.TapIP.Addr, n.TapIP.PrefixLength); err != nil {
		return err
	}
	if err := e.Ops.LinkSetUp(tapIdx); err != nil {
		return err
	}

	current, err := e.Reconciler.GetCurrentRuleset(ctx)
	if err != nil {
		return err
	}

	masqueradeExists := ruleset.RuleExists(current, ruleset.NFTPostroutingChain, ruleset.MasqExpr(n))

	batch := nftjson.NewBatch()
	ruleset.AddBaseChainsIfNeeded(n.NfFamily(), false, current, batch)
	batch.Add(ruleset.NewRule(n.NfFamily(), ruleset.NFTFilterChain, ruleset.ForwardExpr(n), nil))
	if !masqueradeExists {
		batch.Add(ruleset.NewRule(n.NfFamily(), ruleset.NFTPostroutingChain, ruleset.MasqExpr(n), nil))
	}

	if err := e.Reconciler.Apply(ctx, batch); err != nil {
		e.Log.Error("simple: apply failed", "error", err)
		return err
	}
	e.Log.Info("simple: add complete", "tap", n.TapName, "iface", n.IfaceName)
	return nil
}

// Delete removes the TAP link and the forward+masquerade rules, failing
// with ObjectNotFound if either rule is already absent (spec.md §4.5
// Delete).
func (e *Engine) Delete(ctx context.Context, n netmodel.Network) error {
	if err := n.Validate(); err != nil {
		return err
	}
	tapIdx, err := rtnl.LinkIndexByNameOrNotFound(e.Ops, n.TapName, fcerrors.Tap)
	if err != nil {
		return err
	}
	if err := e.Ops.LinkDel(tapIdx); err != nil {
		return err
	}

	current, err := e.Reconciler.GetCurrentRuleset(ctx)
	if err != nil {
		return err
	}

	forwardHandle := ruleset.FindRuleHandle(current, ruleset.NFTFilterChain, ruleset.ForwardExpr(n))
	masqueradeHandle := ruleset.FindRuleHandle(current, ruleset.NFTPostroutingChain, ruleset.MasqExpr(n))

	if forwardHandle == nil {
		return fcerrors.ObjectNotFound(fcerrors.NfEgressForwardRule)
	}
	if masqueradeHandle == nil {
		return fcerrors.ObjectNotFound(fcerrors.NfMasqueradeRule)
	}

	batch := nftjson.NewBatch()
	batch.Delete(ruleset.NewRule(n.NfFamily(), ruleset.NFTFilterChain, ruleset.ForwardExpr(n), forwardHandle))
	batch.Delete(ruleset.NewRule(n.NfFamily(), ruleset.NFTPostroutingChain, ruleset.MasqExpr(n), masqueradeHandle))

	if err := e.Reconciler.Apply(ctx, batch); err != nil {
		return err
	}
	e.Log.Info("simple: delete complete", "tap", n.TapName)
	return nil
}

// Check verifies the TAP device, base chains, and both rules exist without
// mutating any kernel state (spec.md §4.5 Check, §3 invariant 4).
func (e *Engine) Check(ctx context.Context, n netmodel.Network) error {
	if _, err := rtnl.LinkIndexByNameOrNotFound(e.Ops, n.TapName, fcerrors.Tap); err != nil {
		return err
	}

	current, err := e.Reconciler.GetCurrentRuleset(ctx)
	if err != nil {
		return err
	}

	if err := ruleset.CheckBaseChains(n.NfFamily(), false, current); err != nil {
		return err
	}
	if !ruleset.RuleExists(current, ruleset.NFTPostroutingChain, ruleset.MasqExpr(n)) {
		return fcerrors.ObjectNotFound(fcerrors.NfMasqueradeRule)
	}
	if !ruleset.RuleExists(current, ruleset.NFTFilterChain, ruleset.ForwardExpr(n)) {
		return fcerrors.ObjectNotFound(fcerrors.NfEgressForwardRule)
	}
	return nil
}
