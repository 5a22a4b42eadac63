// Package namespaced implements the two-namespace topology (spec.md §4.6):
// a veth pair crossing into a dedicated network namespace that holds the
// TAP device, with NAT/forwarding rules split between the outer namespace
// (masquerade + forward) and the inner one (SNAT, and DNAT when a forwarded
// guest address is configured). It is a close port of the retrieved fcnet
// Rust source's namespaced/add.rs; Delete and Check are not present in that
// source and were derived symmetrically (see SPEC_FULL.md).
package namespaced

import (
	"context"
	"net"

	"github.com/fcnet/fcnet/internal/fcerrors"
	"github.com/fcnet/fcnet/internal/netmodel"
	"github.com/fcnet/fcnet/internal/netns"
	"github.com/fcnet/fcnet/internal/nftjson"
	"github.com/fcnet/fcnet/internal/rtnl"
	"github.com/fcnet/fcnet/internal/ruleset"
	"github.com/fcnet/fcnet/pkg/logger"
)

// Engine runs Add/Check/Delete for the namespaced topology. The same Ops
// and Reconciler pair serves both the outer and inner namespace: rtnl.Ops
// and the nftables executor both act relative to the calling OS thread's
// current namespace, so namespace scoping comes entirely from whether a
// call happens inside or outside the EnterNetns closure.
type Engine struct {
	Ops        rtnl.Ops
	Reconciler *ruleset.Reconciler
	Log        *logger.Logger

	// EnterNetns runs task with the calling OS thread switched into the
	// named namespace, restoring the original namespace afterwards. Nil
	// defaults to netns.RunInNetns; tests substitute a function that just
	// calls task() directly against a fake Ops/Executor pair.
	EnterNetns func(name string, task func() error) error

	// OpenNetnsFd opens the namespace file for name, returning its raw fd
	// for LinkSetNsByFd and a closer. Nil defaults to netns.OpenByName;
	// tests substitute a no-op opener since fakeOps doesn't model real
	// namespace membership.
	OpenNetnsFd func(name string) (fd int, closeFn func() error, err error)
}

func (e *Engine) enterNetns(name string, task func() error) error {
	if e.EnterNetns != nil {
		return e.EnterNetns(name, task)
	}
	return netns.RunInNetns(name, task)
}

func (e *Engine) openNetnsFd(name string) (int, func() error, error) {
	if e.OpenNetnsFd != nil {
		return e.OpenNetnsFd(name)
	}
	h, err := netns.OpenByName(name)
	if err != nil {
		return 0, nil, err
	}
	return int(h), h.Close, nil
}

func prefixLen(ip net.IP) int {
	if ip.To4() == nil {
		return 128
	}
	return 32
}

// Add brings up the veth pair, moves one end into the target namespace,
// configures the TAP device and inner routing/NAT there, then the outer
// masquerade/forward rules and (if port forwarding is configured) the
// route back into the namespace (spec.md §4.6 Add, ported from add.rs's
// add/setup_outer_interfaces/setup_inner_interfaces/setup_inner_nf_rules/
// setup_outer_nf_rules/setup_outer_forward_route).
func (e *Engine) Add(ctx context.Context, n netmodel.NamespacedNetwork) error {
	if err := n.Validate(); err != nil {
		return err
	}
	fam := n.NfFamily()
	needsPrerouting := n.ForwardedGuestIP != nil

	if err := e.setupOuterInterfaces(n); err != nil {
		return err
	}

	innerErr := e.enterNetns(n.NetnsName, func() error {
		if err := e.setupInnerInterfaces(n); err != nil {
			return err
		}
		return e.setupInnerNfRules(ctx, n, fam, needsPrerouting)
	})
	if innerErr != nil {
		return innerErr
	}

	if err := e.setupOuterNfRules(ctx, n, fam); err != nil {
		return err
	}
	if err := e.setupOuterForwardRoute(n); err != nil {
		return err
	}
	e.Log.Info("namespaced: add complete", "netns", n.NetnsName, "tap", n.TapName)
	return nil
}

func (e *Engine) setupOuterInterfaces(n netmodel.NamespacedNetwork) error {
	e.Log.Debug("namespaced: creating veth pair", "veth1", n.Veth1Name, "veth2", n.Veth2Name)
	if err := e.Ops.CreateVethPair(n.Veth1Name, n.Veth2Name); err != nil {
		return err
	}
	veth1Idx, err := rtnl.LinkIndexByNameOrNotFound(e.Ops, n.Veth1Name, fcerrors.Veth)
	if err != nil {
		return err
	}
	if err := e.Ops.AddressAdd(veth1Idx, n.Veth1IP.Addr, n.Veth1IP.PrefixLength); err != nil {
		return err
	}
	if err := e.Ops.LinkSetUp(veth1Idx); err != nil {
		return err
	}

	veth2Idx, err := rtnl.LinkIndexByNameOrNotFound(e.Ops, n.Veth2Name, fcerrors.Veth)
	if err != nil {
		return err
	}
	fd, closeFd, err := e.openNetnsFd(n.NetnsName)
	if err != nil {
		return err
	}
	defer closeFd()
	return e.Ops.LinkSetNsByFd(veth2Idx, fd)
}

func (e *Engine) setupInnerInterfaces(n netmodel.NamespacedNetwork) error {
	if err := e.Ops.CreateTap(n.TapName); err != nil {
		return err
	}

	veth2Idx, err := rtnl.LinkIndexByNameOrNotFound(e.Ops, n.Veth2Name, fcerrors.Veth)
	if err != nil {
		return err
	}
	if err := e.Ops.AddressAdd(veth2Idx, n.Veth2IP.Addr, n.Veth2IP.PrefixLength); err != nil {
		return err
	}
	if err := e.Ops.LinkSetUp(veth2Idx); err != nil {
		return err
	}

	if n.NfFamily() == netmodel.FamilyIPv6 {
		if err := e.Ops.RouteAddV6(nil, 0, n.Veth1IP.Addr); err != nil {
			return err
		}
	} else {
		if err := e.Ops.RouteAddV4(nil, 0, n.Veth1IP.Addr); err != nil {
			return err
		}
	}

	tapIdx, err := rtnl.LinkIndexByNameOrNotFound(e.Ops, n.TapName, fcerrors.Tap)
	if err != nil {
		return err
	}
	if err := e.Ops.AddressAdd(tapIdx, n.TapIP.Addr, n.TapIP.PrefixLength); err != nil {
		return err
	}
	return e.Ops.LinkSetUp(tapIdx)
}

func (e *Engine) setupInnerNfRules(ctx context.Context, n netmodel.NamespacedNetwork, fam netmodel.Family, needsPrerouting bool) error {
	batch := nftjson.NewBatch()
	ruleset.InnerBaseBatch(fam, needsPrerouting, batch)

	batch.Add(ruleset.NewRule(fam, ruleset.NFTPostroutingChain,
		ruleset.InnerSNATExpr(n.Veth2Name, n.GuestIP, n.Veth2IP, fam), nil))
	if n.ForwardedGuestIP != nil {
		batch.Add(ruleset.NewRule(fam, ruleset.NFTPreroutingChain,
			ruleset.InnerDNATExpr(n.Veth2Name, n.ForwardedGuestIP.String(), n.GuestIP, fam), nil))
	}

	return e.Reconciler.Apply(ctx, batch)
}

func (e *Engine) setupOuterNfRules(ctx context.Context, n netmodel.NamespacedNetwork, fam netmodel.Family) error {
	current, err := e.Reconciler.GetCurrentRuleset(ctx)
	if err != nil {
		return err
	}

	batch := nftjson.NewBatch()
	ruleset.AddBaseChainsIfNeeded(fam, false, current, batch)
	batch.Add(ruleset.NewRule(fam, ruleset.NFTPostroutingChain, ruleset.OuterMasqExpr(n), nil))
	batch.Add(ruleset.NewRule(fam, ruleset.NFTFilterChain, ruleset.OuterIngressForwardExpr(n), nil))
	batch.Add(ruleset.NewRule(fam, ruleset.NFTFilterChain, ruleset.OuterEgressForwardExpr(n), nil))

	return e.Reconciler.Apply(ctx, batch)
}

// setupOuterForwardRoute routes traffic addressed to ForwardedGuestIP into
// the namespace via veth2's address, where the inner DNAT rule resolves it
// to GuestIP.
func (e *Engine) setupOuterForwardRoute(n netmodel.NamespacedNetwork) error {
	if n.ForwardedGuestIP == nil {
		return nil
	}
	dst := *n.ForwardedGuestIP
	if n.NfFamily() == netmodel.FamilyIPv6 {
		return e.Ops.RouteAddV6(dst, prefixLen(dst), n.Veth2IP.Addr)
	}
	return e.Ops.RouteAddV4(dst, prefixLen(dst), n.Veth2IP.Addr)
}

// Delete removes the forward route (if configured), the three outer
// nftables rules, the inner SNAT/DNAT rules, and every link, failing with
// ObjectNotFound if an expected rule or link is already absent. A failed
// route removal is returned as the netlink error.
func (e *Engine) Delete(ctx context.Context, n netmodel.NamespacedNetwork) error {
	if err := n.Validate(); err != nil {
		return err
	}
	fam := n.NfFamily()
	needsPrerouting := n.ForwardedGuestIP != nil

	if n.ForwardedGuestIP != nil {
		dst := *n.ForwardedGuestIP
		var err error
		if fam == netmodel.FamilyIPv6 {
			err = e.Ops.RouteDelV6(dst, prefixLen(dst), n.Veth2IP.Addr)
		} else {
			err = e.Ops.RouteDelV4(dst, prefixLen(dst), n.Veth2IP.Addr)
		}
		if err != nil {
			return err
		}
	}

	outerCurrent, err := e.Reconciler.GetCurrentRuleset(ctx)
	if err != nil {
		return err
	}
	masqHandle := ruleset.FindRuleHandle(outerCurrent, ruleset.NFTPostroutingChain, ruleset.OuterMasqExpr(n))
	ingressHandle := ruleset.FindRuleHandle(outerCurrent, ruleset.NFTFilterChain, ruleset.OuterIngressForwardExpr(n))
	egressHandle := ruleset.FindRuleHandle(outerCurrent, ruleset.NFTFilterChain, ruleset.OuterEgressForwardExpr(n))
	if masqHandle == nil {
		return fcerrors.ObjectNotFound(fcerrors.NfMasqueradeRule)
	}
	if ingressHandle == nil {
		return fcerrors.ObjectNotFound(fcerrors.NfIngressForwardRule)
	}
	if egressHandle == nil {
		return fcerrors.ObjectNotFound(fcerrors.NfEgressForwardRule)
	}

	outerBatch := nftjson.NewBatch()
	outerBatch.Delete(ruleset.NewRule(fam, ruleset.NFTPostroutingChain, ruleset.OuterMasqExpr(n), masqHandle))
	outerBatch.Delete(ruleset.NewRule(fam, ruleset.NFTFilterChain, ruleset.OuterIngressForwardExpr(n), ingressHandle))
	outerBatch.Delete(ruleset.NewRule(fam, ruleset.NFTFilterChain, ruleset.OuterEgressForwardExpr(n), egressHandle))
	if err := e.Reconciler.Apply(ctx, outerBatch); err != nil {
		return err
	}

	innerErr := e.enterNetns(n.NetnsName, func() error {
		return e.deleteInner(ctx, n, fam, needsPrerouting)
	})
	if innerErr != nil {
		return innerErr
	}

	veth1Idx, err := rtnl.LinkIndexByNameOrNotFound(e.Ops, n.Veth1Name, fcerrors.Veth)
	if err != nil {
		return err
	}
	if err := e.Ops.LinkDel(veth1Idx); err != nil {
		return err
	}
	e.Log.Info("namespaced: delete complete", "netns", n.NetnsName)
	return nil
}

func (e *Engine) deleteInner(ctx context.Context, n netmodel.NamespacedNetwork, fam netmodel.Family, needsPrerouting bool) error {
	innerCurrent, err := e.Reconciler.GetCurrentRuleset(ctx)
	if err != nil {
		return err
	}
	snatHandle := ruleset.FindRuleHandle(innerCurrent, ruleset.NFTPostroutingChain,
		ruleset.InnerSNATExpr(n.Veth2Name, n.GuestIP, n.Veth2IP, fam))
	if snatHandle == nil {
		return fcerrors.ObjectNotFound(fcerrors.NfSnatRule)
	}
	var dnatHandle *int
	if needsPrerouting {
		dnatHandle = ruleset.FindRuleHandle(innerCurrent, ruleset.NFTPreroutingChain,
			ruleset.InnerDNATExpr(n.Veth2Name, n.ForwardedGuestIP.String(), n.GuestIP, fam))
		if dnatHandle == nil {
			return fcerrors.ObjectNotFound(fcerrors.NfDnatRule)
		}
	}

	innerBatch := nftjson.NewBatch()
	innerBatch.Delete(ruleset.NewRule(fam, ruleset.NFTPostroutingChain,
		ruleset.InnerSNATExpr(n.Veth2Name, n.GuestIP, n.Veth2IP, fam), snatHandle))
	if needsPrerouting {
		innerBatch.Delete(ruleset.NewRule(fam, ruleset.NFTPreroutingChain,
			ruleset.InnerDNATExpr(n.Veth2Name, n.ForwardedGuestIP.String(), n.GuestIP, fam), dnatHandle))
	}
	if err := e.Reconciler.Apply(ctx, innerBatch); err != nil {
		return err
	}

	tapIdx, err := rtnl.LinkIndexByNameOrNotFound(e.Ops, n.TapName, fcerrors.Tap)
	if err != nil {
		return err
	}
	if err := e.Ops.LinkDel(tapIdx); err != nil {
		return err
	}
	veth2Idx, err := rtnl.LinkIndexByNameOrNotFound(e.Ops, n.Veth2Name, fcerrors.Veth)
	if err != nil {
		return err
	}
	return e.Ops.LinkDel(veth2Idx)
}

// Check verifies every link, base chain and rule this topology's Add would
// have created, without mutating any kernel or nftables state.
func (e *Engine) Check(ctx context.Context, n netmodel.NamespacedNetwork) error {
	fam := n.NfFamily()
	needsPrerouting := n.ForwardedGuestIP != nil

	if _, err := rtnl.LinkIndexByNameOrNotFound(e.Ops, n.Veth1Name, fcerrors.Veth); err != nil {
		return err
	}

	outerCurrent, err := e.Reconciler.GetCurrentRuleset(ctx)
	if err != nil {
		return err
	}
	if err := ruleset.CheckBaseChains(fam, false, outerCurrent); err != nil {
		return err
	}
	if !ruleset.RuleExists(outerCurrent, ruleset.NFTPostroutingChain, ruleset.OuterMasqExpr(n)) {
		return fcerrors.ObjectNotFound(fcerrors.NfMasqueradeRule)
	}
	if !ruleset.RuleExists(outerCurrent, ruleset.NFTFilterChain, ruleset.OuterIngressForwardExpr(n)) {
		return fcerrors.ObjectNotFound(fcerrors.NfIngressForwardRule)
	}
	if !ruleset.RuleExists(outerCurrent, ruleset.NFTFilterChain, ruleset.OuterEgressForwardExpr(n)) {
		return fcerrors.ObjectNotFound(fcerrors.NfEgressForwardRule)
	}

	return e.enterNetns(n.NetnsName, func() error {
		return e.checkInner(ctx, n, fam, needsPrerouting)
	})
}

func (e *Engine) checkInner(ctx context.Context, n netmodel.NamespacedNetwork, fam netmodel.Family, needsPrerouting bool) error {
	if _, err := rtnl.LinkIndexByNameOrNotFound(e.Ops, n.Veth2Name, fcerrors.Veth); err != nil {
		return err
	}
	if _, err := rtnl.LinkIndexByNameOrNotFound(e.Ops, n.TapName, fcerrors.Tap); err != nil {
		return err
	}

	innerCurrent, err := e.Reconciler.GetCurrentRuleset(ctx)
	if err != nil {
		return err
	}
	if err := ruleset.CheckInnerBaseChains(fam, needsPrerouting, innerCurrent); err != nil {
		return err
	}
	if !ruleset.RuleExists(innerCurrent, ruleset.NFTPostroutingChain,
		ruleset.InnerSNATExpr(n.Veth2Name, n.GuestIP, n.Veth2IP, fam)) {
		return fcerrors.ObjectNotFound(fcerrors.NfSnatRule)
	}
	if needsPrerouting {
		if !ruleset.RuleExists(innerCurrent, ruleset.NFTPreroutingChain,
			ruleset.InnerDNATExpr(n.Veth2Name, n.ForwardedGuestIP.String(), n.GuestIP, fam)) {
			return fcerrors.ObjectNotFound(fcerrors.NfDnatRule)
		}
	}
	return nil
}
