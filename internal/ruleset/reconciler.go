package ruleset

import (
	"context"
	"reflect"

	"github.com/fcnet/fcnet/internal/fcerrors"
	"github.com/fcnet/fcnet/internal/netmodel"
	"github.com/fcnet/fcnet/internal/nftjson"
)

// baseChainSpec describes one base chain a topology needs, and the
// ObjectKind to report if it is missing.
type baseChainSpec struct {
	name     string
	kind     fcerrors.ObjectKind
	chain    nftjson.Chain
}

// Reconciler reads, inspects and mutates one family's nftables ruleset
// through an Executor (spec.md §4.2). It holds no kernel state itself —
// every call re-fetches or re-applies against the live kernel.
type Reconciler struct {
	Executor nftjson.Executor
}

// GetCurrentRuleset fetches the live ruleset via the executor.
func (r *Reconciler) GetCurrentRuleset(ctx context.Context) (*nftjson.Ruleset, error) {
	rs, err := r.Executor.GetCurrentRuleset(ctx)
	if err != nil {
		return nil, &fcerrors.NftablesError{Cause: err}
	}
	return rs, nil
}

// Apply sends a batch to the executor.
func (r *Reconciler) Apply(ctx context.Context, batch *nftjson.Batch) error {
	if err := r.Executor.Apply(ctx, batch); err != nil {
		return &fcerrors.NftablesError{Cause: err}
	}
	return nil
}

func postroutingChainSpec(fam nftjson.Family) baseChainSpec {
	natType := nftjson.ChainTypeNAT
	post := nftPostroutingPrio
	postHook := nftjson.HookPostrouting
	policy := nftjson.ChainPolicyAccept
	return baseChainSpec{
		name: NFTPostroutingChain,
		kind: fcerrors.NfPostroutingChain,
		chain: nftjson.Chain{
			Family: fam, Table: NFTTable, Name: NFTPostroutingChain,
			Type: &natType, Hook: &postHook, Priority: &post, Policy: &policy,
		},
	}
}

func preroutingChainSpec(fam nftjson.Family) baseChainSpec {
	natType := nftjson.ChainTypeNAT
	pre := nftPreroutingPrio
	preHook := nftjson.HookPrerouting
	policy := nftjson.ChainPolicyAccept
	return baseChainSpec{
		name: NFTPreroutingChain,
		kind: fcerrors.NfPreroutingChain,
		chain: nftjson.Chain{
			Family: fam, Table: NFTTable, Name: NFTPreroutingChain,
			Type: &natType, Hook: &preHook, Priority: &pre, Policy: &policy,
		},
	}
}

func filterChainSpec(fam nftjson.Family) baseChainSpec {
	filterType := nftjson.ChainTypeFilter
	fwd := nftFilterPriority
	fwdHook := nftjson.HookForward
	policy := nftjson.ChainPolicyAccept
	return baseChainSpec{
		name: NFTFilterChain,
		kind: fcerrors.NfFilterChain,
		chain: nftjson.Chain{
			Family: fam, Table: NFTTable, Name: NFTFilterChain,
			Type: &filterType, Hook: &fwdHook, Priority: &fwd, Policy: &policy,
		},
	}
}

// baseChains lists the outer topology's base chains: postrouting and
// forward always, prerouting only when the caller needs DNAT (namespaced
// port forwarding).
func baseChains(family netmodel.Family, needsPrerouting bool) []baseChainSpec {
	fam := nftjson.FamilyIP
	if family == netmodel.FamilyIPv6 {
		fam = nftjson.FamilyIP6
	}
	specs := []baseChainSpec{postroutingChainSpec(fam), filterChainSpec(fam)}
	if needsPrerouting {
		specs = append(specs, preroutingChainSpec(fam))
	}
	return specs
}

// innerBaseChains lists the namespaced topology's inner-side base chains:
// there is no forward chain inside the guest namespace, only postrouting
// (SNAT) and, when port forwarding is configured, prerouting (DNAT).
func innerBaseChains(family netmodel.Family, needsPrerouting bool) []baseChainSpec {
	fam := nftjson.FamilyIP
	if family == netmodel.FamilyIPv6 {
		fam = nftjson.FamilyIP6
	}
	specs := []baseChainSpec{postroutingChainSpec(fam)}
	if needsPrerouting {
		specs = append(specs, preroutingChainSpec(fam))
	}
	return specs
}

func tableExists(rs *nftjson.Ruleset, family nftjson.Family) bool {
	for _, obj := range rs.Objects {
		if obj.Table != nil && obj.Table.Name == NFTTable && obj.Table.Family == family {
			return true
		}
	}
	return false
}

func chainExists(rs *nftjson.Ruleset, family nftjson.Family, name string) bool {
	for _, obj := range rs.Objects {
		if obj.Chain != nil && obj.Chain.Table == NFTTable && obj.Chain.Family == family && obj.Chain.Name == name {
			return true
		}
	}
	return false
}

// AddBaseChainsIfNeeded ensures NFT_TABLE and the base chains this family
// requires exist, adding only what is missing to batch (spec.md §4.2).
// needsPrerouting selects whether NFT_PREROUTING_CHAIN is required too; the
// simple and namespaced-outer callers pass false, and the namespaced-inner
// side uses InnerBaseBatch instead.
func AddBaseChainsIfNeeded(family netmodel.Family, needsPrerouting bool, current *nftjson.Ruleset, batch *nftjson.Batch) {
	fam := nftjson.FamilyIP
	if family == netmodel.FamilyIPv6 {
		fam = nftjson.FamilyIP6
	}
	if !tableExists(current, fam) {
		batch.Add(nftjson.Object{Table: &nftjson.Table{Family: fam, Name: NFTTable}})
	}
	for _, spec := range baseChains(family, needsPrerouting) {
		if !chainExists(current, fam, spec.name) {
			chain := spec.chain
			batch.Add(nftjson.Object{Chain: &chain})
		}
	}
}

// CheckBaseChains verifies the base chains exist without mutating
// anything, returning ObjectNotFound(<chain-kind>) for the first missing
// one (spec.md §4.2).
func CheckBaseChains(family netmodel.Family, needsPrerouting bool, current *nftjson.Ruleset) error {
	fam := nftjson.FamilyIP
	if family == netmodel.FamilyIPv6 {
		fam = nftjson.FamilyIP6
	}
	if !tableExists(current, fam) {
		return fcerrors.ObjectNotFound(fcerrors.NfTable)
	}
	for _, spec := range baseChains(family, needsPrerouting) {
		if !chainExists(current, fam, spec.name) {
			return fcerrors.ObjectNotFound(spec.kind)
		}
	}
	return nil
}

// InnerBaseBatch unconditionally emits the table and base chains the
// namespaced topology's inner side needs (spec.md §4.6, ported from
// add.rs's setup_inner_nf_rules). Unlike AddBaseChainsIfNeeded, it never
// consults an existing ruleset: it adds the table and every inner base
// chain whether or not the target namespace already holds them.
func InnerBaseBatch(family netmodel.Family, needsPrerouting bool, batch *nftjson.Batch) {
	fam := nftjson.FamilyIP
	if family == netmodel.FamilyIPv6 {
		fam = nftjson.FamilyIP6
	}
	batch.Add(nftjson.Object{Table: &nftjson.Table{Family: fam, Name: NFTTable}})
	for _, spec := range innerBaseChains(family, needsPrerouting) {
		chain := spec.chain
		batch.Add(nftjson.Object{Chain: &chain})
	}
}

// CheckInnerBaseChains verifies the inner-side table and base chains exist,
// mirroring CheckBaseChains but without the outer forward chain.
func CheckInnerBaseChains(family netmodel.Family, needsPrerouting bool, current *nftjson.Ruleset) error {
	fam := nftjson.FamilyIP
	if family == netmodel.FamilyIPv6 {
		fam = nftjson.FamilyIP6
	}
	if !tableExists(current, fam) {
		return fcerrors.ObjectNotFound(fcerrors.NfTable)
	}
	for _, spec := range innerBaseChains(family, needsPrerouting) {
		if !chainExists(current, fam, spec.name) {
			return fcerrors.ObjectNotFound(spec.kind)
		}
	}
	return nil
}

// RuleExists reports whether a rule matching chain+expr already exists in
// current. Used by the simple engine's duplicate-masquerade guard
// (spec.md §4.5 step 3).
func RuleExists(current *nftjson.Ruleset, chain string, expr []nftjson.Statement) bool {
	for _, obj := range current.Objects {
		if obj.Rule != nil && obj.Rule.Chain == chain && obj.Rule.Table == NFTTable && exprEqual(obj.Rule.Expr, expr) {
			return true
		}
	}
	return false
}

// FindRuleHandle scans current for the first rule whose chain and
// expression list equal the given values, returning its kernel handle or
// nil (spec.md §3 invariant 5, §4.2).
func FindRuleHandle(current *nftjson.Ruleset, chain string, expr []nftjson.Statement) *int {
	for _, obj := range current.Objects {
		rule := obj.Rule
		if rule == nil || rule.Chain != chain || rule.Table != NFTTable {
			continue
		}
		if exprEqual(rule.Expr, expr) {
			return rule.Handle
		}
	}
	return nil
}

func exprEqual(a, b []nftjson.Statement) bool {
	return reflect.DeepEqual(a, b)
}

// NewRule builds a rule object for the given family/chain/expression,
// ready to be passed to Batch.Add. handle is nil for an add; Batch.Delete
// callers must pass the handle a prior FindRuleHandle call returned.
func NewRule(family netmodel.Family, chain string, expr []nftjson.Statement, handle *int) nftjson.Object {
	fam := nftjson.FamilyIP
	if family == netmodel.FamilyIPv6 {
		fam = nftjson.FamilyIP6
	}
	return nftjson.Object{Rule: &nftjson.Rule{
		Family: fam,
		Table:  NFTTable,
		Chain:  chain,
		Expr:   expr,
		Handle: handle,
	}}
}
