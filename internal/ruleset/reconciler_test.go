package ruleset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fcnet/fcnet/internal/fcerrors"
	"github.com/fcnet/fcnet/internal/netmodel"
	"github.com/fcnet/fcnet/internal/nftjson"
)

func TestAddBaseChainsIfNeededAddsOnlyWhatsMissing(t *testing.T) {
	current := &nftjson.Ruleset{Objects: []nftjson.Object{
		{Table: &nftjson.Table{Family: nftjson.FamilyIP, Name: NFTTable}},
	}}
	batch := nftjson.NewBatch()
	AddBaseChainsIfNeeded(netmodel.FamilyIPv4, true, current, batch)

	var added []string
	batch.Each(func(add bool, obj nftjson.Object) {
		require.True(t, add)
		if obj.Table != nil {
			added = append(added, "table")
		}
		if obj.Chain != nil {
			added = append(added, obj.Chain.Name)
		}
	})

	assert.NotContains(t, added, "table", "table already existed, must not be re-added")
	assert.Contains(t, added, NFTPostroutingChain)
	assert.Contains(t, added, NFTFilterChain)
	assert.Contains(t, added, NFTPreroutingChain)
}

func TestCheckBaseChainsReportsFirstMissing(t *testing.T) {
	current := &nftjson.Ruleset{}
	err := CheckBaseChains(netmodel.FamilyIPv4, false, current)
	require.Error(t, err)
	var notFound *fcerrors.ObjectNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, fcerrors.NfTable, notFound.Kind)

	current = &nftjson.Ruleset{Objects: []nftjson.Object{
		{Table: &nftjson.Table{Family: nftjson.FamilyIP, Name: NFTTable}},
	}}
	err = CheckBaseChains(netmodel.FamilyIPv4, false, current)
	require.Error(t, err)
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, fcerrors.NfPostroutingChain, notFound.Kind)
}

func TestCheckInnerBaseChainsHasNoFilterChain(t *testing.T) {
	current := &nftjson.Ruleset{Objects: []nftjson.Object{
		{Table: &nftjson.Table{Family: nftjson.FamilyIP, Name: NFTTable}},
		{Chain: &nftjson.Chain{Family: nftjson.FamilyIP, Table: NFTTable, Name: NFTPostroutingChain}},
	}}
	assert.NoError(t, CheckInnerBaseChains(netmodel.FamilyIPv4, false, current),
		"inner side never needs a forward chain, unlike CheckBaseChains")

	err := CheckInnerBaseChains(netmodel.FamilyIPv4, true, current)
	require.Error(t, err)
	var notFound *fcerrors.ObjectNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, fcerrors.NfPreroutingChain, notFound.Kind)
}

func TestInnerBaseBatchNeverConsultsExistingRuleset(t *testing.T) {
	batch := nftjson.NewBatch()
	InnerBaseBatch(netmodel.FamilyIPv4, true, batch)

	var kinds []string
	batch.Each(func(add bool, obj nftjson.Object) {
		require.True(t, add)
		if obj.Table != nil {
			kinds = append(kinds, "table")
		}
		if obj.Chain != nil {
			kinds = append(kinds, obj.Chain.Name)
		}
	})
	assert.Equal(t, []string{"table", NFTPostroutingChain, NFTPreroutingChain}, kinds)
}

func TestRuleExistsAndFindRuleHandle(t *testing.T) {
	expr := []nftjson.Statement{{Accept: &struct{}{}}}
	handle := 7
	current := &nftjson.Ruleset{Objects: []nftjson.Object{
		{Rule: &nftjson.Rule{Family: nftjson.FamilyIP, Table: NFTTable, Chain: NFTFilterChain, Expr: expr, Handle: &handle}},
	}}

	assert.True(t, RuleExists(current, NFTFilterChain, expr))
	assert.False(t, RuleExists(current, NFTPostroutingChain, expr), "wrong chain must not match")

	got := FindRuleHandle(current, NFTFilterChain, expr)
	require.NotNil(t, got)
	assert.Equal(t, handle, *got)

	assert.Nil(t, FindRuleHandle(current, NFTFilterChain, []nftjson.Statement{{Accept: &struct{}{}}, {Accept: &struct{}{}}}))
}
