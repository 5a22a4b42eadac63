package simple

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fcnet/fcnet/internal/fcerrors"
	"github.com/fcnet/fcnet/internal/netmodel"
	"github.com/fcnet/fcnet/internal/nftjson"
	"github.com/fcnet/fcnet/internal/ruleset"
	"github.com/fcnet/fcnet/pkg/logger"
)

// fakeOps is an in-memory rtnl.Ops good enough to exercise the engine
// without a kernel: it tracks link names/indexes/up-state but never talks
// to rtnetlink.
type fakeOps struct {
	links     map[string]int
	nextIndex int
	up        map[int]bool
	addrs     map[int]net.IP
	deleted   map[int]bool
}

func newFakeOps() *fakeOps {
	return &fakeOps{
		links: map[string]int{},
		up:    map[int]bool{},
		addrs: map[int]net.IP{},
		deleted: map[int]bool{},
	}
}

func (f *fakeOps) CreateTap(name string) error {
	f.nextIndex++
	f.links[name] = f.nextIndex
	return nil
}

func (f *fakeOps) CreateVethPair(veth1Name, veth2Name string) error {
	f.nextIndex++
	f.links[veth1Name] = f.nextIndex
	f.nextIndex++
	f.links[veth2Name] = f.nextIndex
	return nil
}

func (f *fakeOps) AddressAdd(linkIndex int, addr net.IP, prefixLen int) error {
	f.addrs[linkIndex] = addr
	return nil
}

func (f *fakeOps) LinkSetUp(linkIndex int) error {
	f.up[linkIndex] = true
	return nil
}

func (f *fakeOps) LinkSetNsByFd(linkIndex int, fd int) error { return nil }

func (f *fakeOps) LinkDel(linkIndex int) error {
	f.deleted[linkIndex] = true
	return nil
}

func (f *fakeOps) RouteAddV4(dst net.IP, prefixLen int, gateway net.IP) error { return nil }
func (f *fakeOps) RouteAddV6(dst net.IP, prefixLen int, gateway net.IP) error { return nil }
func (f *fakeOps) RouteDelV4(dst net.IP, prefixLen int, gateway net.IP) error { return nil }
func (f *fakeOps) RouteDelV6(dst net.IP, prefixLen int, gateway net.IP) error { return nil }

func (f *fakeOps) LinkIndexByName(name string) (int, error) {
	idx, ok := f.links[name]
	if !ok || f.deleted[idx] {
		return 0, assert.AnError
	}
	return idx, nil
}

// fakeExecutor is an in-memory nftjson.Executor: Apply mutates the object
// set Get returns next, mirroring the real nft binary's batch semantics
// closely enough to exercise AddBaseChainsIfNeeded/FindRuleHandle.
type fakeExecutor struct {
	objects    []nftjson.Object
	nextHandle int
}

func (f *fakeExecutor) GetCurrentRuleset(ctx context.Context) (*nftjson.Ruleset, error) {
	cp := append([]nftjson.Object(nil), f.objects...)
	return &nftjson.Ruleset{Objects: cp}, nil
}

func (f *fakeExecutor) Apply(ctx context.Context, batch *nftjson.Batch) error {
	batch.Each(func(add bool, obj nftjson.Object) {
		if add {
			if obj.Rule != nil && obj.Rule.Handle == nil {
				f.nextHandle++
				h := f.nextHandle
				obj.Rule.Handle = &h
			}
			f.objects = append(f.objects, obj)
		} else {
			f.objects = removeMatching(f.objects, obj)
		}
	})
	return nil
}

func removeMatching(objects []nftjson.Object, target nftjson.Object) []nftjson.Object {
	out := objects[:0:0]
	for _, obj := range objects {
		if obj.Rule != nil && target.Rule != nil && obj.Rule.Handle != nil && target.Rule.Handle != nil &&
			*obj.Rule.Handle == *target.Rule.Handle {
			continue
		}
		out = append(out, obj)
	}
	return out
}

func newEngine(ops *fakeOps, exec *fakeExecutor) *Engine {
	log, _ := logger.New("error", "text")
	return &Engine{
		Ops:        ops,
		Reconciler: &ruleset.Reconciler{Executor: exec},
		Log:        log,
	}
}

func testNetwork(t *testing.T) netmodel.Network {
	t.Helper()
	tapIP, err := netmodel.ParseInet("172.16.0.1/30")
	require.NoError(t, err)
	guestIP, err := netmodel.ParseInet("172.16.0.2/30")
	require.NoError(t, err)
	return netmodel.Network{
		IfaceName: "eth0",
		TapName:   "tap0",
		TapIP:     tapIP,
		GuestIP:   guestIP,
	}
}

func TestEngineAddThenCheckThenDelete(t *testing.T) {
	ops := newFakeOps()
	exec := &fakeExecutor{}
	eng := newEngine(ops, exec)
	n := testNetwork(t)
	ctx := context.Background()

	require.NoError(t, eng.Add(ctx, n))
	assert.NoError(t, eng.Check(ctx, n))

	require.NoError(t, eng.Delete(ctx, n))
	err := eng.Check(ctx, n)
	require.Error(t, err)
	var notFound *fcerrors.ObjectNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestEngineAddDoesNotDuplicateSharedMasquerade(t *testing.T) {
	ops := newFakeOps()
	exec := &fakeExecutor{}
	eng := newEngine(ops, exec)
	ctx := context.Background()

	first := testNetwork(t)
	require.NoError(t, eng.Add(ctx, first))

	second := first
	second.TapName = "tap1"
	require.NoError(t, eng.Add(ctx, second))

	current, err := eng.Reconciler.GetCurrentRuleset(ctx)
	require.NoError(t, err)
	count := 0
	for _, obj := range current.Objects {
		if obj.Rule != nil && obj.Rule.Chain == ruleset.NFTPostroutingChain {
			count++
		}
	}
	assert.Equal(t, 1, count, "masquerade rule must not be duplicated for a second VM sharing iface_name")
}

func TestEngineDeleteFailsOnMissingRule(t *testing.T) {
	ops := newFakeOps()
	exec := &fakeExecutor{}
	eng := newEngine(ops, exec)
	n := testNetwork(t)
	ctx := context.Background()

	require.NoError(t, eng.Ops.CreateTap(n.TapName))

	err := eng.Delete(ctx, n)
	require.Error(t, err)
	var notFound *fcerrors.ObjectNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, fcerrors.NfEgressForwardRule, notFound.Kind)
}
