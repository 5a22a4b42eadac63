// Package rtnl wraps the rtnetlink operations this system needs behind a
// small interface, so topology engines can be tested against a fake
// instead of the real kernel (spec.md §4.3). LinkOps is the production
// implementation, backed by github.com/vishvananda/netlink — grounded on
// the createTAP/deleteTAP/getInterfaceIndex pattern used by the retrieved
// slok-sbx firecracker sandbox and the veth/route wiring in glacic's
// netns setup.
package rtnl

import (
	"net"

	"github.com/vishvananda/netlink"

	"github.com/fcnet/fcnet/internal/fcerrors"
)

// Ops is the set of RTNL capabilities a topology engine depends on.
type Ops interface {
	CreateTap(name string) error
	CreateVethPair(veth1Name, veth2Name string) error
	AddressAdd(linkIndex int, addr net.IP, prefixLen int) error
	LinkSetUp(linkIndex int) error
	LinkSetNsByFd(linkIndex int, fd int) error
	LinkDel(linkIndex int) error
	RouteAddV4(dst net.IP, prefixLen int, gateway net.IP) error
	RouteAddV6(dst net.IP, prefixLen int, gateway net.IP) error
	RouteDelV4(dst net.IP, prefixLen int, gateway net.IP) error
	RouteDelV6(dst net.IP, prefixLen int, gateway net.IP) error
	LinkIndexByName(name string) (int, error)
}

// LinkOps is the real rtnetlink-backed implementation, operating against
// whatever network namespace the calling goroutine's OS thread currently
// sits in (see internal/netns for how that's arranged).
type LinkOps struct{}

var _ Ops = LinkOps{}

// CreateTap creates a persistent, initially-down TAP device owned by the
// calling process, matching the Rust source's `TunBuilder::tap().persist()`.
func (LinkOps) CreateTap(name string) error {
	tap := &netlink.Tuntap{
		LinkAttrs: netlink.LinkAttrs{Name: name},
		Mode:      netlink.TUNTAP_MODE_TAP,
		Flags:     netlink.TUNTAP_DEFAULTS | netlink.TUNTAP_NO_PI,
	}
	if err := netlink.LinkAdd(tap); err != nil {
		return &fcerrors.TapDeviceError{Cause: err}
	}
	return nil
}

// CreateVethPair creates a veth pair with both ends in the calling
// namespace, both initially down.
func (LinkOps) CreateVethPair(veth1Name, veth2Name string) error {
	veth := &netlink.Veth{
		LinkAttrs: netlink.LinkAttrs{Name: veth1Name},
		PeerName:  veth2Name,
	}
	if err := netlink.LinkAdd(veth); err != nil {
		return &fcerrors.NetlinkOperationError{Cause: err}
	}
	return nil
}

// AddressAdd assigns addr/prefixLen to the link at linkIndex.
func (LinkOps) AddressAdd(linkIndex int, addr net.IP, prefixLen int) error {
	link, err := netlink.LinkByIndex(linkIndex)
	if err != nil {
		return &fcerrors.NetlinkOperationError{Cause: err}
	}
	bits := 32
	if addr.To4() == nil {
		bits = 128
	}
	nladdr := &netlink.Addr{IPNet: &net.IPNet{IP: addr, Mask: net.CIDRMask(prefixLen, bits)}}
	if err := netlink.AddrAdd(link, nladdr); err != nil {
		return &fcerrors.NetlinkOperationError{Cause: err}
	}
	return nil
}

// LinkSetUp brings the link at linkIndex up.
func (LinkOps) LinkSetUp(linkIndex int) error {
	link, err := netlink.LinkByIndex(linkIndex)
	if err != nil {
		return &fcerrors.NetlinkOperationError{Cause: err}
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return &fcerrors.NetlinkOperationError{Cause: err}
	}
	return nil
}

// LinkSetNsByFd moves the link at linkIndex into the namespace identified
// by an open /proc/<pid>/ns/net-style file descriptor (IFLA_NET_NS_FD).
func (LinkOps) LinkSetNsByFd(linkIndex int, fd int) error {
	link, err := netlink.LinkByIndex(linkIndex)
	if err != nil {
		return &fcerrors.NetlinkOperationError{Cause: err}
	}
	if err := netlink.LinkSetNsFd(link, fd); err != nil {
		return &fcerrors.NetlinkOperationError{Cause: err}
	}
	return nil
}

// LinkDel deletes the link at linkIndex.
func (LinkOps) LinkDel(linkIndex int) error {
	link, err := netlink.LinkByIndex(linkIndex)
	if err != nil {
		return &fcerrors.NetlinkOperationError{Cause: err}
	}
	if err := netlink.LinkDel(link); err != nil {
		return &fcerrors.NetlinkOperationError{Cause: err}
	}
	return nil
}

// RouteAddV4 adds an IPv4 route. dst nil means a default route.
func (LinkOps) RouteAddV4(dst net.IP, prefixLen int, gateway net.IP) error {
	if gateway.To4() == nil {
		return fcerrors.ErrForbiddenDualStackInRoute
	}
	route := &netlink.Route{Gw: gateway}
	if dst != nil {
		route.Dst = &net.IPNet{IP: dst, Mask: net.CIDRMask(prefixLen, 32)}
	}
	if err := netlink.RouteAdd(route); err != nil {
		return &fcerrors.NetlinkOperationError{Cause: err}
	}
	return nil
}

// RouteAddV6 adds an IPv6 route. dst nil means a default route.
func (LinkOps) RouteAddV6(dst net.IP, prefixLen int, gateway net.IP) error {
	if gateway.To4() != nil {
		return fcerrors.ErrForbiddenDualStackInRoute
	}
	route := &netlink.Route{Gw: gateway}
	if dst != nil {
		route.Dst = &net.IPNet{IP: dst, Mask: net.CIDRMask(prefixLen, 128)}
	}
	if err := netlink.RouteAdd(route); err != nil {
		return &fcerrors.NetlinkOperationError{Cause: err}
	}
	return nil
}

// RouteDelV4 removes an IPv4 route matching dst/prefixLen/gateway. dst nil
// means the default route.
func (LinkOps) RouteDelV4(dst net.IP, prefixLen int, gateway net.IP) error {
	if gateway.To4() == nil {
		return fcerrors.ErrForbiddenDualStackInRoute
	}
	route := &netlink.Route{Gw: gateway}
	if dst != nil {
		route.Dst = &net.IPNet{IP: dst, Mask: net.CIDRMask(prefixLen, 32)}
	}
	if err := netlink.RouteDel(route); err != nil {
		return &fcerrors.NetlinkOperationError{Cause: err}
	}
	return nil
}

// RouteDelV6 removes an IPv6 route matching dst/prefixLen/gateway. dst nil
// means the default route.
func (LinkOps) RouteDelV6(dst net.IP, prefixLen int, gateway net.IP) error {
	if gateway.To4() != nil {
		return fcerrors.ErrForbiddenDualStackInRoute
	}
	route := &netlink.Route{Gw: gateway}
	if dst != nil {
		route.Dst = &net.IPNet{IP: dst, Mask: net.CIDRMask(prefixLen, 128)}
	}
	if err := netlink.RouteDel(route); err != nil {
		return &fcerrors.NetlinkOperationError{Cause: err}
	}
	return nil
}

// LinkIndexByName resolves a link name to its kernel index, returning the
// netlink error unchanged when the link is missing (see
// LinkIndexByNameOrNotFound for the ObjectNotFound translation).
func (LinkOps) LinkIndexByName(name string) (int, error) {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return 0, err
	}
	return link.Attrs().Index, nil
}

// LinkIndexByNameOrNotFound wraps LinkIndexByName, translating a miss into
// the ObjectNotFound(kind) taxonomy spec.md §7 requires.
func LinkIndexByNameOrNotFound(ops Ops, name string, kind fcerrors.ObjectKind) (int, error) {
	idx, err := ops.LinkIndexByName(name)
	if err != nil {
		return 0, fcerrors.ObjectNotFound(kind)
	}
	return idx, nil
}
