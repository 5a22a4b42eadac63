// Package netmodel holds the immutable description of the host networking
// an invocation is asked to provision, plus the validation that must run
// before any kernel object is touched.
package netmodel

import (
	"fmt"
	"net"
)

// Family identifies which nftables/netlink address family a topology
// instance is wired for. A topology is always single-family.
type Family int

const (
	FamilyIPv4 Family = iota
	FamilyIPv6
)

func (f Family) String() string {
	if f == FamilyIPv6 {
		return "ip6"
	}
	return "ip"
}

// Inet is an address plus its prefix length, e.g. 172.16.0.1/30.
type Inet struct {
	Addr         net.IP
	PrefixLength int
}

// ParseInet parses a CIDR string ("172.16.0.1/30") into an Inet, keeping
// the host bits of Addr (it takes net.ParseCIDR's IP result; only the
// *net.IPNet result has them masked off).
func ParseInet(cidr string) (Inet, error) {
	ip, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return Inet{}, fmt.Errorf("invalid CIDR %q: %w", cidr, err)
	}
	ones, _ := ipNet.Mask.Size()
	return Inet{Addr: ip, PrefixLength: ones}, nil
}

func (i Inet) String() string {
	return fmt.Sprintf("%s/%d", i.Addr.String(), i.PrefixLength)
}

// Family reports whether this address is IPv4 or IPv6.
func (i Inet) Family() Family {
	if i.Addr.To4() != nil {
		return FamilyIPv4
	}
	return FamilyIPv6
}

// Network is the base description shared by both topologies (spec.md §3).
type Network struct {
	IfaceName string // host's outbound interface
	TapName   string
	TapIP     Inet
	GuestIP   Inet
	// NftProgram overrides the nftables executable path; empty means "nft"
	// resolved from PATH.
	NftProgram string
}

// NfFamily derives the nftables/netlink address family from GuestIP, per
// spec.md §3 ("nf_family: derived from address families").
func (n Network) NfFamily() Family {
	return n.GuestIP.Family()
}

// Validate enforces invariant 1 (single address family per invocation) for
// the simple topology's address set.
func (n Network) Validate() error {
	if n.IfaceName == "" {
		return fmt.Errorf("iface_name is required")
	}
	if n.TapName == "" {
		return fmt.Errorf("tap_name is required")
	}
	if n.TapIP.Family() != n.GuestIP.Family() {
		return fmt.Errorf("tap_ip and guest_ip must be the same address family")
	}
	return nil
}

// NamespacedNetwork extends Network with the two-namespace topology's
// veth pair, target namespace and optional port forwarding (spec.md §3).
type NamespacedNetwork struct {
	Network

	NetnsName string
	Veth1Name string
	Veth2Name string
	Veth1IP   Inet
	Veth2IP   Inet

	// ForwardedGuestIP, if set, is DNATed to GuestIP and reachable from
	// outside the namespace.
	ForwardedGuestIP *net.IP
}

// Validate enforces invariant 1 across the full namespaced address set:
// veth1/veth2, guest/forwarded and tap/guest must each agree on family.
func (n NamespacedNetwork) Validate() error {
	if err := n.Network.Validate(); err != nil {
		return err
	}
	if n.NetnsName == "" {
		return fmt.Errorf("netns_name is required")
	}
	if n.Veth1Name == "" || n.Veth2Name == "" {
		return fmt.Errorf("veth1_name and veth2_name are required")
	}

	fam := n.NfFamily()
	if n.Veth1IP.Family() != fam || n.Veth2IP.Family() != fam {
		return fmt.Errorf("veth1_ip and veth2_ip must match the topology's address family")
	}
	if n.ForwardedGuestIP != nil {
		fwdIsV4 := (*n.ForwardedGuestIP).To4() != nil
		if (fam == FamilyIPv4) != fwdIsV4 {
			return fmt.Errorf("forwarded_guest_ip must match the topology's address family")
		}
	}
	return nil
}
