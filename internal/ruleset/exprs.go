package ruleset

import (
	"github.com/fcnet/fcnet/internal/netmodel"
	"github.com/fcnet/fcnet/internal/nftjson"
)

func eq(left, right nftjson.Expression) nftjson.Statement {
	return nftjson.Statement{Match: &nftjson.MatchStatement{Op: "==", Left: left, Right: right}}
}

func accept() nftjson.Statement {
	return nftjson.Statement{Accept: &struct{}{}}
}

func masquerade() nftjson.Statement {
	return nftjson.Statement{Masquerade: &struct{}{}}
}

// MasqExpr is the simple topology's masquerade rule (spec.md §4.1):
// guest traffic leaving via iface_name is masqueraded.
func MasqExpr(n netmodel.Network) []nftjson.Statement {
	proto := n.NfFamily().String()
	return []nftjson.Statement{
		eq(nftjson.Payload(proto, "saddr"), nftjson.Str(n.GuestIP.Addr.String())),
		eq(nftjson.Meta("oifname"), nftjson.Str(n.IfaceName)),
		masquerade(),
	}
}

// ForwardExpr is the simple topology's forward rule: accept TAP-to-iface
// traffic in the forward chain.
func ForwardExpr(n netmodel.Network) []nftjson.Statement {
	return []nftjson.Statement{
		eq(nftjson.Meta("iifname"), nftjson.Str(n.TapName)),
		eq(nftjson.Meta("oifname"), nftjson.Str(n.IfaceName)),
		accept(),
	}
}

// OuterMasqExpr masquerades traffic from the guest veth subnet leaving via
// iface_name, for the namespaced topology's outer side.
func OuterMasqExpr(n netmodel.NamespacedNetwork) []nftjson.Statement {
	proto := n.NfFamily().String()
	return []nftjson.Statement{
		eq(nftjson.Payload(proto, "saddr"), nftjson.Str(n.Veth1IP.Addr.String())),
		eq(nftjson.Meta("oifname"), nftjson.Str(n.IfaceName)),
		masquerade(),
	}
}

// OuterIngressForwardExpr accepts traffic flowing from the outbound
// interface into the veth pair (towards the namespace).
func OuterIngressForwardExpr(n netmodel.NamespacedNetwork) []nftjson.Statement {
	return []nftjson.Statement{
		eq(nftjson.Meta("iifname"), nftjson.Str(n.IfaceName)),
		eq(nftjson.Meta("oifname"), nftjson.Str(n.Veth1Name)),
		accept(),
	}
}

// OuterEgressForwardExpr accepts traffic flowing from the veth pair
// (leaving the namespace) out through the outbound interface.
func OuterEgressForwardExpr(n netmodel.NamespacedNetwork) []nftjson.Statement {
	return []nftjson.Statement{
		eq(nftjson.Meta("iifname"), nftjson.Str(n.Veth1Name)),
		eq(nftjson.Meta("oifname"), nftjson.Str(n.IfaceName)),
		accept(),
	}
}

// InnerSNATExpr source-NATs packets leaving veth2 with the guest's address
// to veth2's own address, so the outer namespace sees a routable source.
func InnerSNATExpr(veth2Name string, guestIP, veth2IP netmodel.Inet, family netmodel.Family) []nftjson.Statement {
	proto := family.String()
	return []nftjson.Statement{
		eq(nftjson.Payload(proto, "saddr"), nftjson.Str(guestIP.Addr.String())),
		eq(nftjson.Meta("oifname"), nftjson.Str(veth2Name)),
		{SNAT: &nftjson.NATStatement{Addr: nftjson.Str(veth2IP.Addr.String())}},
	}
}

// InnerDNATExpr destination-NATs packets entering veth2 addressed to the
// forwarded guest IP to the guest's real internal address.
func InnerDNATExpr(veth2Name string, forwardedGuestIP string, guestIP netmodel.Inet, family netmodel.Family) []nftjson.Statement {
	proto := family.String()
	return []nftjson.Statement{
		eq(nftjson.Payload(proto, "daddr"), nftjson.Str(forwardedGuestIP)),
		eq(nftjson.Meta("iifname"), nftjson.Str(veth2Name)),
		{DNAT: &nftjson.NATStatement{Addr: nftjson.Str(guestIP.Addr.String())}},
	}
}
