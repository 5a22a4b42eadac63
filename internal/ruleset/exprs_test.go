package ruleset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fcnet/fcnet/internal/netmodel"
	"github.com/fcnet/fcnet/internal/nftjson"
)

func TestMasqExprMatchesGuestSourceAndOutboundIface(t *testing.T) {
	tapIP, _ := netmodel.ParseInet("172.16.0.1/30")
	guestIP, _ := netmodel.ParseInet("172.16.0.2/30")
	n := netmodel.Network{IfaceName: "eth0", TapName: "tap0", TapIP: tapIP, GuestIP: guestIP}

	expr := MasqExpr(n)
	require.Len(t, expr, 3)
	assert.Equal(t, nftjson.Payload("ip", "saddr"), expr[0].Match.Left)
	assert.Equal(t, nftjson.Str("172.16.0.2"), expr[0].Match.Right)
	assert.Equal(t, nftjson.Meta("oifname"), expr[1].Match.Left)
	assert.Equal(t, nftjson.Str("eth0"), expr[1].Match.Right)
	assert.NotNil(t, expr[2].Masquerade)
}

func TestForwardExprAcceptsTapToIface(t *testing.T) {
	tapIP, _ := netmodel.ParseInet("172.16.0.1/30")
	guestIP, _ := netmodel.ParseInet("172.16.0.2/30")
	n := netmodel.Network{IfaceName: "eth0", TapName: "tap0", TapIP: tapIP, GuestIP: guestIP}

	expr := ForwardExpr(n)
	require.Len(t, expr, 3)
	assert.Equal(t, nftjson.Str("tap0"), expr[0].Match.Right)
	assert.Equal(t, nftjson.Str("eth0"), expr[1].Match.Right)
	assert.NotNil(t, expr[2].Accept)
}

func TestInnerSNATAndDNATExpr(t *testing.T) {
	guestIP, _ := netmodel.ParseInet("192.168.241.3/29")
	veth2IP, _ := netmodel.ParseInet("10.0.0.2/30")

	snat := InnerSNATExpr("veth2", guestIP, veth2IP, netmodel.FamilyIPv4)
	require.Len(t, snat, 3)
	require.NotNil(t, snat[2].SNAT)
	assert.Equal(t, nftjson.Str("10.0.0.2"), snat[2].SNAT.Addr)

	dnat := InnerDNATExpr("veth2", "203.0.113.5", guestIP, netmodel.FamilyIPv4)
	require.Len(t, dnat, 3)
	require.NotNil(t, dnat[2].DNAT)
	assert.Equal(t, nftjson.Str("192.168.241.3"), dnat[2].DNAT.Addr)
	assert.Equal(t, nftjson.Str("203.0.113.5"), dnat[0].Match.Right)
}
