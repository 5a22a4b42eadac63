package netmodel

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInetKeepsHostBits(t *testing.T) {
	in, err := ParseInet("172.16.0.5/30")
	require.NoError(t, err)
	assert.Equal(t, "172.16.0.5", in.Addr.String())
	assert.Equal(t, 30, in.PrefixLength)
	assert.Equal(t, FamilyIPv4, in.Family())
}

func TestNetworkValidate(t *testing.T) {
	tapIP, _ := ParseInet("172.16.0.1/30")
	guestIPv4, _ := ParseInet("172.16.0.2/30")
	guestIPv6, _ := ParseInet("fd00::2/126")

	tests := []struct {
		name    string
		n       Network
		wantErr bool
	}{
		{
			name: "valid",
			n:    Network{IfaceName: "eth0", TapName: "tap0", TapIP: tapIP, GuestIP: guestIPv4},
		},
		{
			name:    "missing iface_name",
			n:       Network{TapName: "tap0", TapIP: tapIP, GuestIP: guestIPv4},
			wantErr: true,
		},
		{
			name:    "missing tap_name",
			n:       Network{IfaceName: "eth0", TapIP: tapIP, GuestIP: guestIPv4},
			wantErr: true,
		},
		{
			name:    "mixed families between tap_ip and guest_ip",
			n:       Network{IfaceName: "eth0", TapName: "tap0", TapIP: tapIP, GuestIP: guestIPv6},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.n.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNamespacedNetworkValidate(t *testing.T) {
	base := func() Network {
		tapIP, _ := ParseInet("172.16.0.1/30")
		guestIP, _ := ParseInet("172.16.0.2/30")
		return Network{IfaceName: "eth0", TapName: "tap0", TapIP: tapIP, GuestIP: guestIP}
	}
	veth1IP, _ := ParseInet("10.0.0.1/30")
	veth2IP, _ := ParseInet("10.0.0.2/30")
	veth2IPv6, _ := ParseInet("fd00::2/126")

	valid := NamespacedNetwork{
		Network:   base(),
		NetnsName: "fc-1",
		Veth1Name: "veth1",
		Veth2Name: "veth2",
		Veth1IP:   veth1IP,
		Veth2IP:   veth2IP,
	}
	assert.NoError(t, valid.Validate())

	missingNetns := valid
	missingNetns.NetnsName = ""
	assert.Error(t, missingNetns.Validate())

	mixedVethFamily := valid
	mixedVethFamily.Veth2IP = veth2IPv6
	assert.Error(t, mixedVethFamily.Validate())

	mismatchedForwarded := valid
	fwd := net.ParseIP("fd00::1")
	mismatchedForwarded.ForwardedGuestIP = &fwd
	assert.Error(t, mismatchedForwarded.Validate(), "forwarded_guest_ip must match the topology's address family")

	matchedForwarded := valid
	fwdV4 := net.ParseIP("203.0.113.5")
	matchedForwarded.ForwardedGuestIP = &fwdV4
	assert.NoError(t, matchedForwarded.Validate())
}
