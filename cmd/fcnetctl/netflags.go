package main

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"github.com/fcnet/fcnet/internal/netmodel"
)

// netFlags collects the flags shared by add/check/delete: which topology to
// run, and every field netmodel.Network/NamespacedNetwork needs. Namespaced
// fields are ignored for --topology simple.
type netFlags struct {
	topology string

	ifaceName string
	tapName   string
	tapIP     string
	guestIP   string

	netnsName        string
	veth1Name        string
	veth2Name        string
	veth1IP          string
	veth2IP          string
	forwardedGuestIP string
}

func (f *netFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.topology, "topology", "simple", "simple|namespaced")
	cmd.Flags().StringVar(&f.ifaceName, "iface-name", "", "host's outbound interface")
	cmd.Flags().StringVar(&f.tapName, "tap-name", "", "TAP device name")
	cmd.Flags().StringVar(&f.tapIP, "tap-ip", "", "TAP device address, CIDR notation")
	cmd.Flags().StringVar(&f.guestIP, "guest-ip", "", "guest-visible address, CIDR notation")

	cmd.Flags().StringVar(&f.netnsName, "netns-name", "", "namespaced: target network namespace name")
	cmd.Flags().StringVar(&f.veth1Name, "veth1-name", "", "namespaced: outer veth end name")
	cmd.Flags().StringVar(&f.veth2Name, "veth2-name", "", "namespaced: inner veth end name")
	cmd.Flags().StringVar(&f.veth1IP, "veth1-ip", "", "namespaced: outer veth address, CIDR notation")
	cmd.Flags().StringVar(&f.veth2IP, "veth2-ip", "", "namespaced: inner veth address, CIDR notation")
	cmd.Flags().StringVar(&f.forwardedGuestIP, "forwarded-guest-ip", "", "namespaced: externally-reachable address DNATed to guest-ip")
}

func (f *netFlags) network(nftProgram string) (netmodel.Network, error) {
	tapIP, err := netmodel.ParseInet(f.tapIP)
	if err != nil {
		return netmodel.Network{}, err
	}
	guestIP, err := netmodel.ParseInet(f.guestIP)
	if err != nil {
		return netmodel.Network{}, err
	}
	return netmodel.Network{
		IfaceName:  f.ifaceName,
		TapName:    f.tapName,
		TapIP:      tapIP,
		GuestIP:    guestIP,
		NftProgram: nftProgram,
	}, nil
}

func (f *netFlags) namespacedNetwork(nftProgram string) (netmodel.NamespacedNetwork, error) {
	base, err := f.network(nftProgram)
	if err != nil {
		return netmodel.NamespacedNetwork{}, err
	}
	veth1IP, err := netmodel.ParseInet(f.veth1IP)
	if err != nil {
		return netmodel.NamespacedNetwork{}, err
	}
	veth2IP, err := netmodel.ParseInet(f.veth2IP)
	if err != nil {
		return netmodel.NamespacedNetwork{}, err
	}

	n := netmodel.NamespacedNetwork{
		Network:   base,
		NetnsName: f.netnsName,
		Veth1Name: f.veth1Name,
		Veth2Name: f.veth2Name,
		Veth1IP:   veth1IP,
		Veth2IP:   veth2IP,
	}
	if f.forwardedGuestIP != "" {
		ip := net.ParseIP(f.forwardedGuestIP)
		if ip == nil {
			return netmodel.NamespacedNetwork{}, fmt.Errorf("invalid --forwarded-guest-ip %q", f.forwardedGuestIP)
		}
		n.ForwardedGuestIP = &ip
	}
	return n, nil
}
