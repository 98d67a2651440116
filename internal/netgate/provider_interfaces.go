package netgate

import (
	"context"
	"fmt"
	"net/netip"
	"slices"
	"strings"

	psnet "github.com/shirou/gopsutil/net"
)

type interfaceLister func(ctx context.Context) ([]psnet.InterfaceStat, error)

// InterfaceProvider derives the network type from the host's interfaces.
// Ethernet beats wifi beats cellular when several links are up.
type InterfaceProvider struct {
	offroadPath string
	list        interfaceLister
}

// NewInterfaceProvider returns a provider that inspects live interfaces.
func NewInterfaceProvider(offroadPath string) *InterfaceProvider {
	return &InterfaceProvider{offroadPath: offroadPath, list: listInterfaces}
}

func (p *InterfaceProvider) State(ctx context.Context) (State, error) {
	state := State{Network: NetworkNone, Offroad: readFlag(p.offroadPath)}

	ifaces, err := p.list(ctx)
	if err != nil {
		return state, fmt.Errorf("list interfaces: %w", err)
	}

	best := NetworkNone
	for _, iface := range ifaces {
		if !usable(iface) {
			continue
		}
		kind := classifyInterface(iface.Name)
		if networkPreference(kind) > networkPreference(best) {
			best = kind
		}
	}
	state.Network = best
	state.Metered = best == NetworkCellular
	return state, nil
}

func usable(iface psnet.InterfaceStat) bool {
	if !slices.Contains(iface.Flags, "up") || slices.Contains(iface.Flags, "loopback") {
		return false
	}
	for _, addr := range iface.Addrs {
		prefix, err := netip.ParsePrefix(addr.Addr)
		if err != nil {
			continue
		}
		ip := prefix.Addr()
		if ip.IsLoopback() || ip.IsLinkLocalUnicast() {
			continue
		}
		return true
	}
	return false
}

func classifyInterface(name string) NetworkType {
	switch {
	case strings.HasPrefix(name, "wl"):
		return NetworkWifi
	case strings.HasPrefix(name, "eth"), strings.HasPrefix(name, "en"):
		return NetworkEthernet
	case strings.HasPrefix(name, "wwan"), strings.HasPrefix(name, "rmnet"), strings.HasPrefix(name, "usb"):
		return NetworkCellular
	default:
		return NetworkNone
	}
}

func networkPreference(t NetworkType) int {
	switch t {
	case NetworkEthernet:
		return 3
	case NetworkWifi:
		return 2
	case NetworkCellular:
		return 1
	default:
		return 0
	}
}

func listInterfaces(ctx context.Context) ([]psnet.InterfaceStat, error) {
	return psnet.InterfacesWithContext(ctx)
}
