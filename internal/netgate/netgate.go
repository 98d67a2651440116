package netgate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"courier/internal/config"
)

// NetworkType is the class of the active uplink.
type NetworkType string

const (
	NetworkNone     NetworkType = "none"
	NetworkCellular NetworkType = "cellular"
	NetworkWifi     NetworkType = "wifi"
	NetworkEthernet NetworkType = "ethernet"
)

// ParseNetworkType maps a configured or reported name onto a NetworkType.
// Unknown names are an error; the empty string is NetworkNone.
func ParseNetworkType(raw string) (NetworkType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "none":
		return NetworkNone, nil
	case "cellular", "cell", "lte":
		return NetworkCellular, nil
	case "wifi", "wlan":
		return NetworkWifi, nil
	case "ethernet", "eth":
		return NetworkEthernet, nil
	default:
		return NetworkNone, fmt.Errorf("unknown network type %q", raw)
	}
}

// State is one observation of the device.
type State struct {
	Network NetworkType
	Metered bool
	Offroad bool
}

// Provider supplies the current device state. Implementations must return
// promptly; the loop calls State once per iteration.
type Provider interface {
	State(ctx context.Context) (State, error)
}

// Decision is the gate's verdict for one iteration.
type Decision struct {
	Proceed           bool
	AllowFullFidelity bool
	// Sleep is how long the loop idles when it is gated or finds nothing to
	// upload. Zero means do not sleep.
	Sleep time.Duration
	// Network is the effective network type after any forced override.
	Network NetworkType
}

// Gate applies the uploader's network policy to a State.
type Gate struct {
	force                 NetworkType
	allowSleep            bool
	allowFullFidelity     bool
	fullFidelityOnMetered bool
	offroadSleep          time.Duration
	onroadSleep           time.Duration
}

// NewGate builds a gate from the uploader configuration.
func NewGate(cfg config.Uploader) (*Gate, error) {
	g := &Gate{
		allowSleep:            cfg.AllowSleep,
		allowFullFidelity:     cfg.AllowFullFidelity,
		fullFidelityOnMetered: cfg.FullFidelityOnMetered,
		offroadSleep:          time.Duration(cfg.OffroadSleepSeconds) * time.Second,
		onroadSleep:           time.Duration(cfg.OnroadSleepSeconds) * time.Second,
	}
	if strings.TrimSpace(cfg.ForceNetworkType) != "" {
		forced, err := ParseNetworkType(cfg.ForceNetworkType)
		if err != nil {
			return nil, fmt.Errorf("force_network_type: %w", err)
		}
		g.force = forced
	}
	return g, nil
}

// Decide returns the decision for state. A forced network type replaces the
// reported one; forcing cellular also forces metered, forcing anything else
// clears it.
func (g *Gate) Decide(state State) Decision {
	network := state.Network
	metered := state.Metered
	if g.force != "" {
		network = g.force
		metered = g.force == NetworkCellular
	}
	if network == "" {
		network = NetworkNone
	}

	d := Decision{Network: network}
	if g.allowSleep {
		if state.Offroad {
			d.Sleep = g.offroadSleep
		} else {
			d.Sleep = g.onroadSleep
		}
	}
	if network == NetworkNone {
		return d
	}
	d.Proceed = true
	d.AllowFullFidelity = g.allowFullFidelity && (!metered || g.fullFidelityOnMetered)
	return d
}

// Static is a Provider that always reports the same state.
type Static struct {
	Value State
	Err   error
}

func (s Static) State(context.Context) (State, error) {
	return s.Value, s.Err
}

// NewProvider selects the provider named by device.state_source.
func NewProvider(cfg config.Device) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StateSource)) {
	case "", SourceFile:
		return NewFileProvider(cfg.StatePath, cfg.OffroadPath), nil
	case SourceInterfaces:
		return NewInterfaceProvider(cfg.OffroadPath), nil
	default:
		return nil, fmt.Errorf("unknown device state source %q", cfg.StateSource)
	}
}

const (
	SourceFile       = "file"
	SourceInterfaces = "interfaces"
)
