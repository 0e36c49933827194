package vm

import (
	"fmt"
	"time"

	"github.com/cofront/conductor/internal/cloudinit"
	"github.com/cofront/conductor/internal/config"
	"github.com/cofront/conductor/internal/disk"
	"github.com/cofront/conductor/internal/image"
)

const (
	// Domain states (from libvirt VIR_DOMAIN_* constants)
	domainStateRunning = 1
	domainStateShutoff = 5

	// VIR_DOMAIN_INTERFACE_ADDRESSES_SRC_LEASE: addresses come from the
	// NAT network's DHCP leases, which works without a guest agent.
	addrSourceLease = 0

	// VIR_IP_ADDR_TYPE_IPV4
	ipAddrTypeIPv4 = 0
)

// Manager orchestrates VM lifecycle operations against libvirt. One Manager
// serves one configuration; commands construct it, act, and exit.
type Manager struct {
	cfg     *config.Config
	lv      libvirtClient
	disks   diskManager
	gen     *cloudinit.Generator
	locator *image.Locator

	// sleep is replaceable so poller tests run without waiting.
	sleep func(time.Duration)
	now   func() time.Time
}

// NewManager creates a manager using the real disk, cloud-init, and image
// components derived from the configuration.
func NewManager(cfg *config.Config, lv libvirtClient) *Manager {
	return newManagerWithDeps(cfg, lv, disk.NewManager(cfg.Host.ImageDir))
}

// newManagerWithDeps accepts interfaces for testing.
func newManagerWithDeps(cfg *config.Config, lv libvirtClient, disks diskManager) *Manager {
	return &Manager{
		cfg:     cfg,
		lv:      lv,
		disks:   disks,
		gen:     cloudinit.NewGenerator(cfg),
		locator: image.NewLocator(cfg.Host.ImageDir),
		sleep:   time.Sleep,
		now:     time.Now,
	}
}

// stateToString converts libvirt domain state to human-readable string.
func stateToString(state int32) string {
	switch state {
	case 0:
		return "no state"
	case 1:
		return "running"
	case 2:
		return "blocked"
	case 3:
		return "paused"
	case 4:
		return "shutdown"
	case 5:
		return "shutoff"
	case 6:
		return "crashed"
	case 7:
		return "pmsuspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}
