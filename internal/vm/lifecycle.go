package vm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/rs/zerolog/log"
)

const (
	// shutdownTimeout is how long Destroy waits for graceful shutdown
	// before forcing the domain off.
	shutdownTimeout = 5 * time.Second
)

// Start starts a stopped VM. Starting an already-running VM is a no-op.
func (m *Manager) Start(_ context.Context, name string) error {
	dom, err := m.lv.DomainLookupByName(name)
	if err != nil {
		return fmt.Errorf("VM %q not found: %w", name, err)
	}

	state, _, err := m.lv.DomainGetState(dom, 0)
	if err != nil {
		return fmt.Errorf("failed to get state of %q: %w", name, err)
	}
	if state == domainStateRunning {
		log.Warn().Str("vm", name).Msg("already running")
		return nil
	}

	if err := m.lv.DomainCreate(dom); err != nil {
		return fmt.Errorf("failed to start %q: %w", name, err)
	}

	log.Info().Str("vm", name).Msg("VM started")
	return nil
}

// Shutdown requests a graceful guest shutdown. It does not wait for the
// guest to power off; check with status.
func (m *Manager) Shutdown(_ context.Context, name string) error {
	dom, err := m.lv.DomainLookupByName(name)
	if err != nil {
		return fmt.Errorf("VM %q not found: %w", name, err)
	}

	state, _, err := m.lv.DomainGetState(dom, 0)
	if err != nil {
		return fmt.Errorf("failed to get state of %q: %w", name, err)
	}
	if state != domainStateRunning {
		log.Warn().Str("vm", name).Msg("not running, nothing to shut down")
		return nil
	}

	if err := m.lv.DomainShutdown(dom); err != nil {
		return fmt.Errorf("failed to shut down %q: %w", name, err)
	}

	log.Info().Str("vm", name).Msg("shutdown requested")
	return nil
}

// Destroy removes a VM entirely: graceful shutdown (bounded), force-off if
// needed, undefine, and deletion of the disk and ISO files. A VM that no
// longer has a domain still gets its files removed, so repeated destroys
// converge.
func (m *Manager) Destroy(ctx context.Context, name string) error {
	dom, err := m.lv.DomainLookupByName(name)
	if err != nil {
		log.Warn().Str("vm", name).Msg("domain not found, removing leftover files only")
		if err := m.disks.RemoveArtifacts(name); err != nil {
			return err
		}
		return m.removeCloudInitDir(name)
	}

	state, _, err := m.lv.DomainGetState(dom, 0)
	if err != nil {
		return fmt.Errorf("failed to get state of %q: %w", name, err)
	}

	if state == domainStateRunning {
		m.stopRunning(ctx, name, dom)
	}

	log.Debug().Str("vm", name).Msg("undefining domain")
	if err := m.lv.DomainUndefineFlags(dom, libvirt.DomainUndefineNvram); err != nil {
		return fmt.Errorf("failed to undefine %q: %w", name, err)
	}

	if err := m.disks.RemoveArtifacts(name); err != nil {
		return fmt.Errorf("failed to remove files for %q: %w", name, err)
	}
	if err := m.removeCloudInitDir(name); err != nil {
		return err
	}

	log.Info().Str("vm", name).Msg("VM destroyed")
	return nil
}

// removeCloudInitDir deletes the VM's rendered cloud-init working copy.
// Missing directories are fine; destroy must be idempotent.
func (m *Manager) removeCloudInitDir(name string) error {
	dir := filepath.Join(m.cfg.Host.CloudInitDir, name)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove cloud-init directory %s: %w", dir, err)
	}
	return nil
}

// stopRunning attempts graceful shutdown with a bounded wait, then forces
// the domain off. Never returns an error: destroy proceeds to undefine
// regardless.
func (m *Manager) stopRunning(ctx context.Context, name string, dom libvirt.Domain) {
	log.Debug().Str("vm", name).Msg("attempting graceful shutdown")

	needsForce := false
	if err := m.lv.DomainShutdown(dom); err != nil {
		log.Warn().Err(err).Str("vm", name).Msg("graceful shutdown failed")
		needsForce = true
	} else {
		deadline := m.now().Add(shutdownTimeout)
		for {
			if ctx.Err() != nil || m.now().After(deadline) {
				log.Debug().Str("vm", name).Msg("graceful shutdown timed out")
				needsForce = true
				break
			}
			state, _, err := m.lv.DomainGetState(dom, 0)
			if err != nil {
				log.Warn().Err(err).Str("vm", name).Msg("failed to check shutdown state")
				needsForce = true
				break
			}
			if state == domainStateShutoff {
				log.Debug().Str("vm", name).Msg("shut down gracefully")
				break
			}
			m.sleep(500 * time.Millisecond)
		}
	}

	if needsForce {
		state, _, err := m.lv.DomainGetState(dom, 0)
		if err == nil && state == domainStateRunning {
			log.Debug().Str("vm", name).Msg("force destroying")
			if err := m.lv.DomainDestroy(dom); err != nil {
				log.Warn().Err(err).Str("vm", name).Msg("force destroy failed")
			}
		}
	}
}
