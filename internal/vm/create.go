package vm

import (
	"context"
	"fmt"
	"strings"

	"github.com/digitalocean/go-libvirt"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/cofront/conductor/internal/cloudinit"
	conductorlibvirt "github.com/cofront/conductor/internal/libvirt"
	"github.com/cofront/conductor/internal/metadata"
	"github.com/cofront/conductor/internal/naming"
	"github.com/cofront/conductor/internal/osprofile"
	"github.com/cofront/conductor/internal/spec"
)

// CreateOptions controls a batch create.
type CreateOptions struct {
	Count     int
	MemoryMiB uint
	VCPUs     uint
}

// FailedVM records one VM whose provisioning failed. The rest of the batch
// continues regardless.
type FailedVM struct {
	Name string
	Err  error
}

// BatchResult reports the outcome of a batch create.
type BatchResult struct {
	Created []string
	Skipped []string
	Failed  []FailedVM
}

// Names returns all names the batch touched (created or already existing),
// in creation order. This is what gets recorded in the inventory.
func (r *BatchResult) Names() []string {
	names := make([]string, 0, len(r.Created)+len(r.Skipped))
	names = append(names, r.Created...)
	names = append(names, r.Skipped...)
	return names
}

// CreateBatch provisions count VMs per spec, in spec order, sequentially.
//
// Before touching anything it verifies every requested base image exists;
// if any are missing the whole batch is refused and the error lists all of
// them, so the operator fixes the image directory once instead of
// discovering gaps one VM at a time.
//
// A name that already exists as a domain is skipped with a warning, not an
// error: re-running create after a partial failure is the expected recovery
// path. Individual provisioning failures are collected and the batch moves
// on to the next VM.
func (m *Manager) CreateBatch(ctx context.Context, specs []spec.Spec, opts CreateOptions) (*BatchResult, error) {
	if opts.Count < 1 {
		opts.Count = 1
	}

	missing, err := m.locator.CheckAll(specs)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		descs := make([]string, 0, len(missing))
		for _, s := range missing {
			path, _ := m.locator.ResolvePath(s.Distro, s.Version)
			descs = append(descs, fmt.Sprintf("%s (%s)", s.String(), path))
		}
		return nil, fmt.Errorf("missing base images: %s", strings.Join(descs, ", "))
	}

	pubKey, err := m.cfg.ReadPublicKey()
	if err != nil {
		return nil, fmt.Errorf("SSH public key required for VM access: %w", err)
	}

	result := &BatchResult{}
	for _, s := range specs {
		for i := 1; i <= opts.Count; i++ {
			name := naming.DomainName(m.cfg.VMs.NamePrefix, s, i)

			if _, err := m.lv.DomainLookupByName(name); err == nil {
				log.Warn().Str("vm", name).Msg("domain already exists, skipping")
				result.Skipped = append(result.Skipped, name)
				continue
			}

			if err := m.provisionOne(ctx, name, s, pubKey, opts); err != nil {
				log.Error().Err(err).Str("vm", name).Msg("provisioning failed")
				result.Failed = append(result.Failed, FailedVM{Name: name, Err: err})
				continue
			}

			log.Info().Str("vm", name).Msg("VM created")
			result.Created = append(result.Created, name)
		}
	}

	return result, nil
}

// provisionOne creates a single VM. On any failure it tears down whatever
// it already built: a half-provisioned VM would block the idempotency check
// on the next run.
func (m *Manager) provisionOne(ctx context.Context, name string, s spec.Spec, pubKey string, opts CreateOptions) error {
	var domainDefined bool

	var provErr error
	defer func() {
		if provErr != nil {
			m.cleanupFailed(name, domainDefined)
		}
	}()

	if provErr = m.disks.CheckDiskSpace(m.cfg.VMs.DiskSizeGB); provErr != nil {
		return fmt.Errorf("disk space check failed: %w", provErr)
	}

	basePath, provErr := m.locator.ResolvePath(s.Distro, s.Version)
	if provErr != nil {
		return provErr
	}

	log.Debug().Str("vm", name).Msg("rendering cloud-init documents")
	rendered, provErr := m.gen.Render(cloudinit.Input{
		Name:         name,
		Distro:       s.Distro,
		Version:      s.Version,
		SSHPublicKey: pubKey,
	})
	if provErr != nil {
		return fmt.Errorf("failed to render cloud-init: %w", provErr)
	}

	// Working copy kept for debugging; the guest boots from the ISO.
	if _, provErr = rendered.WriteTo(m.cfg.Host.CloudInitDir, name); provErr != nil {
		return provErr
	}

	isoData, provErr := cloudinit.BuildISO(rendered)
	if provErr != nil {
		return fmt.Errorf("failed to build cloud-init ISO: %w", provErr)
	}

	log.Debug().Str("vm", name).Str("base", basePath).Msg("creating root disk")
	if provErr = m.disks.CreateDisk(ctx, name, basePath, m.cfg.VMs.DiskSizeGB); provErr != nil {
		return provErr
	}

	isoPath, provErr := m.disks.WriteISO(name, isoData)
	if provErr != nil {
		return provErr
	}

	domainXML, provErr := conductorlibvirt.GenerateDomainXML(conductorlibvirt.DomainSpec{
		Name:      name,
		MemoryMiB: opts.MemoryMiB,
		VCPUs:     opts.VCPUs,
		OSVariant: osprofile.Variant(s.Distro, s.Version),
		DiskPath:  m.disks.DiskPath(name),
		ISOPath:   isoPath,
	})
	if provErr != nil {
		return provErr
	}

	log.Debug().Str("vm", name).Msg("defining domain")
	dom, provErr := m.lv.DomainDefineXML(domainXML)
	if provErr != nil {
		return fmt.Errorf("failed to define domain: %w", provErr)
	}
	domainDefined = true

	rec := metadata.Record{
		Name:      name,
		Distro:    s.Distro,
		Version:   s.Version,
		UUID:      uuid.NewString(),
		CreatedAt: m.now().UTC(),
	}
	if provErr = metadata.Store(m.lv, dom, rec); provErr != nil {
		return provErr
	}

	log.Debug().Str("vm", name).Msg("starting domain")
	if provErr = m.lv.DomainCreate(dom); provErr != nil {
		return fmt.Errorf("failed to start domain: %w", provErr)
	}

	return nil
}

// cleanupFailed removes the remnants of a failed provisioning attempt.
// Best effort: errors are logged and swallowed.
func (m *Manager) cleanupFailed(name string, domainDefined bool) {
	log.Warn().Str("vm", name).Msg("cleaning up after failed provisioning")

	if domainDefined {
		if dom, err := m.lv.DomainLookupByName(name); err == nil {
			// Domain might not be running; ignore destroy errors.
			_ = m.lv.DomainDestroy(dom)
			if err := m.lv.DomainUndefineFlags(dom, libvirt.DomainUndefineNvram); err != nil {
				log.Warn().Err(err).Str("vm", name).Msg("failed to undefine domain during cleanup")
			}
		}
	}

	if err := m.disks.RemoveArtifacts(name); err != nil {
		log.Warn().Err(err).Str("vm", name).Msg("failed to remove disk artifacts during cleanup")
	}
	if err := m.removeCloudInitDir(name); err != nil {
		log.Warn().Err(err).Str("vm", name).Msg("failed to remove cloud-init directory during cleanup")
	}
}
