// Package disk manages the per-VM image files under the libvirt image
// directory: a writable qcow2 copy of the distribution base image plus the
// cloud-init ISO.
//
// It shells out to qemu-img rather than using libvirt storage pools; the
// files stay plain filesystem artifacts that can be inspected and removed
// with standard tooling.
package disk

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
)

const (
	// DiskSuffix is appended to the VM name for the root disk file.
	DiskSuffix = ".qcow2"
	// ISOSuffix is appended to the VM name for the cloud-init ISO.
	ISOSuffix = "-cloudinit.iso"

	// FilePermissions are the permissions for VM disk files.
	FilePermissions = 0644
)

// Manager creates and removes the image files for one VM.
type Manager struct {
	imageDir string

	// runQemuImg executes qemu-img with the given arguments. Tests replace
	// it to avoid requiring qemu on the build host.
	runQemuImg func(ctx context.Context, args ...string) ([]byte, error)
}

// NewManager creates a manager rooted at imageDir.
func NewManager(imageDir string) *Manager {
	return &Manager{
		imageDir: imageDir,
		runQemuImg: func(ctx context.Context, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, "qemu-img", args...).CombinedOutput()
		},
	}
}

// DiskPath returns the root disk path for a VM.
func (m *Manager) DiskPath(vmName string) string {
	return filepath.Join(m.imageDir, vmName+DiskSuffix)
}

// ISOPath returns the cloud-init ISO path for a VM.
func (m *Manager) ISOPath(vmName string) string {
	return filepath.Join(m.imageDir, vmName+ISOSuffix)
}

// DiskExists reports whether the VM's root disk file already exists.
func (m *Manager) DiskExists(vmName string) bool {
	_, err := os.Stat(m.DiskPath(vmName))
	return err == nil
}

// CreateDisk produces the VM's root disk: a full qcow2 copy of the base
// image, grown to sizeGB. A full copy (not a backing-file overlay) keeps
// each VM independent of the base image, which may be replaced by a newer
// download while VMs are running.
func (m *Manager) CreateDisk(ctx context.Context, vmName, baseImage string, sizeGB int) error {
	if baseImage == "" {
		return fmt.Errorf("base image path is required")
	}
	diskPath := m.DiskPath(vmName)

	out, err := m.runQemuImg(ctx, "convert", "-O", "qcow2", baseImage, diskPath)
	if err != nil {
		return fmt.Errorf("failed to copy base image to %s: %w\nOutput: %s", diskPath, err, string(out))
	}

	if sizeGB > 0 {
		out, err := m.runQemuImg(ctx, "resize", diskPath, fmt.Sprintf("%dG", sizeGB))
		if err != nil {
			return fmt.Errorf("failed to resize disk %s: %w\nOutput: %s", diskPath, err, string(out))
		}
	}

	m.setQEMUOwnership(diskPath)
	return nil
}

// WriteISO writes the cloud-init ISO next to the VM's root disk.
func (m *Manager) WriteISO(vmName string, isoData []byte) (string, error) {
	if len(isoData) == 0 {
		return "", fmt.Errorf("ISO data cannot be empty")
	}

	isoPath := m.ISOPath(vmName)
	if err := os.WriteFile(isoPath, isoData, FilePermissions); err != nil {
		return "", fmt.Errorf("failed to write cloud-init ISO %s: %w", isoPath, err)
	}

	m.setQEMUOwnership(isoPath)
	return isoPath, nil
}

// RemoveArtifacts deletes the VM's disk and ISO files. Missing files are
// not an error; destroy must be idempotent.
func (m *Manager) RemoveArtifacts(vmName string) error {
	for _, path := range []string{m.DiskPath(vmName), m.ISOPath(vmName)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}

// CheckDiskSpace verifies the image directory has room for sizeGB more.
func (m *Manager) CheckDiskSpace(sizeGB int) error {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(m.imageDir, &stat); err != nil {
		return fmt.Errorf("failed to get filesystem stats for %s: %w", m.imageDir, err)
	}

	availableGB := (stat.Bavail * uint64(stat.Bsize)) / (1024 * 1024 * 1024)
	if uint64(sizeGB) > availableGB {
		return fmt.Errorf("insufficient disk space in %s: need %dGB, have %dGB available",
			m.imageDir, sizeGB, availableGB)
	}

	return nil
}

// setQEMUOwnership chowns a file to the qemu process user so the guest can
// open it. Best effort: when the tool runs unprivileged in a user-writable
// image directory the chown fails and the file is usable as-is.
func (m *Manager) setQEMUOwnership(path string) {
	uid, gid := qemuUserGroup()
	u, err1 := strconv.Atoi(uid)
	g, err2 := strconv.Atoi(gid)
	if err1 != nil || err2 != nil {
		return
	}
	_ = os.Chown(path, u, g)
}
