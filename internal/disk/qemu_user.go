package disk

import (
	"bufio"
	"io"
	"os"
	"os/user"
	"strings"
	"sync"
)

// qemuConfPath is the libvirt QEMU driver configuration, which may name the
// user the emulator runs as. Variable so tests can point it elsewhere.
var qemuConfPath = "/etc/libvirt/qemu.conf"

var (
	qemuUID  string
	qemuGID  string
	qemuOnce sync.Once
)

// qemuUserGroup returns the UID and GID the QEMU process runs as, so disks
// created by conductor can be chowned for the emulator. Resolution order:
// the user/group configured in qemu.conf, then the common distro usernames,
// then the Fedora/RHEL default UID 107. Resolution always succeeds; the
// result is cached.
func qemuUserGroup() (uid, gid string) {
	qemuOnce.Do(func() {
		qemuUID, qemuGID = resolveQEMUUserGroup()
	})
	return qemuUID, qemuGID
}

func resolveQEMUUserGroup() (uid, gid string) {
	username, groupname := configuredQEMUUser()

	if username != "" {
		if u, err := user.Lookup(username); err == nil {
			gid := u.Gid
			if groupname != "" {
				if g, err := user.LookupGroup(groupname); err == nil {
					gid = g.Gid
				}
			}
			return u.Uid, gid
		}
	}

	for _, name := range []string{"qemu", "libvirt-qemu"} {
		if u, err := user.Lookup(name); err == nil {
			return u.Uid, u.Gid
		}
	}

	// Fedora/RHEL assign qemu UID/GID 107 by default.
	return "107", "107"
}

// configuredQEMUUser extracts the user and group settings from qemu.conf.
// Returns empty strings when the file is absent or the settings are not set.
func configuredQEMUUser() (username, groupname string) {
	file, err := os.Open(qemuConfPath)
	if err != nil {
		return "", ""
	}
	defer func() {
		_ = file.Close()
	}()

	return parseQEMUConf(file)
}

// parseQEMUConf scans qemu.conf content for the user and group settings.
// Values may be bare or quoted; comments and unrelated keys are ignored.
func parseQEMUConf(r io.Reader) (username, groupname string) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), "\"'")

		switch strings.TrimSpace(key) {
		case "user":
			username = value
		case "group":
			groupname = value
		}
	}
	return username, groupname
}
