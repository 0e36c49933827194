// Package snail triggers on-demand runs of the snail-core agent inside
// guests over SSH. The periodic systemd timer inside each VM does the
// routine collection; this package exists for "collect now and upload
// there" invocations against a specific VM.
package snail

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"

	"github.com/cofront/conductor/internal/agent"
	"github.com/cofront/conductor/internal/cloudinit"
	"github.com/cofront/conductor/internal/config"
)

const (
	sshPort        = "22"
	connectTimeout = 10 * time.Second
)

// ErrAgentUnavailable indicates the guest skipped its agent install (the
// Python preflight failed at first boot), so there is nothing to run.
var ErrAgentUnavailable = fmt.Errorf("agent install was skipped on this guest")

// Runner executes agent commands on guests over SSH.
type Runner struct {
	cfg *config.Config

	// exec runs one shell command on addr and returns combined output.
	// Tests replace it; the default dials SSH per command, which is fine
	// for the handful of commands a run needs.
	exec func(ctx context.Context, addr, cmd string) (string, error)

	// bridgeIPv4 resolves the host's libvirt bridge address for upload
	// URL rewriting.
	bridgeIPv4 func() string
}

// NewRunner creates a runner authenticating as the configured VM user.
func NewRunner(cfg *config.Config) *Runner {
	r := &Runner{cfg: cfg, bridgeIPv4: hostBridgeIPv4}
	r.exec = r.sshExec
	return r
}

// WaitSSH blocks until the guest accepts an SSH command or the timeout
// elapses. cloud-init enables SSH early, so this is usually short.
func (r *Runner) WaitSSH(ctx context.Context, ip string, timeout, interval time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if _, err := r.exec(ctx, ip, "true"); err == nil {
			return nil
		} else if ctx.Err() != nil {
			return ctx.Err()
		} else if time.Now().After(deadline) {
			return fmt.Errorf("SSH to %s not available after %s: %w", ip, timeout, err)
		}
		time.Sleep(interval)
	}
}

// WaitProvisioned blocks until the guest has finished its boot sequence,
// indicated by the completion sentinel cloud-init writes as its last step.
func (r *Runner) WaitProvisioned(ctx context.Context, ip string, timeout, interval time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if _, err := r.exec(ctx, ip, "test -e "+cloudinit.CompleteSentinel); err == nil {
			return nil
		} else if ctx.Err() != nil {
			return ctx.Err()
		} else if time.Now().After(deadline) {
			return fmt.Errorf("guest %s not provisioned after %s", ip, timeout)
		}
		time.Sleep(interval)
	}
}

// ProvisionStatus reports where a guest is in its first-boot sequence,
// read from the sentinel files cloud-init writes.
type ProvisionStatus struct {
	// Complete is set once the full provisioning sequence has finished.
	Complete bool
	// AgentSkipped is set when the agent install was skipped (Python too
	// old); the guest is otherwise usable.
	AgentSkipped bool
}

// CheckProvisioned reads the guest's provisioning sentinels over SSH.
// An error means the guest could not be queried, not that provisioning
// failed.
func (r *Runner) CheckProvisioned(ctx context.Context, ip string) (ProvisionStatus, error) {
	var status ProvisionStatus
	var err error

	status.Complete, err = r.sentinelExists(ctx, ip, cloudinit.CompleteSentinel)
	if err != nil {
		return ProvisionStatus{}, err
	}
	status.AgentSkipped, err = r.sentinelExists(ctx, ip, cloudinit.AgentFailedSentinel)
	if err != nil {
		return ProvisionStatus{}, err
	}
	return status, nil
}

// sentinelExists checks for a file on the guest. The remote command always
// exits zero so a command error can only mean an SSH failure.
func (r *Runner) sentinelExists(ctx context.Context, ip, path string) (bool, error) {
	out, err := r.exec(ctx, ip, fmt.Sprintf("test -e %s && echo found || echo missing", path))
	if err != nil {
		return false, fmt.Errorf("failed to query %s on %s: %w", path, ip, err)
	}
	return strings.Contains(out, "found"), nil
}

// Run executes one agent collection on the guest. uploadURL overrides the
// configured endpoint for this run; localhost URLs are rewritten to the
// host's bridge address so the guest can actually reach the endpoint.
// Returns the agent's combined output.
func (r *Runner) Run(ctx context.Context, ip, uploadURL string) (string, error) {
	// A guest that failed the Python preflight never installed the agent.
	if _, err := r.exec(ctx, ip, "test -e "+cloudinit.AgentFailedSentinel); err == nil {
		return "", ErrAgentUnavailable
	}

	if uploadURL != "" {
		rewritten, err := r.RewriteUploadURL(uploadURL)
		if err != nil {
			return "", err
		}
		if rewritten != uploadURL {
			log.Debug().Str("from", uploadURL).Str("to", rewritten).Msg("rewrote upload URL for guest")
		}
		uploadURL = rewritten
	}

	cmd := "sudo " + agent.RunCommand(uploadURL)
	log.Info().Str("ip", ip).Msg("running agent collection")

	out, err := r.exec(ctx, ip, cmd)
	if err != nil {
		return out, fmt.Errorf("agent run on %s failed: %w", ip, err)
	}
	return out, nil
}

// RewriteUploadURL replaces a localhost host part with the host's libvirt
// bridge address. From inside the guest, "localhost" is the guest itself;
// an upload endpoint running on the workstation is reachable only via the
// NAT bridge.
func (r *Runner) RewriteUploadURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid upload URL %q: %w", raw, err)
	}

	host := u.Hostname()
	if host != "localhost" && host != "127.0.0.1" {
		return raw, nil
	}

	bridge := r.bridgeIPv4()
	if port := u.Port(); port != "" {
		u.Host = net.JoinHostPort(bridge, port)
	} else {
		u.Host = bridge
	}
	return u.String(), nil
}

// sshExec dials the guest and runs a single command.
func (r *Runner) sshExec(ctx context.Context, addr, cmd string) (string, error) {
	clientConfig, err := r.clientConfig()
	if err != nil {
		return "", err
	}

	dialer := net.Dialer{Timeout: connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(addr, sshPort))
	if err != nil {
		return "", fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		_ = conn.Close()
		return "", fmt.Errorf("SSH handshake with %s failed: %w", addr, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer func() {
		_ = client.Close()
	}()

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to open SSH session: %w", err)
	}
	defer func() {
		_ = session.Close()
	}()

	out, err := session.CombinedOutput(cmd)
	return string(out), err
}

// clientConfig builds the SSH client configuration: key auth from the
// configured private key when present, password auth as fallback. Host keys
// are not verified; the guests are disposable and freshly keyed each boot.
func (r *Runner) clientConfig() (*ssh.ClientConfig, error) {
	var methods []ssh.AuthMethod

	keyData, err := os.ReadFile(r.cfg.VMs.SSHKeyPath)
	if err == nil {
		signer, err := ssh.ParsePrivateKey(keyData)
		if err != nil {
			return nil, fmt.Errorf("failed to parse SSH key %s: %w", r.cfg.VMs.SSHKeyPath, err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if r.cfg.VMs.Password != "" {
		methods = append(methods, ssh.Password(r.cfg.VMs.Password))
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("no SSH auth available: key %s unreadable and no password configured", r.cfg.VMs.SSHKeyPath)
	}

	return &ssh.ClientConfig{
		User:            r.cfg.VMs.Username,
		Auth:            methods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         connectTimeout,
	}, nil
}

// hostBridgeIPv4 returns the host's address on the libvirt NAT bridge, or
// the stock libvirt default when the bridge cannot be inspected.
func hostBridgeIPv4() string {
	const fallback = "192.168.122.1"

	iface, err := net.InterfaceByName("virbr0")
	if err != nil {
		return fallback
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return fallback
	}
	for _, a := range addrs {
		if ipNet, ok := a.(*net.IPNet); ok {
			if v4 := ipNet.IP.To4(); v4 != nil {
				return v4.String()
			}
		}
	}
	return fallback
}
