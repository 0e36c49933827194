// Package cloudinit renders the NoCloud meta-data and user-data documents
// for conductor test VMs and packages them into the CIDATA ISO consumed at
// first boot.
//
// See https://cloudinit.readthedocs.io/en/latest/reference/datasources/nocloud.html
package cloudinit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cofront/conductor/internal/agent"
	"github.com/cofront/conductor/internal/config"
	"github.com/cofront/conductor/internal/osprofile"
)

// UserData is the cloud-config document structure.
type UserData struct {
	Users      []User      `yaml:"users"`
	Chpasswd   *Chpasswd   `yaml:"chpasswd,omitempty"`
	SSHPwAuth  bool        `yaml:"ssh_pwauth"`
	Packages   []string    `yaml:"packages,omitempty"`
	WriteFiles []WriteFile `yaml:"write_files,omitempty"`
	Runcmd     []string    `yaml:"runcmd,omitempty"`
	Output     *Output     `yaml:"output,omitempty"`
}

// User is a cloud-config user entry.
type User struct {
	Name              string   `yaml:"name"`
	Sudo              string   `yaml:"sudo,omitempty"`
	Shell             string   `yaml:"shell,omitempty"`
	LockPasswd        bool     `yaml:"lock_passwd"`
	SSHAuthorizedKeys []string `yaml:"ssh_authorized_keys,omitempty"`
}

// Chpasswd sets initial passwords without forcing an expiry.
type Chpasswd struct {
	Expire bool   `yaml:"expire"`
	List   string `yaml:"list"`
}

// WriteFile is a cloud-config write_files entry.
type WriteFile struct {
	Path        string `yaml:"path"`
	Content     string `yaml:"content"`
	Permissions string `yaml:"permissions,omitempty"`
}

// Output redirects cloud-init stage output for post-mortem debugging.
type Output struct {
	All string `yaml:"all"`
}

// MetaData is the NoCloud meta-data document.
type MetaData struct {
	InstanceID    string `yaml:"instance-id"`
	LocalHostname string `yaml:"local-hostname"`
}

// Input identifies the VM a document set is rendered for.
type Input struct {
	Name         string
	Distro       string
	Version      string
	SSHPublicKey string
}

// Rendered holds the two NoCloud documents for one VM.
type Rendered struct {
	UserData string
	MetaData string
}

// Generator renders cloud-init documents from the conductor configuration.
type Generator struct {
	cfg *config.Config
}

// NewGenerator creates a generator bound to a configuration.
func NewGenerator(cfg *config.Config) *Generator {
	return &Generator{cfg: cfg}
}

// Render produces the user-data and meta-data documents for one VM.
func (g *Generator) Render(in Input) (Rendered, error) {
	if in.Name == "" {
		return Rendered{}, fmt.Errorf("VM name is required")
	}

	profile, err := osprofile.Lookup(in.Distro)
	if err != nil {
		return Rendered{}, err
	}

	userData, err := g.renderUserData(in, profile)
	if err != nil {
		return Rendered{}, err
	}

	metaData, err := renderMetaData(in.Name)
	if err != nil {
		return Rendered{}, err
	}

	return Rendered{UserData: userData, MetaData: metaData}, nil
}

func (g *Generator) renderUserData(in Input, profile osprofile.Profile) (string, error) {
	vms := g.cfg.VMs

	primary := User{
		Name:       vms.Username,
		Sudo:       "ALL=(ALL) NOPASSWD:ALL",
		Shell:      profile.Shell,
		LockPasswd: false,
	}
	if in.SSHPublicKey != "" {
		primary.SSHAuthorizedKeys = []string{in.SSHPublicKey}
	}

	users := []User{primary}
	if profile.RootUserBlock {
		root := User{Name: "root", LockPasswd: false}
		if in.SSHPublicKey != "" {
			root.SSHAuthorizedKeys = []string{in.SSHPublicKey}
		}
		users = append(users, root)
	}

	doc := UserData{
		Users:     users,
		SSHPwAuth: true,
		Packages:  profile.PythonPackages,
		Output:    &Output{All: "| tee -a /var/log/cloud-init-output.log"},
	}

	if vms.Password != "" {
		doc.Chpasswd = &Chpasswd{Expire: false, List: fmt.Sprintf("%s:%s", vms.Username, vms.Password)}
	}

	files, err := g.agentFiles()
	if err != nil {
		return "", err
	}
	doc.WriteFiles = files

	doc.Runcmd = renderRuncmd(g.steps(profile))

	yamlBytes, err := yaml.Marshal(&doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal user-data: %w", err)
	}

	// The #cloud-config header is required by the cloud-init format.
	return "#cloud-config\n" + string(yamlBytes), nil
}

// agentFiles stages the agent's config and systemd units via write_files so
// the boot steps only have to install and enable.
func (g *Generator) agentFiles() ([]WriteFile, error) {
	agentCfg, err := agent.RenderConfig(g.cfg.Agent)
	if err != nil {
		return nil, err
	}

	return []WriteFile{
		{Path: agent.ConfigPath, Content: agentCfg, Permissions: "0600"},
		{Path: "/etc/systemd/system/snail-core.service", Content: agent.RenderServiceUnit(), Permissions: "0644"},
		{Path: "/etc/systemd/system/snail-core.timer", Content: agent.RenderTimerUnit(g.cfg.Agent.IntervalMinutes), Permissions: "0644"},
	}, nil
}

// steps is the declared post-boot sequence. Only SSH enablement and the
// final sentinel are unguarded; everything else tolerates failure so a
// single missing package never leaves the host unreachable.
func (g *Generator) steps(profile osprofile.Profile) []Step {
	minPython := g.cfg.Agent.MinPythonVersion
	if profile.MinPython != "" {
		minPython = profile.MinPython
	}

	return []Step{
		{
			Name: "prepare-state-dir",
			Cmd:  fmt.Sprintf("mkdir -p %s && touch %s", SentinelDir, StepLogPath),
			Mode: Essential,
		},
		{
			Name: "enable-ssh",
			Cmd:  "systemctl enable --now sshd 2>/dev/null || systemctl enable --now ssh",
			Mode: Essential,
		},
		{
			Name: "system-update",
			Cmd:  profile.UpdateCmd,
			Mode: BestEffort,
		},
		{
			Name: "install-python",
			Cmd:  fmt.Sprintf("%s %s", profile.InstallCmd, strings.Join(profile.PythonPackages, " ")),
			Mode: BestEffort,
		},
		{
			Name: "install-security-scanners",
			Cmd:  fmt.Sprintf("%s lynis rkhunter", profile.InstallCmd),
			Mode: BestEffort,
		},
		pythonPreflight(minPython),
		{
			Name: "install-agent",
			Cmd: fmt.Sprintf("python3 -m venv %s/venv && %s/venv/bin/pip install --upgrade pip snail-core",
				agent.InstallDir, agent.InstallDir),
			Mode: AgentGated,
		},
		{
			Name: "enable-agent-timer",
			Cmd:  "systemctl daemon-reload && systemctl enable --now snail-core.timer",
			Mode: AgentGated,
		},
		{
			Name: "provision-complete",
			Cmd:  fmt.Sprintf("touch %s", CompleteSentinel),
			Mode: Essential,
		},
	}
}

func renderRuncmd(steps []Step) []string {
	lines := make([]string, 0, len(steps))
	for _, s := range steps {
		lines = append(lines, s.shellLine())
	}
	return lines
}

// renderMetaData produces the fixed-format meta-data document. Using the VM
// name as instance-id makes cloud-init re-run if a VM is recreated under the
// same name.
func renderMetaData(name string) (string, error) {
	md := MetaData{InstanceID: name, LocalHostname: name}
	yamlBytes, err := yaml.Marshal(&md)
	if err != nil {
		return "", fmt.Errorf("failed to marshal meta-data: %w", err)
	}
	return string(yamlBytes), nil
}

// WriteTo writes the rendered documents into dir/<vm-name>/ and returns that
// directory. The directory is the working copy kept for debugging; the ISO
// built from the same content is what the guest sees.
func (r Rendered) WriteTo(dir, vmName string) (string, error) {
	target := filepath.Join(dir, vmName)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cloud-init directory %s: %w", target, err)
	}

	if err := os.WriteFile(filepath.Join(target, "user-data"), []byte(r.UserData), 0o644); err != nil {
		return "", fmt.Errorf("failed to write user-data: %w", err)
	}
	if err := os.WriteFile(filepath.Join(target, "meta-data"), []byte(r.MetaData), 0o644); err != nil {
		return "", fmt.Errorf("failed to write meta-data: %w", err)
	}

	return target, nil
}
