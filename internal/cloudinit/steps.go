package cloudinit

import (
	"fmt"
	"strings"
)

const (
	// StepLogPath is where each boot step records its outcome inside the guest.
	StepLogPath = "/var/log/conductor-steps.log"
	// SentinelDir holds conductor's in-guest marker files.
	SentinelDir = "/var/lib/conductor"
	// CompleteSentinel marks a finished provisioning sequence.
	CompleteSentinel = SentinelDir + "/provision-complete"
	// AgentFailedSentinel marks a skipped agent install (e.g. Python too old).
	AgentFailedSentinel = SentinelDir + "/agent-install-failed"
)

// Outcome is the recorded result of one boot step.
type Outcome string

const (
	OutcomeSuccess         Outcome = "Success"
	OutcomeSkippedOptional Outcome = "SkippedOptional"
	OutcomeFailedNonFatal  Outcome = "FailedNonFatal"
)

// StepMode controls how a step's failure is treated inside the guest.
type StepMode int

const (
	// Essential steps run unguarded; if they fail, cloud-init reports the
	// failure. Reserved for network/SSH enablement.
	Essential StepMode = iota
	// BestEffort steps record Success or FailedNonFatal and never abort
	// the boot sequence.
	BestEffort
	// AgentGated steps are best-effort steps that are additionally skipped
	// (SkippedOptional) once the agent preflight has failed.
	AgentGated
)

// Step is one entry in the declared post-boot command sequence.
type Step struct {
	Name string
	Cmd  string
	Mode StepMode
}

// shellLine renders a step into the single shell command placed in runcmd.
func (s Step) shellLine() string {
	record := func(o Outcome) string {
		return fmt.Sprintf("echo '%s:%s' >> %s", o, s.Name, StepLogPath)
	}

	switch s.Mode {
	case Essential:
		return s.Cmd
	case BestEffort:
		return fmt.Sprintf("if %s; then %s; else %s; fi",
			group(s.Cmd), record(OutcomeSuccess), record(OutcomeFailedNonFatal))
	case AgentGated:
		return fmt.Sprintf("if [ -e %s ]; then %s; elif %s; then %s; else %s; fi",
			AgentFailedSentinel, record(OutcomeSkippedOptional),
			group(s.Cmd), record(OutcomeSuccess), record(OutcomeFailedNonFatal))
	default:
		return s.Cmd
	}
}

// group wraps compound commands so && / || chains evaluate as one condition.
func group(cmd string) string {
	if strings.ContainsAny(cmd, "&|;") {
		return "{ " + cmd + "; }"
	}
	return cmd
}

// pythonPreflight builds the version gate that decides whether the agent
// install may proceed. On an old interpreter it writes the failure sentinel
// instead of aborting cloud-init; the agent-gated steps then skip themselves.
func pythonPreflight(minVersion string) Step {
	major, minor := splitVersion(minVersion)
	check := fmt.Sprintf(
		"python3 -c 'import sys; raise SystemExit(0 if sys.version_info >= (%d, %d) else 1)'",
		major, minor)
	cmd := fmt.Sprintf("%s || { touch %s; echo '%s:python-preflight' >> %s; }",
		check, AgentFailedSentinel, OutcomeFailedNonFatal, StepLogPath)
	return Step{Name: "python-preflight", Cmd: cmd, Mode: Essential}
}

// splitVersion parses "3.6" into (3, 6). Malformed input degrades to the
// default minimum rather than failing generation.
func splitVersion(v string) (major, minor int) {
	major, minor = 3, 6
	parts := strings.SplitN(strings.TrimSpace(v), ".", 2)
	if len(parts) == 2 {
		var maj, min int
		if _, err := fmt.Sscanf(parts[0], "%d", &maj); err == nil {
			if _, err := fmt.Sscanf(parts[1], "%d", &min); err == nil {
				major, minor = maj, min
			}
		}
	}
	return major, minor
}
