package vm

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// WaitReady polls until every named VM has an IPv4 address or the timeout
// elapses. It returns the number of ready VMs.
//
// Readiness short of the full set is not an error: VMs may simply still be
// booting, and the caller decides whether a partial count matters. The poll
// exits immediately once all names resolve, without burning the remaining
// timeout.
func (m *Manager) WaitReady(ctx context.Context, names []string, timeout, interval time.Duration) (int, error) {
	if len(names) == 0 {
		return 0, nil
	}

	deadline := m.now().Add(timeout)
	for {
		ready := m.countReady(names)
		if ready == len(names) {
			log.Info().Int("ready", ready).Msg("all VMs have addresses")
			return ready, nil
		}

		if ctx.Err() != nil {
			return ready, ctx.Err()
		}
		if !m.now().Before(deadline) {
			log.Warn().
				Int("ready", ready).
				Int("total", len(names)).
				Msg("timed out waiting for VM addresses; some guests may still be booting")
			return ready, nil
		}

		log.Debug().Int("ready", ready).Int("total", len(names)).Msg("waiting for VM addresses")
		m.sleep(interval)
	}
}

func (m *Manager) countReady(names []string) int {
	ready := 0
	for _, name := range names {
		dom, err := m.lv.DomainLookupByName(name)
		if err != nil {
			continue
		}
		if m.domainIPv4(dom) != "" {
			ready++
		}
	}
	return ready
}
