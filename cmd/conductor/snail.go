package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cofront/conductor/internal/snail"
	"github.com/cofront/conductor/internal/vm"
)

var (
	snailUploadURL string
	snailTimeout   int
)

func init() {
	runSnailCmd.Flags().StringVar(&snailUploadURL, "upload-url", "", "override the agent upload URL for this run")
	runSnailCmd.Flags().IntVar(&snailTimeout, "timeout", 0, "per-VM timeout in seconds (default from config)")
	runSnailCmd.Flags().StringVar(&targetVM, "vm", "", "run on a single VM by name (default: all tracked VMs)")
	cloudinitStatusCmd.Flags().StringVar(&targetVM, "vm", "", "check a single VM by name (default: all tracked VMs)")
}

var runSnailCmd = &cobra.Command{
	Use:   "run-snail",
	Short: "Run a snail-core collection on running VMs",
	Long: `Trigger one snail-core collection run on each targeted VM over SSH.

For every VM that is running with an IP address: wait until its first
boot provisioning has finished, then execute the agent's collection
command. VMs where the agent install was skipped (Python too old) are
reported and skipped. Upload URLs pointing at localhost are rewritten
to the host's libvirt bridge address so guests can reach them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := targetNames()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("No VMs to run on")
			return nil
		}

		client, err := connect()
		if err != nil {
			return err
		}
		defer closeClient(client)

		mgr := vm.NewManager(cfg, client.Libvirt())
		runner := snail.NewRunner(cfg)

		uploadURL := snailUploadURL
		if uploadURL == "" {
			uploadURL = cfg.Agent.UploadURL
		}

		timeout := time.Duration(cfg.Agent.TimeoutSeconds) * time.Second
		if snailTimeout > 0 {
			timeout = time.Duration(snailTimeout) * time.Second
		}

		ctx := context.Background()
		var failures int
		for _, row := range mgr.Status(ctx, names) {
			if row.State != "running" || row.IP == "" {
				fmt.Printf("%s %s is not running with an IP, skipped\n", warnMark, row.Name)
				continue
			}

			if err := runOnVM(ctx, runner, row, uploadURL, timeout); err != nil {
				if errors.Is(err, snail.ErrAgentUnavailable) {
					fmt.Printf("%s %s has no agent installed, skipped\n", warnMark, row.Name)
					continue
				}
				fmt.Printf("%s %s: %v\n", failMark, row.Name, err)
				failures++
				continue
			}
			fmt.Printf("%s Collection complete on %s\n", okMark, row.Name)
		}

		if failures > 0 {
			return fmt.Errorf("agent run failed on %d VM(s)", failures)
		}
		return nil
	},
}

var cloudinitStatusCmd = &cobra.Command{
	Use:   "cloudinit-status",
	Short: "Show first-boot provisioning state per VM",
	Long: `Report where each targeted VM is in its cloud-init first-boot
sequence, read from the sentinel files the provisioning steps write:
provisioning complete, agent install skipped, or still in progress.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := targetNames()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("No VMs to check")
			return nil
		}

		client, err := connect()
		if err != nil {
			return err
		}
		defer closeClient(client)

		mgr := vm.NewManager(cfg, client.Libvirt())
		runner := snail.NewRunner(cfg)

		ctx := context.Background()
		for _, row := range mgr.Status(ctx, names) {
			if row.State != "running" || row.IP == "" {
				fmt.Printf("%s %s: %s, cannot check cloud-init\n", warnMark, row.Name, row.State)
				continue
			}

			status, err := runner.CheckProvisioned(ctx, row.IP)
			if err != nil {
				fmt.Printf("%s %s: %v\n", failMark, row.Name, err)
				continue
			}

			switch {
			case status.Complete && status.AgentSkipped:
				fmt.Printf("%s %s: provisioned, agent install skipped\n", warnMark, row.Name)
			case status.Complete:
				fmt.Printf("%s %s: provisioned\n", okMark, row.Name)
			default:
				fmt.Printf("%s %s: provisioning in progress\n", warnMark, row.Name)
			}
		}
		return nil
	},
}

// runOnVM waits for the guest to be reachable and provisioned, then runs
// one collection, all within a single per-VM deadline.
func runOnVM(ctx context.Context, runner *snail.Runner, row vm.StatusRow, uploadURL string, timeout time.Duration) error {
	vmCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	interval := time.Duration(cfg.Poll.IntervalSeconds) * time.Second

	if err := runner.WaitSSH(vmCtx, row.IP, timeout, interval); err != nil {
		return err
	}
	if err := runner.WaitProvisioned(vmCtx, row.IP, timeout, interval); err != nil {
		return err
	}

	out, err := runner.Run(vmCtx, row.IP, uploadURL)
	if err != nil {
		return err
	}
	if out = strings.TrimSpace(out); out != "" {
		fmt.Println(out)
	}
	return nil
}
