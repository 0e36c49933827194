package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cofront/conductor/internal/inventory"
	"github.com/cofront/conductor/internal/vm"
)

var (
	targetVM   string
	forceNoAsk bool
)

// confirmInput is what the confirmation prompt reads from. Variable so
// tests can feed answers.
var confirmInput io.Reader = os.Stdin

func init() {
	for _, cmd := range []*cobra.Command{startCmd, shutdownCmd, destroyCmd} {
		cmd.Flags().StringVar(&targetVM, "vm", "", "act on a single VM by name (default: all tracked VMs)")
		cmd.Flags().BoolVar(&forceNoAsk, "force", false, "skip the confirmation prompt")
	}
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start stopped VMs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return forEachTarget("start", func(ctx context.Context, mgr *vm.Manager, name string) error {
			return mgr.Start(ctx, name)
		})
	},
}

var shutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "Gracefully shut down running VMs",
	Long: `Request a graceful guest shutdown for the targeted VMs.

The request is asynchronous: the guest may take a while to power off.
Use destroy to force-stop and remove a VM entirely.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return forEachTarget("shutdown", func(ctx context.Context, mgr *vm.Manager, name string) error {
			return mgr.Shutdown(ctx, name)
		})
	},
}

var destroyCmd = &cobra.Command{
	Use:   "destroy",
	Short: "Destroy VMs and their disks",
	Long: `Destroy the targeted VMs: graceful shutdown (forced after a timeout),
undefine the domain, and delete the per-VM disk and cloud-init artifacts.

Destroy is safe to repeat: absent VMs only have their leftover files
cleaned up.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := targetNames()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("No VMs to destroy")
			return nil
		}

		// Destroy always asks, even for a single --vm target.
		if !forceNoAsk && !confirm("destroy", names) {
			fmt.Println("Aborted")
			return nil
		}

		client, err := connect()
		if err != nil {
			return err
		}
		defer closeClient(client)

		mgr := vm.NewManager(cfg, client.Libvirt())
		store := inventory.NewStore(inventory.DefaultFileName)

		ctx := context.Background()
		var failures int
		for _, name := range names {
			if err := mgr.Destroy(ctx, name); err != nil {
				fmt.Printf("%s destroy %s: %v\n", failMark, name, err)
				failures++
				continue
			}
			fmt.Printf("%s Destroyed %s\n", okMark, name)
			if err := store.Remove(name); err != nil {
				fmt.Printf("%s failed to update inventory for %s: %v\n", warnMark, name, err)
			}
		}

		// Drop the inventory file once nothing is tracked anymore.
		if remaining, err := store.Read(); err == nil && len(remaining) == 0 {
			_ = os.Remove(store.Path())
		}

		if failures > 0 {
			return fmt.Errorf("%d of %d VM(s) failed to destroy", failures, len(names))
		}
		return nil
	},
}

// targetNames resolves --vm or falls back to the tracked inventory.
func targetNames() ([]string, error) {
	if targetVM != "" {
		return []string{targetVM}, nil
	}

	store := inventory.NewStore(inventory.DefaultFileName)
	names, err := store.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read VM inventory: %w", err)
	}
	return names, nil
}

// forEachTarget runs one lifecycle operation per targeted VM. Acting on the
// whole fleet asks for confirmation first (skipped by --force); a single
// --vm target does not. Per-VM failures are reported and counted; the loop
// always finishes.
func forEachTarget(verb string, op func(context.Context, *vm.Manager, string) error) error {
	names, err := targetNames()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Printf("No VMs to %s\n", verb)
		return nil
	}

	if targetVM == "" && !forceNoAsk && !confirm(verb, names) {
		fmt.Println("Aborted")
		return nil
	}

	client, err := connect()
	if err != nil {
		return err
	}
	defer closeClient(client)

	mgr := vm.NewManager(cfg, client.Libvirt())

	ctx := context.Background()
	var failures int
	for _, name := range names {
		if err := op(ctx, mgr, name); err != nil {
			fmt.Printf("%s %s %s: %v\n", failMark, verb, name, err)
			failures++
			continue
		}
		fmt.Printf("%s %s %s\n", okMark, strings.ToUpper(verb[:1])+verb[1:], name)
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d VM(s) failed to %s", failures, len(names), verb)
	}
	return nil
}

// confirm asks the operator to confirm acting on the listed VMs.
func confirm(verb string, names []string) bool {
	fmt.Printf("About to %s %d VM(s):\n", verb, len(names))
	for _, name := range names {
		fmt.Printf("  %s\n", name)
	}
	fmt.Print("Continue? [y/N]: ")

	reader := bufio.NewReader(confirmInput)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
