package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/cofront/conductor/internal/image"
	"github.com/cofront/conductor/internal/output"
	"github.com/cofront/conductor/internal/vm"
)

var (
	outputFormat string
	noHeaders    bool
	scanImages   bool
	waitTimeout  int
	waitInterval int
)

func init() {
	statusCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, yaml, json)")
	statusCmd.Flags().BoolVar(&noHeaders, "no-headers", false, "omit headers in table output")

	listVersionsCmd.Flags().BoolVar(&scanImages, "scan", false, "scan the image directory instead of listing configured versions")

	waitReadyCmd.Flags().IntVar(&waitTimeout, "timeout", 0, "seconds to wait (default from config)")
	waitReadyCmd.Flags().IntVar(&waitInterval, "interval", 0, "seconds between polls (default from config)")
	waitReadyCmd.Flags().StringVar(&targetVM, "vm", "", "wait for a single VM by name (default: all tracked VMs)")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show state and IP of managed VMs",
	Long: `Show every VM carrying the configured name prefix: its libvirt state
and its IPv4 address from the DHCP lease, when one exists.

Output formats:
  -o table  Human-readable table (default)
  -o yaml   YAML sequence
  -o json   JSON array`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := output.ValidateFormat(outputFormat); err != nil {
			return err
		}

		client, err := connect()
		if err != nil {
			return err
		}
		defer closeClient(client)

		mgr := vm.NewManager(cfg, client.Libvirt())

		ctx := context.Background()
		names, err := mgr.ListNames(ctx)
		if err != nil {
			return err
		}

		formatter, err := output.NewFormatter(output.Options{
			Format:    output.Format(outputFormat),
			NoHeaders: noHeaders,
		})
		if err != nil {
			return err
		}

		result, err := formatter.FormatStatus(mgr.Status(ctx, names))
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}

		fmt.Print(result)
		return nil
	},
}

var listVersionsCmd = &cobra.Command{
	Use:   "list-versions",
	Short: "List distributions and versions with base image availability",
	Long: `List the configured distributions and versions, marking which base
images are present in the image directory.

With --scan, the image directory is inspected instead: every file
matching a known base image naming convention is reported, including
versions not present in the configuration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		locator := image.NewLocator(cfg.Host.ImageDir)

		if scanImages {
			return printScannedImages(locator)
		}
		return printConfiguredVersions(locator)
	},
}

func printConfiguredVersions(locator *image.Locator) error {
	distros := make([]string, 0, len(cfg.VMs.Distributions))
	for name := range cfg.VMs.Distributions {
		distros = append(distros, name)
	}
	sort.Strings(distros)

	for _, distro := range distros {
		dist := cfg.VMs.Distributions[distro]
		fmt.Printf("%s:\n", distro)

		for _, version := range dist.Versions {
			exists, err := locator.Exists(distro, version)
			if err != nil {
				return err
			}

			mark := failMark
			if exists {
				mark = okMark
			}
			suffix := ""
			if version == dist.DefaultVersion {
				suffix = " (default)"
			}
			fmt.Printf("  %s %s%s\n", mark, version, suffix)
		}
	}
	return nil
}

func printScannedImages(locator *image.Locator) error {
	detected, err := locator.Scan()
	if err != nil {
		return err
	}
	if len(detected) == 0 {
		fmt.Printf("No base images found in %s\n", cfg.Host.ImageDir)
		return nil
	}

	distros := make([]string, 0, len(detected))
	for name := range detected {
		distros = append(distros, name)
	}
	sort.Strings(distros)

	for _, distro := range distros {
		fmt.Printf("%s:\n", distro)
		for _, version := range detected[distro] {
			fmt.Printf("  %s %s\n", okMark, version)
		}
	}
	return nil
}

var waitReadyCmd = &cobra.Command{
	Use:   "wait-ready",
	Short: "Wait for tracked VMs to get IP addresses",
	Long: `Poll the hypervisor until every tracked VM is running with an IPv4
address, or the timeout elapses. A timeout is reported but is not an
error: partially ready fleets are usable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := targetNames()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("No VMs to wait for")
			return nil
		}

		client, err := connect()
		if err != nil {
			return err
		}
		defer closeClient(client)

		mgr := vm.NewManager(cfg, client.Libvirt())

		timeout := time.Duration(cfg.Poll.TimeoutSeconds) * time.Second
		if waitTimeout > 0 {
			timeout = time.Duration(waitTimeout) * time.Second
		}
		interval := time.Duration(cfg.Poll.IntervalSeconds) * time.Second
		if waitInterval > 0 {
			interval = time.Duration(waitInterval) * time.Second
		}

		ctx := context.Background()
		ready, err := mgr.WaitReady(ctx, names, timeout, interval)
		if err != nil {
			return err
		}

		mark := okMark
		if ready < len(names) {
			mark = warnMark
		}
		fmt.Printf("%s %d/%d VM(s) ready\n", mark, ready, len(names))
		return nil
	},
}
