package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cofront/conductor/internal/config"
	"github.com/cofront/conductor/internal/libvirt"
)

var (
	version = "dev"
	commit  = "unknown"
)

// Set by persistent flags before any command runs.
var (
	configPath string
	logLevel   string
)

// cfg is loaded once in the root PersistentPreRunE and shared by all
// commands.
var cfg *config.Config

// Status marks for human-facing command output.
var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	failMark = color.New(color.FgRed).Sprint("✗")
	warnMark = color.New(color.FgYellow).Sprint("!")
)

const connectTimeout = 5 * time.Second

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "conductor",
	Short: "Conductor - disposable test VMs for the snail-core agent",
	Long: `Conductor provisions short-lived libvirt VMs across Linux distributions,
injects cloud-init configuration, and installs the snail-core data
collection agent in each guest.

VMs are created from pre-downloaded base cloud images, named
<prefix>-<distro>-<version>-<n>, and are safe to destroy at any time.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setupLogging(); err != nil {
			return err
		}

		loaded, err := config.LoadFromFile(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigFile,
		"path to the conductor config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(createAllCmd)
	rootCmd.AddCommand(listVersionsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(shutdownCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(runSnailCmd)
	rootCmd.AddCommand(cloudinitStatusCmd)
	rootCmd.AddCommand(waitReadyCmd)
	rootCmd.AddCommand(testConnCmd)
}

// setupLogging routes structured logs to stderr in console form, keeping
// stdout clean for command output.
func setupLogging() error {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()
	return nil
}

// connect opens the libvirt connection using the configured socket.
func connect() (*libvirt.Client, error) {
	client, err := libvirt.Connect(cfg.Host.LibvirtSocket, connectTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to libvirt (is libvirtd running?): %w", err)
	}
	return client, nil
}

// closeClient closes the libvirt connection, logging instead of failing:
// by the time it runs the command's real work is already done.
func closeClient(client *libvirt.Client) {
	if err := client.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close libvirt connection")
	}
}

var testConnCmd = &cobra.Command{
	Use:   "test-conn",
	Short: "Test libvirt connection",
	Long:  `Test connectivity to the libvirt daemon and display version information.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Testing libvirt connection...")

		client, err := connect()
		if err != nil {
			return err
		}
		defer closeClient(client)

		fmt.Printf("%s Connected to libvirt daemon\n", okMark)

		if err := client.Ping(); err != nil {
			return fmt.Errorf("connection test failed: %w", err)
		}

		// libvirt returns the version as an integer like 8006000 for 8.6.0.
		libVersion, err := client.Libvirt().ConnectGetLibVersion()
		if err != nil {
			return fmt.Errorf("failed to get libvirt version: %w", err)
		}
		major := libVersion / 1000000
		minor := (libVersion % 1000000) / 1000
		patch := libVersion % 1000
		fmt.Printf("%s Libvirt version: %d.%d.%d\n", okMark, major, minor, patch)

		hostname, err := client.Libvirt().ConnectGetHostname()
		if err != nil {
			return fmt.Errorf("failed to get hostname: %w", err)
		}
		fmt.Printf("%s Hypervisor hostname: %s\n", okMark, hostname)

		uri, err := client.Libvirt().ConnectGetUri()
		if err != nil {
			return fmt.Errorf("failed to get connection URI: %w", err)
		}
		fmt.Printf("%s Connection URI: %s\n", okMark, uri)

		fmt.Println("\nConnection test successful!")
		return nil
	},
}
