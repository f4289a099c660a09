// Antstride decodes ANT+ Stride Based Speed and Distance Monitor data pages.
//
// It replays captured ANT channel messages through the page decoder, serves
// the decoded state over HTTP and websocket, finds running monitors over
// mDNS and shows their readings live in the terminal.
//
// Usage:
//
//	antstride [command] [flags]
//
// See 'antstride --help' for available commands.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/muurk/antstride/internal/config"
	"github.com/muurk/antstride/internal/logging"
	"github.com/muurk/antstride/internal/version"
)

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "antstride",
	Short: "ANT+ stride sensor decoder",
	Long: `Decode data pages from ANT+ Stride Based Speed and Distance Monitors.

Captured channel messages can be decoded one at a time, replayed through the
decoder, or served to other machines by a monitor. Monitors advertise
themselves over mDNS and can be watched live from any terminal.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging()
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level (debug, info, warn, error); defaults to $"+logging.LogLevelEnvVar)

	rootCmd.AddCommand(versionCmd)
}

// initLogging picks the level from the flag, then the environment, then the
// stored preferences. No level at all keeps logging silent.
func initLogging() error {
	level := logLevel
	if level == "" && os.Getenv(logging.LogLevelEnvVar) == "" {
		if reg, err := config.LoadRegistry(); err == nil && reg.Preferences != nil {
			level = reg.Preferences.LogLevel
		}
	}
	if err := logging.Initialize(level); err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	return nil
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// checkFormat rejects output formats printStructured cannot handle.
func checkFormat(format string) error {
	switch format {
	case "text", "json", "yaml":
		return nil
	default:
		return fmt.Errorf("unknown format %q (must be one of: text, json, yaml)", format)
	}
}

// printStructured writes v as JSON or YAML. It reports false for "text" so
// the caller can render its own output.
func printStructured(format string, v interface{}) (bool, error) {
	switch format {
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return true, fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
		return true, nil
	case "yaml":
		data, err := yaml.Marshal(v)
		if err != nil {
			return true, fmt.Errorf("failed to marshal YAML: %w", err)
		}
		fmt.Print(string(data))
		return true, nil
	default:
		return false, checkFormat(format)
	}
}

var versionFormat string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if done, err := printStructured(versionFormat, version.Info()); done || err != nil {
			return err
		}
		fmt.Printf("antstride %s\n", version.Full())
		return nil
	},
}

func init() {
	versionCmd.Flags().StringVar(&versionFormat, "format", "text", "Output format (text, json, yaml)")
}
