// Package main provides the registrar binary entry point. It registers a
// service and the resource paths it exposes with Consul, or removes them.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/heytom-labs/consul-registrar/internal/config"
	"github.com/heytom-labs/consul-registrar/internal/registry"
	_ "github.com/heytom-labs/consul-registrar/internal/registry/consul" // Register Consul implementation
	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "registrar"
)

// runFunc executes resolved settings against the registry.
type runFunc func(ctx context.Context, settings *config.Settings) error

func main() {
	if err := rootCmd(execute).Execute(); err != nil {
		printFatal(os.Stderr, err)
		os.Exit(1)
	}
}

// options holds the raw command-line flags.
type options struct {
	configFile string
	command    string
	name       string
	raml       string
	paths      []string
}

func rootCmd(run runFunc) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Register a service and its resources with Consul",
		Long: `Registrar registers a service, and the resource paths it exposes, with a
Consul agent. Resource paths come from a RAML description and/or explicit
--path flags and are stored in the Consul KV store under resources/<path>.

The generated service ID is kept in an identity file so that a later
deregister removes the same instance.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return invoke(cmd, opts, "", run)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config-file", "f", "", "Config file path (JSON)")
	flags.StringVarP(&opts.command, "command", "c", "", "Command to run: register or deregister")
	flags.StringVarP(&opts.name, "name", "n", "", "Service name")
	flags.StringVarP(&opts.raml, "raml", "r", "", "RAML file path or http(s) URL")
	flags.StringArrayVarP(&opts.paths, "path", "p", nil, "Resource path to register (repeatable)")

	for _, command := range []string{config.CommandRegister, config.CommandDeregister} {
		command := command
		cmd.AddCommand(&cobra.Command{
			Use:   command,
			Short: fmt.Sprintf("Run the %s flow", command),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return invoke(cmd, opts, command, run)
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func invoke(cmd *cobra.Command, opts *options, command string, run runFunc) error {
	settings, err := opts.settings(cmd, command)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return run(ctx, settings)
}

// settings merges the config file with the flags set on the command line.
// A subcommand name takes precedence over --command.
func (o *options) settings(cmd *cobra.Command, command string) (*config.Settings, error) {
	settings, err := config.LoadSettings(o.configFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("command") {
		settings.Command = o.command
	}
	if command != "" {
		settings.Command = command
	}
	if flags.Changed("name") {
		settings.Service.Name = o.name
	}
	if flags.Changed("raml") {
		settings.RAML = o.raml
	}
	if flags.Changed("path") {
		settings.Paths = o.paths
	}
	return settings, nil
}

// execute wires the application and runs the command.
func execute(ctx context.Context, settings *config.Settings) error {
	app, cleanup, err := InitializeApp()
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	defer cleanup()

	return app.Run(ctx, settings)
}

// printFatal reports a terminal error, with the backend response when the
// failure carried one.
func printFatal(w io.Writer, err error) {
	fmt.Fprintf(w, "[FATAL ERROR] %v\n", err)
	if status, body, ok := registry.ResponseDetails(err); ok {
		fmt.Fprintf(w, "Status: %d\n", status)
		fmt.Fprintf(w, "Data: %s\n", body)
	}
}
