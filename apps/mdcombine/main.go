// Package main provides the entry point for the mdcombine server and CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// Build info set via ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func buildVersion() string {
	if commit == "none" {
		return version
	}
	short := commit
	if len(short) > 7 {
		short = short[:7]
	}
	return fmt.Sprintf("%s (%s)", version, short)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := fang.Execute(ctx, newRootCmd(defaultApp), fang.WithVersion(buildVersion()))
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// newRootCmd creates the root command. build constructs the application
// graph once a subcommand runs; tests pass one backed by in-memory adapters.
func newRootCmd(build appFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mdcombine",
		Short: "Combine the Markdown files of a GitHub repository",
		Long: `mdcombine lists the Markdown files of a GitHub repository, combines them
into a single document and converts it to Markdown, HTML or PDF.

Run "mdcombine serve" for the HTTP API, or use the list, export and preview
commands directly.`,
		Version:       buildVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().String("config", "", "YAML config file (defaults to $CONFIG_FILE)")

	lipgloss.SetHasDarkBackground(true)

	cmd.AddGroup(&cobra.Group{ID: "server", Title: "Server Commands:"})
	cmd.AddGroup(&cobra.Group{ID: "repo", Title: "Repository Commands:"})

	addGroupedCommand(cmd, newServeCmd(build), "server")
	addGroupedCommand(cmd, newListCmd(build), "repo")
	addGroupedCommand(cmd, newExportCmd(build), "repo")
	addGroupedCommand(cmd, newPreviewCmd(build), "repo")

	return cmd
}

func addGroupedCommand(parent, child *cobra.Command, groupID string) {
	child.GroupID = groupID
	parent.AddCommand(child)
}
