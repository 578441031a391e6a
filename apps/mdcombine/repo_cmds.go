package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/tilsley/mdcombine/apps/mdcombine/internal/combine"
	"github.com/tilsley/mdcombine/pkg/api"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// parseRepoArg splits "owner/repo".
func parseRepoArg(arg string) (combine.Repo, error) {
	owner, name, ok := strings.Cut(arg, "/")
	if !ok || strings.Contains(name, "/") {
		return combine.Repo{}, fmt.Errorf("expected owner/repo, got %q", arg)
	}
	return combine.Repo{Owner: owner, Name: name}, nil
}

// withApp parses the repository argument and runs fn against a freshly
// wired app.
func withApp(build appFactory, fn func(cmd *cobra.Command, a *app, repo combine.Repo) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		repo, err := parseRepoArg(args[0])
		if err != nil {
			return err
		}
		a, err := build(cmd, cliLogger())
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, a, repo)
	}
}

func newListCmd(build appFactory) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "list owner/repo",
		Short: "List the Markdown files of a repository",
		Example: `  mdcombine list alice/docs
  mdcombine list alice/docs --json`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(build, func(cmd *cobra.Command, a *app, repo combine.Repo) error {
			files, err := a.svc.ListMarkdownFiles(cmd.Context(), repo)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(api.ListFilesResponse{Message: api.ListedMessage, Files: files})
			}
			fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%s: %d Markdown files", repo, len(files))))
			for _, f := range files {
				fmt.Fprintln(out, f)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	return cmd
}

func newExportCmd(build appFactory) *cobra.Command {
	var formatFlag string
	cmd := &cobra.Command{
		Use:   "export owner/repo",
		Short: "Combine every Markdown file into one document",
		Long: `Combine every Markdown file of the repository in traversal order and write
the result to the output directory as {owner}-{repo}-combined.{format}.`,
		Example: `  mdcombine export alice/docs
  mdcombine export alice/docs --format pdf`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(build, func(cmd *cobra.Command, a *app, repo combine.Repo) error {
			format, err := combine.ParseFormat(formatFlag)
			if err != nil {
				return err
			}
			art, err := a.svc.ExportCombined(cmd.Context(), repo, format)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), art.Path)
			fmt.Fprintln(cmd.ErrOrStderr(), dimStyle.Render(fmt.Sprintf("%d bytes of %s", len(art.Body), art.Format)))
			return nil
		}),
	}
	cmd.Flags().StringVarP(&formatFlag, "format", "f", string(combine.FormatMarkdown), "Output format: markdown, html or pdf")
	return cmd
}

func newPreviewCmd(build appFactory) *cobra.Command {
	return &cobra.Command{
		Use:     "preview owner/repo path",
		Short:   "Render one Markdown file as HTML",
		Example: `  mdcombine preview alice/docs notes/a.md > a.html`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(build, func(cmd *cobra.Command, a *app, repo combine.Repo) error {
				html, err := a.svc.PreviewFile(cmd.Context(), repo, args[1])
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), html)
				return err
			})(cmd, args)
		},
	}
}
