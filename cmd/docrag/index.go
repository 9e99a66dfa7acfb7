package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"docrag/internal/bridge"
	"docrag/internal/service"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	skipStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

var indexCmd = &cobra.Command{
	Use:   "index FILE...",
	Short: "Index documents into the vector store",
	Long:  `Parses, chunks and embeds each file (PDF, DOCX or plain text; glob patterns allowed) and stores the chunks in the configured collection.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildService(cfg)
		if err != nil {
			return err
		}
		return indexFiles(cmd.Context(), svc, args, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func indexFiles(ctx context.Context, svc *service.RAGService, patterns []string, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	svc.Setup(ctx)

	b := bridge.New(ctx)
	inv := bridge.Go(b, "index", func(ctx context.Context, report bridge.Reporter) ([]service.IndexReport, error) {
		return svc.IndexPaths(ctx, patterns, func(path string) {
			report("Indexing " + filepath.Base(path))
		})
	})
	reports, err := await(inv, "Indexing")
	b.Wait()

	indexed := 0
	for _, r := range reports {
		if r.Indexed {
			indexed++
			fmt.Fprintln(out, okStyle.Render(fmt.Sprintf("indexed %s (%d chunks)", r.Source, r.Chunks)))
			continue
		}
		fmt.Fprintln(out, skipStyle.Render(fmt.Sprintf("skipped %s: %s", r.Source, r.Reason)))
	}
	if err != nil {
		fmt.Fprintln(out, errStyle.Render("failed: "+err.Error()))
		return err
	}
	fmt.Fprintf(out, "%d of %d documents indexed\n", indexed, len(reports))
	return nil
}
