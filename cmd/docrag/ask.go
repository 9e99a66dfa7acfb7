package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"docrag/internal/bridge"
	"docrag/internal/domain"
	"docrag/internal/service"
)

var askCmd = &cobra.Command{
	Use:   "ask QUESTION",
	Short: "Answer a question from the indexed documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		showContext, _ := cmd.Flags().GetBool("show-context")
		svc, err := buildService(cfg)
		if err != nil {
			return err
		}
		return askQuestion(cmd.Context(), svc, strings.Join(args, " "), showContext, cmd.OutOrStdout())
	},
}

func init() {
	askCmd.Flags().Bool("show-context", false, "print the retrieved context before the answer")
	rootCmd.AddCommand(askCmd)
}

func askQuestion(ctx context.Context, svc *service.RAGService, question string, showContext bool, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	svc.Setup(ctx)

	b := bridge.New(ctx)
	inv := bridge.Go(b, "answer", func(ctx context.Context, report bridge.Reporter) (domain.Answer, error) {
		report("Searching and generating")
		return svc.Answer(ctx, question)
	})
	answer, err := await(inv, "Thinking")
	b.Wait()
	if err != nil {
		return err
	}

	if showContext {
		fmt.Fprintln(out, skipStyle.Render("Context:"))
		fmt.Fprintln(out, answer.Context)
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out, answer.Text)
	return nil
}
