package main

import (
	"encoding/json"
	"path/filepath"

	"github.com/footfallfinder/footfall-analysis-service/internal/app"
	"github.com/footfallfinder/footfall-analysis-service/internal/usecase"
	"github.com/spf13/cobra"
)

func analyzeCommand(rt *cliContext) *cobra.Command {
	var identifier string

	cmd := &cobra.Command{
		Use:   "analyze [video]",
		Short: "Analyze one video file and print the dashboard JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			analyzer, err := app.NewAnalyzer(rt.cfg, rt.log)
			if err != nil {
				return err
			}
			if identifier == "" {
				identifier = filepath.Base(args[0])
			}

			out, err := analyzer.Analyze(cmd.Context(), usecase.AnalyzeInput{
				VideoPath:  args[0],
				Identifier: identifier,
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out.Result)
		},
	}

	cmd.Flags().StringVarP(&identifier, "identifier", "i", "", "Identifier used for scenario lookup (defaults to the file name)")
	return cmd
}
