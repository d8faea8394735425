package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/catalog-cli/internal/pipeline"
)

var ingestURL string

var ingestCmd = &cobra.Command{
	Use:   "ingest [pdf-file]",
	Short: "Extract a car catalog PDF or web page into the local store",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		var path string
		if len(args) == 1 {
			path = args[0]
		}
		src, err := env.newSource(path, ingestURL)
		if err != nil {
			return err
		}

		res, err := env.Pipeline.Run(cmd.Context(), src)
		if err != nil {
			return fmt.Errorf("%s", pipeline.UserMessage(err))
		}

		rec := res.Record
		fmt.Printf("Saved catalog %s (%s)\n", rec.ID, rec.SourceLabel)
		fmt.Printf("  extracted records: %d\n", len(rec.Specs))
		if rec.Summary != nil {
			fmt.Printf("  summary: %s\n", *rec.Summary)
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestURL, "url", "", "extract from a web page instead of a PDF file")
	rootCmd.AddCommand(ingestCmd)
}
