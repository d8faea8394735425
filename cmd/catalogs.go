package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var catalogsCmd = &cobra.Command{
	Use:   "catalogs",
	Short: "Manage stored catalogs",
}

var catalogsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored catalogs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		recs, err := env.Store.ListCatalogs(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSOURCE\tRECORDS\tCREATED")
		for _, r := range recs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
				r.ID, r.SourceLabel, len(r.Specs), r.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var catalogsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one catalog as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		rec, err := env.Store.GetCatalog(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		rec.Pages = nil // page blobs are not terminal material

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

var catalogsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.DeleteCatalog(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted catalog %s\n", args[0])
		return nil
	},
}

func init() {
	catalogsCmd.AddCommand(catalogsListCmd, catalogsShowCmd, catalogsDeleteCmd)
	rootCmd.AddCommand(catalogsCmd)
}
