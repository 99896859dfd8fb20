package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"catering/internal/catalog"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage task templates",
}

var templatesImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import templates from a TOML catalog",
	Long: `Import reads a TOML catalog of [[template]] tables with [[template.item]]
entries and stores every template whose name is not taken yet. Existing
templates are never modified.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := catalog.Load(args[0])
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, logger, err := openStore(cfg, os.Stderr)
		if err != nil {
			return err
		}
		defer store.Close()

		res, err := catalog.Import(cmd.Context(), store, f, logger)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "created: %d\n", len(res.Created))
		for _, name := range res.Created {
			fmt.Fprintf(out, "  + %s\n", name)
		}
		fmt.Fprintf(out, "skipped: %d\n", len(res.Skipped))
		for _, name := range res.Skipped {
			fmt.Fprintf(out, "  = %s\n", name)
		}
		return nil
	},
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored templates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, _, err := openStore(cfg, os.Stderr)
		if err != nil {
			return err
		}
		defer store.Close()

		templates, err := store.ListTemplates(cmd.Context())
		if err != nil {
			return err
		}
		if len(templates) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No templates found.")
			return nil
		}
		width := textColumnWidth()
		rows := make([][]string, 0, len(templates))
		for _, tpl := range templates {
			rows = append(rows, []string{
				strconv.FormatInt(tpl.ID, 10),
				tpl.Name,
				wrapText(tpl.Description, width),
			})
		}
		fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"ID", "NAME", "DESCRIPTION"}, rows))
		return nil
	},
}

func init() {
	templatesCmd.AddCommand(templatesImportCmd, templatesListCmd)
	rootCmd.AddCommand(templatesCmd)
}
