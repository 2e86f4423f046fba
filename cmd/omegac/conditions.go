package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/banshee-data/omegac/internal/conditions"
)

func newConditionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conditions",
		Short: "Manage the conditions database",
	}

	var dbPath string
	importCmd := &cobra.Command{
		Use:   "import file.json",
		Short: "Load condition objects from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := conditions.OpenStore(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			f, err := os.Open(filepath.Clean(args[0]))
			if err != nil {
				return err
			}
			defer f.Close()

			n, err := store.Import(cmd.Context(), f)
			if err != nil {
				return fmt.Errorf("import %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d object(s) into %s\n", n, dbPath)
			return nil
		},
	}
	importCmd.Flags().StringVar(&dbPath, "db", "conditions.db", "Conditions database")
	cmd.AddCommand(importCmd)
	return cmd
}
