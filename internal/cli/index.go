package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Similarity index maintenance",
}

func init() {
	indexCmd.AddCommand(indexRebuildCmd)
	indexCmd.AddCommand(indexStatsCmd)
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Discard and regenerate the similarity index from the task store",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		tasks, err := a.store.FindAllTasks()
		if err != nil {
			return err
		}

		if err := a.index.Rebuild(context.Background(), tasks); err != nil {
			return err
		}
		fmt.Printf("Rebuilt index: %d task(s) embedded\n", a.index.Count())
		return nil
	},
}

var indexStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show similarity index statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Printf("Indexed vectors: %d\n", a.index.Count())
		return nil
	},
}
