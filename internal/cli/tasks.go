package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/azmainm/standup-tickets/internal/task"
)

var tasksAll bool

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Inspect and export tracked tasks",
}

func init() {
	tasksListCmd.Flags().BoolVar(&tasksAll, "all", false, "Include completed tasks")
	tasksExportCmd.Flags().BoolVar(&tasksAll, "all", false, "Include completed tasks")
	tasksCmd.AddCommand(tasksListCmd)
	tasksCmd.AddCommand(tasksExportCmd)
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		tasks, err := loadTasks(a)
		if err != nil {
			return err
		}

		for _, t := range tasks {
			marker := ""
			if t.IsFuturePlan {
				marker = " [future]"
			}
			fmt.Printf("%-8s %-12s %-14s %s%s\n", t.TicketID, t.Status, t.Assignee, t.Title, marker)
		}
		fmt.Printf("%d task(s)\n", len(tasks))
		return nil
	},
}

// snapshot is the YAML export document.
type snapshot struct {
	ExportedAt time.Time   `yaml:"exported_at"`
	Tasks      []task.Task `yaml:"tasks"`
}

var tasksExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export tasks as YAML to stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		tasks, err := loadTasks(a)
		if err != nil {
			return err
		}

		doc := snapshot{ExportedAt: time.Now().UTC(), Tasks: tasks}
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(doc)
	},
}

func loadTasks(a *app) ([]task.Task, error) {
	if tasksAll {
		return a.store.FindAllTasks()
	}
	return a.store.FindActiveTasks()
}
