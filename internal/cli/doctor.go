package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/azmainm/standup-tickets/internal/config"
	"github.com/azmainm/standup-tickets/internal/embedding"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check capability and store health",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		ok := true

		if os.Getenv(cfg.LLM.APIKeyEnv) == "" {
			fmt.Printf("FAIL completion: %s not set\n", cfg.LLM.APIKeyEnv)
			ok = false
		} else {
			fmt.Println("ok   completion: API key present")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		embedder := embedding.NewLocalClient(
			embedding.WithEndpoint(cfg.Embedding.BaseURL),
			embedding.WithModel(cfg.Embedding.Model),
		)
		if _, err := embedder.EmbedQuery(ctx, "health check"); err != nil {
			fmt.Printf("FAIL embedding: %v\n", err)
			ok = false
		} else {
			fmt.Println("ok   embedding: endpoint reachable")
		}

		a, err := buildApp()
		if err != nil {
			fmt.Printf("FAIL store: %v\n", err)
			ok = false
		} else {
			tasks, err := a.store.FindActiveTasks()
			a.Close()
			if err != nil {
				fmt.Printf("FAIL store: %v\n", err)
				ok = false
			} else {
				fmt.Printf("ok   store: %d active task(s)\n", len(tasks))
			}
		}

		if !ok {
			return fmt.Errorf("doctor found problems")
		}
		return nil
	},
}
