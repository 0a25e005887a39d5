package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/azmainm/standup-tickets/internal/web"
)

var serveAddr string

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP transport",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		addr := serveAddr
		if addr == "" {
			addr = a.cfg.Server.Addr
		}

		srv := web.NewServer(a.engine, a.store)
		fmt.Printf("Listening on %s\n", addr)
		return srv.Run(addr)
	},
}
