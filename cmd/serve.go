package cmd

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/kilianp07/mesplan/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the planning API",
	RunE: func(cmd *cobra.Command, args []string) error {
		gin.SetMode(gin.ReleaseMode)
		return withService(func(ctx context.Context, svc *app.Service) error {
			return svc.Serve(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
