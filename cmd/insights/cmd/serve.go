package cmd

import (
	"github.com/spf13/cobra"

	"github.com/weni-ai/insights/internal/common/app"
	"github.com/weni-ai/insights/internal/insights"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Runs the insights api",
		RunE:  serve,
	}
	return cmd
}

func serve(_ *cobra.Command, _ []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	return insights.Serve(app.CreateContextWithShutdown(), config)
}
