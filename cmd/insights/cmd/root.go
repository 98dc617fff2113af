package cmd

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	commonconfig "github.com/weni-ai/insights/internal/common/config"
	"github.com/weni-ai/insights/internal/common/logging"
	"github.com/weni-ai/insights/internal/insights/configuration"
)

const (
	CustomConfigLocation string = "config"
	defaultConfigPath           = "./config/insights"
)

// RootCmd is the root Cobra command that gets called from the main func.
// All other sub-commands should be registered here.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "insights",
		SilenceUsage: true,
		Short:        "Multi-tenant analytics metrics for projects",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindFlags(cmd.Flags())
		},
	}

	cmd.PersistentFlags().StringSlice(
		CustomConfigLocation,
		[]string{},
		"Fully qualified path to application configuration file (for multiple config files repeat this arg or separate paths with commas)")

	cmd.AddCommand(
		serveCmd(),
		queryCmd(),
		resourcesCmd(),
	)

	return cmd
}

func bindFlags(flags *pflag.FlagSet) error {
	return errors.WithStack(viper.BindPFlags(flags))
}

func loadConfig() (configuration.InsightsConfig, error) {
	var config configuration.InsightsConfig
	userSpecifiedConfigs := viper.GetStringSlice(CustomConfigLocation)

	if _, err := commonconfig.LoadConfig(&config, defaultConfigPath, userSpecifiedConfigs); err != nil {
		return config, err
	}
	if err := commonconfig.Validate(config); err != nil {
		commonconfig.LogValidationErrors(err)
		return config, err
	}
	if err := logging.ConfigureLogging(config.Logging); err != nil {
		return config, err
	}
	return config, nil
}
