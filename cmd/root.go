package cmd

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/shyim/hellokube/internal/config"
	"github.com/spf13/cobra"
)

var configFile = config.DefaultConfigFile
var projectRoot = ""
var logLevel = "info"

var rootCmd = &cobra.Command{
	Use:   "hellokube",
	Short: "Hellokube greets everyone asking for / on port 3000",
	RunE:  runServe,
}

func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal(err)
	}
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	rootCmd.PersistentFlags().StringVar(&configFile, "config", configFile, "Path to the config file")
	rootCmd.PersistentFlags().StringVar(&projectRoot, "project-root", "", "Path to the project root, otherwise it will use the current directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", logLevel, "Log level (debug, info, warn, error)")
	rootCmd.Flags().Int("port", 0, "Port to listen on, overrides the config file")

	cobra.OnInitialize(func() {
		log.SetOutput(os.Stdout)

		level, err := log.ParseLevel(logLevel)

		if err != nil {
			log.Fatal(err)
		}

		log.SetLevel(level)

		if projectRoot != "" {
			if err := os.Chdir(projectRoot); err != nil {
				log.Fatal(err)
			}
		}
	})
}

// loadConfig only insists on the config file when it was passed explicitly.
func loadConfig(cmd *cobra.Command) (*config.ServerConfig, error) {
	if cmd.Flags().Changed("config") {
		return config.CreateConfig(configFile)
	}

	return config.CreateConfigOrDefault(configFile)
}
