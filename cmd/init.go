package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/gosimple/slug"
	"github.com/shyim/hellokube/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const schemaHeader = "# yaml-language-server: $schema=schema.json\n"

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Creates a config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configFile); err == nil {
			return fmt.Errorf("already initialized (found %s)", configFile)
		}

		cfg := config.Default()
		port := strconv.Itoa(cfg.Port)

		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Name").
					Description("Used as log prefix and metrics label").
					Value(&cfg.Name),
				huh.NewInput().
					Title("Port").
					Value(&port).
					Validate(validatePort),
				huh.NewInput().
					Title("Greeting").
					Description("Served on GET /").
					Value(&cfg.Greeting.Value),
			),
		)

		if err := form.RunWithContext(cmd.Context()); err != nil {
			return err
		}

		cfg.Port, _ = strconv.Atoi(port)

		if err := writeInitialConfig(configFile, cfg); err != nil {
			return err
		}

		fmt.Printf("Created a %s. Run next hellokube serve to start the server\n", configFile)

		return nil
	},
}

func validatePort(value string) error {
	port, err := strconv.Atoi(value)

	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("port must be a number between 1 and 65535")
	}

	return nil
}

func writeInitialConfig(file string, cfg *config.ServerConfig) error {
	cfg.Name = slug.Make(cfg.Name)

	if cfg.Name == "" {
		cfg.Name = config.DefaultName
	}

	// retention only matters once an access log database is configured
	out := *cfg
	out.AccessLog = config.AccessLogConfig{}

	bytes, err := yaml.Marshal(out)

	if err != nil {
		return err
	}

	return os.WriteFile(file, []byte(schemaHeader+string(bytes)), 0644)
}

func init() {
	rootCmd.AddCommand(initCmd)
}
