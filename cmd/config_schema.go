package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/shyim/hellokube/internal/config"
	"github.com/spf13/cobra"
)

var configSchemaCmd = &cobra.Command{
	Use:   "config:schema",
	Short: "Writes the JSON schema of the config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		b := new(bytes.Buffer)
		enc := json.NewEncoder(b)
		enc.SetIndent("", "  ")

		if err := enc.Encode(config.Schema()); err != nil {
			return err
		}

		if output == "-" {
			_, err := cmd.OutOrStdout().Write(b.Bytes())
			return err
		}

		//nolint:gosec  // gosec wants us to use 0600, but making this globally readable is preferred.
		if err := os.WriteFile(output, b.Bytes(), 0644); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Wrote schema to %s\n", output)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(configSchemaCmd)
	configSchemaCmd.Flags().StringP("output", "o", "schema.json", "File to write the schema to, - for stdout")
}
