package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Checks that the greeting is served, usable as container health probe",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")

		if url == "" {
			cfg, err := loadConfig(cmd)

			if err != nil {
				return err
			}

			url = fmt.Sprintf("http://127.0.0.1:%d/", cfg.Port)
		}

		wait, _ := cmd.Flags().GetDuration("wait")

		if wait <= 0 {
			if err := checkGreeting(cmd.Context(), url); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s is healthy\n", url)

			return nil
		}

		return waitForGreeting(cmd.Context(), url, wait)
	},
}

func waitForGreeting(ctx context.Context, url string, wait time.Duration) error {
	spinnerInfo, spinnerErr := pterm.DefaultSpinner.Start(fmt.Sprintf("Waiting for %s", url))

	if spinnerErr != nil {
		return spinnerErr
	}

	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		err := checkGreeting(ctx, url)

		if err == nil {
			spinnerInfo.Success(fmt.Sprintf("%s is healthy", url))
			return nil
		}

		select {
		case <-ctx.Done():
			spinnerInfo.Fail(fmt.Sprintf("%s did not become healthy within %s", url, wait))
			return err
		case <-ticker.C:
		}
	}
}

func checkGreeting(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)

	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)

	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}

	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck got status %d from %s", resp.StatusCode, url)
	}

	return nil
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
	healthcheckCmd.Flags().String("url", "", "URL to check, defaults to / on the configured port")
	healthcheckCmd.Flags().Duration("wait", 0, "Keep retrying until the greeting is served or the duration passed")
}
