package greeting

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/expr-lang/expr"
	"github.com/joho/godotenv"
	"github.com/shyim/hellokube/internal/config"
)

// Resolve returns the text served on GET /.
func Resolve(cfg *config.ServerConfig) (string, error) {
	if cfg.Greeting.Value != "" {
		return cfg.Greeting.Value, nil
	}

	if cfg.Greeting.Expression == "" {
		return config.DefaultGreeting, nil
	}

	env, err := environment(cfg.EnvFile)

	if err != nil {
		return "", err
	}

	hostname, _ := os.Hostname()

	context := map[string]interface{}{
		"env":      env,
		"name":     cfg.Name,
		"hostname": hostname,
	}

	return evaluate(cfg.Greeting.Expression, context)
}

func evaluate(expression string, context map[string]interface{}) (string, error) {
	program, err := expr.Compile(expression, expr.Env(context))
	if err != nil {
		return "", fmt.Errorf("cannot compile greeting expression: %w", err)
	}

	output, err := expr.Run(program, context)
	if err != nil {
		return "", fmt.Errorf("cannot evaluate greeting expression: %w", err)
	}

	text, ok := output.(string)

	if !ok {
		return "", fmt.Errorf("greeting expression must return a string, got %T", output)
	}

	return text, nil
}

// environment is the process environment overlaid with the given env files.
func environment(envFiles []string) (map[string]string, error) {
	env := make(map[string]string)

	for _, kv := range os.Environ() {
		key, value, found := strings.Cut(kv, "=")

		if found {
			env[key] = value
		}
	}

	for _, fileName := range envFiles {
		if _, err := os.Stat(fileName); os.IsNotExist(err) {
			log.Warnf("Environment file %s does not exist, skipping it", fileName)

			continue
		}

		envMap, err := godotenv.Read(fileName)

		if err != nil {
			return nil, fmt.Errorf("error reading environment file %s: %w", fileName, err)
		}

		for key, value := range envMap {
			env[key] = value
		}
	}

	return env, nil
}
