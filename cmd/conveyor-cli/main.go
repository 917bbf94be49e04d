// Conveyor CLI — инструмент командной строки для просмотра процессов,
// отправки сообщений и проверки определений через HTTP API узла.
//
// Использование:
//
//	conveyor [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	process     Просмотр процессов
//	message     Отправка сообщений
//	definition  Определения процессов
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Conveyor/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "conveyor",
		Short:         "Conveyor CLI — message-driven process orchestration",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := "http://localhost:8080"
	if v := os.Getenv("CONVEYOR_API_URL"); v != "" {
		defaultURL = v
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "Node API URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewProcessCmd(clientFn, outputFn),
		cli.NewMessageCmd(clientFn, outputFn),
		cli.NewDefinitionCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
