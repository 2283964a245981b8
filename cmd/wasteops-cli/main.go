// WasteOps CLI — инструмент командной строки для справочника
// работников через HTTP API консоли.
//
// Использование:
//
//	wasteops [--api-url URL] [--admin] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	workers  Работники и их статусы
//	zones    Операционные зоны
//	ids      Табельные номера
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/WasteOps/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var admin bool
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "wasteops",
		Short:         "WasteOps CLI — worker directory console",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := os.Getenv("WASTEOPS_API_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "API server URL")
	rootCmd.PersistentFlags().BoolVar(&admin, "admin", false, "Act as administrator (X-Actor-Role: admin)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL, admin) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewWorkersCmd(clientFn, outputFn),
		cli.NewZonesCmd(clientFn, outputFn),
		cli.NewIDsCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
