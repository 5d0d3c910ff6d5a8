// Conveyor CLI — запуск и проверка workflow, просмотр событий
// и журнала сессий.
//
// Использование:
//
//	conveyor [--config-dir DIR] [--api-url URL] [--json] <command> [flags]
//
// Команды:
//
//	run CONFIG       Выполнить сессию главного workflow
//	validate CONFIG  Проверить конфигурацию без запуска
//	factories        Список фабрик runner'ов
//	events watch     Показывать события из RabbitMQ
//	sessions         Журнал сессий conveyor-server
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/Conveyor/internal/cli"
	"github.com/shaiso/Conveyor/internal/config"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var configDir string
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "conveyor",
		Short:         "Conveyor — workflow orchestration engine",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", config.ConfigDir(), "Configuration folder (env CONVEYOR_CONFIG_DIR)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "conveyor-server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	configDirFn := func() string { return configDir }
	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewRunCmd(configDirFn, outputFn),
		cli.NewValidateCmd(configDirFn, outputFn),
		cli.NewFactoriesCmd(outputFn),
		cli.NewEventsCmd(outputFn),
		cli.NewSessionsCmd(clientFn, outputFn),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}
