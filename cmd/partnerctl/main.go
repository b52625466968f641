// Command partnerctl управляет партнёрами внешнего API: выдаёт ключи,
// выводит список и включает/отключает доступ.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shenikar/snap_and_send/internal/config"
	"github.com/shenikar/snap_and_send/internal/repository"
	"github.com/shenikar/snap_and_send/internal/service"
	"github.com/shenikar/snap_and_send/pkg/logger"
	"github.com/shenikar/snap_and_send/pkg/postgres"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rootCmd := &cobra.Command{
		Use:          "partnerctl",
		Short:        "Manage API partners of the external incident API",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newCreateCmd(),
		newListCmd(),
		newSetActiveCmd("activate", true),
		newSetActiveCmd("deactivate", false),
	)

	return rootCmd.ExecuteContext(ctx)
}

// withPartners открывает базу из конфигурации окружения и передаёт сервис партнёров
func withPartners(ctx context.Context, fn func(service.PartnerService) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.StorageDriver != config.StorageDriverPostgres {
		return fmt.Errorf("partnerctl requires STORAGE_DRIVER=%s", config.StorageDriverPostgres)
	}

	log := logger.New(cfg.LogLevel, "text")
	log.SetOutput(os.Stderr)

	dbpool, err := postgres.NewPostgresDB(ctx, postgres.Options{URL: cfg.DatabaseURL, MaxConns: 2})
	if err != nil {
		return err
	}
	defer dbpool.Close()

	return fn(service.NewPartnerService(repository.NewPartnerRepository(dbpool), log))
}
