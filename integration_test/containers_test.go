//go:build integration

package integration_test

import (
	"context"
	"fmt"

	"github.com/testcontainers/testcontainers-go"
	tcnats "github.com/testcontainers/testcontainers-go/modules/nats"
	pgtc "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(ctx context.Context) (testcontainers.Container, string, error) {
	pgContainer, err := pgtc.Run(ctx,
		"postgres:17-bookworm",
		pgtc.WithDatabase("crm"),
		pgtc.WithUsername("postgres"),
		pgtc.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(containerStartupWait)),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start PostgreSQL container: %w", err)
	}

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return pgContainer, "", fmt.Errorf("failed to get PostgreSQL connection string: %w", err)
	}
	return pgContainer, dsn, nil
}

func startNATSContainer(ctx context.Context) (testcontainers.Container, string, error) {
	natsContainer, err := tcnats.Run(ctx,
		"nats:2.11-alpine",
		tcnats.WithArgument("name", "crm-automation-test"),
		tcnats.WithArgument("store_dir", "/data"),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start NATS container: %w", err)
	}

	natsURL, err := natsContainer.ConnectionString(ctx)
	if err != nil {
		return natsContainer, "", fmt.Errorf("failed to get NATS connection string: %w", err)
	}
	return natsContainer, natsURL, nil
}
