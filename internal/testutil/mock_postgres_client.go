package testutil

import (
	"context"

	"github.com/specmint/specmint/internal/postgres"
)

// MockPostgresClient satisfies postgres.IClient for services backed by
// in-memory stores. WithTx just runs the function; the stores have no
// transaction semantics to honor.
type MockPostgresClient struct{}

func NewMockPostgresClient() *MockPostgresClient {
	return &MockPostgresClient{}
}

func (m *MockPostgresClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (m *MockPostgresClient) Querier(ctx context.Context) postgres.Querier {
	return nil
}

func (m *MockPostgresClient) Close() error {
	return nil
}
