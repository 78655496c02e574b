//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/MrEthical07/otpauth/userstore"
	"github.com/MrEthical07/otpauth/userstore/postgres"
)

var dsn string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "password",
				"POSTGRES_DB":       "otpauth_test",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		panic(err)
	}
	dsn = fmt.Sprintf("postgres://postgres:password@%s:%s/otpauth_test?sslmode=disable", host, port.Port())

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func TestStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	var (
		s   *postgres.Store
		err error
	)
	require.Eventually(t, func() bool {
		s, err = postgres.Open(ctx, dsn)
		return err == nil
	}, 30*time.Second, time.Second)
	t.Cleanup(func() { _ = s.Close() })

	u, err := s.Create(ctx, "old@example.com")
	require.NoError(t, err)

	_, err = s.Create(ctx, "old@example.com")
	require.ErrorIs(t, err, userstore.ErrEmailTaken)

	require.NoError(t, s.ConfirmEmail(ctx, u.ID))
	require.NoError(t, s.SetPendingEmail(ctx, u.ID, "new@example.com"))
	changed, err := s.ConfirmEmailChange(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "new@example.com", changed.Email)

	now := time.Now().UTC()
	_, err = s.RequestDeletion(ctx, u.ID, now.Add(-time.Minute))
	require.NoError(t, err)

	due, err := s.FindUsersPendingPermanentDeletion(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)

	require.NoError(t, s.PermanentlyDelete(ctx, u.ID))
	_, err = s.FindByID(ctx, u.ID)
	require.ErrorIs(t, err, userstore.ErrNotFound)
}
