package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/facturia/facturia/internal/authz"
)

func TestSchemaAllowsEveryRole(t *testing.T) {
	ddl := Schema()
	require.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS users")
	for _, role := range authz.AllRoles() {
		require.Contains(t, ddl, "'"+role.String()+"'")
	}
}

func TestNewRejectsBadDSN(t *testing.T) {
	_, err := New(context.Background(), "://not-a-dsn", 0)
	require.ErrorContains(t, err, "platform/db: parse config")
}
