package postgres

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrateURL(t *testing.T) {
	cases := []struct{ in, want string }{
		{"postgres://app:secret@db:5432/swiftcart?sslmode=disable", "pgx5://app:secret@db:5432/swiftcart?sslmode=disable"},
		{"postgresql://app:secret@db:5432/swiftcart", "pgx5://app:secret@db:5432/swiftcart"},
		{"pgx5://app@db/swiftcart", "pgx5://app@db/swiftcart"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, migrateURL(c.in))
	}
}
