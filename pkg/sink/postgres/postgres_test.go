package postgres

import (
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/adharvest/pkg/config"
	"github.com/ajitpratap0/adharvest/pkg/sink"
)

func TestConnString(t *testing.T) {
	cs := ConnString(config.Database{
		Host:     "db.internal",
		Port:     6543,
		Database: "dwh",
		Schema:   "marketing",
		User:     "loader",
		Password: "p@ss",
		Params:   map[string]string{"sslmode": "require"},
	})

	cfg, err := pgxpool.ParseConfig(cs)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.ConnConfig.Host)
	assert.Equal(t, uint16(6543), cfg.ConnConfig.Port)
	assert.Equal(t, "dwh", cfg.ConnConfig.Database)
	assert.Equal(t, "loader", cfg.ConnConfig.User)
	assert.Equal(t, "p@ss", cfg.ConnConfig.Password)
	assert.Equal(t, "marketing", cfg.ConnConfig.RuntimeParams["search_path"])

	assert.Equal(t, "postgres://x", ConnString(config.Database{DSN: "postgres://x"}))
}

func TestInsertStatement(t *testing.T) {
	stmt := sink.InsertStatement(sink.Target{
		Table:           "ITZ_MKT_KEY",
		Columns:         []string{"CUSTOMER_ID", "CLICKS"},
		TimestampColumn: "FECHA_CREACION",
	}, sink.Postgres)
	assert.Equal(t, "INSERT INTO ITZ_MKT_KEY (CUSTOMER_ID, CLICKS, FECHA_CREACION) VALUES ($1, $2, CURRENT_TIMESTAMP)", stmt)
}
