package db

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"

	"waos/internal/config"
)

func TestOpenAndTunePool(t *testing.T) {
	// Arrange
	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	// Act
	conn, err := Open(postgres.New(postgres.Config{Conn: sqlDB, DriverName: "postgres"}), false)
	require.NoError(t, err)
	err = tune(conn, config.DatabaseConfig{MaxOpenConns: 7, MaxIdleConns: 3, ConnMaxLife: time.Minute})

	// Assert
	require.NoError(t, err)
	pool, err := conn.DB()
	require.NoError(t, err)
	assert.Equal(t, 7, pool.Stats().MaxOpenConnections)
}

func TestCloseWithoutConnect(t *testing.T) {
	DB = nil
	assert.NoError(t, Close())
	assert.Nil(t, GetDB())
}

func TestTablesCoverEveryModel(t *testing.T) {
	assert.Len(t, Tables, 5)
}
