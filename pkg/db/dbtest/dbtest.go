// Package dbtest opens an in-memory sqlite database carrying the residency
// schema so repositories and transactional workflows can be tested without
// Postgres.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  photo_url TEXT,
  role TEXT NOT NULL DEFAULT 'user',
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS apartments (
  id TEXT PRIMARY KEY,
  owner_email TEXT NOT NULL,
  building_name TEXT NOT NULL,
  apartment_no TEXT NOT NULL,
  floor_no INTEGER NOT NULL,
  block_name TEXT NOT NULL,
  rent NUMERIC NOT NULL,
  is_available INTEGER NOT NULL DEFAULT 1,
  image_url TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (building_name, block_name, apartment_no)
);`,
	`CREATE TABLE IF NOT EXISTS agreements (
  id TEXT PRIMARY KEY,
  apartment_id TEXT NOT NULL,
  tenant_email TEXT NOT NULL,
  tenant_name TEXT NOT NULL,
  owner_email TEXT NOT NULL,
  building_name TEXT NOT NULL,
  apartment_no TEXT NOT NULL,
  floor_no INTEGER NOT NULL,
  block_name TEXT NOT NULL,
  rent NUMERIC NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  request_date DATETIME NOT NULL,
  decided_at DATETIME,
  decided_by TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS agreements_active_tenant_apartment_idx
  ON agreements (tenant_email, apartment_id)
  WHERE status IN ('pending', 'accepted');`,
	`CREATE TABLE IF NOT EXISTS coupons (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  discount INTEGER NOT NULL CHECK (discount >= 0 AND discount <= 100),
  description TEXT NOT NULL DEFAULT '',
  available INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  tenant_email TEXT NOT NULL,
  agreement_id TEXT NOT NULL,
  apartment_id TEXT NOT NULL,
  building_name TEXT NOT NULL,
  apartment_no TEXT NOT NULL,
  floor_no INTEGER NOT NULL,
  block_name TEXT NOT NULL,
  rent NUMERIC NOT NULL,
  original_rent NUMERIC NOT NULL,
  coupon_code TEXT,
  month TEXT NOT NULL,
  transaction_id TEXT NOT NULL UNIQUE,
  payment_date DATETIME NOT NULL,
  status TEXT NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS announcements (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  description TEXT NOT NULL,
  author_email TEXT NOT NULL,
  created_at DATETIME
);`,
}

// Open returns a fresh, isolated database with every table created.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection keeps the in-memory database alive and serializes writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}
