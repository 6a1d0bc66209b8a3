package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/angelmondragon/cartline-backend/pkg/migrate"
)

func TestEmbeddedMigrationsValidate(t *testing.T) {
	source, err := migrate.Source("")
	if err != nil {
		t.Fatalf("embedded source: %v", err)
	}
	if err := migrate.Validate(source); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}

	onDisk, err := migrate.Source("migrations")
	if err != nil {
		t.Fatalf("disk source: %v", err)
	}
	if err := migrate.Validate(onDisk); err != nil {
		t.Fatalf("validate migrations on disk: %v", err)
	}
}

func TestValidateRejectsBadMigrations(t *testing.T) {
	cases := map[string]fstest.MapFS{
		"bad name": {
			"create_things.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
		"duplicate version": {
			"20260301090000_a.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
			"20260301090000_b.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
		"missing down": {
			"20260301090000_a.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n")},
		},
	}
	for name, fsys := range cases {
		if err := migrate.Validate(fsys); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)

	path, err := migrate.CreateSQLMigration(dir, "Add Order Notes!", now)
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if filepath.Base(path) != "20260302103000_add_order_notes.sql" {
		t.Fatalf("unexpected file name %s", filepath.Base(path))
	}
	if err := migrate.Validate(os.DirFS(dir)); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
	if _, err := migrate.CreateSQLMigration(dir, "add order notes", now); err == nil {
		t.Fatal("expected existing migration to be refused")
	}
	if _, err := migrate.CreateSQLMigration(dir, "!!!", now); err == nil {
		t.Fatal("expected unusable name to be refused")
	}
}

func TestCartMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_carts.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS carts",
		"user_id UUID NOT NULL UNIQUE",
		"version BIGINT NOT NULL DEFAULT 0",
		"CREATE TABLE IF NOT EXISTS cart_items",
		"CHECK (quantity >= 1)",
		"CREATE UNIQUE INDEX IF NOT EXISTS cart_items_cart_product ON cart_items (cart_id, product_id)",
		"DROP TABLE IF EXISTS cart_items",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOrderMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_orders.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"CHECK (total_amount_cents = product_total_cents + delivery_charge_cents)",
		"CREATE UNIQUE INDEX IF NOT EXISTS orders_user_idempotency_key",
		"CREATE TABLE IF NOT EXISTS order_line_items",
		"CHECK (line_total_cents = quantity * unit_price_cents)",
		"DROP TABLE IF EXISTS orders",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOutboxMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_add_checkout_outbox.sql")

	checks := []string{
		"ADD COLUMN IF NOT EXISTS checkout_claimed_at TIMESTAMPTZ",
		"CREATE TABLE IF NOT EXISTS outbox_events",
		"FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE",
		"CREATE UNIQUE INDEX IF NOT EXISTS outbox_events_order_position ON outbox_events (order_id, position)",
		"DROP COLUMN IF EXISTS checkout_claimed_at",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %s found", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
