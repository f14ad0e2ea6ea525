package database

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const migrationsDir = "../../migrations"

func readMigration(t *testing.T, name string) string {
	t.Helper()
	content, err := os.ReadFile(filepath.Join(migrationsDir, name))
	if err != nil {
		t.Fatalf("Failed to read migration %s: %v", name, err)
	}
	return string(content)
}

func TestMigrationFilesExist(t *testing.T) {
	if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
		t.Fatal("Migrations directory does not exist")
	}

	expectedMigrations := []string{
		"00001_create_users_table.sql",
		"00002_create_products_table.sql",
		"00003_create_addresses_table.sql",
		"00004_create_orders_table.sql",
		"00005_create_reviews_table.sql",
		"00006_create_favorites_and_follows_tables.sql",
		"00007_create_payment_events_table.sql",
		"00008_create_updated_at_trigger.sql",
	}

	for _, migration := range expectedMigrations {
		if _, err := os.Stat(filepath.Join(migrationsDir, migration)); os.IsNotExist(err) {
			t.Errorf("Migration file %s does not exist", migration)
		}
	}
}

func TestMigrationFilesHaveUpAndDown(t *testing.T) {
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("Failed to read migrations directory: %v", err)
	}

	sqlFileCount := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		sqlFileCount++
		content := readMigration(t, file.Name())

		for _, directive := range []string{
			"-- +goose Up",
			"-- +goose Down",
			"-- +goose StatementBegin",
			"-- +goose StatementEnd",
		} {
			if !strings.Contains(content, directive) {
				t.Errorf("Migration file %s missing '%s' directive", file.Name(), directive)
			}
		}
	}

	if sqlFileCount == 0 {
		t.Error("No SQL migration files found")
	}
}

func TestMigrationFilesCreateExpectedTables(t *testing.T) {
	expectedTables := map[string]string{
		"users":          "00001_create_users_table.sql",
		"products":       "00002_create_products_table.sql",
		"addresses":      "00003_create_addresses_table.sql",
		"orders":         "00004_create_orders_table.sql",
		"reviews":        "00005_create_reviews_table.sql",
		"favorites":      "00006_create_favorites_and_follows_tables.sql",
		"follows":        "00006_create_favorites_and_follows_tables.sql",
		"payment_events": "00007_create_payment_events_table.sql",
	}

	for tableName, migrationFile := range expectedTables {
		content := readMigration(t, migrationFile)

		if !strings.Contains(content, "CREATE TABLE IF NOT EXISTS "+tableName) {
			t.Errorf("Migration file %s does not create table %s", migrationFile, tableName)
		}
		if !strings.Contains(content, "DROP TABLE IF EXISTS "+tableName) {
			t.Errorf("Migration file %s does not drop table %s in down section", migrationFile, tableName)
		}
	}
}

func TestProductsTableConstrainsStatus(t *testing.T) {
	content := readMigration(t, "00002_create_products_table.sql")

	for _, status := range []string{"'AVAILABLE'", "'RESERVED'", "'SOLD'", "'REMOVED'"} {
		if !strings.Contains(content, status) {
			t.Errorf("Products status constraint missing value: %s", status)
		}
	}
	if !strings.Contains(content, "price BIGINT NOT NULL CHECK (price > 0)") {
		t.Error("Products price must be a positive integer amount")
	}
}

func TestOrdersTableGuardsActiveProduct(t *testing.T) {
	content := readMigration(t, "00004_create_orders_table.sql")

	for _, status := range []string{"'PENDING'", "'PAID'", "'SHIPPED'", "'DELIVERED'", "'CANCELLED'"} {
		if !strings.Contains(content, status) {
			t.Errorf("Orders status constraint missing value: %s", status)
		}
	}

	if !strings.Contains(content, "CREATE UNIQUE INDEX uq_orders_active_product ON orders (product_id)") {
		t.Error("Orders table missing partial unique index on active product")
	}
}

func TestReviewsAreUniquePerOrder(t *testing.T) {
	content := readMigration(t, "00005_create_reviews_table.sql")

	if !strings.Contains(content, "CONSTRAINT uq_reviews_order UNIQUE (order_id)") {
		t.Error("Reviews table missing unique constraint on order_id")
	}
	if !strings.Contains(content, "CHECK (rating BETWEEN 1 AND 5)") {
		t.Error("Reviews table missing rating range check")
	}
}

func TestAddressesHaveSingleDefaultPerType(t *testing.T) {
	content := readMigration(t, "00003_create_addresses_table.sql")

	if !strings.Contains(content, "ON addresses (user_id, type) WHERE is_default") {
		t.Error("Addresses table missing partial unique index on default address")
	}
}
