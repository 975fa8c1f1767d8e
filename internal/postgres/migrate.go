package postgres

import (
	"context"
	"embed"
	"fmt"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	SchemaOrders    = "orders.sql"
	SchemaInventory = "inventory.sql"
)

// Migrate applies one of the embedded schemas. Every statement is idempotent
// so it runs on each start.
func Migrate(ctx context.Context, db DB, schema string) error {
	b, err := migrations.ReadFile("migrations/" + schema)
	if err != nil {
		return fmt.Errorf("read schema %s: %w", schema, err)
	}
	if _, err := db.Exec(ctx, string(b)); err != nil {
		return fmt.Errorf("apply schema %s: %w", schema, err)
	}
	return nil
}
