package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-reconciliation/internal/domain/entity"
	"github.com/garyjia/invoice-reconciliation/pkg/database"
)

// sqliteMigrations define the schema readSQLite expects
var sqliteMigrations = []database.Migration{
	{
		Version: 1,
		Name:    "purchase_orders",
		SQL: `
			CREATE TABLE IF NOT EXISTS purchase_orders (
				po_number TEXT PRIMARY KEY,
				supplier  TEXT NOT NULL,
				date      TEXT,
				total     REAL NOT NULL,
				currency  TEXT
			);
			CREATE TABLE IF NOT EXISTS po_line_items (
				po_number   TEXT NOT NULL REFERENCES purchase_orders(po_number),
				item_id     TEXT,
				description TEXT NOT NULL,
				quantity    REAL NOT NULL,
				unit        TEXT,
				unit_price  REAL NOT NULL,
				line_total  REAL NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_po_line_items_po_number ON po_line_items(po_number);`,
	},
}

// ExportSQLite writes orders to a SQLite catalog at path, replacing any
// purchase orders already stored there. The result can be read back by Load.
func ExportSQLite(ctx context.Context, path string, orders []entity.PurchaseOrder, logger *zap.Logger) error {
	if _, err := New(orders); err != nil {
		return err
	}

	db, err := database.New(database.Config{Path: path, MaxOpenConns: 1}, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := database.NewMigrator(db, logger).Run(ctx, sqliteMigrations); err != nil {
		return fmt.Errorf("failed to prepare catalog schema: %w", err)
	}

	err = db.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{"DELETE FROM po_line_items", "DELETE FROM purchase_orders"} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to clear catalog: %w", err)
			}
		}

		for _, po := range orders {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO purchase_orders (po_number, supplier, date, total, currency) VALUES (?, ?, ?, ?, ?)`,
				po.PONumber, po.Supplier, po.Date, po.Total, po.Currency); err != nil {
				return fmt.Errorf("failed to insert %s: %w", po.PONumber, err)
			}
			for _, item := range po.LineItems {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO po_line_items (po_number, item_id, description, quantity, unit, unit_price, line_total)
					 VALUES (?, ?, ?, ?, ?, ?, ?)`,
					po.PONumber, item.ItemCode, item.Description, item.Quantity, item.Unit, item.UnitPrice, item.LineTotal); err != nil {
					return fmt.Errorf("failed to insert line of %s: %w", po.PONumber, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("Purchase order catalog exported",
		zap.String("path", path),
		zap.Int("purchase_orders", len(orders)))
	return nil
}
