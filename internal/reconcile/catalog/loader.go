package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/garyjia/invoice-reconciliation/internal/domain/entity"
	"github.com/garyjia/invoice-reconciliation/pkg/database"
)

const defaultUnit = "kg"

// Sheet names read from an xlsx catalog
const (
	SheetPurchaseOrders = "PurchaseOrders"
	SheetLineItems      = "LineItems"
)

type catalogFile struct {
	PurchaseOrders []poRecord `json:"purchase_orders" yaml:"purchase_orders"`
}

type poRecord struct {
	PONumber  string       `json:"po_number" yaml:"po_number"`
	Supplier  string       `json:"supplier" yaml:"supplier"`
	Date      string       `json:"date" yaml:"date"`
	Total     float64      `json:"total" yaml:"total"`
	Currency  string       `json:"currency" yaml:"currency"`
	LineItems []lineRecord `json:"line_items" yaml:"line_items"`
}

type lineRecord struct {
	ItemID      *string `json:"item_id" yaml:"item_id"`
	Description string  `json:"description" yaml:"description"`
	Quantity    float64 `json:"quantity" yaml:"quantity"`
	Unit        string  `json:"unit" yaml:"unit"`
	UnitPrice   float64 `json:"unit_price" yaml:"unit_price"`
	LineTotal   float64 `json:"line_total" yaml:"line_total"`
}

// Load reads a catalog from path. The format follows the extension:
// .json, .yaml/.yml, .xlsx or .db/.sqlite (opened read-only).
func Load(ctx context.Context, path string, logger *zap.Logger) (*Catalog, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCatalogNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat catalog: %w", err)
	}

	var (
		records []poRecord
		err     error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		records, err = readJSON(path)
	case ".yaml", ".yml":
		records, err = readYAML(path)
	case ".xlsx":
		records, err = readXLSX(path)
	case ".db", ".sqlite", ".sqlite3":
		records, err = readSQLite(ctx, path, logger)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}

	c, err := New(toOrders(records))
	if err != nil {
		return nil, err
	}

	logger.Info("Purchase order catalog loaded",
		zap.String("path", path),
		zap.Int("purchase_orders", c.Len()))
	return c, nil
}

func readJSON(path string) ([]poRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	var f catalogFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode json catalog: %w", err)
	}
	return f.PurchaseOrders, nil
}

func readYAML(path string) ([]poRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode yaml catalog: %w", err)
	}
	return f.PurchaseOrders, nil
}

func readXLSX(path string) ([]poRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx catalog: %w", err)
	}
	defer f.Close()

	poRows, err := sheetRecords(f, SheetPurchaseOrders)
	if err != nil {
		return nil, err
	}
	lineRows, err := sheetRecords(f, SheetLineItems)
	if err != nil {
		return nil, err
	}

	records := make([]poRecord, 0, len(poRows))
	index := make(map[string]int, len(poRows))
	for n, row := range poRows {
		total, err := parseFloat(row["total"])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: invalid total: %w", SheetPurchaseOrders, n+2, err)
		}
		index[numberKey(row["po_number"])] = len(records)
		records = append(records, poRecord{
			PONumber: row["po_number"],
			Supplier: row["supplier"],
			Date:     row["date"],
			Total:    total,
			Currency: row["currency"],
		})
	}

	for n, row := range lineRows {
		i, ok := index[numberKey(row["po_number"])]
		if !ok {
			return nil, fmt.Errorf("%s row %d: unknown po_number %q", SheetLineItems, n+2, row["po_number"])
		}
		line, err := xlsxLine(row)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", SheetLineItems, n+2, err)
		}
		records[i].LineItems = append(records[i].LineItems, line)
	}

	return records, nil
}

// sheetRecords maps each data row to its header names
func sheetRecords(f *excelize.File, sheet string) ([]map[string]string, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	out := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(map[string]string, len(header))
		empty := true
		for i, cell := range row {
			if i < len(header) {
				rec[header[i]] = strings.TrimSpace(cell)
				if rec[header[i]] != "" {
					empty = false
				}
			}
		}
		if !empty {
			out = append(out, rec)
		}
	}
	return out, nil
}

func xlsxLine(row map[string]string) (lineRecord, error) {
	var (
		line lineRecord
		err  error
	)
	line.Description = row["description"]
	line.Unit = row["unit"]
	if id := row["item_id"]; id != "" {
		line.ItemID = &id
	}
	if line.Quantity, err = parseFloat(row["quantity"]); err != nil {
		return line, fmt.Errorf("invalid quantity: %w", err)
	}
	if line.UnitPrice, err = parseFloat(row["unit_price"]); err != nil {
		return line, fmt.Errorf("invalid unit_price: %w", err)
	}
	if line.LineTotal, err = parseFloat(row["line_total"]); err != nil {
		return line, fmt.Errorf("invalid line_total: %w", err)
	}
	return line, nil
}

func parseFloat(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func readSQLite(ctx context.Context, path string, logger *zap.Logger) ([]poRecord, error) {
	db, err := database.OpenReadOnly(path, logger)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var records []poRecord
	index := make(map[string]int)

	err = db.QueryEach(ctx,
		`SELECT po_number, supplier, COALESCE(date, ''), total, COALESCE(currency, '')
		 FROM purchase_orders ORDER BY rowid`,
		func(rows *sql.Rows) error {
			var r poRecord
			if err := rows.Scan(&r.PONumber, &r.Supplier, &r.Date, &r.Total, &r.Currency); err != nil {
				return fmt.Errorf("failed to scan purchase order: %w", err)
			}
			index[numberKey(r.PONumber)] = len(records)
			records = append(records, r)
			return nil
		})
	if err != nil {
		return nil, err
	}

	err = db.QueryEach(ctx,
		`SELECT po_number, item_id, description, quantity, COALESCE(unit, ''), unit_price, line_total
		 FROM po_line_items ORDER BY rowid`,
		func(rows *sql.Rows) error {
			var (
				number string
				itemID sql.NullString
				line   lineRecord
			)
			if err := rows.Scan(&number, &itemID, &line.Description, &line.Quantity, &line.Unit, &line.UnitPrice, &line.LineTotal); err != nil {
				return fmt.Errorf("failed to scan line item: %w", err)
			}
			i, ok := index[numberKey(number)]
			if !ok {
				return fmt.Errorf("line item references unknown po_number %q", number)
			}
			if itemID.Valid {
				id := itemID.String
				line.ItemID = &id
			}
			records[i].LineItems = append(records[i].LineItems, line)
			return nil
		})
	if err != nil {
		return nil, err
	}

	return records, nil
}

func toOrders(records []poRecord) []entity.PurchaseOrder {
	orders := make([]entity.PurchaseOrder, 0, len(records))
	for _, r := range records {
		po := entity.PurchaseOrder{
			PONumber:  strings.TrimSpace(r.PONumber),
			Supplier:  r.Supplier,
			Date:      r.Date,
			Total:     r.Total,
			Currency:  r.Currency,
			LineItems: make([]entity.LineItem, 0, len(r.LineItems)),
		}
		if po.Currency == "" {
			po.Currency = entity.DefaultCurrency
		}
		for _, l := range r.LineItems {
			unit := l.Unit
			if unit == "" {
				unit = defaultUnit
			}
			po.LineItems = append(po.LineItems, entity.LineItem{
				ItemCode:    l.ItemID,
				Description: l.Description,
				Quantity:    l.Quantity,
				Unit:        unit,
				UnitPrice:   l.UnitPrice,
				LineTotal:   l.LineTotal,
			})
		}
		orders = append(orders, po)
	}
	return orders
}
