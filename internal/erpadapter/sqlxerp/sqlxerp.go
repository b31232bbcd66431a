// Package sqlxerp implements erpadapter.Adapter on jmoiron/sqlx over a
// jackc/pgx/v5 stdlib connection, opened against a role with no write
// privilege per SPEC_FULL.md §4.14.
package sqlxerp

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/einvoice-platform/pipeline/internal/erpadapter"
	"github.com/einvoice-platform/pipeline/internal/pipelineerr"
)

// Store queries the read-only ERP schema.
type Store struct {
	db *sqlx.DB
}

// Open opens a read-only connection pool against dsn using pgx's
// database/sql driver.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, pipelineerr.Transient("erp.Open", err)
	}
	return &Store{db: db}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

type vendorRow struct {
	VendorID string `db:"vendor_id"`
	VATID    string `db:"vat_id"`
	Active   bool   `db:"active"`
}

func (s *Store) FindVendorByVATID(ctx context.Context, vatID string) (*erpadapter.Vendor, error) {
	var row vendorRow
	err := s.db.GetContext(ctx, &row,
		`SELECT vendor_id, vat_id, active FROM erp_vendor WHERE vat_id = $1`, vatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, pipelineerr.Transient("erp.FindVendorByVATID", err)
	}
	return &erpadapter.Vendor{VendorID: row.VendorID, VATID: row.VATID, Active: row.Active}, nil
}

func (s *Store) IsDuplicateInvoice(ctx context.Context, vendorID, invoiceNumber string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT count(*) FROM erp_invoice_journal WHERE vendor_id = $1 AND invoice_number = $2`,
		vendorID, invoiceNumber)
	if err != nil {
		return false, pipelineerr.Transient("erp.IsDuplicateInvoice", err)
	}
	return count > 0, nil
}

func (s *Store) GetVendorBankDetails(ctx context.Context, vendorID string) ([]erpadapter.BankDetails, error) {
	var ibans []string
	err := s.db.SelectContext(ctx, &ibans,
		`SELECT iban FROM erp_vendor_bank WHERE vendor_id = $1`, vendorID)
	if err != nil {
		return nil, pipelineerr.Transient("erp.GetVendorBankDetails", err)
	}
	out := make([]erpadapter.BankDetails, 0, len(ibans))
	for _, iban := range ibans {
		out = append(out, erpadapter.BankDetails{IBAN: iban})
	}
	return out, nil
}

type poRow struct {
	PONumber         string `db:"po_number"`
	VendorID         string `db:"vendor_id"`
	TotalNet         string `db:"total_net"`
	OpenForInvoicing bool   `db:"open_for_invoicing"`
}

type poLineRow struct {
	ItemIdentifier   string `db:"item_identifier"`
	QuantityOrdered  string `db:"quantity_ordered"`
	QuantityInvoiced string `db:"quantity_invoiced"`
}

func (s *Store) GetPurchaseOrder(ctx context.Context, poNumber, vendorID string) (*erpadapter.PurchaseOrder, error) {
	var row poRow
	err := s.db.GetContext(ctx, &row,
		`SELECT po_number, vendor_id, total_net, open_for_invoicing
		 FROM erp_purchase_order WHERE po_number = $1 AND vendor_id = $2`,
		poNumber, vendorID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, pipelineerr.Transient("erp.GetPurchaseOrder", err)
	}

	var lineRows []poLineRow
	err = s.db.SelectContext(ctx, &lineRows,
		`SELECT item_identifier, quantity_ordered, quantity_invoiced
		 FROM erp_purchase_order_line WHERE po_number = $1`, poNumber)
	if err != nil {
		return nil, pipelineerr.Transient("erp.GetPurchaseOrder.lines", err)
	}

	po, err := decodePO(row, lineRows)
	if err != nil {
		return nil, pipelineerr.Transient("erp.GetPurchaseOrder.decode", err)
	}
	return po, nil
}
