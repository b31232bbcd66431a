package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/einvoice-platform/pipeline/internal/findings"
	"github.com/einvoice-platform/pipeline/internal/pipelineerr"
)

// Repository wraps a *gorm.DB with the metadata-store operations the
// driver needs.
type Repository struct {
	db *gorm.DB
}

// DB exposes the underlying *gorm.DB for schema migration.
func (r *Repository) DB() *gorm.DB { return r.db }

// New wraps an already-opened *gorm.DB.
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Open dials dsn with gorm.io/driver/postgres.
func Open(dsn string) (*Repository, error) {
	db, err := gorm.Open(postgresOpen(dsn), &gorm.Config{})
	if err != nil {
		return nil, pipelineerr.Transient("store.Open", err)
	}
	return New(db), nil
}

// Create inserts a new InvoiceTransaction in RECEIVED status.
func (r *Repository) Create(ctx context.Context, tx *InvoiceTransaction) error {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	tx.Status = StatusReceived
	tx.Level = LevelNone
	if err := r.db.WithContext(ctx).Create(tx).Error; err != nil {
		return pipelineerr.Transient("store.Create", err)
	}
	return nil
}

// Get loads a transaction by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*InvoiceTransaction, error) {
	var tx InvoiceTransaction
	err := r.db.WithContext(ctx).First(&tx, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, pipelineerr.Transient("store.Get", err)
	}
	return &tx, nil
}

// Claim performs the idempotency-critical conditional UPDATE: it moves a
// transaction from RECEIVED or ERROR into PROCESSING. It reports claimed
// = false, nil error when zero rows were affected — another worker holds
// the row, or it is already terminal. This is the only defence against
// at-least-once delivery (§4.13, §5).
func (r *Repository) Claim(ctx context.Context, id uuid.UUID) (claimed bool, err error) {
	result := r.db.WithContext(ctx).
		Model(&InvoiceTransaction{}).
		Where("id = ? AND status IN ?", id, []Status{StatusReceived, StatusError}).
		Update("status", StatusProcessing)
	if result.Error != nil {
		return false, pipelineerr.Transient("store.Claim", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ReleaseForRetry reverts a transaction to RECEIVED after a transient
// failure, incrementing its retry counter.
func (r *Repository) ReleaseForRetry(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Model(&InvoiceTransaction{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":  StatusReceived,
			"retries": gorm.Expr("retries + 1"),
		}).Error
	if err != nil {
		return pipelineerr.Transient("store.ReleaseForRetry", err)
	}
	return nil
}

// Finalize atomically persists the terminal status, the highest level
// reached, the denormalised key fields, and the full ValidationReport.
func (r *Repository) Finalize(ctx context.Context, id uuid.UUID, status Status, level ValidationLevel, keyFields KeyFields, report findings.Report) error {
	err := r.db.WithContext(ctx).
		Model(&InvoiceTransaction{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":         status,
			"level":          level,
			"invoice_number": keyFields.InvoiceNumber,
			"seller_vat_id":  keyFields.SellerVATID,
			"issue_date":     keyFields.IssueDate,
			"payable":        keyFields.Payable,
			"currency":       keyFields.Currency,
			"duplicate":      keyFields.Duplicate,
			"processed_xml_uri": keyFields.ProcessedXMLURI,
			"report":         FromReport(report),
		}).Error
	if err != nil {
		return pipelineerr.Transient("store.Finalize", err)
	}
	return nil
}

// KeyFields are the denormalised fields written at finalisation time.
type KeyFields struct {
	InvoiceNumber   string
	SellerVATID     string
	IssueDate       *time.Time
	Payable         string
	Currency        string
	Duplicate       bool
	ProcessedXMLURI string
}

// AppendLog records one driver attempt, successful or not.
func (r *Repository) AppendLog(ctx context.Context, entry *ProcessingLogEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return pipelineerr.Transient("store.AppendLog", err)
	}
	return nil
}
