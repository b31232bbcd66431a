// Package store implements the read-write metadata persistence layer
// (InvoiceTransaction, ProcessingLog, ValidationReport) on gorm.io/gorm
// with the Postgres driver, per SPEC_FULL.md §4.14.
package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/einvoice-platform/pipeline/internal/findings"
)

// Status is the InvoiceTransaction lifecycle state, §3/§4.13.
type Status string

const (
	StatusReceived      Status = "RECEIVED"
	StatusProcessing    Status = "PROCESSING"
	StatusValid         Status = "VALID"
	StatusInvalid       Status = "INVALID"
	StatusManualReview  Status = "MANUAL_REVIEW"
	StatusError         Status = "ERROR"
)

// ValidationLevel is the highest pipeline stage a transaction reached.
type ValidationLevel string

const (
	LevelNone        ValidationLevel = "NONE"
	LevelStructure   ValidationLevel = "STRUCTURE"
	LevelSemantic    ValidationLevel = "SEMANTIC"
	LevelCalculation ValidationLevel = "CALCULATION"
	LevelBusiness    ValidationLevel = "BUSINESS"
)

// SourceTag records where a document entered the pipeline.
type SourceTag string

const (
	SourceAPI   SourceTag = "api"
	SourceEmail SourceTag = "email"
)

// InvoiceTransaction is the process-wide identity for one incoming
// document. It is created when the blob lands and mutated only by the
// driver under the claim protocol; it is never deleted.
type InvoiceTransaction struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ReceivedAt      time.Time       `gorm:"not null;index:idx_invoice_transaction_received_at"`
	Source          SourceTag       `gorm:"size:16;not null"`
	RawBlobURI      string          `gorm:"not null"`
	ProcessedXMLURI string          `gorm:""`
	Status          Status          `gorm:"size:16;not null;index:idx_invoice_transaction_status"`
	Level           ValidationLevel `gorm:"size:16;not null;default:NONE"`

	InvoiceNumber string          `gorm:"index:idx_invoice_transaction_invoice_number"`
	SellerVATID   string          `gorm:"index:idx_invoice_transaction_seller_vat_id"`
	IssueDate     *time.Time      `gorm:""`
	Payable       string          `gorm:""` // decimal.Decimal serialised as string, first-class column per §6.
	Currency      string          `gorm:"size:3"`

	Duplicate bool `gorm:"not null;default:false"`
	Retries   int  `gorm:"not null;default:0"`

	Report *ReportJSON `gorm:"type:jsonb;serializer:json"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName pins the GORM table name explicitly rather than relying on
// pluralisation, matching the teacher's migration style.
func (InvoiceTransaction) TableName() string { return "invoice_transaction" }

// ReportJSON is the JSONB-serialised shape of a findings.Report, stored
// verbatim alongside the first-class denormalised columns above.
type ReportJSON struct {
	Steps []ReportStepJSON `json:"steps"`
}

// ReportStepJSON mirrors findings.Step for JSON persistence.
type ReportStepJSON struct {
	Stage     string             `json:"stage"`
	Outcome   findings.Outcome   `json:"outcome"`
	Findings  []findings.Finding `json:"findings"`
	StartedAt time.Time          `json:"started_at"`
	EndedAt   time.Time          `json:"ended_at"`
}

// FromReport converts a findings.Report into its persisted shape.
func FromReport(r findings.Report) *ReportJSON {
	out := &ReportJSON{Steps: make([]ReportStepJSON, 0, len(r.Steps))}
	for _, s := range r.Steps {
		out.Steps = append(out.Steps, ReportStepJSON{
			Stage:     s.Stage,
			Outcome:   s.Outcome,
			Findings:  s.Findings,
			StartedAt: s.StartedAt,
			EndedAt:   s.EndedAt,
		})
	}
	return out
}

// ProcessingLogEntry is one row per driver attempt on a transaction,
// supplementing the ValidationReport with an operational audit trail.
type ProcessingLogEntry struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	TransactionID uuid.UUID `gorm:"type:uuid;not null;index:idx_processing_log_transaction_id"`
	Attempt       int       `gorm:"not null"`
	StartedAt     time.Time `gorm:"not null"`
	FinishedAt    time.Time `gorm:""`
	Outcome       Status    `gorm:"size:16;not null"`
	Transient     bool      `gorm:"not null;default:false"`
	Trace         string    `gorm:"type:text"`
	WorkerID      string    `gorm:"size:128;not null"`

	CreatedAt time.Time
}

// TableName pins the GORM table name explicitly.
func (ProcessingLogEntry) TableName() string { return "processing_log_entry" }

// AutoMigrate applies the metadata-store schema, used by the "migrate"
// CLI command.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&InvoiceTransaction{}, &ProcessingLogEntry{})
}
