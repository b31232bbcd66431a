// Package processor is the task driver: it claims one InvoiceTransaction,
// runs it through every pipeline stage in order, and persists the
// terminal outcome, per SPEC_FULL.md §4.13.
package processor

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/einvoice-platform/pipeline/internal/arithmetic"
	"github.com/einvoice-platform/pipeline/internal/blobstore"
	"github.com/einvoice-platform/pipeline/internal/businessvalidate"
	"github.com/einvoice-platform/pipeline/internal/canonical"
	"github.com/einvoice-platform/pipeline/internal/erpadapter"
	"github.com/einvoice-platform/pipeline/internal/findings"
	"github.com/einvoice-platform/pipeline/internal/logging"
	"github.com/einvoice-platform/pipeline/internal/mapping"
	"github.com/einvoice-platform/pipeline/internal/pipelineerr"
	"github.com/einvoice-platform/pipeline/internal/semantic"
	"github.com/einvoice-platform/pipeline/internal/store"
	"github.com/einvoice-platform/pipeline/internal/xmlformat"
	"github.com/einvoice-platform/pipeline/internal/xsdvalidate"
)

// Stage names as they appear in the ValidationReport, §2/§4.
const (
	StageExtraction       = "EXTRACTION"
	StageFormatRouting    = "FORMAT_ROUTING"
	StageMapping          = "MAPPING"
	StageStructural       = "XSD_VALIDATION"
	StageSemantic         = "SCHEMATRON_VALIDATION"
	StageArithmetic       = "ARITHMETIC_VALIDATION"
	StageBusiness         = "BUSINESS_VALIDATION"
)

// Config carries the tunables §6 names.
type Config struct {
	MonetaryTolerance   float64
	RetryMaxAttempts    int
	RetryBase           time.Duration
	RetryCap            time.Duration
	KositTimeout        time.Duration
	KositBinaryPath     string
	KositScenariosPath  string
	KositRepositoryPath string
	WorkerID            string
}

// Driver wires together the stores and adapters one worker needs to
// drive transactions end to end.
type Driver struct {
	repo   *store.Repository
	blobs  blobstore.BlobStore
	erp    erpadapter.Adapter
	logger *zap.Logger
	cfg    Config
}

// New builds a Driver.
func New(repo *store.Repository, blobs blobstore.BlobStore, erp erpadapter.Adapter, logger *zap.Logger, cfg Config) *Driver {
	return &Driver{repo: repo, blobs: blobs, erp: erp, logger: logger, cfg: cfg}
}

// NextRetryDelay computes the backoff duration for a given attempt
// number (1-indexed) with cenkalti/backoff/v5's ExponentialBackOff; the
// result is never above RetryCap. It is the value handed to the queue
// adapter for redelivery scheduling (§4.13); whether to retry at all is
// decided by transientOutcome against RetryMaxAttempts.
func (d *Driver) NextRetryDelay(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(d.cfg.RetryBase),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0.25),
		backoff.WithMaxInterval(d.cfg.RetryCap),
	)
	var delay time.Duration
	for i := 0; i < attempt; i++ {
		delay = b.NextBackOff()
	}
	if d.cfg.RetryCap > 0 && delay > d.cfg.RetryCap {
		delay = d.cfg.RetryCap
	}
	return delay
}

// Outcome is returned by Run to tell the caller (CLI or queue consumer)
// whether the task completed, should be retried, or was skipped because
// another worker already owns it.
type Outcome struct {
	Skipped  bool
	Terminal store.Status
	Retry    bool
	Err      error
}

// Run drives one transaction end to end: claim, extract, route, map,
// validate structurally, validate semantically, validate
// arithmetically, validate against ERP data, and finalize.
func (d *Driver) Run(ctx context.Context, transactionID uuid.UUID, attempt int) Outcome {
	started := time.Now()

	claimed, err := d.repo.Claim(ctx, transactionID)
	if err != nil {
		return Outcome{Retry: true, Err: err}
	}
	if !claimed {
		return Outcome{Skipped: true}
	}

	logEntry := &store.ProcessingLogEntry{
		TransactionID: transactionID,
		Attempt:       attempt,
		StartedAt:     started,
		WorkerID:      d.cfg.WorkerID,
	}

	tx, err := d.repo.Get(ctx, transactionID)
	if err != nil || tx == nil {
		d.finishLog(ctx, logEntry, store.StatusError, true)
		return Outcome{Retry: true, Err: err}
	}

	report := findings.Report{}
	raw, err := d.blobs.Get(ctx, tx.RawBlobURI)
	if err != nil {
		d.finishLog(ctx, logEntry, store.StatusError, true)
		return d.transientOutcome(ctx, transactionID, attempt, err)
	}

	routed, err := xmlformat.Route(raw)
	if err != nil {
		var extractErr *pipelineerr.ExtractionError
		if errors.As(err, &extractErr) && extractErr.Transient {
			d.finishLog(ctx, logEntry, store.StatusError, true)
			return d.transientOutcome(ctx, transactionID, attempt, err)
		}
		return d.permanentOutcome(ctx, transactionID, logEntry, report, StageFormatRouting, err, nil)
	}
	if routed.NoAttachment {
		report.AddStep(findings.Step{
			Stage:   StageFormatRouting,
			Outcome: findings.OutcomeErrors,
			Findings: []findings.Finding{{
				Severity: findings.SeverityError,
				Code:     findings.CodeMapFieldMissing,
				Message:  "hybrid PDF carrier had no embedded invoice XML",
			}},
			StartedAt: started,
			EndedAt:   time.Now(),
		})
		return d.finalize(ctx, transactionID, logEntry, nil, report, store.StatusManualReview, store.LevelStructure)
	}

	mapResult := mapping.Map(routed)
	report.AddStep(findings.Step{
		Stage:     StageMapping,
		Outcome:   findings.StepOutcome(mapResult.Findings),
		Findings:  mapResult.Findings,
		StartedAt: started,
		EndedAt:   time.Now(),
	})
	if mapResult.Fatal != nil {
		return d.finalize(ctx, transactionID, logEntry, mapResult.Invoice, report, store.StatusInvalid, store.LevelStructure)
	}
	inv := mapResult.Invoice

	xsdFindings := xsdvalidate.Validate(routed.Doc.Root(), routed.Syntax)
	xsdStep := findings.Step{Stage: StageStructural, Outcome: findings.StepOutcome(xsdFindings), Findings: xsdFindings, StartedAt: time.Now()}
	xsdStep.EndedAt = time.Now()
	report.AddStep(xsdStep)
	if xsdStep.Outcome == findings.OutcomeFatal {
		return d.finalize(ctx, transactionID, logEntry, inv, report, store.StatusInvalid, store.LevelStructure)
	}

	var xmlBuf bytes.Buffer
	if err := canonical.WriteUBL(inv, &xmlBuf); err == nil {
		_ = d.blobs.Put(ctx, processedXMLURI(transactionID), xmlBuf.Bytes())
	}

	kositCfg := semantic.Config{
		BinaryPath:     d.cfg.KositBinaryPath,
		ScenariosPath:  d.cfg.KositScenariosPath,
		RepositoryPath: d.cfg.KositRepositoryPath,
		Timeout:        d.cfg.KositTimeout,
	}
	semFindings, semOutcome, err := semantic.Validate(ctx, kositCfg, routed.XML)
	if err != nil {
		d.finishLog(ctx, logEntry, store.StatusError, true)
		return d.transientOutcome(ctx, transactionID, attempt, err)
	}
	report.AddStep(findings.Step{Stage: StageSemantic, Outcome: semOutcome, Findings: semFindings, StartedAt: time.Now(), EndedAt: time.Now()})

	arithFindings := arithmetic.Validate(inv, decimal.NewFromFloat(d.cfg.MonetaryTolerance))
	arithStep := findings.Step{Stage: StageArithmetic, Outcome: findings.StepOutcome(arithFindings), Findings: arithFindings, StartedAt: time.Now(), EndedAt: time.Now()}
	report.AddStep(arithStep)

	// An arithmetic ERROR does not halt the chain: the ERP/business stage
	// still runs against the mapped invoice (seed scenario 5, SPEC_FULL.md
	// §8), and the arithmetic finding is folded into the terminal status by
	// finalize alongside whatever the business stage itself finds. See
	// DESIGN.md's Open Question decisions for why this takes precedence
	// over §4.12's "arithmetic passed" precondition wording.
	bizResult, err := businessvalidate.Validate(ctx, d.erp, inv, decimal.NewFromFloat(d.cfg.MonetaryTolerance))
	if err != nil {
		d.finishLog(ctx, logEntry, store.StatusError, true)
		return d.transientOutcome(ctx, transactionID, attempt, err)
	}
	report.AddStep(findings.Step{Stage: StageBusiness, Outcome: findings.StepOutcome(bizResult.Findings), Findings: bizResult.Findings, StartedAt: time.Now(), EndedAt: time.Now()})

	terminal := store.StatusValid
	switch bizResult.Terminal {
	case businessvalidate.TerminalInvalid:
		terminal = store.StatusInvalid
	case businessvalidate.TerminalManualReview:
		terminal = store.StatusManualReview
	}
	return d.finalize(ctx, transactionID, logEntry, inv, report, terminal, store.LevelBusiness)
}

func (d *Driver) transientOutcome(ctx context.Context, transactionID uuid.UUID, attempt int, cause error) Outcome {
	if attempt >= d.cfg.RetryMaxAttempts {
		_ = d.repo.Finalize(ctx, transactionID, store.StatusError, store.LevelNone, store.KeyFields{}, findings.Report{})
		return Outcome{Terminal: store.StatusError, Err: cause}
	}
	_ = d.repo.ReleaseForRetry(ctx, transactionID)
	return Outcome{Retry: true, Err: cause}
}

func (d *Driver) permanentOutcome(ctx context.Context, transactionID uuid.UUID, logEntry *store.ProcessingLogEntry, report findings.Report, stage string, err error, inv *canonical.Invoice) Outcome {
	report.AddStep(findings.Step{
		Stage:   stage,
		Outcome: findings.OutcomeFatal,
		Findings: []findings.Finding{{
			Severity: findings.SeverityFatal,
			Code:     permanentCode(err),
			Message:  err.Error(),
		}},
		StartedAt: time.Now(),
		EndedAt:   time.Now(),
	})
	return d.finalize(ctx, transactionID, logEntry, inv, report, store.StatusInvalid, store.LevelNone)
}

func permanentCode(err error) findings.Code {
	switch err.(type) {
	case *pipelineerr.MappingError:
		return findings.CodeMapFieldMissing
	case *pipelineerr.UnsupportedCarrierError, *pipelineerr.UnknownFormatError:
		return findings.CodeMapInvalidValue
	default:
		return findings.CodeMapFieldMissing
	}
}

func (d *Driver) finalize(ctx context.Context, transactionID uuid.UUID, logEntry *store.ProcessingLogEntry, inv *canonical.Invoice, report findings.Report, terminal store.Status, level store.ValidationLevel) Outcome {
	terminal = escalateTerminal(report, terminal)

	keyFields := store.KeyFields{ProcessedXMLURI: processedXMLURI(transactionID)}
	if inv != nil {
		keyFields.InvoiceNumber = inv.InvoiceNumber
		keyFields.SellerVATID = inv.Seller.VATID
		keyFields.IssueDate = &inv.IssueDate
		keyFields.Payable = inv.Payable.String()
		keyFields.Currency = inv.Currency
		keyFields.Duplicate = report.HasFatal() && hasCode(report, findings.CodeERPDuplicate)
	}

	err := d.repo.Finalize(ctx, transactionID, terminal, level, keyFields, report)
	d.finishLog(ctx, logEntry, terminal, false)
	if d.logger != nil {
		for _, step := range report.Steps {
			logging.LogStep(d.logger, transactionID.String(), step)
		}
	}
	return Outcome{Terminal: terminal, Err: err}
}

func (d *Driver) finishLog(ctx context.Context, entry *store.ProcessingLogEntry, outcome store.Status, transient bool) {
	entry.FinishedAt = time.Now()
	entry.Outcome = outcome
	entry.Transient = transient
	_ = d.repo.AppendLog(ctx, entry)
}

// escalateTerminal is the single place the aggregate report's severity
// gets folded into the terminal status, per §6/§7: a FATAL finding at any
// stage always terminates INVALID, and an ERROR finding at any stage
// forces MANUAL_REVIEW unless the document is already INVALID. This
// applies regardless of which stage's caller-supplied terminal value
// reaches finalize, so an XSD occurrence violation or a Schematron
// failed-assert can no longer be masked by an otherwise clean business
// result.
func escalateTerminal(report findings.Report, terminal store.Status) store.Status {
	if report.HasFatal() {
		return store.StatusInvalid
	}
	if report.HasError() && terminal != store.StatusInvalid {
		return store.StatusManualReview
	}
	return terminal
}

func hasCode(report findings.Report, code findings.Code) bool {
	for _, c := range report.Codes() {
		if c == code {
			return true
		}
	}
	return false
}

func processedXMLURI(transactionID uuid.UUID) string {
	return "processed/" + transactionID.String() + ".xml"
}
