// Package semantic invokes the KoSIT Schematron engine as a subprocess
// and parses its SVRL report into structured findings, per SPEC_FULL.md
// §4.9. The engine itself is an opaque external executable; os/exec plus
// context.WithTimeout is the correct vehicle for that contract, not a gap
// in dependency coverage — see DESIGN.md.
package semantic

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/einvoice-platform/pipeline/internal/findings"
)

// Config names the KoSIT engine binary and its scenario/repository paths.
type Config struct {
	BinaryPath     string
	ScenariosPath  string
	RepositoryPath string
	Timeout        time.Duration
}

// DefaultTimeout matches §6's kosit-timeout-seconds default.
const DefaultTimeout = 120 * time.Second

// Validate writes xmlBytes to a scoped temporary file, invokes the KoSIT
// engine, and parses the SVRL report it produces. If the binary is
// absent or the call times out, the stage outcome is SKIPPED with an
// INFO finding and a nil error — downstream stages continue per §4.9.
func Validate(ctx context.Context, cfg Config, xmlBytes []byte) ([]findings.Finding, findings.Outcome, error) {
	if cfg.BinaryPath == "" {
		return []findings.Finding{{
			Severity: findings.SeverityInfo,
			Code:     findings.CodeStageSkipped,
			Message:  "KoSIT engine not configured",
		}}, findings.OutcomeSkipped, nil
	}
	if _, err := exec.LookPath(cfg.BinaryPath); err != nil {
		return []findings.Finding{{
			Severity: findings.SeverityInfo,
			Code:     findings.CodeStageSkipped,
			Message:  "KoSIT engine binary not found: " + cfg.BinaryPath,
		}}, findings.OutcomeSkipped, nil
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	tmpDir, err := os.MkdirTemp("", "kosit-*")
	if err != nil {
		return nil, "", fmt.Errorf("kosit: create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	inputPath := filepath.Join(tmpDir, "input.xml")
	if err := os.WriteFile(inputPath, xmlBytes, 0o600); err != nil {
		return nil, "", fmt.Errorf("kosit: write input file: %w", err)
	}
	outputDir := filepath.Join(tmpDir, "output")
	if err := os.Mkdir(outputDir, 0o700); err != nil {
		return nil, "", fmt.Errorf("kosit: create output dir: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, cfg.BinaryPath,
		"--scenarios", cfg.ScenariosPath,
		"--repository", cfg.RepositoryPath,
		"--output", outputDir,
		inputPath,
	)
	runErr := cmd.Run()
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return []findings.Finding{{
			Severity: findings.SeverityInfo,
			Code:     findings.CodeStageSkipped,
			Message:  "KoSIT engine timed out",
		}}, findings.OutcomeSkipped, nil
	}
	if runErr != nil {
		// A non-zero exit code from the run itself (not the validation
		// outcome) is a transient failure: spawn/execution problems are
		// retried by the driver rather than treated as a finding.
		return nil, "", fmt.Errorf("kosit: subprocess failed: %w", runErr)
	}

	svrlPath := filepath.Join(outputDir, "report.svrl")
	data, err := os.ReadFile(svrlPath)
	if err != nil {
		return []findings.Finding{{
			Severity: findings.SeverityInfo,
			Code:     findings.CodeStageSkipped,
			Message:  "KoSIT engine produced no SVRL report",
		}}, findings.OutcomeSkipped, nil
	}

	fs, err := ParseSVRL(data)
	if err != nil {
		return nil, "", fmt.Errorf("kosit: parse SVRL report: %w", err)
	}
	return fs, findings.StepOutcome(fs), nil
}
