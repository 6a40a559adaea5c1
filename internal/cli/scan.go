package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/cryptoseclab/cryptoaudit/internal/config"
	"github.com/cryptoseclab/cryptoaudit/internal/logger"
	"github.com/cryptoseclab/cryptoaudit/internal/policy"
	"github.com/cryptoseclab/cryptoaudit/internal/report"
	"github.com/cryptoseclab/cryptoaudit/internal/scanner"
)

var (
	scanInput  string
	scanFormat string
	scanOutput string
	scanJobs   int
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a class directory or archive against the compliance policy",
	Long: `Scan enumerates class files from a directory or archive, finds calls to
cataloged crypto APIs, recovers literal algorithm/provider arguments, and
evaluates each call site against the policy.

  cryptoaudit scan --input build/classes
  cryptoaudit scan --input app.jar --format html --output audit-report`,
	RunE: scanCommand,
}

func init() {
	scanCmd.Flags().StringVar(&scanInput, "input", "", "Directory of class files or archive to scan (required)")
	scanCmd.Flags().StringVar(&scanFormat, "format", "text", "Report format: text or html")
	scanCmd.Flags().StringVar(&scanOutput, "output", "cryptoaudit-report", "Output directory for the html format")
	scanCmd.Flags().IntVar(&scanJobs, "jobs", 0, "Concurrent class workers (default: number of CPUs)")
	_ = scanCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(scanCmd)
}

func scanCommand(cmd *cobra.Command, args []string) error {
	if scanFormat != "text" && scanFormat != "html" {
		return fmt.Errorf("unknown format %q (want text or html)", scanFormat)
	}

	cfg, err := config.Load(catalogPath, policyPath, logPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	pol, err := loadPolicy(cfg)
	if err != nil {
		return err
	}

	audit, err := logger.New(cfg.LogPath)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer audit.Close()

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		color.NoColor = true
	}

	sc := scanner.New(cat)
	sc.Jobs = scanJobs

	sc.Warnf = func(format string, a ...any) {
		msg := fmt.Sprintf(format, a...)
		fmt.Fprintf(os.Stderr, "[CryptoAudit] warning: %s\n", msg)
		_ = audit.Log(logger.ScanEvent{Event: "warning", Input: scanInput, Detail: msg})
	}

	res, err := sc.Scan(cmd.Context(), scanInput)
	if err != nil && res == nil {
		return err
	}

	engine := policy.NewEngine(pol, cat)
	analyses := engine.EvaluateAll(res)
	summary := report.Summarize(analyses)

	switch scanFormat {
	case "html":
		if err := report.WriteHTML(scanOutput, res, analyses); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "HTML report written to %s\n", scanOutput)
	default:
		if err := report.WriteText(os.Stdout, res, analyses); err != nil {
			return err
		}
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "scan %s: catalog=%s policy=%s\n", res.ScanID, cat.CatalogID, pol.PolicyID)
	}
	fmt.Fprintf(os.Stderr, "Scanned %d classes (%d skipped): %d findings, %d PASS, %d FAIL, %d UNKNOWN\n",
		res.Stats.ClassesScanned, res.Stats.ClassesSkipped, summary.Total(),
		summary.Pass, summary.Fail, summary.Unknown)

	_ = audit.Log(logger.ScanEvent{
		ScanID:   res.ScanID,
		Event:    "scan-complete",
		Input:    scanInput,
		Classes:  res.Stats.ClassesScanned,
		Skipped:  res.Stats.ClassesSkipped,
		Findings: summary.Total(),
	})

	return err
}
