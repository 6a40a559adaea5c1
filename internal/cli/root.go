package cli

import (
	"github.com/spf13/cobra"
)

var (
	catalogPath string
	policyPath  string
	logPath     string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "cryptoaudit",
	Short: "CryptoAudit - Crypto API compliance auditor for JVM class files",
	Long: `CryptoAudit statically scans compiled class files for calls to
cryptographic entry-point APIs (MessageDigest, Cipher, Mac, ...) and checks
the algorithm and provider arguments at each call site against a compliance
policy such as FIPS 140-2, without running any of the scanned code.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "Path to catalog YAML file (default: ~/.cryptoaudit/catalog.yaml or the bundled JCE catalog)")
	rootCmd.PersistentFlags().StringVar(&policyPath, "policy", "", "Path to policy YAML file (default: ~/.cryptoaudit/policy.yaml or the bundled FIPS 140-2 policy)")
	rootCmd.PersistentFlags().StringVar(&logPath, "log", "", "Path to scan audit log (default: ~/.cryptoaudit/scan.jsonl)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
}

func Execute() error {
	return rootCmd.Execute()
}
