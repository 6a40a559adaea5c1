package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cryptoseclab/cryptoaudit/internal/config"
	"github.com/cryptoseclab/cryptoaudit/internal/policy"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Show the effective catalog entries and policy rules",
	Long: `Print the catalog APIs and policy rules a scan would enforce, after
normalization (uppercased literals, case-insensitive regexes, defaulted
argument positions).`,
	RunE: rulesCommand,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}

func rulesCommand(cmd *cobra.Command, args []string) error {
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

	fmt.Printf("Catalog %s (version %s): %d APIs\n", cat.CatalogID, orDash(cat.Version), len(cat.APIs))
	for _, e := range cat.APIs {
		fmt.Printf("  %s#%s  algorithm=%s provider=%s\n",
			e.API.ClassName, e.API.MethodName,
			indexOrDash(e.ArgSpec.AlgorithmIndex), indexOrDash(e.ArgSpec.ProviderNameIndex))
	}

	fmt.Printf("\nPolicy %s (version %s): %d rules\n", pol.PolicyID, orDash(pol.Version), len(pol.Rules))
	for _, r := range pol.Rules {
		fmt.Printf("  %s  api=%s\n", r.ID, r.API)
		if r.Description != "" {
			fmt.Printf("      %s\n", r.Description)
		}
		printLists(r.Algorithms, "algorithms")
		printLists(r.Providers, "providers")
	}
	return nil
}

func printLists(l *policy.Lists, label string) {
	if l == nil {
		return
	}
	if l.Allow != nil || l.AllowRegex != nil {
		fmt.Printf("      %s allow: %s  regex: %s\n", label, joinOrDash(l.Allow), joinOrDash(l.AllowRegex))
	}
	if l.Deny != nil || l.DenyRegex != nil {
		fmt.Printf("      %s deny:  %s  regex: %s\n", label, joinOrDash(l.Deny), joinOrDash(l.DenyRegex))
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func indexOrDash(i *int) string {
	if i == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *i)
}

func joinOrDash(list []string) string {
	if list == nil {
		return "-"
	}
	if len(list) == 0 {
		return "(none)"
	}
	return strings.Join(list, ", ")
}
