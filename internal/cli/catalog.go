package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dshills/tribunal/internal/catalog"
	"github.com/dshills/tribunal/internal/review"
)

var flagCatalogDir string

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the rule and agent catalog",
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a catalog directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := openCatalog()
		if err != nil {
			var verr *catalog.ValidationError
			if errors.As(err, &verr) {
				fmt.Fprintf(cmd.ErrOrStderr(), "Catalog %s is invalid:\n", verr.Source)
				for _, p := range verr.Problems {
					fmt.Fprintf(cmd.ErrOrStderr(), "  - %s\n", p)
				}
				exitCode = ExitUsageError
				return nil
			}
			fail(ExitUsageError, "%v", err)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Catalog %s is valid: %d agents, %d policies, %d rules, %d domains\n",
			cat.Source(), len(cat.Agents()), len(cat.Policies()), len(cat.Rules()), len(cat.Domains()))
		return nil
	},
}

var catalogShowCmd = &cobra.Command{
	Use:       "show [agents|policies|rules|domains]",
	Short:     "Show catalog contents",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"agents", "policies", "rules", "domains"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := openCatalog()
		if err != nil {
			fail(ExitUsageError, "%v", err)
			return nil
		}
		section := ""
		if len(args) == 1 {
			section = args[0]
		}
		return renderCatalog(cmd.OutOrStdout(), cat, section)
	},
}

// openCatalog loads --dir, the configured catalog_dir, or the built-in catalog.
func openCatalog() (*catalog.Catalog, error) {
	dir := flagCatalogDir
	if dir == "" {
		cfg, err := loadConfig(nil)
		if err != nil {
			return nil, err
		}
		dir = cfg.CatalogDir
	}
	return catalog.Load(dir)
}

func renderCatalog(w io.Writer, cat *catalog.Catalog, section string) error {
	tables := map[string]func() table.Writer{
		"agents":   func() table.Writer { return agentsTable(cat.Agents()) },
		"policies": func() table.Writer { return policiesTable(cat.Policies()) },
		"rules":    func() table.Writer { return rulesTable(cat.Rules()) },
		"domains":  func() table.Writer { return domainsTable(cat.Domains()) },
	}
	order := []string{"agents", "policies", "domains", "rules"}
	if section != "" {
		if _, ok := tables[section]; !ok {
			return fmt.Errorf("unknown catalog section %q", section)
		}
		order = []string{section}
	}

	fmt.Fprintf(w, "Catalog: %s\n", cat.Source())
	for _, name := range order {
		tw := tables[name]()
		tw.SetTitle(strings.ToUpper(name[:1]) + name[1:])
		if _, err := fmt.Fprintln(w, tw.Render()); err != nil {
			return err
		}
	}
	return nil
}

func agentsTable(agents []review.AgentSpec) table.Writer {
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"ID", "Name", "Model", "Timeout"})
	for _, a := range agents {
		timeout := "default"
		if a.TimeoutSeconds > 0 {
			timeout = fmt.Sprintf("%ds", a.TimeoutSeconds)
		}
		model := a.Model
		if model == "" {
			model = "(configured)"
		}
		tw.AppendRow(table.Row{a.ID, a.Name, model, timeout})
	}
	return tw
}

func policiesTable(policies []review.CompositionPolicy) table.Writer {
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"ID", "Trigger", "Dispatch", "Priority"})
	for _, p := range policies {
		tw.AppendRow(table.Row{p.ID, describeTrigger(p.Trigger), p.Dispatch, p.Priority})
	}
	return tw
}

func rulesTable(rules []review.ReviewRule) table.Writer {
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"ID", "Agent", "Severity", "Title"})
	for _, r := range rules {
		tw.AppendRow(table.Row{r.ID, r.Agent, r.Severity, r.Title})
	}
	return tw
}

func domainsTable(domains []review.DomainMapping) table.Writer {
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"Domain", "Patterns"})
	for _, d := range domains {
		tw.AppendRow(table.Row{d.Domain, strings.Join(d.Patterns, "\n")})
	}
	return tw
}

func describeTrigger(t review.Trigger) string {
	switch t.Type {
	case review.TriggerDomain:
		return "domain: " + strings.Join(t.Domains, ", ")
	case review.TriggerRisk:
		return "risk >= " + string(t.RiskLevel)
	case review.TriggerContent:
		return "content: " + t.Pattern
	default:
		return string(t.Type)
	}
}

func init() {
	catalogCmd.PersistentFlags().StringVar(&flagCatalogDir, "dir", "", "Catalog directory (default: configured or built-in)")
	catalogCmd.AddCommand(catalogValidateCmd)
	catalogCmd.AddCommand(catalogShowCmd)
}
