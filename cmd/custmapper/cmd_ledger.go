package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"yashubustudio/custmapper/categorizer"
	"yashubustudio/custmapper/internal/app"
)

var (
	overrideCategory string
	overrideGroup    string
	showQuery        string
	showSource       string
	showCategory     string
	ruleFileOut      string
)

// overrideCmd records an operator decision
var overrideCmd = &cobra.Command{
	Use:   "override [name]",
	Short: "Set the category and group of a name and mark it Manual",
	Long: `Records an operator decision. Manual records are never changed by later runs.

Example:
  custmapper override "Contoso Ltd" --category SI --group "Contoso Holdings"`,
	Args: cobra.ExactArgs(1),
	RunE: runOverride,
}

// reopenCmd removes records so the next run classifies them again
var reopenCmd = &cobra.Command{
	Use:   "reopen [name...]",
	Short: "Remove names from the ledger so the next run classifies them again",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runReopen,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print ledger records",
	Args:  cobra.NoArgs,
	RunE:  runShow,
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write the default config file if it does not exist",
	Args:  cobra.NoArgs,
	RunE:  runInitConfig,
}

func init() {
	overrideCmd.Flags().StringVar(&overrideCategory, "category", "", "Category to assign")
	overrideCmd.Flags().StringVar(&overrideGroup, "group", "", "Parent group (default: keep the current one)")
	_ = overrideCmd.MarkFlagRequired("category")

	showCmd.Flags().StringVarP(&showQuery, "query", "q", "", "Only names or groups containing this text")
	showCmd.Flags().StringVar(&showSource, "source", "", "Only records with this source, e.g. Check-Manually")
	showCmd.Flags().StringVar(&showCategory, "category", "", "Only records with this category")

	initConfigCmd.Flags().StringVar(&ruleFileOut, "rules-out", "", "Also write the default keyword rules as JSON to this file")
}

func openSession() (*app.Session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.OpenSession(cfg.LedgerPath, logger)
}

func runOverride(cmd *cobra.Command, args []string) error {
	session, err := openSession()
	if err != nil {
		return err
	}
	rec, err := session.Override(args[0], categorizer.Category(overrideCategory), overrideGroup)
	if err != nil {
		return err
	}
	if err := session.Save(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s / %s (%s)\n", rec.Name, rec.ParentGroup, rec.Category, rec.Source)
	return nil
}

func runReopen(cmd *cobra.Command, args []string) error {
	session, err := openSession()
	if err != nil {
		return err
	}
	for _, name := range args {
		if err := session.Reopen(name); err != nil {
			return err
		}
	}
	if err := session.Save(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "reopened %d record(s)\n", len(args))
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	session, err := openSession()
	if err != nil {
		return err
	}
	filter := app.Filter{Query: showQuery, Category: categorizer.Category(showCategory)}
	if showSource != "" {
		filter.Source = categorizer.ParseProvenance(showSource)
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPARENT GROUP\tCATEGORY\tSOURCE")
	for _, rec := range session.Records(filter) {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rec.Name, rec.ParentGroup, rec.Category, rec.Source)
	}
	return w.Flush()
}

func runInitConfig(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = categorizer.DefaultConfigFile
	}
	created, err := app.EnsureConfigFile(path)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s already exists\n", path)
	}
	if ruleFileOut == "" {
		return nil
	}
	created, err = app.EnsureRuleFile(ruleFileOut, categorizer.DefaultRules())
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", ruleFileOut)
	}
	return nil
}
