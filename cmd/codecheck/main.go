// Command codecheck is the command-line companion to codecheckd: it runs the
// same compliance pipeline against a model file and queries the knowledge
// base, without a server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"codecheck/internal/config"
	"codecheck/internal/domain"
	"codecheck/pkg/engine"
)

var cfgPath string

func main() {
	root := &cobra.Command{
		Use:           "codecheck",
		Short:         "Building-code compliance engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file")
	root.AddCommand(validateCmd(), resolveCmd(), searchCmd(), requirementCmd(), crossrefCmd(), versionsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func openEngine(ctx context.Context) (*engine.Engine, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return engine.Open(ctx, cfg, log)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <model.json>",
		Short: "Validate a building model and print the compliance report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var model domain.BuildingModel
			if err := json.Unmarshal(raw, &model); err != nil {
				return fmt.Errorf("parse model: %w", err)
			}

			eng, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			report, err := eng.Service.Validate(cmd.Context(), &model)
			if err != nil && !errors.Is(err, domain.ErrIncompleteEvaluation) {
				return err
			}
			if err := printJSON(report); err != nil {
				return err
			}
			if report.OverallStatus == domain.OverallNonCompliant {
				os.Exit(2)
			}
			return nil
		},
	}
	return cmd
}

func resolveCmd() *cobra.Command {
	var loc domain.Location
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show which jurisdictions a location maps to",
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()
			return printJSON(eng.Service.ResolveJurisdictions(&loc))
		},
	}
	cmd.Flags().StringVar(&loc.Country, "country", "", "country name")
	cmd.Flags().StringVar(&loc.State, "state", "", "state name")
	cmd.Flags().StringVar(&loc.County, "county", "", "county name")
	cmd.Flags().StringVar(&loc.City, "city", "", "city name")
	return cmd
}

func searchCmd() *cobra.Command {
	var (
		limit     int
		standard  string
		category  string
		mandatory bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Keyword search over the active code requirements",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			query := ""
			for i, arg := range args {
				if i > 0 {
					query += " "
				}
				query += arg
			}
			filter := engine.SearchFilter{
				Standard: domain.CodeStandard(standard),
				Category: domain.Category(category),
			}
			if cmd.Flags().Changed("mandatory") {
				filter.Mandatory = &mandatory
			}
			return printJSON(eng.Service.SearchRequirements(query, filter, limit))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of hits")
	cmd.Flags().StringVar(&standard, "standard", "", "only hits from this code standard")
	cmd.Flags().StringVar(&category, "category", "", "only hits in this category")
	cmd.Flags().BoolVar(&mandatory, "mandatory", false, "only mandatory (or, with =false, only advisory) requirements")
	return cmd
}

func requirementCmd() *cobra.Command {
	var version string
	cmd := &cobra.Command{
		Use:   "requirement <standard> <section>",
		Short: "Show one code requirement, optionally pinned to a version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			req, err := eng.Service.Requirement(domain.CodeStandard(args[0]), args[1], version)
			if err != nil {
				return err
			}
			return printJSON(req)
		},
	}
	cmd.Flags().StringVar(&version, "version", "", "code version to read from (default: the active version)")
	return cmd
}

func crossrefCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crossref <standard> <section>",
		Short: "List the cross references out of one code section",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()
			return printJSON(eng.Service.CrossReferences(domain.CodeStandard(args[0]), args[1]))
		},
	}
	return cmd
}

func versionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions <standard>",
		Short: "List the published versions of a standard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			versions, active, err := eng.Service.Versions(domain.CodeStandard(args[0]))
			if err != nil {
				return err
			}
			return printJSON(map[string]any{
				"standard": args[0],
				"versions": versions,
				"active":   active,
			})
		},
	}
	return cmd
}
