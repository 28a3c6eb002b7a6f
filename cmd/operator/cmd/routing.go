package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	sdk "blackroad.io/operator/client"
	"blackroad.io/operator/internal/routing"
	"blackroad.io/operator/models"
)

var routeCmd = &cobra.Command{
	Use:   "route <intent>...",
	Short: "Route a task intent to an organization",
	Long: `Ask the server which BlackRoad organization should own a task.

Examples:
  operator route "Deploy the new API to Railway"
  operator route audit the hash chain`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		decision, err := c.Route(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), decision, func(w io.Writer) {
			headerColor.Fprintf(w, "%s", decision.Organization)
			fmt.Fprintf(w, " (%s)\n", decision.Domain)
			fmt.Fprintf(w, "  Confidence: %.2f\n", decision.Confidence)
			fmt.Fprintf(w, "  Reasoning:  %s\n", decision.Reasoning)
		})
	},
}

var orgsCmd = &cobra.Command{
	Use:   "orgs [name]",
	Short: "List organizations or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if len(args) == 1 {
			org, err := c.GetOrganization(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), org, func(w io.Writer) { printOrganization(w, *org) })
		}

		orgs, err := c.ListOrganizations(cmd.Context())
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), orgs, func(w io.Writer) {
			printHeader(w, fmt.Sprintf("Organizations (%d)", len(orgs)))
			for _, org := range orgs {
				fmt.Fprintf(w, "  %-22s %-12s %s\n", org.Name, org.Domain, org.Responsibility)
			}
		})
	},
}

var domainsCmd = &cobra.Command{
	Use:   "domains",
	Short: "List registered internet domains",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		domains, err := c.ListDomains(cmd.Context())
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), domains, func(w io.Writer) {
			printHeader(w, fmt.Sprintf("Domains (%d)", len(domains)))
			for _, d := range domains {
				fmt.Fprintf(w, "  %-24s %-22s %s\n", d.Domain, d.Organization, d.UseCase)
			}
		})
	},
}

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List upstream rate-limit strategies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		strategies, err := c.ListStrategies(cmd.Context())
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), strategies, func(w io.Writer) { printStrategies(w, strategies) })
	},
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect routing catalog overlays",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Merge an overlay onto the built-in catalog and validate it",
	Long: `Validate a YAML routing catalog overlay without a running server.

Examples:
  operator catalog validate ./catalog.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		cat, err := routing.LoadCatalog(args[0])
		if err != nil {
			printFail(w, "%v", err)
			return err
		}
		printOK(w, "catalog %s is valid", args[0])
		fmt.Fprintf(w, "  Organizations: %d\n", len(cat.Organizations))
		fmt.Fprintf(w, "  Domains:       %d\n", len(cat.Domains))
		fmt.Fprintf(w, "  Keywords:      %d\n", len(cat.Keywords))
		fmt.Fprintf(w, "  Strategies:    %d\n", len(cat.Strategies))
		return nil
	},
}

func init() {
	catalogCmd.AddCommand(catalogValidateCmd)
	rootCmd.AddCommand(routeCmd, orgsCmd, domainsCmd, strategiesCmd, catalogCmd)
}

func printOrganization(w io.Writer, org models.Organization) {
	headerColor.Fprintln(w, org.Name)
	fmt.Fprintf(w, "  Domain:         %s\n", org.Domain)
	fmt.Fprintf(w, "  Responsibility: %s\n", org.Responsibility)
	fmt.Fprintf(w, "  Repositories:   %s\n", strings.Join(org.Repositories, ", "))
}

func printStrategies(w io.Writer, strategies []sdk.StrategyInfo) {
	printHeader(w, fmt.Sprintf("Rate-limit strategies (%d)", len(strategies)))
	for _, s := range strategies {
		headerColor.Fprintf(w, "  %s\n", s.Provider)
		fmt.Fprintf(w, "    Limit:      %s\n", s.ObservedLimit)
		fmt.Fprintf(w, "    Mitigation: %s\n", s.Mitigation)
		if s.EffectiveProxyURL != "" {
			fmt.Fprintf(w, "    Proxy:      %s\n", s.EffectiveProxyURL)
		}
	}
}
