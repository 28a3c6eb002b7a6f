package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"blackroad.io/operator/models"
)

var (
	policyAdd    models.PolicyRuleCreateRequest
	policyAll    bool
	evalContext  []string
	violSubject  string
	violHours    int
	exemptFor    time.Duration
	exemptReason string
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage and evaluate security policy rules",
	Long: `Manage security policy rules on a running server.

Rules are evaluated in descending priority, then ascending rule ID. The first
matching deny ends evaluation and records a violation.

Examples:
  operator policy add --id admin_access --name "Admin Access" \
    --condition 'resource startsWith "/admin" and not (subject contains "admin")' \
    --action deny --priority 100
  operator policy eval user:bob /admin/panel
  operator policy violations --subject user:bob --hours 24`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var policyAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a policy rule",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		rule, err := c.CreatePolicy(cmd.Context(), &policyAdd)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), rule, func(w io.Writer) {
			printOK(w, "rule %s added (%s, priority %d)", rule.RuleID, rule.Action, rule.Priority)
		})
	},
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List policy rules in evaluation order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		rules, err := c.ListPolicies(cmd.Context(), policyAll)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), rules, func(w io.Writer) {
			printHeader(w, fmt.Sprintf("Policy rules (%d)", len(rules)))
			for _, r := range rules {
				state := ""
				if !r.Enabled {
					state = dimColor.Sprint(" [disabled]")
				}
				fmt.Fprintf(w, "  %4d  %-24s ", r.Priority, r.RuleID)
				actionColor(r.Action).Fprintf(w, "%-16s", r.Action)
				fmt.Fprintf(w, "%s%s\n", r.Name, state)
				dimColor.Fprintf(w, "        %s\n", r.Condition)
			}
		})
	},
}

var policyEvalCmd = &cobra.Command{
	Use:   "eval <subject> <resource>",
	Short: "Evaluate an access request",
	Long: `Evaluate an access request against the enabled rules.

Examples:
  operator policy eval user:bob /admin/panel
  operator policy eval agent:planner task:deploy --ctx high_risk=true`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		attrs, err := parseKV(evalContext)
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		decision, err := c.Evaluate(cmd.Context(), args[0], args[1], attrs)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), decision, func(w io.Writer) {
			actionColor(decision.Decision).Fprintf(w, "%s", decision.Decision)
			fmt.Fprintf(w, "  %s -> %s\n", decision.Subject, decision.Resource)
			for _, d := range decision.Decisions {
				fmt.Fprintf(w, "  matched %-24s %s (priority %d)\n", d.RuleID, d.Action, d.Priority)
			}
			for _, v := range decision.Violations {
				errColor.Fprintf(w, "  violation %s\n", v)
			}
		})
	},
}

var policyViolationsCmd = &cobra.Command{
	Use:   "violations",
	Short: "List recent policy violations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		resp, err := c.Violations(cmd.Context(), violSubject, violHours)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), resp, func(w io.Writer) {
			printHeader(w, fmt.Sprintf("Violations in the last %dh (%d)", resp.Hours, len(resp.Violations)))
			for _, v := range resp.Violations {
				fmt.Fprintf(w, "  %s  ", v.Timestamp.Local().Format("2006-01-02 15:04:05"))
				errColor.Fprintf(w, "%-5s", v.Severity)
				fmt.Fprintf(w, " %-24s %s -> %s\n", v.RuleID, v.Subject, v.Resource)
			}
		})
	},
}

var policyExemptCmd = &cobra.Command{
	Use:   "exempt <rule-id> <subject>",
	Short: "Exempt a subject from a rule",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &models.PolicyExemptionRequest{Subject: args[1], Reason: exemptReason}
		if exemptFor > 0 {
			expires := time.Now().UTC().Add(exemptFor)
			req.ExpiresAt = &expires
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		ex, err := c.AddExemption(cmd.Context(), args[0], req)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), ex, func(w io.Writer) {
			until := "no expiry"
			if ex.ExpiresAt != nil {
				until = "until " + ex.ExpiresAt.Local().Format("2006-01-02 15:04:05")
			}
			printOK(w, "%s exempt from %s (%s)", ex.Subject, ex.RuleID, until)
		})
	},
}

func newToggleCmd(use, short string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <rule-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			rule, err := c.SetPolicyEnabled(cmd.Context(), args[0], enabled)
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), rule, func(w io.Writer) {
				printOK(w, "rule %s %sd", rule.RuleID, use)
			})
		},
	}
}

var policyDeleteCmd = &cobra.Command{
	Use:   "delete <rule-id>",
	Short: "Delete a rule and its exemptions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.DeletePolicy(cmd.Context(), args[0]); err != nil {
			return err
		}
		printOK(cmd.OutOrStdout(), "rule %s deleted", args[0])
		return nil
	},
}

func init() {
	f := policyAddCmd.Flags()
	f.StringVar(&policyAdd.RuleID, "id", "", "Rule ID (required)")
	f.StringVar(&policyAdd.Name, "name", "", "Rule name (required)")
	f.StringVar(&policyAdd.Description, "description", "", "Rule description")
	f.StringVar(&policyAdd.Condition, "condition", "", "Condition expression (required)")
	f.StringVar((*string)(&policyAdd.Action), "action", string(models.ActionDeny),
		"Action: allow, deny, audit, require_mfa, require_approval")
	f.IntVar(&policyAdd.Priority, "priority", 0, "Priority; higher runs first")
	_ = policyAddCmd.MarkFlagRequired("id")
	_ = policyAddCmd.MarkFlagRequired("name")
	_ = policyAddCmd.MarkFlagRequired("condition")

	policyListCmd.Flags().BoolVar(&policyAll, "all", false, "Include disabled rules")
	policyEvalCmd.Flags().StringArrayVar(&evalContext, "ctx", nil, "Request context as key=value (repeatable)")
	policyViolationsCmd.Flags().StringVar(&violSubject, "subject", "", "Only this subject")
	policyViolationsCmd.Flags().IntVar(&violHours, "hours", 0, "Window in hours (server default when 0)")
	policyExemptCmd.Flags().DurationVar(&exemptFor, "for", 0, "Exemption lifetime (no expiry when 0)")
	policyExemptCmd.Flags().StringVar(&exemptReason, "reason", "", "Why the exemption was granted")

	policyCmd.AddCommand(
		policyAddCmd,
		policyListCmd,
		policyEvalCmd,
		policyViolationsCmd,
		policyExemptCmd,
		newToggleCmd("enable", "Enable a rule", true),
		newToggleCmd("disable", "Disable a rule", false),
		policyDeleteCmd,
	)
	rootCmd.AddCommand(policyCmd)
}
