package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"blackroad.io/operator/models"
)

var (
	taskRequestedBy   string
	taskOutput        []string
	taskFailReason    string
	taskApprover      string
	taskApprovalToken string
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Drive tasks through the scaffold",
	Long: `Create tasks and move them through the ten scaffold steps.

Every transition is witnessed in the ledger. Steps paused for approval print
an approval token; resume them with "operator task approve".

Examples:
  operator task create "Deploy the marketing website" --by alice
  operator task advance <task-id>
  operator task advance <task-id> --out team=platform --out high_risk=true
  operator task approve <task-id> --approver carol --approval-token <token>`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var taskCreateCmd = &cobra.Command{
	Use:   "create <intent>...",
	Short: "Create a task",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		task, err := c.CreateTask(cmd.Context(), strings.Join(args, " "), taskRequestedBy)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), task, func(w io.Writer) {
			printOK(w, "task %s created", task.TaskID)
			fmt.Fprintf(w, "  Intent: %s\n", task.Intent)
		})
	},
}

var taskAdvanceCmd = &cobra.Command{
	Use:   "advance <task-id>",
	Short: "Complete the task's current step",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, err := parseKV(taskOutput)
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		tr, err := c.AdvanceTask(cmd.Context(), args[0], output)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), tr, func(w io.Writer) { printTransition(w, tr) })
	},
}

var taskFailCmd = &cobra.Command{
	Use:   "fail <task-id>",
	Short: "Record a failure on the task's current step",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		tr, err := c.FailTask(cmd.Context(), args[0], taskFailReason)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), tr, func(w io.Writer) { printTransition(w, tr) })
	},
}

var taskApproveCmd = &cobra.Command{
	Use:   "approve <task-id>",
	Short: "Approve a step paused for manual approval",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, err := parseKV(taskOutput)
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		tr, err := c.ApproveTask(cmd.Context(), args[0], &models.TaskApproveRequest{
			Token:    taskApprovalToken,
			Approver: taskApprover,
			Output:   output,
		})
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), tr, func(w io.Writer) { printTransition(w, tr) })
	},
}

var taskStatusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show a task and its step history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		task, err := c.GetTask(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		status, err := c.TaskStatus(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), task, func(w io.Writer) {
			printHeader(w, "Task "+task.TaskID)
			fmt.Fprintf(w, "  Intent:       %s\n", task.Intent)
			if task.RequestedBy != "" {
				fmt.Fprintf(w, "  Requested by: %s\n", task.RequestedBy)
			}
			if task.Organization != "" {
				fmt.Fprintf(w, "  Organization: %s\n", task.Organization)
			}
			fmt.Fprintf(w, "  Current step: %s (%d/%d completed)\n",
				status.CurrentStep, status.StepsCompleted, status.TotalSteps)
			fmt.Fprintf(w, "  Witness:      %s\n\n", task.WitnessHash)
			for _, r := range task.Steps {
				fmt.Fprintf(w, "  %2d %-24s ", r.Step, r.StepName)
				statusColor(r.Status).Fprintf(w, "%s", r.Status)
				if r.Error != "" {
					dimColor.Fprintf(w, "  %s", r.Error)
				}
				fmt.Fprintln(w)
			}
		})
	},
}

var taskPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List tasks awaiting approval",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		pending, err := c.PendingApprovals(cmd.Context())
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), pending, func(w io.Writer) {
			printHeader(w, fmt.Sprintf("Awaiting approval (%d)", len(pending)))
			for _, s := range pending {
				fmt.Fprintf(w, "  %s  %-22s %s\n", s.TaskID, s.CurrentStep, s.Intent)
			}
		})
	},
}

func init() {
	taskCreateCmd.Flags().StringVar(&taskRequestedBy, "by", "", "Who requested the task")
	taskAdvanceCmd.Flags().StringArrayVar(&taskOutput, "out", nil, "Step output as key=value (repeatable)")
	taskFailCmd.Flags().StringVar(&taskFailReason, "reason", "", "Failure reason (required)")
	_ = taskFailCmd.MarkFlagRequired("reason")
	taskApproveCmd.Flags().StringVar(&taskApprover, "approver", "", "Who approves (required)")
	taskApproveCmd.Flags().StringVar(&taskApprovalToken, "approval-token", "", "Token from the paused step (required)")
	taskApproveCmd.Flags().StringArrayVar(&taskOutput, "out", nil, "Step output as key=value (repeatable)")
	_ = taskApproveCmd.MarkFlagRequired("approver")
	_ = taskApproveCmd.MarkFlagRequired("approval-token")

	taskCmd.AddCommand(taskCreateCmd, taskAdvanceCmd, taskFailCmd, taskApproveCmd, taskStatusCmd, taskPendingCmd)
	rootCmd.AddCommand(taskCmd)
}
