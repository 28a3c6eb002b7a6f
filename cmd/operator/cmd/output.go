package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"blackroad.io/operator/models"
)

var (
	headerColor = color.New(color.Bold)
	okColor     = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	errColor    = color.New(color.FgRed, color.Bold)
	dimColor    = color.New(color.Faint)
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// emit prints v as JSON when --json is set, otherwise calls human.
func emit(w io.Writer, v interface{}, human func(io.Writer)) error {
	if jsonOutput {
		return printJSON(w, v)
	}
	human(w)
	return nil
}

func printHeader(w io.Writer, title string) {
	headerColor.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("=", len(title)))
}

func printOK(w io.Writer, format string, args ...interface{}) {
	okColor.Fprint(w, "✓ ")
	fmt.Fprintf(w, format+"\n", args...)
}

func printFail(w io.Writer, format string, args ...interface{}) {
	errColor.Fprint(w, "✗ ")
	fmt.Fprintf(w, format+"\n", args...)
}

// actionColor picks the color for a policy decision.
func actionColor(a models.PolicyAction) *color.Color {
	switch a {
	case models.ActionAllow:
		return okColor
	case models.ActionDeny:
		return errColor
	default:
		return warnColor
	}
}

// statusColor picks the color for a scaffold step status.
func statusColor(s models.StepStatus) *color.Color {
	switch s {
	case models.StepCompleted:
		return okColor
	case models.StepFailed:
		return errColor
	case models.StepAwaitingApproval:
		return warnColor
	default:
		return dimColor
	}
}

// parseKV turns key=value pairs into a map. Values "true" and "false"
// become booleans.
func parseKV(pairs []string) (map[string]interface{}, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]interface{}, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid key=value pair %q", p)
		}
		switch v {
		case "true":
			out[k] = true
		case "false":
			out[k] = false
		default:
			out[k] = v
		}
	}
	return out, nil
}

func printTransition(w io.Writer, tr *models.StepTransition) {
	statusColor(tr.Result.Status).Fprintf(w, "%-18s", tr.Result.Status)
	fmt.Fprintf(w, " step %d %s\n", tr.Result.Step, tr.Result.StepName)
	if tr.Result.Error != "" {
		fmt.Fprintf(w, "  Reason:       %s\n", tr.Result.Error)
	}
	fmt.Fprintf(w, "  Next step:    %s (%d/%d completed)\n",
		tr.Status.CurrentStep, tr.Status.StepsCompleted, tr.Status.TotalSteps)
	if tr.Status.Organization != "" {
		fmt.Fprintf(w, "  Organization: %s\n", tr.Status.Organization)
	}
	fmt.Fprintf(w, "  Witness:      %s\n", tr.Status.WitnessHash)
	if tr.LedgerEntry != nil {
		fmt.Fprintf(w, "  Ledger seq:   %d\n", tr.LedgerEntry.Seq)
	}
	if tr.ApprovalToken != "" {
		warnColor.Fprintln(w, "  Approval required. Approve with:")
		fmt.Fprintf(w, "    operator task approve %s --approver <name> --approval-token %s\n",
			tr.Status.TaskID, tr.ApprovalToken)
		if tr.ApprovalExpiresAt != nil {
			fmt.Fprintf(w, "  Token expires: %s\n", tr.ApprovalExpiresAt.Format("2006-01-02 15:04:05 MST"))
		}
	}
}
