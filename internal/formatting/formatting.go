package formatting

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aonescu/tip/internal/types"
)

// FormatReport renders a human-readable account of a verification result,
// suitable for stderr alongside the machine-readable JSON on stdout.
func FormatReport(result *types.TipResult) string {
	var output strings.Builder

	output.WriteString(fmt.Sprintf("STATUS: %s\n", result.Status))
	if result.Proof != nil {
		output.WriteString(fmt.Sprintf("Proof digest: %s\n", result.Proof.Digest))
	}

	for _, ce := range result.Counterexamples {
		output.WriteString(FormatCounterexample(ce))
	}

	if len(result.Warnings) > 0 {
		output.WriteString("\nWARNINGS\n")
		output.WriteString("────────────────────────\n")
		for _, w := range result.Warnings {
			output.WriteString(fmt.Sprintf("• %s\n", w))
		}
	}

	return output.String()
}

// FormatCounterexample renders one violation with its reproduction steps.
func FormatCounterexample(ce types.Counterexample) string {
	var output strings.Builder

	output.WriteString("\nISSUE\n")
	output.WriteString("────────────────────────\n")
	output.WriteString(fmt.Sprintf("%s: %s\n", ce.Type, ce.Target))
	output.WriteString(fmt.Sprintf("Severity: %s\n\n", ce.Severity))

	output.WriteString("CAUSE\n")
	output.WriteString("────────────────────────\n")
	output.WriteString(fmt.Sprintf("%s\n\n", ce.Description))

	output.WriteString("REPRODUCTION\n")
	output.WriteString("────────────────────────\n")
	for i, step := range ce.Steps {
		output.WriteString(fmt.Sprintf("%d. %s%s\n", i+1, step.Action, formatParams(step.Params)))
	}

	return output.String()
}

// formatParams renders step parameters in key order so output is stable.
func formatParams(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, params[k]))
	}
	return fmt.Sprintf(" (%s)", strings.Join(parts, ", "))
}
