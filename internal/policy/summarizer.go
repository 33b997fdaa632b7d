// Package policy classifies supplied policy documents as network-relevant or
// not. The classification is heuristic and informational: it drives warnings
// only and never produces counterexamples.
package policy

import (
	"sort"
	"strings"

	"github.com/aonescu/tip/internal/proof"
	"github.com/aonescu/tip/internal/types"
)

var networkKeywords = []string{"networkpolicy", "tenant", "isolation", "namespace"}

// Summarize classifies every policy document by keyword presence in its
// lower-cased canonical text.
func Summarize(docs []types.PolicyDocument) types.PolicyAnalysis {
	analysis := types.PolicyAnalysis{
		Policies: []types.PolicyInfo{},
		Total:    len(docs),
	}

	for _, doc := range docs {
		relevant := networkRelevant(doc)
		if relevant {
			analysis.NetworkFocusedCount++
		}
		analysis.Policies = append(analysis.Policies, types.PolicyInfo{
			Name:            doc.Name,
			Kind:            doc.Kind,
			Path:            doc.Path,
			NetworkRelevant: relevant,
		})
	}

	sort.Slice(analysis.Policies, func(i, j int) bool {
		if analysis.Policies[i].Kind != analysis.Policies[j].Kind {
			return analysis.Policies[i].Kind < analysis.Policies[j].Kind
		}
		return analysis.Policies[i].Name < analysis.Policies[j].Name
	})

	return analysis
}

func networkRelevant(doc types.PolicyDocument) bool {
	text := strings.ToLower(proof.CanonicalText(doc))
	for _, kw := range networkKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
