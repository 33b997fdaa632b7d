// Package netpol computes per-namespace NetworkPolicy coverage and
// cross-namespace network exposures from the indexed domain model.
package netpol

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"

	"github.com/aonescu/tip/internal/model"
	"github.com/aonescu/tip/internal/types"
)

const reasonUncovered = "Pod is not selected by any NetworkPolicy"

// Analyze walks every known namespace and reports which pods are reachable
// from other tenants. Coverage is always fully populated; exposures double as
// counterexample material.
func Analyze(idx *model.Index) (types.NetworkAnalysis, []types.Counterexample) {
	analysis := types.NetworkAnalysis{
		Coverage:  map[string]types.NamespaceCoverage{},
		Exposures: []types.Exposure{},
	}

	namespaces := idx.NamespaceNames()
	for _, ns := range namespaces {
		pods := idx.PodsIn(ns)
		policies := idx.PoliciesIn(ns)

		coverage := types.NamespaceCoverage{
			PodCount: len(pods),
			Policies: policyNames(policies),
			Isolated: true,
		}

		for _, pod := range pods {
			applicable := selecting(policies, pod)
			target := ns + "/" + pod.Name

			if len(applicable) == 0 {
				coverage.Isolated = false
				analysis.Exposures = append(analysis.Exposures, types.Exposure{
					Source: "*",
					Target: target,
					Vector: "network",
					Reason: reasonUncovered,
					Ports:  []string{"any"},
				})
				continue
			}

			for _, source := range namespaces {
				if source == ns {
					continue
				}
				allowed, reason, policy, ports := crossNamespaceReachable(idx.NamespaceByName(source), applicable)
				if !allowed {
					continue
				}
				coverage.Isolated = false
				analysis.Exposures = append(analysis.Exposures, types.Exposure{
					Source: source,
					Target: target,
					Vector: "network",
					Reason: reason,
					Policy: policy,
					Ports:  ports,
				})
			}
		}

		analysis.Coverage[ns] = coverage
	}

	sort.Slice(analysis.Exposures, func(i, j int) bool {
		a, b := analysis.Exposures[i], analysis.Exposures[j]
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.Policy < b.Policy
	})

	return analysis, counterexamples(analysis.Exposures)
}

// Selects reports whether the policy's podSelector matches the pod: all
// matchLabels pairs must equal pod labels and all matchExpressions must hold.
// A selector with an unknown operator never matches.
func Selects(pol model.NetworkPolicy, pod model.Pod) bool {
	sel, err := metav1.LabelSelectorAsSelector(&pol.Spec.PodSelector)
	if err != nil {
		return false
	}
	return sel.Matches(labels.Set(pod.Labels))
}

func selecting(policies []model.NetworkPolicy, pod model.Pod) []model.NetworkPolicy {
	var applicable []model.NetworkPolicy
	for _, pol := range policies {
		if Selects(pol, pod) {
			applicable = append(applicable, pol)
		}
	}
	return applicable
}

// crossNamespaceReachable decides whether pods in the source namespace can
// send ingress traffic through any of the target pod's applicable policies.
// The first matching rule wins.
func crossNamespaceReachable(source model.Namespace, applicable []model.NetworkPolicy) (bool, string, string, []string) {
	for _, pol := range applicable {
		if !hasIngressType(pol.Spec.PolicyTypes) {
			continue
		}
		// An Ingress-typed policy with no rules denies all traffic; it
		// contributes no exposure.
		if len(pol.Spec.Ingress) == 0 {
			continue
		}
		for _, rule := range pol.Spec.Ingress {
			if allowed, reason := ruleAllows(source, rule); allowed {
				return true, reason, pol.Name, rulePorts(rule)
			}
		}
	}
	return false, "", "", nil
}

func ruleAllows(source model.Namespace, rule networkingv1.NetworkPolicyIngressRule) (bool, string) {
	if len(rule.From) == 0 {
		return true, "Ingress rule allows all namespaces"
	}
	for _, from := range rule.From {
		switch {
		case from.NamespaceSelector != nil:
			if len(from.NamespaceSelector.MatchLabels) == 0 && len(from.NamespaceSelector.MatchExpressions) == 0 {
				return true, "Ingress rule namespaceSelector is empty and matches all namespaces"
			}
			sel, err := metav1.LabelSelectorAsSelector(from.NamespaceSelector)
			if err == nil && sel.Matches(labels.Set(source.Labels)) {
				return true, fmt.Sprintf("Ingress rule namespaceSelector matches namespace %q", source.Name)
			}
		case from.IPBlock != nil:
			// Conservative: an ipBlock is treated as externally reachable.
			return true, "Ingress rule allows an ipBlock"
		default:
			// A podSelector-only block is only relevant intra-namespace.
		}
	}
	return false, ""
}

func hasIngressType(policyTypes []networkingv1.PolicyType) bool {
	for _, pt := range policyTypes {
		if strings.EqualFold(string(pt), string(networkingv1.PolicyTypeIngress)) {
			return true
		}
	}
	return false
}

// rulePorts extracts the rule's ports, de-duplicated; numeric ports sort by
// value and named ports follow lexically.
func rulePorts(rule networkingv1.NetworkPolicyIngressRule) []string {
	seen := map[string]bool{}
	var ports []string
	for _, p := range rule.Ports {
		if p.Port == nil {
			continue
		}
		s := p.Port.String()
		if !seen[s] {
			seen[s] = true
			ports = append(ports, s)
		}
	}
	if len(ports) == 0 {
		return []string{"any"}
	}
	sort.Slice(ports, func(i, j int) bool {
		a, errA := strconv.Atoi(ports[i])
		b, errB := strconv.Atoi(ports[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return ports[i] < ports[j]
		}
	})
	return ports
}

func policyNames(policies []model.NetworkPolicy) []string {
	names := make([]string, 0, len(policies))
	for _, pol := range policies {
		names = append(names, pol.Name)
	}
	return names
}

func counterexamples(exposures []types.Exposure) []types.Counterexample {
	var ces []types.Counterexample
	for _, exp := range exposures {
		desc := fmt.Sprintf("%s is reachable from namespace %q: %s", exp.Target, exp.Source, exp.Reason)
		if exp.Source == "*" {
			desc = fmt.Sprintf("%s is reachable from any namespace: %s", exp.Target, exp.Reason)
		}
		ces = append(ces, types.Counterexample{
			Type:        types.CounterexampleNetworkPortScan,
			Severity:    types.SeverityCritical,
			Source:      exp.Source,
			Target:      exp.Target,
			Description: desc,
			Steps: []types.Step{
				{Action: "enumerate-pods", Params: map[string]any{"namespace": exp.Source}},
				{Action: "connect", Params: map[string]any{
					"from":      exp.Source,
					"to":        exp.Target,
					"ports":     exp.Ports,
					"rationale": exp.Reason,
				}},
			},
		})
	}
	return ces
}
