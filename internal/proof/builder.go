// Package proof canonicalizes the prover's inputs and analysis into a
// bit-reproducible SHA-256 attestation.
package proof

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/aonescu/tip/internal/types"
)

// Build computes the digest proof over the canonicalized manifests, policy
// documents, and analysis. Callers must only invoke it when no
// counterexamples exist. The digest is independent of input ordering.
func Build(docs []map[string]any, policies []types.PolicyDocument, analysis types.Analysis) *types.Proof {
	manifests := canonicalManifests(docs)

	resourcesHashed := make([]string, 0, len(manifests))
	for _, m := range manifests {
		resourcesHashed = append(resourcesHashed, mustCanonical(m))
	}

	policyTexts := canonicalPolicies(policies)

	payload := map[string]any{
		"manifests": manifests,
		"policies":  policyTexts,
		"analysis":  analysis,
	}
	sum := sha256.Sum256([]byte(mustCanonical(payload)))

	isolated := 0
	for _, cov := range analysis.Network.Coverage {
		if cov.Isolated {
			isolated++
		}
	}

	return &types.Proof{
		Digest:          hex.EncodeToString(sum[:]),
		ResourcesHashed: resourcesHashed,
		PolicyCount:     len(policies),
		Summary: types.ProofSummary{
			Tenants:             len(analysis.Network.Coverage),
			IsolatedTenants:     isolated,
			DangerousBindings:   len(analysis.RBAC.DangerousBindings),
			NetworkFocusedCount: analysis.Policies.NetworkFocusedCount,
		},
	}
}

// canonicalManifests reduces every input document to the hashed shape
// {apiVersion, kind, metadata{name, namespace, labels}, spec?} and sorts by
// (kind, namespace, name), breaking ties by canonical content so documents
// sharing an identity sort the same regardless of input order.
func canonicalManifests(docs []map[string]any) []map[string]any {
	manifests := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		meta, _ := doc["metadata"].(map[string]any)
		name, _ := meta["name"].(string)
		namespace, _ := meta["namespace"].(string)
		labels, ok := meta["labels"].(map[string]any)
		if !ok {
			labels = map[string]any{}
		}
		kind, _ := doc["kind"].(string)
		apiVersion, _ := doc["apiVersion"].(string)

		m := map[string]any{
			"apiVersion": apiVersion,
			"kind":       kind,
			"metadata": map[string]any{
				"name":      name,
				"namespace": namespace,
				"labels":    labels,
			},
		}
		if spec, ok := doc["spec"]; ok {
			m["spec"] = spec
		}
		manifests = append(manifests, m)
	}

	sort.Slice(manifests, func(i, j int) bool {
		ki, kj := manifestKey(manifests[i]), manifestKey(manifests[j])
		if ki != kj {
			return ki < kj
		}
		return mustCanonical(manifests[i]) < mustCanonical(manifests[j])
	})
	return manifests
}

func manifestKey(m map[string]any) string {
	meta := m["metadata"].(map[string]any)
	return m["kind"].(string) + "\x00" + meta["namespace"].(string) + "\x00" + meta["name"].(string)
}

func canonicalPolicies(policies []types.PolicyDocument) []string {
	sorted := make([]types.PolicyDocument, len(policies))
	copy(sorted, policies)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Kind != sorted[j].Kind {
			return sorted[i].Kind < sorted[j].Kind
		}
		return sorted[i].Name < sorted[j].Name
	})

	texts := make([]string, 0, len(sorted))
	for _, doc := range sorted {
		texts = append(texts, CanonicalText(doc))
	}
	return texts
}

func mustCanonical(v any) string {
	b, err := CanonicalJSON(v)
	if err != nil {
		// Everything hashed here is JSON-representable by construction; a
		// failure means the canonicalization contract is broken.
		panic("proof: canonical serialization failed: " + err.Error())
	}
	return string(b)
}
