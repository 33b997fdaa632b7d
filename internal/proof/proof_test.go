package proof

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aonescu/tip/internal/types"
)

func TestCanonicalJSONSortsMapKeysRecursively(t *testing.T) {
	b, err := CanonicalJSON(map[string]any{
		"zeta":  1,
		"alpha": map[string]any{"nested-z": true, "nested-a": false},
	})
	require.NoError(t, err)
	require.Equal(t, `{"alpha":{"nested-a":false,"nested-z":true},"zeta":1}`, string(b))
}

func TestCanonicalJSONFlattensStructsToSortedMaps(t *testing.T) {
	// Struct field order must not leak into the canonical form.
	b, err := CanonicalJSON(types.Exposure{
		Source: "a",
		Target: "b",
		Vector: "network",
		Reason: "r",
		Ports:  []string{"443"},
	})
	require.NoError(t, err)
	require.Equal(t, `{"ports":["443"],"reason":"r","source":"a","target":"b","vector":"network"}`, string(b))
}

func TestCanonicalJSONPreservesListOrder(t *testing.T) {
	b, err := CanonicalJSON([]any{"c", "a", "b"})
	require.NoError(t, err)
	require.Equal(t, `["c","a","b"]`, string(b))
}

func testDocs() []map[string]any {
	return []map[string]any{
		{
			"apiVersion": "v1",
			"kind":       "Namespace",
			"metadata":   map[string]any{"name": "tenant-a", "labels": map[string]any{"team": "a"}},
		},
		{
			"apiVersion": "v1",
			"kind":       "Pod",
			"metadata":   map[string]any{"name": "web", "namespace": "tenant-a"},
			"spec":       map[string]any{"containers": []any{map[string]any{"name": "web"}}},
		},
		{
			"apiVersion": "networking.k8s.io/v1",
			"kind":       "NetworkPolicy",
			"metadata":   map[string]any{"name": "deny-all", "namespace": "tenant-a"},
			"spec":       map[string]any{"policyTypes": []any{"Ingress"}},
		},
	}
}

func testAnalysis() types.Analysis {
	return types.Analysis{
		Network: types.NetworkAnalysis{
			Coverage: map[string]types.NamespaceCoverage{
				"tenant-a": {PodCount: 1, Policies: []string{"deny-all"}, Isolated: true},
				"tenant-b": {PodCount: 0, Policies: []string{}, Isolated: false},
			},
			Exposures: []types.Exposure{},
		},
		RBAC: types.RBACAnalysis{
			DangerousBindings:   []types.DangerousBinding{},
			ServiceAccountCount: 2,
		},
		Policies: types.PolicyAnalysis{
			Policies:            []types.PolicyInfo{},
			Total:               1,
			NetworkFocusedCount: 1,
		},
	}
}

func TestBuildDigestIsOrderIndependent(t *testing.T) {
	docs := testDocs()
	policies := []types.PolicyDocument{
		{Name: "a", Kind: "ConstraintTemplate", Body: map[string]any{"kind": "ConstraintTemplate"}},
		{Name: "b", Kind: "RegoModule", Raw: "package k8s\n"},
	}
	analysis := testAnalysis()

	first := Build(docs, policies, analysis)

	shuffledDocs := make([]map[string]any, len(docs))
	copy(shuffledDocs, docs)
	rand.New(rand.NewSource(7)).Shuffle(len(shuffledDocs), func(i, j int) {
		shuffledDocs[i], shuffledDocs[j] = shuffledDocs[j], shuffledDocs[i]
	})
	shuffledPolicies := []types.PolicyDocument{policies[1], policies[0]}

	second := Build(shuffledDocs, shuffledPolicies, analysis)

	require.Equal(t, first.Digest, second.Digest)
	require.Equal(t, first.ResourcesHashed, second.ResourcesHashed)
	require.Len(t, first.Digest, 64)
}

func TestBuildDigestChangesWithInput(t *testing.T) {
	docs := testDocs()
	analysis := testAnalysis()

	first := Build(docs, nil, analysis)

	changed := testDocs()
	changed[1]["metadata"].(map[string]any)["name"] = "web-2"
	second := Build(changed, nil, analysis)

	require.NotEqual(t, first.Digest, second.Digest)
}

func TestBuildResourcesHashedAreCanonicalAndSorted(t *testing.T) {
	pf := Build(testDocs(), nil, testAnalysis())

	require.Len(t, pf.ResourcesHashed, 3)
	// Sorted by (kind, namespace, name): Namespace < NetworkPolicy < Pod.
	require.Contains(t, pf.ResourcesHashed[0], `"kind":"Namespace"`)
	require.Contains(t, pf.ResourcesHashed[1], `"kind":"NetworkPolicy"`)
	require.Contains(t, pf.ResourcesHashed[2], `"kind":"Pod"`)
	require.Equal(t,
		`{"apiVersion":"v1","kind":"Namespace","metadata":{"labels":{"team":"a"},"name":"tenant-a","namespace":""}}`,
		pf.ResourcesHashed[0])
}

func TestBuildSummary(t *testing.T) {
	policies := []types.PolicyDocument{{Name: "a", Kind: "ConstraintTemplate", Body: map[string]any{}}}
	pf := Build(testDocs(), policies, testAnalysis())

	require.Equal(t, 1, pf.PolicyCount)
	require.Equal(t, 2, pf.Summary.Tenants)
	require.Equal(t, 1, pf.Summary.IsolatedTenants)
	require.Equal(t, 0, pf.Summary.DangerousBindings)
	require.Equal(t, 1, pf.Summary.NetworkFocusedCount)
}
