package model

import (
	"testing"

	"github.com/stretchr/testify/require"
	networkingv1 "k8s.io/api/networking/v1"
)

func TestBuildSkipsDocumentsWithoutKindOrName(t *testing.T) {
	idx := Build([]map[string]any{
		{"metadata": map[string]any{"name": "no-kind"}},
		{"kind": "Namespace"},
		{"kind": "Namespace", "metadata": map[string]any{}},
		{"kind": "CustomThing", "metadata": map[string]any{"name": "ignored-kind"}},
	})

	require.Empty(t, idx.NamespaceNames())
	require.Empty(t, idx.Warnings())
}

func TestBuildIndexesNamespacesAndPods(t *testing.T) {
	idx := Build([]map[string]any{
		{
			"kind": "Namespace",
			"metadata": map[string]any{
				"name":   "tenant-a",
				"labels": map[string]any{"team": "a"},
			},
		},
		{
			"kind": "Pod",
			"metadata": map[string]any{
				"name":      "web",
				"namespace": "tenant-a",
				"labels":    map[string]any{"app": "web"},
			},
		},
		{
			// No namespace: skipped.
			"kind":     "Pod",
			"metadata": map[string]any{"name": "orphan"},
		},
	})

	require.Equal(t, []string{"tenant-a"}, idx.NamespaceNames())
	require.Equal(t, "a", idx.NamespaceByName("tenant-a").Labels["team"])

	pods := idx.PodsIn("tenant-a")
	require.Len(t, pods, 1)
	require.Equal(t, "web", pods[0].Name)
	require.Equal(t, "web", pods[0].Labels["app"])
}

func TestBuildSynthesizesDeploymentTemplatePod(t *testing.T) {
	idx := Build([]map[string]any{
		{
			"kind": "Deployment",
			"metadata": map[string]any{
				"name":      "api",
				"namespace": "tenant-a",
			},
			"spec": map[string]any{
				"template": map[string]any{
					"metadata": map[string]any{
						"labels": map[string]any{"app": "api"},
					},
				},
			},
		},
	})

	pods := idx.PodsIn("tenant-a")
	require.Len(t, pods, 1)
	require.Equal(t, "api-template", pods[0].Name)
	require.Equal(t, "api", pods[0].Labels["app"])
}

func TestBuildDefaultsNetworkPolicyTypes(t *testing.T) {
	idx := Build([]map[string]any{
		{
			"kind": "NetworkPolicy",
			"metadata": map[string]any{
				"name":      "bare",
				"namespace": "tenant-a",
			},
		},
	})

	policies := idx.PoliciesIn("tenant-a")
	require.Len(t, policies, 1)
	require.Equal(t, []networkingv1.PolicyType{networkingv1.PolicyTypeIngress}, policies[0].Spec.PolicyTypes)
	require.Empty(t, policies[0].Spec.Ingress)
	require.Empty(t, policies[0].Spec.PodSelector.MatchLabels)
}

func TestBuildWarnsOnDuplicateNamespace(t *testing.T) {
	idx := Build([]map[string]any{
		{
			"kind": "Namespace",
			"metadata": map[string]any{
				"name":   "tenant-a",
				"labels": map[string]any{"rev": "first"},
			},
		},
		{
			"kind": "Namespace",
			"metadata": map[string]any{
				"name":   "tenant-a",
				"labels": map[string]any{"rev": "second"},
			},
		},
	})

	require.Len(t, idx.Warnings(), 1)
	require.Contains(t, idx.Warnings()[0], `duplicate Namespace manifest "tenant-a"`)
	// Last definition wins.
	require.Equal(t, "second", idx.NamespaceByName("tenant-a").Labels["rev"])
}

func TestBuildNamespaceNamesIncludeUndeclaredPodNamespaces(t *testing.T) {
	idx := Build([]map[string]any{
		{
			"kind":     "Namespace",
			"metadata": map[string]any{"name": "declared"},
		},
		{
			"kind": "Pod",
			"metadata": map[string]any{
				"name":      "stray",
				"namespace": "undeclared",
			},
		},
	})

	require.Equal(t, []string{"declared", "undeclared"}, idx.NamespaceNames())
	require.False(t, idx.NamespaceByName("undeclared").Declared)
	require.Empty(t, idx.NamespaceByName("undeclared").Labels)
}

func TestBuildIndexesRBACObjects(t *testing.T) {
	idx := Build([]map[string]any{
		{
			"kind":     "ClusterRole",
			"metadata": map[string]any{"name": "admin-ish"},
			"rules": []any{
				map[string]any{
					"apiGroups": []any{""},
					"resources": []any{"secrets"},
					"verbs":     []any{"get"},
				},
			},
		},
		{
			"kind": "Role",
			"metadata": map[string]any{
				"name":      "pod-lister",
				"namespace": "tenant-a",
			},
			"rules": []any{
				map[string]any{
					"apiGroups": []any{""},
					"resources": []any{"pods"},
					"verbs":     []any{"list"},
				},
			},
		},
		{
			"kind": "RoleBinding",
			"metadata": map[string]any{
				"name":      "bind",
				"namespace": "tenant-a",
			},
			"roleRef":  map[string]any{"kind": "ClusterRole", "name": "admin-ish"},
			"subjects": []any{map[string]any{"kind": "ServiceAccount", "name": "deployer"}},
		},
		{
			"kind": "ServiceAccount",
			"metadata": map[string]any{
				"name":      "deployer",
				"namespace": "tenant-a",
			},
		},
	})

	role, ok := idx.ClusterRole("admin-ish")
	require.True(t, ok)
	require.Len(t, role.Rules, 1)
	require.Equal(t, []string{"secrets"}, role.Rules[0].Resources)

	nsRole, ok := idx.NamespacedRole("tenant-a", "pod-lister")
	require.True(t, ok)
	require.False(t, nsRole.ClusterScoped)
	require.Equal(t, []string{"pods"}, nsRole.Rules[0].Resources)

	_, ok = idx.NamespacedRole("tenant-b", "pod-lister")
	require.False(t, ok)

	bindings := idx.Bindings()
	require.Len(t, bindings, 1)
	require.Equal(t, "tenant-a", bindings[0].Namespace)
	require.False(t, bindings[0].ClusterScoped)
	require.Len(t, bindings[0].Subjects, 1)

	require.Equal(t, 1, idx.ServiceAccountCount())
}

func TestBindingsReturnsACopy(t *testing.T) {
	idx := Build([]map[string]any{
		{
			"kind":     "ClusterRoleBinding",
			"metadata": map[string]any{"name": "bind"},
			"roleRef":  map[string]any{"kind": "ClusterRole", "name": "admin-ish"},
		},
	})

	bindings := idx.Bindings()
	require.Len(t, bindings, 1)
	bindings[0].Name = "tampered"

	require.Equal(t, "bind", idx.Bindings()[0].Name)
}

func TestBuildSortsPodsAndPoliciesByName(t *testing.T) {
	idx := Build([]map[string]any{
		{"kind": "Pod", "metadata": map[string]any{"name": "zeta", "namespace": "ns"}},
		{"kind": "Pod", "metadata": map[string]any{"name": "alpha", "namespace": "ns"}},
		{"kind": "NetworkPolicy", "metadata": map[string]any{"name": "z-pol", "namespace": "ns"}},
		{"kind": "NetworkPolicy", "metadata": map[string]any{"name": "a-pol", "namespace": "ns"}},
	})

	pods := idx.PodsIn("ns")
	require.Equal(t, "alpha", pods[0].Name)
	require.Equal(t, "zeta", pods[1].Name)

	policies := idx.PoliciesIn("ns")
	require.Equal(t, "a-pol", policies[0].Name)
	require.Equal(t, "z-pol", policies[1].Name)
}
