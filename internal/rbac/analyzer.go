// Package rbac detects ServiceAccounts that can reach dangerous ClusterRole
// permissions through direct or namespace-scoped bindings.
package rbac

import (
	"fmt"
	"sort"

	rbacv1 "k8s.io/api/rbac/v1"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/aonescu/tip/internal/model"
	"github.com/aonescu/tip/internal/types"
)

var (
	writeVerbs         = sets.New("create", "update", "patch", "delete", "*")
	sensitiveResources = sets.New("secrets", "roles", "clusterroles", "serviceaccounts")
	readVerbs          = sets.New("get", "list", "watch", "*")
)

// Analyze resolves every ClusterRoleBinding, and every RoleBinding that
// references a ClusterRole, against the indexed ClusterRoles and records the
// ServiceAccount subjects of dangerous ones.
func Analyze(idx *model.Index) (types.RBACAnalysis, []types.Counterexample) {
	analysis := types.RBACAnalysis{
		DangerousBindings:   []types.DangerousBinding{},
		ServiceAccountCount: idx.ServiceAccountCount(),
	}

	for _, binding := range idx.Bindings() {
		if binding.RoleRef.Kind != "ClusterRole" {
			continue
		}
		role, ok := idx.ClusterRole(binding.RoleRef.Name)
		if !ok {
			continue
		}
		reason, dangerous := DangerousRole(role)
		if !dangerous {
			continue
		}
		for _, subject := range binding.Subjects {
			if subject.Kind != rbacv1.ServiceAccountKind {
				continue
			}
			ns := subject.Namespace
			if ns == "" {
				// A subject on a namespace-scoped binding inherits the
				// binding's namespace; on a cluster-scoped binding it cannot
				// be resolved to a tenant.
				ns = binding.Namespace
			}
			if ns == "" {
				continue
			}
			analysis.DangerousBindings = append(analysis.DangerousBindings, types.DangerousBinding{
				ServiceAccount: ns + "/" + subject.Name,
				Role:           role.Name,
				Binding:        binding.Name,
				Reason:         reason,
			})
		}
	}

	sort.Slice(analysis.DangerousBindings, func(i, j int) bool {
		a, b := analysis.DangerousBindings[i], analysis.DangerousBindings[j]
		if a.ServiceAccount != b.ServiceAccount {
			return a.ServiceAccount < b.ServiceAccount
		}
		if a.Role != b.Role {
			return a.Role < b.Role
		}
		return a.Binding < b.Binding
	})

	return analysis, counterexamples(analysis.DangerousBindings)
}

// DangerousRole reports whether any rule of the role grants wildcard,
// sensitive-object-write, secret-read, or impersonation capability. The first
// matching reason wins.
func DangerousRole(role model.Role) (string, bool) {
	for _, rule := range role.Rules {
		verbs := sets.New(rule.Verbs...)
		resources := sets.New(rule.Resources...)
		switch {
		case verbs.Has("*") || resources.Has("*"):
			return "grants wildcard verbs or resources", true
		case verbs.Intersection(writeVerbs).Len() > 0 && resources.Intersection(sensitiveResources).Len() > 0:
			return "can write sensitive RBAC or secret objects", true
		case verbs.Intersection(readVerbs).Len() > 0 && resources.Has("secrets"):
			return "can read secrets", true
		case verbs.Has("impersonate"):
			return "can impersonate identities", true
		}
	}
	return "", false
}

func counterexamples(bindings []types.DangerousBinding) []types.Counterexample {
	var ces []types.Counterexample
	for _, db := range bindings {
		ces = append(ces, types.Counterexample{
			Type:     types.CounterexampleServiceAccountHop,
			Severity: types.SeverityHigh,
			Source:   db.ServiceAccount,
			Target:   "*",
			Description: fmt.Sprintf("ServiceAccount %s is bound to ClusterRole %q which %s",
				db.ServiceAccount, db.Role, db.Reason),
			Steps: []types.Step{
				{Action: "compromise-service-account", Params: map[string]any{"serviceAccount": db.ServiceAccount}},
				{Action: "use-cluster-role", Params: map[string]any{"role": db.Role, "capability": db.Reason}},
				{Action: "access-cross-tenant", Params: map[string]any{"targetNamespaces": "all"}},
			},
		})
	}
	return ces
}
