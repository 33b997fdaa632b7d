package model

import (
	"encoding/json"
	"fmt"
	"sort"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	rbacv1 "k8s.io/api/rbac/v1"
)

// Index is an immutable snapshot of the typed domain model, built once per
// verification run. It exposes read accessors only; nothing mutates it after
// Build returns. Accessors return fresh slices, but nested label maps and
// rule slices alias the index and must be treated as read-only.
type Index struct {
	namespaces      map[string]Namespace
	pods            []Pod
	policies        []NetworkPolicy
	clusterRoles    map[string]Role
	roles           map[string]Role
	bindings        []Binding
	serviceAccounts map[string]ServiceAccount
	warnings        []string
}

// Build converts a list of raw parsed documents into the typed domain model.
// Documents missing kind or metadata.name are silently skipped; unrecognized
// kinds are ignored. Optional fields default per kind, so Build never fails
// on well-formed-but-incomplete input.
func Build(docs []map[string]any) *Index {
	idx := &Index{
		namespaces:      map[string]Namespace{},
		clusterRoles:    map[string]Role{},
		roles:           map[string]Role{},
		serviceAccounts: map[string]ServiceAccount{},
	}

	for _, doc := range docs {
		kind, name := docIdentity(doc)
		if kind == "" || name == "" {
			continue
		}
		idx.add(kind, doc)
	}

	sort.Slice(idx.pods, func(i, j int) bool {
		if idx.pods[i].Namespace != idx.pods[j].Namespace {
			return idx.pods[i].Namespace < idx.pods[j].Namespace
		}
		return idx.pods[i].Name < idx.pods[j].Name
	})
	sort.Slice(idx.policies, func(i, j int) bool {
		if idx.policies[i].Namespace != idx.policies[j].Namespace {
			return idx.policies[i].Namespace < idx.policies[j].Namespace
		}
		return idx.policies[i].Name < idx.policies[j].Name
	})

	return idx
}

func (idx *Index) add(kind string, doc map[string]any) {
	switch kind {
	case "Namespace":
		var ns corev1.Namespace
		if err := decodeInto(doc, &ns); err != nil {
			return
		}
		if existing, ok := idx.namespaces[ns.Name]; ok && existing.Declared {
			// Last definition wins, but collisions are worth flagging.
			idx.warnings = append(idx.warnings,
				fmt.Sprintf("duplicate Namespace manifest %q: keeping the last definition", ns.Name))
		}
		idx.namespaces[ns.Name] = Namespace{Name: ns.Name, Labels: ns.Labels, Declared: true}

	case "Pod":
		var pod corev1.Pod
		if err := decodeInto(doc, &pod); err != nil {
			return
		}
		if pod.Namespace == "" {
			return
		}
		idx.addPod(Pod{Name: pod.Name, Namespace: pod.Namespace, Labels: pod.Labels})

	case "Deployment":
		var dep appsv1.Deployment
		if err := decodeInto(doc, &dep); err != nil {
			return
		}
		if dep.Namespace == "" {
			return
		}
		idx.addPod(Pod{
			Name:      dep.Name + "-template",
			Namespace: dep.Namespace,
			Labels:    dep.Spec.Template.Labels,
		})

	case "NetworkPolicy":
		var pol networkingv1.NetworkPolicy
		if err := decodeInto(doc, &pol); err != nil {
			return
		}
		if pol.Namespace == "" {
			return
		}
		if len(pol.Spec.PolicyTypes) == 0 {
			pol.Spec.PolicyTypes = []networkingv1.PolicyType{networkingv1.PolicyTypeIngress}
		}
		idx.policies = append(idx.policies, NetworkPolicy{
			Name:      pol.Name,
			Namespace: pol.Namespace,
			Spec:      pol.Spec,
		})

	case "Role":
		var role rbacv1.Role
		if err := decodeInto(doc, &role); err != nil {
			return
		}
		idx.roles[role.Namespace+"/"+role.Name] = Role{
			Name:      role.Name,
			Namespace: role.Namespace,
			Rules:     role.Rules,
		}

	case "ClusterRole":
		var role rbacv1.ClusterRole
		if err := decodeInto(doc, &role); err != nil {
			return
		}
		idx.clusterRoles[role.Name] = Role{
			Name:          role.Name,
			ClusterScoped: true,
			Rules:         role.Rules,
		}

	case "RoleBinding":
		var rb rbacv1.RoleBinding
		if err := decodeInto(doc, &rb); err != nil {
			return
		}
		idx.bindings = append(idx.bindings, Binding{
			Name:      rb.Name,
			Namespace: rb.Namespace,
			RoleRef:   rb.RoleRef,
			Subjects:  rb.Subjects,
		})

	case "ClusterRoleBinding":
		var crb rbacv1.ClusterRoleBinding
		if err := decodeInto(doc, &crb); err != nil {
			return
		}
		idx.bindings = append(idx.bindings, Binding{
			Name:          crb.Name,
			ClusterScoped: true,
			RoleRef:       crb.RoleRef,
			Subjects:      crb.Subjects,
		})

	case "ServiceAccount":
		var sa corev1.ServiceAccount
		if err := decodeInto(doc, &sa); err != nil {
			return
		}
		if sa.Namespace == "" {
			return
		}
		idx.serviceAccounts[sa.Namespace+"/"+sa.Name] = ServiceAccount{
			Name:      sa.Name,
			Namespace: sa.Namespace,
		}
	}
}

func (idx *Index) addPod(pod Pod) {
	idx.pods = append(idx.pods, pod)
	if _, ok := idx.namespaces[pod.Namespace]; !ok {
		idx.namespaces[pod.Namespace] = Namespace{Name: pod.Namespace}
	}
}

// NamespaceNames returns every known namespace in lexical order: declared
// Namespace manifests plus namespaces referenced by indexed pods.
func (idx *Index) NamespaceNames() []string {
	names := make([]string, 0, len(idx.namespaces))
	for name := range idx.namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NamespaceByName returns the namespace, with an empty label set when only
// referenced, never declared.
func (idx *Index) NamespaceByName(name string) Namespace {
	return idx.namespaces[name]
}

// PodsIn returns the namespace's pods sorted by name.
func (idx *Index) PodsIn(namespace string) []Pod {
	var pods []Pod
	for _, pod := range idx.pods {
		if pod.Namespace == namespace {
			pods = append(pods, pod)
		}
	}
	return pods
}

// PoliciesIn returns the namespace's NetworkPolicies sorted by name.
func (idx *Index) PoliciesIn(namespace string) []NetworkPolicy {
	var policies []NetworkPolicy
	for _, pol := range idx.policies {
		if pol.Namespace == namespace {
			policies = append(policies, pol)
		}
	}
	return policies
}

// ClusterRole resolves a ClusterRole by name.
func (idx *Index) ClusterRole(name string) (Role, bool) {
	role, ok := idx.clusterRoles[name]
	return role, ok
}

// NamespacedRole resolves a Role by (namespace, name).
func (idx *Index) NamespacedRole(namespace, name string) (Role, bool) {
	role, ok := idx.roles[namespace+"/"+name]
	return role, ok
}

// Bindings returns a copy of the RoleBindings and ClusterRoleBindings in
// input order.
func (idx *Index) Bindings() []Binding {
	bindings := make([]Binding, len(idx.bindings))
	copy(bindings, idx.bindings)
	return bindings
}

// ServiceAccountCount counts distinct (namespace, name) ServiceAccounts.
func (idx *Index) ServiceAccountCount() int {
	return len(idx.serviceAccounts)
}

// Warnings returns lint findings gathered while indexing.
func (idx *Index) Warnings() []string {
	return idx.warnings
}

func docIdentity(doc map[string]any) (kind, name string) {
	kind, _ = doc["kind"].(string)
	meta, _ := doc["metadata"].(map[string]any)
	name, _ = meta["name"].(string)
	return kind, name
}

// decodeInto converts a raw document into an upstream typed object via a
// JSON round trip, tolerating absent optional fields.
func decodeInto(doc map[string]any, out any) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
