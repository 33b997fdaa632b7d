package model

import (
	networkingv1 "k8s.io/api/networking/v1"
	rbacv1 "k8s.io/api/rbac/v1"
)

// Namespace is a tenant boundary. Declared is false for namespaces that are
// only referenced by workloads and have no Namespace manifest of their own;
// such namespaces carry an empty label set.
type Namespace struct {
	Name     string
	Labels   map[string]string
	Declared bool
}

// Pod is a workload instance, synthesized also from Deployment pod templates.
type Pod struct {
	Name      string
	Namespace string
	Labels    map[string]string
}

// NetworkPolicy keeps the upstream spec so selector and rule semantics stay
// the API server's own types.
type NetworkPolicy struct {
	Name      string
	Namespace string
	Spec      networkingv1.NetworkPolicySpec
}

// Role models both Role and ClusterRole; ClusterScoped roles have no
// namespace.
type Role struct {
	Name          string
	Namespace     string
	ClusterScoped bool
	Rules         []rbacv1.PolicyRule
}

// Binding models both RoleBinding and ClusterRoleBinding.
type Binding struct {
	Name          string
	Namespace     string
	ClusterScoped bool
	RoleRef       rbacv1.RoleRef
	Subjects      []rbacv1.Subject
}

// ServiceAccount is keyed by (namespace, name).
type ServiceAccount struct {
	Name      string
	Namespace string
}
