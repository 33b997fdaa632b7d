package types

// Status is the overall outcome of a verification run.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
)

// Severity grades a counterexample.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
)

// Counterexample types emitted by the analyzers.
const (
	CounterexampleNetworkPortScan   = "network-port-scan"
	CounterexampleServiceAccountHop = "service-account-hop"
)

// Step is one reproducible action in a counterexample's attack path.
type Step struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
}

// Counterexample describes one concrete isolation violation.
type Counterexample struct {
	Type        string   `json:"type"`
	Severity    Severity `json:"severity"`
	Source      string   `json:"source,omitempty"`
	Target      string   `json:"target,omitempty"`
	Description string   `json:"description"`
	Steps       []Step   `json:"steps"`
}

// Exposure records that pods in Source can reach Target over the network.
type Exposure struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Vector string   `json:"vector"`
	Reason string   `json:"reason"`
	Policy string   `json:"policy,omitempty"`
	Ports  []string `json:"ports"`
}

// NamespaceCoverage summarizes NetworkPolicy coverage for one namespace.
type NamespaceCoverage struct {
	PodCount int      `json:"podCount"`
	Policies []string `json:"policies"`
	Isolated bool     `json:"isolated"`
}

// NetworkAnalysis is the network analyzer's output.
type NetworkAnalysis struct {
	Coverage  map[string]NamespaceCoverage `json:"coverage"`
	Exposures []Exposure                   `json:"exposures"`
}

// DangerousBinding records a ServiceAccount that can reach dangerous
// ClusterRole permissions through a binding.
type DangerousBinding struct {
	ServiceAccount string `json:"serviceAccount"`
	Role           string `json:"role"`
	Binding        string `json:"binding"`
	Reason         string `json:"reason"`
}

// RBACAnalysis is the RBAC analyzer's output.
type RBACAnalysis struct {
	DangerousBindings   []DangerousBinding `json:"dangerousBindings"`
	ServiceAccountCount int                `json:"serviceAccountCount"`
}

// PolicyInfo classifies one supplied policy document.
type PolicyInfo struct {
	Name            string `json:"name"`
	Kind            string `json:"kind"`
	Path            string `json:"path"`
	NetworkRelevant bool   `json:"networkRelevant"`
}

// PolicyAnalysis is the policy summarizer's output.
type PolicyAnalysis struct {
	Policies            []PolicyInfo `json:"policies"`
	Total               int          `json:"total"`
	NetworkFocusedCount int          `json:"networkFocusedCount"`
}

// Analysis is always fully populated, regardless of pass/fail status.
type Analysis struct {
	Network  NetworkAnalysis `json:"network"`
	RBAC     RBACAnalysis    `json:"rbac"`
	Policies PolicyAnalysis  `json:"policies"`
}

// ProofSummary carries headline figures alongside the digest.
type ProofSummary struct {
	Tenants             int `json:"tenants"`
	IsolatedTenants     int `json:"isolatedTenants"`
	DangerousBindings   int `json:"dangerousBindings"`
	NetworkFocusedCount int `json:"networkFocusedCount"`
}

// Proof is the attestation that no violation was found. It is produced only
// when there are no counterexamples; any party holding the same inputs can
// recompute and verify the digest.
type Proof struct {
	Digest          string       `json:"digest"`
	ResourcesHashed []string     `json:"resourcesHashed"`
	PolicyCount     int          `json:"policyCount"`
	Summary         ProofSummary `json:"summary"`
}

// TipResult is the single value returned to the caller. Exactly one of
// Proof/Counterexamples is populated; construct it through Passed or Failed
// so an invalid combination cannot be built.
type TipResult struct {
	Status          Status           `json:"status"`
	Proof           *Proof           `json:"proof,omitempty"`
	Counterexamples []Counterexample `json:"counterexamples"`
	Analysis        Analysis         `json:"analysis"`
	Warnings        []string         `json:"warnings"`
}

// Passed builds a successful result carrying a proof.
func Passed(proof *Proof, analysis Analysis, warnings []string) *TipResult {
	return &TipResult{
		Status:          StatusPassed,
		Proof:           proof,
		Counterexamples: []Counterexample{},
		Analysis:        analysis,
		Warnings:        nonNil(warnings),
	}
}

// Failed builds a failed result carrying the counterexamples. No digest is
// computed over inputs known to violate isolation.
func Failed(counterexamples []Counterexample, analysis Analysis, warnings []string) *TipResult {
	return &TipResult{
		Status:          StatusFailed,
		Counterexamples: counterexamples,
		Analysis:        analysis,
		Warnings:        nonNil(warnings),
	}
}

// PolicyDocument is a parsed OPA/Gatekeeper policy supplied by the loader.
// Body is nil for opaque modules (Rego files); Raw always holds the original
// text. Policies are inspected for relevance only, never evaluated.
type PolicyDocument struct {
	Name string
	Kind string
	Path string
	Raw  string
	Body map[string]any
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
