// Package prover orchestrates one verification run: index, analyze, and
// either prove or report counterexamples.
package prover

import (
	"sync"

	"go.uber.org/zap"

	"github.com/aonescu/tip/internal/model"
	"github.com/aonescu/tip/internal/netpol"
	"github.com/aonescu/tip/internal/policy"
	"github.com/aonescu/tip/internal/proof"
	"github.com/aonescu/tip/internal/rbac"
	"github.com/aonescu/tip/internal/types"
)

// Prover holds the inputs and the typed index for a single run. The index is
// built once here and treated as read-only afterwards; use one Prover per
// invocation rather than sharing an instance across concurrent runs.
type Prover struct {
	log      *zap.SugaredLogger
	docs     []map[string]any
	policies []types.PolicyDocument
	idx      *model.Index
}

// New indexes the raw documents. The prover holds no state across calls
// beyond what is built here.
func New(log *zap.SugaredLogger, docs []map[string]any, policies []types.PolicyDocument) *Prover {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Prover{
		log:      log,
		docs:     docs,
		policies: policies,
		idx:      model.Build(docs),
	}
}

// Prove runs the analyzers and assembles the result. Analysis is fully
// populated regardless of status; a proof is computed only when no
// counterexample exists.
func (p *Prover) Prove() *types.TipResult {
	var (
		network types.NetworkAnalysis
		netCEs  []types.Counterexample
		grants  types.RBACAnalysis
		rbacCEs []types.Counterexample
	)

	// The two analyzers read the same immutable index and write disjoint
	// results; results are identical with or without the concurrency.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		network, netCEs = netpol.Analyze(p.idx)
	}()
	go func() {
		defer wg.Done()
		grants, rbacCEs = rbac.Analyze(p.idx)
	}()
	wg.Wait()

	policies := policy.Summarize(p.policies)

	analysis := types.Analysis{
		Network:  network,
		RBAC:     grants,
		Policies: policies,
	}

	warnings := append([]string{}, p.idx.Warnings()...)
	if policies.Total > 0 && policies.NetworkFocusedCount == 0 {
		warnings = append(warnings, "No network isolation Gatekeeper constraints detected")
	}

	p.log.Debugw("analysis complete",
		"exposures", len(network.Exposures),
		"dangerousBindings", len(grants.DangerousBindings),
		"warnings", len(warnings))

	counterexamples := append(netCEs, rbacCEs...)
	if len(counterexamples) > 0 {
		p.log.Infow("isolation verification failed", "counterexamples", len(counterexamples))
		return types.Failed(counterexamples, analysis, warnings)
	}

	pf := proof.Build(p.docs, p.policies, analysis)
	p.log.Infow("isolation verified", "digest", pf.Digest, "tenants", pf.Summary.Tenants)
	return types.Passed(pf, analysis, warnings)
}
