package proof

import (
	"encoding/json"

	"github.com/aonescu/tip/internal/types"
)

// CanonicalJSON renders v as deterministic JSON: UTF-8, map keys sorted
// lexicographically at every depth, no insignificant whitespace, list order
// preserved. The value is round-tripped through encoding/json first so that
// struct fields become map entries and the encoder's sorted-key rule applies
// recursively.
func CanonicalJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var normalized any
	if err := json.Unmarshal(b, &normalized); err != nil {
		return nil, err
	}
	return json.Marshal(normalized)
}

// CanonicalText is the hashable form of a policy document: the canonical JSON
// of its parsed body, or the raw text for opaque modules.
func CanonicalText(doc types.PolicyDocument) string {
	if doc.Body == nil {
		return doc.Raw
	}
	b, err := CanonicalJSON(doc.Body)
	if err != nil {
		// The body came out of a JSON-compatible parse; failing to re-encode
		// it means the canonicalization contract is broken.
		panic("proof: canonicalization of policy body failed: " + err.Error())
	}
	return string(b)
}
