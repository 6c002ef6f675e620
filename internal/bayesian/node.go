// Package bayesian implements the constrained Bayesian sampler: nodes with
// conditional probability trees, ancestral sampling, and depth-first
// backtracking sampling under per-node allowed-value restrictions.
package bayesian

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Assignment is a mapping of node name to sampled (or forced) value.
type Assignment map[string]string

// Clone returns a shallow copy of the assignment.
func (a Assignment) Clone() Assignment {
	out := make(Assignment, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// CPT is a conditional probability tree. An interior node
// carries Deeper (a mapping from a parent value to the sub-tree for the
// next parent) and/or Skip (the sub-tree used when the parent value
// wasn't observed in Deeper). A leaf carries Leaf, a value→probability
// mapping. LeafOrder and DeeperOrder preserve the declaration order of
// the training data's JSON: ancestral sampling's default order and the
// weighted-sampling tie-break rely on LeafOrder, and constraint
// closure's tree walk relies on DeeperOrder, for determinism.
type CPT struct {
	Deeper      map[string]*CPT
	DeeperOrder []string
	Skip        *CPT
	Leaf        map[string]float64
	LeafOrder   []string
}

// UnmarshalJSON decodes a CPT, preserving the object's key declaration
// order for leaf distributions and deeper branches. A plain
// json.Unmarshal into map[string]any loses that order, which would make
// ancestral sampling's tie-break and constraint closure's induced value
// lists non-deterministic across otherwise-identical runs.
func (c *CPT) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("bayesian: cpt: expected object, got %v", tok)
	}

	raw := make(map[string]json.RawMessage)
	order := make([]string, 0, 4)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("bayesian: cpt: expected string key, got %v", keyTok)
		}
		var rm json.RawMessage
		if err := dec.Decode(&rm); err != nil {
			return err
		}
		raw[key] = rm
		order = append(order, key)
	}

	if deeperRaw, ok := raw["deeper"]; ok {
		deeper, deeperOrder, err := decodeDeeper(deeperRaw)
		if err != nil {
			return err
		}
		c.Deeper = deeper
		c.DeeperOrder = deeperOrder
	}
	if skipRaw, ok := raw["skip"]; ok {
		var skip CPT
		if err := json.Unmarshal(skipRaw, &skip); err != nil {
			return err
		}
		c.Skip = &skip
	}

	if c.Deeper == nil && c.Skip == nil {
		c.Leaf = make(map[string]float64, len(raw))
		c.LeafOrder = make([]string, 0, len(raw))
		for _, key := range order {
			var f float64
			if err := json.Unmarshal(raw[key], &f); err != nil {
				continue
			}
			c.Leaf[key] = f
			c.LeafOrder = append(c.LeafOrder, key)
		}
	}

	return nil
}

// decodeDeeper decodes a deeper branch map along with its key declaration
// order.
func decodeDeeper(data []byte) (map[string]*CPT, []string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("bayesian: cpt: expected deeper object, got %v", tok)
	}

	deeper := make(map[string]*CPT)
	var order []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("bayesian: cpt: expected string key, got %v", keyTok)
		}
		var sub CPT
		if err := dec.Decode(&sub); err != nil {
			return nil, nil, err
		}
		deeper[key] = &sub
		order = append(order, key)
	}
	return deeper, order, nil
}

// IsLeaf reports whether this node of the tree is a terminal distribution.
func (c *CPT) IsLeaf() bool {
	return c != nil && c.Deeper == nil && c.Skip == nil
}

// NodeDefinition is the wire shape of one network node.
type NodeDefinition struct {
	Name                     string   `json:"name"`
	ParentNames              []string `json:"parentNames"`
	PossibleValues           []string `json:"possibleValues"`
	ConditionalProbabilities *CPT     `json:"conditionalProbabilities"`
}

// Node is a single node of a Bayesian network.
type Node struct {
	Name           string
	ParentNames    []string
	PossibleValues []string
	cpt            *CPT
}

// NewNode builds a Node from its wire definition.
func NewNode(def NodeDefinition) *Node {
	return &Node{
		Name:           def.Name,
		ParentNames:    def.ParentNames,
		PossibleValues: def.PossibleValues,
		cpt:            def.ConditionalProbabilities,
	}
}

// distribution walks the node's CPT by its parents' values in the
// assignment. It returns
// the leaf reached (nil if the walk runs out of deeper/skip branches
// before the parent list is exhausted — an empty distribution).
func (n *Node) distribution(a Assignment) *CPT {
	cur := n.cpt
	for _, parent := range n.ParentNames {
		if cur == nil {
			return nil
		}
		if next, ok := cur.Deeper[a[parent]]; ok {
			cur = next
			continue
		}
		if cur.Skip != nil {
			cur = cur.Skip
			continue
		}
		return nil
	}
	return cur
}

// sampleFrom draws a value from order using the weights in leaf:
// draw a uniform anchor, walk order accumulating
// probability mass, return the first value whose cumulative sum exceeds
// the anchor (or order[0] on a rounding shortfall).
func sampleFrom(anchor float64, leaf *CPT, order []string) string {
	if len(order) == 0 {
		return ""
	}
	cumulative := 0.0
	for _, v := range order {
		cumulative += leaf.Leaf[v]
		if cumulative > anchor {
			return v
		}
	}
	return order[0]
}

// Sample draws this node's value from its conditional distribution given
// the parents in a, with no allowed/banned restriction (ancestral
// sampling), using the leaf's declared key order as the iteration order.
func (n *Node) Sample(anchor float64, a Assignment) string {
	leaf := n.distribution(a)
	if leaf == nil || len(leaf.LeafOrder) == 0 {
		return ""
	}
	return sampleFrom(anchor, leaf, leaf.LeafOrder)
}

// SampleConstrained draws this node's value respecting allowed (in the
// order given) and excluding banned. It reports ok=false when
// no candidate value remains.
func (n *Node) SampleConstrained(anchor float64, a Assignment, allowed []string, banned []string) (string, bool) {
	leaf := n.distribution(a)
	if leaf == nil {
		return "", false
	}

	bannedSet := make(map[string]struct{}, len(banned))
	for _, b := range banned {
		bannedSet[b] = struct{}{}
	}

	valid := make([]string, 0, len(allowed))
	for _, v := range allowed {
		if _, isBanned := bannedSet[v]; isBanned {
			continue
		}
		if _, inDistribution := leaf.Leaf[v]; inDistribution {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return "", false
	}
	// Renormalization is deliberately skipped: weighted selection walks
	// the raw probabilities from the full leaf against the anchor, so a
	// constraint that narrows the candidate set shifts mass implicitly
	// by truncating the cumulative walk.
	return sampleFrom(anchor, leaf, valid), true
}
