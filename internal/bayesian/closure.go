package bayesian

import (
	"sort"

	"idsynth/internal/xerrors"
)

// flatNode is the CPT with its deeper/skip control structure stripped:
// an interior flatNode's children are keyed by parent
// value, directly — no "deeper"/"skip" wrapper — and skip branches are
// dropped entirely, since they represent "parent value unobserved" and
// imply nothing about any particular ancestor value. A terminal flatNode
// carries the leaf's value keys (the node's own possible values).
// childKeys holds the children's declared order; the depth-first walk in
// pathsToKeys follows it so the induced value lists come out in the
// training data's order, not Go's randomized map order.
type flatNode struct {
	childKeys []string
	children  map[string]*flatNode
	leafKeys  []string
}

func flatten(c *CPT) *flatNode {
	if c == nil {
		return &flatNode{}
	}
	if c.Deeper != nil {
		order := c.DeeperOrder
		if order == nil {
			// Hand-built trees may not carry a declared order; sorting
			// keeps the walk reproducible either way.
			order = make([]string, 0, len(c.Deeper))
			for value := range c.Deeper {
				order = append(order, value)
			}
			sort.Strings(order)
		}
		children := make(map[string]*flatNode, len(c.Deeper))
		for _, value := range order {
			children[value] = flatten(c.Deeper[value])
		}
		return &flatNode{childKeys: order, children: children}
	}
	return &flatNode{leafKeys: c.LeafOrder}
}

// pathsToKeys walks the flattened tree depth-first and, for every leaf key
// that appears in validKeys, records the path of ancestor values leading
// to it. Paths are combined index-by-index across all qualifying leaves
// using set union: many paths can lead to a qualifying leaf, and every
// ancestor value on any of them stays allowed.
func pathsToKeys(tree *flatNode, validKeys []string) [][]string {
	valid := make(map[string]struct{}, len(validKeys))
	for _, k := range validKeys {
		valid[k] = struct{}{}
	}

	var out [][]string
	var recurse func(t *flatNode, acc []string)
	recurse = func(t *flatNode, acc []string) {
		if t.children != nil {
			for _, value := range t.childKeys {
				next := append(append([]string{}, acc...), value)
				recurse(t.children[value], next)
			}
			return
		}
		matched := false
		for _, key := range t.leafKeys {
			if _, ok := valid[key]; ok {
				matched = true
				break
			}
		}
		if !matched {
			return
		}
		if len(out) == 0 {
			for _, v := range acc {
				out = append(out, []string{v})
			}
			return
		}
		for i := range out {
			if i >= len(acc) {
				break
			}
			out[i] = unionAppend(out[i], acc[i])
		}
	}

	recurse(tree, nil)
	return out
}

func unionAppend(set []string, v string) []string {
	for _, existing := range set {
		if existing == v {
			return set
		}
	}
	return append(set, v)
}

func intersect(a, b []string) []string {
	bSet := make(map[string]struct{}, len(b))
	for _, x := range b {
		bSet[x] = struct{}{}
	}
	var out []string
	for _, x := range a {
		if _, ok := bSet[x]; ok {
			out = append(out, x)
		}
	}
	return out
}

// ConstraintClosure computes the induced allowed-value sets for the direct
// parents of the constrained nodes. For each (key, values)
// constraint it flattens key's CPT, finds the per-parent-depth value sets
// that can lead to one of values, and zips those sets against key's
// ParentNames. The per-key partial maps are then merged by intersection;
// an empty intersection for any name fails with xerrors.TooRestrictive.
// Constraints are processed in sorted key order so the merged lists come
// out the same way on every run.
func ConstraintClosure(net *Network, constraints map[string][]string) (map[string][]string, error) {
	type partial struct {
		values map[string][]string
	}
	var parts []partial

	keys := make([]string, 0, len(constraints))
	for key := range constraints {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		values := constraints[key]
		if len(values) == 0 {
			return nil, xerrors.NewValidation("constraint %q has an empty value list", key)
		}
		node, ok := net.NodesByName[key]
		if !ok {
			continue
		}

		tree := flatten(node.cpt)
		zipped := pathsToKeys(tree, values)

		set := make(map[string][]string, len(zipped)+1)
		for i, vals := range zipped {
			if i < len(node.ParentNames) {
				set[node.ParentNames[i]] = vals
			}
		}
		set[key] = values
		parts = append(parts, partial{values: set})
	}

	result := make(map[string][]string)
	for _, p := range parts {
		for key, vals := range p.values {
			if existing, found := result[key]; found {
				merged := intersect(existing, vals)
				if len(merged) == 0 {
					return nil, &xerrors.TooRestrictive{}
				}
				result[key] = merged
			} else {
				result[key] = vals
			}
		}
	}

	return result, nil
}
