package bayesian

import (
	"fmt"
	"math"
	"math/rand"
)

// Network is a directed acyclic Bayesian network: an ordered, topologically
// sorted list of nodes plus a name index.
type Network struct {
	Name                 string
	NodesInSamplingOrder []*Node
	NodesByName          map[string]*Node
}

// NewNetworkFromDefinitions builds a Network from decoded node
// definitions, preserving their declaration order as the sampling order.
func NewNetworkFromDefinitions(name string, defs []NodeDefinition) *Network {
	net := &Network{
		Name:        name,
		NodesByName: make(map[string]*Node, len(defs)),
	}
	for _, def := range defs {
		node := NewNode(def)
		net.NodesInSamplingOrder = append(net.NodesInSamplingOrder, node)
		net.NodesByName[node.Name] = node
	}
	return net
}

// Validate checks the structural invariants a well-formed network file
// must satisfy: every node's parents appear earlier in the sampling order,
// and every leaf distribution is non-negative and sums to 1 within
// rounding tolerance.
func (net *Network) Validate() error {
	seen := make(map[string]struct{}, len(net.NodesInSamplingOrder))
	for _, node := range net.NodesInSamplingOrder {
		for _, parent := range node.ParentNames {
			if _, ok := seen[parent]; !ok {
				return fmt.Errorf("bayesian: network %q: node %q: parent %q does not precede it in sampling order",
					net.Name, node.Name, parent)
			}
		}
		if err := validateCPT(node.cpt, node.Name); err != nil {
			return fmt.Errorf("bayesian: network %q: %w", net.Name, err)
		}
		seen[node.Name] = struct{}{}
	}
	return nil
}

func validateCPT(c *CPT, nodeName string) error {
	if c == nil {
		return nil
	}
	if c.IsLeaf() {
		sum := 0.0
		for value, p := range c.Leaf {
			if p < 0 {
				return fmt.Errorf("node %q: negative probability for %q", nodeName, value)
			}
			sum += p
		}
		if len(c.Leaf) > 0 && math.Abs(sum-1) > 1e-6 {
			return fmt.Errorf("node %q: leaf distribution sums to %v", nodeName, sum)
		}
		return nil
	}
	for _, sub := range c.Deeper {
		if err := validateCPT(sub, nodeName); err != nil {
			return err
		}
	}
	return validateCPT(c.Skip, nodeName)
}

// GenerateSample performs ancestral sampling: nodes are
// visited in topological order, and any node whose name is not already
// present in input is drawn from its conditional distribution given the
// values drawn (or forced) so far.
func (net *Network) GenerateSample(rng *rand.Rand, input Assignment) Assignment {
	sample := input.Clone()
	for _, node := range net.NodesInSamplingOrder {
		if _, ok := sample[node.Name]; ok {
			continue
		}
		sample[node.Name] = node.Sample(rng.Float64(), sample)
	}
	return sample
}

// GenerateConsistentSample performs a depth-first backtracking search:
// it returns an assignment satisfying
// assignment[n] ∈ allowed[n] for every n present in allowed, or ok=false
// if no such assignment exists.
func (net *Network) GenerateConsistentSample(rng *rand.Rand, allowed map[string][]string) (Assignment, bool) {
	return net.recurse(rng, make(Assignment), allowed, 0)
}

func (net *Network) recurse(rng *rand.Rand, soFar Assignment, allowed map[string][]string, depth int) (Assignment, bool) {
	if depth == len(net.NodesInSamplingOrder) {
		return soFar, true
	}

	node := net.NodesInSamplingOrder[depth]
	candidates, restricted := allowed[node.Name]
	if !restricted {
		candidates = node.PossibleValues
	}

	var banned []string
	for {
		value, ok := node.SampleConstrained(rng.Float64(), soFar, candidates, banned)
		if !ok {
			return nil, false
		}

		soFar[node.Name] = value
		if result, ok := net.recurse(rng, soFar, allowed, depth+1); ok {
			return result, true
		}

		delete(soFar, node.Name)
		banned = append(banned, value)
	}
}
