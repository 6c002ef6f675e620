package bayesian

import (
	"math/rand"
	"testing"
)

func TestGenerateSampleIsTopologicallyComplete(t *testing.T) {
	net := twoNodeNetwork(t)
	rng := rand.New(rand.NewSource(1))

	sample := net.GenerateSample(rng, Assignment{})
	for _, name := range []string{"A", "B"} {
		if _, ok := sample[name]; !ok {
			t.Errorf("sample missing node %q: %v", name, sample)
		}
	}
}

func TestGenerateSampleHonorsForcedInput(t *testing.T) {
	net := twoNodeNetwork(t)
	rng := rand.New(rand.NewSource(1))

	sample := net.GenerateSample(rng, Assignment{"A": "a2"})
	if sample["A"] != "a2" {
		t.Errorf("forced input A=a2 was overwritten: got %q", sample["A"])
	}
}

func TestGenerateSampleIsDeterministicForAFixedSeed(t *testing.T) {
	net := twoNodeNetwork(t)

	first := net.GenerateSample(rand.New(rand.NewSource(42)), Assignment{})
	second := net.GenerateSample(rand.New(rand.NewSource(42)), Assignment{})

	if first["A"] != second["A"] || first["B"] != second["B"] {
		t.Errorf("same seed produced different samples: %v vs %v", first, second)
	}
}

func TestGenerateConsistentSampleRespectsConstraints(t *testing.T) {
	net := twoNodeNetwork(t)
	rng := rand.New(rand.NewSource(7))

	sample, ok := net.GenerateConsistentSample(rng, map[string][]string{"B": {"b2"}})
	if !ok {
		t.Fatalf("expected a consistent sample for B=b2")
	}
	if sample["B"] != "b2" {
		t.Errorf("B = %q, want b2", sample["B"])
	}
}

func TestGenerateConsistentSampleFailsOnImpossibleConstraint(t *testing.T) {
	net := twoNodeNetwork(t)
	rng := rand.New(rand.NewSource(7))

	_, ok := net.GenerateConsistentSample(rng, map[string][]string{"B": {"no-such-value"}})
	if ok {
		t.Fatalf("expected no consistent sample for an unreachable value")
	}
}

func TestValidateAcceptsAWellFormedNetwork(t *testing.T) {
	net := twoNodeNetwork(t)
	if err := net.Validate(); err != nil {
		t.Fatalf("Validate on a well-formed network: %v", err)
	}
}

func TestValidateRejectsAParentAfterItsChild(t *testing.T) {
	defs := []NodeDefinition{
		{Name: "B", ParentNames: []string{"A"}, PossibleValues: []string{"b1"},
			ConditionalProbabilities: &CPT{Leaf: map[string]float64{"b1": 1}, LeafOrder: []string{"b1"}}},
		{Name: "A", PossibleValues: []string{"a1"},
			ConditionalProbabilities: &CPT{Leaf: map[string]float64{"a1": 1}, LeafOrder: []string{"a1"}}},
	}
	net := NewNetworkFromDefinitions("broken", defs)
	if err := net.Validate(); err == nil {
		t.Fatalf("expected a topological-order error")
	}
}

func TestValidateRejectsADistributionThatDoesNotSumToOne(t *testing.T) {
	defs := []NodeDefinition{
		{Name: "A", PossibleValues: []string{"a1", "a2"},
			ConditionalProbabilities: &CPT{Leaf: map[string]float64{"a1": 0.5, "a2": 0.2}, LeafOrder: []string{"a1", "a2"}}},
	}
	net := NewNetworkFromDefinitions("broken", defs)
	if err := net.Validate(); err == nil {
		t.Fatalf("expected a distribution-sum error")
	}
}

func TestGenerateConsistentSampleJointlyConstrainsBothNodes(t *testing.T) {
	net := twoNodeNetwork(t)
	rng := rand.New(rand.NewSource(3))

	sample, ok := net.GenerateConsistentSample(rng, map[string][]string{
		"A": {"a1"},
		"B": {"b2"},
	})
	if !ok {
		t.Fatalf("a1/b2 pair has nonzero probability in this network and should be reachable")
	}
	if sample["A"] != "a1" || sample["B"] != "b2" {
		t.Errorf("sample = %v, want A=a1 B=b2", sample)
	}
}
