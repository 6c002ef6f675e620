package bayesian

import (
	"reflect"
	"testing"

	"idsynth/internal/xerrors"
)

func TestConstraintClosureInducesParentValues(t *testing.T) {
	net := twoNodeNetwork(t)

	closure, err := ConstraintClosure(net, map[string][]string{"B": {"b2"}})
	if err != nil {
		t.Fatalf("ConstraintClosure: %v", err)
	}

	// Both parent values can lead to b2; they must come back in the
	// deeper branches' declared order, which the sampler consumes as-is.
	if !reflect.DeepEqual(closure["A"], []string{"a1", "a2"}) {
		t.Errorf("A closure for B=b2 = %v, want [a1 a2]", closure["A"])
	}
	if !reflect.DeepEqual(closure["B"], []string{"b2"}) {
		t.Errorf("B closure = %v, want [b2]", closure["B"])
	}
}

func TestConstraintClosureTooRestrictive(t *testing.T) {
	net := twoNodeNetwork(t)

	_, err := ConstraintClosure(net, map[string][]string{
		// "a3" doesn't exist, so A's own closure is {a3}; B=b1 induces A's
		// closure as {a1, a2} (both reach b1 with nonzero probability).
		// Merging the two by intersection leaves A with no possible value.
		"A": {"a3"},
		"B": {"b1"},
	})
	if !xerrors.IsTooRestrictive(err) {
		t.Fatalf("expected TooRestrictive, got %v", err)
	}
}

func TestConstraintClosureRejectsEmptyValueList(t *testing.T) {
	net := twoNodeNetwork(t)

	_, err := ConstraintClosure(net, map[string][]string{"B": {}})
	if err == nil {
		t.Fatalf("expected a validation error for an empty constraint value list")
	}
}

func TestConstraintClosureIsIdempotent(t *testing.T) {
	net := twoNodeNetwork(t)

	first, err := ConstraintClosure(net, map[string][]string{"B": {"b1"}})
	if err != nil {
		t.Fatalf("first closure: %v", err)
	}
	second, err := ConstraintClosure(net, first)
	if err != nil {
		t.Fatalf("second closure: %v", err)
	}
	for key, want := range first {
		if !reflect.DeepEqual(second[key], want) {
			t.Errorf("closure(closure(x))[%s] = %v, want %v", key, second[key], want)
		}
	}
}

func TestConstraintClosureIsReproducibleAcrossCalls(t *testing.T) {
	net := twoNodeNetwork(t)

	first, err := ConstraintClosure(net, map[string][]string{"B": {"b1", "b2"}})
	if err != nil {
		t.Fatalf("first closure: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := ConstraintClosure(net, map[string][]string{"B": {"b1", "b2"}})
		if err != nil {
			t.Fatalf("closure #%d: %v", i, err)
		}
		if !reflect.DeepEqual(again, first) {
			t.Fatalf("closure #%d = %v, want %v (value order must not drift between calls)", i, again, first)
		}
	}
}
