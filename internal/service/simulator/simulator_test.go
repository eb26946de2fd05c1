package simulator_test

import (
	"testing"

	"github.com/swaplabs/sagashop/internal/domain"
	"github.com/swaplabs/sagashop/internal/service/simulator"
)

func TestDecideDeterministicBehaviours(t *testing.T) {
	sim := simulator.New()

	for i := 0; i < 10; i++ {
		if !sim.Decide(domain.BehaviourSuccess) {
			t.Fatalf("behaviour=success must always succeed")
		}
		if !sim.Decide("") {
			t.Fatalf("empty behaviour defaults to success")
		}
		if sim.Decide(domain.BehaviourFailure) {
			t.Fatalf("behaviour=failure must always fail")
		}
	}
}

func TestDecideRandomIsSeeded(t *testing.T) {
	first := simulator.NewWithSeed(42)
	second := simulator.NewWithSeed(42)

	sawSuccess, sawFailure := false, false
	for i := 0; i < 100; i++ {
		a := first.Decide(domain.BehaviourRandom)
		b := second.Decide(domain.BehaviourRandom)
		if a != b {
			t.Fatalf("same seed must produce the same sequence, diverged at %d", i)
		}
		if a {
			sawSuccess = true
		} else {
			sawFailure = true
		}
	}
	if !sawSuccess || !sawFailure {
		t.Fatalf("random behaviour must produce both outcomes over 100 draws")
	}
}
