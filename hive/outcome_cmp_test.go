package hive

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// errorMessageComparer lets go-cmp compare error values by message
// rather than panicking on errors.New's unexported fields.
var errorMessageComparer = cmp.Comparer(func(a, b error) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Error() == b.Error()
})

func TestOutcome_Diff_IgnoresErrorIdentity(t *testing.T) {
	a := &Outcome[int, string]{Kind: OutcomeFailure, Index: 1, Err: errors.New("boom")}
	b := &Outcome[int, string]{Kind: OutcomeFailure, Index: 1, Err: errors.New("boom")}

	if diff := cmp.Diff(a, b, errorMessageComparer); diff != "" {
		t.Fatalf("unexpected diff (-want +got):\n%s", diff)
	}
}

func TestOutcome_Diff_DetectsValueMismatch(t *testing.T) {
	a := &Outcome[int, string]{Kind: OutcomeSuccess, Index: 1, Value: "a"}
	b := &Outcome[int, string]{Kind: OutcomeSuccess, Index: 1, Value: "b"}

	if diff := cmp.Diff(a, b, errorMessageComparer); diff == "" {
		t.Fatal("expected a diff between differing Value fields")
	}
}
