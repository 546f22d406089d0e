package diffsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReconcile(t *testing.T) {
	tests := []struct {
		name         string
		left, right  string
		search, repl string
		live         string
		wantText     string
		wantOutcome  Outcome
	}{
		{
			name:        "converged view is skipped",
			left:        "same",
			right:       "same",
			search:      "a",
			repl:        "b",
			live:        "a",
			wantOutcome: OutcomeConverged,
		},
		{
			name:        "replacement already present",
			left:        "x = 1",
			right:       "x = 2",
			search:      "x = 1",
			repl:        "x = 2",
			live:        "y\nx = 2\n",
			wantOutcome: OutcomeAlreadyApplied,
		},
		{
			name:        "anchor edited away",
			left:        "x = 1",
			right:       "x = 2",
			search:      "x = 1",
			repl:        "x = 2",
			live:        "x = 7\n",
			wantOutcome: OutcomeAnchorMissing,
		},
		{
			name:        "empty search never matches",
			left:        "a",
			right:       "b",
			search:      "   ",
			repl:        "b",
			live:        "a",
			wantOutcome: OutcomeAnchorMissing,
		},
		{
			name:        "live edit above the anchor",
			left:        "a := 1\nb := 2\n",
			right:       "a := 1\nb := 3\n",
			search:      "b := 2",
			repl:        "b := 3",
			live:        "x := 0\na := 1\nb := 2\n",
			wantText:    "x := 0\na := 1\nb := 3\n",
			wantOutcome: OutcomeApplied,
		},
		{
			name:        "equal length replacement is still applied",
			left:        "foo()",
			right:       "bar()",
			search:      "foo",
			repl:        "bar",
			live:        "// new\nfoo()",
			wantText:    "// new\nbar()",
			wantOutcome: OutcomeApplied,
		},
		{
			name:        "equal length result matching the preview is left alone",
			left:        "foo()",
			right:       "// new\nbar()",
			search:      "foo",
			repl:        "bar",
			live:        "// new\nfoo()",
			wantOutcome: OutcomeNoChange,
		},
		{
			name:        "pair is trimmed and only the first occurrence replaced",
			left:        "v1 v1",
			right:       "v2 v1",
			search:      "  v1\n",
			repl:        "\nv2  ",
			live:        "v1 v1 tail",
			wantText:    "v2 v1 tail",
			wantOutcome: OutcomeApplied,
		},
		{
			name:        "preview already shows the reconciled text",
			left:        "a",
			right:       "b",
			search:      "a",
			repl:        "b",
			live:        "a",
			wantOutcome: OutcomeNoChange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, outcome := Reconcile(tt.left, tt.right, tt.search, tt.repl, tt.live)
			assert.Equal(t, tt.wantOutcome, outcome)
			assert.Equal(t, tt.wantText, text)
		})
	}
}

func TestReconcileView_NoReplacement(t *testing.T) {
	v := newPreview("a", "b", "", "")

	_, outcome := reconcileView(v, "a")
	assert.Equal(t, OutcomeNoReplacement, outcome)
}
