package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vk/hotswap/internal/model"
)

func TestStatusTracker(t *testing.T) {
	t.Parallel()

	published := model.CompileOutcome{Success: true, Published: true}
	stale := model.CompileOutcome{Success: true}
	failed := model.CompileOutcome{}

	testCases := []struct {
		name  string
		steps func(tr *statusTracker)
		want  model.State
	}{
		{
			name:  "unknown id is unloaded",
			steps: func(tr *statusTracker) {},
			want:  model.Unloaded,
		},
		{
			name:  "queued compile",
			steps: func(tr *statusTracker) { tr.compiling("s", 1) },
			want:  model.Compiling,
		},
		{
			name: "published",
			steps: func(tr *statusTracker) {
				tr.compiling("s", 1)
				tr.finish("s", 1, published)
			},
			want: model.Loaded,
		},
		{
			name: "failure after success",
			steps: func(tr *statusTracker) {
				tr.finish("s", 1, published)
				tr.compiling("s", 2)
				tr.finish("s", 2, failed)
			},
			want: model.FailedKeepingPrevious,
		},
		{
			name: "late outcome of an older attempt is ignored",
			steps: func(tr *statusTracker) {
				tr.compiling("s", 1)
				tr.compiling("s", 2)
				tr.finish("s", 2, published)
				tr.finish("s", 1, failed)
			},
			want: model.Loaded,
		},
		{
			name: "stale success leaves state alone",
			steps: func(tr *statusTracker) {
				tr.compiling("s", 3)
				tr.finish("s", 3, stale)
			},
			want: model.Compiling,
		},
		{
			name: "removal beats in-flight compile",
			steps: func(tr *statusTracker) {
				tr.compiling("s", 4)
				tr.remove("s", 4)
				tr.finish("s", 4, published)
			},
			want: model.Unloaded,
		},
		{
			name: "new submission after removal",
			steps: func(tr *statusTracker) {
				tr.remove("s", 4)
				tr.compiling("s", 5)
				tr.finish("s", 5, published)
			},
			want: model.Loaded,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tr := newStatusTracker()
			tc.steps(tr)

			assert.Equal(t, tc.want, tr.get("s"))
		})
	}
}
