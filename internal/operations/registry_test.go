package operations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stepIDs(steps []Step) []string {
	ids := make([]string, len(steps))
	for i, s := range steps {
		ids[i] = s.ID()
	}
	return ids
}

func TestRegistry_Register(t *testing.T) {
	log := &callLog{}
	r := NewRegistry()

	require.NoError(t, r.Register(newFakeStep(log, "", "derive")))
	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(newFakeStep(log, "", "")))

	err := r.Register(newFakeStep(log, "", "derive"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	step, err := r.Get("derive")
	require.NoError(t, err)
	assert.Equal(t, "derive", step.ID())

	_, err = r.Get("visualize")
	assert.Equal(t, ErrorTypeNotFound, GetErrorType(err))
}

func TestRegistry_GetDependencyOrder(t *testing.T) {
	log := &callLog{}

	tests := []struct {
		name    string
		steps   []*fakeStep
		want    []string
		wantErr string
	}{
		{
			name: "pipeline registered out of order",
			steps: []*fakeStep{
				newFakeStep(log, "", "visualize", "summarize"),
				newFakeStep(log, "", "summarize", "derive"),
				newFakeStep(log, "", "derive"),
			},
			want: []string{"derive", "summarize", "visualize"},
		},
		{
			name: "independent steps keep registration order",
			steps: []*fakeStep{
				newFakeStep(log, "", "b"),
				newFakeStep(log, "", "a"),
				newFakeStep(log, "", "c", "a"),
			},
			want: []string{"b", "a", "c"},
		},
		{
			name: "unknown dependency",
			steps: []*fakeStep{
				newFakeStep(log, "", "summarize", "derive"),
			},
			wantErr: "depends on non-existent step derive",
		},
		{
			name: "cycle",
			steps: []*fakeStep{
				newFakeStep(log, "", "a", "b"),
				newFakeStep(log, "", "b", "a"),
			},
			wantErr: "dependency cycle detected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			for _, s := range tt.steps {
				require.NoError(t, r.Register(s))
			}

			ordered, err := r.GetDependencyOrder()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, stepIDs(ordered))
		})
	}
}

func TestRegistry_ListIDsKeepsRegistrationOrder(t *testing.T) {
	log := &callLog{}
	r := NewRegistry()
	for _, id := range []string{"visualize", "derive", "summarize"} {
		require.NoError(t, r.Register(newFakeStep(log, "", id)))
	}
	assert.Equal(t, []string{"visualize", "derive", "summarize"}, r.ListIDs())
}
