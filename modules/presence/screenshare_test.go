package presence

import (
	"testing"

	domain "github.com/example/pinch-server/domain/presence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShareState_Transitions(t *testing.T) {
	tests := []struct {
		name      string
		owner     string
		requester string
		policy    domain.SharePolicy
		want      ShareTransition
		wantErr   error
		wantOwner string
	}{
		{
			name:      "idle to sharing",
			requester: "a",
			policy:    domain.SharePreempt,
			want:      ShareTransition{Started: true},
			wantOwner: "a",
		},
		{
			name:      "owner restarts",
			owner:     "a",
			requester: "a",
			policy:    domain.SharePreempt,
			wantOwner: "a",
		},
		{
			name:      "preempt other sharer",
			owner:     "a",
			requester: "b",
			policy:    domain.SharePreempt,
			want:      ShareTransition{Started: true, Preempted: "a"},
			wantOwner: "b",
		},
		{
			name:      "reject while busy",
			owner:     "a",
			requester: "b",
			policy:    domain.ShareReject,
			wantErr:   domain.ErrShareBusy,
			wantOwner: "a",
		},
		{
			name:      "reject policy when idle",
			requester: "b",
			policy:    domain.ShareReject,
			want:      ShareTransition{Started: true},
			wantOwner: "b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ShareState{owner: tt.owner}

			got, err := s.Start(tt.requester, tt.policy)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			owner, _ := s.Owner()
			assert.Equal(t, tt.wantOwner, owner)
		})
	}
}

func TestShareState_StopOnlyByOwner(t *testing.T) {
	s := ShareState{}
	assert.False(t, s.Stop("a"), "stop while idle")

	_, err := s.Start("a", domain.SharePreempt)
	require.NoError(t, err)

	assert.False(t, s.Stop("b"))
	owner, sharing := s.Owner()
	assert.True(t, sharing)
	assert.Equal(t, "a", owner)

	assert.True(t, s.Stop("a"))
	_, sharing = s.Owner()
	assert.False(t, sharing)
}

func TestParseSharePolicy(t *testing.T) {
	p, err := domain.ParseSharePolicy("")
	require.NoError(t, err)
	assert.Equal(t, domain.SharePreempt, p)

	p, err = domain.ParseSharePolicy("reject")
	require.NoError(t, err)
	assert.Equal(t, domain.ShareReject, p)

	_, err = domain.ParseSharePolicy("steal")
	assert.ErrorIs(t, err, domain.ErrUnknownSharePolicy)
	assert.Contains(t, err.Error(), `"steal"`)
}
