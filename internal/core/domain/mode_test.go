package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	type TestCase struct {
		description string
		selector    string
		want        Mode
		wantErr     bool
	}

	testCases := []TestCase{
		{
			description: "empty selects original",
			selector:    "",
			want:        OriginalMode,
		},
		{
			description: "original",
			selector:    "Original",
			want:        OriginalMode,
		},
		{
			description: "ozon alias",
			selector:    "ozon_3_4",
			want:        ForcedMode(Ozon),
		},
		{
			description: "explicit forced ratio",
			selector:    "forced:16:9",
			want:        ForcedMode(Ratio{Label: "16:9", W: 16, H: 9}),
		},
		{
			description: "zero height",
			selector:    "forced:3:0",
			wantErr:     true,
		},
		{
			description: "garbage",
			selector:    "stretchy",
			wantErr:     true,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			got, err := ParseMode(testCase.selector)
			if testCase.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrValidation))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, testCase.want, got)
		})
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(JobPending, JobProcessing))
	assert.True(t, CanTransition(JobProcessing, JobProcessing))
	assert.True(t, CanTransition(JobProcessing, JobCompleted))
	assert.True(t, CanTransition(JobPending, JobFailed))
	assert.False(t, CanTransition(JobProcessing, JobPending))
	assert.False(t, CanTransition(JobCompleted, JobProcessing))
	assert.False(t, CanTransition(JobFailed, JobCompleted))
}

func TestRemoteJobErrorMatchesSentinel(t *testing.T) {
	err := &RemoteJobError{JobID: "task-1", Detail: "content policy"}

	assert.True(t, errors.Is(err, ErrRemoteJobFailed))
	assert.False(t, errors.Is(err, ErrPollTimeout))
	assert.Equal(t, "remote job task-1 failed: content policy", err.Error())
}

func TestBatchStatusClone(t *testing.T) {
	status := BatchStatus{BatchID: "b1", Items: []ItemResult{{OriginalName: "a.png"}}}

	clone := status.Clone()
	clone.Items[0].OriginalName = "changed"

	assert.Equal(t, "a.png", status.Items[0].OriginalName)
}
