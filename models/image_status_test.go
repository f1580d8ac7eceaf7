package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImageStatus_CanAdvanceTo(t *testing.T) {
	tests := []struct {
		from, to ImageStatus
		want     bool
	}{
		{StatusUploadedToS3, StatusFacesDetected, true},
		{StatusUploadedToS3, StatusNoFacesDetected, true},
		{StatusFacesDetected, StatusFacesMatched, true},
		{StatusFacesDetected, StatusFacesIndexed, true},
		{StatusUploadedToS3, StatusFacesIndexed, false},
		{StatusFacesDetected, StatusUploadedToS3, false},
		{StatusFacesIndexed, StatusFacesMatched, false},
		{StatusNoFacesDetected, StatusFacesDetected, false},
		{StatusFacesMatched, StatusUploadedToS3, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanAdvanceTo(tt.to))
		})
	}
}

func TestImageStatus_ForwardEdgesIncreaseStage(t *testing.T) {
	for from, nexts := range transitions {
		for _, next := range nexts {
			assert.Greater(t, next.Stage(), from.Stage(), "%s -> %s must move forward", from, next)
		}
	}
}

func TestImageStatus_Terminal(t *testing.T) {
	assert.True(t, StatusNoFacesDetected.IsTerminal())
	assert.True(t, StatusFacesIndexed.IsTerminal())
	assert.True(t, StatusFacesMatched.IsTerminal())
	assert.False(t, StatusUploadedToS3.IsTerminal())
	assert.False(t, StatusFacesDetected.IsTerminal())
	assert.False(t, ImageStatus("BOGUS").IsTerminal())
	assert.Equal(t, -1, ImageStatus("BOGUS").Stage())
}
