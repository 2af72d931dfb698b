package codes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSuccess(t *testing.T) {
	tests := []struct {
		name     string
		exitCode int
		want     bool
	}{
		{
			name:     "exit code 0 is success",
			exitCode: 0,
			want:     true,
		},
		{
			name:     "exit code 1 is failure",
			exitCode: 1,
			want:     false,
		},
		{
			name:     "exit code 125 is failure (runtime error)",
			exitCode: 125,
			want:     false,
		},
		{
			name:     "exit code 137 is failure (killed)",
			exitCode: 137,
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsSuccess(tt.exitCode)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsKilled(t *testing.T) {
	assert.True(t, IsKilled(137))
	assert.True(t, IsKilled(143))
	assert.True(t, IsKilled(130))
	assert.False(t, IsKilled(0))
	assert.False(t, IsKilled(1))
	assert.False(t, IsKilled(139))
}

func TestGetErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		exitCode int
		want     string
	}{
		{
			name:     "exit code 0",
			exitCode: 0,
			want:     "Success",
		},
		{
			name:     "exit code 127 - command not found",
			exitCode: 127,
			want:     "Command not found inside the container",
		},
		{
			name:     "exit code 137 - killed",
			exitCode: 137,
			want:     "Build process killed (SIGKILL, possibly out of memory)",
		},
		{
			name:     "unknown exit code",
			exitCode: 999,
			want:     "Unknown error",
		},
		{
			name:     "negative exit code",
			exitCode: -1,
			want:     "Unknown error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetErrorMessage(tt.exitCode)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExitCodes_Coverage(t *testing.T) {
	knownCodes := []int{0, 1, 2, 125, 126, 127, 130, 137, 139, 143}

	for _, code := range knownCodes {
		msg := GetErrorMessage(code)
		assert.NotEqual(t, "Unknown error", msg, "Code %d should have a message", code)
		assert.NotEmpty(t, msg, "Code %d should have a non-empty message", code)
	}
}
