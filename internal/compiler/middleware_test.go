package compiler

import (
	"bytes"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/kbfw/internal/docker"
	"github.com/Norgate-AV/kbfw/internal/progress"
)

func TestNewBuildLog(t *testing.T) {
	var buf bytes.Buffer
	mw := NewBuildLog(&buf)

	line, keep := mw.Process("[1/10] Building C object", docker.Stdout)
	assert.True(t, keep)
	assert.Equal(t, "[1/10] Building C object", line)

	mw.Process("warning: unused", docker.Stderr)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	stamp, rest, ok := strings.Cut(lines[0], " ")
	require.True(t, ok)

	_, err := time.Parse(time.RFC3339, stamp)
	require.NoError(t, err)
	assert.Equal(t, "[stdout] [1/10] Building C object", rest)
	assert.True(t, strings.HasSuffix(lines[1], "[stderr] warning: unused"))
}

func TestNewEcho(t *testing.T) {
	var buf bytes.Buffer
	mw := NewEcho(&buf)

	mw.Process("a", docker.Stdout)
	mw.Process("b", docker.Stderr)

	assert.Equal(t, "a\nb\n", buf.String())
}

func TestProgressParser(t *testing.T) {
	tracker := progress.NewWest(func(progress.Snapshot) {})
	tracker.SetTotals(2, 2)

	mw := NewProgressParser(tracker, WestRepositoryLine)
	feed := func(lines ...string) {
		for _, l := range lines {
			_, keep := mw.Process(l, docker.Stdout)
			require.True(t, keep)
		}
	}

	feed("=== updating zmk (zmk):")
	assert.Equal(t, progress.PhaseWestUpdate, tracker.Phase())
	assert.Equal(t, "zmk", tracker.Snapshot().CurrentRepository)

	feed("=== updating zephyr (zephyr):")
	assert.Equal(t, progress.PhaseBuilding, tracker.Phase())

	feed("[3/9] ignored before a board starts")
	assert.Zero(t, tracker.Snapshot().CurrentBoardStep)

	feed(
		"-- west build: making build dir /workspace/build/corne_left-nice_nano_v2-fw pristine",
		"[3/9] Building C object",
	)

	snap := tracker.Snapshot()
	assert.Equal(t, "corne_left-nice_nano_v2-fw", snap.CurrentBoard)
	assert.Equal(t, 3, snap.CurrentBoardStep)
	assert.Equal(t, 9, snap.TotalBoardSteps)

	feed("Wrote 421376 bytes to zmk.uf2")
	assert.Equal(t, 1, tracker.Snapshot().BoardsCompleted)

	feed("-- west build: making build dir /workspace/build/corne_right-nice_nano_v2-fw pristine", "Wrote 1 bytes to zmk.uf2")
	assert.Equal(t, 2, tracker.Snapshot().BoardsCompleted)
}

func TestProgressParser_CloneLines(t *testing.T) {
	tracker := progress.NewMoergo(func(progress.Snapshot) {})
	tracker.SetTotals(1, 1)

	mw := NewProgressParser(tracker, CloneRepositoryLine)
	mw.Process("Cloning into 'src'...", docker.Stderr)

	assert.Equal(t, progress.PhaseBuilding, tracker.Phase())
	assert.Equal(t, "src", tracker.Snapshot().CurrentRepository)
}

func TestProgressParser_NoRepositoryPattern(t *testing.T) {
	tracker := progress.NewWest(func(progress.Snapshot) {})
	mw := NewProgressParser(tracker, nil)

	mw.Process("=== updating zmk (zmk):", docker.Stdout)
	assert.Zero(t, tracker.Snapshot().RepositoriesDownloaded)

	custom := NewProgressParser(tracker, regexp.MustCompile(`^fetching (\S+)`))
	custom.Process("fetching hal_nordic", docker.Stdout)
	assert.Equal(t, 1, tracker.Snapshot().RepositoriesDownloaded)
}
