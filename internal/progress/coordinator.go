package progress

import (
	"log/slog"
	"sync"
)

// Tracker is the phase state machine. The dependency fetch phases differ
// per strategy; everything else is shared.
type Tracker struct {
	mu     sync.Mutex
	emitMu sync.Mutex

	state       Snapshot
	fetchPhases []Phase
	fetchDone   bool
	boardOpen   bool

	callback Callback
	logger   *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger used to report callback failures.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTracker creates a tracker starting in the initialization phase.
// fetchPhases lists the strategy's dependency fetch phases in order.
func NewTracker(cb Callback, fetchPhases []Phase, opts ...Option) *Tracker {
	t := &Tracker{
		state:       Snapshot{Phase: PhaseInitialization},
		fetchPhases: fetchPhases,
		callback:    cb,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// update applies fn under the state lock and emits the resulting snapshot.
// emitMu keeps callbacks in the order the updates were applied.
func (t *Tracker) update(fn func(s *Snapshot)) {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()

	t.mu.Lock()
	fn(&t.state)
	snap := t.state
	t.mu.Unlock()

	t.emit(snap)
}

func (t *Tracker) emit(snap Snapshot) {
	if t.callback == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			t.logger.Warn("progress callback panicked", "phase", snap.Phase, "panic", r)
		}
	}()

	t.callback(snap)
}

// advance moves forward to phase. The pipeline never moves backwards
// automatically and done is terminal.
func (t *Tracker) advance(s *Snapshot, phase Phase) {
	if s.Phase == PhaseDone || !s.Phase.Before(phase) {
		return
	}

	s.Phase = phase
}

func (t *Tracker) fetchPhase() Phase {
	if len(t.fetchPhases) == 0 {
		return PhaseWestUpdate
	}

	return t.fetchPhases[len(t.fetchPhases)-1]
}

// TransitionToPhase sets the current phase and emits a snapshot. Once done,
// further transitions are ignored.
func (t *Tracker) TransitionToPhase(phase Phase, description string) {
	t.update(func(s *Snapshot) {
		if s.Phase == PhaseDone {
			return
		}

		s.Phase = phase
		s.Description = description
	})
}

func (t *Tracker) UpdateCacheProgress(operation string, current, total int, description, status string) {
	expected := PhaseCacheRestoration
	if operation == CacheSave {
		expected = PhaseCacheSaving
	}

	t.update(func(s *Snapshot) {
		t.advance(s, expected)

		s.CacheOperation = operation
		s.CacheProgress = current
		s.CacheTotal = total
		s.CacheStatus = status

		if description != "" {
			s.Description = description
		}
	})
}

func (t *Tracker) UpdateWorkspaceProgress(filesCopied, totalFiles int, bytesCopied, totalBytes int64, currentFile, component string) {
	t.update(func(s *Snapshot) {
		t.advance(s, PhaseWorkspaceSetup)

		s.FilesCopied = filesCopied
		s.TotalFiles = totalFiles
		s.BytesCopied = bytesCopied
		s.TotalBytes = totalBytes
		s.CurrentFile = currentFile
		s.Component = component
	})
}

// UpdateBoardProgress records build steps for a board. A new board name
// closes out the previous one when it was never explicitly completed.
func (t *Tracker) UpdateBoardProgress(board string, currentStep, totalSteps int, completed bool) {
	t.update(func(s *Snapshot) {
		t.advance(s, PhaseBuilding)

		if board != "" && board != s.CurrentBoard {
			if t.boardOpen {
				t.closeBoard(s)
			}

			s.CurrentBoard = board
			t.boardOpen = true
		}

		s.CurrentBoardStep = currentStep
		s.TotalBoardSteps = totalSteps

		if completed && t.boardOpen {
			t.closeBoard(s)
		}
	})
}

func (t *Tracker) closeBoard(s *Snapshot) {
	t.boardOpen = false

	if s.TotalBoards == 0 || s.BoardsCompleted < s.TotalBoards {
		s.BoardsCompleted++
	}
}

// UpdateRepositoryProgress counts one fetched dependency. The first time
// the count reaches the declared total the phase moves to building.
func (t *Tracker) UpdateRepositoryProgress(name string) {
	t.update(func(s *Snapshot) {
		t.advance(s, t.fetchPhase())

		s.RepositoriesDownloaded++
		s.CurrentRepository = name

		if !t.fetchDone && s.TotalRepositories > 0 && s.RepositoriesDownloaded == s.TotalRepositories {
			t.fetchDone = true
			t.advance(s, PhaseBuilding)
		}
	})
}

func (t *Tracker) CompleteAllBuilds() {
	t.update(func(s *Snapshot) {
		t.boardOpen = false
		s.BoardsCompleted = s.TotalBoards
		s.Phase = PhaseDone
	})
}

// CompleteBuildSuccess finishes a compilation served without building.
func (t *Tracker) CompleteBuildSuccess(reason string) {
	t.update(func(s *Snapshot) {
		t.boardOpen = false
		s.BoardsCompleted = s.TotalBoards
		s.Phase = PhaseDone
		s.Description = reason
	})
}

func (t *Tracker) SetTotals(boards, repositories int) {
	t.update(func(s *Snapshot) {
		s.TotalBoards = boards
		s.TotalRepositories = repositories
	})
}

func (t *Tracker) SetStrategy(strategy, image string) {
	t.update(func(s *Snapshot) {
		s.Strategy = strategy
		s.DockerImage = image
	})
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.state
}

func (t *Tracker) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.state.Phase
}
