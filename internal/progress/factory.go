package progress

// Strategy tags understood by New.
const (
	StrategyZmkConfig = "zmk_config"
	StrategyWest      = "west"
	StrategyMoergo    = "moergo"
)

// NewWest tracks strategies that fetch dependencies with west update.
func NewWest(cb Callback, opts ...Option) *Tracker {
	return NewTracker(cb, []Phase{PhaseWestUpdate}, opts...)
}

// NewMoergo tracks the nix toolchain strategy, which verifies its image
// before fetching derivations.
func NewMoergo(cb Callback, opts ...Option) *Tracker {
	return NewTracker(cb, []Phase{PhaseDockerVerification, PhaseNixBuild}, opts...)
}

// New returns the coordinator for a strategy tag, or Noop when there is no
// callback to report to.
func New(tag string, cb Callback, opts ...Option) Coordinator {
	if cb == nil {
		return Noop{}
	}

	if tag == StrategyMoergo {
		return NewMoergo(cb, opts...)
	}

	return NewWest(cb, opts...)
}

// Noop satisfies Coordinator and discards every update.
type Noop struct{}

func (Noop) TransitionToPhase(Phase, string) {}
func (Noop) UpdateCacheProgress(string, int, int, string, string) {}
func (Noop) UpdateWorkspaceProgress(int, int, int64, int64, string, string) {}
func (Noop) UpdateBoardProgress(string, int, int, bool) {}
func (Noop) UpdateRepositoryProgress(string) {}
func (Noop) CompleteAllBuilds() {}
func (Noop) CompleteBuildSuccess(string) {}
func (Noop) SetTotals(int, int) {}
func (Noop) SetStrategy(string, string) {}
func (Noop) Snapshot() Snapshot { return Snapshot{Phase: PhaseInitialization} }
func (Noop) Phase() Phase { return PhaseInitialization }

var (
	_ Coordinator = (*Tracker)(nil)
	_ Coordinator = Noop{}
)
