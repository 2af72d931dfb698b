// Package progress tracks a compilation through its phases and reports
// immutable snapshots to a caller-supplied callback.
package progress

import "fmt"

// Phase is a step of the compilation pipeline.
type Phase string

const (
	PhaseInitialization     Phase = "initialization"
	PhaseCacheRestoration   Phase = "cache_restoration"
	PhaseWorkspaceSetup     Phase = "workspace_setup"
	PhaseWestUpdate         Phase = "west_update"
	PhaseDockerVerification Phase = "docker_verification"
	PhaseNixBuild           Phase = "nix_build"
	PhaseBuilding           Phase = "building"
	PhaseCacheSaving        Phase = "cache_saving"
	PhaseDone               Phase = "done"
)

// Cache operations passed to UpdateCacheProgress.
const (
	CacheRestore = "restore"
	CacheSave    = "save"
)

var phaseOrder = map[Phase]int{
	PhaseInitialization:     0,
	PhaseCacheRestoration:   1,
	PhaseWorkspaceSetup:     2,
	PhaseWestUpdate:         3,
	PhaseDockerVerification: 3,
	PhaseNixBuild:           4,
	PhaseBuilding:           5,
	PhaseCacheSaving:        6,
	PhaseDone:               7,
}

// Before reports whether p comes earlier in the pipeline than other.
func (p Phase) Before(other Phase) bool {
	return phaseOrder[p] < phaseOrder[other]
}

// Snapshot is the state of a compilation at one instant. A new value is
// produced for every update and never modified afterwards.
type Snapshot struct {
	Phase       Phase  `json:"phase"`
	Description string `json:"description,omitempty"`
	Strategy    string `json:"strategy,omitempty"`
	DockerImage string `json:"docker_image,omitempty"`

	RepositoriesDownloaded int    `json:"repositories_downloaded"`
	TotalRepositories      int    `json:"total_repositories"`
	CurrentRepository      string `json:"current_repository,omitempty"`

	CurrentBoard     string `json:"current_board,omitempty"`
	BoardsCompleted  int    `json:"boards_completed"`
	TotalBoards      int    `json:"total_boards"`
	CurrentBoardStep int    `json:"current_board_step"`
	TotalBoardSteps  int    `json:"total_board_steps"`

	CacheOperation string `json:"cache_operation,omitempty"`
	CacheProgress  int    `json:"cache_progress"`
	CacheTotal     int    `json:"cache_total"`
	CacheStatus    string `json:"cache_status,omitempty"`

	FilesCopied int    `json:"files_copied"`
	TotalFiles  int    `json:"total_files"`
	BytesCopied int64  `json:"bytes_copied"`
	TotalBytes  int64  `json:"total_bytes"`
	CurrentFile string `json:"current_file,omitempty"`
	Component   string `json:"component,omitempty"`
}

// String renders a one-line summary suitable for console output.
func (s Snapshot) String() string {
	switch s.Phase {
	case PhaseWestUpdate, PhaseNixBuild:
		if s.TotalRepositories > 0 {
			return fmt.Sprintf("[%s] %d/%d repositories %s", s.Phase, s.RepositoriesDownloaded, s.TotalRepositories, s.CurrentRepository)
		}
	case PhaseBuilding:
		if s.TotalBoards > 0 {
			return fmt.Sprintf("[%s] %d/%d boards %s (%d/%d)", s.Phase, s.BoardsCompleted, s.TotalBoards, s.CurrentBoard, s.CurrentBoardStep, s.TotalBoardSteps)
		}
	case PhaseWorkspaceSetup:
		if s.TotalFiles > 0 {
			return fmt.Sprintf("[%s] %s %d/%d files", s.Phase, s.Component, s.FilesCopied, s.TotalFiles)
		}
	}

	if s.Description != "" {
		return fmt.Sprintf("[%s] %s", s.Phase, s.Description)
	}

	return fmt.Sprintf("[%s]", s.Phase)
}

// Callback receives every snapshot. It must not call back into the
// coordinator's update methods.
type Callback func(Snapshot)

// Coordinator is the progress contract shared by every strategy.
type Coordinator interface {
	TransitionToPhase(phase Phase, description string)
	UpdateCacheProgress(operation string, current, total int, description, status string)
	UpdateWorkspaceProgress(filesCopied, totalFiles int, bytesCopied, totalBytes int64, currentFile, component string)
	UpdateBoardProgress(board string, currentStep, totalSteps int, completed bool)
	UpdateRepositoryProgress(name string)
	CompleteAllBuilds()
	CompleteBuildSuccess(reason string)
	SetTotals(boards, repositories int)
	SetStrategy(strategy, image string)
	Snapshot() Snapshot
	Phase() Phase
}
