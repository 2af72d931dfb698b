package compiler

import (
	"fmt"
	"io"
	"path"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Norgate-AV/kbfw/internal/docker"
	"github.com/Norgate-AV/kbfw/internal/progress"
)

var (
	makingBuildDir = regexp.MustCompile(`west build: making build dir (\S+)`)
	ninjaStep      = regexp.MustCompile(`^\[(\d+)/(\d+)\]`)
	wroteFirmware  = regexp.MustCompile(`Wrote \d+ bytes to zmk\.uf2`)

	// WestRepositoryLine matches one project fetched by west update.
	WestRepositoryLine = regexp.MustCompile(`^=== updating (\S+)`)

	// CloneRepositoryLine matches git clone output.
	CloneRepositoryLine = regexp.MustCompile(`^Cloning into '([^']+)'`)
)

// NewBuildLog writes every line to w prefixed with an RFC 3339 timestamp
// and its stream.
func NewBuildLog(w io.Writer) docker.Middleware {
	var mu sync.Mutex

	return docker.MiddlewareFunc(func(line string, stream docker.Stream) (string, bool) {
		mu.Lock()
		defer mu.Unlock()

		fmt.Fprintf(w, "%s [%s] %s\n", time.Now().UTC().Format(time.RFC3339), stream, line)

		return line, true
	})
}

// NewEcho copies every line to w unchanged.
func NewEcho(w io.Writer) docker.Middleware {
	var mu sync.Mutex

	return docker.MiddlewareFunc(func(line string, _ docker.Stream) (string, bool) {
		mu.Lock()
		defer mu.Unlock()

		fmt.Fprintln(w, line)

		return line, true
	})
}

// progressParser feeds container output into a progress coordinator.
type progressParser struct {
	mu      sync.Mutex
	tracker progress.Coordinator
	repo    *regexp.Regexp
	board   string
}

// NewProgressParser recognizes west build and fetch output. repo matches
// lines announcing a fetched repository; nil disables repository tracking.
func NewProgressParser(tracker progress.Coordinator, repo *regexp.Regexp) docker.Middleware {
	return &progressParser{tracker: tracker, repo: repo}
}

func (p *progressParser) Process(line string, _ docker.Stream) (string, bool) {
	text := strings.TrimSpace(line)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.repo != nil {
		if m := p.repo.FindStringSubmatch(text); m != nil {
			p.tracker.UpdateRepositoryProgress(m[len(m)-1])
			return line, true
		}
	}

	if m := makingBuildDir.FindStringSubmatch(text); m != nil {
		p.board = path.Base(m[1])
		p.tracker.UpdateBoardProgress(p.board, 0, 0, false)
		return line, true
	}

	if p.board == "" {
		return line, true
	}

	if m := ninjaStep.FindStringSubmatch(text); m != nil {
		cur, _ := strconv.Atoi(m[1])
		total, _ := strconv.Atoi(m[2])
		p.tracker.UpdateBoardProgress(p.board, cur, total, false)
		return line, true
	}

	if wroteFirmware.MatchString(text) {
		p.tracker.UpdateBoardProgress(p.board, 0, 0, true)
		p.board = ""
	}

	return line, true
}
