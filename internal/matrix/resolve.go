package matrix

import (
	"path"
	"strings"
)

// Generic output names produced by the ZMK build inside build/<target>/zephyr.
const (
	FirmwareFile = "zmk.uf2"
	ToolchainOut = "zephyr"
)

// ResolveOptions controls where builds read sources from and write to.
// All paths are container paths relative to the workspace working dir
// unless absolute.
type ResolveOptions struct {
	SourceDir    string
	BuildRoot    string
	ConfigDir    string
	ArtifactsDir string
	Pristine     bool
	ExtraModules []string
}

// DefaultResolveOptions matches the workspace layout used by the west strategies.
func DefaultResolveOptions() ResolveOptions {
	return ResolveOptions{
		SourceDir:    "zmk/app",
		BuildRoot:    "build",
		ConfigDir:    "/workspace/config",
		ArtifactsDir: "artifacts",
		Pristine:     true,
	}
}

// CopyStep renames one toolchain output into the artifacts directory.
type CopyStep struct {
	From     string
	To       string
	Required bool
}

// Resolution is everything needed to build one target and collect its output.
type Resolution struct {
	Target            Target
	ArtifactName      string
	Command           []string
	BuildDir          string
	ExpectedOutputDir string
	Copies            []CopyStep
}

// auxFiles are debug outputs copied next to the firmware: kernel config,
// device-tree dump and the ELF/HEX/BIN images.
var auxFiles = []struct {
	src string
	ext string
}{
	{".config", ".kconfig"},
	{"zephyr.dts", ".dts"},
	{"zmk.elf", ".elf"},
	{"zmk.hex", ".hex"},
	{"zmk.bin", ".bin"},
}

// Resolve derives the west build invocation and output locations for a target.
func (m *BuildMatrix) Resolve(t Target, opts ResolveOptions) Resolution {
	name := t.Name()
	buildDir := path.Join(opts.BuildRoot, name)
	outDir := path.Join(buildDir, ToolchainOut)

	cmd := []string{"west", "build", "-s", opts.SourceDir, "-d", buildDir, "-b", t.Board}
	if opts.Pristine {
		cmd = append(cmd, "-p")
	}

	if t.Snippet != "" {
		cmd = append(cmd, "-S", t.Snippet)
	}

	cmd = append(cmd, "--")

	if opts.ConfigDir != "" {
		cmd = append(cmd, "-DZMK_CONFIG="+opts.ConfigDir)
	}

	if t.Shield != "" {
		cmd = append(cmd, "-DSHIELD="+t.Shield)
	}

	if len(opts.ExtraModules) > 0 {
		cmd = append(cmd, "-DZMK_EXTRA_MODULES="+strings.Join(opts.ExtraModules, ";"))
	}

	cmd = append(cmd, t.ExtraFlags...)

	copies := []CopyStep{{
		From:     path.Join(outDir, FirmwareFile),
		To:       path.Join(opts.ArtifactsDir, name+".uf2"),
		Required: true,
	}}

	for _, aux := range auxFiles {
		copies = append(copies, CopyStep{
			From: path.Join(outDir, aux.src),
			To:   path.Join(opts.ArtifactsDir, name+aux.ext),
		})
	}

	return Resolution{
		Target:            t,
		ArtifactName:      name,
		Command:           cmd,
		BuildDir:          buildDir,
		ExpectedOutputDir: outDir,
		Copies:            copies,
	}
}

// ResolveAll resolves every target in matrix order.
func (m *BuildMatrix) ResolveAll(opts ResolveOptions) []Resolution {
	res := make([]Resolution, 0, len(m.Targets))
	for _, t := range m.Targets {
		res = append(res, m.Resolve(t, opts))
	}

	return res
}

// CopyScript renders the copy step as shell. Optional debug files are
// skipped silently when the toolchain did not produce them.
func (r Resolution) CopyScript(artifactsDir string) string {
	lines := []string{"mkdir -p " + ShellQuote(artifactsDir)}

	for _, c := range r.Copies {
		line := "cp " + ShellQuote(c.From) + " " + ShellQuote(c.To)
		if !c.Required {
			line = "if [ -f " + ShellQuote(c.From) + " ]; then " + line + "; fi"
		}

		lines = append(lines, line)
	}

	return strings.Join(lines, "\n")
}

// BuildScript renders the west invocation as a single shell command line.
func (r Resolution) BuildScript() string {
	return ShellJoin(r.Command)
}

// ShellJoin quotes and joins argv for use inside `sh -c`.
func ShellJoin(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = ShellQuote(a)
	}

	return strings.Join(quoted, " ")
}

// ShellQuote single-quotes s when it contains characters the shell would interpret.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}

	if strings.IndexFunc(s, func(r rune) bool {
		return !(r == '-' || r == '_' || r == '.' || r == '/' || r == '=' || r == ':' || r == ',' || r == '+' || r == '@' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
	}) < 0 {
		return s
	}

	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
