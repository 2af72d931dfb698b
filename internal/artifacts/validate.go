// Package artifacts locates firmware produced by a build, validates it and
// collects it into the caller's output directory.
package artifacts

import (
	"encoding/binary"
	"path/filepath"
	"strings"

	"github.com/Norgate-AV/kbfw/internal/fsio"
)

const (
	// UF2Magic is the first magic word of every UF2 block, little-endian.
	UF2Magic uint32 = 0x0A324655

	// UF2HeaderSize is the minimum length for the header check to apply.
	UF2HeaderSize = 32

	// MinFirmwareSize is the smallest plausible firmware binary.
	MinFirmwareSize = 512

	// FirmwareExt is the recognized firmware extension.
	FirmwareExt = ".uf2"
)

// IsUF2 reports whether data starts with a UF2 block header. Buffers shorter
// than a header never pass, whatever their content.
func IsUF2(data []byte) bool {
	if len(data) < UF2HeaderSize {
		return false
	}

	return binary.LittleEndian.Uint32(data[:4]) == UF2Magic
}

// FileReport is the per-check breakdown for one artifact.
type FileReport struct {
	Path          string `json:"path"`
	Exists        bool   `json:"exists"`
	Readable      bool   `json:"readable"`
	SizeOK        bool   `json:"size_ok"`
	Size          int64  `json:"size"`
	FormatChecked bool   `json:"format_checked"`
	FormatOK      bool   `json:"format_ok"`
	Valid         bool   `json:"valid"`
	Error         string `json:"error,omitempty"`
}

// Report summarizes validation of a set of artifacts.
type Report struct {
	Files   []FileReport `json:"files"`
	Valid   int          `json:"valid"`
	Invalid int          `json:"invalid"`
}

// AllValid reports whether every file passed.
func (r Report) AllValid() bool {
	return r.Invalid == 0 && len(r.Files) > 0
}

// Validator checks artifacts through the filesystem adapter.
type Validator struct {
	fs fsio.FileAdapter
}

// NewValidator creates a validator.
func NewValidator(fs fsio.FileAdapter) *Validator {
	return &Validator{fs: fs}
}

// ValidateArtifact runs every check and reports overall validity.
func (v *Validator) ValidateArtifact(path string) bool {
	return v.Check(path).Valid
}

// Check runs existence, readability, size and (for .uf2) header checks in
// that order. A failed check leaves later checks unpassed.
func (v *Validator) Check(path string) FileReport {
	r := FileReport{Path: path}

	if !v.fs.IsFile(path) {
		r.Error = "file does not exist"
		return r
	}

	r.Exists = true

	header, err := v.fs.ReadHeader(path, UF2HeaderSize)
	if err != nil {
		r.Error = "file is not readable: " + err.Error()
		return r
	}

	r.Readable = true

	size, err := v.fs.FileSize(path)
	if err != nil {
		r.Error = "failed to stat file: " + err.Error()
		return r
	}

	r.Size = size
	if size < MinFirmwareSize {
		r.Error = "file is smaller than the minimum firmware size"
		return r
	}

	r.SizeOK = true

	if strings.EqualFold(filepath.Ext(path), FirmwareExt) {
		r.FormatChecked = true
		r.FormatOK = IsUF2(header)

		if !r.FormatOK {
			r.Error = "invalid UF2 header"
			return r
		}
	}

	r.Valid = true

	return r
}

// GetValidationReport validates every path and tallies the results.
func (v *Validator) GetValidationReport(paths []string) Report {
	var rep Report

	for _, p := range paths {
		fr := v.Check(p)
		rep.Files = append(rep.Files, fr)

		if fr.Valid {
			rep.Valid++
		} else {
			rep.Invalid++
		}
	}

	return rep
}
