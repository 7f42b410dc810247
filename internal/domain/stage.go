package domain

import "fmt"

// Stage is the processing stage a forcing file has reached.
type Stage int

const (
	StageRaw Stage = iota
	StageRegridded
	StageDownscaled
	// StageBiasCorrected is reserved. Bias correction passes files through
	// unchanged and never moves them to this stage.
	StageBiasCorrected
	StageLayered
)

var stageNames = [...]string{
	StageRaw:           "raw",
	StageRegridded:     "regridded",
	StageDownscaled:    "downscaled",
	StageBiasCorrected: "bias_corrected",
	StageLayered:       "layered",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// ForcingFile is a file on disk at a known stage.
type ForcingFile struct {
	Key   ForcingFileKey
	Stage Stage
	Path  string
}

// Advance returns the file produced by moving f to stage s at path.
func (f ForcingFile) Advance(s Stage, path string) ForcingFile {
	return ForcingFile{Key: f.Key, Stage: s, Path: path}
}
