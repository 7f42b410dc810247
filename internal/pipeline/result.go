package pipeline

import (
	"github.com/couchcryptid/forcing-engine/internal/domain"
)

// Status is the final disposition of one input file.
type Status string

const (
	StatusDone    Status = "done"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Result describes what happened to one input file. File holds the last
// stage the file reached; Step names the step that failed or skipped it.
type Result struct {
	Product domain.Product
	Input   string
	File    domain.ForcingFile
	Status  Status
	Step    string
	Err     error
}

// Outcome converts the result into the event published downstream.
func (r Result) Outcome() domain.Outcome {
	o := domain.Outcome{
		Product:    r.Product.String(),
		Input:      r.Input,
		Stage:      r.File.Stage.String(),
		Path:       r.File.Path,
		Status:     string(r.Status),
		FailedStep: r.Step,
		ErrorKind:  ErrorKind(r.Err),
	}
	if r.Err != nil {
		o.Error = r.Err.Error()
	}
	if r.File.Key.Product.Valid() {
		o = o.WithKey(r.File.Key)
	}
	return domain.FinalizeOutcome(o)
}

// Report tallies a set of results.
type Report struct {
	Done    int
	Skipped int
	Failed  int
	// ByKind counts results carrying an error, by ErrorKind.
	ByKind map[string]int
}

// Summarize builds a Report from results.
func Summarize(results []Result) Report {
	rep := Report{ByKind: map[string]int{}}
	for _, r := range results {
		switch r.Status {
		case StatusDone:
			rep.Done++
		case StatusSkipped:
			rep.Skipped++
		case StatusFailed:
			rep.Failed++
		}
		if r.Err != nil {
			rep.ByKind[ErrorKind(r.Err)]++
		}
	}
	return rep
}

// OK reports whether no file failed.
func (r Report) OK() bool { return r.Failed == 0 }
