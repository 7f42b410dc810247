package domain

import (
	"fmt"
	"strings"
)

// NamingError reports a filename that does not fit its product's grammar.
type NamingError struct {
	Product Product
	Name    string
	Reason  string
}

func (e *NamingError) Error() string {
	if e.Product.Valid() {
		return fmt.Sprintf("naming: %s file %q: %s", e.Product, e.Name, e.Reason)
	}
	return fmt.Sprintf("naming: file %q: %s", e.Name, e.Reason)
}

// SubstitutionNotFoundError reports that none of the earlier runs searched
// for a zero-hour substitute had a downscaled output on disk.
type SubstitutionNotFoundError struct {
	Target ForcingFileKey
	Tried  []string
}

func (e *SubstitutionNotFoundError) Error() string {
	return fmt.Sprintf("no substitute for %s in %d earlier runs: tried %s", e.Target, len(e.Tried), strings.Join(e.Tried, ", "))
}

// MissingOutputError reports an external tool that exited cleanly without
// writing its expected output.
type MissingOutputError struct {
	Stage Stage
	Key   ForcingFileKey
	Path  string
}

func (e *MissingOutputError) Error() string {
	return fmt.Sprintf("%s output for %s missing at %s", e.Stage, e.Key, e.Path)
}
