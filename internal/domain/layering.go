package domain

import (
	"io/fs"
	"iter"
	"log/slog"
	"path/filepath"

	"github.com/couchcryptid/forcing-engine/internal/fsutil"
)

// LayeringPair is a primary downscaled file matched with the secondary
// product's file for the same key.
type LayeringPair struct {
	Key       ForcingFileKey
	Primary   string
	Secondary string
	// OutputName is the layered filename, derived from the primary's key.
	OutputName string
}

// Pairer matches primary-product outputs with secondary-product outputs.
type Pairer struct {
	Primary   Product
	Secondary Product
	// Exists reports whether a file is present. Defaults to fsutil.IsFile.
	Exists func(path string) bool
	Logger *slog.Logger
}

// Pair walks primaryDir in lexical order and yields one pair per primary file
// whose secondary counterpart exists under secondaryRoot. Primaries without a
// secondary are skipped. A primary whose name does not parse yields a
// *NamingError and ends the sequence. The sequence is lazy and can be ranged
// over again to restart the walk.
func (p Pairer) Pair(primaryDir, secondaryRoot string) iter.Seq2[LayeringPair, error] {
	exists := p.Exists
	if exists == nil {
		exists = fsutil.IsFile
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	secondary := Layout{Root: secondaryRoot}

	return func(yield func(LayeringPair, error) bool) {
		stopped := false
		err := filepath.WalkDir(primaryDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			key, _, err := ParseOutputName(d.Name())
			if err != nil {
				return err
			}
			if key.Product != p.Primary {
				return &NamingError{Product: p.Primary, Name: d.Name(), Reason: "not a " + p.Primary.String() + " output"}
			}
			secKey := key.WithProduct(p.Secondary)
			secPath := secondary.Path(secKey)
			if !exists(secPath) {
				logger.Info("no matching secondary file, skipping",
					"primary", path,
					"secondary", secPath,
				)
				return nil
			}
			pair := LayeringPair{
				Key:        key,
				Primary:    path,
				Secondary:  secPath,
				OutputName: LayeredName(key),
			}
			if !yield(pair, nil) {
				stopped = true
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil && !stopped {
			yield(LayeringPair{}, err)
		}
	}
}
