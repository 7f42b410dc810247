package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jonboulle/clockwork"
)

// stampClock supplies processed_at for outcomes.
var stampClock clockwork.Clock = clockwork.NewRealClock()

// SetClock replaces the clock that stamps outcomes; nil restores real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	stampClock = c
}

// ParseRawEvent decodes a source topic message into a FileArrival.
func ParseRawEvent(raw RawEvent) (FileArrival, error) {
	var a FileArrival
	if err := json.Unmarshal(raw.Value, &a); err != nil {
		return FileArrival{}, fmt.Errorf("unmarshal file arrival: %w", err)
	}
	if !a.Product.Valid() {
		return FileArrival{}, errors.New("file arrival has no product")
	}
	a.File = strings.TrimSpace(a.File)
	if a.File == "" {
		return FileArrival{}, errors.New("file arrival has no file")
	}
	return a, nil
}

// FinalizeOutcome stamps an outcome with its deterministic ID and the
// processing time.
func FinalizeOutcome(o Outcome) Outcome {
	o.ID = generateID(o.Product, o.Input)
	o.ProcessedAt = stampClock.Now().UTC()
	return o
}

// WithKey fills the key columns of an outcome.
func (o Outcome) WithKey(k ForcingFileKey) Outcome {
	run, fh := k.ModelRunHour, k.ForecastHour
	o.Date = k.DateString()
	o.ModelRunHour = &run
	o.ForecastHour = &fh
	return o
}

// generateID derives the outcome ID from the product and the input's base
// name so replays of the same arrival produce the same ID.
func generateID(product, input string) string {
	h := sha256.Sum256([]byte(product + "|" + filepath.Base(input)))
	short := hex.EncodeToString(h[:8])
	if product == "" {
		return short
	}
	return strings.ToLower(product) + "-" + short
}
