package pipeline

import (
	"context"
	"errors"

	"github.com/couchcryptid/forcing-engine/internal/config"
	"github.com/couchcryptid/forcing-engine/internal/domain"
	"github.com/couchcryptid/forcing-engine/internal/tool"
)

// Error kinds used as metric labels and in outcome events.
const (
	KindNaming               = "naming"
	KindSubstitutionNotFound = "substitution_not_found"
	KindExternalTool         = "external_tool"
	KindMissingOutput        = "missing_output"
	KindConfig               = "config"
	KindCanceled             = "canceled"
	KindInternal             = "internal"
)

// ErrorKind classifies err into one of the Kind labels. It returns "" for nil.
func ErrorKind(err error) string {
	var (
		namingErr  *domain.NamingError
		subErr     *domain.SubstitutionNotFoundError
		toolErr    *tool.ExternalToolError
		missingErr *domain.MissingOutputError
		cfgErr     *config.ConfigError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &namingErr):
		return KindNaming
	case errors.As(err, &subErr):
		return KindSubstitutionNotFound
	case errors.As(err, &toolErr):
		return KindExternalTool
	case errors.As(err, &missingErr):
		return KindMissingOutput
	case errors.As(err, &cfgErr):
		return KindConfig
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInternal
	}
}
