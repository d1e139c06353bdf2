package validation

import (
	"context"
	"fmt"
	"strings"

	"github.com/bd2kgenomics/spinnaker/pkg/metrics"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Fetcher downloads objects from the storage server.
type Fetcher interface {
	DownloadJSON(ctx context.Context, objectID string) (any, error)
	DownloadRange(ctx context.Context, objectID string, rangeSpec string) ([]byte, error)
}

type ValidationResult struct {
	Validated bool
	Response  string
}

func valid(format string, args ...any) ValidationResult {
	return ValidationResult{Validated: true, Response: fmt.Sprintf(format, args...)}
}

func invalid(format string, args ...any) ValidationResult {
	return ValidationResult{Validated: false, Response: fmt.Sprintf(format, args...)}
}

// Engine validates a receipt: the receipt is the object id of a manifest and every
// object listed in the manifest must be readable and look like its declared format.
type Engine struct {
	fetcher   Fetcher
	validator *validator.Validate
}

func NewEngine(fetcher Fetcher) *Engine {
	return &Engine{
		fetcher:   fetcher,
		validator: newManifestValidator(),
	}
}

// Validate never fails: storage errors are reported as an invalid result.
func (e *Engine) Validate(ctx context.Context, receipt *string) ValidationResult {
	result := e.validate(ctx, receipt)

	metrics.IncreaseValidationsMetric(result.Validated)
	zap.S().Named("validation").Infow("receipt validated",
		"receipt", receiptValue(receipt),
		"validated", result.Validated,
		"response", result.Response,
	)

	return result
}

func (e *Engine) validate(ctx context.Context, receipt *string) ValidationResult {
	if receipt == nil || strings.TrimSpace(*receipt) == "" {
		return invalid("receipt is empty")
	}
	objectID := strings.TrimSpace(*receipt)

	doc, err := e.fetcher.DownloadJSON(ctx, objectID)
	if err != nil {
		return invalid("%s", err)
	}

	manifest, err := parseManifest(doc)
	if err != nil {
		return invalid("manifest %s is malformed: %s", objectID, err)
	}

	if err := e.validator.Struct(manifest); err != nil {
		return invalid("manifest %s is invalid: %s", objectID, describe(err))
	}

	for _, file := range manifest.Files {
		if res, ok := e.checkFile(ctx, file); !ok {
			return res
		}
	}

	return valid("receipt %s: %d file(s) verified", objectID, len(manifest.Files))
}

func (e *Engine) checkFile(ctx context.Context, file ManifestFile) (ValidationResult, bool) {
	head, err := e.fetcher.DownloadRange(ctx, file.ObjectID, "")
	if err != nil {
		return invalid("%s", err), false
	}

	if len(head) == 0 {
		return invalid("file %s is empty", displayName(file)), false
	}

	if known, ok := matchesFormat(file.Format, head); known && !ok {
		return invalid("file %s is not a %s file", displayName(file), file.Format), false
	}

	return ValidationResult{}, true
}

func displayName(file ManifestFile) string {
	if file.Name != "" {
		return fmt.Sprintf("%s (%s)", file.Name, file.ObjectID)
	}
	return file.ObjectID
}

func receiptValue(receipt *string) string {
	if receipt == nil {
		return ""
	}
	return *receipt
}
