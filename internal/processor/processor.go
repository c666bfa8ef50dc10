// Package processor runs a scanned survey PDF through validation,
// rendering, per-page field extraction, merging and table output.
package processor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	perrors "github.com/a3tai/survey-pdf-processor/internal/errors"
	"github.com/a3tai/survey-pdf-processor/internal/output"
	"github.com/a3tai/survey-pdf-processor/internal/pdf"
	"github.com/a3tai/survey-pdf-processor/internal/survey"
)

// ErrAllPagesFailed is returned when no page could be extracted
var ErrAllPagesFailed = errors.New("extraction failed for every page")

// Extractor reads the fields of one page image
type Extractor interface {
	Extract(ctx context.Context, page pdf.PageImage) (*survey.FieldMap, error)
}

// Options configures a Processor
type Options struct {
	Merge       survey.MergeOptions
	Concurrency int
	PageTimeout time.Duration // 0 disables the per-page deadline
}

// Summary describes a completed run
type Summary struct {
	RunID       string        `json:"run_id"`
	InputPath   string        `json:"input_path"`
	OutputPath  string        `json:"output_path"`
	Pages       int           `json:"pages"`
	Records     int           `json:"records"`
	FailedPages []int         `json:"failed_pages"`  // 1-based
	Dropped     []int         `json:"dropped_pages"` // 1-based
	Warnings    []string      `json:"warnings"`
	Duration    time.Duration `json:"duration"`
	Table       output.Table  `json:"-"`
}

// Processor wires the pipeline stages together
type Processor struct {
	validator *pdf.Validator
	renderer  pdf.Renderer
	extractor Extractor
	writer    output.Writer
	opts      Options
	logger    *logrus.Logger
}

// New creates a Processor. Concurrency below 1 is treated as 1 and a nil
// logger is replaced with a default one.
func New(validator *pdf.Validator, renderer pdf.Renderer, extractor Extractor, writer output.Writer, opts Options, logger *logrus.Logger) *Processor {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Processor{
		validator: validator,
		renderer:  renderer,
		extractor: extractor,
		writer:    writer,
		opts:      opts,
		logger:    logger,
	}
}

// Run processes inputPath and writes the resulting table to outputPath.
// Page extraction failures are recorded in the summary and do not fail
// the run unless every page failed.
func (p *Processor) Run(ctx context.Context, inputPath, outputPath string) (*Summary, error) {
	start := time.Now()
	summary := &Summary{
		RunID:       uuid.New().String(),
		InputPath:   inputPath,
		OutputPath:  outputPath,
		FailedPages: []int{},
		Dropped:     []int{},
		Warnings:    []string{},
	}
	log := p.logger.WithField("run_id", summary.RunID)

	if err := p.opts.Merge.Validate(); err != nil {
		return nil, perrors.Wrap(perrors.ErrorTypeConfig, "invalid merge options", err)
	}

	pageCount, err := p.validator.ValidatePDF(inputPath)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"file": inputPath, "pages": pageCount}).Info("Validated input PDF")

	images, err := p.renderer.Render(ctx, inputPath)
	if err != nil {
		return nil, err
	}
	summary.Pages = len(images)
	log.WithFields(logrus.Fields{"renderer": p.renderer.Name(), "pages": len(images)}).Info("Rendered pages")

	if len(images) == 0 {
		return nil, perrors.New(perrors.ErrorTypeRender, "no pages rendered").WithFile(inputPath)
	}

	// an incomplete trailing record under the fail policy is known before any page is sent
	if merge := p.opts.Merge; merge.Trailing == survey.TrailingFail && len(images)%merge.PagesPerRecord != 0 {
		err := fmt.Errorf("%w: %d page(s) is not a multiple of %d", survey.ErrIncompleteRecord, len(images), merge.PagesPerRecord)
		return nil, perrors.Wrap(perrors.ErrorTypeMerge, "failed to merge pages into records", err).WithFile(inputPath)
	}

	extractions := p.extractAll(ctx, log, images)

	failures := perrors.NewErrorCollection(inputPath)
	for _, e := range extractions {
		if !e.Failed() {
			continue
		}
		var procErr *perrors.ProcessingError
		if !errors.As(e.Err, &procErr) {
			procErr = perrors.Wrap(perrors.ErrorTypeExtraction, "extraction failed", e.Err).WithPage(e.Index + 1)
		}
		failures.Add(procErr)
	}
	summary.FailedPages = failures.Pages()

	if failures.Count() == len(extractions) {
		return nil, perrors.Wrap(perrors.ErrorTypeExtraction, failures.Summary(), ErrAllPagesFailed).WithFile(inputPath)
	}
	if failures.Count() > 0 {
		log.Warn(failures.Summary())
	}

	merged, err := survey.Merge(extractions, p.opts.Merge)
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrorTypeMerge, "failed to merge pages into records", err).WithFile(inputPath)
	}
	for _, w := range merged.Warnings {
		log.Warn(w)
	}
	summary.Records = len(merged.Records)
	summary.Warnings = append(summary.Warnings, merged.Warnings...)
	for _, idx := range merged.Dropped {
		summary.Dropped = append(summary.Dropped, idx+1)
	}

	summary.Table = output.BuildTable(merged.Records)
	if err := p.writer.Write(outputPath, summary.Table); err != nil {
		return nil, fmt.Errorf("%d record(s) computed but not saved: %w", summary.Records, err)
	}

	summary.Duration = time.Since(start)
	log.WithFields(logrus.Fields{
		"output":   outputPath,
		"records":  summary.Records,
		"failed":   len(summary.FailedPages),
		"duration": summary.Duration.Round(time.Millisecond),
	}).Info("Survey data written")

	return summary, nil
}

// extractAll returns one PageExtraction per image in page order. With
// Concurrency > 1 pages are extracted in parallel and each goroutine
// writes only its own slot.
func (p *Processor) extractAll(ctx context.Context, log *logrus.Entry, images []pdf.PageImage) []survey.PageExtraction {
	results := make([]survey.PageExtraction, len(images))

	if p.opts.Concurrency == 1 {
		for i, img := range images {
			results[i] = p.extractPage(ctx, log, img)
		}
		return results
	}

	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)
	for i, img := range images {
		g.Go(func() error {
			results[i] = p.extractPage(ctx, log, img)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (p *Processor) extractPage(ctx context.Context, log *logrus.Entry, img pdf.PageImage) survey.PageExtraction {
	pageLog := log.WithField("page", img.PageNumber())

	if err := ctx.Err(); err != nil {
		pageLog.Warn("Skipped page: run cancelled")
		return survey.PageExtraction{
			Index: img.Index,
			Err:   perrors.Wrap(perrors.ErrorTypeExtraction, "cancelled before extraction", err).WithPage(img.PageNumber()),
		}
	}

	pageLog.Info("Extracting page")
	fields, err := p.safeExtract(ctx, img)
	if err != nil {
		pageLog.WithError(err).Warn("Page extraction failed")
		return survey.PageExtraction{Index: img.Index, Err: err}
	}

	pageLog.WithField("fields", fields.Len()).Debug("Page extracted")
	return survey.PageExtraction{Index: img.Index, Fields: fields}
}

// safeExtract applies the page deadline and turns a panic in the
// extractor into a page error
func (p *Processor) safeExtract(ctx context.Context, img pdf.PageImage) (fields *survey.FieldMap, err error) {
	if p.opts.PageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.PageTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.WithField("page", img.PageNumber()).Errorf("Recovered panic during extraction: %v\n%s", r, debug.Stack())
			fields = nil
			err = perrors.New(perrors.ErrorTypeExtraction, fmt.Sprintf("extraction panicked: %v", r)).WithPage(img.PageNumber())
		}
	}()

	return p.extractor.Extract(ctx, img)
}
