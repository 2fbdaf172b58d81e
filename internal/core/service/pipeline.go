package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"imgadapt/internal/core/domain"
	"imgadapt/internal/core/geometry"
	"imgadapt/internal/core/port"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type ItemState string

const (
	StatePreprocessing ItemState = "preprocessing"
	StateSubmitted     ItemState = "submitted"
	StatePolling       ItemState = "polling"
	StateDownloading   ItemState = "downloading"
	StateRestoring     ItemState = "restoring"
	StateDone          ItemState = "done"
	StateFailed        ItemState = "failed"
)

const ResultPrefix = "translated_"

// Job is one item of a batch handed to the pipeline.
type Job struct {
	BatchID   string
	Item      domain.Item
	Mode      domain.Mode
	OutputDir string
}

// Processor turns a job into a result. It never returns an error: failures are part of the result.
type Processor interface {
	Process(ctx context.Context, job Job) domain.ItemResult
}

// Pipeline adapts one image, runs it through the remote service and restores its geometry.
type Pipeline struct {
	transformer port.Transformer
	images      port.ImageAdapter
	workers     *Workers
	ratios      []domain.Ratio
	instruction string
}

func NewPipeline(transformer port.Transformer,
	images port.ImageAdapter,
	workers *Workers,
	ratios []domain.Ratio,
	instruction string) *Pipeline {
	return &Pipeline{transformer: transformer,
		images:      images,
		workers:     workers,
		ratios:      ratios,
		instruction: instruction}
}

func (p *Pipeline) Process(ctx context.Context, job Job) domain.ItemResult {
	l := log.With().
		Str("batchId", job.BatchID).
		Str("item", job.Item.Name).
		Str("mode", job.Mode.String()).
		Logger()

	produced, err := p.run(ctx, l, job)
	if err != nil {
		l.Error().Err(err).Str("state", string(StateFailed)).Msg("item failed")
		return domain.ItemResult{
			OriginalName: job.Item.Name,
			Status:       domain.ItemFailed,
			Error:        err.Error(),
		}
	}

	l.Info().Str("state", string(StateDone)).Str("result", produced).Msg("item done")

	return domain.ItemResult{
		OriginalName: job.Item.Name,
		ProducedName: produced,
		FilePath:     filepath.ToSlash(filepath.Join(job.BatchID, "output", produced)),
		Status:       domain.ItemSuccess,
	}
}

func (p *Pipeline) run(ctx context.Context, l zerolog.Logger, job Job) (string, error) {
	l.Debug().Str("state", string(StatePreprocessing)).Msg("transition")
	reference, submitted, ratio := p.preprocess(ctx, l, job)

	l.Debug().Str("state", string(StateSubmitted)).Str("ratio", ratio.Label).Msg("transition")
	jobID, err := p.transformer.Submit(ctx, port.SubmitRequest{
		BatchID:     job.BatchID,
		ImagePath:   submitted.Path,
		Ratio:       ratio,
		Instruction: p.instruction,
	})
	if err != nil {
		return "", err
	}

	l = l.With().Str("taskId", jobID).Logger()
	l.Debug().Str("state", string(StatePolling)).Msg("transition")

	remote, err := p.transformer.Poll(ctx, jobID)
	if err != nil {
		return "", err
	}

	l.Debug().Str("state", string(StateDownloading)).Msg("transition")
	produced := resultName(job.Item.Path)
	dest := filepath.Join(job.OutputDir, produced)

	if err := p.transformer.Download(ctx, remote.ResultRef, dest); err != nil {
		return "", err
	}

	l.Debug().Str("state", string(StateRestoring)).Msg("transition")
	_, err = offload(ctx, p.workers, func() (domain.ImageDescriptor, error) {
		return p.images.Restore(reference, dest)
	})
	if err != nil {
		l.Error().Err(wrap(domain.ErrRestoration, err)).Msg("could not restore ratio, keeping result as is")
	}

	return produced, nil
}

// preprocess returns the restore reference, the image to submit and the ratio it was padded to.
// Adaptation failures degrade to the unmodified source instead of failing the item.
func (p *Pipeline) preprocess(ctx context.Context, l zerolog.Logger, job Job) (domain.ImageDescriptor, domain.ImageDescriptor, domain.Ratio) {
	source, err := offload(ctx, p.workers, func() (domain.ImageDescriptor, error) {
		return p.images.Describe(job.Item.Path)
	})
	if err != nil {
		// unreadable dimensions: submit the file untouched at the default ratio
		l.Error().Err(wrap(domain.ErrAdaptation, err)).Msg("could not read source dimensions")
		source = domain.ImageDescriptor{Path: job.Item.Path}
		return source, source, domain.DefaultRatio
	}

	working := source
	if job.Mode.Kind == domain.ModeForced {
		stretched, err := offload(ctx, p.workers, func() (domain.ImageDescriptor, error) {
			return p.images.Stretch(source, job.Mode.Target)
		})
		if err != nil {
			l.Error().Err(wrap(domain.ErrAdaptation, err)).Msg("could not stretch image, continuing with source")
		} else {
			working = stretched
		}
	}

	ratio := geometry.BestFit(working.Width, working.Height, p.ratios)

	padded, err := offload(ctx, p.workers, func() (domain.ImageDescriptor, error) {
		return p.images.Pad(working, ratio)
	})
	if err != nil {
		l.Error().Err(wrap(domain.ErrAdaptation, err)).Msg("could not pad image, continuing with unpadded image")
		return working, working, ratio
	}

	return working, padded, ratio
}

// resultName is the output name for an input. Results are never written as WebP, so a .webp input
// gets a .png result.
func resultName(inputPath string) string {
	name := filepath.Base(inputPath)
	if ext := filepath.Ext(name); strings.EqualFold(ext, ".webp") {
		name = strings.TrimSuffix(name, ext) + ".png"
	}

	return ResultPrefix + name
}

func wrap(kind, err error) error {
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %v", kind, err)
}
