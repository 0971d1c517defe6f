package claim

import (
	"context"
	"math"
	"strconv"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ignatzorin/autoclaim-backend/internal/domain/entity"
	"github.com/ignatzorin/autoclaim-backend/internal/domain/repository"
	"github.com/ignatzorin/autoclaim-backend/internal/pkg/apperror"
)

const (
	DefaultMaxImages     = 5
	DefaultMaxImageBytes = 10 * 1024 * 1024
	DefaultImageWorkers  = 5

	analysisFailureReason = "analysis unavailable"
)

// ImageUpload — одно загруженное изображение заявки.
type ImageUpload struct {
	FileName string
	MimeType string
	Data     []byte
}

type ImageLimits struct {
	MaxImages     int
	MaxImageBytes int64
	Workers       int
}

func DefaultImageLimits() ImageLimits {
	return ImageLimits{
		MaxImages:     DefaultMaxImages,
		MaxImageBytes: DefaultMaxImageBytes,
		Workers:       DefaultImageWorkers,
	}
}

// ValidateImages проверяет количество, размер и тип изображений по сигнатуре
// содержимого. MimeType каждого изображения заменяется определённым типом.
func (l ImageLimits) ValidateImages(images []ImageUpload) error {
	if len(images) > l.MaxImages {
		return apperror.Validation(map[string]string{"images": "слишком много изображений"})
	}

	fields := map[string]string{}
	for i := range images {
		key := "images[" + strconv.Itoa(i) + "]"
		if len(images[i].Data) == 0 {
			fields[key] = "пустой файл"
			continue
		}
		if int64(len(images[i].Data)) > l.MaxImageBytes {
			fields[key] = "размер файла превышает лимит"
			continue
		}
		kind, err := filetype.Match(images[i].Data)
		if err != nil || !filetype.IsImage(images[i].Data) {
			fields[key] = "файл не является изображением"
			continue
		}
		images[i].MimeType = kind.MIME.Value
	}

	if len(fields) > 0 {
		return apperror.Validation(fields)
	}
	return nil
}

// ImageProcessor сохраняет и анализирует изображения параллельно, каждое
// независимо от остальных.
type ImageProcessor struct {
	store    repository.ObjectStore
	analyzer repository.ImageAnalyzer
	workers  int
	log      logrus.FieldLogger
}

func NewImageProcessor(store repository.ObjectStore, analyzer repository.ImageAnalyzer, workers int, log logrus.FieldLogger) *ImageProcessor {
	if workers <= 0 {
		workers = DefaultImageWorkers
	}
	return &ImageProcessor{store: store, analyzer: analyzer, workers: workers, log: log}
}

type imageResult struct {
	ok       bool
	ref      string
	analysis entity.DamageAnalysis
}

// Process возвращает ссылки и анализы сохранённых изображений в исходном
// порядке. Несохранённые изображения пропускаются.
func (p *ImageProcessor) Process(ctx context.Context, claimID uuid.UUID, images []ImageUpload) ([]string, []entity.DamageAnalysis) {
	results := make([]imageResult, len(images))

	var g errgroup.Group
	g.SetLimit(p.workers)
	for i, img := range images {
		i, img := i, img
		g.Go(func() error {
			results[i] = p.processOne(ctx, claimID, i, img)
			return nil
		})
	}
	_ = g.Wait()

	refs := make([]string, 0, len(images))
	analyses := make([]entity.DamageAnalysis, 0, len(images))
	for _, r := range results {
		if !r.ok {
			continue
		}
		refs = append(refs, r.ref)
		analyses = append(analyses, r.analysis)
	}
	return refs, analyses
}

func (p *ImageProcessor) processOne(ctx context.Context, claimID uuid.UUID, index int, img ImageUpload) imageResult {
	fields := logrus.Fields{"claim_id": claimID, "image_index": index}

	ref, err := p.store.Store(ctx, img.Data, img.FileName, img.MimeType)
	if err != nil {
		p.log.WithFields(fields).WithError(err).Warn("не удалось сохранить изображение, пропускаем")
		return imageResult{}
	}
	fields["reference"] = ref

	analysis, err := p.Analyze(ctx, ref)
	if err != nil {
		p.log.WithFields(fields).WithError(err).Warn("не удалось проанализировать изображение")
		return imageResult{ok: true, ref: ref, analysis: entity.FailedAnalysis(analysisFailureReason)}
	}

	return imageResult{ok: true, ref: ref, analysis: analysis}
}

// Analyze вызывает анализатор и приводит ответ к допустимым значениям.
func (p *ImageProcessor) Analyze(ctx context.Context, ref string) (entity.DamageAnalysis, error) {
	analysis, err := p.analyzer.Analyze(ctx, ref)
	if err != nil {
		return entity.DamageAnalysis{}, err
	}
	if !analysis.Severity.IsValid() {
		return entity.DamageAnalysis{}, apperror.New(apperror.ErrCodeDependency, "анализатор вернул неизвестный уровень повреждений")
	}
	if math.IsNaN(analysis.Confidence) {
		analysis.Confidence = 0
	}
	analysis.Confidence = math.Min(1, math.Max(0, analysis.Confidence))
	if analysis.DamageTypes == nil {
		analysis.DamageTypes = []string{}
	}
	return analysis, nil
}

// DeleteAll удаляет изображения по ссылкам, ошибки только логируются.
func (p *ImageProcessor) DeleteAll(ctx context.Context, claimID uuid.UUID, refs []string) int {
	deleted := 0
	for i, ref := range refs {
		if p.store.Delete(ctx, ref) {
			deleted++
			continue
		}
		p.log.WithFields(logrus.Fields{
			"claim_id":    claimID,
			"image_index": i,
			"reference":   ref,
		}).Warn("не удалось удалить изображение")
	}
	return deleted
}
