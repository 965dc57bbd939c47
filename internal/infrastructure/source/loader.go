package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/domain/knowledge"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroRisk-Intelligence/pkg/errors"
)

// Wire records. Pointers distinguish a missing number from zero.

type profileRecord struct {
	Behavior            string               `json:"behavior" validate:"required"`
	BrainRegions        []regionWeightRecord `json:"brain_regions" validate:"required,min=1,dive"`
	NormalizationParams *normalizationRecord `json:"normalization_params" validate:"omitempty"`
}

type regionWeightRecord struct {
	Region      string   `json:"region" validate:"required"`
	Weight      *float64 `json:"weight" validate:"required"`
	Description string   `json:"description"`
}

type normalizationRecord struct {
	Mean       *float64 `json:"mean" validate:"required"`
	StdDev     *float64 `json:"std_dev" validate:"required"`
	SampleSize *int     `json:"sample_size" validate:"omitempty,gte=0"`
}

type catalogRecord struct {
	Functions  []string          `json:"functions" validate:"dive,required"`
	Diseases   []string          `json:"diseases" validate:"dive,required"`
	Thresholds []thresholdRecord `json:"thresholds" validate:"dive"`
}

type thresholdRecord struct {
	Level   string   `json:"level" validate:"required"`
	Min     *float64 `json:"min" validate:"required"`
	Message string   `json:"message"`
}

// Loader reads a Source and builds a knowledge.Base. It never hands out a
// partially built base: every failure aborts the whole load.
type Loader struct {
	source   Source
	validate *validator.Validate
	logger   logging.Logger
}

func NewLoader(src Source, logger logging.Logger) *Loader {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Loader{source: src, validate: validator.New(), logger: logger}
}

// Source returns the underlying document source.
func (l *Loader) Source() Source { return l.source }

// Load reads, decodes and validates both documents. Read, decode and record
// validation failures carry ErrCodeSourceLoad; knowledge rules enforced by
// knowledge.NewBase keep ErrCodeInvalidConfiguration.
func (l *Loader) Load(ctx context.Context) (*knowledge.Base, error) {
	rawProfiles, err := l.source.ReadProfiles(ctx)
	if err != nil {
		return nil, asSourceLoad(err, "read behavior profiles")
	}
	rawCatalog, err := l.source.ReadCatalog(ctx)
	if err != nil {
		return nil, asSourceLoad(err, "read region catalog")
	}

	profiles, err := l.decodeProfiles(rawProfiles)
	if err != nil {
		return nil, err
	}
	catalog, err := l.decodeCatalog(rawCatalog)
	if err != nil {
		return nil, err
	}

	base, err := knowledge.NewBase(profiles, catalog)
	if err != nil {
		return nil, err
	}
	l.logger.Info("knowledge loaded",
		logging.String("source", l.source.Describe()),
		logging.Int("profiles", base.ProfileCount()),
		logging.Int("regions", base.RegionCount()),
		logging.Int("catalog_regions", len(catalog)))
	return base, nil
}

func (l *Loader) decodeProfiles(data []byte) ([]knowledge.BehaviorProfile, error) {
	var records []profileRecord
	if err := decodeStrict(data, &records); err != nil {
		return nil, errors.SourceLoad(err, "decode behavior profiles")
	}

	out := make([]knowledge.BehaviorProfile, 0, len(records))
	for i, rec := range records {
		if err := l.validate.Struct(rec); err != nil {
			return nil, errors.SourceLoad(err, "invalid behavior profile").
				WithDetail(fmt.Sprintf("profile[%d] %s", i, describeValidation(err)))
		}
		p := knowledge.BehaviorProfile{
			BehaviorID:    rec.Behavior,
			RegionWeights: make([]knowledge.RegionWeight, len(rec.BrainRegions)),
		}
		for j, rw := range rec.BrainRegions {
			p.RegionWeights[j] = knowledge.RegionWeight{
				Region:      rw.Region,
				Weight:      *rw.Weight,
				Description: rw.Description,
			}
		}
		if n := rec.NormalizationParams; n != nil {
			p.Normalization = &knowledge.NormalizationParams{
				Mean:       *n.Mean,
				StdDev:     *n.StdDev,
				SampleSize: n.SampleSize,
			}
		}
		out = append(out, p)
	}
	return out, nil
}

func (l *Loader) decodeCatalog(data []byte) ([]knowledge.RegionCatalogEntry, error) {
	var records map[string]catalogRecord
	if err := decodeStrict(data, &records); err != nil {
		return nil, errors.SourceLoad(err, "decode region catalog")
	}

	regions := make([]string, 0, len(records))
	for r := range records {
		regions = append(regions, r)
	}
	sort.Strings(regions)

	out := make([]knowledge.RegionCatalogEntry, 0, len(regions))
	for _, region := range regions {
		rec := records[region]
		if err := l.validate.Struct(rec); err != nil {
			return nil, errors.SourceLoad(err, "invalid region catalog entry").
				WithDetail(fmt.Sprintf("region %q %s", region, describeValidation(err)))
		}
		entry := knowledge.RegionCatalogEntry{
			Region:    region,
			Functions: append([]string(nil), rec.Functions...),
			Diseases:  append([]string(nil), rec.Diseases...),
		}
		for _, t := range rec.Thresholds {
			entry.Thresholds = append(entry.Thresholds, knowledge.ThresholdBand{
				Level: t.Level, Min: *t.Min, Message: t.Message,
			})
		}
		// The document does not promise an order; the knowledge base requires
		// strictly descending bands.
		sort.SliceStable(entry.Thresholds, func(a, b int) bool {
			return entry.Thresholds[a].Min > entry.Thresholds[b].Min
		})
		out = append(out, entry)
	}
	return out, nil
}

// decodeStrict rejects empty documents and trailing data.
func decodeStrict(data []byte, v interface{}) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty document")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after top-level value")
	}
	return nil
}

func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// asSourceLoad keeps AppErrors from the source as they are and wraps anything
// else, such as a context error, as ErrCodeSourceLoad.
func asSourceLoad(err error, msg string) error {
	if errors.GetCode(err) != errors.ErrCodeUnknown {
		return err
	}
	return errors.SourceLoad(err, msg)
}
