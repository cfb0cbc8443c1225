package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Houman6460/pixelperfect-sub005/internal/domain"
	"github.com/Houman6460/pixelperfect-sub005/internal/registry"
)

// ModelRepositoryPG reads the seeded model-capability tables. It backs the
// capability registry; rows change out-of-band, never through this service.
type ModelRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewModelRepository creates a new capability repository backed by PostgreSQL.
func NewModelRepository(pool *pgxpool.Pool) *ModelRepositoryPG {
	return &ModelRepositoryPG{pool: pool}
}

// GenerationModel fetches one generation model's capability record.
func (r *ModelRepositoryPG) GenerationModel(ctx context.Context, id string) (*domain.GenerationModel, error) {
	query := `
SELECT id, name, provider, modes, aspect_ratios, durations_sec
FROM generation_models
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, id)
	var model domain.GenerationModel
	var modes []string
	if err := row.Scan(&model.ID, &model.Name, &model.Provider, &modes, &model.AspectRatios, &model.DurationsSec); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUnknownModel
		}
		return nil, err
	}
	model.Modes = make([]domain.GenerationMode, 0, len(modes))
	for _, m := range modes {
		model.Modes = append(model.Modes, domain.GenerationMode(m))
	}
	return &model, nil
}

// Upscaler fetches one upscaler model's capability record.
func (r *ModelRepositoryPG) Upscaler(ctx context.Context, id string) (*domain.UpscalerModel, error) {
	query := `
SELECT id, name, provider, scale_factors, max_input_resolution, output_formats
FROM upscaler_models
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, id)
	model, err := scanUpscaler(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUnknownModel
		}
		return nil, err
	}
	return model, nil
}

// ListUpscalers returns every seeded upscaler model.
func (r *ModelRepositoryPG) ListUpscalers(ctx context.Context) ([]domain.UpscalerModel, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, name, provider, scale_factors, max_input_resolution, output_formats
FROM upscaler_models
ORDER BY id ASC;
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var models []domain.UpscalerModel
	for rows.Next() {
		model, err := scanUpscaler(rows)
		if err != nil {
			return nil, err
		}
		models = append(models, *model)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return models, nil
}

var _ registry.Store = (*ModelRepositoryPG)(nil)

func scanUpscaler(row pgx.Row) (*domain.UpscalerModel, error) {
	var model domain.UpscalerModel
	if err := row.Scan(&model.ID, &model.Name, &model.Provider, &model.ScaleFactors, &model.MaxInputResolution, &model.OutputFormats); err != nil {
		return nil, err
	}
	return &model, nil
}
