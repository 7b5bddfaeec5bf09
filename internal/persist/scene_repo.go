package persist

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// AssetRow is a stored asset payload, keyed by a human name. Field order
// matches the LoadAssets columns.
type AssetRow struct {
	Name      string
	Kind      string // svg, lottie or particle
	Data      []byte
	CreatedAt time.Time
}

// EntityRow is a stored entity. Asset and Particle name rows in scene_assets.
// Field order matches the LoadEntities columns.
type EntityRow struct {
	ID       int32
	Kind     string // vector or particle
	Asset    string
	Particle string
	X, Y     float64
	Rotation float64
	ScaleX   float64
	ScaleY   float64
	Z        float64
}

// Row columns, in struct field order.
var (
	assetColumns  = []string{"name", "kind", "data", "created_at"}
	entityColumns = []string{"id", "kind", "COALESCE(asset,'')", "COALESCE(particle,'')",
		"x", "y", "rotation", "scale_x", "scale_y", "z"}
)

type SceneRepo struct {
	db *DB
}

func NewSceneRepo(db *DB) *SceneRepo {
	return &SceneRepo{db: db}
}

// LoadAssets returns every asset in creation order.
func (r *SceneRepo) LoadAssets(ctx context.Context) ([]AssetRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		"SELECT "+strings.Join(assetColumns, ", ")+" FROM scene_assets ORDER BY created_at, name")
	if err != nil {
		return nil, fmt.Errorf("query scene assets: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByPos[AssetRow])
	if err != nil {
		return nil, fmt.Errorf("scan scene assets: %w", err)
	}
	return out, nil
}

// LoadEntities returns every entity, back to front.
func (r *SceneRepo) LoadEntities(ctx context.Context) ([]EntityRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		"SELECT "+strings.Join(entityColumns, ", ")+" FROM scene_entities ORDER BY z, id")
	if err != nil {
		return nil, fmt.Errorf("query scene entities: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByPos[EntityRow])
	if err != nil {
		return nil, fmt.Errorf("scan scene entities: %w", err)
	}
	return out, nil
}

// SaveAsset inserts or replaces an asset by name.
func (r *SceneRepo) SaveAsset(ctx context.Context, a AssetRow) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO scene_assets (name, kind, data) VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO UPDATE SET kind = EXCLUDED.kind, data = EXCLUDED.data`,
		a.Name, a.Kind, a.Data,
	)
	if err != nil {
		return fmt.Errorf("save asset %s: %w", a.Name, err)
	}
	return nil
}

// AssetKindForPath maps a file extension to a stored asset kind.
func AssetKindForPath(path string) (string, bool) {
	switch strings.ToLower(filepath.Ext(strings.TrimSuffix(path, ".zst"))) {
	case ".svg":
		return "svg", true
	case ".json", ".lottie":
		return "lottie", true
	case ".yaml", ".yml":
		return "particle", true
	}
	return "", false
}
