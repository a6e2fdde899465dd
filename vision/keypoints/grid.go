package keypoints

import (
	"image"

	"github.com/pkg/errors"
)

// GridConfig spreads at most MaxFeatures keypoints evenly over a Cols x Rows grid of the image.
type GridConfig struct {
	MaxFeatures int `json:"max_features" yaml:"max_features"`
	Cols        int `json:"grid_cols" yaml:"grid_cols"`
	Rows        int `json:"grid_rows" yaml:"grid_rows"`
}

// DefaultGridConfig returns a 750 feature budget over an 8 x 6 grid.
func DefaultGridConfig() GridConfig {
	return GridConfig{MaxFeatures: 750, Cols: 8, Rows: 6}
}

// CheckValid checks the grid budget.
func (cfg GridConfig) CheckValid() error {
	if cfg.Cols <= 0 || cfg.Rows <= 0 {
		return errors.Errorf("grid must have positive dimensions, got %dx%d", cfg.Cols, cfg.Rows)
	}
	if cfg.MaxFeatures < cfg.Cols*cfg.Rows {
		return errors.Errorf("max_features %d is lower than the number of grid cells %d", cfg.MaxFeatures, cfg.Cols*cfg.Rows)
	}
	return nil
}

// RetainBestPerCell buckets corners into the grid cells of an image of the given size and keeps
// the strongest MaxFeatures/(Cols*Rows) of each cell. The output is ordered cell by cell in
// row-major order, strongest first within a cell.
func RetainBestPerCell(corners []ScoredKeyPoint, size image.Point, cfg GridConfig) (KeyPoints, error) {
	if err := cfg.CheckValid(); err != nil {
		return nil, err
	}
	perCell := cfg.MaxFeatures / (cfg.Cols * cfg.Rows)
	cells := make([][]ScoredKeyPoint, cfg.Cols*cfg.Rows)
	for _, c := range corners {
		col := c.Point.X * cfg.Cols / size.X
		row := c.Point.Y * cfg.Rows / size.Y
		if col < 0 || row < 0 || col >= cfg.Cols || row >= cfg.Rows {
			continue
		}
		idx := row*cfg.Cols + col
		cells[idx] = append(cells[idx], c)
	}
	out := make(KeyPoints, 0, cfg.MaxFeatures)
	for _, cell := range cells {
		sortByScore(cell)
		if len(cell) > perCell {
			cell = cell[:perCell]
		}
		for _, c := range cell {
			out = append(out, c.Point)
		}
	}
	return out, nil
}
