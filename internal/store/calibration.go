package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/ivory/internal/geometry"
	"github.com/ayusman/ivory/internal/keyboard"
)

// Strategy records how a calibration's corners were sampled.
type Strategy string

const (
	StrategyTouch    Strategy = "touch"
	StrategyTape     Strategy = "tape"
	StrategyImported Strategy = "imported"
)

// Calibration is a stored keyboard model.
type Calibration struct {
	ID        string
	Strategy  Strategy
	Model     *keyboard.Model
	CreatedAt time.Time
}

// CalibrationRepository provides CRUD operations for calibrations.
type CalibrationRepository struct {
	db *sql.DB
}

// Calibrations returns the calibration repository for this store.
func (s *Store) Calibrations() *CalibrationRepository {
	return &CalibrationRepository{db: s.db}
}

// Save inserts c and its key polygons in a single transaction. An empty ID
// is filled with a new UUID.
func (r *CalibrationRepository) Save(c *Calibration) error {
	if c.Model == nil {
		return errors.New("calibration has no model")
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	m := c.Model
	quad, err := json.Marshal(m.Quad())
	if err != nil {
		return err
	}
	perimeter, err := json.Marshal(m.Perimeter())
	if err != nil {
		return err
	}
	boundaries, err := json.Marshal(m.Boundaries())
	if err != nil {
		return err
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO calibrations (id, strategy, orientation, quad, perimeter, boundaries, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, string(c.Strategy), string(m.Orientation()), string(quad), string(perimeter), string(boundaries), c.CreatedAt,
	)
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO key_polygons (calibration_id, key_number, color, vertices) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, k := range m.Keys() {
		vertices, err := json.Marshal(k.Polygon)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(c.ID, k.Number, string(k.Color), string(vertices)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Get retrieves a calibration by its ID.
func (r *CalibrationRepository) Get(id string) (*Calibration, error) {
	row := r.db.QueryRow(
		`SELECT id, strategy, orientation, quad, perimeter, boundaries, created_at
		 FROM calibrations WHERE id = ?`,
		id,
	)
	return r.load(row)
}

// Latest retrieves the most recently created calibration.
func (r *CalibrationRepository) Latest() (*Calibration, error) {
	row := r.db.QueryRow(
		`SELECT id, strategy, orientation, quad, perimeter, boundaries, created_at
		 FROM calibrations ORDER BY created_at DESC, rowid DESC LIMIT 1`,
	)
	return r.load(row)
}

// List retrieves all calibrations, newest first.
func (r *CalibrationRepository) List() ([]*Calibration, error) {
	rows, err := r.db.Query(
		`SELECT id FROM calibrations ORDER BY created_at DESC, rowid DESC`,
	)
	if err != nil {
		return nil, err
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	calibrations := make([]*Calibration, 0, len(ids))
	for _, id := range ids {
		c, err := r.Get(id)
		if err != nil {
			return nil, err
		}
		calibrations = append(calibrations, c)
	}
	return calibrations, nil
}

// Delete removes a calibration and its key polygons by ID.
func (r *CalibrationRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM calibrations WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *CalibrationRepository) load(row *sql.Row) (*Calibration, error) {
	c := &Calibration{}
	var strategy, orientation, quadJSON, perimeterJSON, boundariesJSON string

	err := row.Scan(&c.ID, &strategy, &orientation, &quadJSON, &perimeterJSON, &boundariesJSON, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.Strategy = Strategy(strategy)

	var quad keyboard.PerimeterQuad
	if err := json.Unmarshal([]byte(quadJSON), &quad); err != nil {
		return nil, fmt.Errorf("decode quad: %w", err)
	}
	var perimeter geometry.Polygon
	if err := json.Unmarshal([]byte(perimeterJSON), &perimeter); err != nil {
		return nil, fmt.Errorf("decode perimeter: %w", err)
	}
	var boundaries []float64
	if err := json.Unmarshal([]byte(boundariesJSON), &boundaries); err != nil {
		return nil, fmt.Errorf("decode boundaries: %w", err)
	}

	keys, err := r.keys(c.ID)
	if err != nil {
		return nil, err
	}

	c.Model, err = keyboard.Restore(keyboard.Orientation(orientation), quad, perimeter, keys, boundaries)
	if err != nil {
		return nil, fmt.Errorf("restore calibration %s: %w", c.ID, err)
	}
	return c, nil
}

func (r *CalibrationRepository) keys(id string) ([]keyboard.KeyPolygon, error) {
	rows, err := r.db.Query(
		`SELECT key_number, color, vertices FROM key_polygons
		 WHERE calibration_id = ? ORDER BY key_number`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make([]keyboard.KeyPolygon, 0, keyboard.NumKeys)
	for rows.Next() {
		var k keyboard.KeyPolygon
		var color, vertices string
		if err := rows.Scan(&k.Number, &color, &vertices); err != nil {
			return nil, err
		}
		k.Color = keyboard.Color(color)
		if err := json.Unmarshal([]byte(vertices), &k.Polygon); err != nil {
			return nil, fmt.Errorf("decode key %d: %w", k.Number, err)
		}
		keys = append(keys, k)
	}

	return keys, rows.Err()
}
