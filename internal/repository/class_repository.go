package repository

import (
	"context"

	"github.com/classplay/classplay-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ClassRepository handles class data access.
type ClassRepository struct {
	pool *pgxpool.Pool
}

// NewClassRepository creates a new ClassRepository.
func NewClassRepository(pool *pgxpool.Pool) *ClassRepository {
	return &ClassRepository{pool: pool}
}

// Create inserts a new class.
func (r *ClassRepository) Create(ctx context.Context, c *model.Class) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO classes (name, grade_level)
		 VALUES ($1, $2)
		 RETURNING id, created_at, updated_at`,
		c.Name, c.GradeLevel,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

// GetByName retrieves a class by its unique name.
func (r *ClassRepository) GetByName(ctx context.Context, name string) (*model.Class, error) {
	c := &model.Class{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, grade_level, created_at, updated_at
		 FROM classes WHERE name = $1`, name,
	).Scan(&c.ID, &c.Name, &c.GradeLevel, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}
