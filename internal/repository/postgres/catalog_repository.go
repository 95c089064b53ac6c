package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/exlearn/billing-service/internal/domain"
	"github.com/exlearn/billing-service/internal/repository"
	"github.com/exlearn/billing-service/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresCatalog implements the catalog store interfaces. Nested run
// and plan lists are stored as JSONB documents alongside the parent
// row, mirroring how the catalog data is authored.
type PostgresCatalog struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresCatalog creates a catalog store over pgx.
func NewPostgresCatalog(db *pgxpool.Pool, log *logger.Logger) *PostgresCatalog {
	return &PostgresCatalog{db: db, log: log}
}

// GetCourse returns a course by ID
func (c *PostgresCatalog) GetCourse(ctx context.Context, courseID string) (domain.Course, error) {
	query := `
		SELECT id, title, verified_cert_cost
		FROM courses
		WHERE id = $1
	`

	var course domain.Course
	err := c.db.QueryRow(ctx, query, courseID).Scan(&course.ID, &course.Title, &course.VerifiedCertCost)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Course{}, repository.ErrNotFound
		}
		return domain.Course{}, fmt.Errorf("failed to query course: %w", err)
	}
	return course, nil
}

// GetSchedule returns a delivery schedule with its scheduled runs
func (c *PostgresCatalog) GetSchedule(ctx context.Context, scheduleID string) (domain.CourseSchedule, error) {
	query := `
		SELECT id, course_id, list_price, scheduled_runs
		FROM course_schedules
		WHERE id = $1
	`

	var schedule domain.CourseSchedule
	var runsBytes []byte
	err := c.db.QueryRow(ctx, query, scheduleID).Scan(&schedule.ID, &schedule.CourseID, &schedule.ListPrice, &runsBytes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CourseSchedule{}, repository.ErrNotFound
		}
		return domain.CourseSchedule{}, fmt.Errorf("failed to query schedule: %w", err)
	}

	if len(runsBytes) > 0 {
		if err := json.Unmarshal(runsBytes, &schedule.Runs); err != nil {
			return domain.CourseSchedule{}, fmt.Errorf("failed to decode scheduled runs: %w", err)
		}
	}
	return schedule, nil
}

// GetDiploma returns a digital diploma with its plans
func (c *PostgresCatalog) GetDiploma(ctx context.Context, diplomaID string) (domain.DigitalDiploma, error) {
	query := `
		SELECT id, title, plans
		FROM digital_diplomas
		WHERE id = $1
	`

	var diploma domain.DigitalDiploma
	var plansBytes []byte
	err := c.db.QueryRow(ctx, query, diplomaID).Scan(&diploma.ID, &diploma.Title, &plansBytes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DigitalDiploma{}, repository.ErrNotFound
		}
		return domain.DigitalDiploma{}, fmt.Errorf("failed to query diploma: %w", err)
	}

	if len(plansBytes) > 0 {
		if err := json.Unmarshal(plansBytes, &diploma.Plans); err != nil {
			return domain.DigitalDiploma{}, fmt.Errorf("failed to decode diploma plans: %w", err)
		}
	}
	return diploma, nil
}
