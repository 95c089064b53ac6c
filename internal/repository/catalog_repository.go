package repository

import (
	"context"
	"sync"

	"github.com/exlearn/billing-service/internal/domain"
	"github.com/exlearn/billing-service/pkg/logger"
)

// CourseStore reads course records for certificate pricing.
type CourseStore interface {
	GetCourse(ctx context.Context, courseID string) (domain.Course, error)
}

// ScheduleStore reads course delivery schedules for run pricing.
type ScheduleStore interface {
	GetSchedule(ctx context.Context, scheduleID string) (domain.CourseSchedule, error)
}

// DiplomaStore reads digital-diploma records for plan pricing.
type DiplomaStore interface {
	GetDiploma(ctx context.Context, diplomaID string) (domain.DigitalDiploma, error)
}

// InMemoryCatalog implements all three catalog stores over maps. Used
// in development mode and as a test fixture.
type InMemoryCatalog struct {
	courses   map[string]domain.Course
	schedules map[string]domain.CourseSchedule
	diplomas  map[string]domain.DigitalDiploma
	mutex     sync.RWMutex
	log       *logger.Logger
}

// NewInMemoryCatalog creates an empty in-memory catalog.
func NewInMemoryCatalog(log *logger.Logger) *InMemoryCatalog {
	return &InMemoryCatalog{
		courses:   make(map[string]domain.Course),
		schedules: make(map[string]domain.CourseSchedule),
		diplomas:  make(map[string]domain.DigitalDiploma),
		log:       log,
	}
}

// PutCourse stores or replaces a course record
func (c *InMemoryCatalog) PutCourse(course domain.Course) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.courses[course.ID] = course
}

// PutSchedule stores or replaces a schedule record
func (c *InMemoryCatalog) PutSchedule(schedule domain.CourseSchedule) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.schedules[schedule.ID] = schedule
}

// PutDiploma stores or replaces a diploma record
func (c *InMemoryCatalog) PutDiploma(diploma domain.DigitalDiploma) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.diplomas[diploma.ID] = diploma
}

// GetCourse returns a course by ID
func (c *InMemoryCatalog) GetCourse(ctx context.Context, courseID string) (domain.Course, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	course, exists := c.courses[courseID]
	if !exists {
		return domain.Course{}, ErrNotFound
	}
	return course, nil
}

// GetSchedule returns a delivery schedule by ID
func (c *InMemoryCatalog) GetSchedule(ctx context.Context, scheduleID string) (domain.CourseSchedule, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	schedule, exists := c.schedules[scheduleID]
	if !exists {
		return domain.CourseSchedule{}, ErrNotFound
	}
	return schedule, nil
}

// GetDiploma returns a digital diploma by ID
func (c *InMemoryCatalog) GetDiploma(ctx context.Context, diplomaID string) (domain.DigitalDiploma, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	diploma, exists := c.diplomas[diplomaID]
	if !exists {
		return domain.DigitalDiploma{}, ErrNotFound
	}
	return diploma, nil
}
