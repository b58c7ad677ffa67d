package student

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/schoolfin/core"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError(errors.New("Student not found"))
	ErrStudentIDExists = core.NewConflictError(errors.New("Student ID already exists"))
	ErrHasFeePayments  = core.NewConflictError(
		errors.New("Cannot delete student with fee payments. Consider marking as inactive instead."),
		"hasFeePayments",
	)
	ErrMissingFields = core.NewValidationError(errors.New("Missing required fields"))

	nowFunc = time.Now // mockable
)

type (
	// Repository persists Students. Implementations must:
	//  - return ErrNotFound when no Student matches the given ID (malformed IDs included)
	//  - return ErrStudentIDExists when a write breaks the studentId uniqueness
	//  - return ErrHasFeePayments when deleting a Student that FeePayments still reference
	Repository interface {
		// StudentIDExists reports whether studentID is taken by a Student other than excludedIDs.
		StudentIDExists(ctx context.Context, studentID string, excludedIDs ...string) (bool, error)
		CreateStudent(ctx context.Context, s Student) (Student, error)
		// QueryStudents returns the Students matching all the filter's set fields, newest first.
		QueryStudents(ctx context.Context, filter QueryFilter) ([]Student, error)
		GetStudentByID(ctx context.Context, id string) (Student, error)
		// GetStudentsByID returns the Students found, keyed by ID.
		GetStudentsByID(ctx context.Context, ids ...string) (map[string]Student, error)
		UpdateStudent(ctx context.Context, s Student) (Student, error)
		DeleteStudent(ctx context.Context, id string) error
		CountFeePayments(ctx context.Context, id string) (int, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) checkUniqueness(ctx context.Context, studentID string, excludedIDs ...string) error {
	exists, err := svc.repo.StudentIDExists(ctx, studentID, excludedIDs...)
	if err != nil {
		return errors.Wrap(err, "checking studentId uniqueness")
	}
	if exists {
		return ErrStudentIDExists
	}
	return nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Student, error) {
	filter.Clean()
	return svc.repo.QueryStudents(ctx, filter)
}

// Create inserts a new Student. ns must have been validated.
func (svc *Service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	if err := svc.checkUniqueness(ctx, ns.StudentID); err != nil {
		return Student{}, err
	}
	s, err := ns.student(nowFunc().UTC())
	if err != nil {
		return Student{}, err
	}
	return svc.repo.CreateStudent(ctx, s)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudentByID(ctx, id)
}

func (svc *Service) GetManyByID(ctx context.Context, ids ...string) (map[string]Student, error) {
	if len(ids) == 0 {
		return map[string]Student{}, nil
	}
	return svc.repo.GetStudentsByID(ctx, ids...)
}

// Update applies us onto the Student identified by id. us must have been validated.
func (svc *Service) Update(ctx context.Context, id string, us UpdateStudent) (Student, error) {
	s, err := svc.repo.GetStudentByID(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if !core.StringIsBlank(us.StudentID) && *us.StudentID != s.StudentID {
		if err = svc.checkUniqueness(ctx, *us.StudentID, s.ID); err != nil {
			return Student{}, err
		}
	}
	if err = us.apply(&s); err != nil {
		return Student{}, err
	}
	s.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateStudent(ctx, s)
}

// Delete removes the Student identified by id, unless FeePayments reference it.
func (svc *Service) Delete(ctx context.Context, id string) error {
	s, err := svc.repo.GetStudentByID(ctx, id)
	if err != nil {
		return err
	}
	count, err := svc.repo.CountFeePayments(ctx, s.ID)
	if err != nil {
		return errors.Wrap(err, "counting fee payments")
	}
	if count > 0 {
		return ErrHasFeePayments
	}
	return svc.repo.DeleteStudent(ctx, s.ID)
}
