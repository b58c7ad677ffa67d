package fee

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/schoolfin/core"
	"github.com/trezcool/schoolfin/core/student"
)

var (
	// errors
	ErrCategoryNotFound    = core.NewNotFoundError(errors.New("Fee category not found"))
	ErrCategoryNameExists  = core.NewConflictError(errors.New("Fee category with this name already exists"))
	ErrCategoryHasPayments = core.NewConflictError(
		errors.New("Cannot delete fee category with associated payments."),
		"hasPayments",
	)
	ErrCategoryMissingFields = core.NewValidationError(
		errors.New("Missing required fields: name, amount, and frequency are required"),
	)

	ErrPaymentNotFound      = core.NewNotFoundError(errors.New("Fee payment not found"))
	ErrPaymentMissingFields = core.NewValidationError(
		errors.New("Missing required fields: studentId, feeCategoryId, and dueDate are required"),
	)
	ErrPaymentAlreadyPaid = core.NewValidationError(errors.New("Fee payment is already paid"))
	ErrNoStudentEmail     = core.NewValidationError(errors.New("Student has no email address"))
	// ErrInvalidReference is returned when a Payment's Student or Category vanished before it was written.
	ErrInvalidReference = core.NewValidationError(errors.New("Student or fee category not found"))

	ErrInvalidAmount = core.NewValidationError(
		errors.New("Amount must be a positive number"),
		core.FieldError{Field: "amount", Error: "Amount must be a positive number"},
	)
	ErrAmountOutOfRange = core.NewValidationError(
		errors.New("Amount must have at most 2 decimal places and be less than 10000000000"),
		core.FieldError{Field: "amount", Error: "Amount must have at most 2 decimal places and be less than 10000000000"},
	)

	errInvalidData = errors.New("Invalid data")

	nowFunc = time.Now // mockable
)

type (
	// Repository persists Categories & Payments. Implementations must:
	//  - return ErrCategoryNotFound / ErrPaymentNotFound when no record matches the given ID (malformed IDs included)
	//  - return ErrCategoryNameExists when a write breaks the Category name uniqueness
	//  - return ErrCategoryHasPayments when deleting a Category that Payments still reference
	//  - return ErrInvalidReference when a Payment references a missing Student or Category
	Repository interface {
		// CategoryNameExists reports whether name is taken by a Category other than excludedIDs.
		CategoryNameExists(ctx context.Context, name string, excludedIDs ...string) (bool, error)
		CreateCategory(ctx context.Context, c Category) (Category, error)
		// QueryCategories returns the Categories matching the filter, newest first.
		QueryCategories(ctx context.Context, filter CategoryFilter) ([]Category, error)
		GetCategoryByID(ctx context.Context, id string) (Category, error)
		// GetCategoriesByID returns the Categories found, keyed by ID.
		GetCategoriesByID(ctx context.Context, ids ...string) (map[string]Category, error)
		UpdateCategory(ctx context.Context, c Category) (Category, error)
		DeleteCategory(ctx context.Context, id string) error
		CountCategoryPayments(ctx context.Context, id string) (int, error)

		CreatePayment(ctx context.Context, p Payment) (Payment, error)
		// QueryPayments returns the Payments matching all the filter's set fields, latest due date first.
		// Related records are not loaded.
		QueryPayments(ctx context.Context, filter PaymentFilter) ([]Payment, error)
		GetPaymentByID(ctx context.Context, id string) (Payment, error)
		UpdatePayment(ctx context.Context, p Payment) (Payment, error)
		DeletePayment(ctx context.Context, id string) error
		// MarkOverduePayments flags PENDING & PARTIAL Payments due before asOf as OVERDUE.
		MarkOverduePayments(ctx context.Context, asOf, now time.Time) (int64, error)
	}

	// StudentGetter loads Students; *student.Service satisfies it.
	StudentGetter interface {
		GetByID(ctx context.Context, id string) (student.Student, error)
		GetManyByID(ctx context.Context, ids ...string) (map[string]student.Student, error)
	}

	Service struct {
		repo     Repository
		students StudentGetter
		mailSvc  core.EmailService
	}
)

func NewService(repo Repository, students StudentGetter, mailSvc core.EmailService) *Service {
	return &Service{
		repo:     repo,
		students: students,
		mailSvc:  mailSvc,
	}
}

// Categories

func (svc *Service) checkNameUniqueness(ctx context.Context, name string, excludedIDs ...string) error {
	exists, err := svc.repo.CategoryNameExists(ctx, name, excludedIDs...)
	if err != nil {
		return errors.Wrap(err, "checking category name uniqueness")
	}
	if exists {
		return ErrCategoryNameExists
	}
	return nil
}

func (svc *Service) QueryCategories(ctx context.Context, filter CategoryFilter) ([]Category, error) {
	filter.Clean()
	return svc.repo.QueryCategories(ctx, filter)
}

// CreateCategory inserts a new Category. nc must have been validated.
func (svc *Service) CreateCategory(ctx context.Context, nc NewCategory) (Category, error) {
	if err := svc.checkNameUniqueness(ctx, nc.Name); err != nil {
		return Category{}, err
	}
	now := nowFunc().UTC()
	c := Category{
		Name:      nc.Name,
		Amount:    *nc.Amount,
		Frequency: nc.Frequency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if nc.Description != "" {
		c.Description.SetValid(nc.Description)
	}
	return svc.repo.CreateCategory(ctx, c)
}

func (svc *Service) GetCategory(ctx context.Context, id string) (Category, error) {
	return svc.repo.GetCategoryByID(ctx, id)
}

// GetCategoryDetail returns the Category along with its Payments, each including its Student.
func (svc *Service) GetCategoryDetail(ctx context.Context, id string) (CategoryDetail, error) {
	c, err := svc.repo.GetCategoryByID(ctx, id)
	if err != nil {
		return CategoryDetail{}, err
	}
	payments, err := svc.QueryPayments(ctx, PaymentFilter{FeeCategoryID: c.ID, WithStudent: true})
	if err != nil {
		return CategoryDetail{}, errors.Wrap(err, "querying category payments")
	}
	return CategoryDetail{Category: c, FeePayments: payments}, nil
}

// UpdateCategory applies uc onto the Category identified by id. uc must have been validated.
func (svc *Service) UpdateCategory(ctx context.Context, id string, uc UpdateCategory) (Category, error) {
	c, err := svc.repo.GetCategoryByID(ctx, id)
	if err != nil {
		return Category{}, err
	}
	if uc.Name != nil && *uc.Name != c.Name {
		if err = svc.checkNameUniqueness(ctx, *uc.Name, c.ID); err != nil {
			return Category{}, err
		}
	}
	uc.apply(&c)
	c.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateCategory(ctx, c)
}

// DeleteCategory removes the Category identified by id, unless Payments reference it.
func (svc *Service) DeleteCategory(ctx context.Context, id string) error {
	c, err := svc.repo.GetCategoryByID(ctx, id)
	if err != nil {
		return err
	}
	count, err := svc.repo.CountCategoryPayments(ctx, c.ID)
	if err != nil {
		return errors.Wrap(err, "counting category payments")
	}
	if count > 0 {
		return ErrCategoryHasPayments
	}
	return svc.repo.DeleteCategory(ctx, c.ID)
}

// Payments

// loadRelated sets the Student and/or Category of each payment, as requested by the filter.
func (svc *Service) loadRelated(ctx context.Context, payments []Payment, withStudent, withCategory bool) error {
	if len(payments) == 0 || !(withStudent || withCategory) {
		return nil
	}

	studentIDs := make([]string, 0, len(payments))
	categoryIDs := make([]string, 0, len(payments))
	seen := make(map[string]bool, len(payments)*2)
	for _, p := range payments {
		if withStudent && !seen[p.StudentID] {
			studentIDs = append(studentIDs, p.StudentID)
			seen[p.StudentID] = true
		}
		if withCategory && !seen[p.FeeCategoryID] {
			categoryIDs = append(categoryIDs, p.FeeCategoryID)
			seen[p.FeeCategoryID] = true
		}
	}

	var (
		students   map[string]student.Student
		categories map[string]Category
		err        error
	)
	if withStudent {
		if students, err = svc.students.GetManyByID(ctx, studentIDs...); err != nil {
			return errors.Wrap(err, "loading payment students")
		}
	}
	if withCategory {
		if categories, err = svc.repo.GetCategoriesByID(ctx, categoryIDs...); err != nil {
			return errors.Wrap(err, "loading payment categories")
		}
	}

	for i := range payments {
		if s, ok := students[payments[i].StudentID]; ok {
			s := s
			payments[i].Student = &s
		}
		if c, ok := categories[payments[i].FeeCategoryID]; ok {
			c := c
			payments[i].FeeCategory = &c
		}
	}
	return nil
}

func (svc *Service) QueryPayments(ctx context.Context, filter PaymentFilter) ([]Payment, error) {
	filter.Clean()
	payments, err := svc.repo.QueryPayments(ctx, filter)
	if err != nil {
		return nil, err
	}
	if err = svc.loadRelated(ctx, payments, filter.WithStudent, filter.WithCategory); err != nil {
		return nil, err
	}
	return payments, nil
}

// GetPayment returns the Payment identified by id, including its Student & Category.
func (svc *Service) GetPayment(ctx context.Context, id string) (Payment, error) {
	p, err := svc.repo.GetPaymentByID(ctx, id)
	if err != nil {
		return Payment{}, err
	}
	payments := []Payment{p}
	if err = svc.loadRelated(ctx, payments, true, true); err != nil {
		return Payment{}, err
	}
	return payments[0], nil
}

// getReference returns a validation error on the field if the referenced record is not found.
func getReference[T any](ctx context.Context, get func(context.Context, string) (T, error), field, id string) (T, error) {
	v, err := get(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return v, core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
		}
		return v, errors.Wrapf(err, "getting %s", field)
	}
	return v, nil
}

// CreatePayment inserts a new Payment. np must have been validated.
// A payment confirmation is mailed to the Student when the Payment is created PAID.
func (svc *Service) CreatePayment(ctx context.Context, np NewPayment) (Payment, error) {
	s, err := getReference(ctx, svc.students.GetByID, "studentId", np.StudentID)
	if err != nil {
		return Payment{}, err
	}
	c, err := getReference(ctx, svc.repo.GetCategoryByID, "feeCategoryId", np.FeeCategoryID)
	if err != nil {
		return Payment{}, err
	}

	dueDate, err := parseDate("dueDate", np.DueDate)
	if err != nil {
		return Payment{}, err
	}
	paymentDate, err := parseNullDate("paymentDate", np.PaymentDate)
	if err != nil {
		return Payment{}, err
	}

	now := nowFunc().UTC()
	p := Payment{
		StudentID:     s.ID,
		FeeCategoryID: c.ID,
		Amount:        c.Amount,
		DueDate:       dueDate,
		PaymentDate:   paymentDate,
		Status:        np.Status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if np.Amount != nil {
		p.Amount = *np.Amount
	}
	if p.Status == "" {
		p.Status = StatusPending
	}
	if p.IsPaid() && !p.PaymentDate.Valid {
		p.PaymentDate.SetValid(core.TruncateDate(now))
	}

	if p, err = svc.repo.CreatePayment(ctx, p); err != nil {
		return Payment{}, err
	}
	p.Student = &s
	p.FeeCategory = &c

	if p.IsPaid() {
		svc.sendPaymentConfirmation(p)
	}
	return p, nil
}

// UpdatePayment applies up onto the Payment identified by id. up must have been validated.
// A payment confirmation is mailed to the Student when the Payment becomes PAID.
func (svc *Service) UpdatePayment(ctx context.Context, id string, up UpdatePayment) (Payment, error) {
	p, err := svc.GetPayment(ctx, id)
	if err != nil {
		return Payment{}, err
	}
	wasPaid := p.IsPaid()

	now := nowFunc().UTC()
	if err = up.apply(&p, core.TruncateDate(now)); err != nil {
		return Payment{}, err
	}
	p.UpdatedAt = now

	s, c := p.Student, p.FeeCategory
	if p, err = svc.repo.UpdatePayment(ctx, p); err != nil {
		return Payment{}, err
	}
	p.Student, p.FeeCategory = s, c

	if !wasPaid && p.IsPaid() {
		svc.sendPaymentConfirmation(p)
	}
	return p, nil
}

func (svc *Service) DeletePayment(ctx context.Context, id string) error {
	p, err := svc.repo.GetPaymentByID(ctx, id)
	if err != nil {
		return err
	}
	return svc.repo.DeletePayment(ctx, p.ID)
}

// SendReminder mails a fee reminder for an unpaid Payment to its Student.
func (svc *Service) SendReminder(ctx context.Context, id string) error {
	p, err := svc.GetPayment(ctx, id)
	if err != nil {
		return err
	}
	if p.IsPaid() {
		return ErrPaymentAlreadyPaid
	}
	msg := feeReminder(p)
	if msg == nil {
		return ErrNoStudentEmail
	}
	svc.mailSvc.SendMessages(msg)
	return nil
}

// MarkOverdue flags the PENDING & PARTIAL Payments due before asOf as OVERDUE.
// It returns the number of Payments flagged.
func (svc *Service) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	n, err := svc.repo.MarkOverduePayments(ctx, core.TruncateDate(asOf), nowFunc().UTC())
	if err != nil {
		return 0, errors.Wrap(err, "marking overdue payments")
	}
	return n, nil
}

func (svc *Service) sendPaymentConfirmation(p Payment) {
	if msg := paymentConfirmation(p); msg != nil {
		svc.mailSvc.SendMessages(msg)
	}
}
