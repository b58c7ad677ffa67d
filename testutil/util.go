package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/schoolfin/core"
	"github.com/trezcool/schoolfin/core/fee"
	"github.com/trezcool/schoolfin/core/student"
	"github.com/trezcool/schoolfin/core/user"
)

// NewValidator returns a validator with all the custom tags & translations registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)
	student.InitValidators(validate, translator)
	fee.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

// NopLogger discards everything.
type NopLogger struct{}

var _ core.Logger = NopLogger{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateStudent creates an ACTIVE Student; opts may set the other fields of ns.
func CreateStudent(
	t *testing.T,
	svc *student.Service,
	studentID, firstName, lastName string,
	opts ...func(ns *student.NewStudent),
) student.Student {
	t.Helper()
	ns := student.NewStudent{
		StudentID: studentID,
		FirstName: firstName,
		LastName:  lastName,
	}
	for _, opt := range opts {
		opt(&ns)
	}
	s, err := svc.Create(context.Background(), ns)
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return s
}

func CreateCategory(t *testing.T, svc *fee.Service, name string, amount int64, frequency string) fee.Category {
	t.Helper()
	amt := decimal.NewFromInt(amount)
	c, err := svc.CreateCategory(context.Background(), fee.NewCategory{
		Name:      name,
		Amount:    &amt,
		Frequency: frequency,
	})
	if err != nil {
		t.Fatalf("CreateCategory() failed: %v", err)
	}
	return c
}

// CreatePayment records a Payment of the Category's amount.
func CreatePayment(t *testing.T, svc *fee.Service, studentID, categoryID, dueDate, status string) fee.Payment {
	t.Helper()
	p, err := svc.CreatePayment(context.Background(), fee.NewPayment{
		StudentID:     studentID,
		FeeCategoryID: categoryID,
		DueDate:       dueDate,
		Status:        status,
	})
	if err != nil {
		t.Fatalf("CreatePayment() failed: %v", err)
	}
	return p
}
