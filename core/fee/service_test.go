package fee_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/schoolfin/core"
	"github.com/trezcool/schoolfin/core/fee"
	"github.com/trezcool/schoolfin/core/student"
	emailsvc "github.com/trezcool/schoolfin/services/email"
	inmemdb "github.com/trezcool/schoolfin/storage/database/inmem"
	"github.com/trezcool/schoolfin/testutil"
)

type fixture struct {
	db         *inmemdb.DB
	svc        *fee.Service
	studentSvc *student.Service
	mailSvc    *emailsvc.ConsoleServiceMock
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := inmemdb.Open()
	studentSvc := student.NewService(inmemdb.NewStudentRepository(db))
	mailSvc := emailsvc.NewConsoleServiceMock(core.NewTestConfig(), testutil.NopLogger{})
	return fixture{
		db:         db,
		svc:        fee.NewService(inmemdb.NewFeeRepository(db), studentSvc, mailSvc),
		studentSvc: studentSvc,
		mailSvc:    mailSvc,
	}
}

// racyRepository misses the category name collisions, as a concurrent write would.
type racyRepository struct {
	fee.Repository
}

func (racyRepository) CategoryNameExists(context.Context, string, ...string) (bool, error) {
	return false, nil
}

func amount(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func TestService_CreateCategory(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	c, err := f.svc.CreateCategory(ctx, fee.NewCategory{Name: "Tuition", Amount: amount("100"), Frequency: fee.FrequencyMonthly})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.False(t, c.Description.Valid)

	_, err = f.svc.CreateCategory(ctx, fee.NewCategory{Name: "Tuition", Amount: amount("200"), Frequency: fee.FrequencyAnnually})
	assert.Equal(t, fee.ErrCategoryNameExists, err)

	racy := fee.NewService(racyRepository{inmemdb.NewFeeRepository(f.db)}, f.studentSvc, f.mailSvc)
	_, err = racy.CreateCategory(ctx, fee.NewCategory{Name: "Tuition", Amount: amount("200"), Frequency: fee.FrequencyAnnually})
	assert.Equal(t, fee.ErrCategoryNameExists, err)

	categories, err := f.svc.QueryCategories(ctx, fee.CategoryFilter{})
	require.NoError(t, err)
	assert.Equal(t, []fee.Category{c}, categories)
}

func TestNewCategory_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()

	tests := []struct {
		name    string
		data    fee.NewCategory
		wantErr error
	}{
		{name: "valid", data: fee.NewCategory{Name: " Tuition ", Amount: amount("0.01"), Frequency: fee.FrequencyOneTime}},
		{name: "no name", data: fee.NewCategory{Name: " ", Amount: amount("1"), Frequency: fee.FrequencyOneTime}, wantErr: fee.ErrCategoryMissingFields},
		{name: "no amount", data: fee.NewCategory{Name: "Tuition", Frequency: fee.FrequencyOneTime}, wantErr: fee.ErrCategoryMissingFields},
		{name: "no frequency", data: fee.NewCategory{Name: "Tuition", Amount: amount("1")}, wantErr: fee.ErrCategoryMissingFields},
		{name: "zero amount", data: fee.NewCategory{Name: "Tuition", Amount: amount("0"), Frequency: fee.FrequencyOneTime}, wantErr: fee.ErrInvalidAmount},
		{name: "negative amount", data: fee.NewCategory{Name: "Tuition", Amount: amount("-3"), Frequency: fee.FrequencyOneTime}, wantErr: fee.ErrInvalidAmount},
		{name: "trailing zeros", data: fee.NewCategory{Name: "Tuition", Amount: amount("10.500"), Frequency: fee.FrequencyOneTime}},
		{name: "largest amount", data: fee.NewCategory{Name: "Tuition", Amount: amount("9999999999.99"), Frequency: fee.FrequencyOneTime}},
		{name: "sub-cent amount", data: fee.NewCategory{Name: "Tuition", Amount: amount("0.001"), Frequency: fee.FrequencyOneTime}, wantErr: fee.ErrAmountOutOfRange},
		{name: "too many decimals", data: fee.NewCategory{Name: "Tuition", Amount: amount("10.505"), Frequency: fee.FrequencyOneTime}, wantErr: fee.ErrAmountOutOfRange},
		{name: "amount too large", data: fee.NewCategory{Name: "Tuition", Amount: amount("123456789012.5"), Frequency: fee.FrequencyOneTime}, wantErr: fee.ErrAmountOutOfRange},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := tt.data.Validate(validate)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, "Tuition", tt.data.Name)
		})
	}

	t.Run("invalid frequency", func(t *testing.T) {
		nc := fee.NewCategory{Name: "Tuition", Amount: amount("1"), Frequency: "Weekly"}
		assert.Error(t, nc.Validate(validate))
	})
}

func TestService_UpdateCategory(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	c := testutil.CreateCategory(t, f.svc, "Tuition", 500, fee.FrequencyMonthly)
	testutil.CreateCategory(t, f.svc, "Exams", 50, fee.FrequencyQuarterly)
	name := func(s string) *string { return &s }

	_, err := f.svc.UpdateCategory(ctx, "lol", fee.UpdateCategory{Name: name("X")})
	assert.Equal(t, fee.ErrCategoryNotFound, err)

	_, err = f.svc.UpdateCategory(ctx, c.ID, fee.UpdateCategory{Name: name("Exams")})
	assert.Equal(t, fee.ErrCategoryNameExists, err)

	got, err := f.svc.UpdateCategory(ctx, c.ID, fee.UpdateCategory{
		Name:        name("Tuition"),
		Amount:      amount("550"),
		Description: core.OptionalOf("Monthly tuition"),
	})
	require.NoError(t, err)
	assert.Equal(t, "550", got.Amount.String())
	assert.Equal(t, "Monthly tuition", got.Description.String)
	assert.Equal(t, fee.FrequencyMonthly, got.Frequency)

	got, err = f.svc.UpdateCategory(ctx, c.ID, fee.UpdateCategory{Description: core.Optional[string]{Set: true}})
	require.NoError(t, err)
	assert.False(t, got.Description.Valid)
	assert.Equal(t, "550", got.Amount.String())
}

func TestService_UpdateCategory_storeConstraint(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	racy := fee.NewService(racyRepository{inmemdb.NewFeeRepository(f.db)}, f.studentSvc, f.mailSvc)

	testutil.CreateCategory(t, racy, "Tuition", 500, fee.FrequencyMonthly)
	c := testutil.CreateCategory(t, racy, "Exams", 50, fee.FrequencyQuarterly)

	taken := "Tuition"
	_, err := racy.UpdateCategory(ctx, c.ID, fee.UpdateCategory{Name: &taken})
	assert.Equal(t, fee.ErrCategoryNameExists, err)
	assert.True(t, core.IsConflict(err))

	got, err := racy.GetCategory(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Exams", got.Name)
}

func TestService_DeleteCategory(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	c := testutil.CreateCategory(t, f.svc, "Tuition", 500, fee.FrequencyMonthly)
	withPayment := testutil.CreateCategory(t, f.svc, "Exams", 50, fee.FrequencyQuarterly)
	s := testutil.CreateStudent(t, f.studentSvc, "STU001", "John", "Doe")
	testutil.CreatePayment(t, f.svc, s.ID, withPayment.ID, "2024-03-05", fee.StatusPending)

	assert.Equal(t, fee.ErrCategoryNotFound, f.svc.DeleteCategory(ctx, "lol"))
	assert.Equal(t, fee.ErrCategoryHasPayments, f.svc.DeleteCategory(ctx, withPayment.ID))
	_, err := f.svc.GetCategory(ctx, withPayment.ID)
	assert.NoError(t, err)

	require.NoError(t, f.svc.DeleteCategory(ctx, c.ID))
	_, err = f.svc.GetCategory(ctx, c.ID)
	assert.Equal(t, fee.ErrCategoryNotFound, err)
}

func TestService_CreatePayment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	s := testutil.CreateStudent(t, f.studentSvc, "STU001", "John", "Doe", func(ns *student.NewStudent) {
		ns.Email = "john@test.cd"
	})
	c := testutil.CreateCategory(t, f.svc, "Tuition", 500, fee.FrequencyMonthly)

	tests := []struct {
		name            string
		data            fee.NewPayment
		wantErr         bool
		wantAmount      string
		wantStatus      string
		wantPaymentDate time.Time
		wantMails       int
	}{
		{
			name:    "unknown student",
			data:    fee.NewPayment{StudentID: "lol", FeeCategoryID: c.ID, DueDate: "2024-03-05"},
			wantErr: true,
		},
		{
			name:    "unknown category",
			data:    fee.NewPayment{StudentID: s.ID, FeeCategoryID: "lol", DueDate: "2024-03-05"},
			wantErr: true,
		},
		{
			name:       "defaults",
			data:       fee.NewPayment{StudentID: s.ID, FeeCategoryID: c.ID, DueDate: "2024-03-05"},
			wantAmount: "500",
			wantStatus: fee.StatusPending,
		},
		{
			name:            "paid today",
			data:            fee.NewPayment{StudentID: s.ID, FeeCategoryID: c.ID, DueDate: "2024-03-05", Amount: amount("120.5"), Status: fee.StatusPaid},
			wantAmount:      "120.5",
			wantStatus:      fee.StatusPaid,
			wantPaymentDate: core.Today(),
			wantMails:       1,
		},
		{
			name:            "paid on date",
			data:            fee.NewPayment{StudentID: s.ID, FeeCategoryID: c.ID, DueDate: "2024-03-05", PaymentDate: "2024-03-01", Status: fee.StatusPaid},
			wantAmount:      "500",
			wantStatus:      fee.StatusPaid,
			wantPaymentDate: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
			wantMails:       1,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			f.mailSvc.Reset()
			p, err := f.svc.CreatePayment(ctx, tt.data)
			if tt.wantErr {
				require.Error(t, err)
				vErr, ok := err.(*core.ValidationError)
				require.True(t, ok, "want *core.ValidationError, got %v", err)
				assert.Len(t, vErr.Fields, 1)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAmount, p.Amount.String())
			assert.Equal(t, tt.wantStatus, p.Status)
			assert.Equal(t, tt.wantPaymentDate, p.PaymentDate.Time)
			assert.Equal(t, !tt.wantPaymentDate.IsZero(), p.PaymentDate.Valid)
			assert.Len(t, f.mailSvc.SentMessages(), tt.wantMails)
		})
	}
}

func TestService_QueryPayments(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	s := testutil.CreateStudent(t, f.studentSvc, "STU001", "John", "Doe")
	c := testutil.CreateCategory(t, f.svc, "Tuition", 500, fee.FrequencyMonthly)
	p1 := testutil.CreatePayment(t, f.svc, s.ID, c.ID, "2024-01-05", fee.StatusPending)
	p2 := testutil.CreatePayment(t, f.svc, s.ID, c.ID, "2024-02-05", fee.StatusPending)

	got, err := f.svc.QueryPayments(ctx, fee.PaymentFilter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, p2.ID, got[0].ID)
	assert.Equal(t, p1.ID, got[1].ID)
	assert.Nil(t, got[0].Student)
	assert.Nil(t, got[0].FeeCategory)

	got, err = f.svc.QueryPayments(ctx, fee.PaymentFilter{StudentID: s.ID, WithStudent: true})
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, p := range got {
		require.NotNil(t, p.Student)
		assert.Equal(t, s, *p.Student)
		assert.Nil(t, p.FeeCategory)
	}

	got, err = f.svc.QueryPayments(ctx, fee.PaymentFilter{FeeCategoryID: c.ID, WithCategory: true, Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, c, *got[0].FeeCategory)
}

func TestService_UpdatePayment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	s := testutil.CreateStudent(t, f.studentSvc, "STU001", "John", "Doe", func(ns *student.NewStudent) {
		ns.Email = "john@test.cd"
	})
	c := testutil.CreateCategory(t, f.svc, "Tuition", 500, fee.FrequencyMonthly)
	p := testutil.CreatePayment(t, f.svc, s.ID, c.ID, "2024-03-05", fee.StatusPending)
	status := func(s string) *string { return &s }

	_, err := f.svc.UpdatePayment(ctx, "lol", fee.UpdatePayment{Status: status(fee.StatusPaid)})
	assert.Equal(t, fee.ErrPaymentNotFound, err)

	f.mailSvc.Reset()
	got, err := f.svc.UpdatePayment(ctx, p.ID, fee.UpdatePayment{Status: status(fee.StatusPaid)})
	require.NoError(t, err)
	assert.Equal(t, fee.StatusPaid, got.Status)
	assert.Equal(t, core.Today(), got.PaymentDate.Time)
	require.NotNil(t, got.Student)
	require.NotNil(t, got.FeeCategory)
	assert.Len(t, f.mailSvc.SentMessages(), 1)

	got, err = f.svc.UpdatePayment(ctx, p.ID, fee.UpdatePayment{Status: status(fee.StatusPartial), PaymentDate: core.Optional[string]{Set: true}})
	require.NoError(t, err)
	assert.Equal(t, fee.StatusPartial, got.Status)
	assert.False(t, got.PaymentDate.Valid)
	assert.Len(t, f.mailSvc.SentMessages(), 1)
}

func TestPayment_Validate_amount(t *testing.T) {
	validate, _ := testutil.NewValidator()

	tests := []struct {
		name    string
		amount  *decimal.Decimal
		wantErr error
	}{
		{name: "category amount", amount: nil},
		{name: "cents", amount: amount("250.75")},
		{name: "zero", amount: amount("0"), wantErr: fee.ErrInvalidAmount},
		{name: "sub-cent", amount: amount("0.001"), wantErr: fee.ErrAmountOutOfRange},
		{name: "too large", amount: amount("10000000000"), wantErr: fee.ErrAmountOutOfRange},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			np := fee.NewPayment{StudentID: "s", FeeCategoryID: "c", DueDate: "2024-03-05", Amount: tt.amount}
			up := fee.UpdatePayment{Amount: tt.amount}
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, np.Validate(validate))
				assert.Equal(t, tt.wantErr, up.Validate(validate))
				return
			}
			assert.NoError(t, np.Validate(validate))
			assert.NoError(t, up.Validate(validate))
		})
	}
}

func TestService_SendReminder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	s := testutil.CreateStudent(t, f.studentSvc, "STU001", "John", "Doe", func(ns *student.NewStudent) {
		ns.Email = "john@test.cd"
	})
	noEmail := testutil.CreateStudent(t, f.studentSvc, "STU002", "Jane", "Roe")
	c := testutil.CreateCategory(t, f.svc, "Tuition", 500, fee.FrequencyMonthly)
	pending := testutil.CreatePayment(t, f.svc, s.ID, c.ID, "2024-03-05", fee.StatusOverdue)
	paid := testutil.CreatePayment(t, f.svc, s.ID, c.ID, "2024-02-05", fee.StatusPaid)
	unreachable := testutil.CreatePayment(t, f.svc, noEmail.ID, c.ID, "2024-03-05", fee.StatusPending)
	f.mailSvc.Reset()

	assert.Equal(t, fee.ErrPaymentNotFound, f.svc.SendReminder(ctx, "lol"))
	assert.Equal(t, fee.ErrPaymentAlreadyPaid, f.svc.SendReminder(ctx, paid.ID))
	assert.Equal(t, fee.ErrNoStudentEmail, f.svc.SendReminder(ctx, unreachable.ID))
	assert.Empty(t, f.mailSvc.SentMessages())

	require.NoError(t, f.svc.SendReminder(ctx, pending.ID))
	sent := f.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Fee payment reminder", sent[0].Subject)
	assert.Equal(t, "John Doe", sent[0].To[0].Name)
}

func TestService_MarkOverdue(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	s := testutil.CreateStudent(t, f.studentSvc, "STU001", "John", "Doe")
	c := testutil.CreateCategory(t, f.svc, "Tuition", 500, fee.FrequencyMonthly)
	pending := testutil.CreatePayment(t, f.svc, s.ID, c.ID, "2024-03-01", fee.StatusPending)
	partial := testutil.CreatePayment(t, f.svc, s.ID, c.ID, "2024-03-04", fee.StatusPartial)
	paid := testutil.CreatePayment(t, f.svc, s.ID, c.ID, "2024-02-01", fee.StatusPaid)
	dueToday := testutil.CreatePayment(t, f.svc, s.ID, c.ID, "2024-03-05", fee.StatusPending)

	n, err := f.svc.MarkOverdue(ctx, time.Date(2024, time.March, 5, 18, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	wantStatuses := map[string]string{
		pending.ID:  fee.StatusOverdue,
		partial.ID:  fee.StatusOverdue,
		paid.ID:     fee.StatusPaid,
		dueToday.ID: fee.StatusPending,
	}
	for id, want := range wantStatuses {
		p, err := f.svc.GetPayment(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, p.Status, id)
	}

	n, err = f.svc.MarkOverdue(ctx, time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSummarize(t *testing.T) {
	payments := []fee.Payment{
		{Amount: *amount("100.50"), Status: fee.StatusPaid},
		{Amount: *amount("200"), Status: fee.StatusPending},
		{Amount: *amount("50.25"), Status: fee.StatusPartial},
		{Amount: *amount("75"), Status: fee.StatusOverdue},
	}
	sum := fee.Summarize(payments)
	assert.Equal(t, "425.75", sum.Total.String())
	assert.Equal(t, "100.5", sum.Paid.String())
	assert.Equal(t, "250.25", sum.Pending.String())
	assert.Equal(t, "75", sum.Overdue.String())

	empty := fee.Summarize(nil)
	assert.True(t, empty.Total.IsZero())
	assert.Equal(t, "0", empty.Overdue.String())
}

func TestPayment_ReceiptNumber(t *testing.T) {
	p := fee.Payment{ID: "0c4a36a0-5d5e-4c3b-9a59-2a0f2d5bb4f1"}
	assert.Equal(t, "RCT-0C4A36A05D", p.ReceiptNumber())
}
