package sqlxrepos_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/schoolfin/core"
	"github.com/trezcool/schoolfin/core/fee"
	"github.com/trezcool/schoolfin/core/student"
	"github.com/trezcool/schoolfin/core/user"
	emailsvc "github.com/trezcool/schoolfin/services/email"
	"github.com/trezcool/schoolfin/storage/database"
	sqlxrepos "github.com/trezcool/schoolfin/storage/database/sqlx"
	"github.com/trezcool/schoolfin/testutil"
)

const testDBURLEnv = "SCHOOLFIN_TEST_DATABASE_URL"

// prepareDB opens & migrates the test database, then empties it. The tests are skipped when it is not configured.
func prepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dbURL := os.Getenv(testDBURLEnv)
	if dbURL == "" {
		t.Skipf("%s is not set", testDBURLEnv)
	}

	db, err := database.OpenURL(dbURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(db))
	_, err = db.Exec("TRUNCATE fee_payments, fee_categories, students, users")
	require.NoError(t, err)
	return db
}

type services struct {
	db         *sqlx.DB
	usrRepo    user.Repository
	studentSvc *student.Service
	feeSvc     *fee.Service
}

func setup(t *testing.T) services {
	t.Helper()
	db := prepareDB(t)
	studentSvc := student.NewService(sqlxrepos.NewStudentRepository(db))
	mailSvc := emailsvc.NewConsoleServiceMock(core.NewTestConfig(), testutil.NopLogger{})
	return services{
		db:         db,
		usrRepo:    sqlxrepos.NewUserRepository(db),
		studentSvc: studentSvc,
		feeSvc:     fee.NewService(sqlxrepos.NewFeeRepository(db), studentSvc, mailSvc),
	}
}

func TestUserRepository(t *testing.T) {
	svcs := setup(t)
	ctx := context.Background()

	usr := testutil.CreateUser(t, svcs.usrRepo, "Admin", "admin@test.cd", "password123", user.RoleAdmin, true)
	assert.NotEmpty(t, usr.ID)

	_, err := svcs.usrRepo.CreateUser(ctx, user.User{
		Name:         "Other",
		Email:        "admin@test.cd",
		Role:         user.RoleStaff,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt,
		UpdatedAt:    usr.UpdatedAt,
	})
	assert.Equal(t, user.ErrEmailExists, err)

	got, err := svcs.usrRepo.GetUserByEmail(ctx, "admin@test.cd")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)
	assert.Equal(t, usr.PasswordHash, got.PasswordHash)

	got.LastLogin.SetValid(time.Now().UTC())
	got.Name = "Boss"
	_, err = svcs.usrRepo.UpdateUser(ctx, got)
	require.NoError(t, err)

	got, err = svcs.usrRepo.GetUserByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, "Boss", got.Name)
	assert.True(t, got.LastLogin.Valid)

	_, err = svcs.usrRepo.GetUserByID(ctx, "lol")
	assert.Equal(t, user.ErrNotFound, err)
	_, err = svcs.usrRepo.GetUserByEmail(ctx, "lol@test.cd")
	assert.Equal(t, user.ErrNotFound, err)
}

func TestStudentRepository(t *testing.T) {
	svcs := setup(t)
	ctx := context.Background()
	repo := sqlxrepos.NewStudentRepository(svcs.db)

	s1 := testutil.CreateStudent(t, svcs.studentSvc, "STU001", "John", "Doe", func(ns *student.NewStudent) {
		ns.DateOfBirth = "2012-04-01"
		ns.Email = "john@test.cd"
		ns.Class = "5"
		ns.Section = "A"
	})
	s2 := testutil.CreateStudent(t, svcs.studentSvc, "STU002", "Jane", "Roe", func(ns *student.NewStudent) {
		ns.Class = "5"
		ns.Status = student.StatusInactive
	})

	t.Run("round trip", func(t *testing.T) {
		got, err := svcs.studentSvc.GetByID(ctx, s1.ID)
		require.NoError(t, err)
		assert.Equal(t, s1.StudentID, got.StudentID)
		assert.Equal(t, "2012-04-01", got.DateOfBirth.Time.Format(core.DateLayout))
		assert.Equal(t, core.Today(), got.AdmissionDate)
		assert.Equal(t, s1.Email, got.Email)
		assert.False(t, got.Gender.Valid)
		assert.WithinDuration(t, s1.CreatedAt, got.CreatedAt, time.Millisecond)
	})

	t.Run("query", func(t *testing.T) {
		got, err := svcs.studentSvc.Query(ctx, student.QueryFilter{Class: "5"})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, s2.ID, got[0].ID)

		got, err = svcs.studentSvc.Query(ctx, student.QueryFilter{Status: student.StatusActive, Limit: 5})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, s1.ID, got[0].ID)

		many, err := svcs.studentSvc.GetManyByID(ctx, s1.ID, s2.ID, "lol")
		require.NoError(t, err)
		assert.Len(t, many, 2)
	})

	t.Run("unique studentId", func(t *testing.T) {
		dup := s2
		dup.ID = ""
		dup.StudentID = "STU001"
		_, err := repo.CreateStudent(ctx, dup)
		assert.Equal(t, student.ErrStudentIDExists, err)

		s2.StudentID = "STU001"
		_, err = repo.UpdateStudent(ctx, s2)
		assert.Equal(t, student.ErrStudentIDExists, err)

		exists, err := repo.StudentIDExists(ctx, "STU001", s1.ID)
		require.NoError(t, err)
		assert.False(t, exists)
		exists, err = repo.StudentIDExists(ctx, "STU001")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.GetStudentByID(ctx, "lol")
		assert.Equal(t, student.ErrNotFound, err)
		_, err = repo.GetStudentByID(ctx, "0c4a36a0-5d5e-4c3b-9a59-2a0f2d5bb4f1")
		assert.Equal(t, student.ErrNotFound, err)
		assert.Equal(t, student.ErrNotFound, repo.DeleteStudent(ctx, "lol"))
	})

	t.Run("foreign key", func(t *testing.T) {
		c := testutil.CreateCategory(t, svcs.feeSvc, "Tuition", 500, fee.FrequencyMonthly)
		testutil.CreatePayment(t, svcs.feeSvc, s1.ID, c.ID, "2024-03-05", fee.StatusPending)

		assert.Equal(t, student.ErrHasFeePayments, repo.DeleteStudent(ctx, s1.ID))
		n, err := repo.CountFeePayments(ctx, s1.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestFeeRepository(t *testing.T) {
	svcs := setup(t)
	ctx := context.Background()
	repo := sqlxrepos.NewFeeRepository(svcs.db)

	s := testutil.CreateStudent(t, svcs.studentSvc, "STU001", "John", "Doe")
	c1 := testutil.CreateCategory(t, svcs.feeSvc, "Tuition", 500, fee.FrequencyMonthly)
	c2 := testutil.CreateCategory(t, svcs.feeSvc, "Exams", 50, fee.FrequencyQuarterly)
	p1 := testutil.CreatePayment(t, svcs.feeSvc, s.ID, c1.ID, "2024-01-05", fee.StatusPending)
	p2 := testutil.CreatePayment(t, svcs.feeSvc, s.ID, c2.ID, "2024-03-05", fee.StatusPartial)
	p3 := testutil.CreatePayment(t, svcs.feeSvc, s.ID, c1.ID, "2024-02-05", fee.StatusPaid)

	t.Run("categories", func(t *testing.T) {
		got, err := svcs.feeSvc.QueryCategories(ctx, fee.CategoryFilter{})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, c2.ID, got[0].ID)
		assert.True(t, c2.Amount.Equal(got[0].Amount))

		got, err = svcs.feeSvc.QueryCategories(ctx, fee.CategoryFilter{Frequency: fee.FrequencyMonthly})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, c1.ID, got[0].ID)

		dup := c1
		dup.Name = "Exams"
		_, err = repo.UpdateCategory(ctx, dup)
		assert.Equal(t, fee.ErrCategoryNameExists, err)
		_, err = repo.CreateCategory(ctx, dup)
		assert.Equal(t, fee.ErrCategoryNameExists, err)

		assert.Equal(t, fee.ErrCategoryHasPayments, repo.DeleteCategory(ctx, c1.ID))
		_, err = repo.GetCategoryByID(ctx, "lol")
		assert.Equal(t, fee.ErrCategoryNotFound, err)
	})

	t.Run("payments", func(t *testing.T) {
		got, err := svcs.feeSvc.QueryPayments(ctx, fee.PaymentFilter{StudentID: s.ID, WithStudent: true, WithCategory: true})
		require.NoError(t, err)
		require.Len(t, got, 3)
		for i, want := range []fee.Payment{p2, p3, p1} {
			assert.Equal(t, want.ID, got[i].ID)
			assert.True(t, want.Amount.Equal(got[i].Amount))
			require.NotNil(t, got[i].Student)
			require.NotNil(t, got[i].FeeCategory)
		}
		assert.True(t, got[1].PaymentDate.Valid)

		got, err = svcs.feeSvc.QueryPayments(ctx, fee.PaymentFilter{FeeCategoryID: c1.ID, Status: fee.StatusPending})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, p1.ID, got[0].ID)

		got, err = svcs.feeSvc.QueryPayments(ctx, fee.PaymentFilter{StudentID: "lol"})
		require.NoError(t, err)
		assert.Empty(t, got)

		orphan := p1
		orphan.StudentID = "0c4a36a0-5d5e-4c3b-9a59-2a0f2d5bb4f1"
		_, err = repo.CreatePayment(ctx, orphan)
		assert.Equal(t, fee.ErrInvalidReference, err)
	})

	t.Run("mark overdue", func(t *testing.T) {
		n, err := svcs.feeSvc.MarkOverdue(ctx, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		got, err := svcs.feeSvc.GetPayment(ctx, p1.ID)
		require.NoError(t, err)
		assert.Equal(t, fee.StatusOverdue, got.Status)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.DeletePayment(ctx, p3.ID))
		assert.Equal(t, fee.ErrPaymentNotFound, repo.DeletePayment(ctx, p3.ID))
		n, err := repo.CountCategoryPayments(ctx, c1.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}
