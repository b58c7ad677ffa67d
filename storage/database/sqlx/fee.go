package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/schoolfin/core"
	"github.com/trezcool/schoolfin/core/fee"
)

const (
	categoriesTable = "fee_categories"
	paymentsTable   = "fee_payments"

	categoriesNameKey            = "fee_categories_name_key"
	feePaymentsFeeCategoryIDFKey = "fee_payments_fee_category_id_fkey"
	categoryColumns              = "id, name, description, amount, frequency, created_at, updated_at"
	paymentColumns               = "id, student_id, fee_category_id, amount, due_date, payment_date, status, created_at, updated_at"
	insertCategoryQuery          = "INSERT INTO fee_categories (" + categoryColumns + ") VALUES (:id, :name, :description, :amount, :frequency, :created_at, :updated_at)"
	updateCategoryQuery          = "UPDATE fee_categories SET name = :name, description = :description, amount = :amount, frequency = :frequency, updated_at = :updated_at WHERE id = :id"
	insertPaymentQuery           = "INSERT INTO fee_payments (" + paymentColumns + ") VALUES (:id, :student_id, :fee_category_id, :amount, :due_date, :payment_date, :status, :created_at, :updated_at)"
	updatePaymentQuery           = "UPDATE fee_payments SET student_id = :student_id, fee_category_id = :fee_category_id, amount = :amount, due_date = :due_date, payment_date = :payment_date, status = :status, updated_at = :updated_at WHERE id = :id"
	selectCategoriesByIDsQuery   = "SELECT " + categoryColumns + " FROM fee_categories WHERE id IN (?)"
	countCategoryPaymentsQuery   = "SELECT COUNT(*) FROM fee_payments WHERE fee_category_id = $1"
	markOverduePaymentsQuery     = "UPDATE fee_payments SET status = $1, updated_at = $2 WHERE status IN ($3, $4) AND due_date < $5"
	categoryCreatedAtOrderField  = "created_at"
	paymentDueDateOrderField     = "due_date"
	paymentCreatedAtOrderField   = "created_at"
	deleteCategoryQuery          = "DELETE FROM fee_categories WHERE id = $1"
	deletePaymentQuery           = "DELETE FROM fee_payments WHERE id = $1"
)

type categoryRow struct {
	ID          string          `db:"id"`
	Name        string          `db:"name"`
	Description null.String     `db:"description"`
	Amount      decimal.Decimal `db:"amount"`
	Frequency   string          `db:"frequency"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

type paymentRow struct {
	ID            string          `db:"id"`
	StudentID     string          `db:"student_id"`
	FeeCategoryID string          `db:"fee_category_id"`
	Amount        decimal.Decimal `db:"amount"`
	DueDate       time.Time       `db:"due_date"`
	PaymentDate   null.Time       `db:"payment_date"`
	Status        string          `db:"status"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

type feeRepository struct {
	db core.DBExecutor
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(db core.DBExecutor) *feeRepository {
	return &feeRepository{db: db}
}

func (repo feeRepository) boilCategory(c fee.Category) categoryRow {
	return categoryRow{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Amount:      c.Amount,
		Frequency:   c.Frequency,
		CreatedAt:   c.CreatedAt.UTC(),
		UpdatedAt:   c.UpdatedAt.UTC(),
	}
}

func (repo feeRepository) unboilCategory(row categoryRow) fee.Category {
	return fee.Category{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Amount:      row.Amount,
		Frequency:   row.Frequency,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

func (repo feeRepository) boilPayment(p fee.Payment) paymentRow {
	pd := p.PaymentDate
	if pd.Valid {
		pd.Time = core.TruncateDate(pd.Time)
	}
	return paymentRow{
		ID:            p.ID,
		StudentID:     p.StudentID,
		FeeCategoryID: p.FeeCategoryID,
		Amount:        p.Amount,
		DueDate:       core.TruncateDate(p.DueDate),
		PaymentDate:   pd,
		Status:        p.Status,
		CreatedAt:     p.CreatedAt.UTC(),
		UpdatedAt:     p.UpdatedAt.UTC(),
	}
}

func (repo feeRepository) unboilPayment(row paymentRow) fee.Payment {
	pd := row.PaymentDate
	if pd.Valid {
		pd.Time = core.TruncateDate(pd.Time)
	}
	return fee.Payment{
		ID:            row.ID,
		StudentID:     row.StudentID,
		FeeCategoryID: row.FeeCategoryID,
		Amount:        row.Amount,
		DueDate:       core.TruncateDate(row.DueDate),
		PaymentDate:   pd,
		Status:        row.Status,
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
	}
}

// trapWriteErr maps constraint violations to fee errors.
func (repo feeRepository) trapWriteErr(err error, msg string) error {
	switch {
	case isConstraintErr(err, pqUniqueViolation, categoriesNameKey):
		return fee.ErrCategoryNameExists
	case isConstraintErr(err, pqForeignKeyViolation, ""):
		return fee.ErrInvalidReference
	}
	return errors.Wrap(err, msg)
}

// Categories

func (repo feeRepository) CategoryNameExists(ctx context.Context, name string, excludedIDs ...string) (bool, error) {
	q := psql.Select("COUNT(*)").From(categoriesTable).Where(sq.Eq{"name": name})
	if ids := validIDs(excludedIDs); len(ids) > 0 {
		q = q.Where(sq.NotEq{"id": ids})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return false, errors.Wrap(err, "building category name uniqueness query")
	}

	var count int
	if err = sqlx.GetContext(ctx, repo.db, &count, query, args...); err != nil {
		return false, errors.Wrap(err, "checking category name uniqueness")
	}
	return count > 0, nil
}

func (repo feeRepository) CreateCategory(ctx context.Context, c fee.Category) (fee.Category, error) {
	c.ID = newID()
	row := repo.boilCategory(c)
	if _, err := sqlx.NamedExecContext(ctx, repo.db, insertCategoryQuery, row); err != nil {
		return fee.Category{}, repo.trapWriteErr(err, "inserting category")
	}
	return repo.unboilCategory(row), nil
}

func (repo feeRepository) QueryCategories(ctx context.Context, filter fee.CategoryFilter) ([]fee.Category, error) {
	q := psql.Select(categoryColumns).From(categoriesTable)
	if filter.Frequency != "" {
		q = q.Where(sq.Eq{"frequency": filter.Frequency})
	}
	q = limit(q.OrderBy(core.DBOrdering{Field: categoryCreatedAtOrderField}.String()), filter.Limit)

	query, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building categories query")
	}
	var rows []categoryRow
	if err = sqlx.SelectContext(ctx, repo.db, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting categories")
	}

	categories := make([]fee.Category, 0, len(rows))
	for _, row := range rows {
		categories = append(categories, repo.unboilCategory(row))
	}
	return categories, nil
}

func (repo feeRepository) GetCategoryByID(ctx context.Context, id string) (fee.Category, error) {
	if !isUUID(id) {
		return fee.Category{}, fee.ErrCategoryNotFound
	}
	query, args, err := psql.Select(categoryColumns).From(categoriesTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fee.Category{}, errors.Wrap(err, "building category query")
	}
	var row categoryRow
	if err = sqlx.GetContext(ctx, repo.db, &row, query, args...); err != nil {
		return fee.Category{}, trapNoRowsErr(err, fee.ErrCategoryNotFound, "selecting category")
	}
	return repo.unboilCategory(row), nil
}

func (repo feeRepository) GetCategoriesByID(ctx context.Context, ids ...string) (map[string]fee.Category, error) {
	ids = validIDs(ids)
	categories := make(map[string]fee.Category, len(ids))
	if len(ids) == 0 {
		return categories, nil
	}

	query, args, err := sqlx.In(selectCategoriesByIDsQuery, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building categories by IDs query")
	}
	var rows []categoryRow
	if err = sqlx.SelectContext(ctx, repo.db, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "selecting categories by IDs")
	}
	for _, row := range rows {
		categories[row.ID] = repo.unboilCategory(row)
	}
	return categories, nil
}

func (repo feeRepository) UpdateCategory(ctx context.Context, c fee.Category) (fee.Category, error) {
	if !isUUID(c.ID) {
		return fee.Category{}, fee.ErrCategoryNotFound
	}
	res, err := sqlx.NamedExecContext(ctx, repo.db, updateCategoryQuery, repo.boilCategory(c))
	if err != nil {
		return fee.Category{}, repo.trapWriteErr(err, "updating category")
	}
	if n, err := res.RowsAffected(); err != nil {
		return fee.Category{}, errors.Wrap(err, "updating category")
	} else if n == 0 {
		return fee.Category{}, fee.ErrCategoryNotFound
	}
	return repo.GetCategoryByID(ctx, c.ID)
}

func (repo feeRepository) DeleteCategory(ctx context.Context, id string) error {
	if !isUUID(id) {
		return fee.ErrCategoryNotFound
	}
	res, err := repo.db.ExecContext(ctx, deleteCategoryQuery, id)
	if err != nil {
		if isConstraintErr(err, pqForeignKeyViolation, feePaymentsFeeCategoryIDFKey) {
			return fee.ErrCategoryHasPayments
		}
		return errors.Wrap(err, "deleting category")
	}
	if n, err := res.RowsAffected(); err != nil {
		return errors.Wrap(err, "deleting category")
	} else if n == 0 {
		return fee.ErrCategoryNotFound
	}
	return nil
}

func (repo feeRepository) CountCategoryPayments(ctx context.Context, id string) (int, error) {
	if !isUUID(id) {
		return 0, nil
	}
	var count int
	if err := sqlx.GetContext(ctx, repo.db, &count, countCategoryPaymentsQuery, id); err != nil {
		return 0, errors.Wrap(err, "counting category payments")
	}
	return count, nil
}

// Payments

func (repo feeRepository) CreatePayment(ctx context.Context, p fee.Payment) (fee.Payment, error) {
	if !isUUID(p.StudentID) || !isUUID(p.FeeCategoryID) {
		return fee.Payment{}, fee.ErrInvalidReference
	}
	p.ID = newID()
	row := repo.boilPayment(p)
	if _, err := sqlx.NamedExecContext(ctx, repo.db, insertPaymentQuery, row); err != nil {
		return fee.Payment{}, repo.trapWriteErr(err, "inserting payment")
	}
	return repo.unboilPayment(row), nil
}

func (repo feeRepository) QueryPayments(ctx context.Context, filter fee.PaymentFilter) ([]fee.Payment, error) {
	q := psql.Select(paymentColumns).From(paymentsTable)
	if (filter.StudentID != "" && !isUUID(filter.StudentID)) || (filter.FeeCategoryID != "" && !isUUID(filter.FeeCategoryID)) {
		return []fee.Payment{}, nil
	}
	if filter.StudentID != "" {
		q = q.Where(sq.Eq{"student_id": filter.StudentID})
	}
	if filter.FeeCategoryID != "" {
		q = q.Where(sq.Eq{"fee_category_id": filter.FeeCategoryID})
	}
	if filter.Status != "" {
		q = q.Where(sq.Eq{"status": filter.Status})
	}
	q = q.OrderBy(
		core.DBOrdering{Field: paymentDueDateOrderField}.String(),
		core.DBOrdering{Field: paymentCreatedAtOrderField}.String(),
	)
	q = limit(q, filter.Limit)

	query, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building payments query")
	}
	var rows []paymentRow
	if err = sqlx.SelectContext(ctx, repo.db, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting payments")
	}

	payments := make([]fee.Payment, 0, len(rows))
	for _, row := range rows {
		payments = append(payments, repo.unboilPayment(row))
	}
	return payments, nil
}

func (repo feeRepository) GetPaymentByID(ctx context.Context, id string) (fee.Payment, error) {
	if !isUUID(id) {
		return fee.Payment{}, fee.ErrPaymentNotFound
	}
	query, args, err := psql.Select(paymentColumns).From(paymentsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fee.Payment{}, errors.Wrap(err, "building payment query")
	}
	var row paymentRow
	if err = sqlx.GetContext(ctx, repo.db, &row, query, args...); err != nil {
		return fee.Payment{}, trapNoRowsErr(err, fee.ErrPaymentNotFound, "selecting payment")
	}
	return repo.unboilPayment(row), nil
}

func (repo feeRepository) UpdatePayment(ctx context.Context, p fee.Payment) (fee.Payment, error) {
	if !isUUID(p.ID) {
		return fee.Payment{}, fee.ErrPaymentNotFound
	}
	res, err := sqlx.NamedExecContext(ctx, repo.db, updatePaymentQuery, repo.boilPayment(p))
	if err != nil {
		return fee.Payment{}, repo.trapWriteErr(err, "updating payment")
	}
	if n, err := res.RowsAffected(); err != nil {
		return fee.Payment{}, errors.Wrap(err, "updating payment")
	} else if n == 0 {
		return fee.Payment{}, fee.ErrPaymentNotFound
	}
	return repo.GetPaymentByID(ctx, p.ID)
}

func (repo feeRepository) DeletePayment(ctx context.Context, id string) error {
	if !isUUID(id) {
		return fee.ErrPaymentNotFound
	}
	res, err := repo.db.ExecContext(ctx, deletePaymentQuery, id)
	if err != nil {
		return errors.Wrap(err, "deleting payment")
	}
	if n, err := res.RowsAffected(); err != nil {
		return errors.Wrap(err, "deleting payment")
	} else if n == 0 {
		return fee.ErrPaymentNotFound
	}
	return nil
}

func (repo feeRepository) MarkOverduePayments(ctx context.Context, asOf, now time.Time) (int64, error) {
	res, err := repo.db.ExecContext(
		ctx, markOverduePaymentsQuery,
		fee.StatusOverdue, now.UTC(), fee.StatusPending, fee.StatusPartial, core.TruncateDate(asOf),
	)
	if err != nil {
		return 0, errors.Wrap(err, "updating overdue payments")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting overdue payments")
	}
	return n, nil
}
