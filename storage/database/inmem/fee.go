package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/schoolfin/core/fee"
)

type feeRepository struct {
	db *DB
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(db *DB) fee.Repository {
	return &feeRepository{db: db}
}

// Categories

// categoryNameExists must be called with the lock held.
func (repo *feeRepository) categoryNameExists(name string, excludedIDs ...string) bool {
	for id, row := range repo.db.categories {
		if row.Name == name && !isExcluded(id, excludedIDs) {
			return true
		}
	}
	return false
}

func (repo *feeRepository) CategoryNameExists(_ context.Context, name string, excludedIDs ...string) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.categoryNameExists(name, excludedIDs...), nil
}

func (repo *feeRepository) CreateCategory(_ context.Context, c fee.Category) (fee.Category, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.categoryNameExists(c.Name) {
		return fee.Category{}, fee.ErrCategoryNameExists
	}
	c.ID = uuid.New().String()
	repo.db.categories[c.ID] = &categoryRow{Category: c, seq: repo.db.nextSeq()}
	return c, nil
}

func (repo *feeRepository) QueryCategories(_ context.Context, filter fee.CategoryFilter) ([]fee.Category, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rows := make([]*categoryRow, 0, len(repo.db.categories))
	for _, row := range repo.db.categories {
		if filter.Frequency != "" && row.Frequency != filter.Frequency {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].seq > rows[j].seq
	})

	categories := make([]fee.Category, 0, len(rows))
	for _, row := range applyLimit(rows, filter.Limit) {
		categories = append(categories, row.Category)
	}
	return categories, nil
}

func (repo *feeRepository) GetCategoryByID(_ context.Context, id string) (fee.Category, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if row, ok := repo.db.categories[id]; ok {
		return row.Category, nil
	}
	return fee.Category{}, fee.ErrCategoryNotFound
}

func (repo *feeRepository) GetCategoriesByID(_ context.Context, ids ...string) (map[string]fee.Category, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	categories := make(map[string]fee.Category, len(ids))
	for _, id := range ids {
		if row, ok := repo.db.categories[id]; ok {
			categories[id] = row.Category
		}
	}
	return categories, nil
}

func (repo *feeRepository) UpdateCategory(_ context.Context, c fee.Category) (fee.Category, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	row, ok := repo.db.categories[c.ID]
	if !ok {
		return fee.Category{}, fee.ErrCategoryNotFound
	}
	if repo.categoryNameExists(c.Name, c.ID) {
		return fee.Category{}, fee.ErrCategoryNameExists
	}
	c.CreatedAt = row.CreatedAt
	row.Category = c
	return c, nil
}

func (repo *feeRepository) DeleteCategory(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.categories[id]; !ok {
		return fee.ErrCategoryNotFound
	}
	for _, p := range repo.db.payments {
		if p.FeeCategoryID == id {
			return fee.ErrCategoryHasPayments
		}
	}
	delete(repo.db.categories, id)
	return nil
}

func (repo *feeRepository) CountCategoryPayments(_ context.Context, id string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var count int
	for _, p := range repo.db.payments {
		if p.FeeCategoryID == id {
			count++
		}
	}
	return count, nil
}

// Payments

// checkReferences must be called with the lock held.
func (repo *feeRepository) checkReferences(p fee.Payment) error {
	if _, ok := repo.db.students[p.StudentID]; !ok {
		return fee.ErrInvalidReference
	}
	if _, ok := repo.db.categories[p.FeeCategoryID]; !ok {
		return fee.ErrInvalidReference
	}
	return nil
}

func (repo *feeRepository) CreatePayment(_ context.Context, p fee.Payment) (fee.Payment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.checkReferences(p); err != nil {
		return fee.Payment{}, err
	}
	p.ID = uuid.New().String()
	p.Student, p.FeeCategory = nil, nil
	repo.db.payments[p.ID] = &paymentRow{Payment: p, seq: repo.db.nextSeq()}
	return p, nil
}

func (repo *feeRepository) QueryPayments(_ context.Context, filter fee.PaymentFilter) ([]fee.Payment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rows := make([]*paymentRow, 0, len(repo.db.payments))
	for _, row := range repo.db.payments {
		if filter.StudentID != "" && row.StudentID != filter.StudentID {
			continue
		}
		if filter.FeeCategoryID != "" && row.FeeCategoryID != filter.FeeCategoryID {
			continue
		}
		if filter.Status != "" && row.Status != filter.Status {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].DueDate.Equal(rows[j].DueDate) {
			return rows[i].DueDate.After(rows[j].DueDate)
		}
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].seq > rows[j].seq
	})

	payments := make([]fee.Payment, 0, len(rows))
	for _, row := range applyLimit(rows, filter.Limit) {
		payments = append(payments, row.Payment)
	}
	return payments, nil
}

func (repo *feeRepository) GetPaymentByID(_ context.Context, id string) (fee.Payment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if row, ok := repo.db.payments[id]; ok {
		return row.Payment, nil
	}
	return fee.Payment{}, fee.ErrPaymentNotFound
}

func (repo *feeRepository) UpdatePayment(_ context.Context, p fee.Payment) (fee.Payment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	row, ok := repo.db.payments[p.ID]
	if !ok {
		return fee.Payment{}, fee.ErrPaymentNotFound
	}
	if err := repo.checkReferences(p); err != nil {
		return fee.Payment{}, err
	}
	p.CreatedAt = row.CreatedAt
	p.Student, p.FeeCategory = nil, nil
	row.Payment = p
	return p, nil
}

func (repo *feeRepository) DeletePayment(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.payments[id]; !ok {
		return fee.ErrPaymentNotFound
	}
	delete(repo.db.payments, id)
	return nil
}

func (repo *feeRepository) MarkOverduePayments(_ context.Context, asOf, now time.Time) (int64, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int64
	for _, row := range repo.db.payments {
		if (row.Status == fee.StatusPending || row.Status == fee.StatusPartial) && row.DueDate.Before(asOf) {
			row.Status = fee.StatusOverdue
			row.UpdatedAt = now
			n++
		}
	}
	return n, nil
}
