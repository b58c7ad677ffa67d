package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/schoolfin/core/student"
)

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db}
}

// studentIDExists must be called with the lock held.
func (repo *studentRepository) studentIDExists(studentID string, excludedIDs ...string) bool {
	for id, row := range repo.db.students {
		if row.StudentID == studentID && !isExcluded(id, excludedIDs) {
			return true
		}
	}
	return false
}

func (repo *studentRepository) StudentIDExists(_ context.Context, studentID string, excludedIDs ...string) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.studentIDExists(studentID, excludedIDs...), nil
}

func (repo *studentRepository) CreateStudent(_ context.Context, s student.Student) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.studentIDExists(s.StudentID) {
		return student.Student{}, student.ErrStudentIDExists
	}
	s.ID = uuid.New().String()
	repo.db.students[s.ID] = &studentRow{Student: s, seq: repo.db.nextSeq()}
	return s, nil
}

func (repo *studentRepository) QueryStudents(_ context.Context, filter student.QueryFilter) ([]student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rows := make([]*studentRow, 0, len(repo.db.students))
	for _, row := range repo.db.students {
		if filter.Status != "" && row.Status != filter.Status {
			continue
		}
		if filter.Class != "" && row.Class.String != filter.Class {
			continue
		}
		if filter.Section != "" && row.Section.String != filter.Section {
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

	students := make([]student.Student, 0, len(rows))
	for _, row := range applyLimit(rows, filter.Limit) {
		students = append(students, row.Student)
	}
	return students, nil
}

func (repo *studentRepository) GetStudentByID(_ context.Context, id string) (student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if row, ok := repo.db.students[id]; ok {
		return row.Student, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) GetStudentsByID(_ context.Context, ids ...string) (map[string]student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	students := make(map[string]student.Student, len(ids))
	for _, id := range ids {
		if row, ok := repo.db.students[id]; ok {
			students[id] = row.Student
		}
	}
	return students, nil
}

func (repo *studentRepository) UpdateStudent(_ context.Context, s student.Student) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	row, ok := repo.db.students[s.ID]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	if repo.studentIDExists(s.StudentID, s.ID) {
		return student.Student{}, student.ErrStudentIDExists
	}
	s.CreatedAt = row.CreatedAt
	row.Student = s
	return s, nil
}

func (repo *studentRepository) DeleteStudent(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.students[id]; !ok {
		return student.ErrNotFound
	}
	for _, p := range repo.db.payments {
		if p.StudentID == id {
			return student.ErrHasFeePayments
		}
	}
	delete(repo.db.students, id)
	return nil
}

func (repo *studentRepository) CountFeePayments(_ context.Context, id string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var count int
	for _, p := range repo.db.payments {
		if p.StudentID == id {
			count++
		}
	}
	return count, nil
}
