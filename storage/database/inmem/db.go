package inmemdb

import (
	"sync"

	"github.com/trezcool/schoolfin/core/fee"
	"github.com/trezcool/schoolfin/core/student"
	"github.com/trezcool/schoolfin/core/user"
)

type (
	// rows remember their insertion order to break ordering ties.
	studentRow struct {
		student.Student
		seq int
	}
	categoryRow struct {
		fee.Category
		seq int
	}
	paymentRow struct {
		fee.Payment
		seq int
	}
)

// DB is an in-memory store enforcing the same unique & foreign key constraints as the SQL schema.
// All the repositories sharing a DB share its lock.
type DB struct {
	mutex      sync.RWMutex
	seq        int
	students   map[string]*studentRow
	categories map[string]*categoryRow
	payments   map[string]*paymentRow
	users      map[string]*user.User
}

func Open() *DB {
	return &DB{
		students:   make(map[string]*studentRow),
		categories: make(map[string]*categoryRow),
		payments:   make(map[string]*paymentRow),
		users:      make(map[string]*user.User),
	}
}

// Reset empties all the tables.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.seq = 0
	db.students = make(map[string]*studentRow)
	db.categories = make(map[string]*categoryRow)
	db.payments = make(map[string]*paymentRow)
	db.users = make(map[string]*user.User)
}

// nextSeq must be called with the write lock held.
func (db *DB) nextSeq() int {
	db.seq++
	return db.seq
}

func isExcluded(id string, excludedIDs []string) bool {
	for _, eid := range excludedIDs {
		if id == eid {
			return true
		}
	}
	return false
}

func applyLimit[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
