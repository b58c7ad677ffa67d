package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/schoolfin/core"
	"github.com/trezcool/schoolfin/core/student"
)

const (
	studentsTable              = "students"
	studentsStudentIDKey       = "students_student_id_key"
	feePaymentsStudentIDFKey   = "fee_payments_student_id_fkey"
	studentColumns             = "id, student_id, first_name, last_name, date_of_birth, gender, address, contact_number, email, parent_name, parent_contact, class, section, admission_date, status, created_at, updated_at"
	insertStudentQuery         = "INSERT INTO students (" + studentColumns + ") VALUES (:id, :student_id, :first_name, :last_name, :date_of_birth, :gender, :address, :contact_number, :email, :parent_name, :parent_contact, :class, :section, :admission_date, :status, :created_at, :updated_at)"
	updateStudentQuery         = "UPDATE students SET student_id = :student_id, first_name = :first_name, last_name = :last_name, date_of_birth = :date_of_birth, gender = :gender, address = :address, contact_number = :contact_number, email = :email, parent_name = :parent_name, parent_contact = :parent_contact, class = :class, section = :section, admission_date = :admission_date, status = :status, updated_at = :updated_at WHERE id = :id"
	selectStudentsByIDsQuery   = "SELECT " + studentColumns + " FROM students WHERE id IN (?)"
	countStudentPaymentsQuery  = "SELECT COUNT(*) FROM fee_payments WHERE student_id = $1"
	getStudentQuery            = "SELECT " + studentColumns + " FROM students WHERE id = $1"
	deleteStudentQuery         = "DELETE FROM students WHERE id = $1"
	studentCreatedAtOrderField = "created_at"
)

type studentRow struct {
	ID            string      `db:"id"`
	StudentID     string      `db:"student_id"`
	FirstName     string      `db:"first_name"`
	LastName      string      `db:"last_name"`
	DateOfBirth   null.Time   `db:"date_of_birth"`
	Gender        null.String `db:"gender"`
	Address       null.String `db:"address"`
	ContactNumber null.String `db:"contact_number"`
	Email         null.String `db:"email"`
	ParentName    null.String `db:"parent_name"`
	ParentContact null.String `db:"parent_contact"`
	Class         null.String `db:"class"`
	Section       null.String `db:"section"`
	AdmissionDate time.Time   `db:"admission_date"`
	Status        string      `db:"status"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"`
}

type studentRepository struct {
	db core.DBExecutor
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db core.DBExecutor) *studentRepository {
	return &studentRepository{db: db}
}

func (repo studentRepository) boil(s student.Student) studentRow {
	dob := s.DateOfBirth
	if dob.Valid {
		dob.Time = core.TruncateDate(dob.Time)
	}
	return studentRow{
		ID:            s.ID,
		StudentID:     s.StudentID,
		FirstName:     s.FirstName,
		LastName:      s.LastName,
		DateOfBirth:   dob,
		Gender:        s.Gender,
		Address:       s.Address,
		ContactNumber: s.ContactNumber,
		Email:         s.Email,
		ParentName:    s.ParentName,
		ParentContact: s.ParentContact,
		Class:         s.Class,
		Section:       s.Section,
		AdmissionDate: core.TruncateDate(s.AdmissionDate),
		Status:        s.Status,
		CreatedAt:     s.CreatedAt.UTC(),
		UpdatedAt:     s.UpdatedAt.UTC(),
	}
}

func (repo studentRepository) unboil(row studentRow) student.Student {
	dob := row.DateOfBirth
	if dob.Valid {
		dob.Time = core.TruncateDate(dob.Time)
	}
	return student.Student{
		ID:            row.ID,
		StudentID:     row.StudentID,
		FirstName:     row.FirstName,
		LastName:      row.LastName,
		DateOfBirth:   dob,
		Gender:        row.Gender,
		Address:       row.Address,
		ContactNumber: row.ContactNumber,
		Email:         row.Email,
		ParentName:    row.ParentName,
		ParentContact: row.ParentContact,
		Class:         row.Class,
		Section:       row.Section,
		AdmissionDate: core.TruncateDate(row.AdmissionDate),
		Status:        row.Status,
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
	}
}

// trapWriteErr maps constraint violations to student errors.
func (repo studentRepository) trapWriteErr(err error, msg string) error {
	switch {
	case isConstraintErr(err, pqUniqueViolation, studentsStudentIDKey):
		return student.ErrStudentIDExists
	case isConstraintErr(err, pqForeignKeyViolation, feePaymentsStudentIDFKey):
		return student.ErrHasFeePayments
	}
	return errors.Wrap(err, msg)
}

func (repo studentRepository) StudentIDExists(ctx context.Context, studentID string, excludedIDs ...string) (bool, error) {
	q := psql.Select("COUNT(*)").From(studentsTable).Where(sq.Eq{"student_id": studentID})
	if ids := validIDs(excludedIDs); len(ids) > 0 {
		q = q.Where(sq.NotEq{"id": ids})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return false, errors.Wrap(err, "building studentId uniqueness query")
	}

	var count int
	if err = sqlx.GetContext(ctx, repo.db, &count, query, args...); err != nil {
		return false, errors.Wrap(err, "checking studentId uniqueness")
	}
	return count > 0, nil
}

func (repo studentRepository) CreateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	s.ID = newID()
	row := repo.boil(s)
	if _, err := sqlx.NamedExecContext(ctx, repo.db, insertStudentQuery, row); err != nil {
		return student.Student{}, repo.trapWriteErr(err, "inserting student")
	}
	return repo.unboil(row), nil
}

func (repo studentRepository) QueryStudents(ctx context.Context, filter student.QueryFilter) ([]student.Student, error) {
	q := psql.Select(studentColumns).From(studentsTable)
	if filter.Status != "" {
		q = q.Where(sq.Eq{"status": filter.Status})
	}
	if filter.Class != "" {
		q = q.Where(sq.Eq{"class": filter.Class})
	}
	if filter.Section != "" {
		q = q.Where(sq.Eq{"section": filter.Section})
	}
	q = limit(q.OrderBy(core.DBOrdering{Field: studentCreatedAtOrderField}.String()), filter.Limit)

	query, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building students query")
	}
	var rows []studentRow
	if err = sqlx.SelectContext(ctx, repo.db, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting students")
	}

	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, repo.unboil(row))
	}
	return students, nil
}

func (repo studentRepository) GetStudentByID(ctx context.Context, id string) (student.Student, error) {
	if !isUUID(id) {
		return student.Student{}, student.ErrNotFound
	}
	var row studentRow
	if err := sqlx.GetContext(ctx, repo.db, &row, getStudentQuery, id); err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "selecting student")
	}
	return repo.unboil(row), nil
}

func (repo studentRepository) GetStudentsByID(ctx context.Context, ids ...string) (map[string]student.Student, error) {
	ids = validIDs(ids)
	students := make(map[string]student.Student, len(ids))
	if len(ids) == 0 {
		return students, nil
	}

	query, args, err := sqlx.In(selectStudentsByIDsQuery, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building students by IDs query")
	}
	var rows []studentRow
	if err = sqlx.SelectContext(ctx, repo.db, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "selecting students by IDs")
	}
	for _, row := range rows {
		students[row.ID] = repo.unboil(row)
	}
	return students, nil
}

func (repo studentRepository) UpdateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	if !isUUID(s.ID) {
		return student.Student{}, student.ErrNotFound
	}
	row := repo.boil(s)
	res, err := sqlx.NamedExecContext(ctx, repo.db, updateStudentQuery, row)
	if err != nil {
		return student.Student{}, repo.trapWriteErr(err, "updating student")
	}
	if n, err := res.RowsAffected(); err != nil {
		return student.Student{}, errors.Wrap(err, "updating student")
	} else if n == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return repo.GetStudentByID(ctx, s.ID)
}

func (repo studentRepository) DeleteStudent(ctx context.Context, id string) error {
	if !isUUID(id) {
		return student.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, deleteStudentQuery, id)
	if err != nil {
		return repo.trapWriteErr(err, "deleting student")
	}
	if n, err := res.RowsAffected(); err != nil {
		return errors.Wrap(err, "deleting student")
	} else if n == 0 {
		return student.ErrNotFound
	}
	return nil
}

func (repo studentRepository) CountFeePayments(ctx context.Context, id string) (int, error) {
	if !isUUID(id) {
		return 0, nil
	}
	var count int
	if err := sqlx.GetContext(ctx, repo.db, &count, countStudentPaymentsQuery, id); err != nil {
		return 0, errors.Wrap(err, "counting student fee payments")
	}
	return count, nil
}
