package student

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/schoolfin/core"
)

// Statuses
const (
	StatusActive      = "Active"
	StatusInactive    = "Inactive"
	StatusGraduated   = "Graduated"
	StatusTransferred = "Transferred"

	// StatusAll is accepted by QueryFilter and means "no status filter".
	StatusAll = "All"
)

// Genders
const (
	GenderMale   = "Male"
	GenderFemale = "Female"
	GenderOther  = "Other"
)

var (
	Statuses = []string{StatusActive, StatusInactive, StatusGraduated, StatusTransferred}
	Genders  = []string{GenderMale, GenderFemale, GenderOther}
)

type Student struct {
	ID            string      `json:"id"`
	StudentID     string      `json:"studentId"`
	FirstName     string      `json:"firstName"`
	LastName      string      `json:"lastName"`
	DateOfBirth   null.Time   `json:"dateOfBirth"` // date only, UTC
	Gender        null.String `json:"gender"`
	Address       null.String `json:"address"`
	ContactNumber null.String `json:"contactNumber"`
	Email         null.String `json:"email"`
	ParentName    null.String `json:"parentName"`
	ParentContact null.String `json:"parentContact"`
	Class         null.String `json:"class"`
	Section       null.String `json:"section"`
	AdmissionDate time.Time   `json:"admissionDate"` // date only, UTC
	Status        string      `json:"status"`
	CreatedAt     time.Time   `json:"createdAt"` // UTC
	UpdatedAt     time.Time   `json:"updatedAt"` // UTC
}

func (s Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// NewStudent contains information needed to create a new Student.
type NewStudent struct {
	StudentID     string `json:"studentId" validate:"max=50"`
	FirstName     string `json:"firstName" validate:"max=100"`
	LastName      string `json:"lastName" validate:"max=100"`
	DateOfBirth   string `json:"dateOfBirth" validate:"omitempty,date"`
	Gender        string `json:"gender" validate:"omitempty,studentgender"`
	Address       string `json:"address"`
	ContactNumber string `json:"contactNumber" validate:"max=30"`
	Email         string `json:"email" validate:"omitempty,email,max=255"`
	ParentName    string `json:"parentName" validate:"max=200"`
	ParentContact string `json:"parentContact" validate:"max=30"`
	Class         string `json:"class" validate:"max=50"`
	Section       string `json:"section" validate:"max=50"`
	AdmissionDate string `json:"admissionDate" validate:"omitempty,date"`
	Status        string `json:"status" validate:"omitempty,studentstatus"`
}

func (ns *NewStudent) clean() {
	ns.StudentID = core.CleanString(ns.StudentID)
	ns.FirstName = core.CleanString(ns.FirstName)
	ns.LastName = core.CleanString(ns.LastName)
	ns.DateOfBirth = core.CleanString(ns.DateOfBirth)
	ns.Gender = core.CleanString(ns.Gender)
	ns.Address = core.CleanString(ns.Address)
	ns.ContactNumber = core.CleanString(ns.ContactNumber)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.ParentName = core.CleanString(ns.ParentName)
	ns.ParentContact = core.CleanString(ns.ParentContact)
	ns.Class = core.CleanString(ns.Class)
	ns.Section = core.CleanString(ns.Section)
	ns.AdmissionDate = core.CleanString(ns.AdmissionDate)
	ns.Status = core.CleanString(ns.Status)
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.clean()
	if ns.StudentID == "" || ns.FirstName == "" || ns.LastName == "" {
		return ErrMissingFields
	}
	return validate.Struct(ns)
}

// student builds the Student to insert. Unset status & admission date get their defaults.
func (ns NewStudent) student(now time.Time) (Student, error) {
	dob, err := parseNullDate("dateOfBirth", ns.DateOfBirth)
	if err != nil {
		return Student{}, err
	}
	admissionDate := core.TruncateDate(now)
	if ns.AdmissionDate != "" {
		if admissionDate, err = parseDate("admissionDate", ns.AdmissionDate); err != nil {
			return Student{}, err
		}
	}
	status := ns.Status
	if status == "" {
		status = StatusActive
	}

	return Student{
		StudentID:     ns.StudentID,
		FirstName:     ns.FirstName,
		LastName:      ns.LastName,
		DateOfBirth:   dob,
		Gender:        nullString(ns.Gender),
		Address:       nullString(ns.Address),
		ContactNumber: nullString(ns.ContactNumber),
		Email:         nullString(ns.Email),
		ParentName:    nullString(ns.ParentName),
		ParentContact: nullString(ns.ParentContact),
		Class:         nullString(ns.Class),
		Section:       nullString(ns.Section),
		AdmissionDate: admissionDate,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// UpdateStudent defines what information may be provided to modify an existing Student.
//
// Pointer fields are left unchanged when absent, null or empty; studentId, firstName & lastName
// cannot be blanked. Optional fields are left unchanged when absent and cleared when null or empty.
type UpdateStudent struct {
	StudentID     *string               `json:"studentId"`
	FirstName     *string               `json:"firstName"`
	LastName      *string               `json:"lastName"`
	DateOfBirth   core.Optional[string] `json:"dateOfBirth"`
	Gender        core.Optional[string] `json:"gender"`
	Address       core.Optional[string] `json:"address"`
	ContactNumber core.Optional[string] `json:"contactNumber"`
	Email         core.Optional[string] `json:"email"`
	ParentName    core.Optional[string] `json:"parentName"`
	ParentContact core.Optional[string] `json:"parentContact"`
	Class         core.Optional[string] `json:"class"`
	Section       core.Optional[string] `json:"section"`
	AdmissionDate *string               `json:"admissionDate"`
	Status        *string               `json:"status"`
}

func (us *UpdateStudent) clean() {
	core.CleanStringPtr(us.StudentID)
	core.CleanStringPtr(us.FirstName)
	core.CleanStringPtr(us.LastName)
	core.CleanStringPtr(us.AdmissionDate)
	core.CleanStringPtr(us.Status)
	for _, opt := range []*core.Optional[string]{
		&us.DateOfBirth, &us.Gender, &us.Address, &us.ContactNumber,
		&us.ParentName, &us.ParentContact, &us.Class, &us.Section,
	} {
		opt.Value = core.CleanString(opt.Value)
	}
	us.Email.Value = core.CleanString(us.Email.Value, true /* lower */)
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	us.clean()
	for _, fld := range []*string{us.StudentID, us.FirstName, us.LastName} {
		if fld != nil && *fld == "" {
			return ErrMissingFields
		}
	}

	var fldErrs []core.FieldError
	check := func(field, value, tag, msg string) {
		if value == "" {
			return
		}
		if err := validate.Var(value, tag); err != nil {
			fldErrs = append(fldErrs, core.FieldError{Field: field, Error: msg})
		}
	}
	maxLen := func(field, value string, n int) {
		check(field, value, fmt.Sprintf("max=%d", n), fmt.Sprintf("%s must be a maximum of %d characters in length", field, n))
	}
	for _, fld := range []struct {
		name  string
		value *string
		max   int
	}{
		{"studentId", us.StudentID, 50},
		{"firstName", us.FirstName, 100},
		{"lastName", us.LastName, 100},
		{"contactNumber", &us.ContactNumber.Value, 30},
		{"email", &us.Email.Value, 255},
		{"parentName", &us.ParentName.Value, 200},
		{"parentContact", &us.ParentContact.Value, 30},
		{"class", &us.Class.Value, 50},
		{"section", &us.Section.Value, 50},
	} {
		if fld.value != nil {
			maxLen(fld.name, *fld.value, fld.max)
		}
	}
	if us.AdmissionDate != nil {
		check("admissionDate", *us.AdmissionDate, "date", "admissionDate must be a date formatted as YYYY-MM-DD")
	}
	if us.Status != nil {
		check("status", *us.Status, "studentstatus", statusText)
	}
	check("dateOfBirth", us.DateOfBirth.Value, "date", "dateOfBirth must be a date formatted as YYYY-MM-DD")
	check("gender", us.Gender.Value, "studentgender", genderText)
	check("email", us.Email.Value, "email", "email must be a valid email address")

	if len(fldErrs) > 0 {
		return core.NewValidationError(errInvalidData, fldErrs...)
	}
	return nil
}

// apply writes the provided fields onto s.
func (us UpdateStudent) apply(s *Student) error {
	if !core.StringIsBlank(us.StudentID) {
		s.StudentID = *us.StudentID
	}
	if !core.StringIsBlank(us.FirstName) {
		s.FirstName = *us.FirstName
	}
	if !core.StringIsBlank(us.LastName) {
		s.LastName = *us.LastName
	}
	if !core.StringIsBlank(us.Status) {
		s.Status = *us.Status
	}
	if !core.StringIsBlank(us.AdmissionDate) {
		d, err := parseDate("admissionDate", *us.AdmissionDate)
		if err != nil {
			return err
		}
		s.AdmissionDate = d
	}
	if us.DateOfBirth.Set {
		dob, err := parseNullDate("dateOfBirth", us.DateOfBirth.Value)
		if err != nil {
			return err
		}
		s.DateOfBirth = dob
	}

	setOptional(&s.Gender, us.Gender)
	setOptional(&s.Address, us.Address)
	setOptional(&s.ContactNumber, us.ContactNumber)
	setOptional(&s.Email, us.Email)
	setOptional(&s.ParentName, us.ParentName)
	setOptional(&s.ParentContact, us.ParentContact)
	setOptional(&s.Class, us.Class)
	setOptional(&s.Section, us.Section)
	return nil
}

type QueryFilter struct {
	Status  string `query:"status" validate:"omitempty,studentstatus"`
	Class   string `query:"class"`
	Section string `query:"section"`
	Limit   int    `query:"limit" validate:"min=0"`
}

func (qf *QueryFilter) Clean() {
	qf.Status = core.CleanString(qf.Status)
	if qf.Status == StatusAll {
		qf.Status = ""
	}
	qf.Class = core.CleanString(qf.Class)
	qf.Section = core.CleanString(qf.Section)
}

func (qf *QueryFilter) Validate(validate *validator.Validate) error {
	qf.Clean()
	return validate.Struct(qf)
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

func setOptional(dst *null.String, opt core.Optional[string]) {
	if opt.Set {
		*dst = nullString(opt.Value)
	}
}

func parseDate(field, s string) (time.Time, error) {
	d, err := core.ParseDate(s)
	if err != nil {
		return time.Time{}, core.NewValidationError(
			errInvalidData,
			core.FieldError{Field: field, Error: field + " must be a date formatted as YYYY-MM-DD"},
		)
	}
	return d, nil
}

// parseNullDate maps an empty string to a null date.
func parseNullDate(field, s string) (null.Time, error) {
	if s == "" {
		return null.Time{}, nil
	}
	d, err := parseDate(field, s)
	if err != nil {
		return null.Time{}, err
	}
	return null.TimeFrom(d), nil
}

var errInvalidData = errors.New("Invalid data")
