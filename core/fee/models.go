package fee

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/schoolfin/core"
	"github.com/trezcool/schoolfin/core/student"
)

// Frequencies
const (
	FrequencyMonthly   = "Monthly"
	FrequencyQuarterly = "Quarterly"
	FrequencyAnnually  = "Annually"
	FrequencyOneTime   = "One-time"

	// FrequencyAll is accepted by CategoryFilter and means "no frequency filter".
	FrequencyAll = "All"
)

// Payment statuses
const (
	StatusPending = "PENDING"
	StatusPartial = "PARTIAL"
	StatusPaid    = "PAID"
	StatusOverdue = "OVERDUE"

	// StatusAll is accepted by PaymentFilter and means "no status filter".
	StatusAll = "All"
)

var (
	Frequencies = []string{FrequencyMonthly, FrequencyQuarterly, FrequencyAnnually, FrequencyOneTime}
	Statuses    = []string{StatusPending, StatusPartial, StatusPaid, StatusOverdue}
)

func init() {
	// amounts are rendered as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

type Category struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description null.String     `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Frequency   string          `json:"frequency"`
	CreatedAt   time.Time       `json:"createdAt"` // UTC
	UpdatedAt   time.Time       `json:"updatedAt"` // UTC
}

// CategoryDetail is a Category along with its FeePayments (each including its Student).
type CategoryDetail struct {
	Category
	FeePayments []Payment `json:"feePayments"`
}

type Payment struct {
	ID            string           `json:"id"`
	StudentID     string           `json:"studentId"`
	FeeCategoryID string           `json:"feeCategoryId"`
	Amount        decimal.Decimal  `json:"amount"`
	DueDate       time.Time        `json:"dueDate"`     // date only, UTC
	PaymentDate   null.Time        `json:"paymentDate"` // date only, UTC
	Status        string           `json:"status"`
	CreatedAt     time.Time        `json:"createdAt"` // UTC
	UpdatedAt     time.Time        `json:"updatedAt"` // UTC
	Student       *student.Student `json:"student,omitempty"`
	FeeCategory   *Category        `json:"feeCategory,omitempty"`
}

func (p Payment) IsPaid() bool { return p.Status == StatusPaid }

// ReceiptNumber is derived from the payment ID.
func (p Payment) ReceiptNumber() string {
	id := strings.ReplaceAll(p.ID, "-", "")
	if len(id) > 10 {
		id = id[:10]
	}
	return "RCT-" + strings.ToUpper(id)
}

// Summary totals the amounts of Payments by status.
type Summary struct {
	Total   decimal.Decimal `json:"total"`
	Paid    decimal.Decimal `json:"paid"`
	Pending decimal.Decimal `json:"pending"` // PENDING & PARTIAL
	Overdue decimal.Decimal `json:"overdue"`
}

func Summarize(payments []Payment) Summary {
	sum := Summary{Total: decimal.Zero, Paid: decimal.Zero, Pending: decimal.Zero, Overdue: decimal.Zero}
	for _, p := range payments {
		sum.Total = sum.Total.Add(p.Amount)
		switch p.Status {
		case StatusPaid:
			sum.Paid = sum.Paid.Add(p.Amount)
		case StatusPending, StatusPartial:
			sum.Pending = sum.Pending.Add(p.Amount)
		case StatusOverdue:
			sum.Overdue = sum.Overdue.Add(p.Amount)
		}
	}
	return sum
}

// NewCategory contains information needed to create a new Category.
type NewCategory struct {
	Name        string           `json:"name" validate:"max=100"`
	Description string           `json:"description"`
	Amount      *decimal.Decimal `json:"amount"`
	Frequency   string           `json:"frequency" validate:"omitempty,feefrequency"`
}

func (nc *NewCategory) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	nc.Frequency = core.CleanString(nc.Frequency)

	if nc.Name == "" || nc.Amount == nil || nc.Frequency == "" {
		return ErrCategoryMissingFields
	}
	if err := checkAmount(nc.Amount); err != nil {
		return err
	}
	return validate.Struct(nc)
}

// UpdateCategory defines what information may be provided to modify an existing Category.
// Absent (or null) fields are left unchanged; description is cleared when null or empty.
type UpdateCategory struct {
	Name        *string               `json:"name" validate:"omitempty,max=100"`
	Description core.Optional[string] `json:"description" validate:"-"`
	Amount      *decimal.Decimal      `json:"amount"`
	Frequency   *string               `json:"frequency" validate:"omitempty,feefrequency"`
}

func (uc *UpdateCategory) Validate(validate *validator.Validate) error {
	core.CleanStringPtr(uc.Name)
	core.CleanStringPtr(uc.Frequency)
	uc.Description.Value = core.CleanString(uc.Description.Value)

	if (uc.Name != nil && *uc.Name == "") || (uc.Frequency != nil && *uc.Frequency == "") {
		return ErrCategoryMissingFields
	}
	if err := checkAmount(uc.Amount); err != nil {
		return err
	}
	return validate.Struct(uc)
}

func (uc UpdateCategory) apply(c *Category) {
	if uc.Name != nil {
		c.Name = *uc.Name
	}
	if uc.Description.Set {
		c.Description = null.NewString(uc.Description.Value, uc.Description.Value != "")
	}
	if uc.Amount != nil {
		c.Amount = *uc.Amount
	}
	if uc.Frequency != nil {
		c.Frequency = *uc.Frequency
	}
}

// NewPayment contains information needed to create a new Payment.
// Amount defaults to the Category's amount and Status to PENDING.
type NewPayment struct {
	StudentID     string           `json:"studentId"`
	FeeCategoryID string           `json:"feeCategoryId"`
	Amount        *decimal.Decimal `json:"amount"`
	DueDate       string           `json:"dueDate" validate:"date"`
	PaymentDate   string           `json:"paymentDate" validate:"omitempty,date"`
	Status        string           `json:"status" validate:"omitempty,paymentstatus"`
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.StudentID = core.CleanString(np.StudentID)
	np.FeeCategoryID = core.CleanString(np.FeeCategoryID)
	np.DueDate = core.CleanString(np.DueDate)
	np.PaymentDate = core.CleanString(np.PaymentDate)
	np.Status = core.CleanString(np.Status)

	if np.StudentID == "" || np.FeeCategoryID == "" || np.DueDate == "" {
		return ErrPaymentMissingFields
	}
	if err := checkAmount(np.Amount); err != nil {
		return err
	}
	return validate.Struct(np)
}

// UpdatePayment defines what information may be provided to modify an existing Payment.
// Absent (or null) fields are left unchanged; paymentDate is cleared when null or empty.
type UpdatePayment struct {
	Amount      *decimal.Decimal      `json:"amount"`
	DueDate     *string               `json:"dueDate" validate:"omitempty,date"`
	PaymentDate core.Optional[string] `json:"paymentDate" validate:"-"`
	Status      *string               `json:"status" validate:"omitempty,paymentstatus"`
}

func (up *UpdatePayment) Validate(validate *validator.Validate) error {
	core.CleanStringPtr(up.DueDate)
	core.CleanStringPtr(up.Status)
	up.PaymentDate.Value = core.CleanString(up.PaymentDate.Value)

	if err := checkAmount(up.Amount); err != nil {
		return err
	}
	if err := validate.Var(up.PaymentDate.Value, "omitempty,date"); err != nil {
		return core.NewValidationError(
			errInvalidData,
			core.FieldError{Field: "paymentDate", Error: "paymentDate must be a date formatted as YYYY-MM-DD"},
		)
	}
	return validate.Struct(up)
}

// apply writes the provided fields onto p. A Payment becoming PAID without a payment date is paid today.
func (up UpdatePayment) apply(p *Payment, today time.Time) error {
	if up.Amount != nil {
		p.Amount = *up.Amount
	}
	if !core.StringIsBlank(up.DueDate) {
		d, err := parseDate("dueDate", *up.DueDate)
		if err != nil {
			return err
		}
		p.DueDate = d
	}
	if up.PaymentDate.Set {
		pd, err := parseNullDate("paymentDate", up.PaymentDate.Value)
		if err != nil {
			return err
		}
		p.PaymentDate = pd
	}
	if !core.StringIsBlank(up.Status) {
		p.Status = *up.Status
	}
	if p.IsPaid() && !p.PaymentDate.Valid {
		p.PaymentDate = null.TimeFrom(today)
	}
	return nil
}

type CategoryFilter struct {
	Frequency string `query:"frequency" validate:"omitempty,feefrequency"`
	Limit     int    `query:"limit" validate:"min=0"`
}

func (qf *CategoryFilter) Clean() {
	qf.Frequency = core.CleanString(qf.Frequency)
	if qf.Frequency == FrequencyAll {
		qf.Frequency = ""
	}
}

func (qf *CategoryFilter) Validate(validate *validator.Validate) error {
	qf.Clean()
	return validate.Struct(qf)
}

type PaymentFilter struct {
	StudentID     string `query:"studentId"`
	FeeCategoryID string `query:"feeCategoryId"`
	Status        string `query:"status" validate:"omitempty,paymentstatus"`
	Limit         int    `query:"limit" validate:"min=0"`

	// related records to load
	WithStudent  bool `query:"-"`
	WithCategory bool `query:"-"`
}

func (qf *PaymentFilter) Clean() {
	qf.StudentID = core.CleanString(qf.StudentID)
	qf.FeeCategoryID = core.CleanString(qf.FeeCategoryID)
	qf.Status = core.CleanString(qf.Status)
	if qf.Status == StatusAll {
		qf.Status = ""
	}
}

func (qf *PaymentFilter) Validate(validate *validator.Validate) error {
	qf.Clean()
	return validate.Struct(qf)
}

// maxAmount bounds the amounts to what NUMERIC(12, 2) holds.
var maxAmount = decimal.New(1, 10)

func checkAmount(amount *decimal.Decimal) error {
	switch {
	case amount == nil:
		return nil
	case !amount.IsPositive():
		return ErrInvalidAmount
	case !amount.Equal(amount.Round(2)), amount.Cmp(maxAmount) >= 0:
		return ErrAmountOutOfRange
	}
	return nil
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
