package fee

import (
	"net/mail"

	"github.com/trezcool/schoolfin/core"
)

const (
	feeReminderTemplate         = "fee_reminder"
	paymentConfirmationTemplate = "payment_confirmation"
)

type notificationData struct {
	StudentName   string
	ParentName    string
	CategoryName  string
	Amount        string
	DueDate       string
	ReceiptNumber string
}

func newNotificationData(p Payment) notificationData {
	data := notificationData{
		Amount:        p.Amount.StringFixed(2),
		DueDate:       p.DueDate.Format(core.DateLayout),
		ReceiptNumber: p.ReceiptNumber(),
	}
	if p.Student != nil {
		data.StudentName = p.Student.FullName()
		data.ParentName = p.Student.ParentName.String
	}
	if p.FeeCategory != nil {
		data.CategoryName = p.FeeCategory.Name
	}
	return data
}

// recipient returns the email address of the Payment's Student, if any.
func recipient(p Payment) (mail.Address, bool) {
	if p.Student == nil || !p.Student.Email.Valid || p.Student.Email.String == "" {
		return mail.Address{}, false
	}
	return mail.Address{Name: p.Student.FullName(), Address: p.Student.Email.String}, true
}

// feeReminder returns nil if the Payment's Student cannot be mailed.
func feeReminder(p Payment) *core.EmailMessage {
	to, ok := recipient(p)
	if !ok {
		return nil
	}
	return &core.EmailMessage{
		To:           []mail.Address{to},
		Subject:      "Fee payment reminder",
		TemplateName: feeReminderTemplate,
		TemplateData: newNotificationData(p),
	}
}

// paymentConfirmation returns nil if the Payment's Student cannot be mailed.
func paymentConfirmation(p Payment) *core.EmailMessage {
	to, ok := recipient(p)
	if !ok {
		return nil
	}
	return &core.EmailMessage{
		To:           []mail.Address{to},
		Subject:      "Payment confirmation",
		TemplateName: paymentConfirmationTemplate,
		TemplateData: newNotificationData(p),
	}
}
