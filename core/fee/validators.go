package fee

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/schoolfin/core"
)

var (
	frequencyTag  = "feefrequency"
	frequencyText = "frequency must be one of: " + strings.Join(Frequencies, ", ")

	statusTag  = "paymentstatus"
	statusText = "status must be one of: " + strings.Join(Statuses, ", ")
)

// InitValidators registers the fee validation tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(frequencyTag, core.OneOfValidation(Frequencies))
	core.RegisterCustomTranslation(validate, translator, frequencyTag, frequencyText)

	_ = validate.RegisterValidation(statusTag, core.OneOfValidation(Statuses))
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)
}
