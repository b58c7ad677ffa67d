package student

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/schoolfin/core"
)

var (
	statusTag  = "studentstatus"
	statusText = "status must be one of: " + strings.Join(Statuses, ", ")

	genderTag  = "studentgender"
	genderText = "gender must be one of: " + strings.Join(Genders, ", ")
)

// InitValidators registers the student validation tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(statusTag, core.OneOfValidation(Statuses))
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)

	_ = validate.RegisterValidation(genderTag, core.OneOfValidation(Genders))
	core.RegisterCustomTranslation(validate, translator, genderTag, genderText)
}
