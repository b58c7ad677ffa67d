package user

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/schoolfin/core"
)

var (
	roleTag  = "userrole"
	roleText = "role must be one of: " + strings.Join(AllRoles, ", ")
)

// InitValidators registers the user validation tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(roleTag, core.OneOfValidation(AllRoles))
	core.RegisterCustomTranslation(validate, translator, roleTag, roleText)
}
