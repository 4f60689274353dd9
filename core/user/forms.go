package user

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/AntoVGreco/app-instituto-MCV/core"
)

var (
	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to the identity"
)

func init() {
	core.Validate.RegisterStructValidation(passwordChangeStructValidation, PasswordChange{})
	core.RegisterCustomTranslation(pwdAttrSimTag, pwdAttrSimText)
}

// NewUser contains the information typed by an administrator to create a Student or a Teacher.
type NewUser struct {
	Profile   Profile `json:"profile" validate:"required,oneof=student teacher"`
	FirstName string  `json:"first_name" validate:"required"`
	LastName  string  `json:"last_name" validate:"required"`
	Identity  string  `json:"identity" validate:"required,identity"`
}

func (nu *NewUser) Validate() error {
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)
	nu.Identity = core.CleanString(nu.Identity)
	return core.ValidateStruct(nu)
}

// PasswordChange contains the three passwords typed to change a password.
// Current has no length rule: the bootstrap administrator password is shorter.
type PasswordChange struct {
	Identity string `json:"identity" validate:"required"`
	Current  string `json:"current" validate:"required"`
	New      string `json:"new" validate:"required,len=8"`
	Confirm  string `json:"confirm" validate:"required,eqfield=New"`
}

func (pc PasswordChange) Validate() error { return core.ValidateStruct(pc) }

// passwordChangeStructValidation rejects new passwords too close to the identity (e.g. 12345679 for 12345678).
// The exact identity is rejected by Directory.ChangePassword itself.
func passwordChangeStructValidation(sl validator.StructLevel) {
	pc, ok := sl.Current().Interface().(PasswordChange)
	if !ok || pc.New == "" || pc.Identity == "" || pc.New == pc.Identity {
		return
	}
	matcher := difflib.NewMatcher(strings.Split(pc.New, ""), strings.Split(pc.Identity, ""))
	if matcher.Ratio() >= pwdMaxSim {
		sl.ReportError(pc.New, "new", "New", pwdAttrSimTag, "")
	}
}
