package user

import (
	"time"

	"github.com/pkg/errors"

	"github.com/AntoVGreco/app-instituto-MCV/core"
	"github.com/AntoVGreco/app-instituto-MCV/core/credential"
)

var (
	// errors
	ErrNotFound          = errors.New("user not found")
	ErrDuplicateUser     = errors.New("a user with this identity already exists")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrSuspendedAccount  = errors.New("account suspended, contact the administrator")
	ErrNotStudent        = errors.New("user is not a student")
	ErrNotTeacher        = errors.New("user is not a teacher")
	ErrProtectedAccount  = errors.New("administrator accounts cannot be suspended")

	NowFunc = time.Now // mockable
)

// Session is the result of a successful authentication.
type Session struct {
	Account Account
	// MustChangePassword is set while the password is still the identity (first login or after a reset).
	MustChangePassword bool
}

// Directory is the set of all accounts, keyed by identity, in creation order.
// It is not safe for concurrent use: the institute serializes access to it.
type Directory struct {
	hasher   credential.Hasher
	accounts map[string]Account
	order    []string
}

func NewDirectory(hasher credential.Hasher) *Directory {
	return &Directory{
		hasher:   hasher,
		accounts: make(map[string]Account),
	}
}

func (d *Directory) Hasher() credential.Hasher { return d.hasher }

// Add registers an already built account (bootstrap, snapshot restore).
func (d *Directory) Add(acc Account) error {
	id := acc.Base().Identity
	if id == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "identity", Error: "this field is required"})
	}
	if _, ok := d.accounts[id]; ok {
		return errors.Wrapf(ErrDuplicateUser, "identity %s", id)
	}
	d.accounts[id] = acc
	d.order = append(d.order, id)
	return nil
}

func (d *Directory) newUser(firstName, lastName, identity string) (User, error) {
	identity = core.CleanString(identity)
	if _, ok := d.accounts[identity]; ok {
		return User{}, errors.Wrapf(ErrDuplicateUser, "identity %s", identity)
	}
	usr := User{
		Identity:  identity,
		FirstName: core.CapitalizeFirst(firstName),
		LastName:  core.CapitalizeFirst(lastName),
		CreatedAt: NowFunc().UTC(),
	}
	if err := d.setPassword(&usr, identity); err != nil {
		return User{}, err
	}
	return usr, nil
}

// CreateStudent registers a Student whose password is the sentinel (its own identity).
func (d *Directory) CreateStudent(firstName, lastName, identity string) (*Student, error) {
	usr, err := d.newUser(firstName, lastName, identity)
	if err != nil {
		return nil, err
	}
	std := &Student{User: usr}
	if err := d.Add(std); err != nil {
		return nil, err
	}
	return std, nil
}

// CreateTeacher registers a Teacher whose password is the sentinel (its own identity).
func (d *Directory) CreateTeacher(firstName, lastName, identity string) (*Teacher, error) {
	usr, err := d.newUser(firstName, lastName, identity)
	if err != nil {
		return nil, err
	}
	tchr := &Teacher{User: usr}
	if err := d.Add(tchr); err != nil {
		return nil, err
	}
	return tchr, nil
}

// CreateAdministrator registers an Administrator with an explicit initial password.
func (d *Directory) CreateAdministrator(firstName, lastName, identity, pwd string) (*Administrator, error) {
	usr, err := d.newUser(firstName, lastName, identity)
	if err != nil {
		return nil, err
	}
	if err := d.setPassword(&usr, pwd); err != nil {
		return nil, err
	}
	adm := &Administrator{User: usr}
	if err := d.Add(adm); err != nil {
		return nil, err
	}
	return adm, nil
}

func (d *Directory) FindByIdentity(identity string) (Account, error) {
	if acc, ok := d.accounts[core.CleanString(identity)]; ok {
		return acc, nil
	}
	return nil, errors.Wrapf(ErrNotFound, "identity %s", identity)
}

func (d *Directory) Student(identity string) (*Student, error) {
	acc, err := d.FindByIdentity(identity)
	if err != nil {
		return nil, err
	}
	std, ok := acc.(*Student)
	if !ok {
		return nil, errors.Wrapf(ErrNotStudent, "identity %s", identity)
	}
	return std, nil
}

func (d *Directory) Teacher(identity string) (*Teacher, error) {
	acc, err := d.FindByIdentity(identity)
	if err != nil {
		return nil, err
	}
	tchr, ok := acc.(*Teacher)
	if !ok {
		return nil, errors.Wrapf(ErrNotTeacher, "identity %s", identity)
	}
	return tchr, nil
}

// List returns every account in creation order.
func (d *Directory) List() []Account {
	accs := make([]Account, 0, len(d.order))
	for _, id := range d.order {
		accs = append(accs, d.accounts[id])
	}
	return accs
}

func (d *Directory) Len() int { return len(d.order) }

func (d *Directory) Suspend(identity string) error {
	acc, err := d.FindByIdentity(identity)
	if err != nil {
		return err
	}
	if _, ok := acc.(*Administrator); ok {
		return ErrProtectedAccount
	}
	acc.Base().Suspended = true
	return nil
}

func (d *Directory) Reactivate(identity string) error {
	acc, err := d.FindByIdentity(identity)
	if err != nil {
		return err
	}
	acc.Base().Suspended = false
	return nil
}

// ResetPassword puts the sentinel back: the next login must change the password.
func (d *Directory) ResetPassword(identity string) error {
	acc, err := d.FindByIdentity(identity)
	if err != nil {
		return err
	}
	usr := acc.Base()
	return d.setPassword(usr, usr.Identity)
}

// ChangePassword replaces the password after checking the current one.
// The new password can neither differ from its confirmation nor be the identity itself.
func (d *Directory) ChangePassword(identity, current, newPwd, confirm string) error {
	acc, err := d.FindByIdentity(identity)
	if err != nil {
		return err
	}
	usr := acc.Base()
	if newPwd == usr.Identity {
		return errors.Wrap(ErrInvalidCredential, "new password cannot be the identity")
	}
	if !d.hasher.Matches(current, usr.PasswordHash) {
		return errors.Wrap(ErrInvalidCredential, "wrong current password")
	}
	if newPwd != confirm {
		return errors.Wrap(ErrInvalidCredential, "passwords do not match")
	}
	return d.setPassword(usr, newPwd)
}

// Authenticate checks identity, password and suspension, in that order.
func (d *Directory) Authenticate(identity, pwd string) (Session, error) {
	acc, err := d.FindByIdentity(identity)
	if err != nil {
		return Session{}, err
	}
	usr := acc.Base()
	if !d.hasher.Matches(pwd, usr.PasswordHash) {
		return Session{}, ErrInvalidCredential
	}
	if usr.Suspended {
		return Session{}, ErrSuspendedAccount
	}
	return Session{Account: acc, MustChangePassword: d.MustChangePassword(acc)}, nil
}

// MustChangePassword reports whether the stored digest is the sentinel (digest of the identity).
func (d *Directory) MustChangePassword(acc Account) bool {
	usr := acc.Base()
	return d.hasher.Matches(usr.Identity, usr.PasswordHash)
}

func (d *Directory) setPassword(usr *User, pwd string) error {
	hash, err := d.hasher.Hash(pwd)
	if err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.PasswordHash = hash
	return nil
}
