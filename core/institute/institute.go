// Package institute is the root of the object graph: users, courses and their offerings.
//
// Every method takes the whole-graph lock, so an Institute can be shared between goroutines.
// Mutations only change memory; Commit saves the graph to the Store. A failed Commit leaves
// memory as it is and the previous snapshot untouched.
package institute

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/AntoVGreco/app-instituto-MCV/core"
	"github.com/AntoVGreco/app-instituto-MCV/core/course"
	"github.com/AntoVGreco/app-instituto-MCV/core/credential"
	"github.com/AntoVGreco/app-instituto-MCV/core/enrollment"
	"github.com/AntoVGreco/app-instituto-MCV/core/user"
)

var NowFunc = time.Now // mockable

type Institute struct {
	mu            sync.RWMutex
	commitMu      sync.Mutex // held from snapshot to save
	users         *user.Directory
	courses       *course.Catalog
	engine        *enrollment.Engine
	adminIdentity string

	store Store
	log   core.Logger
}

func newInstitute(users *user.Directory, courses *course.Catalog, adminIdentity string, store Store, log core.Logger) *Institute {
	return &Institute{
		users:         users,
		courses:       courses,
		engine:        enrollment.NewEngine(users, courses),
		adminIdentity: adminIdentity,
		store:         store,
		log:           log,
	}
}

// Bootstrap creates an empty institute with its single administrator.
func Bootstrap(conf *core.Config, hasher credential.Hasher, store Store, log core.Logger) (*Institute, error) {
	users := user.NewDirectory(hasher)
	adm, err := users.CreateAdministrator(conf.Admin.FirstName, conf.Admin.LastName, conf.Admin.Identity, conf.Admin.Password)
	if err != nil {
		return nil, errors.Wrap(err, "creating administrator")
	}
	return newInstitute(users, course.NewCatalog(), adm.Identity, store, log), nil
}

// Open loads the institute from store. Only a missing snapshot falls back to Bootstrap;
// a corrupt one is returned as a *PersistenceError.
func Open(ctx context.Context, conf *core.Config, hasher credential.Hasher, store Store, log core.Logger) (*Institute, error) {
	snap, err := store.Load(ctx)
	if errors.Is(err, ErrSnapshotNotFound) {
		log.Info("no snapshot found, bootstrapping a new institute")
		return Bootstrap(conf, hasher, store, log)
	}
	if err != nil {
		log.Error("loading snapshot", err)
		return nil, &PersistenceError{Op: "load", Err: err}
	}

	users, courses, err := restore(snap, hasher)
	if err != nil {
		log.Error("restoring snapshot", err)
		return nil, &PersistenceError{Op: "load", Err: err}
	}
	log.Debug("snapshot loaded", map[string]interface{}{
		"version": snap.Version, "saved_at": snap.SavedAt, "users": users.Len(), "courses": courses.Len(),
	})
	return newInstitute(users, courses, snap.AdminIdentity, store, log), nil
}

// Commit saves the whole graph. Commits are serialized, so saves reach the store in snapshot order.
func (inst *Institute) Commit(ctx context.Context) error {
	inst.commitMu.Lock()
	defer inst.commitMu.Unlock()

	inst.mu.RLock()
	snap := inst.snapshot()
	inst.mu.RUnlock()

	if err := inst.store.Save(ctx, snap); err != nil {
		inst.log.Error("saving snapshot", err)
		return &PersistenceError{Op: "save", Err: err}
	}
	return nil
}

// Snapshot returns the current graph without saving it.
func (inst *Institute) Snapshot() *Snapshot {
	inst.mu.RLock()
	defer inst.mu.RUnlock()
	return inst.snapshot()
}

func (inst *Institute) AdminIdentity() string { return inst.adminIdentity }

// Users

func (inst *Institute) Authenticate(identity, pwd string) (user.Session, error) {
	inst.mu.RLock()
	defer inst.mu.RUnlock()
	sess, err := inst.users.Authenticate(identity, pwd)
	if err != nil {
		return user.Session{}, err
	}
	sess.Account = sess.Account.Clone()
	return sess, nil
}

// CreateUser registers a Student or a Teacher from an administrator form.
func (inst *Institute) CreateUser(nu user.NewUser) (user.Account, error) {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	var (
		acc user.Account
		err error
	)
	switch nu.Profile {
	case user.ProfileStudent:
		acc, err = inst.users.CreateStudent(nu.FirstName, nu.LastName, nu.Identity)
	case user.ProfileTeacher:
		acc, err = inst.users.CreateTeacher(nu.FirstName, nu.LastName, nu.Identity)
	default:
		return nil, core.NewValidationError(nil, core.FieldError{Field: "profile", Error: "must be one of [student teacher]"})
	}
	if err != nil {
		return nil, err
	}
	inst.log.Info("user created", acc)
	return acc.Clone(), nil
}

func (inst *Institute) CreateStudent(firstName, lastName, identity string) (*user.Student, error) {
	acc, err := inst.CreateUser(user.NewUser{Profile: user.ProfileStudent, FirstName: firstName, LastName: lastName, Identity: identity})
	if err != nil {
		return nil, err
	}
	return acc.(*user.Student), nil
}

func (inst *Institute) CreateTeacher(firstName, lastName, identity string) (*user.Teacher, error) {
	acc, err := inst.CreateUser(user.NewUser{Profile: user.ProfileTeacher, FirstName: firstName, LastName: lastName, Identity: identity})
	if err != nil {
		return nil, err
	}
	return acc.(*user.Teacher), nil
}

func (inst *Institute) FindByIdentity(identity string) (user.Account, error) {
	inst.mu.RLock()
	defer inst.mu.RUnlock()
	acc, err := inst.users.FindByIdentity(identity)
	if err != nil {
		return nil, err
	}
	return acc.Clone(), nil
}

// Users lists every account in creation order.
func (inst *Institute) Users() []user.Account {
	inst.mu.RLock()
	defer inst.mu.RUnlock()
	accs := inst.users.List()
	for i, acc := range accs {
		accs[i] = acc.Clone()
	}
	return accs
}

func (inst *Institute) MustChangePassword(identity string) (bool, error) {
	inst.mu.RLock()
	defer inst.mu.RUnlock()
	acc, err := inst.users.FindByIdentity(identity)
	if err != nil {
		return false, err
	}
	return inst.users.MustChangePassword(acc), nil
}

func (inst *Institute) Suspend(identity string) error {
	return inst.mutate("user suspended", map[string]interface{}{"identity": identity}, func() error {
		return inst.users.Suspend(identity)
	})
}

func (inst *Institute) Reactivate(identity string) error {
	return inst.mutate("user reactivated", map[string]interface{}{"identity": identity}, func() error {
		return inst.users.Reactivate(identity)
	})
}

func (inst *Institute) ResetPassword(identity string) error {
	return inst.mutate("password reset", map[string]interface{}{"identity": identity}, func() error {
		return inst.users.ResetPassword(identity)
	})
}

func (inst *Institute) ChangePassword(identity, current, newPwd, confirm string) error {
	return inst.mutate("password changed", map[string]interface{}{"identity": identity}, func() error {
		return inst.users.ChangePassword(identity, current, newPwd, confirm)
	})
}

// Courses

// Course resolves ref as a course ID or name.
func (inst *Institute) Course(ref string) (*course.Course, error) {
	inst.mu.RLock()
	defer inst.mu.RUnlock()
	crs, err := inst.courses.Lookup(ref)
	if err != nil {
		return nil, err
	}
	return crs.Clone(), nil
}

// Courses lists the courses in any of states, or every course.
func (inst *Institute) Courses(states ...course.State) []*course.Course {
	inst.mu.RLock()
	defer inst.mu.RUnlock()
	if len(states) == 0 {
		return cloneCourses(inst.courses.List())
	}
	return cloneCourses(inst.courses.ByState(states...))
}

func (inst *Institute) TeacherCourses(teacher string, states ...course.State) []*course.Course {
	inst.mu.RLock()
	defer inst.mu.RUnlock()
	return cloneCourses(inst.courses.ByTeacher(teacher, states...))
}

func (inst *Institute) ProposeCourse(teacher string, nc course.NewCourse) (*course.Course, error) {
	return inst.mutateCourse("course proposed", func() (*course.Course, error) {
		return inst.engine.Propose(teacher, nc)
	})
}

// AdministerCourse sets the state and capacity of a course (see enrollment.Engine.Administer).
func (inst *Institute) AdministerCourse(ref string, s course.Settings) (*course.Course, error) {
	return inst.mutateCourse("course administered", func() (*course.Course, error) {
		crs, err := inst.courses.Lookup(ref)
		if err != nil {
			return nil, err
		}
		return inst.engine.Administer(crs.ID, s)
	})
}

func (inst *Institute) CancelCourse(ref string) (*course.Course, error) {
	return inst.mutateCourse("course cancelled", func() (*course.Course, error) {
		crs, err := inst.courses.Lookup(ref)
		if err != nil {
			return nil, err
		}
		return inst.engine.Cancel(crs.ID)
	})
}

func (inst *Institute) CloseEnrollment(teacher, ref string) (*course.Course, error) {
	return inst.mutateCourse("enrollment closed", func() (*course.Course, error) {
		crs, err := inst.courses.Lookup(ref)
		if err != nil {
			return nil, err
		}
		return inst.engine.CloseEnrollment(teacher, crs.ID)
	})
}

func (inst *Institute) AssignGrade(teacher, ref, student string, passed bool) error {
	fields := map[string]interface{}{"course": ref, "student": student, "passed": passed}
	return inst.mutate("grade assigned", fields, func() error {
		crs, err := inst.courses.Lookup(ref)
		if err != nil {
			return err
		}
		return inst.engine.AssignGrade(teacher, crs.ID, student, passed)
	})
}

func (inst *Institute) PendingGrade(ref, student string) (course.Grade, error) {
	inst.mu.RLock()
	defer inst.mu.RUnlock()
	crs, err := inst.courses.Lookup(ref)
	if err != nil {
		return "", err
	}
	return inst.engine.PendingGrade(crs.ID, student)
}

func (inst *Institute) CanFinish(ref string) (bool, error) {
	inst.mu.RLock()
	defer inst.mu.RUnlock()
	crs, err := inst.courses.Lookup(ref)
	if err != nil {
		return false, err
	}
	return inst.engine.CanFinish(crs.ID)
}

func (inst *Institute) FinishCourse(teacher, ref string) (*course.Course, error) {
	return inst.mutateCourse("course finished", func() (*course.Course, error) {
		crs, err := inst.courses.Lookup(ref)
		if err != nil {
			return nil, err
		}
		return inst.engine.Finish(teacher, crs.ID)
	})
}

func (inst *Institute) ResetCourse(teacher, ref string) (*course.Course, error) {
	return inst.mutateCourse("course reset", func() (*course.Course, error) {
		crs, err := inst.courses.Lookup(ref)
		if err != nil {
			return nil, err
		}
		return inst.engine.Reset(teacher, crs.ID)
	})
}

// Roster returns the grade sheet of the active offering, students cloned.
func (inst *Institute) Roster(ref string) ([]enrollment.RosterEntry, error) {
	inst.mu.RLock()
	defer inst.mu.RUnlock()
	crs, err := inst.courses.Lookup(ref)
	if err != nil {
		return nil, err
	}
	entries, err := inst.engine.Roster(crs.ID)
	if err != nil {
		return nil, err
	}
	for i, e := range entries {
		entries[i].Student = e.Student.Clone().(*user.Student)
	}
	return entries, nil
}

// Enrollment

func (inst *Institute) EligibleCoursesFor(student string) ([]*course.Course, error) {
	inst.mu.RLock()
	defer inst.mu.RUnlock()
	crss, err := inst.engine.EligibleCoursesFor(student)
	if err != nil {
		return nil, err
	}
	return cloneCourses(crss), nil
}

func (inst *Institute) Enroll(student, ref string) (*course.Course, error) {
	return inst.mutateCourse("student enrolled", func() (*course.Course, error) {
		crs, err := inst.courses.Lookup(ref)
		if err != nil {
			return nil, err
		}
		return inst.engine.Enroll(student, crs.ID)
	})
}

// EnrollAll commits a staged selection of courses: all of them or none.
func (inst *Institute) EnrollAll(student string, refs ...string) ([]*course.Course, error) {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		crs, err := inst.courses.Lookup(ref)
		if err != nil {
			return nil, err
		}
		ids = append(ids, crs.ID)
	}
	crss, err := inst.engine.EnrollAll(student, ids...)
	if err != nil {
		return nil, err
	}
	inst.log.Info("student enrolled", map[string]interface{}{"student": student, "courses": len(crss)})
	return cloneCourses(crss), nil
}

func (inst *Institute) EnrolledCourses(student string) ([]*course.Course, error) {
	inst.mu.RLock()
	defer inst.mu.RUnlock()
	crss, err := inst.engine.EnrolledCourses(student)
	if err != nil {
		return nil, err
	}
	return cloneCourses(crss), nil
}

func (inst *Institute) ApprovedCourses(student string) ([]*course.Course, error) {
	inst.mu.RLock()
	defer inst.mu.RUnlock()
	crss, err := inst.engine.ApprovedCourses(student)
	if err != nil {
		return nil, err
	}
	return cloneCourses(crss), nil
}

func (inst *Institute) mutate(msg string, fields map[string]interface{}, fn func() error) error {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if err := fn(); err != nil {
		return err
	}
	inst.log.Info(msg, fields)
	return nil
}

func (inst *Institute) mutateCourse(msg string, fn func() (*course.Course, error)) (*course.Course, error) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	crs, err := fn()
	if err != nil {
		return nil, err
	}
	inst.log.Info(msg, map[string]interface{}{"course": crs.Name, "state": crs.State})
	return crs.Clone(), nil
}

func cloneCourses(crss []*course.Course) []*course.Course {
	res := make([]*course.Course, 0, len(crss))
	for _, crs := range crss {
		res = append(res, crs.Clone())
	}
	return res
}
