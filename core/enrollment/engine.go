// Package enrollment couples students to course offerings: eligibility, enrollment,
// grading and the end of an offering.
package enrollment

import (
	"github.com/pkg/errors"

	"github.com/AntoVGreco/app-instituto-MCV/core/course"
	"github.com/AntoVGreco/app-instituto-MCV/core/user"
)

var ErrNotEligible = errors.New("student is not eligible for this course")

// Engine works on a Directory and a Catalog it does not own.
// It is not safe for concurrent use.
type Engine struct {
	users   *user.Directory
	courses *course.Catalog
}

func NewEngine(users *user.Directory, courses *course.Catalog) *Engine {
	return &Engine{users: users, courses: courses}
}

// IsEligible: the course is Enabled, the student approved enough courses,
// and is neither enrolled in nor has approved it already.
func IsEligible(std *user.Student, crs *course.Course) bool {
	return crs.State == course.StateEnabled &&
		std.ApprovedCount() >= crs.Prerequisites &&
		!std.IsEnrolled(crs.ID) &&
		!std.HasApproved(crs.ID)
}

func eligibilityError(std *user.Student, crs *course.Course) error {
	switch {
	case std.HasApproved(crs.ID):
		return errors.Wrapf(ErrNotEligible, "%q already approved", crs.Name)
	case std.IsEnrolled(crs.ID):
		return errors.Wrapf(course.ErrAlreadyEnrolled, "%s in %q", std.Identity, crs.Name)
	case crs.State != course.StateEnabled:
		return errors.Wrapf(course.ErrEnrollmentClosed, "%q is %s", crs.Name, crs.State)
	case std.ApprovedCount() < crs.Prerequisites:
		return errors.Wrapf(ErrNotEligible, "%q requires %d approved courses, got %d", crs.Name, crs.Prerequisites, std.ApprovedCount())
	}
	return nil
}

// EligibleCoursesFor returns, in catalog order, the courses the student can enroll in.
func (e *Engine) EligibleCoursesFor(identity string) ([]*course.Course, error) {
	std, err := e.users.Student(identity)
	if err != nil {
		return nil, err
	}
	res := make([]*course.Course, 0)
	for _, crs := range e.courses.ByState(course.StateEnabled) {
		if IsEligible(std, crs) {
			res = append(res, crs)
		}
	}
	return res, nil
}

// Enroll adds the student to the active offering of the course.
// Nothing is mutated when it fails.
func (e *Engine) Enroll(identity, courseID string) (*course.Course, error) {
	std, crs, err := e.prepareEnroll(identity, courseID)
	if err != nil {
		return nil, err
	}
	if err := crs.AddToRoster(std.Identity); err != nil {
		return nil, err
	}
	std.Enroll(crs.ID)
	return crs, nil
}

func (e *Engine) prepareEnroll(identity, courseID string) (*user.Student, *course.Course, error) {
	std, err := e.users.Student(identity)
	if err != nil {
		return nil, nil, err
	}
	crs, err := e.courses.Get(courseID)
	if err != nil {
		return nil, nil, err
	}
	if err := eligibilityError(std, crs); err != nil {
		return nil, nil, err
	}
	if crs.Capacity == 0 {
		return nil, nil, errors.Wrapf(course.ErrCapacityNotSet, "%q", crs.Name)
	}
	return std, crs, nil
}

// EnrollAll commits a staged selection. The whole selection is checked first;
// if any course is rejected nothing is enrolled.
func (e *Engine) EnrollAll(identity string, courseIDs ...string) ([]*course.Course, error) {
	seen := make(map[string]bool, len(courseIDs))
	for _, id := range courseIDs {
		if seen[id] {
			return nil, errors.Wrapf(course.ErrAlreadyEnrolled, "course %s selected twice", id)
		}
		seen[id] = true
		if _, _, err := e.prepareEnroll(identity, id); err != nil {
			return nil, err
		}
	}

	enrolled := make([]*course.Course, 0, len(courseIDs))
	for _, id := range courseIDs {
		crs, err := e.Enroll(identity, id)
		if err != nil {
			return enrolled, err
		}
		enrolled = append(enrolled, crs)
	}
	return enrolled, nil
}

// EnrolledCourses returns the courses the student is enrolled in, in enrollment order.
func (e *Engine) EnrolledCourses(identity string) ([]*course.Course, error) {
	std, err := e.users.Student(identity)
	if err != nil {
		return nil, err
	}
	return e.resolve(std.EnrolledCourses)
}

func (e *Engine) ApprovedCourses(identity string) ([]*course.Course, error) {
	std, err := e.users.Student(identity)
	if err != nil {
		return nil, err
	}
	return e.resolve(std.ApprovedCourses)
}

func (e *Engine) resolve(ids []string) ([]*course.Course, error) {
	res := make([]*course.Course, 0, len(ids))
	for _, id := range ids {
		crs, err := e.courses.Get(id)
		if err != nil {
			return nil, err
		}
		res = append(res, crs)
	}
	return res, nil
}

// Propose creates a Proposed course on behalf of a teacher.
func (e *Engine) Propose(teacher string, nc course.NewCourse) (*course.Course, error) {
	tchr, err := e.users.Teacher(teacher)
	if err != nil {
		return nil, err
	}
	return e.courses.Propose(tchr.Identity, nc.Name, nc.Description, nc.Prerequisites)
}

// teacherCourse returns the course if teacher owns it.
func (e *Engine) teacherCourse(teacher, courseID string) (*course.Course, error) {
	if _, err := e.users.Teacher(teacher); err != nil {
		return nil, err
	}
	crs, err := e.courses.Get(courseID)
	if err != nil {
		return nil, err
	}
	if err := crs.OwnedBy(teacher); err != nil {
		return nil, err
	}
	return crs, nil
}

// CloseEnrollment ends enrollment whatever the fill level.
func (e *Engine) CloseEnrollment(teacher, courseID string) (*course.Course, error) {
	crs, err := e.teacherCourse(teacher, courseID)
	if err != nil {
		return nil, err
	}
	return crs, crs.Close()
}

// AssignGrade sets the pending grade of a student. The approved courses of the
// student only change on Finish.
func (e *Engine) AssignGrade(teacher, courseID, student string, passed bool) error {
	crs, err := e.teacherCourse(teacher, courseID)
	if err != nil {
		return err
	}
	std, err := e.users.Student(student)
	if err != nil {
		return err
	}
	return crs.SetGrade(std.Identity, course.GradeFor(passed))
}

// PendingGrade returns the grade of the student in the active offering.
func (e *Engine) PendingGrade(courseID, student string) (course.Grade, error) {
	crs, err := e.courses.Get(courseID)
	if err != nil {
		return "", err
	}
	if crs.Active == nil {
		return "", errors.Wrapf(course.ErrNoActiveOffering, "%q", crs.Name)
	}
	if !crs.Active.Has(student) {
		return "", errors.Wrapf(course.ErrNotEnrolled, "%s in %q", student, crs.Name)
	}
	return crs.Active.Grade(student), nil
}

// CanFinish reports whether Finish would succeed; a missing course is an error.
func (e *Engine) CanFinish(courseID string) (bool, error) {
	crs, err := e.courses.Get(courseID)
	if err != nil {
		return false, err
	}
	return crs.CanFinish(), nil
}

// Finish ends the offering: approved students get the course in their approved
// courses, and every student of the roster is unenrolled.
func (e *Engine) Finish(teacher, courseID string) (*course.Course, error) {
	crs, err := e.teacherCourse(teacher, courseID)
	if err != nil {
		return nil, err
	}
	if crs.Active == nil {
		return nil, errors.Wrapf(course.ErrNoActiveOffering, "%q", crs.Name)
	}
	students, err := e.rosterStudents(crs.Active)
	if err != nil {
		return nil, err
	}

	off, err := crs.Finish()
	if err != nil {
		return nil, err
	}
	for _, std := range students {
		if off.Grade(std.Identity) == course.GradeApproved {
			std.Approve(crs.ID)
		}
		std.Unenroll(crs.ID)
	}
	return crs, nil
}

// Reset re-opens a finished course with an empty offering.
func (e *Engine) Reset(teacher, courseID string) (*course.Course, error) {
	crs, err := e.teacherCourse(teacher, courseID)
	if err != nil {
		return nil, err
	}
	return crs, crs.Reset()
}

// Cancel withdraws the course and releases the students of its offering.
func (e *Engine) Cancel(courseID string) (*course.Course, error) {
	crs, err := e.courses.Get(courseID)
	if err != nil {
		return nil, err
	}
	var students []*user.Student
	if crs.Active != nil {
		if students, err = e.rosterStudents(crs.Active); err != nil {
			return nil, err
		}
	}
	if _, err := crs.Cancel(); err != nil {
		return nil, err
	}
	for _, std := range students {
		std.Unenroll(crs.ID)
	}
	return crs, nil
}

// Administer applies what an administrator sets on a course:
// Proposed updates the capacity only, Enabled opens (or resizes) it, Cancelled withdraws it.
func (e *Engine) Administer(courseID string, s course.Settings) (*course.Course, error) {
	crs, err := e.courses.Get(courseID)
	if err != nil {
		return nil, err
	}
	switch s.State {
	case course.StateProposed:
		return crs, crs.SetCapacity(s.Capacity)
	case course.StateEnabled:
		return crs, crs.Enable(s.Capacity)
	case course.StateCancelled:
		return e.Cancel(courseID)
	}
	return nil, errors.Wrapf(course.ErrInvalidTransition, "%q: %s is not an administrative target", crs.Name, s.State)
}

// RosterEntry is one line of a grade sheet.
type RosterEntry struct {
	Student *user.Student
	Grade   course.Grade
}

// Roster returns the students of the active offering, in enrollment order, with their pending grade.
func (e *Engine) Roster(courseID string) ([]RosterEntry, error) {
	crs, err := e.courses.Get(courseID)
	if err != nil {
		return nil, err
	}
	if crs.Active == nil {
		return []RosterEntry{}, nil
	}
	students, err := e.rosterStudents(crs.Active)
	if err != nil {
		return nil, err
	}
	res := make([]RosterEntry, 0, len(students))
	for _, std := range students {
		res = append(res, RosterEntry{Student: std, Grade: crs.Active.Grade(std.Identity)})
	}
	return res, nil
}

func (e *Engine) rosterStudents(off *course.Cursada) ([]*user.Student, error) {
	res := make([]*user.Student, 0, off.Len())
	for _, id := range off.Roster {
		std, err := e.users.Student(id)
		if err != nil {
			return nil, errors.Wrapf(err, "offering %s", off.ID)
		}
		res = append(res, std)
	}
	return res, nil
}
