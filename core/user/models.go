package user

import (
	"time"
)

// Profile tags the three kinds of Account.
type Profile string

const (
	ProfileAdmin   Profile = "admin"
	ProfileStudent Profile = "student"
	ProfileTeacher Profile = "teacher"
)

func (p Profile) IsValid() bool {
	switch p {
	case ProfileAdmin, ProfileStudent, ProfileTeacher:
		return true
	}
	return false
}

// Account states
const (
	StateActive    = "Active"
	StateSuspended = "Suspended"
)

// User holds what every Account has in common.
type User struct {
	Identity     string    `json:"identity"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PasswordHash string    `json:"-"`
	Suspended    bool      `json:"suspended"`
	CreatedAt    time.Time `json:"created_at"` // UTC
}

// FullName is "Last, First", the way users are listed.
func (u *User) FullName() string {
	return u.LastName + ", " + u.FirstName
}

func (u *User) AccountState() string {
	if u.Suspended {
		return StateSuspended
	}
	return StateActive
}

// Account is a closed set: *Administrator, *Student or *Teacher.
// Dispatch on it with a type switch covering the three of them.
type Account interface {
	Base() *User
	Profile() Profile
	Clone() Account

	sealed()
}

type Administrator struct {
	User
}

func (a *Administrator) Base() *User      { return &a.User }
func (a *Administrator) Profile() Profile { return ProfileAdmin }
func (a *Administrator) Clone() Account   { cp := *a; return &cp }
func (*Administrator) sealed()            {}

type Teacher struct {
	User
}

func (t *Teacher) Base() *User      { return &t.User }
func (t *Teacher) Profile() Profile { return ProfileTeacher }
func (t *Teacher) Clone() Account   { cp := *t; return &cp }
func (*Teacher) sealed()            {}

// Student keeps course IDs, not courses: the catalog resolves them.
type Student struct {
	User
	EnrolledCourses []string `json:"enrolled_courses"` // display order
	ApprovedCourses []string `json:"approved_courses"`
}

func (s *Student) Base() *User      { return &s.User }
func (s *Student) Profile() Profile { return ProfileStudent }
func (*Student) sealed()            {}

func (s *Student) Clone() Account {
	cp := *s
	cp.EnrolledCourses = append([]string(nil), s.EnrolledCourses...)
	cp.ApprovedCourses = append([]string(nil), s.ApprovedCourses...)
	return &cp
}

func (s *Student) ApprovedCount() int { return len(s.ApprovedCourses) }

func (s *Student) IsEnrolled(courseID string) bool { return contains(s.EnrolledCourses, courseID) }

func (s *Student) HasApproved(courseID string) bool { return contains(s.ApprovedCourses, courseID) }

// Enroll appends courseID to the enrolled courses, once.
func (s *Student) Enroll(courseID string) {
	if !s.IsEnrolled(courseID) {
		s.EnrolledCourses = append(s.EnrolledCourses, courseID)
	}
}

// Unenroll removes courseID from the enrolled courses, keeping the order of the others.
func (s *Student) Unenroll(courseID string) {
	for i, id := range s.EnrolledCourses {
		if id == courseID {
			s.EnrolledCourses = append(s.EnrolledCourses[:i:i], s.EnrolledCourses[i+1:]...)
			return
		}
	}
}

// Approve adds courseID to the approved courses, once.
func (s *Student) Approve(courseID string) {
	if !s.HasApproved(courseID) {
		s.ApprovedCourses = append(s.ApprovedCourses, courseID)
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
