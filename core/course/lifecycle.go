package course

import (
	"github.com/pkg/errors"
)

var (
	ErrNotFound           = errors.New("course not found")
	ErrDuplicateCourse    = errors.New("a course with this name already exists")
	ErrInvalidTransition  = errors.New("invalid course state transition")
	ErrInvalidCapacity    = errors.New("invalid capacity")
	ErrCapacityNotSet     = errors.New("course capacity is not set")
	ErrEnrollmentClosed   = errors.New("course is not open for enrollment")
	ErrAlreadyEnrolled    = errors.New("student already enrolled in this course")
	ErrNotEnrolled        = errors.New("student not enrolled in this course")
	ErrGradingIncomplete  = errors.New("every enrolled student must be graded first")
	ErrNoActiveOffering   = errors.New("course has no active offering")
	ErrNotCourseTeacher   = errors.New("course belongs to another teacher")
	ErrInvalidGradeTarget = errors.New("grades can only be assigned once enrollment is closed")
)

func (c *Course) transition(to State) error {
	if !c.State.CanTransitionTo(to) {
		return errors.Wrapf(ErrInvalidTransition, "%q: %s -> %s", c.Name, c.State, to)
	}
	c.State = to
	return nil
}

func (c *Course) checkCapacity(capacity int) error {
	if capacity < 0 {
		return errors.Wrapf(ErrInvalidCapacity, "%d is negative", capacity)
	}
	if capacity < c.Enrolled() {
		return errors.Wrapf(ErrInvalidCapacity, "%d is below the %d students already enrolled", capacity, c.Enrolled())
	}
	return nil
}

// OwnedBy fails unless teacher proposed the course.
func (c *Course) OwnedBy(teacher string) error {
	if c.Teacher != teacher {
		return errors.Wrapf(ErrNotCourseTeacher, "%q", c.Name)
	}
	return nil
}

// SetCapacity updates the capacity of a course that is still Proposed.
func (c *Course) SetCapacity(capacity int) error {
	if c.State != StateProposed {
		return errors.Wrapf(ErrInvalidTransition, "%q: capacity alone can only be set while %s", c.Name, StateProposed)
	}
	if err := c.checkCapacity(capacity); err != nil {
		return err
	}
	c.Capacity = capacity
	return nil
}

// Enable opens the course for enrollment with the given capacity.
// A Proposed course gets a new offering; an Enabled one only has its capacity updated,
// and closes if the new capacity equals the students already enrolled.
func (c *Course) Enable(capacity int) error {
	if c.State != StateProposed && c.State != StateEnabled {
		return errors.Wrapf(ErrInvalidTransition, "%q: %s -> %s", c.Name, c.State, StateEnabled)
	}
	if err := c.checkCapacity(capacity); err != nil {
		return err
	}
	c.Capacity = capacity
	if err := c.transition(StateEnabled); err != nil {
		return err
	}
	if c.Active == nil {
		c.Active = newCursada(c.Teacher)
	}
	if c.Enrolled() > 0 && c.IsFull() {
		return c.transition(StateClosed)
	}
	return nil
}

// AddToRoster appends a student to the active offering.
// Reaching the capacity closes the course.
func (c *Course) AddToRoster(identity string) error {
	if c.State != StateEnabled {
		return errors.Wrapf(ErrEnrollmentClosed, "%q is %s", c.Name, c.State)
	}
	if c.Active == nil {
		return errors.Wrapf(ErrNoActiveOffering, "%q", c.Name)
	}
	if c.Capacity == 0 {
		return errors.Wrapf(ErrCapacityNotSet, "%q", c.Name)
	}
	if c.Active.Has(identity) {
		return errors.Wrapf(ErrAlreadyEnrolled, "%s in %q", identity, c.Name)
	}
	if c.IsFull() {
		return errors.Wrapf(ErrEnrollmentClosed, "%q is full", c.Name)
	}

	c.Active.Roster = append(c.Active.Roster, identity)
	if c.IsFull() {
		return c.transition(StateClosed)
	}
	return nil
}

// Close ends enrollment before the capacity is reached.
func (c *Course) Close() error {
	if c.State != StateEnabled {
		return errors.Wrapf(ErrInvalidTransition, "%q: %s -> %s", c.Name, c.State, StateClosed)
	}
	return c.transition(StateClosed)
}

// SetGrade records the pending grade of an enrolled student. Grades can be changed until Finish.
func (c *Course) SetGrade(identity string, grade Grade) error {
	if c.State != StateClosed {
		return errors.Wrapf(ErrInvalidGradeTarget, "%q is %s", c.Name, c.State)
	}
	if c.Active == nil {
		return errors.Wrapf(ErrNoActiveOffering, "%q", c.Name)
	}
	if !c.Active.Has(identity) {
		return errors.Wrapf(ErrNotEnrolled, "%s in %q", identity, c.Name)
	}
	if c.Active.Grades == nil {
		c.Active.Grades = make(map[string]Grade)
	}
	c.Active.Grades[identity] = grade
	return nil
}

// CanFinish is true for a Closed course whose students are all graded.
func (c *Course) CanFinish() bool {
	return c.State == StateClosed && c.Active != nil && c.Active.AllGraded()
}

// Finish seals the active offering and returns it so the caller can settle
// approvals. The offering stays active until Reset archives it.
func (c *Course) Finish() (*Cursada, error) {
	if c.State != StateClosed {
		return nil, errors.Wrapf(ErrInvalidTransition, "%q: %s -> %s", c.Name, c.State, StateFinished)
	}
	if c.Active == nil {
		return nil, errors.Wrapf(ErrNoActiveOffering, "%q", c.Name)
	}
	if !c.Active.AllGraded() {
		return nil, errors.Wrapf(ErrGradingIncomplete, "%q", c.Name)
	}
	if err := c.transition(StateFinished); err != nil {
		return nil, err
	}
	c.Active.Finished = true
	c.Active.FinishedAt = NowFunc().UTC()
	return c.Active, nil
}

// Reset archives the finished offering and re-opens the course with an empty one,
// keeping teacher and capacity.
func (c *Course) Reset() error {
	if c.State != StateFinished {
		return errors.Wrapf(ErrInvalidTransition, "%q: %s -> %s", c.Name, c.State, StateEnabled)
	}
	c.archive()
	if err := c.transition(StateEnabled); err != nil {
		return err
	}
	c.Active = newCursada(c.Teacher)
	return nil
}

// Cancel withdraws a Proposed or Enabled course. The active offering, if any,
// is archived and returned so the caller can release its students.
func (c *Course) Cancel() (*Cursada, error) {
	if err := c.transition(StateCancelled); err != nil {
		return nil, err
	}
	off := c.Active
	c.archive()
	return off, nil
}

// archive moves the active offering to the history, once.
func (c *Course) archive() {
	if c.Active == nil {
		return
	}
	for _, h := range c.History {
		if h.ID == c.Active.ID {
			c.Active = nil
			return
		}
	}
	c.History = append(c.History, c.Active)
	c.Active = nil
}
