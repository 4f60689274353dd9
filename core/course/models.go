package course

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var NowFunc = time.Now // mockable

// State of a Course. The only moves are:
//
//	Proposed -> Enabled | Cancelled
//	Enabled  -> Enabled (capacity update) | Closed | Cancelled
//	Closed   -> Finished
//	Finished -> Enabled (reset)
type State string

const (
	StateProposed  State = "Proposed"
	StateEnabled   State = "Enabled"
	StateClosed    State = "Closed"
	StateFinished  State = "Finished"
	StateCancelled State = "Cancelled"
)

var (
	States = []State{StateProposed, StateEnabled, StateClosed, StateFinished, StateCancelled}

	transitions = map[State][]State{
		StateProposed: {StateEnabled, StateCancelled},
		StateEnabled:  {StateEnabled, StateClosed, StateCancelled},
		StateClosed:   {StateFinished},
		StateFinished: {StateEnabled},
	}
)

func (s State) IsValid() bool {
	for _, st := range States {
		if s == st {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether `to` is reachable from s in one step.
func (s State) CanTransitionTo(to State) bool {
	for _, st := range transitions[s] {
		if st == to {
			return true
		}
	}
	return false
}

// ParseState is case-insensitive: "enabled" -> StateEnabled.
func ParseState(s string) (State, error) {
	for _, st := range States {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return "", errors.Errorf("unknown course state %q", s)
}

// Grade is the pending grade of a student in an offering.
type Grade string

const (
	GradeUngraded Grade = "Ungraded"
	GradeApproved Grade = "Approved"
	GradeFailed   Grade = "Failed"
)

func GradeFor(passed bool) Grade {
	if passed {
		return GradeApproved
	}
	return GradeFailed
}

// Cursada is one run of a Course: a teacher and the students enrolled, in enrollment order.
type Cursada struct {
	ID         string           `json:"id"`
	Teacher    string           `json:"teacher"`
	Roster     []string         `json:"roster"`
	Grades     map[string]Grade `json:"grades,omitempty"`
	Finished   bool             `json:"finished"`
	CreatedAt  time.Time        `json:"created_at"`
	FinishedAt time.Time        `json:"finished_at,omitempty"`
}

func newCursada(teacher string) *Cursada {
	return &Cursada{
		ID:        uuid.New().String(),
		Teacher:   teacher,
		Roster:    make([]string, 0),
		Grades:    make(map[string]Grade),
		CreatedAt: NowFunc().UTC(),
	}
}

func (c *Cursada) Len() int { return len(c.Roster) }

func (c *Cursada) Has(identity string) bool {
	for _, id := range c.Roster {
		if id == identity {
			return true
		}
	}
	return false
}

// Grade returns GradeUngraded for students not graded yet.
func (c *Cursada) Grade(identity string) Grade {
	if g, ok := c.Grades[identity]; ok && g != "" {
		return g
	}
	return GradeUngraded
}

func (c *Cursada) AllGraded() bool {
	for _, id := range c.Roster {
		if c.Grade(id) == GradeUngraded {
			return false
		}
	}
	return true
}

func (c *Cursada) Clone() *Cursada {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Roster = append([]string(nil), c.Roster...)
	cp.Grades = make(map[string]Grade, len(c.Grades))
	for id, g := range c.Grades {
		cp.Grades[id] = g
	}
	return &cp
}

// Course is proposed by a Teacher; an administrator enables it with a capacity.
type Course struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Prerequisites int        `json:"prerequisites"` // approved courses required to enroll
	Capacity      int        `json:"capacity"`
	State         State      `json:"state"`
	Teacher       string     `json:"teacher"`
	Active        *Cursada   `json:"active,omitempty"`
	History       []*Cursada `json:"history"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (c *Course) String() string { return c.Name }

func (c *Course) Clone() *Course {
	cp := *c
	cp.Active = c.Active.Clone()
	cp.History = make([]*Cursada, 0, len(c.History))
	for _, h := range c.History {
		cp.History = append(cp.History, h.Clone())
	}
	return &cp
}

// Enrolled is the number of students in the active offering.
func (c *Course) Enrolled() int {
	if c.Active == nil {
		return 0
	}
	return c.Active.Len()
}

// IsFull is true once the active offering reached a capacity that was set.
func (c *Course) IsFull() bool {
	return c.Capacity > 0 && c.Enrolled() >= c.Capacity
}
