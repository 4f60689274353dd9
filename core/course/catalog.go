package course

import (
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/AntoVGreco/app-instituto-MCV/core"
)

// Catalog holds every course in proposal order.
// It is not safe for concurrent use.
type Catalog struct {
	courses map[string]*Course
	order   []string
}

func NewCatalog() *Catalog {
	return &Catalog{courses: make(map[string]*Course)}
}

// NormalizeName trims the name and capitalizes its first letter only.
func NormalizeName(name string) string {
	return core.CapitalizeFirst(name)
}

// Propose creates a Proposed course for teacher. Names are unique, ignoring case.
func (cat *Catalog) Propose(teacher, name, description string, prerequisites int) (*Course, error) {
	name = NormalizeName(name)
	if name == "" {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "name", Error: "this field is required"})
	}
	if prerequisites < 0 {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "prerequisites", Error: "must be 0 or greater"})
	}
	if _, err := cat.ByName(name); err == nil {
		return nil, errors.Wrapf(ErrDuplicateCourse, "%q", name)
	}

	crs := &Course{
		ID:            uuid.New().String(),
		Name:          name,
		Description:   strings.TrimSpace(description),
		Prerequisites: prerequisites,
		State:         StateProposed,
		Teacher:       teacher,
		History:       make([]*Cursada, 0),
		CreatedAt:     NowFunc().UTC(),
	}
	if err := cat.Add(crs); err != nil {
		return nil, err
	}
	return crs, nil
}

// Add registers an already built course (snapshot restore).
func (cat *Catalog) Add(crs *Course) error {
	if crs.ID == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "id", Error: "this field is required"})
	}
	if _, ok := cat.courses[crs.ID]; ok {
		return errors.Wrapf(ErrDuplicateCourse, "id %s", crs.ID)
	}
	if _, err := cat.ByName(crs.Name); err == nil {
		return errors.Wrapf(ErrDuplicateCourse, "%q", crs.Name)
	}
	cat.courses[crs.ID] = crs
	cat.order = append(cat.order, crs.ID)
	return nil
}

func (cat *Catalog) Get(id string) (*Course, error) {
	if crs, ok := cat.courses[id]; ok {
		return crs, nil
	}
	return nil, errors.Wrapf(ErrNotFound, "id %s", id)
}

func (cat *Catalog) ByName(name string) (*Course, error) {
	name = NormalizeName(name)
	for _, id := range cat.order {
		if crs := cat.courses[id]; strings.EqualFold(crs.Name, name) {
			return crs, nil
		}
	}
	return nil, errors.Wrapf(ErrNotFound, "%q", name)
}

// Lookup resolves ref as an ID first, then as a name.
func (cat *Catalog) Lookup(ref string) (*Course, error) {
	if crs, ok := cat.courses[strings.TrimSpace(ref)]; ok {
		return crs, nil
	}
	return cat.ByName(ref)
}

func (cat *Catalog) List() []*Course {
	return cat.filter(func(*Course) bool { return true })
}

func (cat *Catalog) Len() int { return len(cat.order) }

// ByState returns the courses in any of the given states.
func (cat *Catalog) ByState(states ...State) []*Course {
	return cat.filter(func(crs *Course) bool { return inStates(crs.State, states) })
}

// ByTeacher returns the courses of teacher, optionally restricted to some states.
func (cat *Catalog) ByTeacher(teacher string, states ...State) []*Course {
	return cat.filter(func(crs *Course) bool {
		return crs.Teacher == teacher && (len(states) == 0 || inStates(crs.State, states))
	})
}

func (cat *Catalog) filter(keep func(*Course) bool) []*Course {
	res := make([]*Course, 0)
	for _, id := range cat.order {
		if crs := cat.courses[id]; keep(crs) {
			res = append(res, crs)
		}
	}
	return res
}

func inStates(s State, states []State) bool {
	for _, st := range states {
		if s == st {
			return true
		}
	}
	return false
}
