package course

import (
	"github.com/AntoVGreco/app-instituto-MCV/core"
)

// NewCourse contains what a Teacher types to propose a course.
type NewCourse struct {
	Name          string `json:"name" validate:"required,max=80"`
	Description   string `json:"description" validate:"max=500"`
	Prerequisites int    `json:"prerequisites" validate:"min=0"`
}

func (nc *NewCourse) Validate() error {
	nc.Name = NormalizeName(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	return core.ValidateStruct(nc)
}

// Settings is what an administrator sets on a course: its target state and capacity.
type Settings struct {
	State    State `json:"state" validate:"required,oneof=Proposed Enabled Cancelled"`
	Capacity int   `json:"capacity" validate:"min=0"`
}

func (s Settings) Validate() error { return core.ValidateStruct(s) }
