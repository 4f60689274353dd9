package institute

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/AntoVGreco/app-instituto-MCV/core/course"
	"github.com/AntoVGreco/app-instituto-MCV/core/credential"
	"github.com/AntoVGreco/app-instituto-MCV/core/user"
)

// SnapshotVersion is the format written by this build. Older builds cannot read newer snapshots.
const SnapshotVersion = 1

// Snapshot is the whole institute graph. Students and rosters reference
// courses and users by key; references are checked when restoring.
type Snapshot struct {
	Version       int            `json:"version" yaml:"version"`
	SavedAt       time.Time      `json:"saved_at" yaml:"saved_at"`
	AdminIdentity string         `json:"admin_identity" yaml:"admin_identity"`
	Users         []UserRecord   `json:"users" yaml:"users"`
	Courses       []CourseRecord `json:"courses" yaml:"courses"`
}

type UserRecord struct {
	Profile      user.Profile `json:"profile" yaml:"profile"`
	Identity     string       `json:"identity" yaml:"identity"`
	FirstName    string       `json:"first_name" yaml:"first_name"`
	LastName     string       `json:"last_name" yaml:"last_name"`
	PasswordHash string       `json:"password_hash,omitempty" yaml:"password_hash,omitempty"`
	Suspended    bool         `json:"suspended" yaml:"suspended"`
	Enrolled     []string     `json:"enrolled,omitempty" yaml:"enrolled,omitempty"`
	Approved     []string     `json:"approved,omitempty" yaml:"approved,omitempty"`
	CreatedAt    time.Time    `json:"created_at" yaml:"created_at"`
}

type CourseRecord struct {
	ID            string          `json:"id" yaml:"id"`
	Name          string          `json:"name" yaml:"name"`
	Description   string          `json:"description,omitempty" yaml:"description,omitempty"`
	Prerequisites int             `json:"prerequisites" yaml:"prerequisites"`
	Capacity      int             `json:"capacity" yaml:"capacity"`
	State         course.State    `json:"state" yaml:"state"`
	Teacher       string          `json:"teacher" yaml:"teacher"`
	Active        *CursadaRecord  `json:"active,omitempty" yaml:"active,omitempty"`
	History       []CursadaRecord `json:"history,omitempty" yaml:"history,omitempty"`
	CreatedAt     time.Time       `json:"created_at" yaml:"created_at"`
}

type CursadaRecord struct {
	ID         string                  `json:"id" yaml:"id"`
	Teacher    string                  `json:"teacher" yaml:"teacher"`
	Roster     []string                `json:"roster" yaml:"roster"`
	Grades     map[string]course.Grade `json:"grades,omitempty" yaml:"grades,omitempty"`
	Finished   bool                    `json:"finished" yaml:"finished"`
	CreatedAt  time.Time               `json:"created_at" yaml:"created_at"`
	FinishedAt *time.Time              `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

// Redacted returns a copy without password digests, for exports.
func (snap *Snapshot) Redacted() *Snapshot {
	cp := *snap
	cp.Users = make([]UserRecord, len(snap.Users))
	for i, rec := range snap.Users {
		rec.PasswordHash = ""
		cp.Users[i] = rec
	}
	return &cp
}

// EncodeSnapshot is the wire format shared by every Store.
func EncodeSnapshot(snap *Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, errors.Wrap(err, "encoding snapshot")
	}
	return data, nil
}

// DecodeSnapshot fails with ErrCorruptSnapshot on malformed data or an unsupported version.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	snap := new(Snapshot)
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, errors.Wrapf(ErrCorruptSnapshot, "decoding: %v", err)
	}
	if snap.Version < 1 || snap.Version > SnapshotVersion {
		return nil, errors.Wrapf(ErrCorruptSnapshot, "unsupported version %d", snap.Version)
	}
	return snap, nil
}

func toCursadaRecord(off *course.Cursada) CursadaRecord {
	rec := CursadaRecord{
		ID:        off.ID,
		Teacher:   off.Teacher,
		Roster:    append([]string{}, off.Roster...),
		Finished:  off.Finished,
		CreatedAt: off.CreatedAt,
	}
	if len(off.Grades) > 0 {
		rec.Grades = make(map[string]course.Grade, len(off.Grades))
		for id, g := range off.Grades {
			rec.Grades[id] = g
		}
	}
	if !off.FinishedAt.IsZero() {
		at := off.FinishedAt
		rec.FinishedAt = &at
	}
	return rec
}

func (rec CursadaRecord) toCursada() *course.Cursada {
	off := &course.Cursada{
		ID:        rec.ID,
		Teacher:   rec.Teacher,
		Roster:    append([]string{}, rec.Roster...),
		Grades:    make(map[string]course.Grade, len(rec.Grades)),
		Finished:  rec.Finished,
		CreatedAt: rec.CreatedAt,
	}
	for id, g := range rec.Grades {
		off.Grades[id] = g
	}
	if rec.FinishedAt != nil {
		off.FinishedAt = *rec.FinishedAt
	}
	return off
}

// snapshot must be called with the lock held.
func (inst *Institute) snapshot() *Snapshot {
	snap := &Snapshot{
		Version:       SnapshotVersion,
		SavedAt:       NowFunc().UTC(),
		AdminIdentity: inst.adminIdentity,
		Users:         make([]UserRecord, 0, inst.users.Len()),
		Courses:       make([]CourseRecord, 0, inst.courses.Len()),
	}
	for _, acc := range inst.users.List() {
		usr := acc.Base()
		rec := UserRecord{
			Profile:      acc.Profile(),
			Identity:     usr.Identity,
			FirstName:    usr.FirstName,
			LastName:     usr.LastName,
			PasswordHash: usr.PasswordHash,
			Suspended:    usr.Suspended,
			CreatedAt:    usr.CreatedAt,
		}
		if std, ok := acc.(*user.Student); ok {
			rec.Enrolled = append([]string(nil), std.EnrolledCourses...)
			rec.Approved = append([]string(nil), std.ApprovedCourses...)
		}
		snap.Users = append(snap.Users, rec)
	}
	for _, crs := range inst.courses.List() {
		rec := CourseRecord{
			ID:            crs.ID,
			Name:          crs.Name,
			Description:   crs.Description,
			Prerequisites: crs.Prerequisites,
			Capacity:      crs.Capacity,
			State:         crs.State,
			Teacher:       crs.Teacher,
			CreatedAt:     crs.CreatedAt,
		}
		if crs.Active != nil {
			off := toCursadaRecord(crs.Active)
			rec.Active = &off
		}
		for _, h := range crs.History {
			rec.History = append(rec.History, toCursadaRecord(h))
		}
		snap.Courses = append(snap.Courses, rec)
	}
	return snap
}

// restore rebuilds the directory and the catalog, checking every reference.
// Any inconsistency is reported as ErrCorruptSnapshot.
func restore(snap *Snapshot, hasher credential.Hasher) (*user.Directory, *course.Catalog, error) {
	corrupt := func(format string, args ...interface{}) error {
		return errors.Wrapf(ErrCorruptSnapshot, format, args...)
	}

	users := user.NewDirectory(hasher)
	for _, rec := range snap.Users {
		usr := user.User{
			Identity:     rec.Identity,
			FirstName:    rec.FirstName,
			LastName:     rec.LastName,
			PasswordHash: rec.PasswordHash,
			Suspended:    rec.Suspended,
			CreatedAt:    rec.CreatedAt,
		}
		var acc user.Account
		switch rec.Profile {
		case user.ProfileAdmin:
			acc = &user.Administrator{User: usr}
		case user.ProfileTeacher:
			acc = &user.Teacher{User: usr}
		case user.ProfileStudent:
			acc = &user.Student{
				User:            usr,
				EnrolledCourses: append([]string(nil), rec.Enrolled...),
				ApprovedCourses: append([]string(nil), rec.Approved...),
			}
		default:
			return nil, nil, corrupt("user %s: unknown profile %q", rec.Identity, rec.Profile)
		}
		if err := users.Add(acc); err != nil {
			return nil, nil, corrupt("user %s: %v", rec.Identity, err)
		}
	}
	if acc, err := users.FindByIdentity(snap.AdminIdentity); err != nil || acc.Profile() != user.ProfileAdmin {
		return nil, nil, corrupt("administrator %s is missing", snap.AdminIdentity)
	}

	courses := course.NewCatalog()
	for _, rec := range snap.Courses {
		if !rec.State.IsValid() {
			return nil, nil, corrupt("course %q: unknown state %q", rec.Name, rec.State)
		}
		if _, err := users.Teacher(rec.Teacher); err != nil {
			return nil, nil, corrupt("course %q: %v", rec.Name, err)
		}
		crs := &course.Course{
			ID:            rec.ID,
			Name:          rec.Name,
			Description:   rec.Description,
			Prerequisites: rec.Prerequisites,
			Capacity:      rec.Capacity,
			State:         rec.State,
			Teacher:       rec.Teacher,
			History:       make([]*course.Cursada, 0, len(rec.History)),
			CreatedAt:     rec.CreatedAt,
		}
		offs := rec.History
		if rec.Active != nil {
			crs.Active = rec.Active.toCursada()
			offs = append(offs[:len(offs):len(offs)], *rec.Active)
		}
		for _, h := range rec.History {
			crs.History = append(crs.History, h.toCursada())
		}
		for _, off := range offs {
			for _, id := range off.Roster {
				if _, err := users.Student(id); err != nil {
					return nil, nil, corrupt("course %q offering %s: %v", rec.Name, off.ID, err)
				}
			}
		}
		if err := courses.Add(crs); err != nil {
			return nil, nil, corrupt("course %q: %v", rec.Name, err)
		}
	}

	for _, acc := range users.List() {
		std, ok := acc.(*user.Student)
		if !ok {
			continue
		}
		for _, ids := range [][]string{std.EnrolledCourses, std.ApprovedCourses} {
			for _, id := range ids {
				if _, err := courses.Get(id); err != nil {
					return nil, nil, corrupt("student %s: %v", std.Identity, err)
				}
			}
		}
	}
	return users, courses, nil
}
