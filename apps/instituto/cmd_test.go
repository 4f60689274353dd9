package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/AntoVGreco/app-instituto-MCV/core"
	"github.com/AntoVGreco/app-instituto-MCV/core/course"
	"github.com/AntoVGreco/app-instituto-MCV/core/credential"
	"github.com/AntoVGreco/app-instituto-MCV/core/institute"
	"github.com/AntoVGreco/app-instituto-MCV/core/user"
	logsvc "github.com/AntoVGreco/app-instituto-MCV/services/logger"
	inmemstore "github.com/AntoVGreco/app-instituto-MCV/storage/snapshot/inmem"
)

const (
	adminID   = "1234"
	adminPwd  = "1"
	teacherID = "87654321"
	studentID = "12345678"
	userPwd   = "abcdefgh"
)

type cliTest struct {
	name       string
	args       []string // without program name
	pwds       []string // answers to the password prompts, in order
	wantErr    error
	wantErrStr string
	wantOut    []string
}

func setup(t *testing.T) (*commandLine, *inmemstore.Store, *bytes.Buffer) {
	t.Helper()
	conf := new(core.Config)
	conf.Admin.Identity = adminID
	conf.Admin.Password = adminPwd
	conf.Admin.FirstName = "administrador"
	conf.Admin.LastName = "instituto"

	store := inmemstore.New()
	lgr := logsvc.NewDiscard()
	inst, err := institute.Open(context.Background(), conf, credential.SHA256{}, store, lgr)
	if err != nil {
		t.Fatalf("institute.Open() failed: %v", err)
	}
	out := new(bytes.Buffer)
	return &commandLine{conf: conf, log: lgr, inst: inst, out: out, errOut: new(bytes.Buffer)}, store, out
}

// activeUser creates a user whose password was already changed to userPwd.
func activeUser(t *testing.T, cli *commandLine, profile user.Profile, identity string) {
	t.Helper()
	nu := user.NewUser{Profile: profile, FirstName: "nombre", LastName: "apellido", Identity: identity}
	if _, err := cli.inst.CreateUser(nu); err != nil {
		t.Fatal(err)
	}
	if err := cli.inst.ChangePassword(identity, identity, userPwd, userPwd); err != nil {
		t.Fatal(err)
	}
}

func mockPasswords(pwds []string) {
	readPasswordFunc = func(int) ([]byte, error) {
		if len(pwds) == 0 {
			return nil, errors.New("no more passwords")
		}
		pwd := pwds[0]
		pwds = pwds[1:]
		return []byte(pwd), nil
	}
}

func runTests(t *testing.T, cli *commandLine, out *bytes.Buffer, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		args := append([]string{"instituto"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			mockPasswords(tt.pwds)

			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
			case tt.wantErrStr != "":
				if err == nil || !strings.Contains(err.Error(), tt.wantErrStr) {
					t.Fatalf("cli.run() error = %v, wantErrStr %s", err, tt.wantErrStr)
				}
			case err != nil:
				t.Fatalf("cli.run() unexpected error = %v", err)
			}
			for _, want := range tt.wantOut {
				if !strings.Contains(out.String(), want) {
					t.Errorf("output %q does not contain %q", out.String(), want)
				}
			}
		})
	}
}

func Test_commandLine_users(t *testing.T) {
	cli, store, out := setup(t)
	as := func(id string) []string { return []string{"--as", id} }

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErrStr: "unknown command"},
		{name: "no identity", args: []string{"user", "list"}, wantErrStr: "--as IDENTITY is required"},
		{name: "wrong password", args: append([]string{"user", "list"}, as(adminID)...), pwds: []string{"2"}, wantErr: user.ErrInvalidCredential},
		{name: "unknown user", args: append([]string{"login"}, as("00000000")...), pwds: []string{"x"}, wantErr: user.ErrNotFound},
		{
			name:    "add student",
			args:    append([]string{"user", "add", "--profile", "student", "--first", "ana", "--last", "GOMEZ", "--identity", studentID}, as(adminID)...),
			pwds:    []string{adminPwd},
			wantOut: []string{"Created student Gomez, Ana (12345678)"},
		},
		{
			name:    "add duplicate",
			args:    append([]string{"user", "add", "--profile", "teacher", "--first", "t", "--last", "t", "--identity", studentID}, as(adminID)...),
			pwds:    []string{adminPwd},
			wantErr: user.ErrDuplicateUser,
		},
		{
			name:    "add invalid",
			args:    append([]string{"user", "add", "--profile", "admin", "--first", "t", "--last", "t", "--identity", "12"}, as(adminID)...),
			pwds:    []string{adminPwd},
			wantErr: core.ErrValidation,
		},
		{name: "first login", args: append([]string{"login"}, as(studentID)...), pwds: []string{studentID}, wantOut: []string{"Welcome Ana Gomez", "First login"}},
		{name: "sentinel password blocks commands", args: append([]string{"courses", "mine"}, as(studentID)...), pwds: []string{studentID}, wantErr: errMustChangePassword},
		{
			name:    "passwd to the identity",
			args:    append([]string{"passwd"}, as(studentID)...),
			pwds:    []string{studentID, studentID, studentID},
			wantErr: user.ErrInvalidCredential,
		},
		{
			name:    "passwd mismatch",
			args:    append([]string{"passwd"}, as(studentID)...),
			pwds:    []string{studentID, userPwd, "abcdefgz"},
			wantErr: core.ErrValidation,
		},
		{
			name:    "passwd",
			args:    append([]string{"passwd"}, as(studentID)...),
			pwds:    []string{studentID, userPwd, userPwd},
			wantOut: []string{"Password changed."},
		},
		{name: "student login", args: append([]string{"login"}, as(studentID)...), pwds: []string{userPwd}, wantOut: []string{"Student: 0 enrolled, 0 approved"}},
		{name: "student is not admin", args: append([]string{"user", "list"}, as(studentID)...), pwds: []string{userPwd}, wantErr: errForbidden},
		{name: "list", args: append([]string{"user", "list"}, as(adminID)...), pwds: []string{adminPwd}, wantOut: []string{"Instituto", "Gomez", "Active"}},
		{name: "suspend admin", args: append([]string{"user", "suspend", adminID}, as(adminID)...), pwds: []string{adminPwd}, wantErr: user.ErrProtectedAccount},
		{name: "suspend", args: append([]string{"user", "suspend", studentID}, as(adminID)...), pwds: []string{adminPwd}, wantOut: []string{"12345678: suspended"}},
		{name: "suspended login", args: append([]string{"login"}, as(studentID)...), pwds: []string{userPwd}, wantErr: user.ErrSuspendedAccount},
		{name: "show", args: append([]string{"user", "show", studentID}, as(adminID)...), pwds: []string{adminPwd}, wantOut: []string{"Gomez, Ana (12345678) student, Suspended"}},
		{name: "reactivate", args: append([]string{"user", "reactivate", studentID}, as(adminID)...), pwds: []string{adminPwd}},
		{name: "reset password", args: append([]string{"user", "reset-password", studentID}, as(adminID)...), pwds: []string{adminPwd}},
		{name: "login after reset", args: append([]string{"login"}, as(studentID)...), pwds: []string{studentID}, wantOut: []string{"First login"}},
	}
	runTests(t, cli, out, tests)

	// every successful mutation was saved
	snap, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(snap.Users) != 2 || snap.Users[1].Suspended {
		t.Errorf("saved users = %+v, want admin + reactivated student", snap.Users)
	}
}

func Test_commandLine_courses(t *testing.T) {
	cli, _, out := setup(t)
	activeUser(t, cli, user.ProfileTeacher, teacherID)
	activeUser(t, cli, user.ProfileStudent, studentID)
	activeUser(t, cli, user.ProfileStudent, "23456789")
	admin := []string{"--as", adminID}
	teacher := []string{"--as", teacherID}
	student := []string{"--as", studentID}
	withAs := func(as []string, args ...string) []string { return append(args, as...) }

	tests := []cliTest{
		{name: "student cannot propose", args: withAs(student, "course", "propose", "--name", "algebra"), pwds: []string{userPwd}, wantErr: errForbidden},
		{name: "propose without name", args: withAs(teacher, "course", "propose"), pwds: []string{userPwd}, wantErr: core.ErrValidation},
		{name: "propose", args: withAs(teacher, "course", "propose", "--name", "algebra"), pwds: []string{userPwd}, wantOut: []string{`Proposed "Algebra"`}},
		{name: "propose duplicate", args: withAs(teacher, "course", "propose", "--name", "ALGEBRA"), pwds: []string{userPwd}, wantErr: course.ErrDuplicateCourse},
		{name: "propose advanced", args: withAs(teacher, "course", "propose", "--name", "análisis", "--prerequisites", "1"), pwds: []string{userPwd}},
		{name: "nothing eligible", args: withAs(student, "courses", "eligible"), pwds: []string{userPwd}, wantOut: []string{"NAME"}},
		{name: "teacher cannot set", args: withAs(teacher, "course", "set", "Algebra", "--capacity", "1"), pwds: []string{userPwd}, wantErr: errForbidden},
		{name: "set bad state", args: withAs(admin, "course", "set", "Algebra", "--state", "Closed", "--capacity", "1"), pwds: []string{adminPwd}, wantErr: core.ErrValidation},
		{name: "enable", args: withAs(admin, "course", "set", "algebra", "--state", "enabled", "--capacity", "1"), pwds: []string{adminPwd}, wantOut: []string{`"Algebra" is Enabled, capacity 1, 0 enrolled`}},
		{name: "enable advanced", args: withAs(admin, "course", "set", "Análisis", "--capacity", "5"), pwds: []string{adminPwd}},
		{name: "eligible", args: withAs(student, "courses", "eligible"), pwds: []string{userPwd}, wantOut: []string{"Algebra"}},
		{name: "enroll not eligible", args: withAs(student, "enroll", "Algebra", "Análisis"), pwds: []string{userPwd}, wantErrStr: "not eligible"},
		{name: "enroll", args: withAs(student, "enroll", "Algebra"), pwds: []string{userPwd}, wantOut: []string{`Enrolled in "Algebra"`}},
		{name: "enroll full", args: withAs([]string{"--as", "23456789"}, "enroll", "Algebra"), pwds: []string{userPwd}, wantErr: course.ErrEnrollmentClosed},
		{name: "closed on capacity", args: withAs(admin, "course", "list", "--state", "closed"), pwds: []string{adminPwd}, wantOut: []string{"Algebra"}},
		{name: "finish ungraded", args: withAs(teacher, "course", "finish", "Algebra"), pwds: []string{userPwd}, wantErr: course.ErrGradingIncomplete},
		{name: "grade bad result", args: withAs(teacher, "course", "grade", "Algebra", studentID, "--result", "maybe"), pwds: []string{userPwd}, wantErrStr: "--result"},
		{name: "grade", args: withAs(teacher, "course", "grade", "Algebra", studentID, "--result", "approved"), pwds: []string{userPwd}, wantOut: []string{"12345678: Approved"}},
		{name: "roster", args: withAs(teacher, "course", "roster", "Algebra"), pwds: []string{userPwd}, wantOut: []string{"Apellido, Nombre", "Approved", "ready to finish: true"}},
		{name: "student roster", args: withAs(student, "course", "roster", "Algebra"), pwds: []string{userPwd}, wantErr: errForbidden},
		{name: "my grade", args: withAs(student, "courses", "mine"), pwds: []string{userPwd}, wantOut: []string{"Algebra", "Approved"}},
		{name: "finish", args: withAs(teacher, "course", "finish", "Algebra"), pwds: []string{userPwd}, wantOut: []string{`"Algebra" is Finished`}},
		{name: "approved", args: withAs(student, "courses", "mine"), pwds: []string{userPwd}, wantOut: []string{"approved"}},
		{name: "prerequisites met", args: withAs(student, "courses", "eligible"), pwds: []string{userPwd}, wantOut: []string{"Análisis"}},
		{name: "reset", args: withAs(teacher, "course", "reset", "Algebra"), pwds: []string{userPwd}, wantOut: []string{`"Algebra" is Enabled`}},
		{name: "mine", args: withAs(teacher, "course", "mine", "--state", "enabled"), pwds: []string{userPwd}, wantOut: []string{"Algebra", "Análisis"}},
		{name: "cancel", args: withAs(admin, "course", "cancel", "Análisis"), pwds: []string{adminPwd}, wantOut: []string{`"Análisis" is Cancelled`}},
		{name: "close cancelled", args: withAs(teacher, "course", "close", "Análisis"), pwds: []string{userPwd}, wantErr: course.ErrInvalidTransition},
	}
	runTests(t, cli, out, tests)

	crs, err := cli.inst.Course("Algebra")
	if err != nil {
		t.Fatal(err)
	}
	if len(crs.History) != 1 || crs.Active.Len() != 0 {
		t.Errorf("Algebra history %d, roster %d; want 1 archived offering and an empty one", len(crs.History), crs.Active.Len())
	}
}

func Test_commandLine_export(t *testing.T) {
	cli, _, out := setup(t)
	activeUser(t, cli, user.ProfileStudent, studentID)
	as := []string{"--as", adminID}

	mockPasswords([]string{adminPwd})
	if err := cli.run(append([]string{"instituto", "export"}, as...)); err != nil {
		t.Fatalf("export yaml error = %v", err)
	}
	var fromYAML institute.Snapshot
	if err := yaml.Unmarshal(out.Bytes(), &fromYAML); err != nil {
		t.Fatalf("export is not yaml: %v", err)
	}
	if fromYAML.Version != institute.SnapshotVersion || len(fromYAML.Users) != 2 {
		t.Errorf("yaml export = %+v", fromYAML)
	}
	if strings.Contains(out.String(), "password_hash") {
		t.Error("exports must not contain password digests")
	}

	path := filepath.Join(t.TempDir(), "export.json")
	out.Reset()
	mockPasswords([]string{adminPwd})
	if err := cli.run(append([]string{"instituto", "export", "--format", "json", "-o", path}, as...)); err != nil {
		t.Fatalf("export json error = %v", err)
	}
	if !strings.Contains(out.String(), "Exported to") {
		t.Errorf("output = %q", out.String())
	}

	mockPasswords([]string{adminPwd})
	out.Reset()
	if err := cli.run(append([]string{"instituto", "export", "--format", "json"}, as...)); err != nil {
		t.Fatalf("export json error = %v", err)
	}
	var fromJSON institute.Snapshot
	if err := json.Unmarshal(out.Bytes(), &fromJSON); err != nil {
		t.Fatalf("export is not json: %v", err)
	}
	if fromJSON.AdminIdentity != adminID {
		t.Errorf("AdminIdentity = %q, want %q", fromJSON.AdminIdentity, adminID)
	}

	mockPasswords([]string{adminPwd})
	if err := cli.run(append([]string{"instituto", "export", "--format", "xml"}, as...)); err == nil {
		t.Error("export xml should fail")
	}
}

func Test_commandLine_commitFailure(t *testing.T) {
	cli, store, out := setup(t)
	store.FailSave = errors.New("disk full")

	mockPasswords([]string{adminPwd})
	err := cli.run([]string{"instituto", "user", "add", "--profile", "student", "--first", "a", "--last", "b", "--identity", studentID, "--as", adminID})
	if !errors.Is(err, institute.ErrPersistence) {
		t.Fatalf("cli.run() error = %v, want %v", err, institute.ErrPersistence)
	}
	if out.Len() != 0 {
		t.Errorf("output = %q, nothing should be reported as done", out.String())
	}
	if _, err := cli.inst.FindByIdentity(studentID); err != nil {
		t.Errorf("the in-memory mutation is kept: %v", err)
	}
}

func Test_commandLine_passwdUsesLoginPassword(t *testing.T) {
	cli, _, out := setup(t)
	errOut := new(bytes.Buffer)
	cli.errOut = errOut
	activeUser(t, cli, user.ProfileStudent, studentID)

	// login, new, confirm: a fourth prompt would find the queue empty
	mockPasswords([]string{userPwd, "qwertyui", "qwertyui"})
	if err := cli.run([]string{"instituto", "passwd", "--as", studentID}); err != nil {
		t.Fatalf("cli.run() error = %v", err)
	}
	if !strings.Contains(out.String(), "Password changed.") {
		t.Errorf("output = %q", out.String())
	}
	if prompts := strings.Count(errOut.String(), "assword: "); prompts != 3 {
		t.Errorf("prompted %d times, want 3: %q", prompts, errOut.String())
	}
	if _, err := cli.inst.Authenticate(studentID, "qwertyui"); err != nil {
		t.Errorf("Authenticate() with the new password error = %v", err)
	}
}
