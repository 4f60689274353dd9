package institute

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pkg/errors"

	"github.com/AntoVGreco/app-instituto-MCV/core"
	"github.com/AntoVGreco/app-instituto-MCV/core/course"
	"github.com/AntoVGreco/app-instituto-MCV/core/credential"
	"github.com/AntoVGreco/app-instituto-MCV/core/user"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

// memStore goes through the codec like a real store.
type memStore struct {
	data    []byte
	saveErr error
}

func (s *memStore) Load(context.Context) (*Snapshot, error) {
	if s.data == nil {
		return nil, ErrSnapshotNotFound
	}
	return DecodeSnapshot(s.data)
}

func (s *memStore) Save(_ context.Context, snap *Snapshot) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	data, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	s.data = data
	return nil
}

func testConfig() *core.Config {
	conf := new(core.Config)
	conf.Admin.Identity = "1234"
	conf.Admin.Password = "1"
	conf.Admin.FirstName = "administrador"
	conf.Admin.LastName = "instituto"
	return conf
}

func openTest(t *testing.T, store Store) *Institute {
	t.Helper()
	inst, err := Open(context.Background(), testConfig(), credential.SHA256{}, store, nopLogger{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return inst
}

// populate runs through a full course life: proposal, enrollment, grading, finish and reset.
func populate(t *testing.T, inst *Institute) {
	t.Helper()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	_, err := inst.CreateStudent("ana", "gomez", "12345678")
	must(err)
	_, err = inst.CreateStudent("bea", "lopez", "23456789")
	must(err)
	_, err = inst.CreateTeacher("tomas", "perez", "87654321")
	must(err)
	_, err = inst.ProposeCourse("87654321", course.NewCourse{Name: "algebra", Description: "lineal"})
	must(err)
	_, err = inst.ProposeCourse("87654321", course.NewCourse{Name: "física", Prerequisites: 1})
	must(err)
	_, err = inst.AdministerCourse("Algebra", course.Settings{State: course.StateEnabled, Capacity: 2})
	must(err)
	_, err = inst.EnrollAll("12345678", "Algebra")
	must(err)
	_, err = inst.Enroll("23456789", "Algebra")
	must(err)
	must(inst.AssignGrade("87654321", "Algebra", "12345678", true))
	must(inst.AssignGrade("87654321", "Algebra", "23456789", false))
	_, err = inst.FinishCourse("87654321", "Algebra")
	must(err)
	_, err = inst.ResetCourse("87654321", "Algebra")
	must(err)
	_, err = inst.Enroll("23456789", "Algebra")
	must(err)
	must(inst.Suspend("23456789"))
	must(inst.ChangePassword("12345678", "12345678", "abcdefgh", "abcdefgh"))
}

func TestOpen_bootstrap(t *testing.T) {
	inst := openTest(t, &memStore{})

	accs := inst.Users()
	if len(accs) != 1 {
		t.Fatalf("Users() = %d accounts, want the administrator only", len(accs))
	}
	if _, ok := accs[0].(*user.Administrator); !ok || inst.AdminIdentity() != "1234" {
		t.Errorf("Users()[0] = %T %s, want the administrator", accs[0], accs[0].Base().Identity)
	}
	sess, err := inst.Authenticate("1234", "1")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if sess.MustChangePassword {
		t.Error("the administrator password is not the sentinel")
	}
	if got := inst.Courses(); len(got) != 0 {
		t.Errorf("Courses() = %v, want none", got)
	}
}

func TestOpen_roundTrip(t *testing.T) {
	store := &memStore{}
	inst := openTest(t, store)
	populate(t, inst)
	if err := inst.Commit(context.Background()); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	reopened := openTest(t, store)
	ignoreSavedAt := cmpopts.IgnoreFields(Snapshot{}, "SavedAt")
	if diff := cmp.Diff(inst.Snapshot(), reopened.Snapshot(), ignoreSavedAt); diff != "" {
		t.Errorf("reopened institute mismatch (-want +got):\n%s", diff)
	}

	// the restored graph still works
	if _, err := reopened.Authenticate("12345678", "abcdefgh"); err != nil {
		t.Errorf("Authenticate() error = %v", err)
	}
	if _, err := reopened.Authenticate("23456789", "23456789"); !errors.Is(err, user.ErrSuspendedAccount) {
		t.Errorf("Authenticate() error = %v, want %v", err, user.ErrSuspendedAccount)
	}
	algebra, err := reopened.Course("algebra")
	if err != nil {
		t.Fatal(err)
	}
	if len(algebra.History) != 1 || algebra.Active.Len() != 1 || algebra.State != course.StateEnabled {
		t.Errorf("Algebra = %s, history %d, roster %d", algebra.State, len(algebra.History), algebra.Active.Len())
	}
	approved, _ := reopened.ApprovedCourses("12345678")
	if len(approved) != 1 || approved[0].ID != algebra.ID {
		t.Errorf("ApprovedCourses() = %v, want [Algebra]", approved)
	}
	eligible, _ := reopened.EligibleCoursesFor("12345678")
	if len(eligible) != 0 {
		t.Errorf("EligibleCoursesFor() = %v, Física is not enabled yet", eligible)
	}
}

func TestOpen_corrupt(t *testing.T) {
	valid := func(t *testing.T) *Snapshot {
		inst := openTest(t, &memStore{})
		populate(t, inst)
		return inst.Snapshot()
	}

	tests := []struct {
		name   string
		mangle func(*Snapshot)
		raw    string
	}{
		{name: "garbage", raw: "{{{"},
		{name: "future version", mangle: func(s *Snapshot) { s.Version = SnapshotVersion + 1 }},
		{name: "missing admin", mangle: func(s *Snapshot) { s.AdminIdentity = "9999" }},
		{name: "unknown profile", mangle: func(s *Snapshot) { s.Users[1].Profile = "janitor" }},
		{name: "duplicate user", mangle: func(s *Snapshot) { s.Users = append(s.Users, s.Users[1]) }},
		{name: "unknown teacher", mangle: func(s *Snapshot) { s.Courses[0].Teacher = "00000000" }},
		{name: "unknown state", mangle: func(s *Snapshot) { s.Courses[0].State = "Open" }},
		{name: "unknown roster student", mangle: func(s *Snapshot) { s.Courses[0].Active.Roster[0] = "00000000" }},
		{name: "unknown history student", mangle: func(s *Snapshot) { s.Courses[0].History[0].Roster[0] = "00000000" }},
		{name: "unknown enrolled course", mangle: func(s *Snapshot) { s.Users[1].Enrolled = []string{"nope"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memStore{data: []byte(tt.raw)}
			if tt.mangle != nil {
				snap := valid(t)
				tt.mangle(snap)
				data, err := EncodeSnapshot(snap)
				if err != nil {
					t.Fatal(err)
				}
				store.data = data
			}

			_, err := Open(context.Background(), testConfig(), credential.SHA256{}, store, nopLogger{})
			var perr *PersistenceError
			if !errors.As(err, &perr) || perr.Op != "load" {
				t.Fatalf("Open() error = %v, want a load *PersistenceError", err)
			}
			if !errors.Is(err, ErrPersistence) || !errors.Is(err, ErrCorruptSnapshot) {
				t.Errorf("Open() error = %v, want %v and %v", err, ErrPersistence, ErrCorruptSnapshot)
			}
		})
	}
}

func TestOpen_loadFailure(t *testing.T) {
	store := &failingLoadStore{err: errors.New("permission denied")}
	_, err := Open(context.Background(), testConfig(), credential.SHA256{}, store, nopLogger{})
	if !errors.Is(err, ErrPersistence) || errors.Is(err, ErrCorruptSnapshot) {
		t.Errorf("Open() error = %v, want a plain persistence error", err)
	}
}

type failingLoadStore struct{ err error }

func (s *failingLoadStore) Load(context.Context) (*Snapshot, error) { return nil, s.err }
func (s *failingLoadStore) Save(context.Context, *Snapshot) error   { return nil }

func TestCommit_failureKeepsMemory(t *testing.T) {
	store := &memStore{}
	inst := openTest(t, store)
	if err := inst.Commit(context.Background()); err != nil {
		t.Fatal(err)
	}
	saved := string(store.data)

	store.saveErr = errors.New("disk full")
	if _, err := inst.CreateStudent("ana", "gomez", "12345678"); err != nil {
		t.Fatal(err)
	}
	err := inst.Commit(context.Background())
	var perr *PersistenceError
	if !errors.As(err, &perr) || perr.Op != "save" || !errors.Is(err, ErrPersistence) {
		t.Fatalf("Commit() error = %v, want a save *PersistenceError", err)
	}
	if _, err := inst.FindByIdentity("12345678"); err != nil {
		t.Errorf("the mutation must survive a failed save: %v", err)
	}
	if string(store.data) != saved {
		t.Error("a failed save must leave the previous snapshot untouched")
	}
}

// gatedStore blocks its first Save until release is closed.
type gatedStore struct {
	mu      sync.Mutex
	data    []byte
	saves   int
	entered chan struct{}
	release chan struct{}
}

func (s *gatedStore) Load(context.Context) (*Snapshot, error) { return nil, ErrSnapshotNotFound }

func (s *gatedStore) Save(_ context.Context, snap *Snapshot) error {
	s.mu.Lock()
	s.saves++
	first := s.saves == 1
	s.mu.Unlock()
	if first {
		close(s.entered)
		<-s.release
	}
	data, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

func TestCommit_savesInOrder(t *testing.T) {
	store := &gatedStore{entered: make(chan struct{}), release: make(chan struct{})}
	inst := openTest(t, store)

	errs := make(chan error, 2)
	go func() { errs <- inst.Commit(context.Background()) }()
	<-store.entered // first commit holds the admin-only graph

	if _, err := inst.CreateStudent("ana", "gomez", "12345678"); err != nil {
		t.Fatal(err)
	}
	go func() { errs <- inst.Commit(context.Background()) }()
	time.Sleep(20 * time.Millisecond)
	close(store.release)

	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	snap, err := DecodeSnapshot(store.data)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Users) != 2 {
		t.Errorf("saved users = %d, want 2: the later commit must not be overwritten", len(snap.Users))
	}
}

func TestInstitute_returnsCopies(t *testing.T) {
	inst := openTest(t, &memStore{})
	populate(t, inst)

	crs, _ := inst.Course("Algebra")
	crs.Active.Roster = append(crs.Active.Roster, "intruder")
	crs.State = course.StateCancelled
	again, _ := inst.Course("Algebra")
	if again.State != course.StateEnabled || again.Active.Has("intruder") {
		t.Error("Course() must return a copy")
	}

	acc, _ := inst.FindByIdentity("12345678")
	acc.(*user.Student).Enroll("nope")
	acc, _ = inst.FindByIdentity("12345678")
	if acc.(*user.Student).IsEnrolled("nope") {
		t.Error("FindByIdentity() must return a copy")
	}
}

func TestInstitute_concurrentEnroll(t *testing.T) {
	inst := openTest(t, &memStore{})
	if _, err := inst.CreateTeacher("tomas", "perez", "87654321"); err != nil {
		t.Fatal(err)
	}
	if _, err := inst.ProposeCourse("87654321", course.NewCourse{Name: "Algebra"}); err != nil {
		t.Fatal(err)
	}
	const capacity, students = 5, 20
	if _, err := inst.AdministerCourse("Algebra", course.Settings{State: course.StateEnabled, Capacity: capacity}); err != nil {
		t.Fatal(err)
	}
	ids := make([]string, 0, students)
	for i := 0; i < students; i++ {
		id := fmt.Sprintf("%08d", 10000000+i)
		ids = append(ids, id)
		if _, err := inst.CreateStudent("s", "n", id); err != nil {
			t.Fatal(err)
		}
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := inst.Enroll(id, "Algebra"); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			} else if !errors.Is(err, course.ErrEnrollmentClosed) {
				t.Errorf("Enroll() error = %v, want %v", err, course.ErrEnrollmentClosed)
			}
		}(id)
	}
	wg.Wait()

	crs, _ := inst.Course("Algebra")
	if ok != capacity || crs.Active.Len() != capacity || crs.State != course.StateClosed {
		t.Errorf("%d enrolled, roster %d, state %s; want %d, %d, Closed", ok, crs.Active.Len(), crs.State, capacity, capacity)
	}
}

func TestInstitute_CreateUser_invalidProfile(t *testing.T) {
	inst := openTest(t, &memStore{})
	if _, err := inst.CreateUser(user.NewUser{Profile: user.ProfileAdmin, Identity: "12345678"}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("CreateUser(admin) error = %v, want %v", err, core.ErrValidation)
	}
}
