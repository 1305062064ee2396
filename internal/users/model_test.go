package users

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/multiseat/userlist/internal/logging"
	"github.com/multiseat/userlist/internal/remote"
)

// ---- fakes ----

// fakeGateway answers remote calls with configured results. When gate is
// non-nil every call blocks on it before returning, which lets a test hold a
// call in flight while it applies notifications.
type fakeGateway struct {
	mu    sync.Mutex
	gate  chan struct{}
	uid   uint32
	errs  map[string]error
	calls []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{uid: 100000, errs: map[string]error{}}
}

func (g *fakeGateway) hold() {
	g.mu.Lock()
	g.gate = make(chan struct{})
	g.mu.Unlock()
}

func (g *fakeGateway) release() {
	g.mu.Lock()
	gate := g.gate
	g.gate = nil
	g.mu.Unlock()
	close(gate)
}

func (g *fakeGateway) failWith(method string, err error) {
	g.mu.Lock()
	g.errs[method] = err
	g.mu.Unlock()
}

func (g *fakeGateway) callLog() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

func (g *fakeGateway) answer(method string) error {
	g.mu.Lock()
	g.calls = append(g.calls, method)
	gate := g.gate
	err := g.errs[method]
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return err
}

func (g *fakeGateway) AddUser(ctx context.Context, name string) (uint32, error) {
	if err := g.answer("AddUser"); err != nil {
		return 0, err
	}
	return g.uid, nil
}

func (g *fakeGateway) ModifyUser(ctx context.Context, uid uint32, name string) error {
	return g.answer("ModifyUser")
}

func (g *fakeGateway) RemoveUser(ctx context.Context, uid uint32) error {
	return g.answer("RemoveUser")
}

func (g *fakeGateway) SetCurrentUser(ctx context.Context, uid uint32) error {
	return g.answer("SetCurrentUser")
}

func (g *fakeGateway) AddToGroups(ctx context.Context, uid uint32, groups []string) error {
	return g.answer("AddToGroups")
}

func (g *fakeGateway) RemoveFromGroups(ctx context.Context, uid uint32, groups []string) error {
	return g.answer("RemoveFromGroups")
}

type fakeDirectory struct {
	accounts []Account
}

func (d *fakeDirectory) List() ([]Account, error) {
	return append([]Account(nil), d.accounts...), nil
}

func (d *fakeDirectory) ByUID(uid uint32) (Account, bool) {
	for _, a := range d.accounts {
		if a.UID == uid {
			return a, true
		}
	}
	return Account{}, false
}

type fakeSession struct {
	uid uint32
	ok  bool
}

func (s *fakeSession) CurrentUID() (uint32, bool) { return s.uid, s.ok }

type fakeGroups struct {
	members map[string][]string // group -> usernames
}

func (g *fakeGroups) HasGroup(username, group string) bool {
	for _, u := range g.members[group] {
		if u == username {
			return true
		}
	}
	return false
}

// recorder captures observed events as compact strings so tests can assert
// on ordering and bracketing.
type recorder struct {
	mu     sync.Mutex
	events []string
	fails  []Failure
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) log() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) failures() []Failure {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Failure(nil), r.fails...)
}

func (r *recorder) RowsAboutToBeInserted(row, count int) {
	r.add(fmt.Sprintf("+?%d:%d", row, count))
}
func (r *recorder) RowsInserted(row, count int)         { r.add(fmt.Sprintf("+%d:%d", row, count)) }
func (r *recorder) RowsAboutToBeRemoved(row, count int) { r.add(fmt.Sprintf("-?%d:%d", row, count)) }
func (r *recorder) RowsRemoved(row, count int)          { r.add(fmt.Sprintf("-%d:%d", row, count)) }
func (r *recorder) RowChanged(row int, attrs Attr)      { r.add(fmt.Sprintf("~%d", row)) }
func (r *recorder) PlaceholderChanged(present bool)     { r.add(fmt.Sprintf("ph=%t", present)) }
func (r *recorder) GroupsChanged(row int)               { r.add(fmt.Sprintf("grp%d", row)) }
func (r *recorder) OperationFailed(f Failure) {
	r.mu.Lock()
	r.fails = append(r.fails, f)
	r.mu.Unlock()
	r.add("fail:" + f.Op.String())
}

// ---- harness ----

type fixture struct {
	m   *Model
	gw  *fakeGateway
	dir *fakeDirectory
	ses *fakeSession
	rec *recorder
}

func newFixture(t *testing.T, accounts []Account, current uint32) *fixture {
	t.Helper()

	f := &fixture{
		gw:  newFakeGateway(),
		dir: &fakeDirectory{accounts: accounts},
		ses: &fakeSession{uid: current, ok: current != 0},
		rec: &recorder{},
	}
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	m, err := New(Config{CallTimeout: time.Second}, log, f.gw, f.dir, f.ses, &fakeGroups{})
	require.NoError(t, err)
	m.Subscribe(f.rec)
	f.m = m
	t.Cleanup(func() { _ = m.Close() })
	return f
}

// checkModel asserts the structural invariants on the live model.
func checkModel(t *testing.T, m *Model) {
	t.Helper()
	m.mu.RLock()
	defer m.mu.RUnlock()
	checkCollection(t, m.c)
}

func seedAccounts() []Account {
	return []Account{
		{UID: 1000, Username: "ann", Name: "Ann", Admin: true},
		{UID: 1001, Username: "ben", Name: "Ben"},
	}
}

// ---- seeding and reads ----

func TestNewSeedsFromDirectory(t *testing.T) {
	f := newFixture(t, seedAccounts(), 1001)

	us := f.m.Users()
	require.Len(t, us, 2)
	assert.Equal(t, uint32(1000), us[0].UID)
	assert.Equal(t, KindAdmin, us[0].Kind)
	assert.False(t, us[0].Current)
	assert.Equal(t, uint32(1001), us[1].UID)
	assert.True(t, us[1].Current)
	checkModel(t, f.m)
}

func TestRowOutOfRange(t *testing.T) {
	f := newFixture(t, seedAccounts(), 0)

	_, ok := f.m.Row(-1)
	assert.False(t, ok)
	_, ok = f.m.Row(2)
	assert.False(t, ok)
}

func TestHasGroup(t *testing.T) {
	f := newFixture(t, seedAccounts(), 0)
	f.m.groups = &fakeGroups{members: map[string][]string{"video": {"ann"}}}

	assert.True(t, f.m.HasGroup(0, "video"))
	assert.False(t, f.m.HasGroup(1, "video"))
	assert.False(t, f.m.HasGroup(5, "video"))
}

// ---- placeholder ----

func TestSetPlaceholder(t *testing.T) {
	f := newFixture(t, seedAccounts(), 0)

	f.m.SetPlaceholder(true)
	assert.True(t, f.m.Placeholder())
	assert.Equal(t, 3, f.m.RowCount())
	checkModel(t, f.m)

	// Idempotent.
	f.m.SetPlaceholder(true)
	assert.Equal(t, 3, f.m.RowCount())

	f.m.SetPlaceholder(false)
	assert.False(t, f.m.Placeholder())
	assert.Equal(t, 2, f.m.RowCount())
	checkModel(t, f.m)

	assert.Equal(t, []string{
		"+?2:1", "+2:1", "ph=true",
		"-?2:1", "-2:1", "ph=false",
	}, f.rec.log())
}

func TestPlaceholderNameIsLocal(t *testing.T) {
	f := newFixture(t, nil, 0)
	f.m.SetPlaceholder(true)

	f.m.SetName(0, "New User")
	f.m.Wait()

	assert.Empty(t, f.gw.callLog(), "placeholder rename must not call the service")
	u, _ := f.m.Row(0)
	assert.Equal(t, "New User", u.Name)
	assert.True(t, u.Placeholder)
}

// ---- create ----

func TestCreateCommitsPlaceholder(t *testing.T) {
	f := newFixture(t, seedAccounts(), 0)
	f.gw.uid = 1002

	f.m.SetPlaceholder(true)
	f.m.SetName(2, "Cid")
	f.m.CreateUser()
	f.m.Wait()

	assert.False(t, f.m.Placeholder())
	require.Equal(t, 3, f.m.RowCount())
	u, _ := f.m.Row(2)
	assert.Equal(t, uint32(1002), u.UID)
	assert.Equal(t, "Cid", u.Name)
	assert.False(t, u.Placeholder)
	checkModel(t, f.m)
	assert.Empty(t, f.rec.failures())
}

func TestCreateWithoutNameIgnored(t *testing.T) {
	f := newFixture(t, nil, 0)
	f.m.SetPlaceholder(true)

	f.m.CreateUser()
	f.m.Wait()

	assert.Empty(t, f.gw.callLog())
	assert.True(t, f.m.Placeholder())
}

func TestCreateWithoutPlaceholderIgnored(t *testing.T) {
	f := newFixture(t, seedAccounts(), 0)

	f.m.CreateUser()
	f.m.Wait()

	assert.Empty(t, f.gw.callLog())
}

func TestCreateFailureKeepsPlaceholder(t *testing.T) {
	f := newFixture(t, nil, 0)
	f.gw.failWith("AddUser", &remote.Error{Code: remote.Busy})

	f.m.SetPlaceholder(true)
	f.m.SetName(0, "Cid")
	f.m.CreateUser()
	f.m.Wait()

	assert.True(t, f.m.Placeholder(), "failed create keeps the slot editable")
	u, _ := f.m.Row(0)
	assert.Equal(t, "Cid", u.Name, "entered name survives the failure")

	fails := f.rec.failures()
	require.Len(t, fails, 1)
	assert.Equal(t, OpCreateUser, fails[0].Op)
	assert.Equal(t, -1, fails[0].Row)
	assert.Equal(t, remote.Busy, fails[0].Code)
}

func TestCreateRacesWithAddedNotification(t *testing.T) {
	f := newFixture(t, nil, 0)
	f.gw.uid = 1002
	f.gw.hold()

	f.m.SetPlaceholder(true)
	f.m.SetName(0, "Cid")
	f.m.CreateUser()

	// The service broadcasts before the reply arrives.
	f.m.Apply(remote.UserAdded{User: remote.Entry{UID: 1002, Username: "cid", Name: "Cid"}})
	assert.Equal(t, 2, f.m.RowCount(), "committed row inserted before the placeholder")

	f.gw.release()
	f.m.Wait()

	// Exactly one committed row for the uid; the placeholder is retired.
	require.Equal(t, 1, f.m.RowCount())
	u, _ := f.m.Row(0)
	assert.Equal(t, uint32(1002), u.UID)
	assert.False(t, f.m.Placeholder())
	checkModel(t, f.m)
}

func TestCreateAfterPlaceholderDismissed(t *testing.T) {
	f := newFixture(t, seedAccounts(), 0)
	f.gw.uid = 1002
	f.gw.hold()

	f.m.SetPlaceholder(true)
	f.m.SetName(2, "Cid")
	f.m.CreateUser()
	f.m.SetPlaceholder(false)

	f.gw.release()
	f.m.Wait()

	// The account exists remotely, so the reply still lands as a row.
	require.Equal(t, 3, f.m.RowCount())
	u, _ := f.m.Row(2)
	assert.Equal(t, uint32(1002), u.UID)
	assert.False(t, u.Placeholder)
	checkModel(t, f.m)
}

// ---- rename ----

func TestRenameOptimisticThenConfirmed(t *testing.T) {
	f := newFixture(t, seedAccounts(), 0)
	f.gw.hold()

	f.m.SetName(1, "Benjamin")

	// Optimistic: visible before the service answers.
	u, _ := f.m.Row(1)
	assert.Equal(t, "Benjamin", u.Name)

	f.gw.release()
	f.m.Wait()

	u, _ = f.m.Row(1)
	assert.Equal(t, "Benjamin", u.Name)
	assert.Equal(t, []string{"ModifyUser"}, f.gw.callLog())
	assert.Empty(t, f.rec.failures())
}

func TestRenameFailureRollsBack(t *testing.T) {
	f := newFixture(t, seedAccounts(), 0)
	f.gw.failWith("ModifyUser", &remote.Error{Code: remote.UserModifyFailed})

	f.m.SetName(1, "Benjamin")
	f.m.Wait()

	u, _ := f.m.Row(1)
	assert.Equal(t, "Ben", u.Name, "reverted to the canonical name")

	fails := f.rec.failures()
	require.Len(t, fails, 1)
	assert.Equal(t, OpRenameUser, fails[0].Op)
	assert.Equal(t, 1, fails[0].Row)
	assert.Equal(t, uint32(1001), fails[0].UID)
	assert.Equal(t, remote.UserModifyFailed, fails[0].Code)
}

func TestRenameConfirmationOverwritesConcurrentNotification(t *testing.T) {
	f := newFixture(t, seedAccounts(), 0)
	f.gw.hold()

	f.m.SetName(1, "Benjamin")
	// Another client renames the same account while our call is in flight.
	f.m.Apply(remote.UserModified{UID: 1001, Name: "Benedict"})
	u, _ := f.m.Row(1)
	assert.Equal(t, "Benedict", u.Name)

	f.gw.release()
	f.m.Wait()

	// Our confirmation arrived last, so our value stands.
	u, _ = f.m.Row(1)
	assert.Equal(t, "Benjamin", u.Name)
}

func TestRenameFailureAfterConcurrentNotificationRevertsToNotified(t *testing.T) {
	f := newFixture(t, seedAccounts(), 0)
	f.gw.hold()
	f.gw.failWith("ModifyUser", &remote.Error{Code: remote.Busy})

	f.m.SetName(1, "Benjamin")
	f.m.Apply(remote.UserModified{UID: 1001, Name: "Benedict"})

	f.gw.release()
	f.m.Wait()

	// The notification reset the canonical name, so that is the rollback target.
	u, _ := f.m.Row(1)
	assert.Equal(t, "Benedict", u.Name)
}

func TestRenameTargetRemovedWhileInFlight(t *testing.T) {
	f := newFixture(t, seedAccounts(), 0)
	f.gw.hold()

	f.m.SetName(1, "Benjamin")
	f.m.Apply(remote.UserRemoved{UID: 1001})

	f.gw.release()
	f.m.Wait()

	// Completion finds no row for the uid and is dropped quietly.
	assert.Equal(t, 1, f.m.RowCount())
	assert.Empty(t, f.rec.failures())
	checkModel(t, f.m)
}

func TestRenameSameNameIgnored(t *testing.T) {
	f := newFixture(t, seedAccounts(), 0)

	f.m.SetName(1, "Ben")
	f.m.SetName(1, "")
	f.m.Wait()

	assert.Empty(t, f.gw.callLog())
}

// ---- removal ----

func TestRemoveWaitsForNotification(t *testing.T) {
	f := newFixture(t, seedAccounts(), 0)

	f.m.RemoveUser(0)
	f.m.Wait()

	// No local removal until the service confirms.
	assert.Equal(t, 2, f.m.RowCount())
	assert.Equal(t, []string{"RemoveUser"}, f.gw.callLog())

	f.m.Apply(remote.UserRemoved{UID: 1000})
	assert.Equal(t, 1, f.m.RowCount())
	u, _ := f.m.Row(0)
	assert.Equal(t, uint32(1001), u.UID)
	checkModel(t, f.m)
}

func TestRemoveFailureReportsRow(t *testing.T) {
	f := newFixture(t, seedAccounts(), 0)
	f.gw.failWith("RemoveUser", &remote.Error{Code: remote.UserRemoveFailed})

	f.m.RemoveUser(1)
	f.m.Wait()

	assert.Equal(t, 2, f.m.RowCount())
	fails := f.rec.failures()
	require.Len(t, fails, 1)
	assert.Equal(t, OpRemoveUser, fails[0].Op)
	assert.Equal(t, remote.UserRemoveFailed, fails[0].Code)
}

func TestRemoveFailureAfterRowShifted(t *testing.T) {
	f := newFixture(t, seedAccounts(), 0)
	f.gw.hold()
	f.gw.failWith("RemoveUser", &remote.Error{Code: remote.Busy})

	f.m.RemoveUser(1)
	// The row above vanishes while the call is in flight.
	f.m.Apply(remote.UserRemoved{UID: 1000})

	f.gw.release()
	f.m.Wait()

	fails := f.rec.failures()
	require.Len(t, fails, 1)
	assert.Equal(t, 0, fails[0].Row, "failure names the row's position at delivery time")
	assert.Equal(t, uint32(1001), fails[0].UID)
}

func TestRemovePlaceholderRowIgnored(t *testing.T) {
	f := newFixture(t, seedAccounts(), 0)
	f.m.SetPlaceholder(true)

	f.m.RemoveUser(2)
	f.m.Wait()

	assert.Empty(t, f.gw.callLog())
	assert.True(t, f.m.Placeholder())
}

// ---- current user ----

func TestCurrentUserChangedMovesFlag(t *testing.T) {
	f := newFixture(t, seedAccounts(), 1000)

	f.m.Apply(remote.CurrentUserChanged{UID: 1001})

	u0, _ := f.m.Row(0)
	u1, _ := f.m.Row(1)
	assert.False(t, u0.Current)
	assert.True(t, u1.Current)
}

func TestCurrentUserChangedIdempotent(t *testing.T) {
	f := newFixture(t, seedAccounts(), 1000)

	f.m.Apply(remote.CurrentUserChanged{UID: 1001})
	before := f.rec.log()
	f.m.Apply(remote.CurrentUserChanged{UID: 1001})

	assert.Equal(t, before, f.rec.log(), "repeated notification changes nothing")
}

func TestSetCurrentUserFlagsOnlyOnNotification(t *testing.T) {
	f := newFixture(t, seedAccounts(), 1000)

	f.m.SetCurrentUser(1)
	f.m.Wait()

	u1, _ := f.m.Row(1)
	assert.False(t, u1.Current, "flag moves only on the confirming notification")
	assert.Equal(t, []string{"SetCurrentUser"}, f.gw.callLog())
}

func TestCurrentUserChangeFailed(t *testing.T) {
	f := newFixture(t, seedAccounts(), 1000)

	f.m.Apply(remote.CurrentUserChangeFailed{UID: 1001})

	fails := f.rec.failures()
	require.Len(t, fails, 1)
	assert.Equal(t, OpSetCurrentUser, fails[0].Op)
	assert.Equal(t, uint32(1001), fails[0].UID)
	assert.Equal(t, remote.Failure, fails[0].Code)

	u0, _ := f.m.Row(0)
	assert.True(t, u0.Current, "current flag unchanged on failure")
}

// ---- groups ----

func TestAddGroups(t *testing.T) {
	f := newFixture(t, seedAccounts(), 0)

	f.m.AddGroups(0, []string{"video", "audio"})
	f.m.Wait()

	assert.Equal(t, []string{"AddToGroups"}, f.gw.callLog())
	assert.Contains(t, f.rec.log(), "grp0")
}

func TestRemoveGroupsFailure(t *testing.T) {
	f := newFixture(t, seedAccounts(), 0)
	f.gw.failWith("RemoveFromGroups", &remote.Error{Code: remote.RemoveFromGroupFailed})

	f.m.RemoveGroups(0, []string{"video"})
	f.m.Wait()

	fails := f.rec.failures()
	require.Len(t, fails, 1)
	assert.Equal(t, OpRemoveGroups, fails[0].Op)
	assert.Equal(t, remote.RemoveFromGroupFailed, fails[0].Code)
	assert.NotContains(t, f.rec.log(), "grp0")
}

// ---- notifications ----

func TestUserAddedDuplicateIgnored(t *testing.T) {
	f := newFixture(t, seedAccounts(), 0)

	e := remote.Entry{UID: 1002, Username: "cid", Name: "Cid"}
	f.m.Apply(remote.UserAdded{User: e})
	f.m.Apply(remote.UserAdded{User: e})

	assert.Equal(t, 3, f.m.RowCount())
	checkModel(t, f.m)
}

func TestUserAddedGoesBeforePlaceholder(t *testing.T) {
	f := newFixture(t, seedAccounts(), 0)
	f.m.SetPlaceholder(true)

	f.m.Apply(remote.UserAdded{User: remote.Entry{UID: 1002, Username: "cid", Name: "Cid"}})

	require.Equal(t, 4, f.m.RowCount())
	u2, _ := f.m.Row(2)
	u3, _ := f.m.Row(3)
	assert.Equal(t, uint32(1002), u2.UID)
	assert.True(t, u3.Placeholder)
	checkModel(t, f.m)
}

func TestNotificationsApplyInOrder(t *testing.T) {
	f := newFixture(t, nil, 0)

	f.m.Apply(remote.UserAdded{User: remote.Entry{UID: 10, Username: "a", Name: "A"}})
	f.m.Apply(remote.UserAdded{User: remote.Entry{UID: 11, Username: "b", Name: "B"}})
	f.m.Apply(remote.UserModified{UID: 10, Name: "A2"})

	us := f.m.Users()
	require.Len(t, us, 2)
	assert.Equal(t, "A2", us[0].Name)
	assert.Equal(t, uint32(11), us[1].UID)
}

func TestUnknownUIDNotificationsIgnored(t *testing.T) {
	f := newFixture(t, seedAccounts(), 0)

	f.m.Apply(remote.UserModified{UID: 9999, Name: "X"})
	f.m.Apply(remote.UserRemoved{UID: 9999})

	assert.Equal(t, 2, f.m.RowCount())
	assert.Empty(t, f.rec.log())
}

// ---- teardown ----

func TestCloseDropsLateCompletions(t *testing.T) {
	f := newFixture(t, seedAccounts(), 0)
	f.gw.hold()
	f.gw.failWith("RemoveUser", &remote.Error{Code: remote.Busy})

	f.m.RemoveUser(0)
	require.NoError(t, f.m.Close())

	f.gw.release()
	f.m.Wait()

	assert.Empty(t, f.rec.failures(), "completions after close are dropped")
	assert.Equal(t, 2, f.m.RowCount())
}

func TestClosedModelIgnoresIntentsAndNotifications(t *testing.T) {
	f := newFixture(t, seedAccounts(), 0)
	require.NoError(t, f.m.Close())

	f.m.SetPlaceholder(true)
	f.m.SetName(0, "X")
	f.m.RemoveUser(0)
	f.m.Apply(remote.UserRemoved{UID: 1000})
	f.m.Wait()

	assert.Empty(t, f.gw.callLog())
	assert.Equal(t, 2, f.m.RowCount())
	assert.Empty(t, f.rec.log())
}
