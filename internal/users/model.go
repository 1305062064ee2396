package users

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/multiseat/userlist/internal/logging"
	"github.com/multiseat/userlist/internal/remote"
)

// Gateway is what the model needs from the remote boundary. Calls block
// until the service answers; the model itself issues them asynchronously.
// *remote.Gateway satisfies this.
type Gateway interface {
	AddUser(ctx context.Context, name string) (uint32, error)
	ModifyUser(ctx context.Context, uid uint32, name string) error
	RemoveUser(ctx context.Context, uid uint32) error
	SetCurrentUser(ctx context.Context, uid uint32) error
	AddToGroups(ctx context.Context, uid uint32, groups []string) error
	RemoveFromGroups(ctx context.Context, uid uint32, groups []string) error
}

// Config holds model tunables.
type Config struct {
	// CallTimeout bounds each remote call. Defaults to 25 seconds.
	CallTimeout time.Duration
}

// Model is the reconciler and the consumer-facing surface of the user list.
//
// The collection is seeded from the local directory at construction and from
// then on only represents external truth: rows are appended on create
// commits and user-added notifications, mutated on renames and session
// changes, and removed only when the service confirms a removal. All state
// transitions pass through one mutex — the single sequencing point — so a
// call completion and a notification for the same uid can never interleave.
type Model struct {
	cfg     Config
	log     logging.Logger
	gw      Gateway
	dir     Directory
	session SessionQuery
	groups  GroupQuery

	mu        sync.RWMutex
	c         *collection
	current   uint32 // uid owning the active session, 0 when unknown
	observers []Observer
	closed    bool
	calls     sync.WaitGroup
}

// New builds a model seeded with the directory's current accounts. Directory
// entries are committed records; the placeholder is initially absent.
func New(cfg Config, log logging.Logger, gw Gateway, dir Directory, session SessionQuery, groups GroupQuery) (*Model, error) {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 25 * time.Second
	}

	m := &Model{
		cfg:     cfg,
		log:     log.With("module", "usermodel"),
		gw:      gw,
		dir:     dir,
		session: session,
		groups:  groups,
		c:       newCollection(),
	}

	if uid, ok := session.CurrentUID(); ok {
		m.current = uid
	}

	accounts, err := dir.List()
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		m.c.insertAt(m.c.count(), newRecord(a, a.UID == m.current))
	}

	return m, nil
}

// Close marks the model as torn down. Outstanding call completions and
// further notifications are dropped without touching state.
func (m *Model) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Wait blocks until all outstanding remote calls have completed. Test and
// shutdown helper; normal operation never needs it.
func (m *Model) Wait() {
	m.calls.Wait()
}

// Subscribe registers o for change events. Not removable; subscribe for the
// model's lifetime.
func (m *Model) Subscribe(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
}

// ---- read surface ----

func (m *Model) RowCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.c.count()
}

func (m *Model) Row(row int) (User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r := m.c.at(row)
	if r == nil {
		return User{}, false
	}
	return r.view(row), true
}

// Users returns a snapshot of all rows in order.
func (m *Model) Users() []User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]User, m.c.count())
	for i := range out {
		out[i] = m.c.at(i).view(i)
	}
	return out
}

// Placeholder reports whether the uncommitted new-user slot is present.
func (m *Model) Placeholder() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.c.placeholder()
}

// HasGroup is a synchronous local membership check; it never calls the
// remote service.
func (m *Model) HasGroup(row int, group string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r := m.c.at(row)
	if r == nil || !r.valid {
		return false
	}
	return m.groups.HasGroup(r.username, group)
}

// ---- intents ----

// SetPlaceholder shows or hides the editable new-user slot. Idempotent.
func (m *Model) SetPlaceholder(present bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.c.placeholder() == present {
		return
	}

	if present {
		row := m.c.count()
		m.rowsAboutToBeInserted(row, 1)
		m.c.insertAt(row, placeholderRecord())
		m.rowsInserted(row, 1)
	} else {
		row := m.c.count() - 1
		m.rowsAboutToBeRemoved(row, 1)
		m.c.removeAt(row)
		m.rowsRemoved(row, 1)
	}
	m.placeholderChanged(present)
}

// SetName renames the row. On the placeholder the change is purely local;
// on a committed record it is applied optimistically and a modify call is
// issued, reverting to the canonical name if the call fails.
func (m *Model) SetName(row int, name string) {
	m.mu.Lock()
	r := m.c.at(row)
	if m.closed || r == nil || name == "" || r.name == name {
		m.mu.Unlock()
		m.log.Debug(context.Background(), "rename intent ignored", "row", row)
		return
	}

	r.name = name
	m.rowChanged(row, AttrName)

	if !r.valid {
		m.mu.Unlock()
		return
	}

	uid := r.uid
	opID := uuid.NewString()
	m.mu.Unlock()

	m.spawn(func(ctx context.Context) {
		err := m.gw.ModifyUser(ctx, uid, name)
		m.complete(func() {
			m.renameFinished(ctx, uid, name, opID, err)
		})
	})
}

// renameFinished commits or rolls back an optimistic rename. Runs on the
// sequencing point; the target is re-resolved by uid because the row may
// have moved or vanished while the call was in flight.
func (m *Model) renameFinished(ctx context.Context, uid uint32, name, opID string, err error) {
	row, ok := m.c.rowOf(uid)
	if !ok {
		m.log.Debug(ctx, "rename target gone", "uid", uid, "op_id", opID)
		return
	}
	r := m.c.at(row)

	if err == nil {
		// Last applied wins: the confirmed value overwrites anything a
		// concurrent modify notification put in place meanwhile.
		r.canon = name
		if r.name != name {
			r.name = name
			m.rowChanged(row, AttrName)
		}
		return
	}

	m.log.Warn(ctx, "modifying user failed", "uid", uid, "op_id", opID, "error", err)
	if r.name != r.canon {
		r.name = r.canon
		m.rowChanged(row, AttrName)
	}
	m.fail(Failure{Op: OpRenameUser, OpID: opID, Row: row, UID: uid, Code: remote.CodeOf(err)})
}

// CreateUser commits the placeholder: it asks the service to create an
// account with the placeholder's name. Does nothing without a named
// placeholder. On success the placeholder becomes the committed row (or is
// dropped if a notification already delivered the account); on failure it
// stays editable.
func (m *Model) CreateUser() {
	m.mu.Lock()
	if m.closed || !m.c.placeholder() {
		m.mu.Unlock()
		return
	}
	name := m.c.at(m.c.count() - 1).name
	if name == "" {
		m.mu.Unlock()
		m.log.Debug(context.Background(), "create intent ignored: unnamed placeholder")
		return
	}
	opID := uuid.NewString()
	m.mu.Unlock()

	m.spawn(func(ctx context.Context) {
		uid, err := m.gw.AddUser(ctx, name)
		m.complete(func() {
			m.createFinished(ctx, uid, name, opID, err)
		})
	})
}

func (m *Model) createFinished(ctx context.Context, uid uint32, name, opID string, err error) {
	if err != nil {
		m.log.Warn(ctx, "adding user failed", "op_id", opID, "error", err)
		m.fail(Failure{Op: OpCreateUser, OpID: opID, Row: -1, Code: remote.CodeOf(err)})
		return
	}

	if _, ok := m.c.rowOf(uid); ok {
		// The added notification beat the reply; the committed row already
		// exists, so just retire the placeholder.
		if m.c.placeholder() {
			row := m.c.count() - 1
			m.rowsAboutToBeRemoved(row, 1)
			m.c.removeAt(row)
			m.rowsRemoved(row, 1)
			m.placeholderChanged(false)
		}
		return
	}

	rec := m.committedRecord(uid, name)
	if m.c.placeholder() {
		row := m.c.count() - 1
		m.c.commitAt(row, rec)
		m.rowChanged(row, AttrAll)
		m.placeholderChanged(false)
	} else {
		// Placeholder was dismissed while the call was in flight; the
		// account still exists remotely, so append it.
		row := m.c.count()
		m.rowsAboutToBeInserted(row, 1)
		m.c.insertAt(row, rec)
		m.rowsInserted(row, 1)
	}
}

// committedRecord builds the record for a freshly created uid, preferring
// directory attributes when the account is already visible locally.
func (m *Model) committedRecord(uid uint32, name string) Record {
	if a, ok := m.dir.ByUID(uid); ok {
		return newRecord(a, uid == m.current)
	}
	// Not in the local databases yet; carry the requested name until a
	// notification or restart supplies the rest.
	return Record{uid: uid, name: name, canon: name, valid: true}
}

// RemoveUser asks the service to delete the row's account. The row is only
// removed locally once the confirming notification arrives.
func (m *Model) RemoveUser(row int) {
	m.rowCall(row, OpRemoveUser, m.gw.RemoveUser, nil)
}

// SetCurrentUser asks the service to switch the active session to the row's
// account. The current flags only move on the confirming notification.
func (m *Model) SetCurrentUser(row int) {
	m.rowCall(row, OpSetCurrentUser, m.gw.SetCurrentUser, nil)
}

// AddGroups extends the row's supplementary group memberships.
func (m *Model) AddGroups(row int, groups []string) {
	m.rowCall(row, OpAddGroups, func(ctx context.Context, uid uint32) error {
		return m.gw.AddToGroups(ctx, uid, groups)
	}, m.groupsChanged)
}

// RemoveGroups removes the row's supplementary group memberships.
func (m *Model) RemoveGroups(row int, groups []string) {
	m.rowCall(row, OpRemoveGroups, func(ctx context.Context, uid uint32) error {
		return m.gw.RemoveFromGroups(ctx, uid, groups)
	}, m.groupsChanged)
}

// rowCall is the shared shape of the row-addressed intents with no
// optimistic local change: validate, call, and on completion re-resolve by
// uid and report success (onSuccess, may be nil) or failure.
func (m *Model) rowCall(row int, op Op, call func(context.Context, uint32) error, onSuccess func(row int)) {
	m.mu.Lock()
	r := m.c.at(row)
	if m.closed || r == nil || !r.valid {
		m.mu.Unlock()
		m.log.Debug(context.Background(), "intent ignored", "op", op.String(), "row", row)
		return
	}
	uid := r.uid
	opID := uuid.NewString()
	m.mu.Unlock()

	m.spawn(func(ctx context.Context) {
		err := call(ctx, uid)
		m.complete(func() {
			row, ok := m.c.rowOf(uid)
			if !ok {
				m.log.Debug(ctx, "call target gone", "op", op.String(), "uid", uid, "op_id", opID)
				return
			}
			if err != nil {
				m.log.Warn(ctx, "call failed", "op", op.String(), "uid", uid, "op_id", opID, "error", err)
				m.fail(Failure{Op: op, OpID: opID, Row: row, UID: uid, Code: remote.CodeOf(err)})
				return
			}
			if onSuccess != nil {
				onSuccess(row)
			}
		})
	})
}

// Reset clears local edits on the row: the placeholder back to empty, a
// committed record back to its canonical attributes.
func (m *Model) Reset(row int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.c.at(row)
	if m.closed || r == nil {
		return
	}
	if r.valid {
		r.name = r.canon
	} else {
		r.name = ""
	}
	m.rowChanged(row, AttrAll)
}

// ---- notification merge ----

// Apply merges one remote notification. It is the gateway's sink and runs
// on the sequencing point; applying is idempotent per uid, so a
// notification racing a call completion is safe in either order.
func (m *Model) Apply(n remote.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	switch v := n.(type) {
	case remote.UserAdded:
		m.mergeAdded(v.User)
	case remote.UserModified:
		m.mergeModified(v.UID, v.Name)
	case remote.UserRemoved:
		m.mergeRemoved(v.UID)
	case remote.CurrentUserChanged:
		m.mergeCurrentChanged(v.UID)
	case remote.CurrentUserChangeFailed:
		m.mergeCurrentChangeFailed(v.UID)
	}
}

func (m *Model) mergeAdded(e remote.Entry) {
	if m.c.index.Contains(e.UID) {
		// Already present, e.g. applied by a completed create call.
		return
	}

	rec := recordFromEntry(e, e.UID == m.current)
	if a, ok := m.dir.ByUID(e.UID); ok && a.Admin {
		rec.kind = KindAdmin
	}

	row := m.c.count()
	if m.c.placeholder() {
		row--
	}
	m.rowsAboutToBeInserted(row, 1)
	m.c.insertAt(row, rec)
	m.rowsInserted(row, 1)
}

func (m *Model) mergeModified(uid uint32, newName string) {
	row, ok := m.c.rowOf(uid)
	if !ok {
		return
	}
	r := m.c.at(row)
	r.canon = newName
	if r.name != newName {
		r.name = newName
		m.rowChanged(row, AttrName)
	}
}

func (m *Model) mergeRemoved(uid uint32) {
	row, ok := m.c.rowOf(uid)
	if !ok {
		return
	}
	m.rowsAboutToBeRemoved(row, 1)
	m.c.removeAt(row)
	m.rowsRemoved(row, 1)
}

func (m *Model) mergeCurrentChanged(uid uint32) {
	// The previously current account comes from the tracked uid and the
	// session side query; the latter wins when they disagree, e.g. right
	// after startup.
	previous := []uint32{m.current}
	if s, ok := m.session.CurrentUID(); ok {
		previous = append(previous, s)
	}
	for _, cand := range previous {
		if cand == uid {
			continue
		}
		if row, ok := m.c.rowOf(cand); ok {
			r := m.c.at(row)
			if r.current {
				r.current = false
				m.rowChanged(row, AttrCurrent)
			}
		}
	}

	if row, ok := m.c.rowOf(uid); ok {
		r := m.c.at(row)
		if !r.current {
			r.current = true
			m.rowChanged(row, AttrCurrent)
		}
	}
	m.current = uid
}

func (m *Model) mergeCurrentChangeFailed(uid uint32) {
	row, ok := m.c.rowOf(uid)
	if !ok {
		return
	}
	m.fail(Failure{Op: OpSetCurrentUser, Row: row, UID: uid, Code: remote.Failure})
}

// ---- plumbing ----

// spawn issues one remote call off the sequencing point.
func (m *Model) spawn(fn func(ctx context.Context)) {
	m.calls.Add(1)
	go func() {
		defer m.calls.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.CallTimeout)
		defer cancel()
		fn(ctx)
	}()
}

// complete funnels a call completion through the sequencing point. A
// completion arriving after Close finds closed set and is dropped, so late
// results of torn-down components never touch state.
func (m *Model) complete(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	fn()
}

func (m *Model) rowsAboutToBeInserted(row, count int) {
	for _, o := range m.observers {
		o.RowsAboutToBeInserted(row, count)
	}
}

func (m *Model) rowsInserted(row, count int) {
	for _, o := range m.observers {
		o.RowsInserted(row, count)
	}
}

func (m *Model) rowsAboutToBeRemoved(row, count int) {
	for _, o := range m.observers {
		o.RowsAboutToBeRemoved(row, count)
	}
}

func (m *Model) rowsRemoved(row, count int) {
	for _, o := range m.observers {
		o.RowsRemoved(row, count)
	}
}

func (m *Model) rowChanged(row int, attrs Attr) {
	for _, o := range m.observers {
		o.RowChanged(row, attrs)
	}
}

func (m *Model) placeholderChanged(present bool) {
	for _, o := range m.observers {
		o.PlaceholderChanged(present)
	}
}

func (m *Model) groupsChanged(row int) {
	for _, o := range m.observers {
		o.GroupsChanged(row)
	}
}

func (m *Model) fail(f Failure) {
	for _, o := range m.observers {
		o.OperationFailed(f)
	}
}
