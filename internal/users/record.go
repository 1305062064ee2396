package users

import "github.com/multiseat/userlist/internal/remote"

// Kind classifies an account.
type Kind int

const (
	KindRegular Kind = iota
	KindAdmin
)

func (k Kind) String() string {
	if k == KindAdmin {
		return "admin"
	}
	return "regular"
}

// Account is a local directory entry for one system account.
type Account struct {
	UID      uint32
	Username string
	Name     string
	Admin    bool
}

// Directory resolves accounts from the local system databases. It seeds the
// model at startup and supplies attributes for accounts the remote service
// reports by uid only.
type Directory interface {
	// List returns the accounts that belong in the user list, in a stable
	// enumeration order.
	List() ([]Account, error)

	// ByUID resolves a single account.
	ByUID(uid uint32) (Account, bool)
}

// SessionQuery reports which uid owns the active session. It is the side
// channel consulted instead of the collection, since the authoritative
// session owner can differ from what the collection last recorded.
type SessionQuery interface {
	CurrentUID() (uint32, bool)
}

// GroupQuery answers synchronous local group-membership checks.
type GroupQuery interface {
	HasGroup(username, group string) bool
}

// Record is one cached user account entry. The zero value is not useful;
// records are built from a directory Account, a remote Entry, or as the
// placeholder.
type Record struct {
	uid      uint32
	name     string // displayed name, mutated optimistically
	canon    string // last remote-confirmed name, rename rollback target
	username string
	kind     Kind
	current  bool
	valid    bool // false only on the placeholder
}

func newRecord(a Account, current bool) Record {
	kind := KindRegular
	if a.Admin {
		kind = KindAdmin
	}
	return Record{
		uid:      a.UID,
		name:     a.Name,
		canon:    a.Name,
		username: a.Username,
		kind:     kind,
		current:  current,
		valid:    true,
	}
}

func recordFromEntry(e remote.Entry, current bool) Record {
	kind := KindRegular
	if e.Admin {
		kind = KindAdmin
	}
	return Record{
		uid:      e.UID,
		name:     e.Name,
		canon:    e.Name,
		username: e.Username,
		kind:     kind,
		current:  current,
		valid:    true,
	}
}

// placeholderRecord is the single editable, invalid tail record.
func placeholderRecord() Record {
	return Record{}
}

// User is the read view of one row.
type User struct {
	Row         int
	UID         uint32
	Username    string
	Name        string
	Kind        Kind
	Current     bool
	Placeholder bool
}

func (r *Record) view(row int) User {
	return User{
		Row:         row,
		UID:         r.uid,
		Username:    r.username,
		Name:        r.name,
		Kind:        r.kind,
		Current:     r.current,
		Placeholder: !r.valid,
	}
}
