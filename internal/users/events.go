package users

import "github.com/multiseat/userlist/internal/remote"

// Attr identifies which row attributes a RowChanged event covers.
type Attr uint

const (
	AttrName Attr = 1 << iota
	AttrCurrent
	attrRest

	// AttrAll marks a change of the whole row, e.g. a placeholder commit.
	AttrAll = AttrName | AttrCurrent | attrRest
)

// Op names the intent an OperationFailed event originates from.
type Op int

const (
	OpCreateUser Op = iota
	OpRenameUser
	OpRemoveUser
	OpSetCurrentUser
	OpAddGroups
	OpRemoveGroups
)

var opNames = [...]string{
	OpCreateUser:     "create-user",
	OpRenameUser:     "rename-user",
	OpRemoveUser:     "remove-user",
	OpSetCurrentUser: "set-current-user",
	OpAddGroups:      "add-groups",
	OpRemoveGroups:   "remove-groups",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "unknown"
}

// Failure describes a rejected or failed intent.
type Failure struct {
	Op   Op
	OpID string // correlation id of the originating intent, empty for remote-reported failures
	Row  int    // current row of the target, -1 when none survives (create)
	UID  uint32 // 0 for create
	Code remote.Code
}

// Observer receives collection change events. Structural changes are
// bracketed: the AboutToBe callback fires before the mutation, its
// counterpart after, so row numbers held across the pair stay meaningful.
// Callbacks run synchronously on the sequencing point; they must be quick
// and must not call back into the Model.
type Observer interface {
	RowsAboutToBeInserted(row, count int)
	RowsInserted(row, count int)
	RowsAboutToBeRemoved(row, count int)
	RowsRemoved(row, count int)
	RowChanged(row int, attrs Attr)
	PlaceholderChanged(present bool)
	GroupsChanged(row int)
	OperationFailed(f Failure)
}

// NopObserver implements Observer with no-ops, for embedding.
type NopObserver struct{}

func (NopObserver) RowsAboutToBeInserted(row, count int) {}
func (NopObserver) RowsInserted(row, count int)          {}
func (NopObserver) RowsAboutToBeRemoved(row, count int)  {}
func (NopObserver) RowsRemoved(row, count int)           {}
func (NopObserver) RowChanged(row int, attrs Attr)       {}
func (NopObserver) PlaceholderChanged(present bool)      {}
func (NopObserver) GroupsChanged(row int)                {}
func (NopObserver) OperationFailed(f Failure)            {}
