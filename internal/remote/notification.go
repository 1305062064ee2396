package remote

import "fmt"

// Notification is the closed set of unsolicited change notifications sent by
// the accounts service. Wire envelopes are decoded into these variants once,
// at the gateway boundary; consumers dispatch with a type switch.
type Notification interface {
	isNotification()
}

// UserAdded reports a newly created account.
type UserAdded struct {
	User Entry
}

// UserModified reports a display-name change.
type UserModified struct {
	UID  uint32
	Name string
}

// UserRemoved reports a deleted account.
type UserRemoved struct {
	UID uint32
}

// CurrentUserChanged reports that the active session moved to another
// account.
type CurrentUserChanged struct {
	UID uint32
}

// CurrentUserChangeFailed reports that a previously accepted session switch
// did not complete.
type CurrentUserChangeFailed struct {
	UID uint32
}

func (UserAdded) isNotification()               {}
func (UserModified) isNotification()            {}
func (UserRemoved) isNotification()             {}
func (CurrentUserChanged) isNotification()      {}
func (CurrentUserChangeFailed) isNotification() {}

// Wire envelope kinds.
const (
	kindUserAdded               = "userAdded"
	kindUserModified            = "userModified"
	kindUserRemoved             = "userRemoved"
	kindCurrentUserChanged      = "currentUserChanged"
	kindCurrentUserChangeFailed = "currentUserChangeFailed"
)

// notificationWire is the JSON envelope carried on the watch stream.
type notificationWire struct {
	Kind string `json:"kind"`
	User *Entry `json:"user,omitempty"`
	UID  uint32 `json:"uid,omitempty"`
	Name string `json:"name,omitempty"`
}

func decodeNotification(w *notificationWire) (Notification, error) {
	switch w.Kind {
	case kindUserAdded:
		if w.User == nil {
			return nil, fmt.Errorf("%s notification without user entry", w.Kind)
		}
		return UserAdded{User: *w.User}, nil
	case kindUserModified:
		return UserModified{UID: w.UID, Name: w.Name}, nil
	case kindUserRemoved:
		return UserRemoved{UID: w.UID}, nil
	case kindCurrentUserChanged:
		return CurrentUserChanged{UID: w.UID}, nil
	case kindCurrentUserChangeFailed:
		return CurrentUserChangeFailed{UID: w.UID}, nil
	default:
		return nil, fmt.Errorf("unknown notification kind %q", w.Kind)
	}
}

func encodeNotification(n Notification) notificationWire {
	switch v := n.(type) {
	case UserAdded:
		u := v.User
		return notificationWire{Kind: kindUserAdded, User: &u}
	case UserModified:
		return notificationWire{Kind: kindUserModified, UID: v.UID, Name: v.Name}
	case UserRemoved:
		return notificationWire{Kind: kindUserRemoved, UID: v.UID}
	case CurrentUserChanged:
		return notificationWire{Kind: kindCurrentUserChanged, UID: v.UID}
	case CurrentUserChangeFailed:
		return notificationWire{Kind: kindCurrentUserChangeFailed, UID: v.UID}
	default:
		// The variant set is closed; reaching this is a programming error.
		panic(fmt.Sprintf("unencodable notification %T", n))
	}
}
