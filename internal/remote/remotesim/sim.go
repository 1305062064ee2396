// Package remotesim is an in-memory stand-in for the privileged accounts
// daemon. It implements the full remote.ManagerServer contract with
// notification broadcast and failure injection, and backs both the
// accountsim development binary and the integration tests. It performs no
// real account management.
package remotesim

import (
	"context"
	"strings"
	"sync"

	"github.com/multiseat/userlist/internal/logging"
	"github.com/multiseat/userlist/internal/remote"
)

// FirstUID is the uid assigned to the first created account.
const FirstUID uint32 = 100000

// Op names accepted by FailNext.
const (
	OpAddUser          = "AddUser"
	OpModifyUser       = "ModifyUser"
	OpRemoveUser       = "RemoveUser"
	OpSetCurrentUser   = "SetCurrentUser"
	OpAddToGroups      = "AddToGroups"
	OpRemoveFromGroups = "RemoveFromGroups"
)

// Service is the simulated accounts service. Safe for concurrent use.
type Service struct {
	log logging.Logger

	mu       sync.Mutex
	nextUID  uint32
	users    map[uint32]remote.Entry
	groups   map[uint32]map[string]bool
	current  uint32
	failNext map[string]remote.Code
	subs     map[int]chan remote.Notification
	nextSub  int

	// FailSwitch makes SetCurrentUser accept the call but follow up with a
	// currentUserChangeFailed notification, the way the real daemon reports
	// a switch that fell over after being accepted.
	FailSwitch bool
}

func New(log logging.Logger) *Service {
	return &Service{
		log:      log.With("module", "remotesim"),
		nextUID:  FirstUID,
		users:    make(map[uint32]remote.Entry),
		groups:   make(map[uint32]map[string]bool),
		failNext: make(map[string]remote.Code),
		subs:     make(map[int]chan remote.Notification),
	}
}

// Seed installs accounts without emitting notifications.
func (s *Service) Seed(entries ...remote.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.users[e.UID] = e
		if e.UID >= s.nextUID {
			s.nextUID = e.UID + 1
		}
	}
}

// FailNext rejects the next call of the named op with the given code.
func (s *Service) FailNext(op string, code remote.Code) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[op] = code
}

// rejection consumes a pending injected failure for op.
func (s *Service) rejection(op string) error {
	if code, ok := s.failNext[op]; ok {
		delete(s.failNext, op)
		return remote.RejectionError(code)
	}
	return nil
}

// broadcast fans n out to every subscriber. Called with s.mu held so
// notification order matches mutation order.
func (s *Service) broadcast(n remote.Notification) {
	for _, ch := range s.subs {
		select {
		case ch <- n:
		default:
			// Slow subscriber; drop rather than block the service.
		}
	}
}

func usernameFor(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "user"
	}
	return b.String()
}

func (s *Service) AddUser(ctx context.Context, req *remote.AddUserRequest) (*remote.AddUserReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.rejection(OpAddUser); err != nil {
		return nil, err
	}
	if req.Name == "" {
		return nil, remote.RejectionError(remote.UserAddFailed)
	}

	e := remote.Entry{
		UID:      s.nextUID,
		Username: usernameFor(req.Name),
		Name:     req.Name,
	}
	s.nextUID++
	s.users[e.UID] = e
	s.log.Info(ctx, "user added", "uid", e.UID, "username", e.Username)

	// The daemon both replies with the uid and notifies all watchers, so a
	// client may observe either one first.
	s.broadcast(remote.UserAdded{User: e})

	return &remote.AddUserReply{UID: e.UID}, nil
}

func (s *Service) ModifyUser(ctx context.Context, req *remote.ModifyUserRequest) (*remote.Empty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.rejection(OpModifyUser); err != nil {
		return nil, err
	}
	e, ok := s.users[req.UID]
	if !ok {
		return nil, remote.RejectionError(remote.UserNotFound)
	}

	e.Name = req.Name
	s.users[req.UID] = e
	s.broadcast(remote.UserModified{UID: req.UID, Name: req.Name})

	return &remote.Empty{}, nil
}

func (s *Service) RemoveUser(ctx context.Context, req *remote.UIDRequest) (*remote.Empty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.rejection(OpRemoveUser); err != nil {
		return nil, err
	}
	if _, ok := s.users[req.UID]; !ok {
		return nil, remote.RejectionError(remote.UserNotFound)
	}

	delete(s.users, req.UID)
	delete(s.groups, req.UID)
	if s.current == req.UID {
		s.current = 0
	}
	s.log.Info(ctx, "user removed", "uid", req.UID)
	s.broadcast(remote.UserRemoved{UID: req.UID})

	return &remote.Empty{}, nil
}

func (s *Service) SetCurrentUser(ctx context.Context, req *remote.UIDRequest) (*remote.Empty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.rejection(OpSetCurrentUser); err != nil {
		return nil, err
	}
	if _, ok := s.users[req.UID]; !ok {
		return nil, remote.RejectionError(remote.UserNotFound)
	}

	if s.FailSwitch {
		s.broadcast(remote.CurrentUserChangeFailed{UID: req.UID})
		return &remote.Empty{}, nil
	}

	s.current = req.UID
	s.broadcast(remote.CurrentUserChanged{UID: req.UID})

	return &remote.Empty{}, nil
}

func (s *Service) AddToGroups(ctx context.Context, req *remote.GroupsRequest) (*remote.Empty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.rejection(OpAddToGroups); err != nil {
		return nil, err
	}
	if _, ok := s.users[req.UID]; !ok {
		return nil, remote.RejectionError(remote.UserNotFound)
	}

	g := s.groups[req.UID]
	if g == nil {
		g = make(map[string]bool)
		s.groups[req.UID] = g
	}
	for _, name := range req.Groups {
		g[name] = true
	}

	return &remote.Empty{}, nil
}

func (s *Service) RemoveFromGroups(ctx context.Context, req *remote.GroupsRequest) (*remote.Empty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.rejection(OpRemoveFromGroups); err != nil {
		return nil, err
	}
	if _, ok := s.users[req.UID]; !ok {
		return nil, remote.RejectionError(remote.UserNotFound)
	}

	for _, name := range req.Groups {
		delete(s.groups[req.UID], name)
	}

	return &remote.Empty{}, nil
}

// Watch streams notifications until the subscriber goes away.
func (s *Service) Watch(req *remote.WatchRequest, stream remote.ManagerWatchStream) error {
	ch := make(chan remote.Notification, 64)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}()

	for {
		select {
		case <-stream.Context().Done():
			return nil
		case n := <-ch:
			if err := stream.Send(n); err != nil {
				return err
			}
		}
	}
}

// Watchers reports the number of active watch subscriptions, for tests.
func (s *Service) Watchers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// HasGroup reports simulated group membership, for tests.
func (s *Service) HasGroup(uid uint32, group string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groups[uid][group]
}

// CurrentUID returns the simulated active account, for tests.
func (s *Service) CurrentUID() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}
