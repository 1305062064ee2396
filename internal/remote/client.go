package remote

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ManagerClient is a thin client for the accounts service. One method per
// RPC; every error returned is nil or a classified *Error.
type ManagerClient struct {
	conn *grpc.ClientConn
}

// DialManager creates a client for the service at target. The underlying
// connection is lazy: dialing succeeds even while the service is down, and
// individual calls fail or block until it is reachable. Extra dial options
// are appended after the defaults (tests use this to dial a bufconn).
func DialManager(target string, opts ...grpc.DialOption) (*ManagerClient, error) {
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(callOptions()),
	}, opts...)

	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &ManagerClient{conn: conn}, nil
}

func (c *ManagerClient) Close() error {
	return c.conn.Close()
}

func (c *ManagerClient) AddUser(ctx context.Context, name string) (uint32, error) {
	out := new(AddUserReply)
	if err := c.conn.Invoke(ctx, methodAddUser, &AddUserRequest{Name: name}, out); err != nil {
		return 0, mapError(err)
	}
	return out.UID, nil
}

func (c *ManagerClient) ModifyUser(ctx context.Context, uid uint32, name string) error {
	out := new(Empty)
	if err := c.conn.Invoke(ctx, methodModifyUser, &ModifyUserRequest{UID: uid, Name: name}, out); err != nil {
		return mapError(err)
	}
	return nil
}

func (c *ManagerClient) RemoveUser(ctx context.Context, uid uint32) error {
	out := new(Empty)
	if err := c.conn.Invoke(ctx, methodRemoveUser, &UIDRequest{UID: uid}, out); err != nil {
		return mapError(err)
	}
	return nil
}

func (c *ManagerClient) SetCurrentUser(ctx context.Context, uid uint32) error {
	out := new(Empty)
	if err := c.conn.Invoke(ctx, methodSetCurrentUser, &UIDRequest{UID: uid}, out); err != nil {
		return mapError(err)
	}
	return nil
}

func (c *ManagerClient) AddToGroups(ctx context.Context, uid uint32, groups []string) error {
	out := new(Empty)
	if err := c.conn.Invoke(ctx, methodAddToGroups, &GroupsRequest{UID: uid, Groups: groups}, out); err != nil {
		return mapError(err)
	}
	return nil
}

func (c *ManagerClient) RemoveFromGroups(ctx context.Context, uid uint32, groups []string) error {
	out := new(Empty)
	if err := c.conn.Invoke(ctx, methodRemoveFromGroups, &GroupsRequest{UID: uid, Groups: groups}, out); err != nil {
		return mapError(err)
	}
	return nil
}

var watchStreamDesc = grpc.StreamDesc{
	StreamName:    "Watch",
	ServerStreams: true,
}

// Watch subscribes to the service's change notifications. The stream carries
// every notification class; establishment doubles as the service-reachable
// signal for the Gateway.
func (c *ManagerClient) Watch(ctx context.Context) (*WatchStream, error) {
	cs, err := c.conn.NewStream(ctx, &watchStreamDesc, methodWatch)
	if err != nil {
		return nil, mapError(err)
	}
	if err := cs.SendMsg(&WatchRequest{}); err != nil {
		return nil, mapError(err)
	}
	if err := cs.CloseSend(); err != nil {
		return nil, mapError(err)
	}
	return &WatchStream{cs: cs}, nil
}

// WatchStream delivers decoded notifications in arrival order.
type WatchStream struct {
	cs grpc.ClientStream
}

// Recv blocks for the next notification. Stream termination (the service
// going away, or context cancellation) is reported as a classified *Error.
func (s *WatchStream) Recv() (Notification, error) {
	var w notificationWire
	if err := s.cs.RecvMsg(&w); err != nil {
		return nil, mapError(err)
	}
	n, err := decodeNotification(&w)
	if err != nil {
		// Malformed reply from the service: a transport-class failure.
		return nil, &Error{Code: Failure, Err: err}
	}
	return n, nil
}
