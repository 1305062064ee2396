package remote

import (
	"context"

	"google.golang.org/grpc"
)

// ManagerServer is the server-side contract of the accounts service. The
// real privileged daemon lives outside this repository; this interface
// exists for the in-memory simulator and for integration tests, which must
// speak the exact same wire contract as the daemon.
type ManagerServer interface {
	AddUser(ctx context.Context, req *AddUserRequest) (*AddUserReply, error)
	ModifyUser(ctx context.Context, req *ModifyUserRequest) (*Empty, error)
	RemoveUser(ctx context.Context, req *UIDRequest) (*Empty, error)
	SetCurrentUser(ctx context.Context, req *UIDRequest) (*Empty, error)
	AddToGroups(ctx context.Context, req *GroupsRequest) (*Empty, error)
	RemoveFromGroups(ctx context.Context, req *GroupsRequest) (*Empty, error)
	Watch(req *WatchRequest, stream ManagerWatchStream) error
}

// ManagerWatchStream is the sending side of a Watch subscription.
type ManagerWatchStream interface {
	Send(Notification) error
	Context() context.Context
}

type managerWatchStream struct {
	grpc.ServerStream
}

func (s managerWatchStream) Send(n Notification) error {
	w := encodeNotification(n)
	return s.SendMsg(&w)
}

// RegisterManagerServer registers srv under the accounts service name.
func RegisterManagerServer(s grpc.ServiceRegistrar, srv ManagerServer) {
	s.RegisterService(&managerServiceDesc, srv)
}

func addUserHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(AddUserRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ManagerServer).AddUser(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodAddUser}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ManagerServer).AddUser(ctx, req.(*AddUserRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func modifyUserHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ModifyUserRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ManagerServer).ModifyUser(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodModifyUser}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ManagerServer).ModifyUser(ctx, req.(*ModifyUserRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func removeUserHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(UIDRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ManagerServer).RemoveUser(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodRemoveUser}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ManagerServer).RemoveUser(ctx, req.(*UIDRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func setCurrentUserHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(UIDRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ManagerServer).SetCurrentUser(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodSetCurrentUser}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ManagerServer).SetCurrentUser(ctx, req.(*UIDRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func addToGroupsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GroupsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ManagerServer).AddToGroups(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodAddToGroups}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ManagerServer).AddToGroups(ctx, req.(*GroupsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func removeFromGroupsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GroupsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ManagerServer).RemoveFromGroups(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodRemoveFromGroups}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ManagerServer).RemoveFromGroups(ctx, req.(*GroupsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ManagerServer).Watch(in, managerWatchStream{ServerStream: stream})
}

var managerServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ManagerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "AddUser", Handler: addUserHandler},
		{MethodName: "ModifyUser", Handler: modifyUserHandler},
		{MethodName: "RemoveUser", Handler: removeUserHandler},
		{MethodName: "SetCurrentUser", Handler: setCurrentUserHandler},
		{MethodName: "AddToGroups", Handler: addToGroupsHandler},
		{MethodName: "RemoveFromGroups", Handler: removeFromGroupsHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
}
