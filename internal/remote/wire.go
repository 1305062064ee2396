package remote

import (
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// Fully qualified gRPC method names of the accounts service.
const (
	serviceName = "accounts.Manager"

	methodAddUser          = "/accounts.Manager/AddUser"
	methodModifyUser       = "/accounts.Manager/ModifyUser"
	methodRemoveUser       = "/accounts.Manager/RemoveUser"
	methodSetCurrentUser   = "/accounts.Manager/SetCurrentUser"
	methodAddToGroups      = "/accounts.Manager/AddToGroups"
	methodRemoveFromGroups = "/accounts.Manager/RemoveFromGroups"
	methodWatch            = "/accounts.Manager/Watch"
)

// codecName is the gRPC content-subtype under which the JSON codec is
// registered. The service contract is small and stable, so plain JSON
// messages are used instead of generated protobuf code; both ends of the
// connection select the codec by this name.
const codecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// callOptions returns the per-call defaults every client of the accounts
// service needs.
func callOptions() grpc.CallOption {
	return grpc.CallContentSubtype(codecName)
}

// Entry describes one user account as reported by the service.
type Entry struct {
	UID      uint32 `json:"uid"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Admin    bool   `json:"admin"`
}

type AddUserRequest struct {
	Name string `json:"name"`
}

type AddUserReply struct {
	UID uint32 `json:"uid"`
}

type ModifyUserRequest struct {
	UID  uint32 `json:"uid"`
	Name string `json:"name"`
}

// UIDRequest addresses a single account, used by RemoveUser and
// SetCurrentUser.
type UIDRequest struct {
	UID uint32 `json:"uid"`
}

type GroupsRequest struct {
	UID    uint32   `json:"uid"`
	Groups []string `json:"groups"`
}

type Empty struct{}

type WatchRequest struct{}
