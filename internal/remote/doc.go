// Package remote is the boundary to the privileged accounts service.
//
// # Overview
//
// The package provides:
//  1. The wire contract: request/reply types for the six management methods
//     and a closed Notification variant type for the five unsolicited
//     change notifications, all moved over gRPC by a JSON codec.
//  2. A thin client (ManagerClient) with one method per RPC plus a Watch
//     stream, mapping transport and application errors into *Error.
//  3. The Gateway, which owns the connection lifecycle as an explicit
//     Disconnected/Connected state machine: the watch stream is opened the
//     moment the service becomes reachable and torn down when it goes away,
//     and calls issued while disconnected fail immediately with NotAvailable
//     instead of queuing.
//  4. A hand-written service descriptor (RegisterManagerServer) so that the
//     in-memory simulator and tests can serve the same contract.
//
// # Error Handling
//
// Remote failures surface as *Error. Application rejections carry one of the
// closed Code values classified from the service's error identifier;
// transport-level failures are the distinct Failure and NotAvailable classes.
// Match with errors.As, or use CodeOf for classification only.
package remote
