// Package cli provides the interactive userctl command-line client.
//
// It wires configuration, the local system databases, the remote gateway,
// and the user-list model into an interactive REPL. Collection changes and
// failures reported by the model are printed as they happen, so the list on
// screen follows remote activity as well as local commands.
//
// The REPL is started via App.Run(), which blocks until the user exits.
// See App and runREPL for details.
package cli
