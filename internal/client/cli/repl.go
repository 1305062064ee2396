package cli

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	List()
	Add(name string)
	Rename(row int, name string)
	Remove(row int)
	Switch(row int)
	ShowGroup(row int, group string)
	AddGroups(row int, groups []string)
	RemoveGroups(row int, groups []string)
	Reset(row int)
	Dismiss()
}

// runREPL starts a simple read–eval–print loop for userctl.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Commands:
//
//	list                     — print all rows
//	add <name>               — create a new user
//	rename <row> <name>      — rename a user
//	remove <row>             — delete a user
//	switch <row>             — make the user's session current
//	group <row> <group>      — query a group membership
//	addgroup <row> <g...>    — add supplementary groups
//	delgroup <row> <g...>    — remove supplementary groups
//	reset <row>              — discard local edits on a row
//	dismiss                  — drop the new-user slot
//	exit | quit              — leave the program
//
// Mutating commands return before the service answers; results and failures
// arrive as printed events. The REPL stays resilient: bad arguments print a
// usage line instead of aborting.
func runREPL(a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("userctl (%s) > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			printlnFn("Available commands: list, add, rename, remove, switch, group, addgroup, delgroup, reset, dismiss, exit")

		case "l", "list":
			a.List()

		case "add":
			if len(args) == 0 {
				printlnFn("Usage: add <name>")
				continue
			}
			a.Add(strings.Join(args, " "))

		case "rename":
			row, rest, ok := rowArg(args, 2)
			if !ok {
				printlnFn("Usage: rename <row> <name>")
				continue
			}
			a.Rename(row, strings.Join(rest, " "))

		case "remove":
			row, _, ok := rowArg(args, 1)
			if !ok {
				printlnFn("Usage: remove <row>")
				continue
			}
			a.Remove(row)

		case "switch":
			row, _, ok := rowArg(args, 1)
			if !ok {
				printlnFn("Usage: switch <row>")
				continue
			}
			a.Switch(row)

		case "group":
			row, rest, ok := rowArg(args, 2)
			if !ok {
				printlnFn("Usage: group <row> <group>")
				continue
			}
			a.ShowGroup(row, rest[0])

		case "addgroup":
			row, rest, ok := rowArg(args, 2)
			if !ok {
				printlnFn("Usage: addgroup <row> <group> [group...]")
				continue
			}
			a.AddGroups(row, rest)

		case "delgroup":
			row, rest, ok := rowArg(args, 2)
			if !ok {
				printlnFn("Usage: delgroup <row> <group> [group...]")
				continue
			}
			a.RemoveGroups(row, rest)

		case "reset":
			row, _, ok := rowArg(args, 1)
			if !ok {
				printlnFn("Usage: reset <row>")
				continue
			}
			a.Reset(row)

		case "dismiss":
			a.Dismiss()

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}

// rowArg parses a leading row number and requires at least min arguments.
func rowArg(args []string, min int) (int, []string, bool) {
	if len(args) < min {
		return 0, nil, false
	}
	row, err := strconv.Atoi(args[0])
	if err != nil || row < 0 {
		return 0, nil, false
	}
	return row, args[1:], true
}
