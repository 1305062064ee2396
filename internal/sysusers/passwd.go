// Package sysusers answers local side queries from the system account
// databases: seeding the user list, resolving uids, synchronous group
// membership checks, and the active-session owner.
package sysusers

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/multiseat/userlist/internal/users"
)

type passwdEntry struct {
	Username string
	UID      uint32
	Name     string // first GECOS field
}

func parsePasswd(r io.Reader) ([]passwdEntry, error) {
	var entries []passwdEntry

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		parts := strings.Split(line, ":")
		if len(parts) < 7 || strings.HasPrefix(line, "#") {
			continue
		}

		uid, err := strconv.ParseUint(parts[2], 10, 32)
		if err != nil {
			continue
		}

		name := strings.SplitN(parts[4], ",", 2)[0]
		if name == "" {
			name = parts[0]
		}

		entries = append(entries, passwdEntry{
			Username: parts[0],
			UID:      uint32(uid),
			Name:     name,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// parseGroup returns group name → member usernames, preserving member order.
func parseGroup(r io.Reader) (map[string][]string, error) {
	groups := make(map[string][]string)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		parts := strings.Split(line, ":")
		if len(parts) < 4 || strings.HasPrefix(line, "#") {
			continue
		}

		var members []string
		for _, member := range strings.Split(parts[3], ",") {
			if member = strings.TrimSpace(member); member != "" {
				members = append(members, member)
			}
		}
		groups[parts[0]] = members
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return groups, nil
}

// Files is a users.Directory over the passwd and group databases. Accounts
// are the members of MemberGroup, in the order the group file lists them;
// members of AdminGroup classify as administrators.
type Files struct {
	PasswdPath  string
	GroupPath   string
	MemberGroup string
	AdminGroup  string
}

func (f *Files) List() ([]users.Account, error) {
	groups, err := f.loadGroups()
	if err != nil {
		return nil, err
	}

	byName := make(map[string]passwdEntry)
	entries, err := f.loadPasswd()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		byName[e.Username] = e
	}

	admins := make(map[string]bool)
	for _, member := range groups[f.AdminGroup] {
		admins[member] = true
	}

	var accounts []users.Account
	for _, member := range groups[f.MemberGroup] {
		e, ok := byName[member]
		if !ok {
			// Group member without a passwd entry; skip.
			continue
		}
		accounts = append(accounts, users.Account{
			UID:      e.UID,
			Username: e.Username,
			Name:     e.Name,
			Admin:    admins[e.Username],
		})
	}
	return accounts, nil
}

func (f *Files) ByUID(uid uint32) (users.Account, bool) {
	entries, err := f.loadPasswd()
	if err != nil {
		return users.Account{}, false
	}
	for _, e := range entries {
		if e.UID != uid {
			continue
		}
		admin := false
		if groups, err := f.loadGroups(); err == nil {
			for _, member := range groups[f.AdminGroup] {
				if member == e.Username {
					admin = true
					break
				}
			}
		}
		return users.Account{UID: e.UID, Username: e.Username, Name: e.Name, Admin: admin}, true
	}
	return users.Account{}, false
}

func (f *Files) loadPasswd() ([]passwdEntry, error) {
	fh, err := os.Open(f.PasswdPath)
	if err != nil {
		return nil, fmt.Errorf("opening passwd database: %w", err)
	}
	defer fh.Close()
	return parsePasswd(fh)
}

func (f *Files) loadGroups() (map[string][]string, error) {
	fh, err := os.Open(f.GroupPath)
	if err != nil {
		return nil, fmt.Errorf("opening group database: %w", err)
	}
	defer fh.Close()
	return parseGroup(fh)
}
