package control

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Permission names one of the named grants a users file entry may
// list: either the "all" shorthand or a comma-list of named
// permissions.
type Permission string

const (
	PermStartup    Permission = "startup"
	PermShutdown   Permission = "shutdown"
	PermAfdCtrl    Permission = "afd_ctrl"
	PermInitialize Permission = "initialize"
	permAll        Permission = "all"
)

// Permissions is one user's resolved grant set, parsed from a single
// users-file line.
type Permissions struct {
	all    bool
	grants map[Permission]bool
}

// Allows reports whether p was granted, either individually or via the
// "all" shorthand.
func (p Permissions) Allows(perm Permission) bool {
	return p.all || p.grants[perm]
}

// ParsePermissions parses one users-file value: "all" or a comma
// separated list such as "startup,shutdown".
func ParsePermissions(value string) Permissions {
	value = strings.TrimSpace(value)
	if value == string(permAll) {
		return Permissions{all: true}
	}
	grants := make(map[Permission]bool)
	for _, tok := range strings.Split(value, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		grants[Permission(tok)] = true
	}
	return Permissions{grants: grants}
}

// LoadUsersFile reads a users file of "<username> <permission-value>"
// lines (blank lines and lines starting with '#' are ignored) into a
// per-user permission map.
func LoadUsersFile(path string) (map[string]Permissions, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "control: open users file %s", path)
	}
	defer f.Close()

	result := make(map[string]Permissions)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		if len(fields) != 2 {
			return nil, errors.Errorf("control: malformed users file line %q", line)
		}
		result[fields[0]] = ParsePermissions(fields[1])
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "control: scan users file")
	}
	return result, nil
}

// CheckPermission is the gate the CLI calls before honoring a flag: is
// user granted perm according to the users file at path?
func CheckPermission(path, user string, perm Permission) (bool, error) {
	users, err := LoadUsersFile(path)
	if err != nil {
		return false, err
	}
	p, ok := users[user]
	if !ok {
		return false, nil
	}
	return p.Allows(perm), nil
}
