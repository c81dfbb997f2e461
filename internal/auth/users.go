package auth

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
)

// UserID identifies one user. IDs are small positive integers, unique
// within the table and stable across restarts.
type UserID int

// ParseUserID parses the string form used in session bindings.
func ParseUserID(s string) (UserID, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid user id %q", s)
	}
	return UserID(n), nil
}

func (id UserID) String() string {
	return strconv.Itoa(int(id))
}

// UserInfo holds one user's display name and password verifier. The
// verifier is opaque to the rest of the system: it is only ever handed
// back to ValidatePassword.
type UserInfo struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Table is the credentials table: UserID -> UserInfo. Reads dominate;
// writes only happen through the offline useradmin tool.
type Table struct {
	mu    sync.RWMutex
	users map[UserID]UserInfo
}

// NewTable returns an empty credentials table.
func NewTable() *Table {
	return &Table{users: make(map[UserID]UserInfo)}
}

// ValidatePassword checks name and password against the table and
// returns the matching user's ID. The password comparison is
// constant-time.
func (t *Table) ValidatePassword(name, password string) (UserID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for id, info := range t.users {
		if info.Name != name {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(info.Password), []byte(password)) == 1 {
			return id, true
		}
		return 0, false
	}
	return 0, false
}

// Lookup returns the user info for an ID.
func (t *Table) Lookup(id UserID) (UserInfo, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	info, ok := t.users[id]
	return info, ok
}

// AddUser inserts a new user under the next free ID. Names must be
// unique because login identifies users by name.
func (t *Table) AddUser(name, password string) (UserID, error) {
	if name == "" {
		return 0, fmt.Errorf("user name must not be empty")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	next := UserID(1)
	for id, info := range t.users {
		if info.Name == name {
			return 0, fmt.Errorf("user %q already exists", name)
		}
		if id >= next {
			next = id + 1
		}
	}

	t.users[next] = UserInfo{Name: name, Password: password}
	return next, nil
}

// Len returns the number of users.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.users)
}

// IDs returns all user IDs in ascending order.
func (t *Table) IDs() []UserID {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]UserID, 0, len(t.users))
	for id := range t.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// tableDoc is the persisted shape of the table.
type tableDoc struct {
	Users map[UserID]UserInfo `json:"users"`
}

// MarshalJSON serializes the table under its read lock.
func (t *Table) MarshalJSON() ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return json.Marshal(tableDoc{Users: t.users})
}

// UnmarshalJSON replaces the table contents with the persisted state.
func (t *Table) UnmarshalJSON(data []byte) error {
	var doc tableDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.Users == nil {
		doc.Users = make(map[UserID]UserInfo)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.users = doc.Users
	return nil
}
