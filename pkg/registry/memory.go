package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process registry. Key and value names compare
// case-insensitively, as they do on Windows.
type Memory struct {
	mu   sync.RWMutex
	keys map[string]*memKey
}

type memKey struct {
	hive  Hive
	path  string
	order []string
	vals  map[string]memValue
}

type memValue struct {
	name string
	data interface{}
}

// NewMemory returns an empty registry with the standard hives present.
func NewMemory() *Memory {
	m := &Memory{keys: make(map[string]*memKey)}
	for _, h := range []Hive{LocalMachine, CurrentUser, Users} {
		m.ensure(h, "")
	}
	return m
}

func keyID(hive Hive, path string) string {
	return strings.ToLower(string(hive) + `\` + strings.Trim(path, `\`))
}

func (m *Memory) ensure(hive Hive, path string) *memKey {
	path = strings.Trim(path, `\`)
	id := keyID(hive, path)
	if k, ok := m.keys[id]; ok {
		return k
	}
	if path != "" {
		parent := ""
		if i := strings.LastIndex(path, `\`); i >= 0 {
			parent = path[:i]
		}
		m.ensure(hive, parent)
	}
	k := &memKey{hive: hive, path: path, vals: make(map[string]memValue)}
	m.keys[id] = k
	return k
}

// CreateKey creates path and all of its parents.
func (m *Memory) CreateKey(hive Hive, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensure(hive, path)
}

// SetString stores an SZ value, creating the key if needed.
func (m *Memory) SetString(hive Hive, path, name, value string) {
	m.set(hive, path, name, value)
}

// SetInteger stores a DWORD/QWORD value, creating the key if needed.
func (m *Memory) SetInteger(hive Hive, path, name string, value uint64) {
	m.set(hive, path, name, value)
}

func (m *Memory) set(hive Hive, path, name string, data interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.ensure(hive, path)
	lname := strings.ToLower(name)
	if _, ok := k.vals[lname]; !ok {
		k.order = append(k.order, lname)
	}
	k.vals[lname] = memValue{name: name, data: data}
}

// DeleteKey removes path and everything below it.
func (m *Memory) DeleteKey(hive Hive, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := keyID(hive, path)
	for k := range m.keys {
		if k == id || strings.HasPrefix(k, id+`\`) {
			delete(m.keys, k)
		}
	}
}

// OpenKey returns a snapshot-free view of the key; reads see later writes.
func (m *Memory) OpenKey(hive Hive, path string) (Key, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.keys[keyID(hive, path)]
	if !ok {
		return nil, fmt.Errorf("%w: %s\\%s", ErrNotExist, hive, path)
	}
	return &memHandle{m: m, key: k}, nil
}

type memHandle struct {
	m   *Memory
	key *memKey
}

func (h *memHandle) Path() string { return h.key.path }

func (h *memHandle) SubKeyNames() ([]string, error) {
	h.m.mu.RLock()
	defer h.m.mu.RUnlock()

	prefix := keyID(h.key.hive, h.key.path) + `\`
	if h.key.path == "" {
		prefix = strings.ToLower(string(h.key.hive)) + `\`
	}
	var names []string
	for id, k := range h.m.keys {
		if k == h.key || !strings.HasPrefix(id, prefix) {
			continue
		}
		if strings.Contains(id[len(prefix):], `\`) {
			continue
		}
		names = append(names, k.path[strings.LastIndex(k.path, `\`)+1:])
	}
	sort.Strings(names)
	return names, nil
}

func (h *memHandle) ValueNames() ([]string, error) {
	h.m.mu.RLock()
	defer h.m.mu.RUnlock()
	names := make([]string, 0, len(h.key.order))
	for _, lname := range h.key.order {
		names = append(names, h.key.vals[lname].name)
	}
	return names, nil
}

func (h *memHandle) value(name string) (interface{}, error) {
	h.m.mu.RLock()
	defer h.m.mu.RUnlock()
	v, ok := h.key.vals[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: value %s", ErrNotExist, name)
	}
	return v.data, nil
}

func (h *memHandle) StringValue(name string) (string, error) {
	data, err := h.value(name)
	if err != nil {
		return "", err
	}
	s, ok := data.(string)
	if !ok {
		return "", fmt.Errorf("%w: value %s is not a string", ErrUnexpectedType, name)
	}
	return s, nil
}

func (h *memHandle) IntegerValue(name string) (uint64, error) {
	data, err := h.value(name)
	if err != nil {
		return 0, err
	}
	n, ok := data.(uint64)
	if !ok {
		return 0, fmt.Errorf("%w: value %s is not an integer", ErrUnexpectedType, name)
	}
	return n, nil
}

func (h *memHandle) Close() error { return nil }

func equalFold(a, b string) bool {
	return strings.EqualFold(a, b)
}
