package record

import "sync"

// Interner maps string record IDs to small stable int64 handles suitable
// for packing into a FrontendID. Handles start at 1 and are assigned in
// insertion order; 0 is reserved for "no record".
type Interner struct {
	mu      sync.Mutex
	handles map[string]int64
	ids     []string
}

func NewInterner() *Interner {
	return &Interner{handles: make(map[string]int64)}
}

// Intern returns the handle for id, assigning the next one on first sight.
func (in *Interner) Intern(id string) int64 {
	if id == "" {
		return 0
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if h, ok := in.handles[id]; ok {
		return h
	}
	in.ids = append(in.ids, id)
	h := int64(len(in.ids))
	in.handles[id] = h
	return h
}

// Lookup resolves a handle back to its record ID. Unknown handles,
// including 0, resolve to "".
func (in *Interner) Lookup(handle int64) string {
	in.mu.Lock()
	defer in.mu.Unlock()
	if handle < 1 || handle > int64(len(in.ids)) {
		return ""
	}
	return in.ids[handle-1]
}
