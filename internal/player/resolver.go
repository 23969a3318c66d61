package player

// OrphanID is what Resolve returns for a key missing from the registry.
const OrphanID int64 = 0

// Resolver maps player keys to registry ids. It is built once per run and
// never changes afterwards, so it is safe for concurrent reads.
type Resolver struct {
	ids map[string]int64
}

func NewResolver(ids map[string]int64) *Resolver {
	cp := make(map[string]int64, len(ids))
	for k, v := range ids {
		cp[k] = v
	}
	return &Resolver{ids: cp}
}

// Resolve is an exact, case-sensitive lookup.
func (r *Resolver) Resolve(key string) int64 {
	if r == nil {
		return OrphanID
	}
	if id, ok := r.ids[key]; ok {
		return id
	}
	return OrphanID
}

func (r *Resolver) Len() int {
	if r == nil {
		return 0
	}
	return len(r.ids)
}
