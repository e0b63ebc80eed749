package state

// Origin says where the mutation currently being applied to an object came from.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

// Provenance maps object ids to the origin of the in-flight mutation. Ids that
// are not marked are local. Entries live only for the duration of one apply.
type Provenance struct {
	origins map[string]Origin
}

// NewProvenance returns an empty map; every id starts out local.
func NewProvenance() *Provenance {
	return &Provenance{origins: make(map[string]Origin)}
}

// Mark records origin for id and returns the func that releases it.
func (p *Provenance) Mark(id string, origin Origin) (release func()) {
	p.origins[id] = origin
	return func() {
		delete(p.origins, id)
	}
}

// Origin returns the origin marked for id, or OriginLocal.
func (p *Provenance) Origin(id string) Origin {
	if origin, ok := p.origins[id]; ok {
		return origin
	}
	return OriginLocal
}

// Len returns the number of ids currently marked.
func (p *Provenance) Len() int {
	return len(p.origins)
}
