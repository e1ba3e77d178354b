package ads

// Set is a set of ad identifiers.
type Set map[string]struct{}

// NewSet creates a set holding the given ids.
func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether id is in the set. A nil set contains nothing.
func (s Set) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id into the set.
func (s Set) Add(id string) {
	s[id] = struct{}{}
}

// Split partitions list into ads whose ID is already in history and ads
// that are not. Relative order is kept within each partition and every ad
// lands in exactly one of them.
func Split(list []Ad, history Set) (seen, unseen []Ad) {
	seen = []Ad{}
	unseen = []Ad{}

	for _, ad := range list {
		if history.Contains(ad.ID) {
			seen = append(seen, ad)
		} else {
			unseen = append(unseen, ad)
		}
	}

	return seen, unseen
}

// Unique returns list without repeated IDs, keeping the first occurrence.
// Listing pages often link the same ad from both its thumbnail and its title.
func Unique(list []Ad) []Ad {
	out := make([]Ad, 0, len(list))
	found := make(Set, len(list))

	for _, ad := range list {
		if found.Contains(ad.ID) {
			continue
		}
		found.Add(ad.ID)
		out = append(out, ad)
	}

	return out
}

// IDs returns the identifiers of list, in order.
func IDs(list []Ad) []string {
	ids := make([]string, 0, len(list))
	for _, ad := range list {
		ids = append(ids, ad.ID)
	}
	return ids
}
