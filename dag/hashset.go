package dag

import "dag-ledger/models"

// hashSet implements a basic unsorted set of hashes
type hashSet map[models.Hash]struct{}

func newHashSet(hashes ...models.Hash) hashSet {
	ret := make(hashSet, len(hashes))
	for _, h := range hashes {
		ret[h] = struct{}{}
	}
	return ret
}

func (s hashSet) insert(h models.Hash) {
	s[h] = struct{}{}
}

func (s hashSet) remove(h models.Hash) {
	delete(s, h)
}

// contains is nil-safe
func (s hashSet) contains(h models.Hash) bool {
	_, ok := s[h]
	return ok
}

// sorted returns the elements in byte order
func (s hashSet) sorted() []models.Hash {
	ret := make([]models.Hash, 0, len(s))
	for h := range s {
		ret = append(ret, h)
	}
	return models.SortHashes(ret)
}
