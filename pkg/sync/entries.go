package sync

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// entries classifies the names in a source directory against the names in
// its replica. Each list is sorted.
type entries struct {
	// missing are the names that only exist in the source.
	missing []string

	// shared are the names that exist on both sides.
	shared []string

	// abundant are the names that only exist in the replica.
	abundant []string
}

func classify(source, replica []string) entries {
	sourceSet := mapset.NewThreadUnsafeSet(source...)
	replicaSet := mapset.NewThreadUnsafeSet(replica...)
	return entries{
		missing:  sorted(sourceSet.Difference(replicaSet)),
		shared:   sorted(sourceSet.Intersect(replicaSet)),
		abundant: sorted(replicaSet.Difference(sourceSet)),
	}
}

// intersect returns the sorted names that are in both a and b.
func intersect(a, b []string) []string {
	return sorted(mapset.NewThreadUnsafeSet(a...).Intersect(mapset.NewThreadUnsafeSet(b...)))
}

func sorted(set mapset.Set[string]) []string {
	names := set.ToSlice()
	sort.Strings(names)
	return names
}
