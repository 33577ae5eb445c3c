package kbucket

import (
	"strconv"

	cmap "github.com/orcaman/concurrent-map"
)

// oversizeIndex is the set of bucket class indices whose current
// membership strictly exceeds bagSize. It is a side index so
// removeLatestEntryExceedingBagSize never has to scan all numBuckets
// buckets looking for one that is over its soft cap.
type oversizeIndex struct {
	m cmap.ConcurrentMap
}

func newOversizeIndex() *oversizeIndex {
	return &oversizeIndex{m: cmap.New()}
}

func (o *oversizeIndex) add(class int) {
	o.m.Set(strconv.Itoa(class), struct{}{})
}

func (o *oversizeIndex) remove(class int) {
	o.m.Remove(strconv.Itoa(class))
}

// classes returns a snapshot of the currently oversize class indices. No
// ordering is guaranteed.
func (o *oversizeIndex) classes() []int {
	keys := o.m.Keys()
	out := make([]int, 0, len(keys))
	for _, k := range keys {
		if class, err := strconv.Atoi(k); err == nil {
			out = append(out, class)
		}
	}
	return out
}

// sync reconciles the index for a single class against its measured size,
// adding or removing the class so that it always reflects whether that
// bucket currently exceeds bagSize.
func (o *oversizeIndex) sync(class, size, bagSize int) {
	if size > bagSize {
		o.add(class)
	} else {
		o.remove(class)
	}
}
