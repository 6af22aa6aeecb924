package models

import "sort"

// SortByStart orders challenges by their scheduled start. Ties keep their
// relative order.
func SortByStart(cs []Challenge, ascending bool) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i].StartsAt(), cs[j].StartsAt()
		if ascending {
			return a.Before(b)
		}
		return a.After(b)
	})
}
