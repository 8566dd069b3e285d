package main

// Detection is the outcome of comparing two snapshots.
type Detection struct {
	New Fileset
	// ResetBaseline is set when nothing appeared but the listing shrank, so
	// the baseline must become the current snapshot. Otherwise files deleted
	// and later re-added under the same name would never be seen as new.
	ResetBaseline bool
}

// detect computes current - previous. It does not modify either argument.
func detect(previous, current Fileset) Detection {
	added := current.Difference(previous)
	if added.Len() > 0 {
		return Detection{New: added}
	}
	return Detection{
		New:           added,
		ResetBaseline: current.Len() < previous.Len(),
	}
}
