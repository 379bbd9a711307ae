package aggregate

// AllLevels is the group key used when award levels are not broken out.
const AllLevels = -1

// Entry holds one institution's counts, keyed by group then year.
type Entry struct {
	UnitID string

	groups     map[int]map[int]int
	groupOrder []int
}

// Groups returns the group keys in the order they were first seen.
func (e *Entry) Groups() []int {
	out := make([]int, len(e.groupOrder))
	copy(out, e.groupOrder)
	return out
}

// Counts returns the per-year counts for one group. Callers must not modify it.
func (e *Entry) Counts(group int) map[int]int {
	return e.groups[group]
}

// GroupTotal sums one group across all years.
func (e *Entry) GroupTotal(group int) int {
	total := 0
	for _, n := range e.groups[group] {
		total += n
	}
	return total
}

// Total sums every group across all years.
func (e *Entry) Total() int {
	total := 0
	for _, g := range e.groupOrder {
		total += e.GroupTotal(g)
	}
	return total
}

// YearTotals collapses all groups into one per-year map.
func (e *Entry) YearTotals() map[int]int {
	out := make(map[int]int)
	for _, g := range e.groupOrder {
		for year, n := range e.groups[g] {
			out[year] += n
		}
	}
	return out
}

func (e *Entry) add(group, year, count int) {
	years, ok := e.groups[group]
	if !ok {
		years = make(map[int]int)
		e.groups[group] = years
		e.groupOrder = append(e.groupOrder, group)
	}
	years[year] += count
}

// Accumulator sums completions per institution, group and year. Institutions
// keep the order in which they were first added. It is not safe for
// concurrent use; parallel scans each fill their own and Merge afterwards.
type Accumulator struct {
	order   []string
	entries map[string]*Entry
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{entries: make(map[string]*Entry)}
}

// Add folds count into the (unitID, group, year) cell. Repeated calls for the
// same cell add up.
func (a *Accumulator) Add(unitID string, group, year, count int) {
	a.entry(unitID).add(group, year, count)
}

// Merge adds every cell of other into a. Institutions and groups new to a are
// appended in other's order.
func (a *Accumulator) Merge(other *Accumulator) {
	for _, id := range other.order {
		src := other.entries[id]
		dst := a.entry(id)
		for _, g := range src.groupOrder {
			for year, n := range src.groups[g] {
				dst.add(g, year, n)
			}
		}
	}
}

// Entries returns the institutions in first-added order.
func (a *Accumulator) Entries() []*Entry {
	out := make([]*Entry, len(a.order))
	for i, id := range a.order {
		out[i] = a.entries[id]
	}
	return out
}

// Len returns the number of institutions.
func (a *Accumulator) Len() int {
	return len(a.order)
}

func (a *Accumulator) entry(unitID string) *Entry {
	e, ok := a.entries[unitID]
	if !ok {
		e = &Entry{UnitID: unitID, groups: make(map[int]map[int]int)}
		a.entries[unitID] = e
		a.order = append(a.order, unitID)
	}
	return e
}
