package comps

import (
	"github.com/nicktill/ipedscomps/pkg/aggregate"
	"github.com/nicktill/ipedscomps/pkg/directory"
)

// UnknownInstitution labels results whose id is missing from the directory.
const UnknownInstitution = "Unknown institution"

// Response is the flat lookup payload: one result per institution with
// counts summed across award levels (or restricted to one level).
type Response struct {
	CIP     string   `json:"cip"`
	AwLevel *int     `json:"awlevel,omitempty"`
	Years   []int    `json:"years"`
	Results []Result `json:"results"`
}

// GroupedResponse is the payload broken out by award level.
type GroupedResponse struct {
	CIP     string          `json:"cip"`
	AwLevel *int            `json:"awlevel,omitempty"`
	Years   []int           `json:"years"`
	Results []GroupedResult `json:"results"`
}

// InstitutionInfo is the directory part of every result.
type InstitutionInfo struct {
	UnitID   string `json:"unitid"`
	Name     string `json:"instnm"`
	State    string `json:"stabbr"`
	Control  string `json:"control"`
	Carnegie *int   `json:"carnegie"`
	WebAddr  string `json:"webaddr"`
}

// Result is one institution in the flat shape.
type Result struct {
	InstitutionInfo
	Completions map[int]int `json:"completions"`
	Total       int         `json:"total"`
}

// GroupedResult is one institution in the grouped shape.
type GroupedResult struct {
	InstitutionInfo
	Awards map[int]Award `json:"awards"`
}

// Award holds one award level's per-year counts.
type Award struct {
	Completions map[int]int `json:"completions"`
	Total       int         `json:"total"`
}

// Health is the readiness payload.
type Health struct {
	OK                 bool  `json:"ok"`
	Years              []int `json:"years"`
	InstitutionsLoaded int   `json:"institutionsLoaded"`
}

func infoFor(dir *directory.Directory, unitID string) InstitutionInfo {
	inst, ok := dir.Lookup(unitID)
	if !ok {
		return InstitutionInfo{UnitID: unitID, Name: UnknownInstitution}
	}
	return InstitutionInfo{
		UnitID:   unitID,
		Name:     inst.Name,
		State:    inst.State,
		Control:  inst.Control,
		Carnegie: inst.Carnegie,
		WebAddr:  inst.WebAddr,
	}
}

func flatResult(dir *directory.Directory, e *aggregate.Entry) Result {
	return Result{
		InstitutionInfo: infoFor(dir, e.UnitID),
		Completions:     e.YearTotals(),
		Total:           e.Total(),
	}
}

func groupedResult(dir *directory.Directory, e *aggregate.Entry) GroupedResult {
	awards := make(map[int]Award, len(e.Groups()))
	for _, level := range e.Groups() {
		counts := e.Counts(level)
		copied := make(map[int]int, len(counts))
		for year, n := range counts {
			copied[year] = n
		}
		awards[level] = Award{Completions: copied, Total: e.GroupTotal(level)}
	}
	return GroupedResult{
		InstitutionInfo: infoFor(dir, e.UnitID),
		Awards:          awards,
	}
}
