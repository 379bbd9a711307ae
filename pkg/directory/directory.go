// Package directory holds the institution directory loaded once at startup.
package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/nicktill/ipedscomps/pkg/tabular"
)

// Sector labels derived from the directory's CONTROL code.
const (
	ControlPublic    = "Public"
	ControlNonprofit = "Private nonprofit"
	ControlForProfit = "Private for-profit"
	ControlUnknown   = "Unknown"
)

// Institution is one directory entry.
type Institution struct {
	UnitID   string
	Name     string
	State    string
	Control  string
	WebAddr  string
	Carnegie *int
}

// Directory maps institution ids to their records. It is never modified after
// Load returns, so concurrent readers need no locking.
type Directory struct {
	byID map[string]Institution
}

// New builds a directory from already-parsed records. Records with an empty
// id are ignored; a later record replaces an earlier one with the same id.
func New(records []Institution) *Directory {
	d := &Directory{byID: make(map[string]Institution, len(records))}
	for _, inst := range records {
		if inst.UnitID == "" {
			continue
		}
		d.byID[inst.UnitID] = inst
	}
	return d
}

// Load reads every row of src into a new Directory. Rows without an id are
// skipped. Any read or parse failure is returned; callers treat it as fatal.
func Load(ctx context.Context, src tabular.Source) (*Directory, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	d := &Directory{byID: make(map[string]Institution, 8192)}
	for row, err := range tabular.Scan(rc) {
		if err != nil {
			return nil, fmt.Errorf("failed to load directory %s: %w", src.Name(), err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		inst := fromRow(row)
		if inst.UnitID == "" {
			continue
		}
		d.byID[inst.UnitID] = inst
	}

	return d, nil
}

// Lookup returns the institution with the given id and whether it exists.
func (d *Directory) Lookup(id string) (Institution, bool) {
	inst, ok := d.byID[id]
	return inst, ok
}

// Len returns the number of loaded institutions.
func (d *Directory) Len() int {
	return len(d.byID)
}

func fromRow(row tabular.Row) Institution {
	inst := Institution{
		UnitID:  row.Get(tabular.UnitIDKeys),
		Name:    row.Get(tabular.NameKeys),
		State:   row.Get(tabular.StateKeys),
		Control: ControlLabel(row.Get(tabular.ControlKeys)),
		WebAddr: row.Get(tabular.WebAddrKeys),
	}
	if n, ok := tabular.ParseOptionalInt(row.Get(tabular.CarnegieKeys)); ok {
		inst.Carnegie = &n
	}
	return inst
}

// ControlLabel maps a CONTROL code to its sector label.
func ControlLabel(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ControlUnknown
	}
	switch code[0] {
	case '1':
		return ControlPublic
	case '2':
		return ControlNonprofit
	case '3':
		return ControlForProfit
	default:
		return ControlUnknown
	}
}
