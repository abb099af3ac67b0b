package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// CellState distinguishes a hole that was never entered from one entered as zero
type CellState int

const (
	CellUnset  CellState = iota // No value has been written
	CellZero                    // A value of 0 was written
	CellScored                  // A positive stroke count was written
)

func (c CellState) String() string {
	switch c {
	case CellZero:
		return "zero"
	case CellScored:
		return "scored"
	default:
		return "unset"
	}
}

// ScoreCell is one (hole, participant) entry of a scorecard
type ScoreCell struct {
	Hole    int    `json:"hole"`
	UserID  UserID `json:"userId"`
	Strokes int    `json:"strokes"`
}

type cellKey struct {
	hole int
	user UserID
}

// Scorecard is a sparse two-level container of stroke counts keyed by
// (hole, participant). The zero value is an empty scorecard.
//
// On the wire it keeps the nested {"<hole>": {"<userId>": strokes}} shape
// of the stored match documents.
type Scorecard struct {
	cells map[cellKey]int
}

// NewScorecard builds a scorecard from a list of cells. Later cells win.
func NewScorecard(cells ...ScoreCell) Scorecard {
	var sc Scorecard
	for _, c := range cells {
		sc.Set(c.Hole, c.UserID, c.Strokes)
	}
	return sc
}

// Set writes a single cell
func (sc *Scorecard) Set(hole int, user UserID, strokes int) {
	if sc.cells == nil {
		sc.cells = make(map[cellKey]int)
	}
	sc.cells[cellKey{hole: hole, user: user}] = strokes
}

// Get returns the stored value for a cell and whether one is present
func (sc Scorecard) Get(hole int, user UserID) (int, bool) {
	v, ok := sc.cells[cellKey{hole: hole, user: user}]
	return v, ok
}

// State classifies a cell as unset, zero, or scored
func (sc Scorecard) State(hole int, user UserID) CellState {
	v, ok := sc.Get(hole, user)
	switch {
	case !ok:
		return CellUnset
	case v == 0:
		return CellZero
	default:
		return CellScored
	}
}

// Len returns the number of stored cells
func (sc Scorecard) Len() int {
	return len(sc.cells)
}

// Cells returns every stored cell ordered by hole, then user ID
func (sc Scorecard) Cells() []ScoreCell {
	cells := make([]ScoreCell, 0, len(sc.cells))
	for k, v := range sc.cells {
		cells = append(cells, ScoreCell{Hole: k.hole, UserID: k.user, Strokes: v})
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Hole != cells[j].Hole {
			return cells[i].Hole < cells[j].Hole
		}
		return cells[i].UserID < cells[j].UserID
	})
	return cells
}

// Clone returns an independent copy
func (sc Scorecard) Clone() Scorecard {
	if sc.cells == nil {
		return Scorecard{}
	}
	cells := make(map[cellKey]int, len(sc.cells))
	for k, v := range sc.cells {
		cells[k] = v
	}
	return Scorecard{cells: cells}
}

// MarshalJSON encodes the nested hole -> user -> strokes form
func (sc Scorecard) MarshalJSON() ([]byte, error) {
	nested := make(map[string]map[UserID]int)
	for _, c := range sc.Cells() {
		key := strconv.Itoa(c.Hole)
		if nested[key] == nil {
			nested[key] = make(map[UserID]int)
		}
		nested[key][c.UserID] = c.Strokes
	}
	return json.Marshal(nested)
}

// UnmarshalJSON decodes the nested hole -> user -> strokes form
func (sc *Scorecard) UnmarshalJSON(data []byte) error {
	var nested map[string]map[UserID]int
	if err := json.Unmarshal(data, &nested); err != nil {
		return err
	}
	sc.cells = nil
	for holeKey, row := range nested {
		hole, err := strconv.Atoi(holeKey)
		if err != nil {
			return fmt.Errorf("invalid hole key %q: %w", holeKey, err)
		}
		for user, strokes := range row {
			sc.Set(hole, user, strokes)
		}
	}
	return nil
}
