// Package realtime fans out row change notifications to subscribers.
//
// Changes are hints: a subscriber that receives one should re-read the
// authoritative state from the store instead of trusting the row payload.
package realtime

import (
	"encoding/json"
	"fmt"
)

// Event is the kind of row change.
type Event string

const (
	Insert Event = "INSERT"
	Update Event = "UPDATE"
)

// Row is a changed record keyed by column name.
type Row map[string]interface{}

// Change is one notification published after a committed write.
type Change struct {
	Table string `json:"table"`
	Event Event  `json:"event"`
	Row   Row    `json:"row"`
}

// Predicate filters the rows a subscription is interested in.
type Predicate func(row Row) bool

// Eq matches rows whose column equals value.
func Eq(column string, value interface{}) Predicate {
	want := fmt.Sprint(value)
	return func(row Row) bool {
		got, ok := row[column]
		if !ok || got == nil {
			return false
		}
		return fmt.Sprint(got) == want
	}
}

// Any matches rows accepted by at least one of preds.
func Any(preds ...Predicate) Predicate {
	return func(row Row) bool {
		for _, p := range preds {
			if p(row) {
				return true
			}
		}
		return false
	}
}

// All matches every row.
func All() Predicate {
	return func(Row) bool { return true }
}

// RowOf converts a model into a Row through its JSON form so the payload
// carries the same column names clients see over HTTP.
func RowOf(v interface{}) (Row, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	row := Row{}
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, err
	}
	return row, nil
}
