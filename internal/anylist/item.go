package anylist

import (
	"encoding/json"
	"strings"
)

// JSON keys used by the AnyList server API.
const (
	AttrID      = "id"
	AttrName    = "name"
	AttrList    = "list"
	AttrChecked = "checked"
	AttrNotes   = "notes"
)

// Item is a single entry of an AnyList list. Its identity is the
// server-assigned ID.
type Item struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Checked bool   `json:"checked"`
	Notes   string `json:"notes"`
	List    string `json:"list,omitempty"`
}

// ItemUpdates describes a partial modification of an item. Nil fields are
// left untouched.
type ItemUpdates struct {
	Name    *string
	Checked *bool
	Notes   *string
}

// Apply copies the fields present in u into the request body. The name is
// trimmed of surrounding whitespace. Apply is a no-op on a nil receiver.
func (u *ItemUpdates) Apply(body map[string]any) {
	if u == nil {
		return
	}
	if u.Name != nil {
		body[AttrName] = strings.TrimSpace(*u.Name)
	}
	if u.Checked != nil {
		body[AttrChecked] = *u.Checked
	}
	if u.Notes != nil {
		body[AttrNotes] = *u.Notes
	}
}

// List is a named collection of items.
type List struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// UnmarshalJSON accepts both a bare list name and an object with a name.
func (l *List) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*l = List{Name: name}
		return nil
	}
	type plain List
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*l = List(p)
	return nil
}

// AllItems holds the names of a list's items, split by their checked state.
type AllItems struct {
	Unchecked []string
	Checked   []string
}

// names returns the names of the items whose checked state equals checked.
// The result is never nil.
func names(items []Item, checked bool) []string {
	out := []string{}
	for _, item := range items {
		if item.Checked == checked {
			out = append(out, item.Name)
		}
	}
	return out
}
