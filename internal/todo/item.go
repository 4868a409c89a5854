package todo

import "github.com/mwopitz/anylist-daemon/internal/anylist"

// Status is the completion state of a to-do item.
type Status string

const (
	// StatusNeedsAction marks an unchecked item.
	StatusNeedsAction Status = "needs_action"
	// StatusCompleted marks a checked item.
	StatusCompleted Status = "completed"
)

// Valid reports whether s is a known status. The empty status is valid and
// means "unchanged".
func (s Status) Valid() bool {
	switch s {
	case "", StatusNeedsAction, StatusCompleted:
		return true
	default:
		return false
	}
}

// Item is a single entry of a to-do list.
type Item struct {
	UID         string `json:"uid"`
	Summary     string `json:"summary"`
	Status      Status `json:"status,omitempty"`
	Description string `json:"description"`
}

// Items is a list of to-do items.
type Items []Item

func newItem(item *anylist.Item) Item {
	status := StatusNeedsAction
	if item.Checked {
		status = StatusCompleted
	}
	return Item{
		UID:         item.ID,
		Summary:     item.Name,
		Status:      status,
		Description: item.Notes,
	}
}

func newItems(items []anylist.Item) Items {
	out := make(Items, len(items))
	for i := range items {
		out[i] = newItem(&items[i])
	}
	return out
}

// Updates returns the AnyList update payload for item. Name and notes are
// always sent; the checked state only when the item has a status.
func (item *Item) Updates() *anylist.ItemUpdates {
	name := item.Summary
	notes := item.Description
	u := &anylist.ItemUpdates{Name: &name, Notes: &notes}
	if item.Status != "" {
		checked := item.Status == StatusCompleted
		u.Checked = &checked
	}
	return u
}

// Feature is a bit set of the operations an entity supports.
type Feature int

// Feature values match the host's todo-list entity features.
const (
	FeatureCreateItem         Feature = 1
	FeatureDeleteItem         Feature = 2
	FeatureUpdateItem         Feature = 4
	FeatureMoveItem           Feature = 8
	FeatureSetDueDate         Feature = 16
	FeatureSetDueDatetime     Feature = 32
	FeatureSetDescriptionItem Feature = 64
)

// Has reports whether f includes all bits of other.
func (f Feature) Has(other Feature) bool {
	return f&other == other
}
