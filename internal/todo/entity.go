// Package todo maps the AnyList lists to to-do list entities.
//
// Each entity is bound to a coordinator that polls the items of one list.
// Entity actions go straight to the AnyList client and request a refresh of
// the coordinator afterwards, so readers see the change on the next snapshot.
package todo

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/mwopitz/anylist-daemon/internal/anylist"
	"github.com/mwopitz/anylist-daemon/internal/coordinator"
)

// SupportedFeatures are the features of every AnyList entity.
const SupportedFeatures = FeatureCreateItem | FeatureDeleteItem | FeatureUpdateItem | FeatureSetDescriptionItem

// ItemService defines the AnyList operations entities perform.
type ItemService interface {
	AddItem(ctx context.Context, name string, updates *anylist.ItemUpdates, list string) (int, error)
	RemoveItemByID(ctx context.Context, id, list string) (int, error)
	UpdateItem(ctx context.Context, id string, updates *anylist.ItemUpdates, list string) (int, error)
}

// Attributes are the extra state attributes of an entity.
type Attributes struct {
	SourceName     string   `json:"source_name"`
	CheckedItems   []string `json:"checked_items"`
	UncheckedItems []string `json:"unchecked_items"`
}

// State is a point-in-time view of an entity.
type State struct {
	EntityID          string     `json:"entity_id"`
	Name              string     `json:"name"`
	Available         bool       `json:"available"`
	State             *int       `json:"state"`
	Items             Items      `json:"items"`
	Attributes        Attributes `json:"attributes"`
	SupportedFeatures Feature    `json:"supported_features"`
	LastUpdated       time.Time  `json:"last_updated"`
}

// Entity is the to-do list entity of a single AnyList list.
type Entity struct {
	list        string
	client      ItemService
	coordinator *coordinator.Coordinator[[]anylist.Item]
}

// NewEntity creates the entity of the specified list.
func NewEntity(list string, c *coordinator.Coordinator[[]anylist.Item], client ItemService) *Entity {
	return &Entity{
		list:        list,
		client:      client,
		coordinator: c,
	}
}

// ID returns the unique ID of the entity.
func (e *Entity) ID() string {
	return "anylist_" + e.list
}

// Name returns the display name of the entity.
func (e *Entity) Name() string {
	return e.list
}

// Coordinator returns the coordinator the entity reads from.
func (e *Entity) Coordinator() *coordinator.Coordinator[[]anylist.Item] {
	return e.coordinator
}

// Available reports whether the latest refresh succeeded.
func (e *Entity) Available() bool {
	return e.coordinator.LastUpdateSuccess()
}

// SupportedFeatures returns the features of the entity.
func (e *Entity) SupportedFeatures() Feature {
	return SupportedFeatures
}

// Items returns the items of the current snapshot, or nil if there is none.
func (e *Entity) Items() Items {
	data, ok := e.coordinator.Data()
	if !ok {
		return nil
	}
	return newItems(data)
}

// Item returns the item with the specified UID from the current snapshot.
func (e *Entity) Item(uid string) (Item, bool) {
	items := e.Items()
	i := slices.IndexFunc(items, func(item Item) bool { return item.UID == uid })
	if i < 0 {
		return Item{}, false
	}
	return items[i], true
}

// Attributes returns the extra state attributes of the entity.
func (e *Entity) Attributes() Attributes {
	attrs := Attributes{
		SourceName:     e.list,
		CheckedItems:   []string{},
		UncheckedItems: []string{},
	}
	data, _ := e.coordinator.Data()
	for _, item := range data {
		if item.Checked {
			attrs.CheckedItems = append(attrs.CheckedItems, item.Name)
		} else {
			attrs.UncheckedItems = append(attrs.UncheckedItems, item.Name)
		}
	}
	return attrs
}

// State returns a view of the entity. The state value is the number of
// items that still need action, or nil if there is no snapshot yet.
func (e *Entity) State() *State {
	s := &State{
		EntityID:          e.ID(),
		Name:              e.Name(),
		Available:         e.Available(),
		Items:             e.Items(),
		Attributes:        e.Attributes(),
		SupportedFeatures: e.SupportedFeatures(),
		LastUpdated:       e.coordinator.LastUpdate(),
	}
	if s.Items != nil {
		n := len(s.Attributes.UncheckedItems)
		s.State = &n
	}
	return s
}

// CreateItem adds item to the list and refreshes the snapshot.
func (e *Entity) CreateItem(ctx context.Context, item Item) error {
	if strings.TrimSpace(item.Summary) == "" {
		return fmt.Errorf("cannot create item: empty summary")
	}
	code, err := e.client.AddItem(ctx, item.Summary, item.Updates(), e.list)
	if err != nil {
		return err
	}
	e.refresh(ctx)
	if code != http.StatusOK && code != http.StatusNotModified {
		return &StatusError{Op: "create item", Code: code}
	}
	return nil
}

// DeleteItems removes the items with the specified UIDs and refreshes the
// snapshot once.
func (e *Entity) DeleteItems(ctx context.Context, uids []string) error {
	for _, uid := range uids {
		if _, ok := e.Item(uid); !ok {
			return NewItemNotFoundError(uid)
		}
	}
	defer e.refresh(ctx)
	for _, uid := range uids {
		code, err := e.client.RemoveItemByID(ctx, uid, e.list)
		if err != nil {
			return err
		}
		if code != http.StatusOK && code != http.StatusNotModified {
			return &StatusError{Op: "delete item", Code: code}
		}
	}
	return nil
}

// UpdateItem replaces the item with the same UID and refreshes the snapshot.
func (e *Entity) UpdateItem(ctx context.Context, item Item) error {
	if _, ok := e.Item(item.UID); !ok {
		return NewItemNotFoundError(item.UID)
	}
	code, err := e.client.UpdateItem(ctx, item.UID, item.Updates(), e.list)
	if err != nil {
		return err
	}
	e.refresh(ctx)
	if code != http.StatusOK {
		return &StatusError{Op: "update item", Code: code}
	}
	return nil
}

// refresh updates the snapshot. Its failure is recorded by the coordinator
// and surfaces as unavailability, not as an action error.
func (e *Entity) refresh(ctx context.Context) {
	_ = e.coordinator.Refresh(ctx)
}
