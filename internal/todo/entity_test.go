package todo

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwopitz/anylist-daemon/internal/anylist"
	"github.com/mwopitz/anylist-daemon/internal/coordinator"
)

type call struct {
	Op      string
	Arg     string
	List    string
	Updates *anylist.ItemUpdates
}

// fakeClient is an in-memory AnyList server for a fixed set of lists.
type fakeClient struct {
	mu        sync.Mutex
	lists     []anylist.List
	items     map[string][]anylist.Item
	code      int
	itemsCode int
	calls     []call
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		lists: []anylist.List{{Name: "Shopping"}, {Name: "Hardware"}},
		items: map[string][]anylist.Item{
			"Shopping": {
				{ID: "1", Name: "milk", Notes: "2 bottles"},
				{ID: "2", Name: "eggs", Checked: true},
			},
			"Hardware": {},
		},
		code:      http.StatusOK,
		itemsCode: http.StatusOK,
	}
}

func (f *fakeClient) record(c call) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.code
}

func (f *fakeClient) AddItem(_ context.Context, name string, updates *anylist.ItemUpdates, list string) (int, error) {
	return f.record(call{"add", name, list, updates}), nil
}

func (f *fakeClient) RemoveItemByID(_ context.Context, id, list string) (int, error) {
	return f.record(call{"remove", id, list, nil}), nil
}

func (f *fakeClient) UpdateItem(_ context.Context, id string, updates *anylist.ItemUpdates, list string) (int, error) {
	return f.record(call{"update", id, list, updates}), nil
}

func (f *fakeClient) GetDetailedItems(_ context.Context, list string) (int, []anylist.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.itemsCode != http.StatusOK {
		return f.itemsCode, []anylist.Item{}, nil
	}
	return f.itemsCode, f.items[list], nil
}

func (f *fakeClient) GetLists(context.Context) (int, []anylist.List, error) {
	return http.StatusOK, f.lists, nil
}

func (f *fakeClient) setItemsCode(code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.itemsCode = code
}

func setupPlatform(t *testing.T) (*Platform, *fakeClient) {
	t.Helper()
	client := newFakeClient()
	p, err := Setup(context.Background(), client, time.Minute, nil)
	require.NoError(t, err)
	return p, client
}

func ptr[T any](v T) *T { return &v }

func TestSetup(t *testing.T) {
	p, _ := setupPlatform(t)

	require.Len(t, p.Entities(), 2)
	e, err := p.Entity("anylist_Shopping")
	require.NoError(t, err)
	assert.Equal(t, "Shopping", e.Name())
	assert.True(t, e.Available())
	assert.Equal(t, "Anylist Shopping", e.Coordinator().Name())

	_, err = p.Entity("anylist_Missing")
	assert.ErrorIs(t, err, ErrEntityNotFound)
}

func TestSetupFirstRefreshFails(t *testing.T) {
	client := newFakeClient()
	client.itemsCode = http.StatusInternalServerError

	_, err := Setup(context.Background(), client, time.Minute, nil)
	assert.ErrorIs(t, err, coordinator.ErrNotReady)
}

func TestEntityItems(t *testing.T) {
	p, _ := setupPlatform(t)
	e, err := p.Entity("anylist_Shopping")
	require.NoError(t, err)

	want := Items{
		{UID: "1", Summary: "milk", Status: StatusNeedsAction, Description: "2 bottles"},
		{UID: "2", Summary: "eggs", Status: StatusCompleted},
	}
	if diff := cmp.Diff(want, e.Items()); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, Attributes{
		SourceName:     "Shopping",
		CheckedItems:   []string{"eggs"},
		UncheckedItems: []string{"milk"},
	}, e.Attributes())

	state := e.State()
	require.NotNil(t, state.State)
	assert.Equal(t, 1, *state.State)
	assert.Equal(t, "anylist_Shopping", state.EntityID)
	assert.True(t, state.SupportedFeatures.Has(FeatureSetDescriptionItem))
	assert.False(t, state.SupportedFeatures.Has(FeatureMoveItem))
}

func TestEntityWithoutSnapshot(t *testing.T) {
	c := coordinator.New("empty", time.Minute, func(context.Context) ([]anylist.Item, error) {
		return nil, coordinator.NewUpdateFailedError(nil, "down")
	}, nil)
	e := NewEntity("Empty", c, newFakeClient())

	assert.Nil(t, e.Items())
	assert.Nil(t, e.State().State)
	assert.Empty(t, e.Attributes().CheckedItems)
	assert.False(t, e.Available())
}

func TestItemUpdates(t *testing.T) {
	tests := []struct {
		name string
		item Item
		want *anylist.ItemUpdates
	}{
		{
			name: "without status",
			item: Item{Summary: "milk"},
			want: &anylist.ItemUpdates{Name: ptr("milk"), Notes: ptr("")},
		},
		{
			name: "completed",
			item: Item{Summary: "milk", Description: "soy", Status: StatusCompleted},
			want: &anylist.ItemUpdates{Name: ptr("milk"), Notes: ptr("soy"), Checked: ptr(true)},
		},
		{
			name: "needs action",
			item: Item{Status: StatusNeedsAction},
			want: &anylist.ItemUpdates{Name: ptr(""), Notes: ptr(""), Checked: ptr(false)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.item.Updates())
		})
	}
}

func TestEntityActions(t *testing.T) {
	p, client := setupPlatform(t)
	e, err := p.Entity("anylist_Shopping")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, e.CreateItem(ctx, Item{Summary: "bread"}))
	require.NoError(t, e.UpdateItem(ctx, Item{UID: "1", Summary: "oat milk", Status: StatusCompleted}))
	require.NoError(t, e.DeleteItems(ctx, []string{"1", "2"}))

	want := []call{
		{"add", "bread", "Shopping", &anylist.ItemUpdates{Name: ptr("bread"), Notes: ptr("")}},
		{"update", "1", "Shopping", &anylist.ItemUpdates{Name: ptr("oat milk"), Notes: ptr(""), Checked: ptr(true)}},
		{"remove", "1", "Shopping", nil},
		{"remove", "2", "Shopping", nil},
	}
	if diff := cmp.Diff(want, client.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestEntityActionErrors(t *testing.T) {
	p, client := setupPlatform(t)
	e, err := p.Entity("anylist_Shopping")
	require.NoError(t, err)
	ctx := context.Background()

	err = e.UpdateItem(ctx, Item{UID: "404"})
	assert.True(t, IsItemNotFoundError(err))
	err = e.DeleteItems(ctx, []string{"1", "404"})
	assert.True(t, IsItemNotFoundError(err))
	assert.Empty(t, client.calls)

	assert.Error(t, e.CreateItem(ctx, Item{Summary: "   "}))

	client.code = http.StatusInternalServerError
	err = e.CreateItem(ctx, Item{Summary: "bread"})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
}

func TestEntityUnavailableAfterFailedRefresh(t *testing.T) {
	p, client := setupPlatform(t)
	e, err := p.Entity("anylist_Shopping")
	require.NoError(t, err)

	client.setItemsCode(http.StatusBadGateway)
	_ = e.Coordinator().Refresh(context.Background())

	assert.False(t, e.Available())
	// The last snapshot is still served.
	assert.Len(t, e.Items(), 2)
}
