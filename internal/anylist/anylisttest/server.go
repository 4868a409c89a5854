// Package anylisttest provides an in-memory AnyList server for tests.
package anylisttest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/mwopitz/anylist-daemon/internal/anylist"
)

// Server is an AnyList server that keeps its lists in memory.
type Server struct {
	*httptest.Server

	mu     sync.Mutex
	order  []string
	lists  map[string][]anylist.Item
	nextID int
}

// NewServer starts a server with the specified lists, which are initially
// empty. The caller must call Close when done.
func NewServer(lists ...string) *Server {
	s := &Server{lists: make(map[string][]anylist.Item)}
	for _, name := range lists {
		s.order = append(s.order, name)
		s.lists[name] = []anylist.Item{}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /lists", s.getLists)
	mux.HandleFunc("GET /items", s.getItems)
	mux.HandleFunc("POST /add", s.add)
	mux.HandleFunc("POST /remove", s.remove)
	mux.HandleFunc("POST /update", s.update)
	mux.HandleFunc("POST /check", s.check)
	s.Server = httptest.NewServer(mux)
	return s
}

// Items returns a copy of the items of list.
func (s *Server) Items(list string) []anylist.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.lists[list])
}

// Add puts an item on list and returns its ID.
func (s *Server) Add(list, name string, checked bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(list, name, "", checked)
}

func (s *Server) addLocked(list, name, notes string, checked bool) string {
	s.nextID++
	id := strconv.Itoa(s.nextID)
	s.lists[list] = append(s.lists[list], anylist.Item{
		ID:      id,
		Name:    name,
		Checked: checked,
		Notes:   notes,
		List:    list,
	})
	return id
}

func (s *Server) find(list string, match func(anylist.Item) bool) int {
	return slices.IndexFunc(s.lists[list], match)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func readBody(r *http.Request) (map[string]any, bool) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, false
	}
	return body, true
}

func field(body map[string]any, key string) string {
	s, _ := body[key].(string)
	return s
}

func (s *Server) getLists(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, map[string]any{"lists": s.order})
}

func (s *Server) getItems(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, ok := s.lists[r.URL.Query().Get("list")]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"items": items})
}

func (s *Server) add(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(r)
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := field(body, "list")
	if _, ok := s.lists[list]; !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	name := field(body, "name")
	i := s.find(list, func(item anylist.Item) bool { return strings.EqualFold(item.Name, name) })
	if i >= 0 {
		if !s.lists[list][i].Checked {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		s.lists[list][i].Checked = false
		return
	}
	s.addLocked(list, name, field(body, "notes"), false)
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(r)
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := field(body, "list")
	id, name := field(body, "id"), field(body, "name")
	i := s.find(list, func(item anylist.Item) bool {
		if id != "" {
			return item.ID == id
		}
		return strings.EqualFold(item.Name, name)
	})
	if i < 0 {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	s.lists[list] = slices.Delete(s.lists[list], i, i+1)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(r)
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list, id := field(body, "list"), field(body, "id")
	i := s.find(list, func(item anylist.Item) bool { return item.ID == id })
	if i < 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	item := &s.lists[list][i]
	if v, ok := body["name"].(string); ok {
		item.Name = v
	}
	if v, ok := body["notes"].(string); ok {
		item.Notes = v
	}
	if v, ok := body["checked"].(bool); ok {
		item.Checked = v
	}
}

func (s *Server) check(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(r)
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list, name := field(body, "list"), field(body, "name")
	checked, _ := body["checked"].(bool)
	i := s.find(list, func(item anylist.Item) bool { return strings.EqualFold(item.Name, name) })
	if i < 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if s.lists[list][i].Checked == checked {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	s.lists[list][i].Checked = checked
}
