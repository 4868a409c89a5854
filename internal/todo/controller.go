package todo

import (
	"cmp"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// EntityRegistry looks up entities.
type EntityRegistry interface {
	Entities() []*Entity
	Entity(id string) (*Entity, error)
}

// Controller handles requests to the REST API endpoints for the to-do list
// entities. Its handlers take the path parameters of the router separately.
type Controller struct {
	logger   *slog.Logger
	entities EntityRegistry
}

// NewController creates a new Controller serving the provided entities.
func NewController(entities EntityRegistry, logger *slog.Logger) *Controller {
	return &Controller{
		logger:   cmp.Or(logger, slog.Default()),
		entities: entities,
	}
}

func (c *Controller) respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		c.logger.Warn("cannot write response", "cause", err)
	}
}

func (c *Controller) fail(w http.ResponseWriter, r *http.Request, err *restError) {
	c.logger.InfoContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "cause", err)
	c.respond(w, err.status, err)
}

// ListEntities handles requests to retrieve the state of all entities.
func (c *Controller) ListEntities(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	c.logger.DebugContext(r.Context(), "handling request", "method", r.Method, "path", r.URL.Path)

	entities := c.entities.Entities()
	states := make([]*State, len(entities))
	for i, e := range entities {
		states[i] = e.State()
	}
	c.respond(w, http.StatusOK, states)
}

// GetEntity handles requests to retrieve the state of a single entity.
func (c *Controller) GetEntity(w http.ResponseWriter, r *http.Request, params map[string]string) {
	c.logger.DebugContext(r.Context(), "handling request", "method", r.Method, "path", r.URL.Path)

	e, err := c.entities.Entity(params["entity"])
	if err != nil {
		c.fail(w, r, newNotFoundError("cannot retrieve entity", err))
		return
	}
	c.respond(w, http.StatusOK, e.State())
}

type itemCreateDTO struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Status      Status `json:"status"`
}

// CreateItem handles requests to create a new item.
func (c *Controller) CreateItem(w http.ResponseWriter, r *http.Request, params map[string]string) {
	c.logger.DebugContext(r.Context(), "handling request", "method", r.Method, "path", r.URL.Path)

	state, err := c.doCreateItem(r, params)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	c.respond(w, http.StatusCreated, state)
}

func (c *Controller) doCreateItem(r *http.Request, params map[string]string) (*State, *restError) {
	e, err := c.entities.Entity(params["entity"])
	if err != nil {
		return nil, newNotFoundError("cannot create item", err)
	}
	dto := &itemCreateDTO{}
	if err := json.NewDecoder(r.Body).Decode(dto); err != nil {
		return nil, newBadRequestError("invalid item", err)
	}
	if strings.TrimSpace(dto.Summary) == "" {
		return nil, newBadRequestError("invalid item", errors.New("empty summary"))
	}
	if !dto.Status.Valid() {
		return nil, newBadRequestError("invalid item", errors.New("unknown status"))
	}
	item := Item{Summary: dto.Summary, Description: dto.Description, Status: dto.Status}
	if err := e.CreateItem(r.Context(), item); err != nil {
		return nil, newActionError("cannot create item", err)
	}
	return e.State(), nil
}

type itemUpdateDTO struct {
	Summary     *string `json:"summary"`
	Description *string `json:"description"`
	Status      *Status `json:"status"`
}

// UpdateItem handles requests to update an existing item. Fields absent from
// the request keep their current values.
func (c *Controller) UpdateItem(w http.ResponseWriter, r *http.Request, params map[string]string) {
	c.logger.DebugContext(r.Context(), "handling request", "method", r.Method, "path", r.URL.Path)

	state, err := c.doUpdateItem(r, params)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	c.respond(w, http.StatusOK, state)
}

func (c *Controller) doUpdateItem(r *http.Request, params map[string]string) (*State, *restError) {
	e, err := c.entities.Entity(params["entity"])
	if err != nil {
		return nil, newNotFoundError("cannot update item", err)
	}
	dto := itemUpdateDTO{}
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		return nil, newBadRequestError("invalid item data", err)
	}
	item, ok := e.Item(params["uid"])
	if !ok {
		return nil, newNotFoundError("cannot update item", NewItemNotFoundError(params["uid"]))
	}
	if dto.Summary != nil {
		item.Summary = *dto.Summary
	}
	if dto.Description != nil {
		item.Description = *dto.Description
	}
	if dto.Status != nil {
		if !dto.Status.Valid() {
			return nil, newBadRequestError("invalid item data", errors.New("unknown status"))
		}
		item.Status = *dto.Status
	}
	if err := e.UpdateItem(r.Context(), item); err != nil {
		return nil, newActionError("cannot update item", err)
	}
	return e.State(), nil
}

// DeleteItem handles requests to delete an item.
func (c *Controller) DeleteItem(w http.ResponseWriter, r *http.Request, params map[string]string) {
	c.logger.DebugContext(r.Context(), "handling request", "method", r.Method, "path", r.URL.Path)

	e, err := c.entities.Entity(params["entity"])
	if err != nil {
		c.fail(w, r, newNotFoundError("cannot delete item", err))
		return
	}
	if err := e.DeleteItems(r.Context(), []string{params["uid"]}); err != nil {
		c.fail(w, r, newActionError("cannot delete item", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Subscribe upgrades the request to a WebSocket connection and sends the
// entity state once immediately and again after every refresh.
func (c *Controller) Subscribe(w http.ResponseWriter, r *http.Request, params map[string]string) {
	e, err := c.entities.Entity(params["entity"])
	if err != nil {
		c.fail(w, r, newNotFoundError("cannot subscribe", err))
		return
	}

	// The server's write timeout must not cut long-lived connections.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "cannot accept websocket", "cause", err)
		return
	}
	defer conn.CloseNow()

	// The client never sends anything; CloseRead handles its close frame.
	ctx := conn.CloseRead(r.Context())

	updates := make(chan struct{}, 1)
	remove := e.Coordinator().AddListener(func() {
		select {
		case updates <- struct{}{}:
		default:
		}
	})
	defer remove()

	c.logger.InfoContext(ctx, "subscriber connected", "entity_id", e.ID())
	for {
		if err := wsjson.Write(ctx, conn, e.State()); err != nil {
			c.logger.DebugContext(ctx, "subscriber gone", "entity_id", e.ID(), "cause", err)
			return
		}
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-updates:
		}
	}
}
