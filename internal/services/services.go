// Package services implements the named operations the daemon exposes to
// callers. Every service is a thin pass-through to the AnyList client that
// takes a data map and optionally returns a response map.
package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/mwopitz/anylist-daemon/internal/anylist"
)

// Service names.
const (
	AddItem     = "add_item"
	RemoveItem  = "remove_item"
	CheckItem   = "check_item"
	UncheckItem = "uncheck_item"
	GetItems    = "get_items"
	GetAllItems = "get_all_items"
)

// Data fields of the service calls.
const (
	FieldName  = "name"
	FieldNotes = "notes"
	FieldList  = "list"
)

var (
	// ErrUnknownService is returned when no service has the requested name.
	ErrUnknownService = errors.New("unknown service")
	// ErrResponseRequired is returned when a service that only works with a
	// response is called without requesting one.
	ErrResponseRequired = errors.New("service call requires responses but caller did not ask for responses")
	// ErrInvalidCall is returned when the call data does not match the
	// service's fields.
	ErrInvalidCall = errors.New("invalid service call")
)

// SupportsResponse describes whether a service returns a response.
type SupportsResponse int

const (
	// ResponseOptional services return a response only when asked to.
	ResponseOptional SupportsResponse = iota + 1
	// ResponseOnly services must be called with a response requested.
	ResponseOnly
)

func (s SupportsResponse) String() string {
	switch s {
	case ResponseOptional:
		return "optional"
	case ResponseOnly:
		return "only"
	default:
		return "none"
	}
}

// Client defines the AnyList operations the services call.
type Client interface {
	AddItem(ctx context.Context, name string, updates *anylist.ItemUpdates, list string) (int, error)
	RemoveItemByName(ctx context.Context, name, list string) (int, error)
	CheckItem(ctx context.Context, name, list string, checked bool) (int, error)
	GetItems(ctx context.Context, list string) (int, []string, error)
	GetAllItems(ctx context.Context, list string) (int, anylist.AllItems, error)
}

// Field describes one data field of a service.
type Field struct {
	Name        string
	Description string
	Required    bool
}

// Definition describes a service independent of the client it calls.
type Definition struct {
	Name        string
	Description string
	Fields      []Field
	Support     SupportsResponse
}

// Definitions returns the definitions of all services in registration order.
func Definitions() []Definition {
	itemFields := []Field{
		{Name: FieldName, Description: "The name of the item.", Required: true},
		{Name: FieldNotes, Description: "Notes for the item."},
		{Name: FieldList, Description: "The list to use. Defaults to the configured default list."},
	}
	listFields := []Field{
		{Name: FieldList, Description: "The list to read. Defaults to the configured default list."},
	}
	return []Definition{
		{AddItem, "Add an item to an AnyList list.", itemFields, ResponseOptional},
		{RemoveItem, "Remove an item from an AnyList list.", itemFields, ResponseOptional},
		{CheckItem, "Check an item on an AnyList list.", itemFields, ResponseOptional},
		{UncheckItem, "Uncheck an item on an AnyList list.", itemFields, ResponseOptional},
		{GetItems, "Get the unchecked items of an AnyList list.", listFields, ResponseOnly},
		{GetAllItems, "Get the unchecked and checked items of an AnyList list.", listFields, ResponseOnly},
	}
}

type handlerFunc func(ctx context.Context, data map[string]any) (Response, error)

// Service is a named operation bound to a client.
type Service struct {
	Definition

	handler handlerFunc
}

// Call is a single invocation of a service.
type Call struct {
	ID             uuid.UUID
	Service        string
	Data           map[string]any
	ReturnResponse bool
}

// NewCall creates a call of the named service with a fresh call ID.
func NewCall(service string, data map[string]any, returnResponse bool) *Call {
	if data == nil {
		data = map[string]any{}
	}
	return &Call{
		ID:             uuid.New(),
		Service:        service,
		Data:           data,
		ReturnResponse: returnResponse,
	}
}

// Response is the payload returned by a service.
type Response map[string]any

// Code returns the HTTP status code the AnyList server answered with.
func (r Response) Code() int {
	switch v := r["code"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

// Registry holds the services bound to an AnyList client.
type Registry struct {
	logger   *slog.Logger
	services []*Service
	byName   map[string]*Service
}

// NewRegistry registers all services on client.
func NewRegistry(client Client, logger *slog.Logger) *Registry {
	handlers := map[string]handlerFunc{
		AddItem: func(ctx context.Context, data map[string]any) (Response, error) {
			name, list, err := itemArgs(data)
			if err != nil {
				return nil, err
			}
			updates, err := itemUpdates(data)
			if err != nil {
				return nil, err
			}
			code, err := client.AddItem(ctx, name, updates, list)
			return Response{"code": code}, err
		},
		RemoveItem: func(ctx context.Context, data map[string]any) (Response, error) {
			name, list, err := itemArgs(data)
			if err != nil {
				return nil, err
			}
			code, err := client.RemoveItemByName(ctx, name, list)
			return Response{"code": code}, err
		},
		CheckItem:   checkHandler(client, true),
		UncheckItem: checkHandler(client, false),
		GetItems: func(ctx context.Context, data map[string]any) (Response, error) {
			list, err := stringField(data, FieldList)
			if err != nil {
				return nil, err
			}
			code, items, err := client.GetItems(ctx, list)
			return Response{"code": code, "items": items}, err
		},
		GetAllItems: func(ctx context.Context, data map[string]any) (Response, error) {
			list, err := stringField(data, FieldList)
			if err != nil {
				return nil, err
			}
			code, all, err := client.GetAllItems(ctx, list)
			return Response{
				"code":           code,
				"uncheckedItems": all.Unchecked,
				"checkedItems":   all.Checked,
			}, err
		},
	}

	r := &Registry{
		logger: cmp.Or(logger, slog.Default()),
		byName: make(map[string]*Service),
	}
	for _, def := range Definitions() {
		s := &Service{Definition: def, handler: handlers[def.Name]}
		r.services = append(r.services, s)
		r.byName[s.Name] = s
	}
	return r
}

func checkHandler(client Client, checked bool) handlerFunc {
	return func(ctx context.Context, data map[string]any) (Response, error) {
		name, list, err := itemArgs(data)
		if err != nil {
			return nil, err
		}
		code, err := client.CheckItem(ctx, name, list, checked)
		return Response{"code": code}, err
	}
}

// Services returns all services in registration order.
func (r *Registry) Services() []*Service {
	return r.services
}

// Service returns the service with the specified name.
func (r *Registry) Service(name string) (*Service, error) {
	s, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownService, name)
	}
	return s, nil
}

// Call invokes the service named by call. The response is nil unless the
// call requested one.
func (r *Registry) Call(ctx context.Context, call *Call) (Response, error) {
	s, err := r.Service(call.Service)
	if err != nil {
		return nil, err
	}
	if s.Support == ResponseOnly && !call.ReturnResponse {
		return nil, fmt.Errorf("%s: %w", s.Name, ErrResponseRequired)
	}

	logger := r.logger.With("service", s.Name, "call_id", call.ID.String())
	logger.DebugContext(ctx, "calling service")
	resp, err := s.handler(ctx, call.Data)
	if err != nil {
		logger.WarnContext(ctx, "service call failed", "cause", err)
		return nil, fmt.Errorf("call %s: %w", s.Name, err)
	}
	logger.InfoContext(ctx, "service called", "code", resp.Code())

	if !call.ReturnResponse {
		return nil, nil
	}
	return resp, nil
}

func itemArgs(data map[string]any) (name, list string, err error) {
	name, err = stringField(data, FieldName)
	if err != nil {
		return "", "", err
	}
	if strings.TrimSpace(name) == "" {
		return "", "", fmt.Errorf("%w: %s is required", ErrInvalidCall, FieldName)
	}
	list, err = stringField(data, FieldList)
	if err != nil {
		return "", "", err
	}
	return name, list, nil
}

// itemUpdates builds the updates of add_item from the fields present in data.
// Notes default to "", so the AnyList server always receives them.
func itemUpdates(data map[string]any) (*anylist.ItemUpdates, error) {
	updates := &anylist.ItemUpdates{Notes: new(string)}
	if _, ok := data[FieldName]; ok {
		name, err := stringField(data, FieldName)
		if err != nil {
			return nil, err
		}
		updates.Name = &name
	}
	if _, ok := data[FieldNotes]; ok {
		notes, err := stringField(data, FieldNotes)
		if err != nil {
			return nil, err
		}
		updates.Notes = &notes
	}
	if v, ok := data[anylist.AttrChecked]; ok {
		checked, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a boolean", ErrInvalidCall, anylist.AttrChecked)
		}
		updates.Checked = &checked
	}
	return updates, nil
}

// stringField returns the string value of key, or "" if it is absent.
func stringField(data map[string]any, key string) (string, error) {
	v, ok := data[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidCall, key)
	}
	return s, nil
}
