package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/mwopitz/anylist-daemon/internal/anylist"
	"github.com/mwopitz/anylist-daemon/internal/anylist/anylisttest"
	"github.com/mwopitz/anylist-daemon/internal/rpc"
	"github.com/mwopitz/anylist-daemon/internal/services"
	"github.com/mwopitz/anylist-daemon/internal/todo"
)

type fakeBinary struct{}

func (fakeBinary) Available() bool { return true }
func (fakeBinary) PID() int        { return 4242 }

type testServer struct {
	backend *anylisttest.Server
	grpc    rpc.AnylistDaemonClient
	baseURL string
}

func startServer(t *testing.T) *testServer {
	t.Helper()
	backend := anylisttest.NewServer("Shopping", "Hardware")
	t.Cleanup(backend.Close)
	backend.Add("Shopping", "milk", false)
	backend.Add("Shopping", "eggs", true)

	client := anylist.New(backend.URL, "Shopping")
	ctx := context.Background()
	platform, err := todo.Setup(ctx, client, time.Minute, nil)
	require.NoError(t, err)

	srv := New(Options{
		Services: services.NewRegistry(client, nil),
		Entities: platform,
		Backend:  client,
		Binary:   fakeBinary{},
	})

	grpcListener := bufconn.Listen(1 << 20)
	httpListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.ServeListeners(grpcListener, httpListener) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, srv.StopGracefully(ctx))
		assert.NoError(t, <-done)
	})

	conn, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return grpcListener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &testServer{
		backend: backend,
		grpc:    rpc.NewAnylistDaemonClient(conn),
		baseURL: "http://" + httpListener.Addr().String(),
	}
}

func callService(t *testing.T, ts *testServer, req rpc.ServiceRequest) (rpc.ServiceResponse, error) {
	t.Helper()
	in, err := rpc.ToStruct(req)
	require.NoError(t, err)
	out, err := ts.grpc.CallService(context.Background(), in)
	if err != nil {
		return rpc.ServiceResponse{}, err
	}
	var resp rpc.ServiceResponse
	require.NoError(t, rpc.FromStruct(out, &resp))
	return resp, nil
}

func TestGRPCGetStatus(t *testing.T) {
	ts := startServer(t)

	out, err := ts.grpc.GetStatus(context.Background(), &emptypb.Empty{})
	require.NoError(t, err)
	var st rpc.Status
	require.NoError(t, rpc.FromStruct(out, &st))

	assert.True(t, st.Process.Running)
	assert.Positive(t, st.Process.PID)
	assert.Equal(t, ts.baseURL+"/api", st.APIBaseURL)
	assert.Equal(t, ts.backend.URL, st.ServerAddr)
	assert.Empty(t, st.ServerError)
	require.NotNil(t, st.BinaryServer)
	assert.Equal(t, 4242, st.BinaryServer.PID)
}

func TestGRPCCallService(t *testing.T) {
	ts := startServer(t)

	resp, err := callService(t, ts, rpc.ServiceRequest{
		Service:        services.AddItem,
		Data:           map[string]any{"name": " bread ", "notes": "rye"},
		ReturnResponse: true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.CallID)
	assert.Equal(t, http.StatusOK, services.Response(resp.Response).Code())

	items := ts.backend.Items("Shopping")
	require.Len(t, items, 3)
	assert.Equal(t, "bread", items[2].Name)
	assert.Equal(t, "rye", items[2].Notes)

	resp, err = callService(t, ts, rpc.ServiceRequest{Service: services.GetAllItems, ReturnResponse: true})
	require.NoError(t, err)
	assert.Equal(t, []any{"milk", "bread"}, resp.Response["uncheckedItems"])
	assert.Equal(t, []any{"eggs"}, resp.Response["checkedItems"])

	resp, err = callService(t, ts, rpc.ServiceRequest{
		Service: services.CheckItem,
		Data:    map[string]any{"name": "milk"},
	})
	require.NoError(t, err)
	assert.Nil(t, resp.Response)
	assert.True(t, ts.backend.Items("Shopping")[0].Checked)
}

func TestGRPCCallServiceErrors(t *testing.T) {
	ts := startServer(t)

	tests := []struct {
		name string
		req  rpc.ServiceRequest
		want codes.Code
	}{
		{"missing service", rpc.ServiceRequest{}, codes.InvalidArgument},
		{"unknown service", rpc.ServiceRequest{Service: "nope"}, codes.NotFound},
		{"response required", rpc.ServiceRequest{Service: services.GetItems}, codes.InvalidArgument},
		{"missing name", rpc.ServiceRequest{Service: services.RemoveItem, ReturnResponse: true}, codes.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := callService(t, ts, tt.req)
			assert.Equal(t, tt.want, status.Code(err))
		})
	}
}

func TestGRPCListEntities(t *testing.T) {
	ts := startServer(t)

	out, err := ts.grpc.ListEntities(context.Background(), &emptypb.Empty{})
	require.NoError(t, err)
	var list rpc.EntityList
	require.NoError(t, rpc.FromStruct(out, &list))

	require.Len(t, list.Entities, 2)
	shopping := list.Entities[0]
	assert.Equal(t, "anylist_Shopping", shopping.EntityID)
	require.NotNil(t, shopping.State)
	assert.Equal(t, 1, *shopping.State)
	assert.Equal(t, []string{"eggs"}, shopping.Attributes.CheckedItems)
}

func TestRESTCallService(t *testing.T) {
	ts := startServer(t)

	resp, err := http.Post(ts.baseURL+"/api/v1/services/get_items?return_response=true",
		"application/json", strings.NewReader(`{"list":"Shopping"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body rpc.ServiceResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []any{"milk"}, body.Response["items"])
}

func TestRESTCallServiceErrors(t *testing.T) {
	ts := startServer(t)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"unknown service", "/api/v1/services/nope", `{}`, http.StatusNotFound},
		{"response required", "/api/v1/services/get_items", ``, http.StatusBadRequest},
		{"invalid flag", "/api/v1/services/get_items?return_response=maybe", ``, http.StatusBadRequest},
		{"invalid body", "/api/v1/services/add_item", `[`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.baseURL+tt.path, "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestRESTStatus(t *testing.T) {
	ts := startServer(t)

	resp, err := http.Get(ts.baseURL + "/api/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st rpc.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, ts.baseURL+"/api", st.APIBaseURL)
}

func TestRESTTodo(t *testing.T) {
	ts := startServer(t)

	resp, err := http.Post(ts.baseURL+"/api/v1/todo/anylist_Hardware/items",
		"application/json", bytes.NewBufferString(`{"summary":"nails"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var state todo.State
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	require.Len(t, state.Items, 1)
	assert.Equal(t, "nails", state.Items[0].Summary)

	req, err := http.NewRequest(http.MethodDelete,
		ts.baseURL+"/api/v1/todo/anylist_Hardware/items/"+state.Items[0].UID, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, ts.backend.Items("Hardware"))

	resp, err = http.Get(ts.baseURL + "/api/v1/todo/anylist_Nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
