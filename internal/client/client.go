// Package client implements the gRPC client of the AnyList Daemon.
package client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/mwopitz/anylist-daemon/internal/rpc"
)

// Client is used for communicating with the AnyList Daemon's gRPC server.
type Client struct {
	conn    *grpc.ClientConn
	service rpc.AnylistDaemonClient
}

// New creates an AnyList Daemon client and connects it to the server
// listening on the specified network address.
func New(network, address string, opts ...grpc.DialOption) (*Client, error) {
	target := fmt.Sprintf("%s:%s", network, address)
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to %s: %w", target, err)
	}
	return &Client{
		conn:    conn,
		service: rpc.NewAnylistDaemonClient(conn),
	}, nil
}

// Close closes the connection to the AnyList Daemon server.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// ServerStatus retrieves the status of the AnyList Daemon server.
func (c *Client) ServerStatus(ctx context.Context) (*rpc.Status, error) {
	out, err := c.service.GetStatus(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, err
	}
	st := &rpc.Status{}
	if err := rpc.FromStruct(out, st); err != nil {
		return nil, err
	}
	return st, nil
}

// CallService calls the named service with data. The returned response is
// nil unless returnResponse is set.
func (c *Client) CallService(
	ctx context.Context,
	service string,
	data map[string]any,
	returnResponse bool,
) (*rpc.ServiceResponse, error) {
	in, err := rpc.ToStruct(rpc.ServiceRequest{
		Service:        service,
		Data:           data,
		ReturnResponse: returnResponse,
	})
	if err != nil {
		return nil, err
	}
	out, err := c.service.CallService(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("cannot call %s: %w", service, err)
	}
	resp := &rpc.ServiceResponse{}
	if err := rpc.FromStruct(out, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ListEntities retrieves the state of all to-do list entities.
func (c *Client) ListEntities(ctx context.Context) (*rpc.EntityList, error) {
	out, err := c.service.ListEntities(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, err
	}
	list := &rpc.EntityList{}
	if err := rpc.FromStruct(out, list); err != nil {
		return nil, err
	}
	return list, nil
}
