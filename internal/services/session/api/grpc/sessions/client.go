package sessions

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls spar.v1.SessionService and decodes the Struct responses.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a client over cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any, opts ...grpc.CallOption) error {
	in, err := encode(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return err
	}
	return decode(out, resp)
}

// CreateSession creates a session.
func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest, opts ...grpc.CallOption) (Session, error) {
	var resp SessionResponse
	err := c.invoke(ctx, "CreateSession", req, &resp, opts...)
	return resp.Session, err
}

// GetSession reads a session.
func (c *Client) GetSession(ctx context.Context, id string, opts ...grpc.CallOption) (Session, error) {
	var resp SessionResponse
	err := c.invoke(ctx, "GetSession", GetSessionRequest{SessionID: id}, &resp, opts...)
	return resp.Session, err
}

// Generate produces events in a session.
func (c *Client) Generate(ctx context.Context, req GenerateRequest, opts ...grpc.CallOption) (GenerateResponse, error) {
	var resp GenerateResponse
	err := c.invoke(ctx, "Generate", req, &resp, opts...)
	return resp, err
}

// Tick advances a session's state.
func (c *Client) Tick(ctx context.Context, id string, ticks int, opts ...grpc.CallOption) (Session, error) {
	var resp SessionResponse
	err := c.invoke(ctx, "Tick", TickRequest{SessionID: id, Ticks: ticks}, &resp, opts...)
	return resp.Session, err
}

// ListEvents returns one page of a session's events.
func (c *Client) ListEvents(ctx context.Context, req ListEventsRequest, opts ...grpc.CallOption) (ListEventsResponse, error) {
	var resp ListEventsResponse
	err := c.invoke(ctx, "ListEvents", req, &resp, opts...)
	return resp, err
}
