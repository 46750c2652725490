package server

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/ChuLiYu/workclip/pkg/types"
)

// Client calls PlayerControl on a remote scheduler.
type Client struct {
	cc   grpc.ClientConnInterface
	conn *grpc.ClientConn
}

// Dial connects to addr without transport security.
func Dial(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return &Client{cc: conn, conn: conn}, nil
}

// NewClient wraps an existing connection. Close does not close cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Close closes the connection opened by Dial.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) Play(ctx context.Context, id types.PlayerID) error {
	return c.call(ctx, "Play", id)
}

func (c *Client) Pause(ctx context.Context, id types.PlayerID) error {
	return c.call(ctx, "Pause", id)
}

func (c *Client) Resume(ctx context.Context, id types.PlayerID) error {
	return c.call(ctx, "Resume", id)
}

func (c *Client) Stop(ctx context.Context, id types.PlayerID) error {
	return c.call(ctx, "Stop", id)
}

func (c *Client) Replay(ctx context.Context, id types.PlayerID) error {
	return c.call(ctx, "Replay", id)
}

func (c *Client) Seek(ctx context.Context, id types.PlayerID, percent float64) error {
	in, err := structpb.NewStruct(map[string]any{"id": string(id), "percent": percent})
	if err != nil {
		return err
	}
	return c.cc.Invoke(ctx, fullMethod("Seek"), in, new(wrapperspb.BoolValue))
}

func (c *Client) Status(ctx context.Context, id types.PlayerID) (types.PlayerStatus, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("Status"), wrapperspb.String(string(id)), out); err != nil {
		return types.PlayerStatus{}, err
	}
	return statusFromStruct(out), nil
}

func (c *Client) List(ctx context.Context) ([]types.PlayerStatus, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("List"), new(emptypb.Empty), out); err != nil {
		return nil, err
	}
	values := out.GetFields()["players"].GetListValue().GetValues()
	list := make([]types.PlayerStatus, 0, len(values))
	for _, v := range values {
		list = append(list, statusFromStruct(v.GetStructValue()))
	}
	return list, nil
}

func (c *Client) call(ctx context.Context, method string, id types.PlayerID) error {
	return c.cc.Invoke(ctx, fullMethod(method), wrapperspb.String(string(id)), new(wrapperspb.BoolValue))
}
