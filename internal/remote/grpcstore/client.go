package grpcstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/cory-johannsen/tenthousand/internal/remote"
)

// Client implements remote.Store against a RecordStore service.
type Client struct {
	cc     grpc.ClientConnInterface
	logger *zap.Logger
}

// NewClient wraps an established connection.
//
// Precondition: cc and logger must be non-nil.
func NewClient(cc grpc.ClientConnInterface, logger *zap.Logger) *Client {
	return &Client{cc: cc, logger: logger}
}

// Dial connects to the RecordStore service at addr without transport
// security. The caller must close the returned connection.
func Dial(addr string, logger *zap.Logger, opts ...grpc.DialOption) (*Client, *grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("dialing record store %s: %w", addr, err)
	}
	return NewClient(conn, logger), conn, nil
}

// Get implements remote.Store.
func (c *Client) Get(ctx context.Context, code string) ([]byte, error) {
	out := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, methodGet, wrapperspb.String(code), out); err != nil {
		return nil, clientError("get", code, err)
	}
	return structToDoc(out)
}

// Set implements remote.Store.
func (c *Client) Set(ctx context.Context, code string, doc []byte) error {
	body, err := docToStruct(doc)
	if err != nil {
		return fmt.Errorf("set %q: %w", code, err)
	}
	req := envelope(map[string]*structpb.Value{
		fieldCode: structpb.NewStringValue(code),
		fieldDoc:  structpb.NewStructValue(body),
	})
	if err := c.cc.Invoke(ctx, methodSet, req, &emptypb.Empty{}); err != nil {
		return clientError("set", code, err)
	}
	return nil
}

// Update implements remote.Store. Path values must be representable as
// protobuf Values: strings, numbers, booleans, nil, maps and slices thereof.
func (c *Client) Update(ctx context.Context, code string, paths map[string]any) error {
	ps, err := structpb.NewStruct(paths)
	if err != nil {
		return fmt.Errorf("update %q: %w", code, err)
	}
	req := envelope(map[string]*structpb.Value{
		fieldCode:  structpb.NewStringValue(code),
		fieldPaths: structpb.NewStructValue(ps),
	})
	if err := c.cc.Invoke(ctx, methodUpdate, req, &emptypb.Empty{}); err != nil {
		return clientError("update", code, err)
	}
	return nil
}

// Delete implements remote.Store.
func (c *Client) Delete(ctx context.Context, code string) error {
	if err := c.cc.Invoke(ctx, methodDelete, wrapperspb.String(code), &emptypb.Empty{}); err != nil {
		return clientError("delete", code, err)
	}
	return nil
}

// List implements remote.Store.
func (c *Client) List(ctx context.Context) ([]string, error) {
	out := &structpb.ListValue{}
	if err := c.cc.Invoke(ctx, methodList, &emptypb.Empty{}, out); err != nil {
		return nil, clientError("list", "", err)
	}
	codes := make([]string, 0, len(out.GetValues()))
	for _, v := range out.GetValues() {
		codes = append(codes, v.GetStringValue())
	}
	return codes, nil
}

// Subscribe implements remote.Store. The first event is delivered before
// Subscribe returns; later ones arrive on a background goroutine. Cancel
// waits for that goroutine to finish.
func (c *Client) Subscribe(ctx context.Context, code string, fn func([]byte, bool)) (func(), error) {
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stopEarly := context.AfterFunc(ctx, cancel)

	stream, err := c.cc.NewStream(streamCtx, &serviceDesc.Streams[0], methodWatch)
	if err == nil {
		err = stream.SendMsg(wrapperspb.String(code))
	}
	if err == nil {
		err = stream.CloseSend()
	}
	var first *structpb.Struct
	if err == nil {
		first = &structpb.Struct{}
		err = stream.RecvMsg(first)
	}
	stopEarly()
	if err != nil {
		cancel()
		return nil, clientError("watch", code, err)
	}
	c.deliver(code, first, fn)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			ev := &structpb.Struct{}
			if err := stream.RecvMsg(ev); err != nil {
				if !errors.Is(err, io.EOF) && status.Code(err) != codes.Canceled {
					c.logger.Warn("watch stream ended", zap.String("code", code), zap.Error(err))
				}
				return
			}
			c.deliver(code, ev, fn)
		}
	}()

	return func() {
		cancel()
		wg.Wait()
	}, nil
}

func (c *Client) deliver(code string, ev *structpb.Struct, fn func([]byte, bool)) {
	fields := ev.GetFields()
	if !fields[fieldExists].GetBoolValue() {
		fn(nil, false)
		return
	}
	doc, err := structToDoc(fields[fieldDoc].GetStructValue())
	if err != nil {
		c.logger.Warn("skipping undecodable watch event", zap.String("code", code), zap.Error(err))
		return
	}
	fn(doc, true)
}

func clientError(op, code string, err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s %q: %w", op, code, remote.ErrNotFound)
	}
	return fmt.Errorf("%s %q: %w", op, code, err)
}

var _ remote.Store = (*Client)(nil)
