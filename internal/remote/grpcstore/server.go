package grpcstore

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/cory-johannsen/tenthousand/internal/remote"
)

// Server serves a remote.Store as the RecordStore service.
type Server struct {
	store  remote.Store
	logger *zap.Logger
}

// NewServer creates a Server backed by store.
//
// Precondition: store and logger must be non-nil.
func NewServer(store remote.Store, logger *zap.Logger) *Server {
	return &Server{store: store, logger: logger}
}

// Get returns the record for a room code.
func (s *Server) Get(ctx context.Context, code *wrapperspb.StringValue) (*structpb.Struct, error) {
	if code.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "room code is required")
	}
	doc, err := s.store.Get(ctx, code.GetValue())
	if err != nil {
		return nil, s.statusError("get", code.GetValue(), err)
	}
	out, err := docToStruct(doc)
	if err != nil {
		return nil, s.statusError("get", code.GetValue(), err)
	}
	return out, nil
}

// Set stores the doc field of req under its code field.
func (s *Server) Set(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	code, err := requireCode(req)
	if err != nil {
		return nil, err
	}
	body := req.GetFields()[fieldDoc].GetStructValue()
	if body == nil {
		return nil, status.Error(codes.InvalidArgument, "doc must be an object")
	}
	doc, err := structToDoc(body)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.store.Set(ctx, code, doc); err != nil {
		return nil, s.statusError("set", code, err)
	}
	return &emptypb.Empty{}, nil
}

// Update applies the paths field of req to the record under its code field.
func (s *Server) Update(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	code, err := requireCode(req)
	if err != nil {
		return nil, err
	}
	paths := req.GetFields()[fieldPaths].GetStructValue()
	if len(paths.GetFields()) == 0 {
		return nil, status.Error(codes.InvalidArgument, "paths must be a non-empty object")
	}
	if err := s.store.Update(ctx, code, paths.AsMap()); err != nil {
		return nil, s.statusError("update", code, err)
	}
	return &emptypb.Empty{}, nil
}

// Delete removes the record for a room code.
func (s *Server) Delete(ctx context.Context, code *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if code.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "room code is required")
	}
	if err := s.store.Delete(ctx, code.GetValue()); err != nil {
		return nil, s.statusError("delete", code.GetValue(), err)
	}
	return &emptypb.Empty{}, nil
}

// List returns every room code.
func (s *Server) List(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	codes, err := s.store.List(ctx)
	if err != nil {
		return nil, s.statusError("list", "", err)
	}
	values := make([]*structpb.Value, len(codes))
	for i, c := range codes {
		values[i] = structpb.NewStringValue(c)
	}
	return &structpb.ListValue{Values: values}, nil
}

// Watch streams the record for a room code: the current value first, then
// every change. Changes arriving faster than the client reads are coalesced
// to the latest record.
func (s *Server) Watch(code *wrapperspb.StringValue, stream grpc.ServerStream) error {
	if code.GetValue() == "" {
		return status.Error(codes.InvalidArgument, "room code is required")
	}
	ctx := stream.Context()
	box := newMailbox()
	cancel, err := s.store.Subscribe(ctx, code.GetValue(), box.put)
	if err != nil {
		return s.statusError("watch", code.GetValue(), err)
	}
	defer cancel()
	s.logger.Debug("watch started", zap.String("code", code.GetValue()))
	defer s.logger.Debug("watch ended", zap.String("code", code.GetValue()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-box.ready:
		}
		doc, ok := box.take()
		ev, err := watchEvent(doc, ok)
		if err != nil {
			s.logger.Warn("skipping undecodable record", zap.String("code", code.GetValue()), zap.Error(err))
			continue
		}
		if err := stream.SendMsg(ev); err != nil {
			return err
		}
	}
}

func watchEvent(doc []byte, ok bool) (*structpb.Struct, error) {
	fields := map[string]*structpb.Value{fieldExists: structpb.NewBoolValue(ok)}
	if ok {
		body, err := docToStruct(doc)
		if err != nil {
			return nil, err
		}
		fields[fieldDoc] = structpb.NewStructValue(body)
	}
	return envelope(fields), nil
}

func requireCode(req *structpb.Struct) (string, error) {
	code := req.GetFields()[fieldCode].GetStringValue()
	if code == "" {
		return "", status.Error(codes.InvalidArgument, "room code is required")
	}
	return code, nil
}

func (s *Server) statusError(op, code string, err error) error {
	if errors.Is(err, remote.ErrNotFound) {
		return status.Errorf(codes.NotFound, "room %q not found", code)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	s.logger.Error("record store failure", zap.String("op", op), zap.String("code", code), zap.Error(err))
	return status.Errorf(codes.Internal, "%s failed", op)
}

// mailbox holds the latest record delivered by a subscription.
type mailbox struct {
	mu    sync.Mutex
	doc   []byte
	ok    bool
	ready chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{ready: make(chan struct{}, 1)}
}

func (b *mailbox) put(doc []byte, ok bool) {
	b.mu.Lock()
	b.doc, b.ok = doc, ok
	b.mu.Unlock()
	select {
	case b.ready <- struct{}{}:
	default:
	}
}

func (b *mailbox) take() ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.doc, b.ok
}

var _ RecordStoreServer = (*Server)(nil)
