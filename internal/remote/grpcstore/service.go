// Package grpcstore exposes a remote.Store over gRPC and provides a client
// that implements remote.Store against such a service.
//
// Messages are protobuf well-known types: room codes travel as StringValue,
// records as Struct.
package grpcstore

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "tenthousand.remote.v1.RecordStore"

const (
	methodGet    = "/" + ServiceName + "/Get"
	methodSet    = "/" + ServiceName + "/Set"
	methodUpdate = "/" + ServiceName + "/Update"
	methodDelete = "/" + ServiceName + "/Delete"
	methodList   = "/" + ServiceName + "/List"
	methodWatch  = "/" + ServiceName + "/Watch"
)

// Field names of the Struct envelopes.
const (
	fieldCode   = "code"
	fieldDoc    = "doc"
	fieldPaths  = "paths"
	fieldExists = "exists"
)

// RecordStoreServer is the server side of the RecordStore service.
type RecordStoreServer interface {
	Get(ctx context.Context, code *wrapperspb.StringValue) (*structpb.Struct, error)
	Set(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)
	Update(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)
	Delete(ctx context.Context, code *wrapperspb.StringValue) (*emptypb.Empty, error)
	List(ctx context.Context, req *emptypb.Empty) (*structpb.ListValue, error)
	Watch(code *wrapperspb.StringValue, stream grpc.ServerStream) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RecordStoreServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Get", RecordStoreServer.Get),
		unary("Set", RecordStoreServer.Set),
		unary("Update", RecordStoreServer.Update),
		unary("Delete", RecordStoreServer.Delete),
		unary("List", RecordStoreServer.List),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       watchHandler,
			ServerStreams: true,
		},
	},
	Metadata: "tenthousand/remote/v1/record_store.proto",
}

// Register installs srv on s.
func Register(s grpc.ServiceRegistrar, srv RecordStoreServer) {
	s.RegisterService(&serviceDesc, srv)
}

func unary[Req any, Resp any](name string, call func(RecordStoreServer, context.Context, *Req) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(RecordStoreServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(RecordStoreServer).Watch(in, stream)
}

func docToStruct(doc []byte) (*structpb.Struct, error) {
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(doc, s); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	return s, nil
}

func structToDoc(s *structpb.Struct) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("encoding record: missing document")
	}
	doc, err := protojson.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	return doc, nil
}

func envelope(fields map[string]*structpb.Value) *structpb.Struct {
	return &structpb.Struct{Fields: fields}
}
