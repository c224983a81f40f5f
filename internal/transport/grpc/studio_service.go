package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "studiobook.v1.StudioService"

// StudioServiceServer is the studio API on the default proto codec. Requests
// and records are structpb.Struct values keyed like the REST API, occurrence
// lists are structpb.ListValue, and deletes answer with emptypb.Empty.
type StudioServiceServer interface {
	GetOverview(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListOccurrences(context.Context, *structpb.Struct) (*structpb.ListValue, error)
	CreateInstructor(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteInstructor(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	CreateClient(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReassignClient(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteClient(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	CreateBooking(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateBooking(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteBooking(context.Context, *structpb.Struct) (*emptypb.Empty, error)
}

func unary[Req, Resp any](name string, call func(StudioServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(StudioServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(StudioServiceServer), ctx, req.(*Req))
			})
		},
	}
}

var studioServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StudioServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetOverview", StudioServiceServer.GetOverview),
		unary("ListOccurrences", StudioServiceServer.ListOccurrences),
		unary("CreateInstructor", StudioServiceServer.CreateInstructor),
		unary("DeleteInstructor", StudioServiceServer.DeleteInstructor),
		unary("CreateClient", StudioServiceServer.CreateClient),
		unary("ReassignClient", StudioServiceServer.ReassignClient),
		unary("DeleteClient", StudioServiceServer.DeleteClient),
		unary("CreateBooking", StudioServiceServer.CreateBooking),
		unary("UpdateBooking", StudioServiceServer.UpdateBooking),
		unary("DeleteBooking", StudioServiceServer.DeleteBooking),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "studiobook/v1/studio",
}

func RegisterStudioServiceServer(s grpc.ServiceRegistrar, srv StudioServiceServer) {
	s.RegisterService(&studioServiceDesc, srv)
}

// StudioClient calls a remote StudioService. The Decode helpers turn its
// replies back into domain values.
type StudioClient struct {
	cc grpc.ClientConnInterface
}

func NewStudioClient(cc grpc.ClientConnInterface) *StudioClient {
	return &StudioClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *StudioClient) GetOverview(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, "GetOverview", in, opts)
}

func (c *StudioClient) ListOccurrences(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	return invoke[structpb.ListValue](ctx, c.cc, "ListOccurrences", in, opts)
}

func (c *StudioClient) CreateInstructor(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, "CreateInstructor", in, opts)
}

func (c *StudioClient) DeleteInstructor(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, "DeleteInstructor", in, opts)
}

func (c *StudioClient) CreateClient(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, "CreateClient", in, opts)
}

func (c *StudioClient) ReassignClient(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, "ReassignClient", in, opts)
}

func (c *StudioClient) DeleteClient(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, "DeleteClient", in, opts)
}

func (c *StudioClient) CreateBooking(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, "CreateBooking", in, opts)
}

func (c *StudioClient) UpdateBooking(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, "UpdateBooking", in, opts)
}

func (c *StudioClient) DeleteBooking(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, "DeleteBooking", in, opts)
}
