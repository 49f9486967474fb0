// Code generated manually for bootstrap. Replace with protoc-generated code for production.
package distpb

import (
	context "context"
	fmt "fmt"

	grpc "google.golang.org/grpc"
	codes "google.golang.org/grpc/codes"
	status "google.golang.org/grpc/status"
)

// Compile-time assertions.
var _ context.Context
var _ grpc.ClientConnInterface

const _ = grpc.SupportPackageIsVersion7

type RegisterRequest struct {
	Rank int32  `protobuf:"varint,1,opt,name=rank,proto3" json:"rank,omitempty"`
	Addr string `protobuf:"bytes,2,opt,name=addr,proto3" json:"addr,omitempty"`
}

func (m *RegisterRequest) Reset()         { *m = RegisterRequest{} }
func (m *RegisterRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (*RegisterRequest) ProtoMessage()    {}

type RegisterResponse struct {
	WorldSize int32 `protobuf:"varint,1,opt,name=world_size,json=worldSize,proto3" json:"world_size,omitempty"`
}

func (m *RegisterResponse) Reset()         { *m = RegisterResponse{} }
func (m *RegisterResponse) String() string { return fmt.Sprintf("%+v", *m) }
func (*RegisterResponse) ProtoMessage()    {}

type WorldRequest struct{}

func (m *WorldRequest) Reset()         { *m = WorldRequest{} }
func (m *WorldRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (*WorldRequest) ProtoMessage()    {}

type PeerInfo struct {
	Rank int32  `protobuf:"varint,1,opt,name=rank,proto3" json:"rank,omitempty"`
	Addr string `protobuf:"bytes,2,opt,name=addr,proto3" json:"addr,omitempty"`
}

func (m *PeerInfo) Reset()         { *m = PeerInfo{} }
func (m *PeerInfo) String() string { return fmt.Sprintf("%+v", *m) }
func (*PeerInfo) ProtoMessage()    {}

type WorldResponse struct {
	Ready bool        `protobuf:"varint,1,opt,name=ready,proto3" json:"ready,omitempty"`
	Peers []*PeerInfo `protobuf:"bytes,2,rep,name=peers,proto3" json:"peers,omitempty"`
}

func (m *WorldResponse) Reset()         { *m = WorldResponse{} }
func (m *WorldResponse) String() string { return fmt.Sprintf("%+v", *m) }
func (*WorldResponse) ProtoMessage()    {}

type TransferRequest struct {
	Seq      uint64    `protobuf:"varint,1,opt,name=seq,proto3" json:"seq,omitempty"`
	Phase    int32     `protobuf:"varint,2,opt,name=phase,proto3" json:"phase,omitempty"`
	Chunk    int32     `protobuf:"varint,3,opt,name=chunk,proto3" json:"chunk,omitempty"`
	FromRank int32     `protobuf:"varint,4,opt,name=from_rank,json=fromRank,proto3" json:"from_rank,omitempty"`
	Data     []float32 `protobuf:"fixed32,5,rep,packed,name=data,proto3" json:"data,omitempty"`
}

func (m *TransferRequest) Reset()         { *m = TransferRequest{} }
func (m *TransferRequest) String() string { return fmt.Sprintf("seq=%d phase=%d chunk=%d from=%d n=%d", m.Seq, m.Phase, m.Chunk, m.FromRank, len(m.Data)) }
func (*TransferRequest) ProtoMessage()    {}

type TransferResponse struct{}

func (m *TransferResponse) Reset()         { *m = TransferResponse{} }
func (m *TransferResponse) String() string { return fmt.Sprintf("%+v", *m) }
func (*TransferResponse) ProtoMessage()    {}

// Client API
type CollectiveClient interface {
	Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error)
	GetWorld(ctx context.Context, in *WorldRequest, opts ...grpc.CallOption) (*WorldResponse, error)
	Transfer(ctx context.Context, in *TransferRequest, opts ...grpc.CallOption) (*TransferResponse, error)
}

type collectiveClient struct {
	cc grpc.ClientConnInterface
}

func NewCollectiveClient(cc grpc.ClientConnInterface) CollectiveClient {
	return &collectiveClient{cc}
}

func (c *collectiveClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error) {
	out := new(RegisterResponse)
	err := c.cc.Invoke(ctx, "/collective.Collective/Register", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *collectiveClient) GetWorld(ctx context.Context, in *WorldRequest, opts ...grpc.CallOption) (*WorldResponse, error) {
	out := new(WorldResponse)
	err := c.cc.Invoke(ctx, "/collective.Collective/GetWorld", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *collectiveClient) Transfer(ctx context.Context, in *TransferRequest, opts ...grpc.CallOption) (*TransferResponse, error) {
	out := new(TransferResponse)
	err := c.cc.Invoke(ctx, "/collective.Collective/Transfer", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Server API
type CollectiveServer interface {
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	GetWorld(context.Context, *WorldRequest) (*WorldResponse, error)
	Transfer(context.Context, *TransferRequest) (*TransferResponse, error)
}

// UnimplementedCollectiveServer can be embedded for forward compatibility.
type UnimplementedCollectiveServer struct{}

func (*UnimplementedCollectiveServer) Register(context.Context, *RegisterRequest) (*RegisterResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Register not implemented")
}

func (*UnimplementedCollectiveServer) GetWorld(context.Context, *WorldRequest) (*WorldResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetWorld not implemented")
}

func (*UnimplementedCollectiveServer) Transfer(context.Context, *TransferRequest) (*TransferResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Transfer not implemented")
}

func RegisterCollectiveServer(s *grpc.Server, srv CollectiveServer) {
	s.RegisterService(&_Collective_serviceDesc, srv)
}

func _Collective_Register_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RegisterRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CollectiveServer).Register(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/collective.Collective/Register",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CollectiveServer).Register(ctx, req.(*RegisterRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Collective_GetWorld_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(WorldRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CollectiveServer).GetWorld(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/collective.Collective/GetWorld",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CollectiveServer).GetWorld(ctx, req.(*WorldRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Collective_Transfer_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(TransferRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CollectiveServer).Transfer(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/collective.Collective/Transfer",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CollectiveServer).Transfer(ctx, req.(*TransferRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var _Collective_serviceDesc = grpc.ServiceDesc{
	ServiceName: "collective.Collective",
	HandlerType: (*CollectiveServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Register",
			Handler:    _Collective_Register_Handler,
		},
		{
			MethodName: "GetWorld",
			Handler:    _Collective_GetWorld_Handler,
		},
		{
			MethodName: "Transfer",
			Handler:    _Collective_Transfer_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "collective.proto",
}
