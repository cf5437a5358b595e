package rpcproto

import (
	"context"

	"google.golang.org/grpc"
)

// TryServiceServer is implemented by the registry server to back the
// TryService RPC surface.
type TryServiceServer interface {
	TryAddInstance(ctx context.Context, req *TryAddRequest) (*BoolResponse, error)
	TryUpdateInstanceDescription(ctx context.Context, req *TryUpdateRequest) (*BoolResponse, error)
}

// PostServiceServer is implemented by the registry server to back the
// PostService RPC surface.
type PostServiceServer interface {
	PostInstanceDescription(ctx context.Context, req *PostRequest) (*BoolResponse, error)
}

// GetServiceServer is implemented by the registry server to back the
// GetService RPC surface.
type GetServiceServer interface {
	GetAllInstances(ctx context.Context, req *AllInstancesQuery) (*AllInstancesResponse, error)
	GetInstance(ctx context.Context, req *GetInstanceRequest) (*DescriptionResponse, error)
}

func tryAddInstanceHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(TryAddRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TryServiceServer).TryAddInstance(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/instancemanager.TryService/TryAddInstance"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TryServiceServer).TryAddInstance(ctx, req.(*TryAddRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func tryUpdateInstanceDescriptionHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(TryUpdateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TryServiceServer).TryUpdateInstanceDescription(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/instancemanager.TryService/TryUpdateInstanceDescription"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TryServiceServer).TryUpdateInstanceDescription(ctx, req.(*TryUpdateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func postInstanceDescriptionHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PostRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PostServiceServer).PostInstanceDescription(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/instancemanager.PostService/PostInstanceDescription"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PostServiceServer).PostInstanceDescription(ctx, req.(*PostRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getAllInstancesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(AllInstancesQuery)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GetServiceServer).GetAllInstances(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/instancemanager.GetService/GetAllInstances"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(GetServiceServer).GetAllInstances(ctx, req.(*AllInstancesQuery))
	}
	return interceptor(ctx, in, info, handler)
}

func getInstanceHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetInstanceRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GetServiceServer).GetInstance(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/instancemanager.GetService/GetInstance"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(GetServiceServer).GetInstance(ctx, req.(*GetInstanceRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// TryServiceDesc is the hand-authored grpc.ServiceDesc for TryService,
// standing in for a protoc-generated _ServiceDesc.
var TryServiceDesc = grpc.ServiceDesc{
	ServiceName: "instancemanager.TryService",
	HandlerType: (*TryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "TryAddInstance", Handler: tryAddInstanceHandler},
		{MethodName: "TryUpdateInstanceDescription", Handler: tryUpdateInstanceDescriptionHandler},
	},
}

// PostServiceDesc is the hand-authored grpc.ServiceDesc for PostService.
var PostServiceDesc = grpc.ServiceDesc{
	ServiceName: "instancemanager.PostService",
	HandlerType: (*PostServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PostInstanceDescription", Handler: postInstanceDescriptionHandler},
	},
}

// GetServiceDesc is the hand-authored grpc.ServiceDesc for GetService.
var GetServiceDesc = grpc.ServiceDesc{
	ServiceName: "instancemanager.GetService",
	HandlerType: (*GetServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetAllInstances", Handler: getAllInstancesHandler},
		{MethodName: "GetInstance", Handler: getInstanceHandler},
	},
}
