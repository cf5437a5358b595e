package rpcproto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// ProtoVersion is this build's compiled-in protocol version. Grounded in
// rust-shared/src/lib.rs's PROTO_VERSION (there, a build-time hash of the
// .proto sources; here, a plain constant since no .proto is compiled).
const ProtoVersion = "waypoint-instance-manager-v1"

const versionMetadataKey = "proto_version"

// VersionUnaryServerInterceptor rejects any call whose proto_version
// metadata is missing or does not match ProtoVersion, matching
// rust-shared/src/lib.rs's check_version.
func VersionUnaryServerInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.FailedPrecondition, "No version supplied")
	}
	values := md.Get(versionMetadataKey)
	if len(values) == 0 {
		return nil, status.Error(codes.FailedPrecondition, "No version supplied")
	}
	if values[0] != ProtoVersion {
		return nil, status.Error(codes.FailedPrecondition, "Wrong protocol versions")
	}
	return handler(ctx, req)
}

// VersionUnaryClientInterceptor attaches ProtoVersion to every outgoing
// call's metadata, matching rust-shared/src/lib.rs's add_version.
func VersionUnaryClientInterceptor(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	ctx = metadata.AppendToOutgoingContext(ctx, versionMetadataKey, ProtoVersion)
	return invoker(ctx, method, req, reply, cc, opts...)
}
