// Package rpcproto implements the Registry RPC transport: three logical
// gRPC services (Try/Post/Get) carried over mutual TLS, using a
// hand-authored service descriptor and a gob-based codec forced at dial
// time instead of protoc-generated stubs. Grounded directly in the
// teacher's internal/proxy/protocol/grpc/invoke.go and translator.go,
// which invoke arbitrary gRPC services through a dynamicCodec forced via
// grpc.ForceCodec - the same mechanism used here, with gob in place of
// wire-format protobuf since no .proto file is compiled in this build.
package rpcproto

import "github.com/tzafon/waypoint/internal/instance"

// TryAddRequest is the TryAdd payload: requires InstanceID and
// InstanceType, forbids every other field (spec.md §4.5).
type TryAddRequest struct {
	InstanceID   instance.ID
	InstanceType instance.Type
}

// BoolResponse wraps the boolean result shared by all Try/Post RPCs.
type BoolResponse struct {
	Value bool
}

// TryUpdateRequest is the TryUpdate payload: requires InstanceID; any
// subset of the remaining fields may be present.
type TryUpdateRequest struct {
	InstanceID          instance.ID
	Services            map[instance.ServiceKind]instance.ServiceEndpoint
	HealthCheck         *instance.HealthCheck
	Parent              *instance.Relationship
	KillInstanceRequest *instance.KillRequest
}

// PostRequest is the Post payload: requires InstanceID; only metric
// sub-records are allowed.
type PostRequest struct {
	InstanceID    instance.ID
	ProxyMetrics  *instance.ProxyMetrics
	SystemMetrics *instance.SystemMetrics
	GPUMetrics    *instance.GPUMetrics
	LLMMetrics    *instance.LLMMetrics
}

// AllInstancesQuery is the GetAllInstances payload.
type AllInstancesQuery struct {
	Type instance.Type
}

// AllInstancesResponse carries the matching instance ids.
type AllInstancesResponse struct {
	IDs []instance.ID
}

// GetInstanceRequest is the GetInstance payload.
type GetInstanceRequest struct {
	InstanceID instance.ID
}

// DescriptionResponse carries a full instance description.
type DescriptionResponse struct {
	Description *instance.Description
}
