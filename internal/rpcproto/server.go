package rpcproto

import (
	"context"
	"crypto/tls"
	"errors"

	"github.com/tzafon/waypoint/internal/instance"
	"github.com/tzafon/waypoint/internal/registry"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"
)

// NewGRPCServer constructs a *grpc.Server bound to tlsConfig (mutual TLS,
// see internal/tlsconf.ServerConfig) with the protocol-version interceptor
// installed, and registers the three Registry RPC surfaces against reg.
func NewGRPCServer(tlsConfig *tls.Config, reg *registry.Registry) *grpc.Server {
	creds := credentials.NewTLS(tlsConfig)
	srv := grpc.NewServer(
		grpc.Creds(creds),
		grpc.UnaryInterceptor(VersionUnaryServerInterceptor),
	)

	adapter := &registryServer{reg: reg}
	srv.RegisterService(&TryServiceDesc, adapter)
	srv.RegisterService(&PostServiceDesc, adapter)
	srv.RegisterService(&GetServiceDesc, adapter)

	return srv
}

// registryServer adapts internal/registry.Registry to the three RPC server
// interfaces, translating ErrNotFound/ErrShapeInvalid into gRPC status
// codes per spec.md §7 and leaving ConditionFailed outcomes as plain
// boolean false responses.
type registryServer struct {
	reg *registry.Registry
}

func (s *registryServer) TryAddInstance(ctx context.Context, req *TryAddRequest) (*BoolResponse, error) {
	ok, err := s.reg.TryAdd(req.InstanceID, req.InstanceType)
	if err != nil {
		return nil, toStatus(err)
	}
	return &BoolResponse{Value: ok}, nil
}

func (s *registryServer) TryUpdateInstanceDescription(ctx context.Context, req *TryUpdateRequest) (*BoolResponse, error) {
	var parent *instance.Relationship
	if req.Parent != nil {
		parent = &instance.Relationship{InstanceID: req.Parent.InstanceID}
	}
	ok, err := s.reg.TryUpdate(instance.Update{
		InstanceID:          req.InstanceID,
		Services:            req.Services,
		HealthCheck:         req.HealthCheck,
		Parent:              parent,
		KillInstanceRequest: req.KillInstanceRequest,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &BoolResponse{Value: ok}, nil
}

func (s *registryServer) PostInstanceDescription(ctx context.Context, req *PostRequest) (*BoolResponse, error) {
	ok, err := s.reg.Post(instance.PostUpdate{
		InstanceID:    req.InstanceID,
		ProxyMetrics:  req.ProxyMetrics,
		SystemMetrics: req.SystemMetrics,
		GPUMetrics:    req.GPUMetrics,
		LLMMetrics:    req.LLMMetrics,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &BoolResponse{Value: ok}, nil
}

func (s *registryServer) GetAllInstances(ctx context.Context, req *AllInstancesQuery) (*AllInstancesResponse, error) {
	return &AllInstancesResponse{IDs: s.reg.GetAllInstances(req.Type)}, nil
}

func (s *registryServer) GetInstance(ctx context.Context, req *GetInstanceRequest) (*DescriptionResponse, error) {
	desc, err := s.reg.GetInstance(req.InstanceID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &DescriptionResponse{Description: desc}, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, registry.ErrShapeInvalid):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
