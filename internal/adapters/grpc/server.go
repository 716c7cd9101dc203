// Package grpc exposes the engine's internal surface to the service mesh.
// Only the standard health protocol is served for now; sibling services probe
// it before routing traffic.
package grpc

import (
	"context"

	"google.golang.org/grpc"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/makersrow/escrow-engine/internal/application"
)

type InternalServer struct {
	grpc_health_v1.UnimplementedHealthServer
	service *application.Service
}

func NewInternalServer(service *application.Service) *InternalServer {
	return &InternalServer{service: service}
}

func Register(server grpc.ServiceRegistrar, svc *InternalServer) {
	grpc_health_v1.RegisterHealthServer(server, svc)
}

func (s *InternalServer) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	_ = s.service
	_ = req
	return &grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_SERVING}, nil
}

func (s *InternalServer) Watch(req *grpc_health_v1.HealthCheckRequest, stream grpc_health_v1.Health_WatchServer) error {
	_ = s.service
	_ = req
	return stream.Send(&grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_SERVING})
}
