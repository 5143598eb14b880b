package api

import (
	"context"
	"fmt"
	"net"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/miradorstack/mirador-zones/internal/config"
)

// ZoneAnalyticsServiceName is the fully-qualified gRPC service name.
const ZoneAnalyticsServiceName = "mirador.zones.v1.ZoneAnalytics"

// ZoneAnalyticsServer is the server API for the ZoneAnalytics service. Requests and
// responses use the well-known protobuf types so no generated code is required.
type ZoneAnalyticsServer interface {
	UploadDataset(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
	GetDurations(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MatchScenario(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListScenarios(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetStalled(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// ZoneAnalyticsServiceDesc describes the ZoneAnalytics service for grpc.Server.RegisterService.
var ZoneAnalyticsServiceDesc = grpc.ServiceDesc{
	ServiceName: ZoneAnalyticsServiceName,
	HandlerType: (*ZoneAnalyticsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "UploadDataset", Handler: unaryHandler("UploadDataset", func() *wrapperspb.BytesValue { return new(wrapperspb.BytesValue) }, ZoneAnalyticsServer.UploadDataset)},
		{MethodName: "GetDurations", Handler: unaryHandler("GetDurations", func() *structpb.Struct { return new(structpb.Struct) }, ZoneAnalyticsServer.GetDurations)},
		{MethodName: "MatchScenario", Handler: unaryHandler("MatchScenario", func() *structpb.Struct { return new(structpb.Struct) }, ZoneAnalyticsServer.MatchScenario)},
		{MethodName: "ListScenarios", Handler: unaryHandler("ListScenarios", func() *emptypb.Empty { return new(emptypb.Empty) }, ZoneAnalyticsServer.ListScenarios)},
		{MethodName: "GetStalled", Handler: unaryHandler("GetStalled", func() *emptypb.Empty { return new(emptypb.Empty) }, ZoneAnalyticsServer.GetStalled)},
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterZoneAnalyticsServer registers srv on s.
func RegisterZoneAnalyticsServer(s grpc.ServiceRegistrar, srv ZoneAnalyticsServer) {
	s.RegisterService(&ZoneAnalyticsServiceDesc, srv)
}

func unaryHandler[Req any](method string, newReq func() Req, call func(ZoneAnalyticsServer, context.Context, Req) (*structpb.Struct, error)) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	fullMethod := "/" + ZoneAnalyticsServiceName + "/" + method
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ZoneAnalyticsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(ZoneAnalyticsServer), ctx, req.(Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Server wraps the gRPC server implementation and lifecycle helpers.
type Server struct {
	cfg        config.ServerConfig
	grpcServer *grpc.Server
	listener   net.Listener
}

// NewServer constructs a gRPC server bound to the configured address.
func NewServer(cfg config.ServerConfig, service ZoneAnalyticsServer, opts ...grpc.ServerOption) (*Server, error) {
	lis, err := net.Listen("tcp", cfg.GRPCAddress)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.GRPCAddress, err)
	}

	grpc_prometheus.EnableHandlingTimeHistogram()
	serverOpts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(grpc_prometheus.UnaryServerInterceptor),
		grpc.ChainStreamInterceptor(grpc_prometheus.StreamServerInterceptor),
	}
	if cfg.MaxUploadBytes > 0 {
		serverOpts = append(serverOpts, grpc.MaxRecvMsgSize(int(cfg.MaxUploadBytes)+1024))
	}
	serverOpts = append(serverOpts, opts...)
	grpcServer := grpc.NewServer(serverOpts...)

	RegisterZoneAnalyticsServer(grpcServer, service)
	grpc_prometheus.Register(grpcServer)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthSrv.SetServingStatus(ZoneAnalyticsServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthSrv)

	reflection.Register(grpcServer)

	return &Server{
		cfg:        cfg,
		grpcServer: grpcServer,
		listener:   lis,
	}, nil
}

// Start serves incoming gRPC requests until Stop/Shutdown is invoked.
func (s *Server) Start() error {
	if s.grpcServer == nil || s.listener == nil {
		return fmt.Errorf("server not initialised")
	}
	return s.grpcServer.Serve(s.listener)
}

// Shutdown attempts a graceful shutdown, falling back to Stop after timeout.
func (s *Server) Shutdown(ctx context.Context) {
	if s.grpcServer == nil {
		return
	}

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-ctx.Done():
		s.grpcServer.Stop()
	case <-stopped:
	}
}

// Address exposes the bound listener address (useful for tests).
func (s *Server) Address() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// GracefulTimeout returns the configured graceful timeout duration.
func (s *Server) GracefulTimeout() time.Duration {
	return s.cfg.GracefulTimeout
}
