// Package transport carries the remote legs of the port connection protocol
// over gRPC: obey-connection, obey-disconnection and invoke. Messages are the
// core's own types encoded with a JSON codec.
package transport

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"

	"github.com/sufield/junction/internal/adapters/interceptors"
	"github.com/sufield/junction/internal/core/ports"
)

// ServiceName is the fully qualified gateway service name.
const ServiceName = "junction.gateway.v1.PortGateway"

const (
	obeyConnectionMethod    = "/" + ServiceName + "/ObeyConnection"
	obeyDisconnectionMethod = "/" + ServiceName + "/ObeyDisconnection"
	invokeMethod            = "/" + ServiceName + "/Invoke"
)

// gatewayServiceDesc serves a ports.RemotePeer, normally the process's Node.
var gatewayServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ports.RemotePeer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ObeyConnection", Handler: obeyConnectionHandler},
		{MethodName: "ObeyDisconnection", Handler: obeyDisconnectionHandler},
		{MethodName: "Invoke", Handler: invokeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "junction/gateway/v1/gateway.json",
}

func obeyConnectionHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(obeyConnectionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req interface{}) (interface{}, error) {
		r, _ := req.(*obeyConnectionRequest)
		if err := srv.(ports.RemotePeer).ObeyConnection(ctx, r.ObeyConnection); err != nil {
			return nil, toStatus(err)
		}
		return &empty{}, nil
	}
	return intercept(ctx, srv, in, obeyConnectionMethod, interceptor, call)
}

func obeyDisconnectionHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(obeyDisconnectionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req interface{}) (interface{}, error) {
		r, _ := req.(*obeyDisconnectionRequest)
		if err := srv.(ports.RemotePeer).ObeyDisconnection(ctx, r.Target, r.Sender); err != nil {
			return nil, toStatus(err)
		}
		return &empty{}, nil
	}
	return intercept(ctx, srv, in, obeyDisconnectionMethod, interceptor, call)
}

func invokeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(invokeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req interface{}) (interface{}, error) {
		r, _ := req.(*invokeRequest)
		resp, err := srv.(ports.RemotePeer).Invoke(ctx, r.Target, r.Caller, r.Request)
		if err != nil {
			return nil, toStatus(err)
		}
		return &invokeResponse{Response: resp}, nil
	}
	return intercept(ctx, srv, in, invokeMethod, interceptor, call)
}

func intercept(ctx context.Context, srv, in interface{}, method string, interceptor grpc.UnaryServerInterceptor, call grpc.UnaryHandler) (interface{}, error) {
	if interceptor == nil {
		return call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
	return interceptor(ctx, in, info, call)
}

// ServerConfig configures a gateway Server.
type ServerConfig struct {
	Logger  *slog.Logger
	Metrics interceptors.GatewayMetricsCollector
	// Logging overrides the default call logging configuration.
	Logging *interceptors.LoggingConfig
}

// Server exposes a ports.RemotePeer to other processes.
type Server struct {
	server *grpc.Server
	logger *slog.Logger
}

// NewServer creates a gateway server for peer. Extra options are appended
// after the gateway's codec and interceptors.
func NewServer(peer ports.RemotePeer, config ServerConfig, opts ...grpc.ServerOption) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loggingConfig := config.Logging
	if loggingConfig == nil {
		loggingConfig = interceptors.DefaultLoggingConfig()
	}
	if loggingConfig.Logger == nil {
		loggingConfig.Logger = logger
	}

	base := []grpc.ServerOption{
		grpc.ForceServerCodec(jsonCodec{}),
		grpc.ChainUnaryInterceptor(
			interceptors.UnaryServerInterceptor(),
			interceptors.NewMetricsInterceptor(config.Metrics).UnaryServerInterceptor(),
			interceptors.NewLoggingInterceptor(loggingConfig).UnaryServerInterceptor(),
		),
	}
	server := grpc.NewServer(append(base, opts...)...)
	server.RegisterService(&gatewayServiceDesc, peer)

	return &Server{server: server, logger: logger}
}

// ListenAndServe listens on addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("gateway listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is done, then stops gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	stop := context.AfterFunc(ctx, s.server.GracefulStop)
	defer stop()

	s.logger.Info("port gateway listening", "address", lis.Addr().String())
	err := s.server.Serve(lis)
	if err != nil && !stderrors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("gateway serve: %w", err)
	}
	return nil
}

// Stop stops the server immediately, closing open calls.
func (s *Server) Stop() {
	s.server.Stop()
}

// GracefulStop waits for in-flight calls before stopping.
func (s *Server) GracefulStop() {
	s.server.GracefulStop()
}
