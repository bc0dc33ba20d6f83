package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dasmlab/multiling/pkg/requestid"
	"github.com/dasmlab/multiling/pkg/service"
)

const (
	// AutoTranslateServiceName is the fully qualified gRPC service name.
	AutoTranslateServiceName = "multiling.v1.AutoTranslateService"
	// TranslateMethod is the full method name of the Translate RPC.
	TranslateMethod = "/" + AutoTranslateServiceName + "/Translate"

	requestIDMetadataKey = "x-request-id"
)

// AutoTranslateServer is the gRPC surface of the auto-translate pipeline.
// Requests and responses are google.protobuf.Struct values carrying the same
// fields as the HTTP JSON bodies.
type AutoTranslateServer interface {
	Translate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// AutoTranslateServiceDesc describes the service for grpc.Server.RegisterService.
var AutoTranslateServiceDesc = grpc.ServiceDesc{
	ServiceName: AutoTranslateServiceName,
	HandlerType: (*AutoTranslateServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Translate",
			Handler:    translateHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "multiling/v1/auto_translate.proto",
}

func translateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AutoTranslateServer).Translate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: TranslateMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AutoTranslateServer).Translate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// GRPCService adapts AutoTranslateService to AutoTranslateServer.
type GRPCService struct {
	service *service.AutoTranslateService
	logger  *logrus.Logger
}

// NewGRPCService creates a new GRPCService.
func NewGRPCService(svc *service.AutoTranslateService, logger *logrus.Logger) *GRPCService {
	if logger == nil {
		logger = logrus.New()
	}
	return &GRPCService{service: svc, logger: logger}
}

// Translate decodes the request struct, runs the pipeline and encodes the
// response struct.
func (g *GRPCService) Translate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ctx = requestid.WithContext(ctx, incomingRequestID(ctx))
	log := g.logger.WithField("request_id", requestid.FromContext(ctx))
	log.Info("[gRPC] Translate request received")

	var req service.AutoTranslateRequest
	if err := structToJSON(in, &req); err != nil {
		log.WithError(err).Warn("[gRPC] Translate: invalid request")
		return nil, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}

	resp, err := g.service.AutoTranslate(ctx, req)
	if err != nil {
		log.WithError(err).Error("[gRPC] Translate failed")
		return nil, status.Error(GRPCCode(err), err.Error())
	}

	out, err := jsonToStruct(resp)
	if err != nil {
		log.WithError(err).Error("[gRPC] Translate: failed to encode response")
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func incomingRequestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(requestIDMetadataKey); len(ids) > 0 {
			return requestid.Sanitize(ids[0])
		}
	}
	return requestid.New()
}

func structToJSON(in *structpb.Struct, v any) error {
	data, err := protojson.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func jsonToStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

// NewGRPCServer builds a gRPC server with keepalive enforcement, the health
// service, reflection and the auto-translate service registered.
func NewGRPCServer(svc *service.AutoTranslateService, logger *logrus.Logger) (*grpc.Server, *health.Server) {
	opts := []grpc.ServerOption{
		grpc.Creds(insecure.NewCredentials()),
		// Clients ping every 30s; allow down to 15s to avoid "too many pings".
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             15 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     5 * time.Minute,
			MaxConnectionAge:      30 * time.Minute,
			MaxConnectionAgeGrace: 5 * time.Second,
			Time:                  30 * time.Second,
			Timeout:               10 * time.Second,
		}),
	}

	s := grpc.NewServer(opts...)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(AutoTranslateServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	s.RegisterService(&AutoTranslateServiceDesc, NewGRPCService(svc, logger))

	// Reflection for grpcurl
	reflection.Register(s)

	return s, healthServer
}
