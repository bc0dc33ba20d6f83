package server

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dasmlab/multiling/pkg/apperr"
)

func startBufServer(t *testing.T, tr *stubTranslator) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	s, _ := NewGRPCServer(newTestService(tr), quietLogger())
	go func() {
		_ = s.Serve(lis)
	}()
	t.Cleanup(s.Stop)

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func invokeTranslate(ctx context.Context, conn *grpc.ClientConn, fields map[string]any) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	resp := new(structpb.Struct)
	if err := conn.Invoke(ctx, TranslateMethod, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func TestGRPCTranslate(t *testing.T) {
	conn := startBufServer(t, &stubTranslator{})

	resp, err := invokeTranslate(context.Background(), conn, map[string]any{
		"text":              "Hello world",
		"target_langs":      []any{"EN", "DE", "FR"},
		"question_response": true,
	})
	require.NoError(t, err)

	fields := resp.AsMap()
	assert.Equal(t, "EN", fields["detected_source_lang"])
	assert.Equal(t, map[string]any{
		"EN": "Hello world",
		"DE": "DE:Hello world",
		"FR": "FR:Hello world",
	}, fields["translations"])
	assert.Contains(t, fields, "question_responses")
	assert.NotContains(t, fields, "analysis")
}

func TestGRPCTranslateErrors(t *testing.T) {
	tests := []struct {
		name       string
		translator *stubTranslator
		fields     map[string]any
		want       codes.Code
	}{
		{"empty text", &stubTranslator{}, map[string]any{"text": ""}, codes.InvalidArgument},
		{"wrong field type", &stubTranslator{}, map[string]any{"text": 42}, codes.InvalidArgument},
		{
			"missing credential",
			&stubTranslator{credErr: apperr.New(apperr.KindConfiguration, "DeepL API key is not configured")},
			map[string]any{"text": "hi"},
			codes.InvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := startBufServer(t, tt.translator)
			_, err := invokeTranslate(context.Background(), conn, tt.fields)
			require.Error(t, err)
			assert.Equal(t, tt.want, status.Code(err))
		})
	}
}

func TestGRPCCode(t *testing.T) {
	assert.Equal(t, codes.InvalidArgument, GRPCCode(apperr.New(apperr.KindTranslation, "x")))
	assert.Equal(t, codes.Unavailable, GRPCCode(apperr.New(apperr.KindCompletion, "x")))
	assert.Equal(t, codes.Internal, GRPCCode(apperr.New(apperr.KindConfiguration, "x")))
}

func TestGRPCHealth(t *testing.T) {
	conn := startBufServer(t, &stubTranslator{})

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(context.Background(),
		&grpc_health_v1.HealthCheckRequest{Service: AutoTranslateServiceName})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)
}
