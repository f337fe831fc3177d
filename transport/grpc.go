package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

// DefaultGRPCService is the service name agent methods are called on.
const DefaultGRPCService = "futureself.v1.AgentService"

// GRPCConfig configures the gRPC transport.
type GRPCConfig struct {
	// Target is the dial target, e.g. "api.example.com:443".
	Target string

	// Service overrides DefaultGRPCService.
	Service string

	Credentials Credentials

	// Timeout bounds one call. Default: 60s.
	Timeout time.Duration

	// DialOptions replace the default insecure credentials.
	DialOptions []grpc.DialOption

	Logger *zap.Logger
}

// GRPC calls one unary method per endpoint with google.protobuf.Struct
// request and response messages. The endpoint "code/generate" maps to the
// method "/<service>/CodeGenerate".
type GRPC struct {
	conn    *grpc.ClientConn
	service string
	creds   Credentials
	timeout time.Duration
	logger  *zap.Logger
}

// NewGRPC creates a gRPC transport. The connection is established lazily.
func NewGRPC(cfg GRPCConfig) (*GRPC, error) {
	if cfg.Target == "" {
		return nil, fmt.Errorf("Target is required")
	}
	opts := cfg.DialOptions
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(cfg.Target, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc client: %w", err)
	}
	service := cfg.Service
	if service == "" {
		service = DefaultGRPCService
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &GRPC{
		conn:    conn,
		service: service,
		creds:   cfg.Credentials,
		timeout: timeout,
		logger:  loggerOrNop(cfg.Logger).Named("transport.grpc"),
	}, nil
}

// Call implements Transport.
func (t *GRPC) Call(ctx context.Context, endpoint string, payload any) (json.RawMessage, error) {
	m, err := toJSONMap(payload)
	if err != nil {
		return nil, err
	}
	in, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	md := metadata.MD{}
	for k, v := range t.creds.headers() {
		md.Set(strings.ToLower(k), v)
	}
	ctx = metadata.NewOutgoingContext(ctx, md)

	method := "/" + t.service + "/" + MethodName(endpoint)
	out := &structpb.Struct{}
	if err := t.conn.Invoke(ctx, method, in, out); err != nil {
		return nil, fmt.Errorf("grpc %s: %w", method, err)
	}

	t.logger.Debug("call completed", zap.String("method", method))

	b, err := json.Marshal(out.AsMap())
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return json.RawMessage(b), nil
}

// Close releases the underlying connection.
func (t *GRPC) Close() error {
	return t.conn.Close()
}

// MethodName converts an endpoint path to a gRPC method name:
// "code/generate" → "CodeGenerate", "tool/choice" → "ToolChoice".
func MethodName(endpoint string) string {
	var sb strings.Builder
	upper := true
	for _, r := range endpoint {
		if r == '/' || r == '-' || r == '_' || r == '.' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
