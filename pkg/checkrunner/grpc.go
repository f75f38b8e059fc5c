package checkrunner

import (
	"context"
	"fmt"

	"github.com/ghmbegerez/converge/pkg/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// grpcMethod is the single RPC the external CheckRunner service exposes.
// The request/response wire shape is a generic google.protobuf.Struct
// (checks/cwd in, check results out) rather than a hand-authored
// service-specific message: generating real .proto stubs requires
// protoc, which this build environment cannot run, so the well-known
// Struct type stands in for a bespoke request/response message while
// still exercising the real grpc/protobuf client stack end to end.
const grpcMethod = "/converge.checkrunner.v1.CheckRunner/Run"

// GRPCRunner delegates check execution to an external service, mirroring
// the teacher's GRPCLLMClient (pkg/agent/llm_grpc.go): a thin client over
// a plaintext grpc.ClientConn, reused for a different RPC surface.
type GRPCRunner struct {
	conn *grpc.ClientConn
}

// NewGRPCRunner dials addr with insecure (plaintext) transport, as the
// teacher's LLM client does — the external check service is expected to
// run as a sidecar or on localhost.
func NewGRPCRunner(addr string) (*GRPCRunner, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("checkrunner: dial %s: %w", addr, err)
	}
	return &GRPCRunner{conn: conn}, nil
}

func (r *GRPCRunner) Close() error { return r.conn.Close() }

func (r *GRPCRunner) RunChecks(ctx context.Context, checks []string, cwd string) ([]models.CheckResult, error) {
	checkValues := make([]any, len(checks))
	for i, c := range checks {
		checkValues[i] = c
	}
	req, err := structpb.NewStruct(map[string]any{
		"checks": checkValues,
		"cwd":    cwd,
	})
	if err != nil {
		return nil, fmt.Errorf("checkrunner: build request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := r.conn.Invoke(ctx, grpcMethod, req, resp); err != nil {
		return nil, fmt.Errorf("checkrunner: grpc invoke: %w", err)
	}

	rawResults, ok := resp.Fields["results"]
	if !ok {
		return nil, nil
	}
	var out []models.CheckResult
	for _, v := range rawResults.GetListValue().GetValues() {
		fields := v.GetStructValue().GetFields()
		out = append(out, models.CheckResult{
			CheckType:  fields["check_type"].GetStringValue(),
			Passed:     fields["passed"].GetBoolValue(),
			Details:    fields["details"].GetStringValue(),
			DurationMS: int64(fields["duration_ms"].GetNumberValue()),
		})
	}
	return out, nil
}
