package kit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

func TestChain_Order(t *testing.T) {
	var calls []string
	mw := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				calls = append(calls, name)
				return next(ctx, req)
			}
		}
	}
	ep := Chain(mw("a"), mw("b"), mw("c"))(func(context.Context, any) (any, error) {
		calls = append(calls, "endpoint")
		return nil, nil
	})
	ep(context.Background(), nil)
	if got := strings.Join(calls, ","); got != "a,b,c,endpoint" {
		t.Errorf("calls = %q, want a,b,c,endpoint", got)
	}
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	boom := errors.New("boom")
	ep := Logging(logger, "validate_dataset")(func(context.Context, any) (any, error) {
		return nil, boom
	})

	ctx := WithRequestID(WithTransport(context.Background(), "mcp"), "r-1")
	if _, err := ep(ctx, nil); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	out := buf.String()
	for _, want := range []string{"endpoint=validate_dataset", "transport=mcp", "request_id=r-1", "error=boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q missing %q", out, want)
		}
	}
}

func TestTimeout(t *testing.T) {
	ep := Timeout(time.Millisecond)(func(ctx context.Context, _ any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if _, err := ep(context.Background(), nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestContextDefaults(t *testing.T) {
	ctx := context.Background()
	if GetTransport(ctx) != "cli" || GetRequestID(ctx) != "" || GetOperator(ctx) != "" {
		t.Error("unexpected defaults")
	}
	ctx = WithOperator(NewRequest(ctx, "mcp"), "ola")
	if GetTransport(ctx) != "mcp" || len(GetRequestID(ctx)) != 36 || GetOperator(ctx) != "ola" {
		t.Errorf("transport = %q id = %q operator = %q", GetTransport(ctx), GetRequestID(ctx), GetOperator(ctx))
	}
}

func TestMCPHandler(t *testing.T) {
	type echoReq struct{ Year string }
	decode := func(req mcp.CallToolRequest) (*MCPDecodeResult, error) {
		year, _ := req.GetArguments()["year"].(string)
		if year == "" {
			return nil, errors.New("year is required")
		}
		return &MCPDecodeResult{Request: &echoReq{Year: year}}, nil
	}
	var transport string
	h := MCPHandler(func(ctx context.Context, request any) (any, error) {
		transport = GetTransport(ctx)
		return map[string]string{"year": request.(*echoReq).Year}, nil
	}, decode)

	var req mcp.CallToolRequest
	req.Params.Arguments = map[string]any{"year": "2024"}
	res, err := h(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError || transport != "mcp" {
		t.Fatalf("result = %+v transport = %q", res, transport)
	}
	if text := res.Content[0].(mcp.TextContent).Text; text != `{"year":"2024"}` {
		t.Errorf("text = %s", text)
	}

	req.Params.Arguments = map[string]any{}
	res, _ = h(context.Background(), req)
	if !res.IsError {
		t.Error("missing argument should be a tool error")
	}
}
