package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http
//
// API Gateway buffers responses, so /analyze/stream arrives as one body here.
// Batches need RA_SQS_QUEUE_URL: the function is frozen between invocations
// and cannot run them in the background.

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"

	"row-analyzer/internal/bootstrap"
	"row-analyzer/internal/shared/config"
)

const requestIDHeader = "x-request-id"

var (
	initOnce  sync.Once
	initErr   error
	ginLambda *ginadapter.GinLambdaV2
)

func initApp() {
	cfg := config.Load()
	if strings.TrimSpace(cfg.QueueURL) == "" {
		initErr = errors.New("RA_SQS_QUEUE_URL is required when running on Lambda")
		return
	}
	app, err := bootstrap.Build(context.Background(), cfg, bootstrap.Options{})
	if err != nil {
		initErr = err
		return
	}
	ginLambda = ginadapter.NewV2(app.Router)
}

func handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		return errorResponse("bootstrap failed"), initErr
	}
	if ginLambda == nil {
		return errorResponse("router not initialized"), nil
	}
	return ginLambda.ProxyWithContext(ctx, withGatewayRequestID(req))
}

// withGatewayRequestID forwards the API Gateway request id so logs and queue
// messages can be correlated with gateway access logs.
func withGatewayRequestID(req events.APIGatewayV2HTTPRequest) events.APIGatewayV2HTTPRequest {
	gatewayID := strings.TrimSpace(req.RequestContext.RequestID)
	if gatewayID == "" {
		return req
	}
	for k, v := range req.Headers {
		if strings.EqualFold(k, requestIDHeader) && strings.TrimSpace(v) != "" {
			return req
		}
	}
	headers := make(map[string]string, len(req.Headers)+1)
	for k, v := range req.Headers {
		headers[k] = v
	}
	headers[requestIDHeader] = gatewayID
	req.Headers = headers
	return req
}

func errorResponse(msg string) events.APIGatewayV2HTTPResponse {
	body, _ := json.Marshal(map[string]any{
		"error": map[string]string{"code": "internal_error", "message": msg},
	})
	return events.APIGatewayV2HTTPResponse{
		StatusCode: 500,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

func main() {
	lambda.Start(handler)
}
