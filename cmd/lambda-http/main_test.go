package main

import (
	"encoding/json"
	"testing"

	"github.com/aws/aws-lambda-go/events"
)

func TestWithGatewayRequestID(t *testing.T) {
	req := events.APIGatewayV2HTTPRequest{
		Headers: map[string]string{"content-type": "application/json"},
	}
	req.RequestContext.RequestID = "gw-1"

	got := withGatewayRequestID(req)
	if got.Headers[requestIDHeader] != "gw-1" {
		t.Fatalf("expected gateway id header, got %v", got.Headers)
	}
	if _, ok := req.Headers[requestIDHeader]; ok {
		t.Fatalf("expected original headers untouched")
	}

	req.Headers = map[string]string{"X-Request-Id": "client-1"}
	got = withGatewayRequestID(req)
	if got.Headers["X-Request-Id"] != "client-1" || got.Headers[requestIDHeader] != "" {
		t.Fatalf("expected caller id kept, got %v", got.Headers)
	}
}

func TestErrorResponseShape(t *testing.T) {
	resp := errorResponse("bootstrap failed")
	if resp.StatusCode != 500 {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "internal_error" || body.Error.Message != "bootstrap failed" {
		t.Fatalf("unexpected body %+v", body)
	}
}
