package queue

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type fakeSender struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSender) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{}, nil
}

func TestSQSClientSend(t *testing.T) {
	sender := &fakeSender{}
	client := NewSQSClientWithAPI(sender, "https://sqs.example/queue")

	if err := client.Send(context.Background(), Message{BatchID: "b1", Version: 1}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if aws.ToString(sender.input.QueueUrl) != "https://sqs.example/queue" {
		t.Fatalf("unexpected queue url %q", aws.ToString(sender.input.QueueUrl))
	}
	msg, err := DecodeMessage([]byte(aws.ToString(sender.input.MessageBody)))
	if err != nil || msg.BatchID != "b1" {
		t.Fatalf("unexpected body %q (%v)", aws.ToString(sender.input.MessageBody), err)
	}
}

func TestSQSClientSendError(t *testing.T) {
	sender := &fakeSender{err: errors.New("throttled")}
	client := NewSQSClientWithAPI(sender, "q")
	err := client.Send(context.Background(), Message{BatchID: "b2"})
	if err == nil || !strings.Contains(err.Error(), "batch=b2") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestNewSQSClientRequiresURL(t *testing.T) {
	if _, err := NewSQSClient(context.Background(), "", " "); err == nil {
		t.Fatalf("expected error for empty queue url")
	}
}
