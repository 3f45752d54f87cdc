package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"row-analyzer/internal/shared/storage/object"
)

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "batches/b1/results.json", want: "batches/b1/results.json"},
		{name: "simple prefix", prefix: "root", key: "batches/b1/results.json", want: "root/batches/b1/results.json"},
		{name: "prefix trailing slash", prefix: "root/", key: "batches/b1/results.json", want: "root/batches/b1/results.json"},
		{name: "prefix and key slashes", prefix: "/root/", key: "/batches/b1/results.json", want: "root/batches/b1/results.json"},
		{name: "nested prefix", prefix: "root/sub", key: "batches/b1/results.json", want: "root/sub/batches/b1/results.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

type fakeAPI struct {
	put     *s3.PutObjectInput
	putBody string
	getErr  error
	getBody string
}

func (f *fakeAPI) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.put = params
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.putBody = string(data)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeAPI) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.getBody))}, nil
}

func TestPutUsesKMSWhenConfigured(t *testing.T) {
	api := &fakeAPI{}
	store := NewWithClient(api, "bucket", "/exports/", "kms-123")

	n, err := store.Put(context.Background(), "batches/b1/results.json", "application/json", strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if n != 7 || api.putBody != "payload" {
		t.Fatalf("unexpected upload n=%d body=%q", n, api.putBody)
	}
	if aws.ToString(api.put.Key) != "exports/batches/b1/results.json" {
		t.Fatalf("unexpected key %q", aws.ToString(api.put.Key))
	}
	if api.put.ServerSideEncryption != s3types.ServerSideEncryptionAwsKms || aws.ToString(api.put.SSEKMSKeyId) != "kms-123" {
		t.Fatalf("expected kms encryption, got %v", api.put.ServerSideEncryption)
	}
}

func TestPutDefaultsToAES(t *testing.T) {
	api := &fakeAPI{}
	store := NewWithClient(api, "bucket", "", "")
	if _, err := store.Put(context.Background(), "k", "text/plain", strings.NewReader("x")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if api.put.ServerSideEncryption != s3types.ServerSideEncryptionAes256 {
		t.Fatalf("expected AES256, got %v", api.put.ServerSideEncryption)
	}
}

func TestOpenMapsNoSuchKey(t *testing.T) {
	api := &fakeAPI{getErr: &s3types.NoSuchKey{}}
	store := NewWithClient(api, "bucket", "", "")
	if _, err := store.Open(context.Background(), "missing"); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	api = &fakeAPI{getBody: "data"}
	store = NewWithClient(api, "bucket", "", "")
	rc, err := store.Open(context.Background(), "present")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "data" {
		t.Fatalf("unexpected body %q", data)
	}
}
