package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// mockS3Client implements S3Client for testing.
type mockS3Client struct {
	objects map[string]*mockObject
}

type mockObject struct {
	data         []byte
	contentType  string
	metadata     map[string]string
	lastModified time.Time
}

func newMockS3Client() *mockS3Client {
	return &mockS3Client{
		objects: make(map[string]*mockObject),
	}
}

func (m *mockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(params.Key)
	obj, exists := m.objects[key]
	if !exists {
		return nil, &s3types.NoSuchKey{}
	}

	size := int64(len(obj.data))
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(obj.data)),
		ContentLength: &size,
		ContentType:   aws.String(obj.contentType),
	}, nil
}

func (m *mockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	key := aws.ToString(params.Key)
	data, _ := io.ReadAll(params.Body)

	ct := "application/octet-stream"
	if params.ContentType != nil {
		ct = *params.ContentType
	}

	m.objects[key] = &mockObject{
		data:         data,
		contentType:  ct,
		metadata:     params.Metadata,
		lastModified: time.Now(),
	}
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	key := aws.ToString(params.Key)
	obj, exists := m.objects[key]
	if !exists {
		return nil, &s3types.NoSuchKey{}
	}

	size := int64(len(obj.data))
	return &s3.HeadObjectOutput{
		ContentLength: &size,
		ContentType:   aws.String(obj.contentType),
		Metadata:      obj.metadata,
		LastModified:  aws.Time(obj.lastModified),
	}, nil
}

func TestS3Open(t *testing.T) {
	mock := newMockS3Client()
	mock.objects["home/bob/test.odt"] = &mockObject{
		data:         []byte("hello world"),
		contentType:  "application/vnd.oasis.opendocument.text",
		metadata:     map[string]string{"owner": "bob"},
		lastModified: time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC),
	}

	g := NewS3GatewayWithClient(mock, "test-bucket")
	ctx := context.Background()

	h, err := g.Open(ctx, "home|bob|test.odt", "bob", "bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Name() != "test.odt" {
		t.Errorf("expected name %q, got %q", "test.odt", h.Name())
	}
	if h.Size() != 11 {
		t.Errorf("expected size 11, got %d", h.Size())
	}
	if h.ModTime() != "2026-02-03T10:00:00Z" {
		t.Errorf("expected protocol timestamp, got %q", h.ModTime())
	}
	if h.Dir() != "home/bob" {
		t.Errorf("expected dir %q, got %q", "home/bob", h.Dir())
	}
}

func TestS3OpenOwnerCheck(t *testing.T) {
	mock := newMockS3Client()
	mock.objects["home/bob/test.odt"] = &mockObject{
		data:     []byte("x"),
		metadata: map[string]string{"owner": "bob"},
	}
	mock.objects["legacy.odt"] = &mockObject{
		data: []byte("y"),
	}

	g := NewS3GatewayWithClient(mock, "test-bucket")
	ctx := context.Background()

	// The acting editor may open a file owned by someone else.
	if _, err := g.Open(ctx, "home|bob|test.odt", "alice", "bob"); err != nil {
		t.Errorf("editor open failed: %v", err)
	}

	// Neither identity matching the stored owner hides the object.
	if _, err := g.Open(ctx, "home|bob|test.odt", "alice", "carol"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign identities, got %v", err)
	}

	// Objects without owner metadata stay open to everyone.
	if _, err := g.Open(ctx, "legacy.odt", "alice", "carol"); err != nil {
		t.Errorf("untagged object open failed: %v", err)
	}
}

func TestS3OpenNotFound(t *testing.T) {
	g := NewS3GatewayWithClient(newMockS3Client(), "test-bucket")
	if _, err := g.Open(context.Background(), "nonexistent.odt", "bob", "bob"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestS3ReadWrite(t *testing.T) {
	mock := newMockS3Client()
	mock.objects["home/bob/test.odt"] = &mockObject{
		data:     []byte("original"),
		metadata: map[string]string{"owner": "bob"},
	}

	g := NewS3GatewayWithClient(mock, "test-bucket")
	ctx := context.Background()

	h, err := g.Open(ctx, "home|bob|test.odt", "bob", "bob")
	if err != nil {
		t.Fatal(err)
	}

	content := []byte("new content")
	mod, err := h.Write(ctx, bytes.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mod == "" {
		t.Error("expected a modification timestamp after write")
	}
	if h.Size() != int64(len(content)) {
		t.Errorf("expected size %d after write, got %d", len(content), h.Size())
	}

	body, err := h.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if !bytes.Equal(data, content) {
		t.Errorf("expected content %q, got %q", content, data)
	}
}

func TestS3CreateAndExists(t *testing.T) {
	mock := newMockS3Client()
	g := NewS3GatewayWithClient(mock, "test-bucket")
	ctx := context.Background()

	ok, err := g.Exists(ctx, "bob", "home/bob/fresh.odt")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected path to be free")
	}

	id, err := g.Create(ctx, "bob", "home/bob/fresh.odt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "home|bob|fresh.odt" {
		t.Errorf("expected file ID %q, got %q", "home|bob|fresh.odt", id)
	}

	obj, exists := mock.objects["home/bob/fresh.odt"]
	if !exists {
		t.Fatal("expected object to be stored")
	}
	if obj.metadata["owner"] != "bob" {
		t.Errorf("expected owner metadata %q, got %q", "bob", obj.metadata["owner"])
	}
	if obj.contentType != "application/vnd.oasis.opendocument.text" {
		t.Errorf("unexpected content type %q", obj.contentType)
	}

	ok, err = g.Exists(ctx, "bob", "home/bob/fresh.odt")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected created path to exist")
	}
}

func TestContentTypeForFile(t *testing.T) {
	tests := []struct {
		key      string
		expected string
	}{
		{"test.odt", "application/vnd.oasis.opendocument.text"},
		{"test.ods", "application/vnd.oasis.opendocument.spreadsheet"},
		{"test.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		{"test.pdf", "application/pdf"},
		{"test.unknown", "application/octet-stream"},
	}

	for _, tt := range tests {
		got := contentTypeForFile(tt.key)
		if got != tt.expected {
			t.Errorf("contentTypeForFile(%q) = %q, want %q", tt.key, got, tt.expected)
		}
	}
}

func TestIsS3NotFound(t *testing.T) {
	if isS3NotFound(nil) {
		t.Error("expected nil error to not be NotFound")
	}
	if !isS3NotFound(&s3types.NoSuchKey{}) {
		t.Error("expected NoSuchKey to be NotFound")
	}
	if !isS3NotFound(errors.New("operation error S3: HeadObject, https response error StatusCode: 404")) {
		t.Error("expected 404 response error to be NotFound")
	}
	if isS3NotFound(errors.New("connection refused")) {
		t.Error("expected transport error to not be NotFound")
	}
}
