package photos

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func TestNewKeyKeepsExtension(t *testing.T) {
	k := NewKey("capture_1.PNG")
	if !strings.HasSuffix(k, ".png") {
		t.Fatalf("expected .png suffix, got %s", k)
	}
	if NewKey("capture_1.png") == k {
		t.Fatalf("expected distinct keys")
	}
	if !strings.HasSuffix(NewKey("noext"), ".jpg") {
		t.Fatalf("expected .jpg default")
	}
}

func TestDirStorePut(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDirStore(dir, "http://store.local/")
	if err != nil {
		t.Fatal(err)
	}
	link, err := s.Put(context.Background(), "a.jpg", []byte("img"))
	if err != nil {
		t.Fatal(err)
	}
	if link != "http://store.local/photos/a.jpg" {
		t.Fatalf("unexpected link %s", link)
	}
	got, _ := os.ReadFile(filepath.Join(dir, "a.jpg"))
	if string(got) != "img" {
		t.Fatalf("expected stored bytes, got %q", got)
	}
	if _, err := s.Put(context.Background(), "../escape.jpg", []byte("x")); err == nil {
		t.Fatalf("expected error for key with path")
	}
}

type fakeS3 struct {
	bucket, key string
	body        []byte
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.bucket, f.key = *in.Bucket, *in.Key
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3StorePut(t *testing.T) {
	fake := &fakeS3{}
	s := &S3Store{client: fake, bucket: "field", region: "eu-central-1"}
	link, err := s.Put(context.Background(), "k.jpg", []byte("jpeg"))
	if err != nil {
		t.Fatal(err)
	}
	if fake.bucket != "field" || fake.key != "k.jpg" || string(fake.body) != "jpeg" {
		t.Fatalf("unexpected put %+v", fake)
	}
	if link != "https://field.s3.eu-central-1.amazonaws.com/k.jpg" {
		t.Fatalf("unexpected link %s", link)
	}
}
