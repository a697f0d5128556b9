package s3

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Skryldev/voiceclip/domain/model"
	"github.com/Skryldev/voiceclip/pkg/retry"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeObjects struct {
	failPuts int
	puts     []string
	bodies   []string
	deletes  []string
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.failPuts > 0 {
		f.failPuts--
		return nil, errors.New("503 slow down")
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.puts = append(f.puts, aws.ToString(in.Key))
	f.bodies = append(f.bodies, string(body))
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 3, Delay: time.Millisecond, Multiplier: 1}
}

func TestSaveRetriesAndReturnsURL(t *testing.T) {
	local := filepath.Join(t.TempDir(), "c1.m4a")
	if err := os.WriteFile(local, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	objects := &fakeObjects{failPuts: 1}
	saver := NewSaver(objects, Config{Bucket: "voice", Prefix: "clips", PublicURL: "https://cdn.example.com/"}, fastRetry(), nil)

	item := model.NewAudioItem("c1", "hello", model.ContainerM4A)
	url, err := saver.Save(context.Background(), item, local)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if url != "https://cdn.example.com/clips/c1.m4a" {
		t.Errorf("url = %q", url)
	}
	if len(objects.puts) != 1 || objects.puts[0] != "clips/c1.m4a" || objects.bodies[0] != "audio" {
		t.Errorf("puts = %v bodies = %v", objects.puts, objects.bodies)
	}

	if err := saver.Delete(context.Background(), item); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(objects.deletes) != 1 || objects.deletes[0] != "clips/c1.m4a" {
		t.Errorf("deletes = %v", objects.deletes)
	}
}

func TestSaveMissingFileIsNotRetried(t *testing.T) {
	objects := &fakeObjects{}
	saver := NewSaver(objects, Config{Bucket: "voice"}, fastRetry(), nil)
	_, err := saver.Save(context.Background(), model.NewAudioItem("c1", "", model.ContainerM4A), "/nonexistent/c1.m4a")
	if err == nil {
		t.Fatal("expected error")
	}
	if len(objects.puts) != 0 {
		t.Errorf("unexpected puts %v", objects.puts)
	}
}

func TestNewClientHonoursEndpoint(t *testing.T) {
	c := NewClient(Config{Endpoint: "http://localhost:9000", AccessKeyID: "a", SecretAccessKey: "b"})
	opts := c.Options()
	if !opts.UsePathStyle || aws.ToString(opts.BaseEndpoint) != "http://localhost:9000" {
		t.Errorf("options = %+v", opts)
	}
	if opts.Region != "auto" {
		t.Errorf("region = %q", opts.Region)
	}
}
