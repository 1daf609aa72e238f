package fsys

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3 implements Filesystem against a single S3 bucket, for editing
// files that live in object storage. Paths are object keys; rename,
// ownership, and append are all emulated since S3 has no native
// notion of any of them.
type S3 struct {
	client *s3.Client
	bucket string
}

// NewS3 builds an S3-backed Filesystem using the default AWS
// credential chain (environment, shared config, EC2/ECS role).
func NewS3(ctx context.Context, bucket string) (*S3, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("fsys: load aws config: %w", err)
	}
	return &S3{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

func (f *S3) ReadRange(path string, offset int64, length int) ([]byte, error) {
	ctx := context.Background()
	rng := fmt.Sprintf("bytes=%d-%d", offset, offset+int64(length)-1)
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(path),
		Range:  aws.String(rng),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// s3Writer buffers writes in memory and performs a single PutObject on
// Close: S3 objects are immutable, so a "writer" can only upload once
// it has the whole payload, the same whole-object-at-a-time model the
// atomic-rename save strategy already assumes.
type s3Writer struct {
	f    *S3
	path string
	buf  bytes.Buffer
}

func (w *s3Writer) Write(p []byte) (int, error) { return w.buf.Write(p) }
func (w *s3Writer) Sync() error                 { return nil }

func (w *s3Writer) Close() error {
	_, err := w.f.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(w.f.bucket),
		Key:    aws.String(w.path),
		Body:   bytes.NewReader(w.buf.Bytes()),
	})
	return err
}

func (f *S3) OpenWriter(path string) (Writer, error) {
	return &s3Writer{f: f, path: path}, nil
}

// OpenAppender reads the existing object (if any) and returns a
// writer seeded with its bytes, since S3 has no append operation.
func (f *S3) OpenAppender(path string) (Writer, error) {
	w := &s3Writer{f: f, path: path}
	if existing, err := f.ReadRange(path, 0, 1<<31-1); err == nil {
		w.buf.Write(existing)
	}
	return w, nil
}

// Rename copies path to a new key and deletes the original: S3 has no
// native rename.
func (f *S3) Rename(from, to string) error {
	ctx := context.Background()
	_, err := f.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(f.bucket),
		Key:        aws.String(to),
		CopySource: aws.String(fmt.Sprintf("%s/%s", f.bucket, from)),
	})
	if err != nil {
		return err
	}
	_, err = f.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(from),
	})
	return err
}

// SetLen downloads the object, truncates it or pads it with zero bytes
// to length, and re-uploads it, since S3 objects have no native
// truncate.
func (f *S3) SetLen(path string, length int64) error {
	data, err := f.ReadRange(path, 0, 1<<31-1)
	if err != nil {
		return err
	}
	if int64(len(data)) < length {
		data = append(data, make([]byte, length-int64(len(data)))...)
	} else {
		data = data[:length]
	}
	w, err := f.OpenWriter(path)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	return w.Close()
}

func (f *S3) Stat(path string) (Info, error) {
	out, err := f.client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return Info{}, err
	}
	info := Info{Mode: 0o644}
	if out.ContentLength != nil {
		info.Size = *out.ContentLength
	}
	if out.LastModified != nil {
		info.ModTime = *out.LastModified
	} else {
		info.ModTime = time.Now()
	}
	return info, nil
}

// IsOwner always reports true: object storage has no per-object OS
// ownership, so atomic-rename is always an option and never needs to
// fall back for ownership-preservation reasons.
func (f *S3) IsOwner(string) (bool, error) { return true, nil }

func (f *S3) CurrentUID() uint32 { return 0 }

func (f *S3) SudoWrite(path string, data []byte, mode uint32, uid, gid uint32) error {
	w, err := f.OpenWriter(path)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	return w.Close()
}

// Chown is a no-op: S3 has no per-object ownership or mode to carry
// over, consistent with IsOwner always reporting true.
func (f *S3) Chown(string, uint32, uint32, uint32) error { return nil }

// Mkdir is a no-op: S3 has no directories, only key prefixes.
func (f *S3) Mkdir(string) error { return nil }

func (f *S3) Remove(path string) error {
	_, err := f.client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(path),
	})
	if err != nil && isNoSuchKey(err) {
		return nil
	}
	return err
}

// FsyncDir is a no-op: S3 writes are durable once PutObject returns.
func (f *S3) FsyncDir(string) error { return nil }

func isNoSuchKey(err error) bool {
	return strings.Contains(err.Error(), "NoSuchKey") || strings.Contains(err.Error(), "NotFound")
}
