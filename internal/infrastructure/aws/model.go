package aws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var ErrInvalidS3URL = errors.New("invalid s3 url")

// GetObjectAPI is the part of the S3 client used to fetch model files.
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidS3URL, raw)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("%w: %q has no object key", ErrInvalidS3URL, raw)
	}
	return u.Host, key, nil
}

// DownloadModel copies the object at rawURL into cacheDir and returns the
// local path. A file already present under the same name is reused unless
// its ETag differs.
func DownloadModel(ctx context.Context, client GetObjectAPI, rawURL, cacheDir string) (string, error) {
	bucket, key, err := ParseS3URL(rawURL)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create model cache dir: %w", err)
	}

	local := filepath.Join(cacheDir, bucket+"-"+path.Base(key))
	etagFile := local + ".etag"

	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if etag, err := os.ReadFile(etagFile); err == nil {
		if _, err := os.Stat(local); err == nil {
			input.IfNoneMatch = aws.String(string(etag))
		}
	}

	out, err := client.GetObject(ctx, input)
	if err != nil {
		if input.IfNoneMatch != nil && isNotModified(err) {
			return local, nil
		}
		return "", fmt.Errorf("failed to get model %s: %w", rawURL, err)
	}
	defer out.Body.Close()

	tmp, err := os.CreateTemp(cacheDir, ".model-*")
	if err != nil {
		return "", fmt.Errorf("failed to create model file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, out.Body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to download model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write model file: %w", err)
	}
	if err := os.Rename(tmp.Name(), local); err != nil {
		return "", fmt.Errorf("failed to store model file: %w", err)
	}

	if etag := aws.ToString(out.ETag); etag != "" {
		_ = os.WriteFile(etagFile, []byte(etag), 0o644)
	}
	return local, nil
}

// isNotModified matches the 304 answer to a conditional GetObject.
func isNotModified(err error) bool {
	var status interface{ HTTPStatusCode() int }
	return errors.As(err, &status) && status.HTTPStatusCode() == 304
}
