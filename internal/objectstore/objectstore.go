// Package objectstore implements the Object Store Gateway: put/get/list/
// copy/delete over a bucketed key-space backed by an S3-compatible store
// (spec §4.1).
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/correlator-io/trainhub/internal/kinderr"
)

// Gateway is the Object Store Gateway (spec §4.1).
type Gateway struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	logger   *slog.Logger
}

// New constructs a Gateway against the given S3-compatible client and
// ensures the bucket exists (create-if-absent, swallow already-exists), per
// spec §4.1 "Bucket is ensured on startup".
func New(ctx context.Context, client *s3.Client, bucket string, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	g := &Gateway{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		logger:   logger,
	}

	if err := g.ensureBucket(ctx); err != nil {
		return nil, err
	}

	return g, nil
}

func (g *Gateway) ensureBucket(ctx context.Context) error {
	_, err := g.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(g.bucket)})
	if err == nil {
		return nil
	}

	if !isNotFoundErr(err) {
		return kinderr.Wrap(kinderr.Unavailable, "head bucket failed", err)
	}

	_, err = g.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(g.bucket)})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou

		var alreadyExists *types.BucketAlreadyExists
		if errors.As(err, &alreadyOwned) || errors.As(err, &alreadyExists) {
			return nil
		}

		return kinderr.Wrap(kinderr.Unavailable, "create bucket failed", err)
	}

	return nil
}

// Put writes bytes under key with the given content type.
func (g *Gateway) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := g.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return kinderr.Wrap(kinderr.Unavailable, fmt.Sprintf("put %s failed", key), err)
	}

	return nil
}

// Get reads the bytes stored at key. Returns a kinderr.NotFound error if
// the key is absent.
func (g *Gateway) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundErr(err) {
			return nil, kinderr.New(kinderr.NotFound, fmt.Sprintf("key %s not found", key))
		}

		return nil, kinderr.Wrap(kinderr.Unavailable, fmt.Sprintf("get %s failed", key), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.Unavailable, fmt.Sprintf("read %s failed", key), err)
	}

	return data, nil
}

// List enumerates keys under prefix, optionally delimited, returning both
// the matched keys and any common prefixes (for directory-style listing).
func (g *Gateway) List(ctx context.Context, prefix, delimiter string) (keys []string, commonPrefixes []string, err error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(g.bucket),
		Prefix: aws.String(prefix),
	}
	if delimiter != "" {
		input.Delimiter = aws.String(delimiter)
	}

	paginator := s3.NewListObjectsV2Paginator(g.client, input)

	for paginator.HasMorePages() {
		page, pErr := paginator.NextPage(ctx)
		if pErr != nil {
			return nil, nil, kinderr.Wrap(kinderr.Unavailable, fmt.Sprintf("list %s failed", prefix), pErr)
		}

		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}

		for _, cp := range page.CommonPrefixes {
			commonPrefixes = append(commonPrefixes, aws.ToString(cp.Prefix))
		}
	}

	sort.Strings(keys)
	sort.Strings(commonPrefixes)

	return keys, commonPrefixes, nil
}

// Copy duplicates the object at src to dst.
func (g *Gateway) Copy(ctx context.Context, src, dst string) error {
	_, err := g.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(g.bucket),
		Key:        aws.String(dst),
		CopySource: aws.String(g.bucket + "/" + src),
	})
	if err != nil {
		if isNotFoundErr(err) {
			return kinderr.New(kinderr.NotFound, fmt.Sprintf("copy source %s not found", src))
		}

		return kinderr.Wrap(kinderr.Unavailable, fmt.Sprintf("copy %s -> %s failed", src, dst), err)
	}

	return nil
}

// Delete removes every key under prefix, returning the deleted key list.
func (g *Gateway) Delete(ctx context.Context, prefix string) ([]string, error) {
	keys, _, err := g.List(ctx, prefix, "")
	if err != nil {
		return nil, err
	}

	deleted := make([]string, 0, len(keys))

	for _, key := range keys {
		_, err := g.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(g.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return deleted, kinderr.Wrap(kinderr.Unavailable, fmt.Sprintf("delete %s failed", key), err)
		}

		deleted = append(deleted, key)
	}

	return deleted, nil
}

// isNotFoundErr reports whether err represents a 404-class S3 response,
// spanning both the typed NoSuchKey/NotFound errors and the generic smithy
// HTTP response-error path some S3-compatible stores use instead.
func isNotFoundErr(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}

	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	var re *smithyhttp.ResponseError
	if errors.As(err, &re) {
		return re.HTTPStatusCode() == 404
	}

	return strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "NoSuchKey")
}

// KeyLayout builds the three-part object key for a ModelVersion sidecar,
// matching spec §6 "Object-store key layout":
// <tenant>/<model_name>/<version>/{model.<suffix>,metadata.json,metrics.json}.
func KeyLayout(tenant, name, version, artifact string) string {
	return strings.Join([]string{tenant, name, version, artifact}, "/")
}
