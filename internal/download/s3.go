package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Options configures an S3Source. Endpoint and static credentials are
// optional; without them the default AWS credential chain applies.
type S3Options struct {
	Bucket    string
	Key       string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// objectGetter is the part of *s3.Client the source needs.
type objectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source serves one object from an S3 (or S3-compatible) bucket.
type S3Source struct {
	client objectGetter
	bucket string
	key    string
}

func NewS3Source(ctx context.Context, o S3Options) (*S3Source, error) {
	if o.Bucket == "" || o.Key == "" {
		return nil, errors.New("download: s3 bucket and key are required")
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(o.Region)}
	if o.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("download: load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(so *s3.Options) {
		if o.Endpoint != "" {
			so.BaseEndpoint = aws.String(o.Endpoint)
			so.UsePathStyle = true
		}
	})
	return &S3Source{client: client, bucket: o.Bucket, key: o.Key}, nil
}

func (s *S3Source) Open(ctx context.Context) (*File, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("download: get object: %w", err)
	}
	name := path.Base(s.key)
	ct := aws.ToString(out.ContentType)
	if ct == "" || ct == "binary/octet-stream" {
		ct = contentType(name)
	}
	f := &File{
		Name:        name,
		ContentType: ct,
		Size:        aws.ToInt64(out.ContentLength),
		Content:     out.Body,
	}
	if out.LastModified != nil {
		f.ModTime = *out.LastModified
	}
	return f, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}
