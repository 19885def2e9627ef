package media

import (
	"bytes"
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

var (
	// ErrUnsupportedMedia is returned for empty payloads and anything that is not an image or audio file.
	ErrUnsupportedMedia = eris.New("unsupported media type")
	// ErrForeignObject is returned when asked to delete an object outside the configured prefix.
	ErrForeignObject = eris.New("object is not managed by this store")
)

// Asset identifies an uploaded object.
type Asset struct {
	URL string `json:"url"`
	ID  string `json:"id"`
}

// Uploader stores media and removes it again.
type Uploader interface {
	Upload(ctx context.Context, filename string, data []byte) (Asset, error)
	Delete(ctx context.Context, id string) error
}

type objectClient interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Options configures the S3-backed store.
type Options struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
	Prefix          string
	Logger          *logrus.Logger
}

// S3Store keeps page photos and music in an S3-compatible bucket.
type S3Store struct {
	client  objectClient
	bucket  string
	region  string
	base    string
	prefix  string
	logger  *logrus.Logger
	newName func() string
}

var _ Uploader = (*S3Store)(nil)

// NewS3Store builds a store from the default AWS credential chain, overridden
// by static keys and a custom endpoint when provided.
func NewS3Store(ctx context.Context, opts Options) (*S3Store, error) {
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, eris.New("media bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, eris.Wrap(err, "loading AWS config")
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Store(client, opts), nil
}

func newS3Store(client objectClient, opts Options) *S3Store {
	base := strings.TrimRight(opts.PublicBaseURL, "/")
	if base == "" && opts.Endpoint != "" {
		base = strings.TrimRight(opts.Endpoint, "/") + "/" + opts.Bucket
	}

	return &S3Store{
		client:  client,
		bucket:  opts.Bucket,
		region:  opts.Region,
		base:    base,
		prefix:  strings.Trim(opts.Prefix, "/"),
		logger:  opts.Logger,
		newName: uuid.NewString,
	}
}

// Upload sniffs the payload type, stores it under a fresh key and returns its public URL.
func (s *S3Store) Upload(ctx context.Context, filename string, data []byte) (Asset, error) {
	if len(data) == 0 {
		return Asset{}, eris.Wrapf(ErrUnsupportedMedia, "%s is empty", filename)
	}

	mtype := mimetype.Detect(data)
	contentType := mtype.String()
	if !strings.HasPrefix(contentType, "image/") && !strings.HasPrefix(contentType, "audio/") {
		return Asset{}, eris.Wrapf(ErrUnsupportedMedia, "%s has type %s", filename, contentType)
	}

	key := s.newName() + mtype.Extension()
	if s.prefix != "" {
		key = s.prefix + "/" + key
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		s.logError(logrus.Fields{"key": key, "filename": filename}, err, "uploading media object")
		return Asset{}, eris.Wrapf(err, "uploading %s", filename)
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"component":    "media.s3",
			"key":          key,
			"content_type": contentType,
			"size":         len(data),
		}).Info("media uploaded")
	}

	return Asset{URL: s.objectURL(key), ID: key}, nil
}

// Delete removes the object with the given id. Ids outside the store prefix are refused.
func (s *S3Store) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" || strings.Contains(id, "..") {
		return eris.Wrapf(ErrForeignObject, "id %q", id)
	}
	if s.prefix != "" && !strings.HasPrefix(id, s.prefix+"/") {
		return eris.Wrapf(ErrForeignObject, "id %q", id)
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		s.logError(logrus.Fields{"key": id}, err, "deleting media object")
		return eris.Wrapf(err, "deleting %s", id)
	}

	return nil
}

func (s *S3Store) objectURL(key string) string {
	if s.base != "" {
		return s.base + "/" + key
	}
	return "https://" + s.bucket + ".s3." + s.region + ".amazonaws.com/" + key
}

func (s *S3Store) logError(fields logrus.Fields, err error, message string) {
	if s.logger == nil || err == nil {
		return
	}

	s.logger.WithField("component", "media.s3").WithFields(fields).WithField("error", err.Error()).Error(message)
}
