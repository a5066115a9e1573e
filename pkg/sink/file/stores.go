package file

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/adharvest/pkg/errors"
)

// LocalStore writes objects into a directory
type LocalStore struct {
	Dir string
}

// NewLocalStore creates dir when missing
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create output directory").
			WithDetail("dir", dir)
	}
	return &LocalStore{Dir: dir}, nil
}

// Put writes to a temporary file first so a failed write never leaves a
// truncated listing behind.
func (s *LocalStore) Put(_ context.Context, name string, r io.Reader) error {
	tmp, err := os.CreateTemp(s.Dir, ".adharvest-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(s.Dir, name))
}

// Close is a no-op
func (s *LocalStore) Close() error { return nil }

// uploader is the part of the S3 upload manager the store needs
type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Store uploads objects to a bucket under a key prefix
type S3Store struct {
	bucket   string
	prefix   string
	uploader uploader
}

// NewS3Store loads the default AWS credential chain for region
func NewS3Store(ctx context.Context, bucket, prefix, region string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load AWS config")
	}
	client := s3.NewFromConfig(cfg)
	return &S3Store{
		bucket: bucket,
		prefix: prefix,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = 5 * 1024 * 1024
			u.Concurrency = 2
		}),
	}, nil
}

// Put uploads one object
func (s *S3Store) Put(ctx context.Context, name string, r io.Reader) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey(s.prefix, name)),
		Body:        r,
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	return err
}

// Close is a no-op
func (s *S3Store) Close() error { return nil }

// GCSStore writes objects to a Cloud Storage bucket
type GCSStore struct {
	client    *storage.Client
	prefix    string
	newWriter func(ctx context.Context, key string) io.WriteCloser
}

// NewGCSStore creates a client, using credentialsFile when given and the
// application default credentials otherwise.
func NewGCSStore(ctx context.Context, bucket, prefix, credentialsFile string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create GCS client")
	}

	handle := client.Bucket(bucket)
	return &GCSStore{
		client: client,
		prefix: prefix,
		newWriter: func(ctx context.Context, key string) io.WriteCloser {
			w := handle.Object(key).NewWriter(ctx)
			w.ContentType = "text/plain; charset=utf-8"
			return w
		},
	}, nil
}

// Put writes one object. The upload is only final once the writer closes;
// cancelling the context first abandons it.
func (s *GCSStore) Put(ctx context.Context, name string, r io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := s.newWriter(ctx, objectKey(s.prefix, name))
	if _, err := io.Copy(w, r); err != nil {
		cancel()
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Close closes the client
func (s *GCSStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func objectKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
