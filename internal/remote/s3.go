package remote

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"lukechampine.com/blake3"

	"github.com/aa-dank/slug-sweep-deduper/internal/sweep"
)

// digestKey is the object metadata key holding the hex BLAKE3-256 digest.
const digestKey = "blake3"

// S3Options configures an S3Store.
type S3Options struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string // for S3-compatible servers; forces path-style addressing
	AccessKeyID     string
	SecretAccessKey string
}

// S3Store keeps objects in an S3 bucket. Uploads land under a temporary key
// and are copied onto the final key, so readers never see a partial object.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewS3Store loads AWS configuration from the environment, overridden by any
// region, endpoint or static credentials in opts.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   opts.Bucket,
		prefix:   opts.Prefix,
	}, nil
}

func (s *S3Store) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *S3Store) Exists(name string) (bool, error) {
	_, err := s.client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("checking %s: %w", s.Describe(name), err)
	}
	return true, nil
}

// Get streams the object to w and verifies its recorded digest once the
// whole body has been read.
func (s *S3Store) Get(name string, w io.Writer) error {
	out, err := s.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, s.Describe(name))
		}
		return fmt.Errorf("downloading %s: %w", s.Describe(name), err)
	}
	defer out.Body.Close()

	h := blake3.New(32, nil)
	if _, err := io.Copy(io.MultiWriter(w, h), out.Body); err != nil {
		return fmt.Errorf("downloading %s: %w", s.Describe(name), err)
	}

	if want, ok := out.Metadata[digestKey]; ok {
		if got := hex.EncodeToString(h.Sum(nil)); got != want {
			return fmt.Errorf("%w: %s has %s, recorded %s", ErrDigestMismatch, s.Describe(name), got, want)
		}
	}
	return nil
}

func (s *S3Store) Put(name string, r io.Reader, size int64) error {
	ctx := context.Background()
	finalKey := s.key(name)
	tmpKey := finalKey + ".tmp-" + uuid.NewString()

	h := blake3.New(32, nil)
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(tmpKey),
		Body:   io.TeeReader(&sizeReader{r: r, want: size}, h),
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", s.Describe(name), err)
	}
	defer s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(tmpKey),
	})

	source := (&url.URL{Path: s.bucket + "/" + tmpKey}).EscapedPath()
	_, err = s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:            aws.String(s.bucket),
		Key:               aws.String(finalKey),
		CopySource:        aws.String(source),
		Metadata:          map[string]string{digestKey: hex.EncodeToString(h.Sum(nil))},
		MetadataDirective: types.MetadataDirectiveReplace,
	})
	if err != nil {
		return fmt.Errorf("replacing %s: %w", s.Describe(name), err)
	}
	return nil
}

func (s *S3Store) Describe(name string) string {
	return "s3://" + s.bucket + "/" + s.key(name)
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	return errors.As(err, &nf) || errors.As(err, &nsk)
}

var _ sweep.RemoteStore = (*S3Store)(nil)
