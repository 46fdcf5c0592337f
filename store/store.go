// Package store publishes produced dataset artifacts to an S3 compatible bucket.
package store

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidEndpoint = errors.New("invalid S3 endpoint")
	ErrEmptyPrefix     = errors.New("refusing to purge without a key prefix")
)

// Config is parsed from an endpoint of the form
// s3://<access key>:<secret key>@<host:port>/<region>/<bucket>.
// The s3 and http schemes talk plain HTTP, https uses TLS.
type Config struct {
	RawEndpoint string
	Endpoint    string
	AccessKey   string
	SecretKey   string
	Region      string
	Bucket      string
	DisableSSL  bool
}

func ParseEndpoint(endpoint string) (*Config, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}

	cfg := &Config{RawEndpoint: endpoint}
	switch u.Scheme {
	case "s3", "http":
		cfg.DisableSSL = true
		cfg.Endpoint = "http://" + u.Host
	case "https":
		cfg.Endpoint = "https://" + u.Host
	default:
		return nil, fmt.Errorf("%w: unsupported scheme '%s'", ErrInvalidEndpoint, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidEndpoint)
	}
	if u.User != nil {
		cfg.AccessKey = u.User.Username()
		cfg.SecretKey, _ = u.User.Password()
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("%w: expected /<region>/<bucket>, got '%s'", ErrInvalidEndpoint, u.Path)
	}
	cfg.Region, cfg.Bucket = parts[0], parts[1]
	return cfg, nil
}

type Store struct {
	Client   *s3.S3
	Uploader *s3manager.Uploader
	Config   *Config
	log      logrus.FieldLogger
}

func NewFromEndpoint(endpoint string, log logrus.FieldLogger) (*Store, error) {
	cfg, err := ParseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	awsConfig := &aws.Config{
		Endpoint:         aws.String(cfg.Endpoint),
		Region:           aws.String(cfg.Region),
		DisableSSL:       aws.Bool(cfg.DisableSSL),
		S3ForcePathStyle: aws.Bool(true),
	}
	if cfg.AccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, err
	}

	client := s3.New(sess)
	return &Store{
		Client:   client,
		Uploader: s3manager.NewUploaderWithClient(client),
		Config:   cfg,
		log:      log,
	}, nil
}

// Key joins object key segments with forward slashes regardless of the OS.
func Key(parts ...string) string {
	var clean []string
	for _, p := range parts {
		p = strings.Trim(filepath.ToSlash(p), "/")
		if p != "" {
			clean = append(clean, p)
		}
	}
	return path.Join(clean...)
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".avi":
		return "video/x-msvideo"
	case ".mp4":
		return "video/mp4"
	}
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// UploadFile puts the local file at filePath under key in the configured bucket.
func (s *Store) UploadFile(ctx context.Context, key, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = s.Uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.Config.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(filePath)),
	})
	if err != nil {
		return fmt.Errorf("unable to upload '%s' to '%s/%s': %w", filePath, s.Config.Bucket, key, err)
	}
	s.log.Debugf("'%s' uploaded to '%s/%s'", filePath, s.Config.Bucket, key)
	return nil
}

// Purge deletes every object under the key directory prefix and returns how
// many were removed. prefix "train/Abuse" covers "train/Abuse/a.avi" but not
// "train/Abuse2/a.avi". An empty prefix, which would cover the whole bucket,
// is rejected.
func (s *Store) Purge(ctx context.Context, prefix string) (int, error) {
	prefix = Key(prefix)
	if prefix == "" {
		return 0, ErrEmptyPrefix
	}
	prefix += "/"

	var keys []*string
	err := s.Client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Config.Bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			keys = append(keys, obj.Key)
		}
		return true
	})
	if err != nil {
		return 0, err
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error
	wg.Add(len(keys))
	for _, key := range keys {
		go func(wg *sync.WaitGroup, key *string) {
			defer wg.Done()
			_, err := s.Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(s.Config.Bucket),
				Key:    key,
			})
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("unable to delete '%s': %w", aws.StringValue(key), err))
				mu.Unlock()
			}
		}(&wg, key)
	}
	wg.Wait()

	s.log.Infof("purged %d objects under '%s/%s'", len(keys)-len(errs), s.Config.Bucket, prefix)
	return len(keys) - len(errs), errors.Join(errs...)
}

// PresignGet returns a time limited download URL for key.
func (s *Store) PresignGet(key string, ttl time.Duration) (string, error) {
	r, _ := s.Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.Config.Bucket),
		Key:    aws.String(key),
	})
	return r.Presign(ttl)
}
