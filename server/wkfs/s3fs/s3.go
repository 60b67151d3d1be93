// Package s3fs registers a /s3/ well-known filesystem so that signing keys
// can be stored as objects in an S3 bucket, e.g.
// `/s3/keys-bucket/cloudfront/private_key.pem`.
package s3fs

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"go4.org/wkfs"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/cashier-go/cfsign/server/config"
)

const prefix = "/s3/"

// Register the /s3/ filesystem as a well-known filesystem.
func Register(config *config.AWS) {
	if config == nil {
		registerBrokenFS(errors.New("aws credentials not found"))
		return
	}
	ac := &aws.Config{}
	// If region is unset the SDK will attempt to read the region from the environment.
	if config.Region != "" {
		ac.Region = aws.String(config.Region)
	}
	// Attempt to get credentials from the cfsign config.
	// Otherwise check for standard credentials. If neither are present register the fs as broken.
	if config.AccessKey != "" && config.SecretKey != "" {
		ac.Credentials = credentials.NewStaticCredentials(config.AccessKey, config.SecretKey, "")
	}
	sess, err := session.NewSession(ac)
	if err != nil {
		registerBrokenFS(err)
		return
	}
	if _, err := sess.Config.Credentials.Get(); err != nil {
		registerBrokenFS(errors.New("aws credentials not found"))
		return
	}
	if aws.StringValue(sess.Config.Region) == "" {
		registerBrokenFS(errors.New("aws region configuration not found"))
		return
	}
	wkfs.RegisterFS(prefix, &s3FS{
		sc: s3.New(sess),
	})
}

func registerBrokenFS(err error) {
	wkfs.RegisterFS(prefix, &s3FS{
		err: err,
	})
}

type s3FS struct {
	sc  s3iface.S3API
	err error
}

func (fs *s3FS) parseName(name string) (bucket, fileName string, err error) {
	if fs.err != nil {
		return "", "", fs.err
	}
	name = strings.TrimPrefix(name, prefix)
	i := strings.Index(name, "/")
	if i < 0 {
		return name, "", nil
	}
	return name[:i], name[i+1:], nil
}

func isNotFound(err error) bool {
	var awsErr awserr.Error
	if errors.As(err, &awsErr) {
		switch awsErr.Code() {
		case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, "NotFound":
			return true
		}
	}
	return false
}

// Open opens the named object for reading.
func (fs *s3FS) Open(name string) (wkfs.File, error) {
	bucket, fileName, err := fs.parseName(name)
	if err != nil {
		return nil, err
	}
	obj, err := fs.sc.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(fileName),
	})
	if isNotFound(err) {
		return nil, os.ErrNotExist
	}
	if err != nil {
		return nil, err
	}
	defer obj.Body.Close()
	slurp, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, err
	}
	return &file{
		name:    name,
		modtime: aws.TimeValue(obj.LastModified),
		Reader:  bytes.NewReader(slurp),
	}, nil
}

func (fs *s3FS) Stat(name string) (os.FileInfo, error) { return fs.Lstat(name) }
func (fs *s3FS) Lstat(name string) (os.FileInfo, error) {
	bucket, fileName, err := fs.parseName(name)
	if err != nil {
		return nil, err
	}
	obj, err := fs.sc.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(fileName),
	})
	if isNotFound(err) {
		return nil, os.ErrNotExist
	}
	if err != nil {
		return nil, err
	}
	return &statInfo{
		name:    path.Base(fileName),
		size:    aws.Int64Value(obj.ContentLength),
		modtime: aws.TimeValue(obj.LastModified),
	}, nil
}

func (fs *s3FS) MkdirAll(path string, perm os.FileMode) error { return nil }

func (fs *s3FS) OpenFile(name string, flag int, perm os.FileMode) (wkfs.FileWriter, error) {
	return nil, errors.New("not implemented")
}

func (fs *s3FS) Remove(name string) error {
	return errors.New("not implemented")
}

type statInfo struct {
	name    string
	size    int64
	isDir   bool
	modtime time.Time
}

func (si *statInfo) IsDir() bool        { return si.isDir }
func (si *statInfo) ModTime() time.Time { return si.modtime }
func (si *statInfo) Mode() os.FileMode  { return 0400 }
func (si *statInfo) Name() string       { return path.Base(si.name) }
func (si *statInfo) Size() int64        { return si.size }
func (si *statInfo) Sys() interface{}   { return nil }

type file struct {
	name    string
	modtime time.Time
	*bytes.Reader
}

func (*file) Close() error   { return nil }
func (f *file) Name() string { return path.Base(f.name) }
func (f *file) Stat() (os.FileInfo, error) {
	return &statInfo{
		name:    f.name,
		size:    f.Size(),
		modtime: f.modtime,
	}, nil
}
