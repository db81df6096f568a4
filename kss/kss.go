// Package kss stores uploaded file blobs outside of the database. There
// are two backends: a local filesystem folder and AWS S3.
package kss

import "io"

// Driver is the interface every blob backend implements. Keys look like
// paths ("42/report_1700000000.pdf"), the project id is the first
// segment.
type Driver interface {
	Save(key string, reader io.Reader) (int64, error)
	Open(key string) (io.ReadCloser, error)
	Delete(key string) error
	DeleteAllWithPrefix(prefix string) error
}

// DriverType selects a blob backend.
type DriverType string

// DriverTypeLocal is the local filesystem backend
const DriverTypeLocal DriverType = "Local"

// DriverTypeAWSS3 is the AWS S3 backend
const DriverTypeAWSS3 DriverType = "AWSS3"

// None disables file storage entirely
const None DriverType = ""

// Configuration selects and configures the blob backend.
type Configuration struct {
	DriverType         DriverType
	LocalConfiguration *LocalConfiguration
	S3Configuration    *S3Configuration
}

// LocalConfiguration configures the local filesystem backend.
type LocalConfiguration struct {
	BasePath string
}

// S3Configuration configures the AWS S3 backend.
type S3Configuration struct {
	AWSBucketName string
	AWSRegion     string
	AccessID      string
	AccessKey     string
	KeyPrefix     string
}
