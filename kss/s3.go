package kss

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/docbase-tech/docbase/core/logger"
)

// S3 stores blobs in an AWS S3 bucket.
type S3 struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// NewS3 returns an S3 driver for the configured bucket.
func NewS3(kssConfig S3Configuration) (*S3, error) {
	if kssConfig.AWSBucketName == "" {
		return nil, fmt.Errorf("AWSBucketName must not be empty")
	}

	awsConfig, err := config.LoadDefaultConfig(
		context.TODO(),
		config.WithRegion(kssConfig.AWSRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(kssConfig.AccessID, kssConfig.AccessKey, "")),
	)
	if err != nil {
		return nil, err
	}
	logger.Default().Debugln("kss S3 enabled")
	return &S3{
		client:    s3.NewFromConfig(awsConfig),
		bucket:    kssConfig.AWSBucketName,
		keyPrefix: kssConfig.KeyPrefix,
	}, nil
}

// Save uploads the blob for key. S3 does not report the object size on
// put, so Save counts the bytes while streaming.
func (s S3) Save(key string, reader io.Reader) (int64, error) {
	counted := &countingReader{reader: reader}
	_, err := s.client.PutObject(context.TODO(), &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.keyPrefix + key),
		Body:   counted,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to upload '%s': %v", key, err)
	}
	return counted.count, nil
}

// Open returns a reader for the blob at key. The caller closes it.
func (s S3) Open(key string) (io.ReadCloser, error) {
	resp, err := s.client.GetObject(context.TODO(), &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.keyPrefix + key),
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Delete deletes the blob at key.
func (s S3) Delete(key string) error {
	logger.Default().Infoln("deleting ", s.keyPrefix+key)
	_, err := s.client.DeleteObject(context.TODO(), &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.keyPrefix + key),
	})
	return err
}

// DeleteAllWithPrefix deletes every blob below prefix.
func (s S3) DeleteAllWithPrefix(prefix string) error {
	keys, err := s.listAllWithPrefix(prefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		logger.Default().Infoln("deleting ", key)
		_, err := s.client.DeleteObject(context.TODO(), &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s S3) listAllWithPrefix(prefix string) (keys []string, err error) {
	var continuationToken *string
	for {
		input := &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.keyPrefix + prefix),
			ContinuationToken: continuationToken,
		}
		var resp *s3.ListObjectsV2Output
		resp, err = s.client.ListObjectsV2(context.TODO(), input)
		if err != nil {
			return nil, err
		}
		for _, item := range resp.Contents {
			keys = append(keys, *item.Key)
		}
		continuationToken = resp.NextContinuationToken
		if continuationToken == nil {
			return keys, nil
		}
	}
}

type countingReader struct {
	reader io.Reader
	count  int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.reader.Read(p)
	c.count += int64(n)
	return n, err
}
