// utils/r2.go
package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"competition-engine/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
}

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// R2Archive stores executed draws as JSON objects in an R2 bucket.
type R2Archive struct {
	client objectPutter
	bucket string
}

func NewR2Archive(ctx context.Context, cfg R2Config) (*R2Archive, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.AccessKeySecret, "",
		)),
		config.WithEndpointResolver(aws.EndpointResolverFunc(
			func(service, region string) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL: fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID),
				}, nil
			}),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}
	return &R2Archive{client: s3.NewFromConfig(awsCfg), bucket: cfg.Bucket}, nil
}

// DrawKey is the object key of a draw result,
// e.g. "draws/<competition>/<stage>/20260102T150405Z.json".
func DrawKey(result models.DrawResult) string {
	return fmt.Sprintf("draws/%s/%s/%s.json",
		result.CompetitionID, result.StageID, result.DrawnAt.UTC().Format("20060102T150405Z"))
}

func (a *R2Archive) SaveDraw(ctx context.Context, result models.DrawResult) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode draw result: %w", err)
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(DrawKey(result)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload draw result to R2: %w", err)
	}
	return nil
}
