// utils/r2.go
package utils

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var r2Client *s3.Client
var r2Bucket string
var cdnBaseURL string

// R2Enabled reports whether snapshot publishing is configured.
func R2Enabled() bool {
	return r2Client != nil
}

// InitR2 wires the Cloudflare R2 client used for publishing leaderboard
// snapshots. Publishing is optional — when the account id is unset the
// service runs without it.
func InitR2() error {
	accountID := os.Getenv("CLOUDFLARE_ACCOUNT_ID")
	if accountID == "" {
		return nil
	}
	accessKeyID := os.Getenv("R2_ACCESS_KEY_ID")
	accessKeySecret := os.Getenv("R2_ACCESS_KEY_SECRET")
	r2Bucket = os.Getenv("R2_BUCKET_NAME")
	cdnBaseURL = os.Getenv("CDN_BASE_URL")
	if cdnBaseURL == "" {
		cdnBaseURL = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)
	}

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID, accessKeySecret, "",
		)),
		config.WithEndpointResolver(aws.EndpointResolverFunc(
			func(service, region string) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL: fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID),
				}, nil
			}),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to load R2 config: %w", err)
	}

	r2Client = s3.NewFromConfig(cfg)
	return nil
}

// PublishJSONToR2 uploads a JSON document and returns its public CDN URL.
// key is the R2 object key (e.g., "leaderboards/global.json")
func PublishJSONToR2(key string, payload []byte) (string, error) {
	if r2Client == nil {
		return "", fmt.Errorf("R2 publishing is not configured")
	}

	_, err := r2Client.PutObject(context.TODO(), &s3.PutObjectInput{
		Bucket:      aws.String(r2Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to R2: %w", err)
	}

	return fmt.Sprintf("%s/%s", cdnBaseURL, key), nil
}
