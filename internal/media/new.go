package media

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/m-orlov/secondhand-bot/internal/config"
)

// New builds the configured media storage backend.
func New(ctx context.Context, cfg *config.Config) (Storage, error) {
	switch cfg.MediaBackend {
	case "local":
		return NewLocal(cfg.MediaRoot)
	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.S3Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.S3AccessKey,
				cfg.S3SecretKey,
				"",
			)))
		if err != nil {
			return nil, fmt.Errorf("load s3 config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		})
		return NewS3(ctx, client, cfg.S3Bucket, cfg.S3Prefix, cfg.MediaCacheDir)
	}
	return nil, fmt.Errorf("unsupported media backend %q", cfg.MediaBackend)
}
