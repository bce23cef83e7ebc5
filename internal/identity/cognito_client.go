package identity

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"

	"github.com/easybody/auth-gateway/internal/config"
)

// NewCognitoClient builds a user pool client. The public app client calls
// need no AWS credentials, so static keys are only used when configured.
func NewCognitoClient(ctx context.Context, cfg config.CognitoConfig) (*cip.Client, error) {
	var provider aws.CredentialsProvider = aws.AnonymousCredentials{}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		provider = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(provider),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return cip.NewFromConfig(awsCfg, func(o *cip.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}
