// Package snsinfra wires the AWS SNS client used for user-facing outcome
// notifications.
package snsinfra

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/platform/config"
)

// NewClient creates an SNS client from configuration.
func NewClient(ctx context.Context, cfg config.SNSConfig) (*sns.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config for SNS: %w", err)
	}
	return sns.NewFromConfig(awsCfg), nil
}
