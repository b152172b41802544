package services

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// AWSSNSCodeSender sends verification code SMS messages using AWS SNS
type AWSSNSCodeSender struct {
	snsClient *sns.Client
}

// NewAWSSNSCodeSender creates a new AWS SNS code sender
func NewAWSSNSCodeSender(region string) (*AWSSNSCodeSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSNSCodeSender{snsClient: sns.NewFromConfig(cfg)}, nil
}

// SendCode sends the verification code to the given phone number. Normalized
// destinations carry the country code but no plus sign; SNS wants E.164.
func (s *AWSSNSCodeSender) SendCode(ctx context.Context, destination, code string) error {
	message := fmt.Sprintf(codeMessage, code)
	phoneNumber := "+" + destination

	_, err := s.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(phoneNumber),
		Message:     aws.String(message),
	})
	if err != nil {
		return fmt.Errorf("failed to publish SMS: %w", err)
	}

	return nil
}
