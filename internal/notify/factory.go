package notify

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-adoption-backend/internal/config"
	"github.com/tbourn/go-adoption-backend/internal/services"
)

// FromConfig builds the sink selected by NOTIFY_DRIVER.
func FromConfig(ctx context.Context, cfg config.Config, logger zerolog.Logger) (services.Notifier, error) {
	n := cfg.Notify
	switch n.Driver {
	case "", "log":
		return &LogNotifier{Logger: logger.With().Str("component", "notify").Logger()}, nil
	case "smtp":
		return NewSMTPNotifier(n.SMTP.Host, n.SMTP.Port, n.SMTP.Username, n.SMTP.Password, n.From), nil
	case "ses", "sns":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		if n.Driver == "ses" {
			return &SESNotifier{Client: ses.NewFromConfig(awsCfg), From: n.From}, nil
		}
		return &SNSNotifier{Client: sns.NewFromConfig(awsCfg), CountryCode: n.SMSCountryCode}, nil
	}
	return nil, fmt.Errorf("unknown notify driver %q", n.Driver)
}
