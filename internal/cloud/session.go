package cloud

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"

	"emr_etl/internal/config"
)

// NewSession builds an AWS session bound to the explicit credential triple
// and region. The shared config and credentials files are never loaded.
func NewSession(creds config.Credentials, region string) (*session.Session, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	sess, err := session.NewSessionWithOptions(session.Options{
		Config: aws.Config{
			Region:      aws.String(region),
			Credentials: credentials.NewStaticCredentials(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken),
		},
		SharedConfigState: session.SharedConfigDisable,
	})
	if err != nil {
		return nil, fmt.Errorf("creating aws session: %w", err)
	}
	return sess, nil
}
