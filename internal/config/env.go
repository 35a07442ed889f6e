package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const DotEnvPath = ".env"

// Credentials is the temporary AWS session triple. It is read once at the
// command edge and handed to constructors.
type Credentials struct {
	AccessKeyID     string `envconfig:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `envconfig:"AWS_SECRET_ACCESS_KEY"`
	SessionToken    string `envconfig:"AWS_SESSION_TOKEN"`
}

func (c Credentials) missing() []string {
	var out []string
	if c.AccessKeyID == "" {
		out = append(out, "AWS_ACCESS_KEY_ID")
	}
	if c.SecretAccessKey == "" {
		out = append(out, "AWS_SECRET_ACCESS_KEY")
	}
	if c.SessionToken == "" {
		out = append(out, "AWS_SESSION_TOKEN")
	}
	return out
}

func (c Credentials) Validate() error {
	if m := c.missing(); len(m) > 0 {
		return NewErrMissingCredentials(m)
	}
	return nil
}

type Settings struct {
	LogLevel       string        `envconfig:"ETL_LOG_LEVEL" default:"info"`
	PollInterval   time.Duration `envconfig:"ETL_POLL_INTERVAL" default:"20s"`
	StorageBackend string        `envconfig:"ETL_STORAGE_BACKEND" default:"s3"`
	MinioEndpoint  string        `envconfig:"ETL_MINIO_ENDPOINT" default:"localhost:9000"`
	MinioUseSSL    bool          `envconfig:"ETL_MINIO_USE_SSL" default:"false"`
	GitHubAPIURL   string        `envconfig:"ETL_GITHUB_API_URL" default:"https://api.github.com"`
	GitHubToken    string        `envconfig:"GITHUB_TOKEN"`
	AuditDB        string        `envconfig:"ETL_AUDIT_DB" default:""`
	StagingDir     string        `envconfig:"ETL_STAGING_DIR" default:"local_transformation_repo"`
}

// ReadDotenv loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func ReadDotenv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func NewSettings() (*Settings, error) {
	s := new(Settings)
	if err := envconfig.Process("", s); err != nil {
		return nil, err
	}
	s.StorageBackend = strings.ToLower(s.StorageBackend)
	return s, nil
}

// LoadCredentials reads the credential triple from the environment and fails
// listing every variable that is unset.
func LoadCredentials() (Credentials, error) {
	var c Credentials
	if err := envconfig.Process("", &c); err != nil {
		return Credentials{}, err
	}
	if err := c.Validate(); err != nil {
		return Credentials{}, err
	}
	return c, nil
}
