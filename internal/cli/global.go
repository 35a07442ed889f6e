package cli

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"emr_etl/internal/cloud"
	"emr_etl/internal/config"
	"emr_etl/internal/github"
	"emr_etl/internal/storage"
	"emr_etl/pkg/log"
)

const DefaultConfigPath = "config.json"

type GlobalOptions struct {
	ConfigPath string
	EnvFile    string
	LogLevel   string

	settings *config.Settings
	out      io.Writer
	in       io.Reader
}

func DefaultGlobalOptions() GlobalOptions {
	return GlobalOptions{
		ConfigPath: DefaultConfigPath,
		EnvFile:    config.DotEnvPath,
	}
}

func (o *GlobalOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.ConfigPath, "config", "c", o.ConfigPath, "Path of the pipeline configuration file")
	fs.StringVar(&o.EnvFile, "env-file", o.EnvFile, "Dotenv file loaded before reading the environment")
	fs.StringVar(&o.LogLevel, "log-level", o.LogLevel, "Log level, overrides ETL_LOG_LEVEL")
}

// Complete loads the dotenv file and the settings and installs the global
// logger.
func (o *GlobalOptions) Complete(cmd *cobra.Command, args []string) error {
	if err := config.ReadDotenv(o.EnvFile); err != nil {
		return errors.Wrapf(err, "reading %s", o.EnvFile)
	}
	settings, err := config.NewSettings()
	if err != nil {
		return errors.Wrap(err, "reading settings")
	}
	o.settings = settings

	level := o.LogLevel
	if level == "" {
		level = settings.LogLevel
	}
	zap.ReplaceGlobals(log.InitLog(log.ParseLevel(level)))

	o.out = cmd.OutOrStdout()
	o.in = cmd.InOrStdin()
	return nil
}

func (o *GlobalOptions) Validate(args []string) error {
	return nil
}

func (o *GlobalOptions) loadConfig() (*config.PipelineConfig, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		zap.S().Errorw("failed to load configuration", "path", o.ConfigPath, "error", err)
		return nil, err
	}
	return cfg, nil
}

// awsSession reads the credential triple and opens an AWS session in the
// configured region.
func (o *GlobalOptions) awsSession(cfg *config.PipelineConfig) (*session.Session, config.Credentials, error) {
	creds, err := config.LoadCredentials()
	if err != nil {
		zap.S().Errorw("missing credentials", "error", err)
		return nil, config.Credentials{}, err
	}
	sess, err := cloud.NewSession(creds, cfg.Region())
	if err != nil {
		return nil, config.Credentials{}, err
	}
	return sess, creds, nil
}

func (o *GlobalOptions) objectStore(cfg *config.PipelineConfig, sess *session.Session, creds config.Credentials) (storage.ObjectStore, error) {
	objects, err := storage.Open(o.settings, sess, creds, cfg.Region())
	if err != nil {
		return nil, errors.Wrap(err, "opening object storage")
	}
	return objects, nil
}

// githubClient authenticates with the configured access token, falling back
// to GITHUB_TOKEN.
func (o *GlobalOptions) githubClient(ctx context.Context, cfg *config.PipelineConfig) *github.Client {
	token := o.settings.GitHubToken
	if cfg.Has(config.KeyAccessToken) {
		token = cfg.Get(config.KeyAccessToken, "")
	}
	return github.NewClient(ctx, token, o.settings.GitHubAPIURL)
}
