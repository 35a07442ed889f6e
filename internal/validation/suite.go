package validation

import (
	"context"
	"errors"

	"emr_etl/internal/config"
)

// Params selects which checks a Suite runs. Empty fields disable the
// corresponding check.
type Params struct {
	SourcePath        string
	DestinationPath   string
	SourceBucket      string
	DestinationBucket string
	Permissions       map[string][]string
	TemplatePath      string
	Organization      string
	Repository        string
	FilePath          string
}

// ParamsFromConfig fills the checks configured in cfg. Object paths are not
// part of the configuration and are left to the caller.
func ParamsFromConfig(cfg *config.PipelineConfig) Params {
	p := Params{Permissions: cfg.Permissions()}
	if cfg.Has(config.KeySourceBucket) {
		p.SourceBucket = cfg.Get(config.KeySourceBucket, "")
	}
	if cfg.Has(config.KeyDestinationBucket) {
		p.DestinationBucket = cfg.Get(config.KeyDestinationBucket, "")
	}
	if cfg.Has(config.KeyTemplatePath) {
		p.TemplatePath = cfg.Get(config.KeyTemplatePath, "")
	}
	if cfg.Has(config.KeyFilePath) {
		p.Organization = cfg.Get(config.KeyOrganization, "")
		p.Repository = cfg.Get(config.KeyRepoName, "")
		p.FilePath = cfg.Get(config.KeyFilePath, "")
	}
	return p
}

// Suite groups the validators. A nil validator disables its checks.
type Suite struct {
	Paths     *PathValidator
	Roles     *RoleValidator
	Templates *TemplateRoleValidator
	Files     *RemoteFileValidator
}

// Run executes every enabled check and returns all results. Errors from
// individual checks are joined; the remaining checks still run.
func (s *Suite) Run(ctx context.Context, p Params) (*Report, error) {
	report := new(Report)
	var errs []error

	if s.Paths != nil {
		if p.SourcePath != "" || p.DestinationPath != "" {
			report.add(s.Paths.CheckPaths(ctx, p.SourcePath, p.DestinationPath)...)
		}
		if p.SourceBucket != "" || p.DestinationBucket != "" {
			report.add(s.Paths.CheckBuckets(ctx, p.SourceBucket, p.DestinationBucket)...)
		}
	}

	if s.Files != nil && p.FilePath != "" {
		r, err := s.Files.CheckFile(ctx, p.Organization, p.Repository, p.FilePath)
		report.add(r)
		if err != nil {
			errs = append(errs, err)
		}
	}

	if s.Roles != nil && len(p.Permissions) > 0 {
		results, err := s.Roles.CheckRoles(ctx, p.Permissions)
		report.add(results...)
		if err != nil {
			errs = append(errs, err)
		}
	}

	if s.Templates != nil && p.TemplatePath != "" {
		results, err := s.Templates.CheckTemplate(ctx, p.TemplatePath, p.Permissions)
		report.add(results...)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return report, errors.Join(errs...)
}
