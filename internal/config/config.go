package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"
)

// Recognized configuration keys.
const (
	KeyRegion               = "aws_region"
	KeyTransformationRepo   = "transformation_folder_path"
	KeyInputBucket          = "s3_input_bucket_name"
	KeyInputPath            = "s3_bucket_input_path"
	KeyTempOutputPath       = "s3_bucket_temp_output_path"
	KeyFinalOutputPath      = "s3_bucket_final_output_path"
	KeyTransformationFolder = "transformation_folder"
	KeyInputFolder          = "input_folder"
	KeyRunPrefix            = "boat"
	KeyStepNamePrefix       = "step_name_prefix"
	KeyGitHubOrganization   = "GITHUB_ORGANIZATION"
	KeyGitHubRepository     = "GITHUB_REPOSITORY"
	KeyGitHubWorkflow       = "GITHUB_WORKFLOW"
	KeyGitHubEventType      = "GITHUB_EVENT_TYPE"
	KeySourceBucket         = "source_bucket"
	KeyDestinationBucket    = "destination_bucket"
	KeyPermissions          = "permissions"
	KeyOrganization         = "organization"
	KeyRepoName             = "repo_name"
	KeyFilePath             = "file_path"
	KeyAccessToken          = "access_token"
	KeyTemplatePath         = "cft_path"
)

// Placeholders used when a key is missing.
const (
	DefaultRegion               = "aws-region"
	DefaultTransformationRepo   = "your-username/your-repo"
	DefaultInputBucket          = "name-of-s3-bucket"
	DefaultInputPath            = "path-to-s3-bucket"
	DefaultTempOutputPath       = "path-to-temporary-s3-bucket"
	DefaultFinalOutputPath      = "path-to-final-s3-bucket"
	DefaultTransformationFolder = "path-to-s3-transformation_folder"
	DefaultRunPrefix            = "name-for-temp-files-to-be-stored"
	DefaultStepNamePrefix       = "ETL_"
	DefaultGitHubOrganization   = "your-organization"
	DefaultGitHubRepository     = "your-username/your-repo"
	DefaultGitHubWorkflow       = "name-of-your-workflow"
	DefaultGitHubEventType      = "type-of-the-github-workflow-event"
)

// PipelineConfig is the flat key/value document a run is started from. It is
// never mutated after Load.
type PipelineConfig struct {
	path   string
	values map[string]any
}

func Load(path string) (*PipelineConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(path, b)
}

func Parse(name string, data []byte) (*PipelineConfig, error) {
	values := make(map[string]any)
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", name, err)
	}
	return &PipelineConfig{path: name, values: values}, nil
}

func FromMap(values map[string]any) *PipelineConfig {
	copied := make(map[string]any, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &PipelineConfig{path: "<memory>", values: copied}
}

func (c *PipelineConfig) Path() string {
	return c.path
}

// Get returns the string value stored under key, or fallback when the key is
// absent or not a string. Falling back is logged so a degraded run stays
// visible.
func (c *PipelineConfig) Get(key, fallback string) string {
	v, ok := c.values[key]
	if !ok {
		zap.S().Warnw("configuration key missing, using placeholder", "key", key, "placeholder", fallback)
		return fallback
	}
	s, ok := v.(string)
	if !ok {
		zap.S().Warnw("configuration key is not a string, using placeholder", "key", key, "placeholder", fallback)
		return fallback
	}
	return s
}

func (c *PipelineConfig) Has(key string) bool {
	_, ok := c.values[key]
	return ok
}

func (c *PipelineConfig) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Permissions returns the role name -> required permission names mapping.
// Entries that are not lists of strings are dropped with a warning.
func (c *PipelineConfig) Permissions() map[string][]string {
	out := make(map[string][]string)
	raw, ok := c.values[KeyPermissions]
	if !ok {
		return out
	}
	roles, ok := raw.(map[string]any)
	if !ok {
		zap.S().Warnw("permissions must be an object of role name to permission list", "key", KeyPermissions)
		return out
	}
	for role, v := range roles {
		list, ok := v.([]any)
		if !ok {
			zap.S().Warnw("ignoring malformed permission list", "role", role)
			continue
		}
		perms := make([]string, 0, len(list))
		for _, p := range list {
			if s, ok := p.(string); ok {
				perms = append(perms, s)
			}
		}
		out[role] = perms
	}
	return out
}

func (c *PipelineConfig) Region() string {
	return c.Get(KeyRegion, DefaultRegion)
}

func (c *PipelineConfig) TransformationRepo() string {
	return c.Get(KeyTransformationRepo, DefaultTransformationRepo)
}

func (c *PipelineConfig) InputBucket() string {
	return c.Get(KeyInputBucket, DefaultInputBucket)
}

// ScriptsPath is the storage prefix staged scripts are referenced from.
func (c *PipelineConfig) ScriptsPath() string {
	return c.Get(KeyInputPath, DefaultInputPath) + c.Get(KeyTransformationFolder, DefaultTransformationFolder)
}

func (c *PipelineConfig) TempOutputPath() string {
	return c.Get(KeyTempOutputPath, DefaultTempOutputPath)
}

func (c *PipelineConfig) FinalOutputPath() string {
	return c.Get(KeyFinalOutputPath, DefaultFinalOutputPath)
}

func (c *PipelineConfig) InputFolder() string {
	return c.Get(KeyInputFolder, "")
}

func (c *PipelineConfig) RunPrefix() string {
	return c.Get(KeyRunPrefix, DefaultRunPrefix)
}

func (c *PipelineConfig) StepNamePrefix() string {
	return c.Get(KeyStepNamePrefix, DefaultStepNamePrefix)
}
