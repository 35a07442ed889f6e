package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/iam"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const iamRoleType = "AWS::IAM::Role"

// TemplateRole is an IAM role resource declared in a CloudFormation template.
type TemplateRole struct {
	LogicalID string
	// RoleName is empty when the template does not set a literal name.
	RoleName string
}

// TemplateRoles lists the AWS::IAM::Role resources of a CloudFormation YAML
// template in document order. Intrinsic function tags such as !Ref or !Sub
// are kept as opaque nodes.
func TemplateRoles(data []byte) ([]TemplateRole, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	resources := mappingValue(doc.Content[0], "Resources")
	if resources == nil || resources.Kind != yaml.MappingNode {
		return nil, nil
	}

	var roles []TemplateRole
	for i := 0; i+1 < len(resources.Content); i += 2 {
		id, body := resources.Content[i].Value, resources.Content[i+1]
		typ := mappingValue(body, "Type")
		if typ == nil || typ.Value != iamRoleType {
			continue
		}
		role := TemplateRole{LogicalID: id}
		if name := mappingValue(mappingValue(body, "Properties"), "RoleName"); isLiteral(name) {
			role.RoleName = name.Value
		}
		roles = append(roles, role)
	}
	return roles, nil
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func isLiteral(n *yaml.Node) bool {
	if n == nil || n.Kind != yaml.ScalarNode {
		return false
	}
	return n.Tag == "" || strings.HasPrefix(n.Tag, "!!")
}

// TemplateRoleValidator compares the inline policies of the roles declared
// in a CloudFormation template against the required actions configured per
// logical resource id.
type TemplateRoleValidator struct {
	iam iamAPI
}

func NewTemplateRoleValidator(sess *session.Session) *TemplateRoleValidator {
	return &TemplateRoleValidator{iam: iam.New(sess)}
}

func newTemplateRoleValidatorWithClient(client iamAPI) *TemplateRoleValidator {
	return &TemplateRoleValidator{iam: client}
}

func (v *TemplateRoleValidator) CheckTemplate(ctx context.Context, templatePath string, permissions map[string][]string) ([]Result, error) {
	data, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, fmt.Errorf("reading template %s: %w", templatePath, err)
	}
	roles, err := TemplateRoles(data)
	if err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", templatePath, err)
	}

	var results []Result
	for _, role := range roles {
		required := permissions[role.LogicalID]
		if len(required) == 0 {
			zap.S().Infow("skipping role, no permissions are specified", "role", role.LogicalID)
			continue
		}
		if role.RoleName == "" {
			zap.S().Infow("role does not have a literal RoleName property, skipping", "role", role.LogicalID)
			continue
		}

		exists, err := roleExists(ctx, v.iam, role.RoleName)
		if err != nil {
			return results, fmt.Errorf("getting role %s: %w", role.RoleName, err)
		}
		if !exists {
			zap.S().Infow("role does not exist, skipping validation", "role", role.RoleName)
			continue
		}

		statements, err := v.inlineStatements(ctx, role.RoleName)
		if err != nil {
			return results, err
		}
		for _, action := range required {
			target := role.LogicalID + ":" + action
			var r Result
			if allows(statements, action) {
				zap.S().Infow("role has required permission", "role", role.LogicalID, "permission", action)
				r = pass(CheckTemplateRole, target, "has")
			} else {
				zap.S().Warnw("role is missing required permission", "role", role.LogicalID, "permission", action)
				r = fail(CheckTemplateRole, target, ReasonMissingPermission, "missing")
			}
			r.Advisory = true
			results = append(results, r)
		}
	}
	return results, nil
}

type statement struct {
	Sid    string
	Effect string
	Action []string
}

type policyDocument struct {
	Statement json.RawMessage `json:"Statement"`
}

type rawStatement struct {
	Sid    string          `json:"Sid"`
	Effect string          `json:"Effect"`
	Action json.RawMessage `json:"Action"`
}

func (v *TemplateRoleValidator) inlineStatements(ctx context.Context, role string) ([]statement, error) {
	var names []string
	err := v.iam.ListRolePoliciesPagesWithContext(ctx,
		&iam.ListRolePoliciesInput{RoleName: aws.String(role)},
		func(page *iam.ListRolePoliciesOutput, lastPage bool) bool {
			names = append(names, aws.StringValueSlice(page.PolicyNames)...)
			return !lastPage
		})
	if err != nil {
		return nil, fmt.Errorf("listing inline policies of role %s: %w", role, err)
	}
	sort.Strings(names)

	var out []statement
	for _, name := range names {
		res, err := v.iam.GetRolePolicyWithContext(ctx, &iam.GetRolePolicyInput{
			RoleName:   aws.String(role),
			PolicyName: aws.String(name),
		})
		if err != nil {
			return nil, fmt.Errorf("getting policy %s of role %s: %w", name, role, err)
		}
		stmts, err := parsePolicy(aws.StringValue(res.PolicyDocument))
		if err != nil {
			return nil, fmt.Errorf("policy %s of role %s: %w", name, role, err)
		}
		out = append(out, stmts...)
	}
	return out, nil
}

// parsePolicy decodes a URL-encoded IAM policy document. Statement and
// Action may each be a single value or a list.
func parsePolicy(encoded string) ([]statement, error) {
	decoded, err := url.PathUnescape(encoded)
	if err != nil {
		return nil, err
	}
	var doc policyDocument
	if err := json.Unmarshal([]byte(decoded), &doc); err != nil {
		return nil, err
	}

	var raws []rawStatement
	if err := json.Unmarshal(doc.Statement, &raws); err != nil {
		var single rawStatement
		if err := json.Unmarshal(doc.Statement, &single); err != nil {
			return nil, err
		}
		raws = []rawStatement{single}
	}

	out := make([]statement, 0, len(raws))
	for _, r := range raws {
		s := statement{Sid: r.Sid, Effect: r.Effect}
		if err := json.Unmarshal(r.Action, &s.Action); err != nil {
			var one string
			if err := json.Unmarshal(r.Action, &one); err != nil {
				continue
			}
			s.Action = []string{one}
		}
		out = append(out, s)
	}
	return out, nil
}

// allows reports whether the statements grant action, honoring "*"
// wildcards. An explicit Deny wins over any Allow. Actions compare
// case-insensitively.
func allows(statements []statement, action string) bool {
	action = strings.ToLower(action)
	allowed := false
	for _, s := range statements {
		if !matchesAction(s.Action, action) {
			continue
		}
		switch {
		case strings.EqualFold(s.Effect, "Deny"):
			return false
		case strings.EqualFold(s.Effect, "Allow"):
			allowed = true
		}
	}
	return allowed
}

func matchesAction(patterns []string, action string) bool {
	for _, a := range patterns {
		if ok, _ := path.Match(strings.ToLower(a), action); ok {
			return true
		}
	}
	return false
}
