package validation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/iam"
	"go.uber.org/zap"
)

var roleNamePattern = regexp.MustCompile(`^(StackSet|EMR)[a-zA-Z0-9_]+Role$`)

type iamAPI interface {
	GetRoleWithContext(aws.Context, *iam.GetRoleInput, ...request.Option) (*iam.GetRoleOutput, error)
	ListAttachedRolePoliciesPagesWithContext(aws.Context, *iam.ListAttachedRolePoliciesInput, func(*iam.ListAttachedRolePoliciesOutput, bool) bool, ...request.Option) error
	ListRolePoliciesPagesWithContext(aws.Context, *iam.ListRolePoliciesInput, func(*iam.ListRolePoliciesOutput, bool) bool, ...request.Option) error
	GetRolePolicyWithContext(aws.Context, *iam.GetRolePolicyInput, ...request.Option) (*iam.GetRolePolicyOutput, error)
}

var _ iamAPI = (*iam.IAM)(nil)

// RoleValidator reports, per role, which required policies are attached.
// Missing policies are advisory: they are reported, never fatal by default.
type RoleValidator struct {
	iam        iamAPI
	checkNames bool
}

func NewRoleValidator(sess *session.Session, checkNames bool) *RoleValidator {
	return &RoleValidator{iam: iam.New(sess), checkNames: checkNames}
}

func newRoleValidatorWithClient(client iamAPI, checkNames bool) *RoleValidator {
	return &RoleValidator{iam: client, checkNames: checkNames}
}

// ValidRoleName reports whether name matches (StackSet|EMR)<alnum/_>+Role.
func ValidRoleName(name string) bool {
	return roleNamePattern.MatchString(name)
}

// CheckRoles walks permissions in role name order. A role that does not
// exist is skipped with a notice and contributes no result; any other IAM
// failure aborts the check.
func (v *RoleValidator) CheckRoles(ctx context.Context, permissions map[string][]string) ([]Result, error) {
	roles := make([]string, 0, len(permissions))
	for role := range permissions {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	var results []Result
	for _, role := range roles {
		exists, err := roleExists(ctx, v.iam, role)
		if err != nil {
			return results, fmt.Errorf("getting role %s: %w", role, err)
		}
		if !exists {
			zap.S().Infow("role does not exist, skipping validation", "role", role)
			continue
		}
		zap.S().Infow("role exists", "role", role)

		if v.checkNames {
			results = append(results, nameResult(role))
		}

		attached, err := v.attachedPolicyNames(ctx, role)
		if err != nil {
			return results, fmt.Errorf("listing policies of role %s: %w", role, err)
		}
		for _, perm := range permissions[role] {
			target := role + ":" + perm
			var r Result
			if attached[perm] {
				zap.S().Infow("role has required permission", "role", role, "permission", perm)
				r = pass(CheckRolePermission, target, "has")
			} else {
				zap.S().Warnw("role is missing required permission", "role", role, "permission", perm)
				r = fail(CheckRolePermission, target, ReasonMissingPermission, "missing")
			}
			r.Advisory = true
			results = append(results, r)
		}
	}
	return results, nil
}

func nameResult(role string) Result {
	var r Result
	if ValidRoleName(role) {
		r = pass(CheckRoleName, role, "follows the naming format")
	} else {
		zap.S().Warnw("role does not follow the naming format", "role", role, "pattern", roleNamePattern.String())
		r = fail(CheckRoleName, role, ReasonBadName, "does not match "+roleNamePattern.String())
	}
	r.Advisory = true
	return r
}

func (v *RoleValidator) attachedPolicyNames(ctx context.Context, role string) (map[string]bool, error) {
	names := make(map[string]bool)
	err := v.iam.ListAttachedRolePoliciesPagesWithContext(ctx,
		&iam.ListAttachedRolePoliciesInput{RoleName: aws.String(role)},
		func(page *iam.ListAttachedRolePoliciesOutput, lastPage bool) bool {
			for _, p := range page.AttachedPolicies {
				names[aws.StringValue(p.PolicyName)] = true
			}
			return !lastPage
		})
	return names, err
}

func roleExists(ctx context.Context, client iamAPI, role string) (bool, error) {
	_, err := client.GetRoleWithContext(ctx, &iam.GetRoleInput{RoleName: aws.String(role)})
	if err == nil {
		return true, nil
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) && aerr.Code() == iam.ErrCodeNoSuchEntityException {
		return false, nil
	}
	return false, err
}
