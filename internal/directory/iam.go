package directory

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	krerrors "github.com/systmms/keyrotator/internal/errors"
	"github.com/systmms/keyrotator/internal/secure"
)

// IAMClientAPI is the subset of the IAM client used by the directory.
// It exists so tests can inject a fake.
type IAMClientAPI interface {
	ListUsers(ctx context.Context, params *iam.ListUsersInput, optFns ...func(*iam.Options)) (*iam.ListUsersOutput, error)
	ListUserTags(ctx context.Context, params *iam.ListUserTagsInput, optFns ...func(*iam.Options)) (*iam.ListUserTagsOutput, error)
	ListAccessKeys(ctx context.Context, params *iam.ListAccessKeysInput, optFns ...func(*iam.Options)) (*iam.ListAccessKeysOutput, error)
	CreateAccessKey(ctx context.Context, params *iam.CreateAccessKeyInput, optFns ...func(*iam.Options)) (*iam.CreateAccessKeyOutput, error)
	DeleteAccessKey(ctx context.Context, params *iam.DeleteAccessKeyInput, optFns ...func(*iam.Options)) (*iam.DeleteAccessKeyOutput, error)
	ListAccountAliases(ctx context.Context, params *iam.ListAccountAliasesInput, optFns ...func(*iam.Options)) (*iam.ListAccountAliasesOutput, error)
}

// STSClientAPI is the subset of the STS client used for account identity.
type STSClientAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// IAMDirectory implements CredentialDirectory and AccountResolver on AWS IAM.
type IAMDirectory struct {
	client IAMClientAPI
	stsc   STSClientAPI
	now    func() time.Time
}

// IAMOption is a functional option for configuring the directory.
type IAMOption func(*IAMDirectory)

// WithIAMClient sets a custom IAM client (for testing).
func WithIAMClient(client IAMClientAPI) IAMOption {
	return func(d *IAMDirectory) {
		d.client = client
	}
}

// WithSTSClient sets a custom STS client (for testing).
func WithSTSClient(client STSClientAPI) IAMOption {
	return func(d *IAMDirectory) {
		d.stsc = client
	}
}

// WithClock sets the time source used for key-age snapshots (for testing).
func WithClock(now func() time.Time) IAMOption {
	return func(d *IAMDirectory) {
		d.now = now
	}
}

// NewIAMDirectory creates a directory from a loaded AWS config.
func NewIAMDirectory(cfg aws.Config, opts ...IAMOption) *IAMDirectory {
	d := &IAMDirectory{
		now: time.Now,
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.client == nil {
		d.client = iam.NewFromConfig(cfg)
	}
	if d.stsc == nil {
		d.stsc = sts.NewFromConfig(cfg)
	}

	return d
}

// ListPrincipals returns all IAM user names, draining pagination fully
// before returning.
func (d *IAMDirectory) ListPrincipals(ctx context.Context) ([]string, error) {
	var names []string
	input := &iam.ListUsersInput{}

	for {
		resp, err := d.client.ListUsers(ctx, input)
		if err != nil {
			return nil, krerrors.DirectoryError{Op: "list-principals", Err: err}
		}

		for _, u := range resp.Users {
			if u.UserName != nil {
				names = append(names, *u.UserName)
			}
		}

		if !resp.IsTruncated || resp.Marker == nil {
			break
		}
		input.Marker = resp.Marker
	}

	return names, nil
}

// ListTags returns the principal's tags as a map, draining pagination.
func (d *IAMDirectory) ListTags(ctx context.Context, principal string) (map[string]string, error) {
	tags := make(map[string]string)
	input := &iam.ListUserTagsInput{UserName: aws.String(principal)}

	for {
		resp, err := d.client.ListUserTags(ctx, input)
		if err != nil {
			return nil, krerrors.DirectoryError{Op: "list-tags", Principal: principal, Err: err}
		}

		for _, t := range resp.Tags {
			if t.Key != nil && t.Value != nil {
				tags[*t.Key] = *t.Value
			}
		}

		if !resp.IsTruncated || resp.Marker == nil {
			break
		}
		input.Marker = resp.Marker
	}

	return tags, nil
}

// ListKeys returns the principal's access keys with age snapshots.
func (d *IAMDirectory) ListKeys(ctx context.Context, principal string) ([]Credential, error) {
	resp, err := d.client.ListAccessKeys(ctx, &iam.ListAccessKeysInput{
		UserName: aws.String(principal),
	})
	if err != nil {
		return nil, krerrors.DirectoryError{Op: "list-keys", Principal: principal, Err: err}
	}

	now := d.now().UTC()
	keys := make([]Credential, 0, len(resp.AccessKeyMetadata))
	for _, meta := range resp.AccessKeyMetadata {
		if meta.AccessKeyId == nil || meta.CreateDate == nil {
			continue
		}
		keys = append(keys, Credential{
			ID:      *meta.AccessKeyId,
			AgeDays: ageDays(*meta.CreateDate, now),
		})
	}

	return keys, nil
}

// CreateKey issues a new key pair for the principal. The secret is moved
// into protected memory immediately.
func (d *IAMDirectory) CreateKey(ctx context.Context, principal string) (KeyMaterial, error) {
	resp, err := d.client.CreateAccessKey(ctx, &iam.CreateAccessKeyInput{
		UserName: aws.String(principal),
	})
	if err != nil {
		return KeyMaterial{}, krerrors.DirectoryError{Op: "create-key", Principal: principal, Err: err}
	}

	if resp.AccessKey == nil || resp.AccessKey.AccessKeyId == nil || resp.AccessKey.SecretAccessKey == nil {
		return KeyMaterial{}, krerrors.DirectoryError{Op: "create-key", Principal: principal,
			Err: krerrors.UserError{Message: "directory returned an incomplete key pair"}}
	}

	return KeyMaterial{
		ID:     *resp.AccessKey.AccessKeyId,
		Secret: secure.NewSecretFromString(*resp.AccessKey.SecretAccessKey),
	}, nil
}

// DeleteKey destroys the identified key.
func (d *IAMDirectory) DeleteKey(ctx context.Context, principal, keyID string) error {
	_, err := d.client.DeleteAccessKey(ctx, &iam.DeleteAccessKeyInput{
		UserName:    aws.String(principal),
		AccessKeyId: aws.String(keyID),
	})
	if err != nil {
		return krerrors.DirectoryError{Op: "delete-key", Principal: principal, Err: err}
	}
	return nil
}

// AccountInfo resolves the account ID via STS and the friendly alias via
// IAM. A missing alias falls back to the account ID.
func (d *IAMDirectory) AccountInfo(ctx context.Context) (Account, error) {
	identity, err := d.stsc.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return Account{}, krerrors.DirectoryError{Op: "account-identity", Err: err}
	}

	account := Account{}
	if identity.Account != nil {
		account.ID = *identity.Account
	}
	account.Alias = account.ID

	aliases, err := d.client.ListAccountAliases(ctx, &iam.ListAccountAliasesInput{})
	if err == nil && len(aliases.AccountAliases) > 0 {
		account.Alias = aliases.AccountAliases[0]
	}

	return account, nil
}
