package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	krerrors "github.com/systmms/keyrotator/internal/errors"
)

// fakeIAMClient implements IAMClientAPI with per-call hooks.
type fakeIAMClient struct {
	listUsers          func(*iam.ListUsersInput) (*iam.ListUsersOutput, error)
	listUserTags       func(*iam.ListUserTagsInput) (*iam.ListUserTagsOutput, error)
	listAccessKeys     func(*iam.ListAccessKeysInput) (*iam.ListAccessKeysOutput, error)
	createAccessKey    func(*iam.CreateAccessKeyInput) (*iam.CreateAccessKeyOutput, error)
	deleteAccessKey    func(*iam.DeleteAccessKeyInput) (*iam.DeleteAccessKeyOutput, error)
	listAccountAliases func(*iam.ListAccountAliasesInput) (*iam.ListAccountAliasesOutput, error)
}

func (f *fakeIAMClient) ListUsers(_ context.Context, params *iam.ListUsersInput, _ ...func(*iam.Options)) (*iam.ListUsersOutput, error) {
	return f.listUsers(params)
}

func (f *fakeIAMClient) ListUserTags(_ context.Context, params *iam.ListUserTagsInput, _ ...func(*iam.Options)) (*iam.ListUserTagsOutput, error) {
	return f.listUserTags(params)
}

func (f *fakeIAMClient) ListAccessKeys(_ context.Context, params *iam.ListAccessKeysInput, _ ...func(*iam.Options)) (*iam.ListAccessKeysOutput, error) {
	return f.listAccessKeys(params)
}

func (f *fakeIAMClient) CreateAccessKey(_ context.Context, params *iam.CreateAccessKeyInput, _ ...func(*iam.Options)) (*iam.CreateAccessKeyOutput, error) {
	return f.createAccessKey(params)
}

func (f *fakeIAMClient) DeleteAccessKey(_ context.Context, params *iam.DeleteAccessKeyInput, _ ...func(*iam.Options)) (*iam.DeleteAccessKeyOutput, error) {
	return f.deleteAccessKey(params)
}

func (f *fakeIAMClient) ListAccountAliases(_ context.Context, params *iam.ListAccountAliasesInput, _ ...func(*iam.Options)) (*iam.ListAccountAliasesOutput, error) {
	return f.listAccountAliases(params)
}

// fakeSTSClient implements STSClientAPI.
type fakeSTSClient struct {
	getCallerIdentity func(*sts.GetCallerIdentityInput) (*sts.GetCallerIdentityOutput, error)
}

func (f *fakeSTSClient) GetCallerIdentity(_ context.Context, params *sts.GetCallerIdentityInput, _ ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	return f.getCallerIdentity(params)
}

func newTestDirectory(client *fakeIAMClient, opts ...IAMOption) *IAMDirectory {
	base := []IAMOption{
		WithIAMClient(client),
		WithSTSClient(&fakeSTSClient{
			getCallerIdentity: func(*sts.GetCallerIdentityInput) (*sts.GetCallerIdentityOutput, error) {
				return &sts.GetCallerIdentityOutput{Account: aws.String("123456789012")}, nil
			},
		}),
	}
	return NewIAMDirectory(aws.Config{Region: "us-east-1"}, append(base, opts...)...)
}

func TestListPrincipalsDrainsPagination(t *testing.T) {
	t.Parallel()

	pages := []*iam.ListUsersOutput{
		{
			Users: []iamtypes.User{
				{UserName: aws.String("alice")},
				{UserName: aws.String("bob")},
			},
			IsTruncated: true,
			Marker:      aws.String("page-2"),
		},
		{
			Users: []iamtypes.User{{UserName: aws.String("carol")}},
		},
	}

	var markers []*string
	client := &fakeIAMClient{
		listUsers: func(params *iam.ListUsersInput) (*iam.ListUsersOutput, error) {
			markers = append(markers, params.Marker)
			page := pages[0]
			pages = pages[1:]
			return page, nil
		},
	}

	d := newTestDirectory(client)
	names, err := d.ListPrincipals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, names)

	require.Len(t, markers, 2)
	assert.Nil(t, markers[0])
	assert.Equal(t, "page-2", *markers[1])
}

func TestListPrincipalsWrapsError(t *testing.T) {
	t.Parallel()

	client := &fakeIAMClient{
		listUsers: func(*iam.ListUsersInput) (*iam.ListUsersOutput, error) {
			return nil, errors.New("AccessDenied")
		},
	}

	_, err := newTestDirectory(client).ListPrincipals(context.Background())
	var derr krerrors.DirectoryError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "list-principals", derr.Op)
}

func TestListTagsDrainsPagination(t *testing.T) {
	t.Parallel()

	pages := []*iam.ListUserTagsOutput{
		{
			Tags: []iamtypes.Tag{
				{Key: aws.String("notification_channel"), Value: aws.String("email")},
			},
			IsTruncated: true,
			Marker:      aws.String("page-2"),
		},
		{
			Tags: []iamtypes.Tag{
				{Key: aws.String("email"), Value: aws.String("alice@example.com")},
			},
		},
	}

	client := &fakeIAMClient{
		listUserTags: func(params *iam.ListUserTagsInput) (*iam.ListUserTagsOutput, error) {
			require.Equal(t, "alice", *params.UserName)
			page := pages[0]
			pages = pages[1:]
			return page, nil
		},
	}

	tags, err := newTestDirectory(client).ListTags(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"notification_channel": "email",
		"email":                "alice@example.com",
	}, tags)
}

func TestListKeysSnapshotsAge(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	client := &fakeIAMClient{
		listAccessKeys: func(params *iam.ListAccessKeysInput) (*iam.ListAccessKeysOutput, error) {
			require.Equal(t, "alice", *params.UserName)
			return &iam.ListAccessKeysOutput{
				AccessKeyMetadata: []iamtypes.AccessKeyMetadata{
					{
						AccessKeyId: aws.String("AKIAOLD"),
						CreateDate:  aws.Time(now.AddDate(0, 0, -90)),
					},
					{
						AccessKeyId: aws.String("AKIAFRESH"),
						CreateDate:  aws.Time(now.Add(-6 * time.Hour)),
					},
				},
			}, nil
		},
	}

	keys, err := newTestDirectory(client, WithClock(func() time.Time { return now })).
		ListKeys(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []Credential{
		{ID: "AKIAOLD", AgeDays: 90},
		{ID: "AKIAFRESH", AgeDays: 0},
	}, keys)
}

func TestCreateKeyProtectsSecret(t *testing.T) {
	t.Parallel()

	client := &fakeIAMClient{
		createAccessKey: func(params *iam.CreateAccessKeyInput) (*iam.CreateAccessKeyOutput, error) {
			require.Equal(t, "alice", *params.UserName)
			return &iam.CreateAccessKeyOutput{
				AccessKey: &iamtypes.AccessKey{
					AccessKeyId:     aws.String("AKIANEW"),
					SecretAccessKey: aws.String("wJalrXUtnFEMI"),
				},
			}, nil
		},
	}

	material, err := newTestDirectory(client).CreateKey(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "AKIANEW", material.ID)

	var plaintext string
	require.NoError(t, material.Secret.Expose(func(s string) error {
		plaintext = s
		return nil
	}))
	assert.Equal(t, "wJalrXUtnFEMI", plaintext)
	material.Secret.Destroy()
}

func TestCreateKeyRejectsIncompleteResponse(t *testing.T) {
	t.Parallel()

	client := &fakeIAMClient{
		createAccessKey: func(*iam.CreateAccessKeyInput) (*iam.CreateAccessKeyOutput, error) {
			return &iam.CreateAccessKeyOutput{AccessKey: &iamtypes.AccessKey{}}, nil
		},
	}

	_, err := newTestDirectory(client).CreateKey(context.Background(), "alice")
	var derr krerrors.DirectoryError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "create-key", derr.Op)
}

func TestDeleteKey(t *testing.T) {
	t.Parallel()

	var gotUser, gotKey string
	client := &fakeIAMClient{
		deleteAccessKey: func(params *iam.DeleteAccessKeyInput) (*iam.DeleteAccessKeyOutput, error) {
			gotUser = *params.UserName
			gotKey = *params.AccessKeyId
			return &iam.DeleteAccessKeyOutput{}, nil
		},
	}

	err := newTestDirectory(client).DeleteKey(context.Background(), "alice", "AKIAOLD")
	require.NoError(t, err)
	assert.Equal(t, "alice", gotUser)
	assert.Equal(t, "AKIAOLD", gotKey)
}

func TestAccountInfo(t *testing.T) {
	t.Parallel()

	t.Run("alias available", func(t *testing.T) {
		t.Parallel()

		client := &fakeIAMClient{
			listAccountAliases: func(*iam.ListAccountAliasesInput) (*iam.ListAccountAliasesOutput, error) {
				return &iam.ListAccountAliasesOutput{AccountAliases: []string{"acme-prod"}}, nil
			},
		}

		account, err := newTestDirectory(client).AccountInfo(context.Background())
		require.NoError(t, err)
		assert.Equal(t, Account{ID: "123456789012", Alias: "acme-prod"}, account)
	})

	t.Run("no alias falls back to ID", func(t *testing.T) {
		t.Parallel()

		client := &fakeIAMClient{
			listAccountAliases: func(*iam.ListAccountAliasesInput) (*iam.ListAccountAliasesOutput, error) {
				return &iam.ListAccountAliasesOutput{}, nil
			},
		}

		account, err := newTestDirectory(client).AccountInfo(context.Background())
		require.NoError(t, err)
		assert.Equal(t, Account{ID: "123456789012", Alias: "123456789012"}, account)
	})

	t.Run("identity failure surfaces", func(t *testing.T) {
		t.Parallel()

		d := NewIAMDirectory(aws.Config{Region: "us-east-1"},
			WithIAMClient(&fakeIAMClient{}),
			WithSTSClient(&fakeSTSClient{
				getCallerIdentity: func(*sts.GetCallerIdentityInput) (*sts.GetCallerIdentityOutput, error) {
					return nil, errors.New("ExpiredToken")
				},
			}))

		_, err := d.AccountInfo(context.Background())
		var derr krerrors.DirectoryError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, "account-identity", derr.Op)
	})
}
