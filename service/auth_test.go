package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"relatim-chat/utils"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memoryTokens struct {
	mu     sync.Mutex
	tokens map[uint]string
}

func (m *memoryTokens) Save(_ context.Context, userID uint, refresh string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[userID] = refresh
	return nil
}

func (m *memoryTokens) Load(_ context.Context, userID uint) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[userID], nil
}

type recordedRoles struct {
	policies [][]interface{}
}

func (r *recordedRoles) AddGroupingPolicy(params ...interface{}) (bool, error) {
	r.policies = append(r.policies, params)
	return true, nil
}

func newAuth(t *testing.T) (*AuthService, *recordedRoles) {
	t.Helper()

	issuer := &utils.TokenIssuer{
		AccessKey:     []byte("access-secret"),
		RefreshKey:    []byte("refresh-secret"),
		AccessExpire:  time.Minute,
		RefreshExpire: time.Hour,
	}
	roles := &recordedRoles{}
	auth := NewAuthService(openTestDB(t), issuer, &memoryTokens{tokens: map[uint]string{}}, roles, "relatim", quietLogger())
	auth.hashCost = bcrypt.MinCost
	return auth, roles
}

func TestSignupAndSignin(t *testing.T) {
	auth, roles := newAuth(t)
	ctx := context.Background()

	user, err := auth.Signup(ctx, SignupInput{Username: "alice", Email: "alice@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "user", user.Role)
	assert.NotEqual(t, "secret", user.Password)
	require.Len(t, roles.policies, 1)
	assert.Equal(t, []interface{}{"1", "user"}, roles.policies[0])

	for _, login := range []string{"alice", "alice@example.com"} {
		res, err := auth.Signin(ctx, login, "secret")
		require.NoError(t, err, login)
		assert.NotEmpty(t, res.Tokens.Access)
		assert.NotEmpty(t, res.Tokens.Refresh)
		assert.False(t, res.TwoFactor)
	}

	_, err = auth.Signin(ctx, "alice", "wrong")
	assert.Equal(t, KindUnauthenticated, KindOf(err))

	_, err = auth.Signin(ctx, "nobody", "secret")
	assert.Equal(t, KindUnauthenticated, KindOf(err))
}

func TestSignupValidation(t *testing.T) {
	auth, _ := newAuth(t)
	ctx := context.Background()

	_, err := auth.Signup(ctx, SignupInput{Username: "alice", Email: "not-an-email", Password: "secret"})
	assert.Equal(t, KindInvalidArgument, KindOf(err))

	_, err = auth.Signup(ctx, SignupInput{Username: "", Email: "a@example.com", Password: "secret"})
	assert.Equal(t, KindInvalidArgument, KindOf(err))

	_, err = auth.Signup(ctx, SignupInput{Username: "alice", Email: "alice@example.com", Password: "secret"})
	require.NoError(t, err)

	_, err = auth.Signup(ctx, SignupInput{Username: "alice2", Email: "alice@example.com", Password: "secret"})
	assert.Equal(t, KindConflict, KindOf(err))

	_, err = auth.Signup(ctx, SignupInput{Username: "alice", Email: "other@example.com", Password: "secret"})
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestRenewIsSingleUse(t *testing.T) {
	auth, _ := newAuth(t)
	ctx := context.Background()

	_, err := auth.Signup(ctx, SignupInput{Username: "alice", Email: "alice@example.com", Password: "secret"})
	require.NoError(t, err)
	first, err := auth.Signin(ctx, "alice", "secret")
	require.NoError(t, err)

	// tokens issued within the same second are identical
	time.Sleep(1100 * time.Millisecond)

	second, err := auth.Renew(ctx, first.Tokens.Refresh)
	require.NoError(t, err)
	assert.NotEqual(t, first.Tokens.Refresh, second.Tokens.Refresh)

	_, err = auth.Renew(ctx, first.Tokens.Refresh)
	assert.Equal(t, KindUnauthenticated, KindOf(err))

	_, err = auth.Renew(ctx, "garbage")
	assert.Equal(t, KindUnauthenticated, KindOf(err))
}

func TestAuthenticate(t *testing.T) {
	auth, _ := newAuth(t)
	ctx := context.Background()

	user, err := auth.Signup(ctx, SignupInput{Username: "alice", Email: "alice@example.com", Password: "secret"})
	require.NoError(t, err)
	res, err := auth.Signin(ctx, "alice", "secret")
	require.NoError(t, err)

	got, err := auth.Authenticate(ctx, res.Tokens.Access)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = auth.Authenticate(ctx, "")
	assert.Equal(t, KindUnauthenticated, KindOf(err))

	// a refresh token is signed with a different key
	_, err = auth.Authenticate(ctx, res.Tokens.Refresh)
	assert.Equal(t, KindUnauthenticated, KindOf(err))

	pending, err := auth.issuer.GenerateTokens(user.ID, true)
	require.NoError(t, err)
	_, err = auth.Authenticate(ctx, pending.Access)
	assert.Equal(t, KindUnauthenticated, KindOf(err))

	ghost, err := auth.issuer.GenerateTokens(999, false)
	require.NoError(t, err)
	_, err = auth.Authenticate(ctx, ghost.Access)
	assert.Equal(t, KindUnauthenticated, KindOf(err))
}

func TestOtpFlow(t *testing.T) {
	auth, _ := newAuth(t)
	ctx := context.Background()

	user, err := auth.Signup(ctx, SignupInput{Username: "alice", Email: "alice@example.com", Password: "secret"})
	require.NoError(t, err)

	_, err = auth.OtpSecret(ctx, user.ID, "wrong")
	assert.Equal(t, KindInvalidArgument, KindOf(err))

	secret, err := auth.OtpSecret(ctx, user.ID, "secret")
	require.NoError(t, err)
	assert.Contains(t, secret.URL, secret.Secret)

	assert.Equal(t, KindInvalidArgument, KindOf(auth.OtpVerify(ctx, user.ID, "000000x")))

	code, err := totp.GenerateCode(secret.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, auth.OtpVerify(ctx, user.ID, code))

	res, err := auth.Signin(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.True(t, res.TwoFactor)

	_, err = auth.Authenticate(ctx, res.Tokens.Access)
	assert.Equal(t, KindUnauthenticated, KindOf(err))

	tokens, err := auth.OtpValidate(ctx, user.ID, code)
	require.NoError(t, err)
	got, err := auth.Authenticate(ctx, tokens.Access)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	require.NoError(t, auth.OtpDisable(ctx, user.ID, "secret", code))
	res, err = auth.Signin(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.False(t, res.TwoFactor)
}
