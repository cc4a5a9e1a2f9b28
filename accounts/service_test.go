package accounts_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/vocaprep/accounts"
	"github.com/jrsteele09/vocaprep/documents"
	"github.com/jrsteele09/vocaprep/documents/memory"
	"github.com/jrsteele09/vocaprep/identity"
	"github.com/jrsteele09/vocaprep/identity/local"
	"github.com/jrsteele09/vocaprep/session"
	"github.com/stretchr/testify/require"
)

const (
	testUID      = "u1"
	testUsername = "alice"
	testEmail    = "a@x.com"
	testPassword = "secret1"
	oneWeek      = 7 * 24 * time.Hour
)

var (
	sharedKeys     *local.KeyPair
	sharedKeysOnce sync.Once
)

func testKeys(t *testing.T) *local.KeyPair {
	t.Helper()
	sharedKeysOnce.Do(func() {
		keys, err := local.GenerateRSAKeyPair("accounts-test", 2048)
		require.NoError(t, err)
		sharedKeys = keys
	})
	require.NotNil(t, sharedKeys)
	return sharedKeys
}

// recordingStore counts writes and can be made to fail
type recordingStore struct {
	*memory.Store
	sets    int
	failAll error
}

func (s *recordingStore) Get(ctx context.Context, collection, id string) (documents.Fields, error) {
	if s.failAll != nil {
		return nil, documents.NewStoreError("get", collection, id, s.failAll)
	}
	return s.Store.Get(ctx, collection, id)
}

func (s *recordingStore) Set(ctx context.Context, collection, id string, fields documents.Fields) error {
	if s.failAll != nil {
		return documents.NewStoreError("set", collection, id, s.failAll)
	}
	s.sets++
	return s.Store.Set(ctx, collection, id, fields)
}

type testFixture struct {
	now      time.Time
	provider *local.Provider
	store    *recordingStore
	service  *accounts.Service
}

func (f *testFixture) nowTime() time.Time {
	return f.now
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		now:   time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC),
		store: &recordingStore{Store: memory.New()},
	}

	// the provider keeps its credentials apart from the profile store
	provider, err := local.New(memory.New(), "http://localhost:8080", "vocaprep",
		local.WithKeyPair(testKeys(t)),
		local.WithNowTime(f.nowTime),
	)
	require.NoError(t, err)
	f.provider = provider

	service, err := accounts.NewService(provider, f.store)
	require.NoError(t, err)
	f.service = service

	return f
}

// providerAccount creates the credential half of an account and returns its uid
func (f *testFixture) providerAccount(t *testing.T, email, password string) string {
	t.Helper()
	account, err := f.provider.CreateAccount(context.Background(), email, password)
	require.NoError(t, err)
	return account.UID
}

func (f *testFixture) idToken(t *testing.T, email, password string) string {
	t.Helper()
	_, idToken, err := f.provider.Authenticate(context.Background(), email, password)
	require.NoError(t, err)
	return idToken
}

// signedIn registers alice and returns a jar holding her session
func (f *testFixture) signedIn(t *testing.T) (string, *session.MemoryJar) {
	t.Helper()
	ctx := context.Background()

	uid := f.providerAccount(t, testEmail, testPassword)
	res := f.service.SignUp(ctx, accounts.SignUpParams{UID: uid, Username: testUsername, Email: testEmail, Password: testPassword})
	require.True(t, res.Success, res.Message)

	jar := &session.MemoryJar{}
	res = f.service.SignIn(ctx, jar, accounts.SignInParams{Email: testEmail, IDToken: f.idToken(t, testEmail, testPassword)})
	require.True(t, res.Success, res.Message)
	return uid, jar
}

func TestNewService_Validation(t *testing.T) {
	_, err := accounts.NewService(nil, memory.New())
	require.Error(t, err)

	f := setupTestFixture(t)
	_, err = accounts.NewService(f.provider, nil)
	require.Error(t, err)
}

func TestSignUp_Scenario(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	params := accounts.SignUpParams{UID: testUID, Username: testUsername, Email: testEmail, Password: testPassword}

	res := f.service.SignUp(ctx, params)
	require.Equal(t, accounts.Result{Success: true, Message: "Account created successfully. Please sign in."}, res)

	fields, err := f.store.Get(ctx, accounts.UsersCollection, testUID)
	require.NoError(t, err)
	require.Equal(t, documents.Fields{"username": testUsername, "email": testEmail}, fields)

	writes := f.store.sets
	res = f.service.SignUp(ctx, params)
	require.False(t, res.Success)
	require.Equal(t, "User already exists. Please sign in instead.", res.Message)
	require.Equal(t, writes, f.store.sets, "rejected sign-up must not write")
}

func TestSignUp_ExistingProfileIsNeverOverwritten(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Set(ctx, accounts.UsersCollection, "u2", documents.Fields{"username": "bob", "email": "b@x.com"}))

	res := f.service.SignUp(ctx, accounts.SignUpParams{UID: "u2", Username: "mallory", Email: "m@x.com", Password: testPassword})
	require.False(t, res.Success)
	require.Equal(t, accounts.CodeConflict, res.Code)

	fields, err := f.store.Get(ctx, accounts.UsersCollection, "u2")
	require.NoError(t, err)
	require.Equal(t, "bob", fields.String("username"))
}

func TestSignUp_Validation(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		params  accounts.SignUpParams
		message string
	}{
		{
			name:    "missing uid",
			params:  accounts.SignUpParams{Username: testUsername, Email: testEmail, Password: testPassword},
			message: "User id is required.",
		},
		{
			name:    "short username",
			params:  accounts.SignUpParams{UID: testUID, Username: "a", Email: testEmail, Password: testPassword},
			message: "Username must be at least 2 characters.",
		},
		{
			name:    "bad email",
			params:  accounts.SignUpParams{UID: testUID, Username: testUsername, Email: "not-an-email", Password: testPassword},
			message: "Invalid email address.",
		},
		{
			name:    "short password",
			params:  accounts.SignUpParams{UID: testUID, Username: testUsername, Email: testEmail, Password: "12345"},
			message: "Password must be at least 6 characters.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.service.SignUp(ctx, tt.params)
			require.False(t, res.Success)
			require.Equal(t, accounts.CodeValidation, res.Code)
			require.Equal(t, tt.message, res.Message)
		})
	}
	require.Zero(t, f.store.sets)
}

func TestSignUp_StoreFailure(t *testing.T) {
	f := setupTestFixture(t)
	f.store.failAll = errors.New("connection refused")

	res := f.service.SignUp(context.Background(), accounts.SignUpParams{UID: testUID, Username: testUsername, Email: testEmail, Password: testPassword})
	require.Equal(t, accounts.Result{Success: false, Message: "Failed to create an account.", Code: accounts.CodeStore}, res)
}

func TestNewService_SessionTTLBounds(t *testing.T) {
	f := setupTestFixture(t)

	for _, ttl := range []time.Duration{0, time.Minute, 30 * 24 * time.Hour} {
		_, err := accounts.NewService(f.provider, f.store, accounts.WithSessionTTL(ttl))
		require.Error(t, err, ttl.String())
	}

	_, err := accounts.NewService(f.provider, f.store, accounts.WithSessionTTL(identity.MaxSessionDuration))
	require.NoError(t, err)
	_, err = accounts.NewService(f.provider, f.store, accounts.WithSessionTTL(identity.MinSessionDuration))
	require.NoError(t, err)
}

func TestSignIn_UnknownEmail(t *testing.T) {
	f := setupTestFixture(t)
	jar := &session.MemoryJar{}

	res := f.service.SignIn(context.Background(), jar, accounts.SignInParams{Email: "nouser@x.com", IDToken: "token"})
	require.False(t, res.Success)
	require.Equal(t, "User does not exist. Create an account instead.", res.Message)
	require.Zero(t, jar.Issued)
	_, ok := jar.Read()
	require.False(t, ok)
}

func TestSignIn_IssuesOneWeekCookie(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	uid := f.providerAccount(t, testEmail, testPassword)
	res := f.service.SignUp(ctx, accounts.SignUpParams{UID: uid, Username: testUsername, Email: testEmail, Password: testPassword})
	require.True(t, res.Success, res.Message)
	w := httptest.NewRecorder()
	jar := session.NewCookieJar(w, httptest.NewRequest(http.MethodPost, "/api/auth/session", nil), false)

	res = f.service.SignIn(ctx, jar, accounts.SignInParams{Email: testEmail, IDToken: f.idToken(t, testEmail, testPassword)})
	require.Equal(t, accounts.Result{Success: true, Message: "Signed in successfully."}, res)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, session.CookieName, cookies[0].Name)
	require.Equal(t, 604800, cookies[0].MaxAge)
}

func TestSignIn_RejectsTokenOfAnotherAccount(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	f.providerAccount(t, testEmail, testPassword)
	f.providerAccount(t, "b@x.com", testPassword)
	jar := &session.MemoryJar{}

	res := f.service.SignIn(ctx, jar, accounts.SignInParams{Email: testEmail, IDToken: f.idToken(t, "b@x.com", testPassword)})
	require.False(t, res.Success)
	require.Equal(t, accounts.CodeProvider, res.Code)
	require.Zero(t, jar.Issued)

	res = f.service.SignIn(ctx, jar, accounts.SignInParams{Email: testEmail, IDToken: "tampered"})
	require.False(t, res.Success)
	require.Zero(t, jar.Issued)
}

func TestGetCurrentUser(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	require.Nil(t, f.service.GetCurrentUser(ctx, &session.MemoryJar{}))
	require.False(t, f.service.IsAuthenticated(ctx, &session.MemoryJar{}))

	uid, jar := f.signedIn(t)

	first := f.service.GetCurrentUser(ctx, jar)
	require.Equal(t, &accounts.AppUser{ID: uid, Username: testUsername, Email: testEmail}, first)

	second := f.service.GetCurrentUser(ctx, jar)
	require.Equal(t, first, second)
	require.True(t, f.service.IsAuthenticated(ctx, jar))
}

func TestSessionRoundTrip(t *testing.T) {
	f := setupTestFixture(t)
	uid, jar := f.signedIn(t)

	credential, ok := jar.Read()
	require.True(t, ok)
	require.Equal(t, oneWeek, jar.MaxAge)

	claims, err := f.provider.VerifySessionCredential(context.Background(), credential, true)
	require.NoError(t, err)
	require.Equal(t, uid, claims.UID)
}

func TestGetCurrentUser_InvalidCredentials(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	_, jar := f.signedIn(t)
	credential, _ := jar.Read()

	tampered := &session.MemoryJar{Value: credential[:len(credential)-4] + "AAAA"}
	require.NotPanics(t, func() {
		require.Nil(t, f.service.GetCurrentUser(ctx, tampered))
	})
	require.Nil(t, f.service.GetCurrentUser(ctx, &session.MemoryJar{Value: "garbage"}))

	f.now = f.now.Add(oneWeek + time.Second)
	require.Nil(t, f.service.GetCurrentUser(ctx, jar), "expired")
}

func TestGetCurrentUser_ProfileMissing(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	uid := f.providerAccount(t, testEmail, testPassword)
	jar := &session.MemoryJar{}
	res := f.service.SignIn(ctx, jar, accounts.SignInParams{Email: testEmail, IDToken: f.idToken(t, testEmail, testPassword)})
	require.False(t, res.Success)
	require.Equal(t, accounts.CodeInconsistency, res.Code)
	require.Equal(t, "Your account profile is missing. Register again with the same email and password to restore it.", res.Message)
	require.Equal(t, 1, jar.Issued, "the provider session is still issued")
	require.Equal(t, oneWeek, jar.MaxAge)

	require.Nil(t, f.service.GetCurrentUser(ctx, jar))

	res = f.service.Register(ctx, accounts.RegisterParams{Username: testUsername, Email: testEmail, Password: testPassword})
	require.True(t, res.Success, res.Message)

	user := f.service.GetCurrentUser(ctx, jar)
	require.NotNil(t, user, "the same session resolves once the profile is restored")
	require.Equal(t, accounts.AppUser{ID: uid, Username: testUsername, Email: testEmail}, *user)
}

func TestLogin_ProfileMissing(t *testing.T) {
	f := setupTestFixture(t)
	f.providerAccount(t, testEmail, testPassword)
	jar := &session.MemoryJar{}

	res := f.service.Login(context.Background(), jar, accounts.LoginParams{Email: testEmail, Password: testPassword})
	require.Equal(t, accounts.CodeInconsistency, res.Code)
	require.False(t, res.Success)
	require.Equal(t, 1, jar.Issued)
}

func TestSignIn_ProfileReadFailure(t *testing.T) {
	f := setupTestFixture(t)
	f.providerAccount(t, testEmail, testPassword)
	idToken := f.idToken(t, testEmail, testPassword)
	f.store.failAll = errors.New("connection reset")
	jar := &session.MemoryJar{}

	res := f.service.SignIn(context.Background(), jar, accounts.SignInParams{Email: testEmail, IDToken: idToken})
	require.Equal(t, accounts.Result{Success: false, Message: "Failed to sign in to your account.", Code: accounts.CodeStore}, res)
	require.Zero(t, jar.Issued)
}

func TestGetCurrentUser_DisabledAccount(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	uid, jar := f.signedIn(t)

	require.NoError(t, f.provider.SetDisabled(ctx, uid, true))
	require.Nil(t, f.service.GetCurrentUser(ctx, jar))
}

func TestRegister(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	res := f.service.Register(ctx, accounts.RegisterParams{Username: testUsername, Email: testEmail, Password: testPassword})
	require.Equal(t, accounts.Result{Success: true, Message: "Account created successfully. Please sign in."}, res)

	jar := &session.MemoryJar{}
	res = f.service.Login(ctx, jar, accounts.LoginParams{Email: testEmail, Password: testPassword})
	require.True(t, res.Success, res.Message)

	user := f.service.GetCurrentUser(ctx, jar)
	require.NotNil(t, user)
	require.Equal(t, testUsername, user.Username)
	require.Equal(t, testEmail, user.Email)

	res = f.service.Register(ctx, accounts.RegisterParams{Username: "other", Email: testEmail, Password: testPassword})
	require.Equal(t, accounts.Result{Success: false, Message: "This email is already in use.", Code: accounts.CodeConflict}, res)
}

func TestRegister_RelinksAccountWithoutProfile(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	uid := f.providerAccount(t, testEmail, testPassword)

	res := f.service.Register(ctx, accounts.RegisterParams{Username: testUsername, Email: testEmail, Password: "not-the-password"})
	require.False(t, res.Success)
	require.Equal(t, "This email is already in use.", res.Message)
	_, err := f.store.Get(ctx, accounts.UsersCollection, uid)
	require.True(t, documents.IsNotFound(err))

	res = f.service.Register(ctx, accounts.RegisterParams{Username: testUsername, Email: testEmail, Password: testPassword})
	require.Equal(t, accounts.Result{Success: true, Message: "Account restored. Please sign in."}, res)

	fields, err := f.store.Get(ctx, accounts.UsersCollection, uid)
	require.NoError(t, err)
	require.Equal(t, documents.Fields{"username": testUsername, "email": testEmail}, fields)
}

func TestRegister_ProviderRejection(t *testing.T) {
	f := setupTestFixture(t)

	res := f.service.Register(context.Background(), accounts.RegisterParams{Username: testUsername, Email: "bad", Password: testPassword})
	require.Equal(t, accounts.CodeValidation, res.Code)
	require.Zero(t, f.store.sets)
}

func TestLogin_Failures(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	jar := &session.MemoryJar{}

	res := f.service.Login(ctx, jar, accounts.LoginParams{Email: "nouser@x.com", Password: testPassword})
	require.Equal(t, accounts.Result{Success: false, Message: "User does not exist. Create an account instead.", Code: accounts.CodeNotFound}, res)

	f.providerAccount(t, testEmail, testPassword)
	res = f.service.Login(ctx, jar, accounts.LoginParams{Email: testEmail, Password: "wrong-password"})
	require.False(t, res.Success)
	require.Equal(t, accounts.CodeProvider, res.Code)
	require.Equal(t, "Invalid email or password.", res.Message)
	require.Zero(t, jar.Issued)
}

func TestSignOut(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	_, jar := f.signedIn(t)
	credential, _ := jar.Read()

	res := f.service.SignOut(ctx, jar)
	require.Equal(t, accounts.Result{Success: true, Message: "Signed out successfully."}, res)

	_, ok := jar.Read()
	require.False(t, ok)
	require.False(t, f.service.IsAuthenticated(ctx, jar))

	replayed := &session.MemoryJar{Value: credential}
	require.Nil(t, f.service.GetCurrentUser(ctx, replayed), "revoked credential")

	res = f.service.SignOut(ctx, &session.MemoryJar{})
	require.True(t, res.Success, "signing out an anonymous caller succeeds")
}

func TestProviderErrorsAreNotSurfaced(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.providerAccount(t, testEmail, testPassword)

	for i := 0; i < 5; i++ {
		_, _, err := f.provider.Authenticate(ctx, testEmail, "wrong-password")
		require.True(t, identity.HasCode(err, identity.CodeWrongPassword))
	}

	res := f.service.Login(ctx, &session.MemoryJar{}, accounts.LoginParams{Email: testEmail, Password: testPassword})
	require.Equal(t, "Too many attempts. Please try again later.", res.Message)
	require.NotContains(t, res.Message, identity.CodeTooManyRequests)
}
