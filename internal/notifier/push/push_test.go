package push

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/cinq/internal/core/kv/kvtest"
	"github.com/colonyops/cinq/internal/core/notify"
	"github.com/colonyops/cinq/internal/notifier/settings"
)

// A valid uncompressed P-256 point, URL-safe base64.
const testKey = "BEl62iUYgUivxIkv69yViEuiBIa-Ib9-SkvMeAtA3LFgDzkrxZJjSgSnfckjBJuBkr3qBUYIHBQFLXYp5Nksh8U"

type fakePerms struct {
	current  notify.Permission
	answer   notify.Permission
	err      error
	requests int
}

func (f *fakePerms) Permission() notify.Permission { return f.current }

func (f *fakePerms) RequestPermission(context.Context) (notify.Permission, error) {
	f.requests++
	if f.err != nil {
		return notify.PermissionDefault, f.err
	}
	f.current = f.answer
	return f.answer, nil
}

type fakePlatform struct {
	supported    bool
	sub          *notify.Subscription
	subscribeErr error
	gotKey       []byte
	removed      int
}

func (f *fakePlatform) Supported() bool { return f.supported }

func (f *fakePlatform) Subscription(context.Context) (*notify.Subscription, error) {
	return f.sub, nil
}

func (f *fakePlatform) Subscribe(_ context.Context, key []byte) (notify.Subscription, error) {
	if f.subscribeErr != nil {
		return notify.Subscription{}, f.subscribeErr
	}
	f.gotKey = key
	f.sub = &notify.Subscription{Endpoint: "https://push.example/ep/1", Keys: notify.Keys{P256DH: "p", Auth: "a"}}
	return *f.sub, nil
}

func (f *fakePlatform) Unsubscribe(context.Context) error {
	f.removed++
	f.sub = nil
	return nil
}

type fakeRegistrar struct {
	err          error
	registered   []notify.Subscription
	unregistered []string
	tokens       []string
}

func (f *fakeRegistrar) Register(_ context.Context, token string, sub notify.Subscription) error {
	f.tokens = append(f.tokens, token)
	if f.err != nil {
		return f.err
	}
	f.registered = append(f.registered, sub)
	return nil
}

func (f *fakeRegistrar) Unregister(_ context.Context, token, endpoint string) error {
	f.tokens = append(f.tokens, token)
	f.unregistered = append(f.unregistered, endpoint)
	return f.err
}

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

type fixture struct {
	mgr      *Manager
	perms    *fakePerms
	platform *fakePlatform
	reg      *fakeRegistrar
	settings *settings.Store
}

func newFixture(token string) *fixture {
	f := &fixture{
		perms:    &fakePerms{current: notify.PermissionDefault, answer: notify.PermissionGranted},
		platform: &fakePlatform{supported: true},
		reg:      &fakeRegistrar{},
		settings: settings.New(kvtest.New()),
	}
	f.mgr = New(Deps{
		Permissions:    f.perms,
		Platform:       f.platform,
		Registrar:      f.reg,
		Tokens:         staticToken(token),
		Settings:       f.settings,
		VAPIDPublicKey: testKey,
	})
	return f
}

func TestDecodeKey(t *testing.T) {
	raw, err := DecodeKey(testKey)
	require.NoError(t, err)
	assert.Len(t, raw, 65)
	assert.Equal(t, byte(0x04), raw[0])

	padded, err := DecodeKey(testKey + "=")
	require.NoError(t, err)
	assert.Equal(t, raw, padded)
}

func TestSupported(t *testing.T) {
	f := newFixture("tok")
	assert.True(t, f.mgr.Supported())

	f.platform.supported = false
	assert.False(t, f.mgr.Supported())

	noKey := New(Deps{Permissions: f.perms, Platform: &fakePlatform{supported: true}})
	assert.False(t, noKey.Supported())
}

func TestSubscribe_Success(t *testing.T) {
	ctx := context.Background()
	f := newFixture("tok")

	require.NoError(t, f.mgr.Subscribe(ctx))

	assert.Equal(t, 1, f.perms.requests)
	assert.Len(t, f.platform.gotKey, 65)
	require.Len(t, f.reg.registered, 1)
	assert.Equal(t, "https://push.example/ep/1", f.reg.registered[0].Endpoint)
	assert.Equal(t, []string{"tok"}, f.reg.tokens)
	assert.True(t, f.settings.Get().Push)
	assert.True(t, f.mgr.IsSubscribed(ctx))
}

func TestSubscribe_ReusesExisting(t *testing.T) {
	ctx := context.Background()
	f := newFixture("tok")
	f.perms.current = notify.PermissionGranted
	f.platform.sub = &notify.Subscription{Endpoint: "https://push.example/existing"}

	require.NoError(t, f.mgr.Subscribe(ctx))

	assert.Zero(t, f.perms.requests, "granted permission is not re-requested")
	assert.Nil(t, f.platform.gotKey, "no new subscription")
	assert.Equal(t, "https://push.example/existing", f.reg.registered[0].Endpoint)
}

func TestSubscribe_Denied(t *testing.T) {
	ctx := context.Background()
	f := newFixture("tok")
	f.perms.answer = notify.PermissionDenied

	err := f.mgr.Subscribe(ctx)
	assert.Equal(t, ReasonDenied, ReasonOf(err))
	assert.False(t, f.settings.Get().Push)

	f.perms.current = notify.PermissionDefault
	err = f.mgr.Subscribe(ctx)
	assert.Equal(t, ReasonDenied, ReasonOf(err))
	assert.Equal(t, 1, f.perms.requests, "denial is remembered for the session")
	assert.Equal(t, notify.PermissionDenied, f.mgr.Permission())
}

func TestSubscribe_Dismissed(t *testing.T) {
	ctx := context.Background()

	f := newFixture("tok")
	f.perms.answer = notify.PermissionDefault
	assert.Equal(t, ReasonDismissed, ReasonOf(f.mgr.Subscribe(ctx)))

	f = newFixture("tok")
	f.perms.err = context.Canceled
	err := f.mgr.Subscribe(ctx)
	assert.Equal(t, ReasonDismissed, ReasonOf(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSubscribe_Failures(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		setup  func(*fixture)
		reason Reason
	}{
		{"unsupported", "tok", func(f *fixture) { f.platform.supported = false }, ReasonUnsupported},
		{"signed out", "", nil, ReasonNotAuthenticated},
		{"network", "tok", func(f *fixture) { f.reg.err = errors.New("connection refused") }, ReasonNetwork},
		{"rejected", "tok", func(f *fixture) { f.reg.err = &Rejection{Status: 400, Message: "Invalid subscription"} }, ReasonRejected},
		{"platform", "tok", func(f *fixture) { f.platform.subscribeErr = errors.New("relay down") }, ReasonPlatform},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.token)
			if tt.setup != nil {
				tt.setup(f)
			}

			err := f.mgr.Subscribe(context.Background())

			require.Error(t, err)
			assert.Equal(t, tt.reason, ReasonOf(err))
			assert.False(t, f.settings.Get().Push)
		})
	}
}

func TestSubscribe_RejectedCarriesServerText(t *testing.T) {
	f := newFixture("tok")
	f.reg.err = &Rejection{Status: 400, Message: "Invalid subscription"}

	err := f.mgr.Subscribe(context.Background())

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "Invalid subscription", failure.Message)
}

func TestUnsubscribe(t *testing.T) {
	ctx := context.Background()
	f := newFixture("tok")
	require.NoError(t, f.mgr.Subscribe(ctx))

	require.NoError(t, f.mgr.Unsubscribe(ctx))

	assert.Equal(t, []string{"https://push.example/ep/1"}, f.reg.unregistered)
	assert.Equal(t, 1, f.platform.removed)
	assert.False(t, f.settings.Get().Push)
	assert.False(t, f.mgr.IsSubscribed(ctx))
}

func TestUnsubscribe_ServerFailureIgnored(t *testing.T) {
	ctx := context.Background()
	f := newFixture("tok")
	require.NoError(t, f.mgr.Subscribe(ctx))
	f.reg.err = errors.New("timeout")

	require.NoError(t, f.mgr.Unsubscribe(ctx))
	assert.Equal(t, 1, f.platform.removed)
	assert.False(t, f.settings.Get().Push)
}

func TestUnsubscribe_NothingToRemove(t *testing.T) {
	ctx := context.Background()
	f := newFixture("tok")
	_, err := f.settings.Update(ctx, settings.Patch{Push: settings.Bool(true)})
	require.NoError(t, err)

	require.NoError(t, f.mgr.Unsubscribe(ctx))
	assert.Empty(t, f.reg.unregistered)
	assert.False(t, f.settings.Get().Push)
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture("tok")

	st := f.mgr.Status(ctx)
	assert.True(t, st.Supported)
	assert.False(t, st.Subscribed)
	assert.Equal(t, notify.PermissionDefault, st.Permission)

	require.NoError(t, f.mgr.Subscribe(ctx))
	st = f.mgr.Status(ctx)
	assert.True(t, st.Subscribed)
	assert.Equal(t, notify.PermissionGranted, st.Permission)
	assert.Equal(t, "https://push.example/ep/1", st.Endpoint)
}
