package jetstream

import (
	"testing"
	"time"

	nats "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubjects(t *testing.T) {
	assert.Equal(t, "boardmate.chat.abc", EventSubject("abc"))
	assert.Equal(t, "boardmate.chat.abc.done", DoneSubject("abc"))
}

func TestServerOptions(t *testing.T) {
	so := Options{StoreDir: "/tmp/x", MaxStore: 1 << 20, MaxMemory: 1 << 10}.serverOptions()
	assert.True(t, so.DontListen)
	assert.True(t, so.JetStream)
	assert.Equal(t, "/tmp/x", so.StoreDir)
	assert.EqualValues(t, 1<<20, so.JetStreamMaxStore)
	assert.EqualValues(t, 1<<10, so.JetStreamMaxMemory)
}

func TestStreamLimits(t *testing.T) {
	cfg := StreamLimits{}.config()
	assert.Equal(t, DefaultMaxAge, cfg.MaxAge)
	assert.Zero(t, cfg.MaxBytes)
	assert.Equal(t, nats.LimitsPolicy, cfg.Retention)

	cfg = StreamLimits{MaxAge: time.Hour, MaxBytes: 4096}.config()
	assert.Equal(t, time.Hour, cfg.MaxAge)
	assert.EqualValues(t, 4096, cfg.MaxBytes)
}

func TestNewServerRequiresStoreDir(t *testing.T) {
	_, err := NewServer(Options{})
	assert.Error(t, err)
}

func newJetStream(t *testing.T) nats.JetStreamContext {
	t.Helper()
	srv, err := NewServer(Options{StoreDir: t.TempDir(), MaxStore: 64 << 20, MaxMemory: 8 << 20})
	require.NoError(t, err)
	t.Cleanup(srv.Shutdown)

	nc, err := srv.Connect()
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	js, err := nc.JetStream()
	require.NoError(t, err)
	return js
}

func TestEmbeddedStream(t *testing.T) {
	js := newJetStream(t)
	require.NoError(t, EnsureStream(js, StreamLimits{}))
	require.NoError(t, EnsureStream(js, StreamLimits{}), "second call must tolerate the existing stream")

	_, err := js.Publish(EventSubject("s1"), []byte(`{"kind":"content"}`))
	require.NoError(t, err)
	_, err = js.Publish(DoneSubject("s1"), []byte(`{"outcome":"completed"}`))
	require.NoError(t, err)

	info, err := js.StreamInfo(StreamName)
	require.NoError(t, err)
	assert.EqualValues(t, 2, info.State.Msgs)
	assert.Equal(t, nats.LimitsPolicy, info.Config.Retention)

	sub, err := js.SubscribeSync(DoneSubject("s1"), nats.DeliverAll())
	require.NoError(t, err)
	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.JSONEq(t, `{"outcome":"completed"}`, string(msg.Data))
}

func TestEnsureStreamAppliesNewLimits(t *testing.T) {
	js := newJetStream(t)
	require.NoError(t, EnsureStream(js, StreamLimits{MaxAge: time.Hour}))
	require.NoError(t, EnsureStream(js, StreamLimits{MaxAge: 2 * time.Hour, MaxBytes: 1 << 20}))

	info, err := js.StreamInfo(StreamName)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, info.Config.MaxAge)
	assert.EqualValues(t, 1<<20, info.Config.MaxBytes)
}
