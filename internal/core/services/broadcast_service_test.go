package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"livecast/internal/core/domain"
	"livecast/internal/core/signaling"
)

func newBroadcastFixture(t *testing.T) (*BroadcastService, *fakeSignalingDialer, *fakeMediaDialer, *fakeCapture, *fakeNotifier) {
	t.Helper()
	sigDialer := &fakeSignalingDialer{}
	mediaDialer := &fakeMediaDialer{}
	capture := &fakeCapture{screen: captureStream(2, 1), camera: captureStream(1, 1)}
	notifier := &fakeNotifier{}
	svc := NewBroadcastService(testConfig(), testLogger(), notifier, testTranslate(), sigDialer, mediaDialer, capture)
	return svc, sigDialer, mediaDialer, capture, notifier
}

func mountedBroadcast(t *testing.T) (*BroadcastService, *fakeSignalingClient, *fakeMediaClient, *fakeCapture, *fakeNotifier) {
	t.Helper()
	svc, sigDialer, mediaDialer, capture, notifier := newBroadcastFixture(t)
	require.NoError(t, svc.Mount(context.Background(), "room123456"))
	return svc, sigDialer.client, mediaDialer.client, capture, notifier
}

func TestBroadcastMountGeneratesIdentity(t *testing.T) {
	svc, sigDialer, _, _, _ := newBroadcastFixture(t)

	require.NoError(t, svc.Mount(context.Background(), ""))

	snap := svc.Snapshot()
	assert.Regexp(t, `^H0ST-[0-9a-zA-Z]{6}$`, string(snap.ClientID))
	assert.Len(t, string(snap.Room), 10, "an empty room id gets generated")
	assert.Equal(t, snap.ClientID, sigDialer.client.ClientID())
}

func TestBroadcastStartAnnouncesLive(t *testing.T) {
	svc, sig, _, _, _ := mountedBroadcast(t)
	ctx := context.Background()

	require.NoError(t, svc.CaptureScreen(ctx, defaultScreenRequest()))
	require.NoError(t, svc.Start(ctx))

	topic := "CHNWT/L1VESTR3AM/room123456"
	published := sig.publishedTo(topic)
	require.Len(t, published, 1)

	env := signaling.Decode(published[0], signaling.FallbackEnvelope())
	assert.Equal(t, signaling.KindHost, env.Type)
	assert.Equal(t, svc.Snapshot().ClientID, env.ClientID)
	assert.Equal(t, domain.MessageStreamLive, env.Message)

	assert.Equal(t, domain.StreamStatusLive, svc.Snapshot().Status)
}

func TestBroadcastStartRequiresCapture(t *testing.T) {
	svc, _, _, _, _ := mountedBroadcast(t)

	assert.ErrorIs(t, svc.Start(context.Background()), domain.ErrNoCapture)
}

func TestBroadcastStartIsIdempotentWhileLive(t *testing.T) {
	svc, sig, _, _, _ := mountedBroadcast(t)
	ctx := context.Background()

	require.NoError(t, svc.CaptureScreen(ctx, defaultScreenRequest()))
	require.NoError(t, svc.Start(ctx))
	require.NoError(t, svc.Start(ctx))

	assert.Len(t, sig.publishedTo("CHNWT/L1VESTR3AM/room123456"), 1, "going live twice announces once")
}

func TestBroadcastCallsRequestingViewer(t *testing.T) {
	svc, sig, mediaClient, _, _ := mountedBroadcast(t)
	ctx := context.Background()

	require.NoError(t, svc.CaptureScreen(ctx, defaultScreenRequest()))
	require.NoError(t, svc.Start(ctx))

	request := signaling.Encode(signaling.Envelope{
		Type:     signaling.KindPeer,
		ClientID: "P33R-abc123",
		Message:  domain.StreamRequestMessage(testPeerID),
	})
	require.True(t, sig.deliver("CHNWT/L1VESTR3AM/room123456", request))

	require.Equal(t, 1, mediaClient.callCount())
	call := mediaClient.calls[0]
	assert.Equal(t, testPeerID, call.RemotePeerID())

	// The outbound stream carries one track per source track.
	require.Len(t, call.replaced, 1)
	assert.Len(t, call.replaced[0].AudioTracks(), 2)
	assert.Len(t, call.replaced[0].VideoTracks(), 1)

	assert.Equal(t, 1, svc.Snapshot().ViewerCount)
}

func TestBroadcastIgnoresNonRequests(t *testing.T) {
	svc, sig, mediaClient, _, _ := mountedBroadcast(t)
	ctx := context.Background()

	require.NoError(t, svc.CaptureScreen(ctx, defaultScreenRequest()))
	require.NoError(t, svc.Start(ctx))

	topic := "CHNWT/L1VESTR3AM/room123456"
	self := svc.Snapshot().ClientID

	payloads := [][]byte{
		// own announcement echoed back
		signaling.Encode(signaling.Envelope{Type: signaling.KindHost, ClientID: self, Message: domain.MessageStreamLive}),
		// a peer envelope from this host's own client id
		signaling.Encode(signaling.Envelope{Type: signaling.KindPeer, ClientID: self, Message: domain.StreamRequestMessage(testPeerID)}),
		// peer chatter that is not a stream request
		signaling.Encode(signaling.Envelope{Type: signaling.KindPeer, ClientID: "P33R-abc123", Message: "hello"}),
		// malformed payload
		[]byte("{not json"),
	}
	for _, p := range payloads {
		sig.deliver(topic, p)
	}

	assert.Zero(t, mediaClient.callCount())
}

func TestBroadcastRepeatRequestSupersedesCall(t *testing.T) {
	svc, sig, mediaClient, _, _ := mountedBroadcast(t)
	ctx := context.Background()

	require.NoError(t, svc.CaptureScreen(ctx, defaultScreenRequest()))
	require.NoError(t, svc.Start(ctx))

	request := signaling.Encode(signaling.Envelope{
		Type:     signaling.KindPeer,
		ClientID: "P33R-abc123",
		Message:  domain.StreamRequestMessage(testPeerID),
	})
	topic := "CHNWT/L1VESTR3AM/room123456"
	sig.deliver(topic, request)
	sig.deliver(topic, request)

	assert.Equal(t, 2, mediaClient.callCount())
	assert.False(t, mediaClient.calls[0].isClosed(), "the superseded call is left to its own lifecycle")
	assert.Equal(t, 1, svc.Snapshot().ViewerCount)
}

func TestBroadcastSetTrackVolumeRebuildsStream(t *testing.T) {
	svc, sig, mediaClient, _, _ := mountedBroadcast(t)
	ctx := context.Background()

	require.NoError(t, svc.CaptureScreen(ctx, defaultScreenRequest()))
	require.NoError(t, svc.Start(ctx))

	sig.deliver("CHNWT/L1VESTR3AM/room123456", signaling.Encode(signaling.Envelope{
		Type:     signaling.KindPeer,
		ClientID: "P33R-abc123",
		Message:  domain.StreamRequestMessage(testPeerID),
	}))
	require.Equal(t, 1, mediaClient.callCount())
	call := mediaClient.calls[0]
	before := len(call.replaced)

	require.NoError(t, svc.SetTrackVolume(ctx, 0, 0.5))

	require.Len(t, call.replaced, before+1, "volume change moves active calls onto the rebuilt stream")
	rebuilt := call.replaced[len(call.replaced)-1]
	assert.Len(t, rebuilt.AudioTracks(), 2, "rebuild keeps one audio track per source track")
	assert.Equal(t, []float64{0.5, 1}, svc.Snapshot().Gains)
}

func TestBroadcastSetTrackVolumeBounds(t *testing.T) {
	svc, _, _, _, _ := mountedBroadcast(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.SetTrackVolume(ctx, 0, 1), domain.ErrNoCapture)

	require.NoError(t, svc.CaptureScreen(ctx, defaultScreenRequest()))
	assert.ErrorIs(t, svc.SetTrackVolume(ctx, 5, 1), domain.ErrTrackIndexOutOfRange)
	assert.ErrorIs(t, svc.SetTrackVolume(ctx, -1, 1), domain.ErrTrackIndexOutOfRange)
}

func TestBroadcastMuteKeepsTrack(t *testing.T) {
	svc, sig, mediaClient, capture, _ := mountedBroadcast(t)
	ctx := context.Background()
	capture.screen = captureStream(1, 1)

	require.NoError(t, svc.CaptureScreen(ctx, defaultScreenRequest()))
	require.NoError(t, svc.Start(ctx))

	sig.deliver("CHNWT/L1VESTR3AM/room123456", signaling.Encode(signaling.Envelope{
		Type:     signaling.KindPeer,
		ClientID: "P33R-abc123",
		Message:  domain.StreamRequestMessage(testPeerID),
	}))
	require.Equal(t, 1, mediaClient.callCount())

	require.NoError(t, svc.SetTrackVolume(ctx, 0, 0))

	call := mediaClient.calls[0]
	rebuilt := call.replaced[len(call.replaced)-1]
	assert.Len(t, rebuilt.AudioTracks(), 1, "a muted track stays in the outbound stream")
}

func TestBroadcastCaptureFailureLeavesSourceUnset(t *testing.T) {
	sigDialer := &fakeSignalingDialer{}
	mediaDialer := &fakeMediaDialer{}
	notifier := &fakeNotifier{}
	capture := new(mockCapture)
	capture.On("Screen", mock.Anything).Return(nil, errDialFailed)

	svc := NewBroadcastService(testConfig(), testLogger(), notifier, testTranslate(), sigDialer, mediaDialer, capture)
	require.NoError(t, svc.Mount(context.Background(), "room123456"))

	err := svc.CaptureScreen(context.Background(), defaultScreenRequest())
	assert.ErrorIs(t, err, errDialFailed)

	snap := svc.Snapshot()
	assert.Equal(t, domain.StreamSourceNone, snap.Source)
	assert.Contains(t, notifier.levels, "error")
	capture.AssertExpectations(t)
}

func TestBroadcastStopTearsDown(t *testing.T) {
	svc, sig, mediaClient, _, _ := mountedBroadcast(t)
	ctx := context.Background()

	require.NoError(t, svc.CaptureScreen(ctx, defaultScreenRequest()))
	require.NoError(t, svc.Start(ctx))

	topic := "CHNWT/L1VESTR3AM/room123456"
	sig.deliver(topic, signaling.Encode(signaling.Envelope{
		Type:     signaling.KindPeer,
		ClientID: "P33R-abc123",
		Message:  domain.StreamRequestMessage(testPeerID),
	}))
	require.Equal(t, 1, mediaClient.callCount())

	require.NoError(t, svc.Stop(ctx))

	published := sig.publishedTo(topic)
	require.Len(t, published, 2)
	env := signaling.Decode(published[1], signaling.FallbackEnvelope())
	assert.Equal(t, domain.MessageStreamOffline, env.Message)

	assert.Contains(t, sig.unsubscribed, topic)
	assert.True(t, mediaClient.calls[0].isClosed())

	snap := svc.Snapshot()
	assert.Equal(t, domain.StreamStatusOffline, snap.Status)
	assert.Equal(t, domain.StreamSourceNone, snap.Source)
	assert.Zero(t, snap.ViewerCount)
}

func TestBroadcastStopWhenOffline(t *testing.T) {
	svc, _, _, _, _ := mountedBroadcast(t)

	assert.ErrorIs(t, svc.Stop(context.Background()), domain.ErrNotLive)
}
