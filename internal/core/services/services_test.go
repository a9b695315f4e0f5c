package services

import (
	"errors"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"livecast/internal/core/domain"
	"livecast/internal/core/ports"
	"livecast/internal/media"
	"livecast/pkg/config"
	"livecast/pkg/i18n"
)

const testPeerID = domain.TransportPeerID("11111111-2222-4333-8444-555555555555")

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Quality.SampleInterval = 10 * time.Millisecond
	return cfg
}

type fakeSignalingClient struct {
	mu           sync.Mutex
	clientID     domain.ClientID
	subs         map[string]ports.MessageHandler
	published    map[string][][]byte
	unsubscribed []string
	subscribeErr error
	closed       bool
}

func newFakeSignalingClient(clientID domain.ClientID) *fakeSignalingClient {
	return &fakeSignalingClient{
		clientID:  clientID,
		subs:      make(map[string]ports.MessageHandler),
		published: make(map[string][][]byte),
	}
}

func (f *fakeSignalingClient) ClientID() domain.ClientID { return f.clientID }

func (f *fakeSignalingClient) Subscribe(topic string, handler ports.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.subs[topic] = handler
	return nil
}

func (f *fakeSignalingClient) setSubscribeErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribeErr = err
}

func (f *fakeSignalingClient) Publish(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[topic] = append(f.published[topic], payload)
	return nil
}

func (f *fakeSignalingClient) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = append(f.unsubscribed, topic)
	delete(f.subs, topic)
	return nil
}

func (f *fakeSignalingClient) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

// deliver drives a subscribed handler as if the broker delivered payload.
func (f *fakeSignalingClient) deliver(topic string, payload []byte) bool {
	f.mu.Lock()
	handler, ok := f.subs[topic]
	f.mu.Unlock()
	if !ok {
		return false
	}
	handler(topic, payload)
	return true
}

func (f *fakeSignalingClient) publishedTo(topic string) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.published[topic]))
	copy(out, f.published[topic])
	return out
}

type fakeSignalingDialer struct {
	mu     sync.Mutex
	client *fakeSignalingClient
	err    error
}

func (f *fakeSignalingDialer) Connect(clientID domain.ClientID) (ports.SignalingClient, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.client = newFakeSignalingClient(clientID)
	return f.client, nil
}

type fakeCall struct {
	remote  domain.TransportPeerID
	statsFn func() domain.CallStats

	mu       sync.Mutex
	replaced []*media.Stream
	closed   bool
}

func (c *fakeCall) RemotePeerID() domain.TransportPeerID { return c.remote }

func (c *fakeCall) ReplaceTracks(stream *media.Stream) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replaced = append(c.replaced, stream)
	return nil
}

func (c *fakeCall) Stats() domain.CallStats {
	if c.statsFn != nil {
		return c.statsFn()
	}
	return domain.CallStats{Timestamp: time.Now()}
}

func (c *fakeCall) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeCall) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeMediaClient struct {
	clientID domain.ClientID
	peerID   domain.TransportPeerID

	mu      sync.Mutex
	calls   []*fakeCall
	callErr error
	handler ports.RemoteStreamHandler
	closed  bool
}

func (f *fakeMediaClient) ClientID() domain.ClientID      { return f.clientID }
func (f *fakeMediaClient) PeerID() domain.TransportPeerID { return f.peerID }

func (f *fakeMediaClient) CallRemotePeer(target domain.TransportPeerID, stream *media.Stream) (ports.MediaCall, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.callErr != nil {
		return nil, f.callErr
	}
	call := &fakeCall{remote: target}
	call.replaced = append(call.replaced, stream)
	f.calls = append(f.calls, call)
	return call, nil
}

func (f *fakeMediaClient) ListenForIncomingCalls(handler ports.RemoteStreamHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler
}

func (f *fakeMediaClient) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeMediaClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// ring simulates an inbound call from the host.
func (f *fakeMediaClient) ring(remote *media.RemoteStream, call ports.MediaCall) bool {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	if handler == nil {
		return false
	}
	handler(remote, call)
	return true
}

type fakeMediaDialer struct {
	mu     sync.Mutex
	client *fakeMediaClient
	err    error
}

func (f *fakeMediaDialer) Connect(clientID domain.ClientID) (ports.MediaClient, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.client = &fakeMediaClient{clientID: clientID, peerID: testPeerID}
	return f.client, nil
}

type fakeCapture struct {
	screen    *media.Stream
	camera    *media.Stream
	screenErr error
	cameraErr error
}

func (f *fakeCapture) Devices() ([]media.DeviceInfo, error) { return nil, nil }

func (f *fakeCapture) Screen(media.ScreenRequest) (*media.Stream, error) {
	return f.screen, f.screenErr
}

func (f *fakeCapture) Camera(media.CameraRequest) (*media.Stream, error) {
	return f.camera, f.cameraErr
}

type mockCapture struct {
	mock.Mock
}

func (m *mockCapture) Devices() ([]media.DeviceInfo, error) {
	args := m.Called()
	devices, _ := args.Get(0).([]media.DeviceInfo)
	return devices, args.Error(1)
}

func (m *mockCapture) Screen(req media.ScreenRequest) (*media.Stream, error) {
	args := m.Called(req)
	stream, _ := args.Get(0).(*media.Stream)
	return stream, args.Error(1)
}

func (m *mockCapture) Camera(req media.CameraRequest) (*media.Stream, error) {
	args := m.Called(req)
	stream, _ := args.Get(0).(*media.Stream)
	return stream, args.Error(1)
}

type fakeNotifier struct {
	mu     sync.Mutex
	levels []string
}

func (f *fakeNotifier) note(level string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.levels = append(f.levels, level)
	return level
}

func (f *fakeNotifier) Info(string, string, ...ports.NotifyOption) string {
	return f.note("info")
}
func (f *fakeNotifier) Success(string, string, ...ports.NotifyOption) string {
	return f.note("success")
}
func (f *fakeNotifier) Warning(string, string, ...ports.NotifyOption) string {
	return f.note("warning")
}
func (f *fakeNotifier) Error(string, string, ...ports.NotifyOption) string {
	return f.note("error")
}

type fakeSignalingRegistry struct {
	mu       sync.Mutex
	records  map[domain.ClientID]domain.SignalingConnection
	watchers []func(domain.SignalingConnection)
}

func newFakeSignalingRegistry() *fakeSignalingRegistry {
	return &fakeSignalingRegistry{records: make(map[domain.ClientID]domain.SignalingConnection)}
}

func (r *fakeSignalingRegistry) SetClient(clientID domain.ClientID, connected bool) error {
	record := domain.SignalingConnection{ClientID: clientID, Connected: connected}
	r.mu.Lock()
	r.records[clientID] = record
	watchers := make([]func(domain.SignalingConnection), len(r.watchers))
	copy(watchers, r.watchers)
	r.mu.Unlock()
	for _, fn := range watchers {
		fn(record)
	}
	return nil
}

func (r *fakeSignalingRegistry) GetClient(clientID domain.ClientID) (domain.SignalingConnection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[clientID]
	return record, ok
}

func (r *fakeSignalingRegistry) Watch(fn func(domain.SignalingConnection)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watchers = append(r.watchers, fn)
}

type fakeMediaRegistry struct {
	mu       sync.Mutex
	records  map[domain.ClientID]domain.MediaConnection
	watchers []func(domain.MediaConnection)
}

func newFakeMediaRegistry() *fakeMediaRegistry {
	return &fakeMediaRegistry{records: make(map[domain.ClientID]domain.MediaConnection)}
}

func (r *fakeMediaRegistry) SetClient(clientID domain.ClientID, peerID domain.TransportPeerID, connected bool) error {
	record := domain.MediaConnection{ClientID: clientID, PeerID: peerID, Connected: connected}
	r.mu.Lock()
	r.records[clientID] = record
	watchers := make([]func(domain.MediaConnection), len(r.watchers))
	copy(watchers, r.watchers)
	r.mu.Unlock()
	for _, fn := range watchers {
		fn(record)
	}
	return nil
}

func (r *fakeMediaRegistry) GetClient(clientID domain.ClientID) (domain.MediaConnection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[clientID]
	return record, ok
}

func (r *fakeMediaRegistry) Watch(fn func(domain.MediaConnection)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watchers = append(r.watchers, fn)
}

func captureStream(audio, video int) *media.Stream {
	s := media.NewStream("capture")
	for i := 0; i < audio; i++ {
		s.AddAudioTrack(media.NewAudioTrack("a", "audio", nil))
	}
	for i := 0; i < video; i++ {
		s.AddVideoTrack(media.NewVideoTrack("v", "video", nil, nil))
	}
	return s
}

func defaultScreenRequest() media.ScreenRequest {
	return media.ScreenRequest{EnableMic: true, Constraints: media.ScreenConstraints()}
}

func testTranslate() ports.Translate {
	return i18n.Translator("en")
}

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

var errDialFailed = errors.New("dial failed")
