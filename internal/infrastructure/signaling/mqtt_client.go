// Package signaling adapts the public MQTT broker into the signaling
// ports. Every lifecycle transition of the broker connection is
// surfaced as a notification and mirrored into the signaling registry.
package signaling

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"livecast/internal/core/domain"
	"livecast/internal/core/ports"
	"livecast/pkg/config"
)

// Dialer connects signaling clients to the configured MQTT broker.
type Dialer struct {
	cfg       *config.Config
	registry  ports.SignalingRegistry
	notifier  ports.Notifier
	translate ports.Translate
	logger    *zap.SugaredLogger
}

func NewDialer(cfg *config.Config, registry ports.SignalingRegistry, notifier ports.Notifier, translate ports.Translate, logger *zap.SugaredLogger) *Dialer {
	return &Dialer{
		cfg:       cfg,
		registry:  registry,
		notifier:  notifier,
		translate: translate,
		logger:    logger,
	}
}

// Connect dials the broker and blocks until the first connection
// attempt resolves. Later disconnects are retried by the underlying
// client indefinitely; each transition updates the registry and raises
// a notification.
func (d *Dialer) Connect(clientID domain.ClientID) (ports.SignalingClient, error) {
	c := &client{
		clientID:  clientID,
		qos:       d.cfg.Signaling.QoS,
		registry:  d.registry,
		notifier:  d.notifier,
		translate: d.translate,
		logger:    d.logger,
	}

	opts := mqtt.NewClientOptions().
		AddBroker(d.cfg.Signaling.BrokerURL).
		SetClientID(string(clientID)).
		SetAutoReconnect(true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost).
		SetReconnectingHandler(c.onReconnecting)

	c.mqtt = mqtt.NewClient(opts)

	token := c.mqtt.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		c.notifyError(err)
		return nil, fmt.Errorf("failed to connect to broker %s: %w", d.cfg.Signaling.BrokerURL, err)
	}

	return c, nil
}

type client struct {
	clientID  domain.ClientID
	qos       byte
	mqtt      mqtt.Client
	registry  ports.SignalingRegistry
	notifier  ports.Notifier
	translate ports.Translate
	logger    *zap.SugaredLogger
}

func (c *client) ClientID() domain.ClientID { return c.clientID }

func (c *client) onConnect(_ mqtt.Client) {
	c.logger.Infow("signaling connected", "client_id", c.clientID)
	if err := c.registry.SetClient(c.clientID, true); err != nil {
		c.logger.Errorw("failed to record signaling state", "client_id", c.clientID, "error", err)
	}
	c.notifier.Success(c.translate("TOAST_TITLE_SUCCESS"), c.translate("MQTT_CLIENT_CONNECTED"))
}

func (c *client) onConnectionLost(_ mqtt.Client, err error) {
	c.logger.Warnw("signaling connection lost", "client_id", c.clientID, "error", err)
	if err := c.registry.SetClient(c.clientID, false); err != nil {
		c.logger.Errorw("failed to record signaling state", "client_id", c.clientID, "error", err)
	}
	c.notifier.Warning(c.translate("TOAST_TITLE_WARNING"), c.translate("MQTT_CLIENT_DISCONNECTED"))
}

func (c *client) onReconnecting(_ mqtt.Client, _ *mqtt.ClientOptions) {
	c.logger.Infow("signaling reconnecting", "client_id", c.clientID)
	if err := c.registry.SetClient(c.clientID, false); err != nil {
		c.logger.Errorw("failed to record signaling state", "client_id", c.clientID, "error", err)
	}
	c.notifier.Info(c.translate("TOAST_TITLE_INFO"), c.translate("MQTT_CLIENT_RECONNECTING"))
}

func (c *client) notifyError(err error) {
	msg := c.translate("TOAST_MESSAGE_UNKNOWN_ERROR")
	if err != nil {
		msg = err.Error()
	}
	c.notifier.Error(c.translate("TOAST_TITLE_ERROR"), msg)
}

// Subscribe registers handler for payloads arriving on exactly topic.
// Token errors are reported asynchronously as notifications; delivery
// starts as soon as the broker acknowledges the subscription.
func (c *client) Subscribe(topic string, handler ports.MessageHandler) error {
	token := c.mqtt.Subscribe(topic, c.qos, func(_ mqtt.Client, m mqtt.Message) {
		if m.Topic() != topic {
			return
		}
		handler(m.Topic(), m.Payload())
	})

	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			c.logger.Errorw("subscribe failed", "client_id", c.clientID, "topic", topic, "error", err)
			c.notifier.Error(c.translate("TOAST_TITLE_ERROR"),
				fmt.Sprintf("%s %s", c.translate("MQTT_CLIENT_SUBSCRIBE_FAIL"), topic))
		}
	}()

	return nil
}

// Publish sends payload to topic. Fire-and-forget: broker errors are
// reported as notifications, not returned.
func (c *client) Publish(topic string, payload []byte) error {
	token := c.mqtt.Publish(topic, c.qos, false, payload)

	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			c.logger.Errorw("publish failed", "client_id", c.clientID, "topic", topic, "error", err)
			c.notifier.Error(c.translate("TOAST_TITLE_ERROR"),
				fmt.Sprintf("%s %s", c.translate("MQTT_CLIENT_PUBLISH_FAIL"), topic))
		}
	}()

	return nil
}

// Unsubscribe stops delivery for topic.
func (c *client) Unsubscribe(topic string) error {
	token := c.mqtt.Unsubscribe(topic)

	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			c.logger.Errorw("unsubscribe failed", "client_id", c.clientID, "topic", topic, "error", err)
			c.notifier.Error(c.translate("TOAST_TITLE_ERROR"),
				fmt.Sprintf("%s %s", c.translate("MQTT_CLIENT_UNSUBSCRIBE_FAIL"), topic))
		}
	}()

	return nil
}

// Close ends the session deliberately. The registry is updated and an
// informational notification is raised; no reconnect follows.
func (c *client) Close() {
	c.mqtt.Disconnect(250)
	if err := c.registry.SetClient(c.clientID, false); err != nil {
		c.logger.Errorw("failed to record signaling state", "client_id", c.clientID, "error", err)
	}
	c.notifier.Info(c.translate("TOAST_TITLE_INFO"), c.translate("MQTT_CLIENT_CLOSED"))
	c.logger.Infow("signaling closed", "client_id", c.clientID)
}
