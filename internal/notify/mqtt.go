// Package notify tells the IVR that a response is ready to play. The
// bridge is MQTT: one retained-free JSON message per completed call on a
// configurable topic.
package notify

import (
	"encoding/json"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// Notice is the payload published per completed advisory.
type Notice struct {
	TaskID      string    `json:"task_id"`
	Phone       string    `json:"phone,omitempty"`
	PlaybackMP3 string    `json:"playback_mp3"`
	Language    string    `json:"language"`
	CompletedAt time.Time `json:"completed_at"`
}

// Publisher publishes playback notices to the IVR's broker.
type Publisher struct {
	conn      mqtt.Client
	topic     string
	connected atomic.Bool
	log       zerolog.Logger
}

type Options struct {
	BrokerURL string
	ClientID  string
	Topic     string
	Username  string
	Password  string
}

// Connect dials the broker. The client auto-reconnects; a broker outage
// degrades notification, never the pipeline.
func Connect(opts Options, log zerolog.Logger) (*Publisher, error) {
	p := &Publisher{
		topic: opts.Topic,
		log:   log.With().Str("component", "notify").Logger(),
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}

	p.conn = mqtt.NewClient(clientOpts)
	token := p.conn.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) onConnect(mqtt.Client) {
	p.connected.Store(true)
	p.log.Info().Str("topic", p.topic).Msg("mqtt connected")
}

func (p *Publisher) onConnectionLost(_ mqtt.Client, err error) {
	p.connected.Store(false)
	p.log.Warn().Err(err).Msg("mqtt connection lost, will auto-reconnect")
}

// Publish sends one notice at QoS 1.
func (p *Publisher) Publish(n Notice) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	token := p.conn.Publish(p.topic, 1, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		p.log.Warn().Err(err).Str("task_id", n.TaskID).Msg("notice publish failed")
		return err
	}
	p.log.Debug().Str("task_id", n.TaskID).Str("topic", p.topic).Msg("playback notice published")
	return nil
}

func (p *Publisher) IsConnected() bool {
	return p.connected.Load()
}

func (p *Publisher) Close() {
	p.log.Info().Msg("disconnecting mqtt client")
	p.conn.Disconnect(1000)
}
