package publish

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	mqttclient "github.com/eclipse/paho.mqtt.golang"

	"github.com/diagnostic-updater/pkg/config"
	"github.com/diagnostic-updater/pkg/diagnostic"
)

// mqttClient paho 客户端中用到的部分，测试时可替换
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqttclient.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher 把 JSON 批次发布到 MQTT 主题
type MQTTPublisher struct {
	client   mqttClient
	topic    string
	qos      byte
	retained bool
	timeout  time.Duration
	closed   atomic.Bool
}

// NewMQTTPublisher 连接 broker 并创建发布端
func NewMQTTPublisher(cfg config.MQTTSinkConfig) (*MQTTPublisher, error) {
	opts := mqttclient.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.Timeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqttclient.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("connect %s: %w", cfg.Broker, ErrPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Broker, err)
	}
	return newMQTTPublisher(client, cfg.Topic, byte(cfg.QoS), cfg.Retained, cfg.Timeout), nil
}

func newMQTTPublisher(client mqttClient, topic string, qos byte, retained bool, timeout time.Duration) *MQTTPublisher {
	return &MQTTPublisher{client: client, topic: topic, qos: qos, retained: retained, timeout: timeout}
}

func (p *MQTTPublisher) Name() string { return "mqtt" }

func (p *MQTTPublisher) Publish(ctx context.Context, batch *diagnostic.Batch) error {
	if p.closed.Load() {
		return ErrClosed
	}
	data, err := EncodeBatch(batch)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	token := p.client.Publish(p.topic, p.qos, p.retained, data)

	var timeout <-chan time.Time
	if p.timeout > 0 {
		t := time.NewTimer(p.timeout)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish to %s: %w", p.topic, err)
		}
		return nil
	case <-timeout:
		return fmt.Errorf("publish to %s: %w", p.topic, ErrPublishTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 断开连接；之后的 Publish 返回 ErrClosed
func (p *MQTTPublisher) Close() error {
	if p.closed.CompareAndSwap(false, true) {
		p.client.Disconnect(250)
	}
	return nil
}
