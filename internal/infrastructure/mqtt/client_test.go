package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/sqlgw/internal/infrastructure/config"
)

const testBrokerAddr = "127.0.0.1:1883"

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "sqlgw-test",
		},
		QoS:         1,
		TopicPrefix: "sqlgw-test",
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// requireBroker skips the test unless a broker is listening on testBrokerAddr.
func requireBroker(t *testing.T) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", testBrokerAddr, 200*time.Millisecond)
	if err != nil {
		t.Skipf("no MQTT broker at %s: %v", testBrokerAddr, err)
	}
	conn.Close() //nolint:errcheck // Reachability check only
}

func connectTest(t *testing.T) *Client {
	t.Helper()
	requireBroker(t)

	client, err := Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup
	return client
}

// =============================================================================
// Topic Tests
// =============================================================================

func TestTopics(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"Status", Topics{Prefix: "sqlgw"}.Status(), "sqlgw/status"},
		{"Status trailing slash", Topics{Prefix: "site/sqlgw/"}.Status(), "site/sqlgw/status"},
		{"Status no prefix", Topics{}.Status(), "status"},
		{"Changes", Topics{Prefix: "sqlgw"}.Changes("devices"), "sqlgw/changes/devices"},
		{"Changes sanitised", Topics{Prefix: "sqlgw"}.Changes("a/b+c#"), "sqlgw/changes/a_b_c_"},
		{"Changes empty table", Topics{Prefix: "sqlgw"}.Changes(""), "sqlgw/changes/_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("topic = %q, want %q", tt.got, tt.expected)
			}
		})
	}
}

func TestValidPublishTopic(t *testing.T) {
	tests := []struct {
		topic string
		want  bool
	}{
		{"sqlgw/changes/devices", true},
		{"", false},
		{"sqlgw/changes/+", false},
		{"sqlgw/#", false},
	}

	for _, tt := range tests {
		if got := ValidPublishTopic(tt.topic); got != tt.want {
			t.Errorf("ValidPublishTopic(%q) = %v, want %v", tt.topic, got, tt.want)
		}
	}
}

// =============================================================================
// Option and Payload Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "gw"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want [tcp://127.0.0.1:1883]", opts.Servers)
	}
	if opts.ClientID != "sqlgw-test" {
		t.Errorf("ClientID = %q, want sqlgw-test", opts.ClientID)
	}
	if opts.Username != "gw" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q, want gw/secret", opts.Username, opts.Password)
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect = false, want true")
	}
	if opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("MaxReconnectInterval = %v, want 5s", opts.MaxReconnectInterval)
	}
}

func TestBuildClientOptionsTLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)

	if opts.Servers[0].String() != "ssl://127.0.0.1:8883" {
		t.Errorf("Servers[0] = %v, want ssl://127.0.0.1:8883", opts.Servers[0])
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS minimum version not set")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := pahomqtt.NewClientOptions()
	configureLWT(opts, Topics{Prefix: "sqlgw"}, "gw-1")

	if !opts.WillEnabled {
		t.Fatal("WillEnabled = false, want true")
	}
	if opts.WillTopic != "sqlgw/status" {
		t.Errorf("WillTopic = %q, want sqlgw/status", opts.WillTopic)
	}
	if !opts.WillRetained {
		t.Error("WillRetained = false, want true")
	}

	var p statusPayload
	if err := json.Unmarshal(opts.WillPayload, &p); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if p.Status != "offline" || p.Reason != "unexpected_disconnect" || p.ClientID != "gw-1" {
		t.Errorf("will payload = %+v", p)
	}
}

func TestStatusPayloads(t *testing.T) {
	var online statusPayload
	if err := json.Unmarshal(buildOnlinePayload("gw-1"), &online); err != nil {
		t.Fatalf("online payload: %v", err)
	}
	if online.Status != "online" || online.Reason != "" {
		t.Errorf("online payload = %+v", online)
	}
	if _, err := time.Parse(time.RFC3339, online.Timestamp); err != nil {
		t.Errorf("timestamp %q is not RFC3339: %v", online.Timestamp, err)
	}

	var offline statusPayload
	if err := json.Unmarshal(buildOfflinePayload("gw-1"), &offline); err != nil {
		t.Fatalf("offline payload: %v", err)
	}
	if offline.Status != "offline" || offline.Reason != "graceful_shutdown" {
		t.Errorf("offline payload = %+v", offline)
	}
}

// =============================================================================
// Publish Validation Tests (no broker needed)
// =============================================================================

func TestPublishValidation(t *testing.T) {
	client := &Client{}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"wildcard topic", "sqlgw/+", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "sqlgw/changes/t", []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", "sqlgw/changes/t", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "sqlgw/changes/t", []byte("x"), 1, ErrNotConnected},
		{"nil payload not connected", "sqlgw/changes/t", nil, 0, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCloseNil(t *testing.T) {
	var nilClient *Client
	if err := nilClient.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}

	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true for unconnected client")
	}
}

func TestHealthCheckDisconnected(t *testing.T) {
	client := &Client{}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	client := &Client{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.HealthCheck(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

// =============================================================================
// Broker Tests (skipped without a broker on 127.0.0.1:1883)
// =============================================================================

func TestConnect(t *testing.T) {
	client := connectTest(t)

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestClose(t *testing.T) {
	requireBroker(t)

	client, err := Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
}

func TestPublishRoundtrip(t *testing.T) {
	client := connectTest(t)

	received := make(chan pahomqtt.Message, 1)
	sub := pahomqtt.NewClient(pahomqtt.NewClientOptions().
		AddBroker("tcp://" + testBrokerAddr).
		SetClientID("sqlgw-test-sub"))
	if token := sub.Connect(); !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		t.Fatalf("subscriber connect failed: %v", token.Error())
	}
	defer sub.Disconnect(100)

	topic := client.Topics().Changes("roundtrip")
	token := sub.Subscribe(topic, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		received <- msg
	})
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		t.Fatalf("subscribe failed: %v", token.Error())
	}

	if err := client.Publish(topic, []byte(`{"ok":true}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-received:
		if msg.Topic() != topic {
			t.Errorf("topic = %q, want %q", msg.Topic(), topic)
		}
		if !strings.Contains(string(msg.Payload()), `"ok":true`) {
			t.Errorf("payload = %s", msg.Payload())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}
