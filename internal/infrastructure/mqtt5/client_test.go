package mqtt5

import (
	"errors"
	"testing"

	"github.com/nerrad567/tankbot-core/internal/infrastructure/config"
	"github.com/nerrad567/tankbot-core/internal/session"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker:    config.MQTTBrokerConfig{URI: "mqtt://127.0.0.1:1883", ClientID: "tankbot-v5-test"},
		Auth:      config.MQTTAuthConfig{Username: "ABCD", Password: "ABCD"},
		Protocol:  5,
		Topic:     "tankrobot-topic",
		QoS:       1,
		KeepAlive: 30,
	}
}

func TestNew(t *testing.T) {
	c, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.pahoCfg.KeepAlive != 30 {
		t.Errorf("KeepAlive = %d, want 30", c.pahoCfg.KeepAlive)
	}
	if c.pahoCfg.ClientID != "tankbot-v5-test" {
		t.Errorf("ClientID = %q", c.pahoCfg.ClientID)
	}
	if c.pahoCfg.TlsCfg != nil {
		t.Error("TLS should be off for mqtt://")
	}
	if c.cm.Load() != nil {
		t.Error("New() must not connect")
	}
}

func TestNew_TLSScheme(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.URI = "mqtts://broker.local:8883"
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.pahoCfg.TlsCfg == nil {
		t.Error("TLS config missing for mqtts://")
	}
}

func TestNew_InvalidBroker(t *testing.T) {
	for _, uri := range []string{"", "::bad", "broker-without-scheme"} {
		cfg := testConfig()
		cfg.Broker.URI = uri
		if _, err := New(cfg); !errors.Is(err, ErrInvalidBroker) {
			t.Errorf("New(%q) error = %v, want ErrInvalidBroker", uri, err)
		}
	}
}

func TestNewSession_NoTypedNil(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.URI = ""
	c, err := NewSession(cfg)
	if err == nil || c != nil {
		t.Errorf("NewSession() = %v, %v; want nil client and error", c, err)
	}
}

func TestPublish_Validation(t *testing.T) {
	c, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := c.Publish("", []byte("x"), 1, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v", err)
	}
	if _, err := c.Publish("t", []byte("x"), 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("qos 3 error = %v", err)
	}
	if _, err := c.Publish("t", []byte("x"), 1, false); !errors.Is(err, ErrNotStarted) {
		t.Errorf("before Start error = %v, want ErrNotStarted", err)
	}
}

func TestCallbacksEmitSessionEvents(t *testing.T) {
	c, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	var kinds []session.EventKind
	c.SetEventHandler(func(ev session.Event) { kinds = append(kinds, ev.Kind) })

	c.pahoCfg.OnConnectionUp(nil, nil)
	if !c.pahoCfg.OnConnectionDown() {
		t.Error("OnConnectionDown should request reconnection")
	}
	c.pahoCfg.OnConnectError(errors.New("refused"))

	want := []session.EventKind{session.Connected, session.Disconnected, session.Error}
	if len(kinds) != len(want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("event[%d] = %v, want %v", i, kinds[i], want[i])
		}
	}
}

func TestAllocIDSkipsZero(t *testing.T) {
	c := &Client{}
	c.nextID.Store(0xFFFF)
	if id := c.allocID(); id != 1 {
		t.Errorf("allocID() after wrap = %d, want 1", id)
	}
}

func TestCloseBeforeStart(t *testing.T) {
	c, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
