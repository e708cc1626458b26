package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/tankbot-core/internal/session"
)

// Maximum payload size for MQTT messages (1MB).
const maxPayloadSize = 1 << 20

// Publish hands a message to paho and returns its message ID.
//
// It does not wait for the broker. When the token completes a Published or
// Error session event is emitted with the same ID. QoS 0 messages carry ID 0.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) (uint16, error) {
	if topic == "" {
		return 0, ErrInvalidTopic
	}
	if qos > maxQoS {
		return 0, ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return 0, fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.started.Load() {
		return 0, ErrNotStarted
	}

	token := c.client.Publish(topic, qos, retained, payload)

	var id uint16
	if pt, ok := token.(*pahomqtt.PublishToken); ok {
		id = pt.MessageID()
	}

	// Fail fast when paho rejected the message synchronously.
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrPublishFailed, err)
		}
		c.emit(session.Event{Kind: session.Published, ID: id})
		return id, nil
	default:
	}

	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			c.emit(session.Event{Kind: session.Error, ID: id, Err: err})
			return
		}
		c.emit(session.Event{Kind: session.Published, ID: id})
	}()

	return id, nil
}
