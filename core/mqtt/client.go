package mqtt

// Publisher broadcasts payloads on MQTT topics.
type Publisher interface {
	// Publish sends payload to topic, retrying transient failures.
	Publish(topic string, payload []byte) error
}
