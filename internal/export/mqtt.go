// Package export publishes completed cycle records to optional external
// consumers. Exporters are best-effort: the controller logs a failed
// publish and moves on.
package export

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/hydrohome/sumpctl/internal/models"
)

const (
	mqttQoS            = 0
	mqttPublishTimeout = 5 * time.Second
)

// MQTTPublisher pushes cycle records as JSON onto a broker topic so
// home-automation dashboards can subscribe to pump activity.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
	logger *logrus.Logger
}

func NewMQTTPublisher(broker, clientID, topic string, logger *logrus.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}

	return &MQTTPublisher{client: client, topic: topic, logger: logger}, nil
}

func (p *MQTTPublisher) PublishCycle(rec models.CycleRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("mqtt marshal: %w", err)
	}

	token := p.client.Publish(p.topic, mqttQoS, false, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return fmt.Errorf("mqtt publish: timed out after %s", mqttPublishTimeout)
	}
	if token.Error() != nil {
		return fmt.Errorf("mqtt publish: %w", token.Error())
	}

	p.logger.WithField("topic", p.topic).Debug("Cycle published to MQTT")
	return nil
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
