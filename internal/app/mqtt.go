package app

import (
	"encoding/json"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// connectMQTT connects to broker with clientID.
func connectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect %s: %w", broker, token.Error())
	}
	log.Printf("%s: connected to MQTT broker at %s", clientID, broker)
	return client, nil
}

// publishJSON publishes v as a retained JSON message.
func publishJSON(client mqtt.Client, topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal (%s): %w", topic, err)
	}
	token := client.Publish(topic, 0, true, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("MQTT publish (%s): %w", topic, token.Error())
	}
	return nil
}

// subscribe subscribes to topic and waits for the broker to acknowledge.
func subscribe(client mqtt.Client, topic string, handler mqtt.MessageHandler) error {
	token := client.Subscribe(topic, 0, handler)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("MQTT subscribe (%s): %w", topic, token.Error())
	}
	log.Printf("subscribed to MQTT topic %s", topic)
	return nil
}
