package mqtt

import (
	"fmt"

	"overkiz2mqtt/internal/core/domain"
	"overkiz2mqtt/internal/core/events"
)

type HADiscoveryConfig struct {
	Device              HADiscoveryDevice         `json:"device"`
	StateTopic          string                    `json:"state_topic,omitempty"`
	CommandTopic        string                    `json:"command_topic,omitempty"`
	StateClass          string                    `json:"state_class,omitempty"`
	DeviceClass         string                    `json:"device_class,omitempty"`
	UnitOfMeasurement   string                    `json:"unit_of_measurement,omitempty"`
	AvTopic             string                    `json:"availability_topic,omitempty"`
	Availability        []HADiscoveryAvailability `json:"availability,omitempty"`
	AvailabilityMode    string                    `json:"availability_mode,omitempty"`
	JsonAttributesTopic string                    `json:"json_attributes_topic,omitempty"`
	EntityCategory      string                    `json:"entity_category,omitempty"`
	Name                string                    `json:"name"`
	UniqueId            string                    `json:"unique_id"`
	Platform            string                    `json:"platform"`
	EnabledByDefault    *bool                     `json:"enabled_by_default,omitempty"`
	PayloadOn           string                    `json:"payload_on,omitempty"`
	PayloadOff          string                    `json:"payload_off,omitempty"`
	Icon                string                    `json:"icon,omitempty"`
}

type HADiscoveryAvailability struct {
	Topic string `json:"topic"`
}

type HADiscoveryDevice struct {
	Id               []string `json:"identifiers"`
	Manufacturer     string   `json:"manufacturer,omitempty"`
	Version          string   `json:"sw_version,omitempty"`
	Model            string   `json:"model,omitempty"`
	Name             string   `json:"name,omitempty"`
	ViaDevice        string   `json:"via_device,omitempty"`
	ConfigurationURL string   `json:"configuration_url,omitempty"`
}

func HADiscoverySensorTopic(client *MQTTClient, sensor domain.GenericSensor) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", client.discoveryTopic(), sensor.SensorType, sensor.Device.Id, sensor.Id)
}

func HADiscoveryEntityTopic(client *MQTTClient, entity domain.GenericDeviceEntity) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", client.discoveryTopic(), entity.Platform, entity.Device.Id, entity.Id)
}

func HADiscoverySceneTopic(client *MQTTClient, scene domain.GenericScene) string {
	return fmt.Sprintf("%s/scene/%s/%s/config", client.discoveryTopic(), scene.Device.Id, scene.Id)
}

func GenericSensorToHADiscoveryMessage(client *MQTTClient, sensor domain.GenericSensor) HADiscoveryConfig {
	dev := device(sensor.Device)
	var topic string
	switch {
	case sensor.Id == events.SENSOR_ID_BRIDGE_STATE:
		topic = client.BridgeStateTopic()
	case sensor.SensorType == events.SENSOR_TYPE_SENSOR:
		topic = client.SensorStateTopic(sensor.Id)
	case sensor.SensorType == events.SENSOR_TYPE_BINARY:
		topic = client.BinarySensorStateTopic(sensor.Id)
	}
	disConfig := HADiscoveryConfig{
		Device:            dev,
		StateTopic:        topic,
		StateClass:        sensor.StateClass,
		DeviceClass:       sensor.DeviceClass,
		UnitOfMeasurement: sensor.UnitOfMeasurement,
		AvTopic:           client.BridgeStateTopic(),
		EntityCategory:    sensor.EntityCategory,
		Name:              sensor.Name,
		UniqueId:          sensor.UniqueId,
		Icon:              sensor.Icon,
		EnabledByDefault:  sensor.EnabledByDefault,
		Platform:          "mqtt",
	}
	if sensor.Id == events.SENSOR_ID_BRIDGE_STATE {
		disConfig.PayloadOn = MQTT_PAYLOAD_ONLINE
		disConfig.PayloadOff = MQTT_PAYLOAD_OFFLINE
	} else if sensor.SensorType == events.SENSOR_TYPE_BINARY {
		disConfig.PayloadOn = MQTT_PAYLOAD_ON
		disConfig.PayloadOff = MQTT_PAYLOAD_OFF
	}
	return disConfig
}

// GenericDeviceEntityToHADiscoveryMessage builds a read only entity config.
// The raw state map doubles as attributes so every hub state stays visible
// even when the platform only renders a few of them. Stateless devices get
// no state topic at all.
func GenericDeviceEntityToHADiscoveryMessage(client *MQTTClient, entity domain.GenericDeviceEntity) HADiscoveryConfig {
	dev := device(entity.Device)
	disConfig := HADiscoveryConfig{
		Device: dev,
		Availability: []HADiscoveryAvailability{
			{Topic: client.BridgeStateTopic()},
			{Topic: client.DeviceAvailabilityTopic(entity.Id)},
		},
		AvailabilityMode: "all",
		DeviceClass:      entity.DeviceClass,
		Name:             entity.Name,
		UniqueId:         entity.UniqueId,
		Icon:             entity.Icon,
		Platform:         "mqtt",
	}
	if !entity.Stateless {
		disConfig.StateTopic = client.DeviceStateTopic(entity.Id)
		disConfig.JsonAttributesTopic = client.DeviceStateTopic(entity.Id)
	}
	return disConfig
}

func GenericSceneToHADiscoveryMessage(client *MQTTClient, scene domain.GenericScene) HADiscoveryConfig {
	dev := device(scene.Device)
	disConfig := HADiscoveryConfig{
		Device:       dev,
		CommandTopic: client.SceneCommandTopic(scene.Id),
		PayloadOn:    MQTT_PAYLOAD_ON,
		AvTopic:      client.BridgeStateTopic(),
		Name:         scene.Name,
		UniqueId:     scene.UniqueId,
		Icon:         scene.Icon,
		Platform:     "mqtt",
	}
	return disConfig
}

func device(d domain.Device) HADiscoveryDevice {
	return HADiscoveryDevice{
		Id:               []string{d.Id},
		Manufacturer:     d.Manufacturer,
		Version:          d.Version,
		Model:            d.Model,
		Name:             d.Name,
		ViaDevice:        d.ViaDevice,
		ConfigurationURL: d.ConfigurationURL,
	}
}
