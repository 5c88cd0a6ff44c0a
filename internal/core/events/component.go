package events

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"overkiz2mqtt/internal/core/domain"
	"overkiz2mqtt/pkg/overkiz"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE    = "bridge"
	SENSOR_ID_CONNECTIVITY    = "connectivity"
	SENSOR_ID_UP_TO_DATE      = "up_to_date"
	DEVICE_CLASS_CONNECTIVITY = "connectivity"
	DEVICE_CLASS_UPDATE       = "update"
	ENTITY_CLASS_DIAGNOSTIC   = "diagnostic"
	SENSOR_TYPE_SENSOR        = "sensor"
	SENSOR_TYPE_BINARY        = "binary_sensor"
)

// BridgeDevice is the root device every gateway chains to through via_device.
// Its id is derived from the base topic so two bridges on one broker never
// collide.
func BridgeDevice(baseTopic string) domain.Device {
	return domain.Device{
		Id:           fmt.Sprintf("overkiz_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "Overkiz2MQTT",
		Model:        "Overkiz MQTT bridge",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Overkiz bridge %s", md5HashShort(baseTopic)),
	}
}

// GatewayDevice is the registry record of one hub. The name falls back to the
// raw gateway id when the hardware family is unknown, the model stays empty
// when the hub reports no sub type.
func GatewayDevice(bridgeDevice domain.Device, gw overkiz.Gateway, server overkiz.Server) domain.Device {
	name := gw.ID
	if label, ok := gw.Type.Label(); ok {
		name = label
	}
	model := ""
	if label, ok := gw.SubType.Label(); ok {
		model = label
	}
	return domain.Device{
		Id:               GatewayTopicID(gw.ID),
		Name:             name,
		Model:            model,
		Manufacturer:     server.Manufacturer,
		Version:          gw.Connectivity.ProtocolVersion,
		ViaDevice:        bridgeDevice.Id,
		ConfigurationURL: server.ConfigurationURL,
	}
}

// HubDevice is the registry record of one device attached to a gateway.
func HubDevice(gatewayDevice domain.Device, d overkiz.Device, server overkiz.Server) domain.Device {
	model := string(d.Widget)
	if model == "" {
		model = string(d.UIClass)
	}
	return domain.Device{
		Id:           DeviceTopicID(d.DeviceURL),
		Name:         d.Label,
		Model:        model,
		Manufacturer: server.Manufacturer,
		ViaDevice:    gatewayDevice.Id,
	}
}

func BridgeSensors(bridgeDevice domain.Device) []domain.GenericSensor {

	var sensors []domain.GenericSensor

	// Bridge connection state
	sensors = append(sensors, domain.GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	return sensors
}

func GatewaySensors(gatewayDevice domain.Device, gw overkiz.Gateway) []domain.GenericSensor {

	var sensors []domain.GenericSensor

	// Gateway connectivity
	sensors = append(sensors, domain.GenericSensor{
		Device:         gatewayDevice,
		Id:             GatewayConnectivitySensorID(gw.ID),
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connectivity",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(gatewayDevice.Id, SENSOR_ID_CONNECTIVITY),
	})

	// Gateway firmware state
	sensors = append(sensors, domain.GenericSensor{
		Device:           gatewayDevice,
		Id:               GatewayTopicID(gw.ID) + "_" + SENSOR_ID_UP_TO_DATE,
		SensorType:       SENSOR_TYPE_BINARY,
		Name:             "Firmware update",
		DeviceClass:      DEVICE_CLASS_UPDATE,
		EntityCategory:   ENTITY_CLASS_DIAGNOSTIC,
		EnabledByDefault: optionalBool(false),
		UniqueId:         uniqueId(gatewayDevice.Id, SENSOR_ID_UP_TO_DATE),
	})

	return sensors
}

// EntryComponents builds every discovery component of one entry. Each device
// chains to the gateway its device URL names, scenes chain to the bridge.
func EntryComponents(bridgeDevice domain.Device, server overkiz.Server, gateways []overkiz.Gateway,
	buckets map[domain.Platform][]overkiz.Device, scenarios []overkiz.Scenario) ([]domain.GenericSensor, []domain.GenericDeviceEntity, []domain.GenericScene) {

	var sensors []domain.GenericSensor
	gatewayDevices := make([]domain.Device, len(gateways))
	for i, gw := range gateways {
		gatewayDevices[i] = GatewayDevice(bridgeDevice, gw, server)
		sensors = append(sensors, GatewaySensors(gatewayDevices[i], gw)...)
	}

	owner := func(d overkiz.Device) domain.Device {
		for i, gw := range gateways {
			if strings.Contains(d.DeviceURL, gw.ID) {
				return gatewayDevices[i]
			}
		}
		if len(gatewayDevices) > 0 {
			return gatewayDevices[0]
		}
		return bridgeDevice
	}

	var entities []domain.GenericDeviceEntity
	for _, platform := range domain.Platforms(buckets) {
		for _, d := range buckets[platform] {
			entities = append(entities, DeviceEntity(owner(d), server, d, platform))
		}
	}

	return sensors, entities, SceneComponents(bridgeDevice, scenarios)
}

// PlatformEntities builds the discovery entities of every platform bucket in
// stable order.
func PlatformEntities(gatewayDevice domain.Device, server overkiz.Server, buckets map[domain.Platform][]overkiz.Device) []domain.GenericDeviceEntity {

	var entities []domain.GenericDeviceEntity

	for _, platform := range domain.Platforms(buckets) {
		for _, d := range buckets[platform] {
			entities = append(entities, DeviceEntity(gatewayDevice, server, d, platform))
		}
	}

	return entities
}

func DeviceEntity(gatewayDevice domain.Device, server overkiz.Server, d overkiz.Device, platform domain.Platform) domain.GenericDeviceEntity {
	device := HubDevice(gatewayDevice, d, server)
	return domain.GenericDeviceEntity{
		Device:      device,
		Id:          device.Id,
		Platform:    platform,
		Name:        d.Label,
		UniqueId:    uniqueId(device.Id, string(platform)),
		DeviceURL:   d.DeviceURL,
		DeviceClass: entityDeviceClass(d, platform),
		Stateless:   !d.HasStates(),
	}
}

// SceneComponents builds one scene per stored scenario, attached to the
// bridge device.
func SceneComponents(bridgeDevice domain.Device, scenarios []overkiz.Scenario) []domain.GenericScene {

	var scenes []domain.GenericScene

	for _, sc := range scenarios {
		scenes = append(scenes, domain.GenericScene{
			Device:   bridgeDevice,
			Id:       sc.OID,
			Name:     sc.Label,
			UniqueId: uniqueId(bridgeDevice.Id, "scene_"+sc.OID),
			Icon:     "mdi:play",
		})
	}

	return scenes
}

var coverDeviceClass = map[overkiz.UIClass]string{
	overkiz.UIClassAdjustableSlatsRollerShutter: "shutter",
	overkiz.UIClassAwning:                       "awning",
	overkiz.UIClassCurtain:                      "curtain",
	overkiz.UIClassExteriorScreen:               "shade",
	overkiz.UIClassExteriorVenetianBlind:        "blind",
	overkiz.UIClassGarageDoor:                   "garage",
	overkiz.UIClassGate:                         "gate",
	overkiz.UIClassPergola:                      "awning",
	overkiz.UIClassRollerShutter:                "shutter",
	overkiz.UIClassScreen:                       "shade",
	overkiz.UIClassShutter:                      "shutter",
	overkiz.UIClassVenetianBlind:                "blind",
	overkiz.UIClassWindow:                       "window",
}

func entityDeviceClass(d overkiz.Device, platform domain.Platform) string {
	if platform == domain.PlatformCover {
		return coverDeviceClass[d.UIClass]
	}
	return ""
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

func optionalBool(value bool) *bool {
	return &value
}
