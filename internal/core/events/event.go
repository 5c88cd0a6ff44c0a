package events

import (
	"regexp"

	"overkiz2mqtt/internal/core/domain"
	"overkiz2mqtt/pkg/overkiz"
)

var topicIdPattern = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// DeviceTopicID derives the stable topic id of a device from its device URL,
// "io://1234-5678-9012/3#2" becomes "io_1234-5678-9012_3_2". State topics and
// discovery configs must agree on it.
func DeviceTopicID(deviceURL string) string {
	return topicIdPattern.ReplaceAllString(deviceURL, "_")
}

// GatewayTopicID derives the topic id of a gateway from its id.
func GatewayTopicID(gatewayID string) string {
	return "gateway_" + topicIdPattern.ReplaceAllString(gatewayID, "_")
}

// GatewayConnectivitySensorID is the id of the connectivity sensor of a
// gateway. GatewayStateUpdateEvent and the discovery config both use it.
func GatewayConnectivitySensorID(gatewayID string) string {
	return GatewayTopicID(gatewayID) + "_connectivity"
}

// DeviceUpdateEvents maps one drained hub event onto update events for the
// MQTT actor. Event kinds this bridge does not surface map to nothing.
func DeviceUpdateEvents(ev overkiz.Event) []any {
	switch ev.Name {
	case overkiz.EventDeviceStateChanged:
		if ev.DeviceURL == "" || len(ev.DeviceStates) == 0 {
			return nil
		}
		return []any{domain.DeviceStateUpdateEvent{
			UpdateEventMixIn: domain.UpdateEventMixIn{
				Id: DeviceTopicID(ev.DeviceURL),
			},
			DeviceURL: ev.DeviceURL,
			States:    ev.DeviceStates,
		}}
	case overkiz.EventDeviceAvailable:
		if ev.DeviceURL == "" {
			return nil
		}
		return []any{domain.DeviceAvailabilityUpdateEvent{
			UpdateEventMixIn: domain.UpdateEventMixIn{
				Id: DeviceTopicID(ev.DeviceURL),
			},
			DeviceURL: ev.DeviceURL,
			Available: true,
		}}
	case overkiz.EventDeviceUnavailable, overkiz.EventDeviceRemoved:
		if ev.DeviceURL == "" {
			return nil
		}
		return []any{domain.DeviceAvailabilityUpdateEvent{
			UpdateEventMixIn: domain.UpdateEventMixIn{
				Id: DeviceTopicID(ev.DeviceURL),
			},
			DeviceURL: ev.DeviceURL,
			Available: false,
		}}
	case overkiz.EventGatewayAlive:
		return []any{domain.GatewayStateUpdateEvent{
			UpdateEventMixIn: domain.UpdateEventMixIn{
				Id: GatewayConnectivitySensorID(ev.GatewayID),
			},
			GatewayId: ev.GatewayID,
			Alive:     true,
		}}
	case overkiz.EventGatewayDown:
		return []any{domain.GatewayStateUpdateEvent{
			UpdateEventMixIn: domain.UpdateEventMixIn{
				Id: GatewayConnectivitySensorID(ev.GatewayID),
			},
			GatewayId: ev.GatewayID,
			Alive:     false,
		}}
	}
	return nil
}

// DeviceSnapshotUpdateEvents publishes the full known state of one device,
// used right after setup and when a device is created or refetched.
func DeviceSnapshotUpdateEvents(d overkiz.Device) []any {
	events := []any{domain.DeviceAvailabilityUpdateEvent{
		UpdateEventMixIn: domain.UpdateEventMixIn{
			Id: DeviceTopicID(d.DeviceURL),
		},
		DeviceURL: d.DeviceURL,
		Available: d.Available,
	}}
	if d.HasStates() {
		events = append(events, domain.DeviceStateUpdateEvent{
			UpdateEventMixIn: domain.UpdateEventMixIn{
				Id: DeviceTopicID(d.DeviceURL),
			},
			DeviceURL: d.DeviceURL,
			States:    d.States,
		})
	}
	return events
}

// GatewaySnapshotUpdateEvents publishes the connectivity of one gateway.
func GatewaySnapshotUpdateEvents(gw overkiz.Gateway) []any {
	return []any{domain.GatewayStateUpdateEvent{
		UpdateEventMixIn: domain.UpdateEventMixIn{
			Id: GatewayConnectivitySensorID(gw.ID),
		},
		GatewayId: gw.ID,
		Alive:     gw.Connectivity.Status == "OK",
	}}
}
