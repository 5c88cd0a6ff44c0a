package domain

import (
	"fmt"

	"overkiz2mqtt/pkg/overkiz"
)

type UpdateEventMixIn struct {
	Id string
}

// UpdateEvent is a state change pushed to the MQTT actor through the event
// stream. TopicId is the sanitized id the state topic is built from.
type UpdateEvent interface {
	UpdateEvent() string
	TopicId() string
}

func (e UpdateEventMixIn) UpdateEvent() string {
	return fmt.Sprintf("%T", e)
}

func (e UpdateEventMixIn) TopicId() string {
	return e.Id
}

type DeviceStateUpdateEvent struct {
	UpdateEventMixIn
	DeviceURL string
	States    []overkiz.DeviceState
}

type DeviceAvailabilityUpdateEvent struct {
	UpdateEventMixIn
	DeviceURL string
	Available bool
}

type GatewayStateUpdateEvent struct {
	UpdateEventMixIn
	GatewayId string
	Alive     bool
}

type BridgeStateUpdateEvent struct {
	UpdateEventMixIn
	Value bool
}
