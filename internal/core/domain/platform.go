package domain

import (
	"slices"

	"overkiz2mqtt/pkg/overkiz"
)

// Platform is the host platform bucket an exposed device lands in.
type Platform string

const (
	PlatformAlarmControlPanel Platform = "alarm_control_panel"
	PlatformBinarySensor      Platform = "binary_sensor"
	PlatformButton            Platform = "button"
	PlatformClimate           Platform = "climate"
	PlatformCover             Platform = "cover"
	PlatformLight             Platform = "light"
	PlatformLock              Platform = "lock"
	PlatformNumber            Platform = "number"
	PlatformScene             Platform = "scene"
	PlatformSelect            Platform = "select"
	PlatformSensor            Platform = "sensor"
	PlatformSiren             Platform = "siren"
	PlatformSwitch            Platform = "switch"
	PlatformWaterHeater       Platform = "water_heater"
)

// Widget mappings are checked before ui class ones. SirenStatus is the
// canonical reason: its ui class is Siren, but the widget is read only and
// belongs on a sensor.
var widgetPlatform = map[overkiz.UIWidget]Platform{
	overkiz.UIWidgetAlarmPanelController:                PlatformAlarmControlPanel,
	overkiz.UIWidgetAtlanticElectricalHeater:            PlatformClimate,
	overkiz.UIWidgetAtlanticElectricalHeaterWithAdjTemp: PlatformClimate,
	overkiz.UIWidgetAtlanticElectricalTowelDryer:        PlatformClimate,
	overkiz.UIWidgetAtlanticHeatRecoveryVentilation:     PlatformClimate,
	overkiz.UIWidgetAtlanticPassAPCDHW:                  PlatformWaterHeater,
	overkiz.UIWidgetAtlanticPassAPCHeatingZone:          PlatformClimate,
	overkiz.UIWidgetAtlanticPassAPCZoneControl:          PlatformClimate,
	overkiz.UIWidgetDomesticHotWaterProduction:          PlatformWaterHeater,
	overkiz.UIWidgetDomesticHotWaterTank:                PlatformSwitch,
	overkiz.UIWidgetHitachiAirToAirHeatPump:             PlatformClimate,
	overkiz.UIWidgetHitachiAirToWaterHeatingZone:        PlatformClimate,
	overkiz.UIWidgetHitachiDHW:                          PlatformWaterHeater,
	overkiz.UIWidgetMyFoxSecurityCamera:                 PlatformCover,
	overkiz.UIWidgetRTSGeneric:                          PlatformCover,
	overkiz.UIWidgetSirenStatus:                         PlatformSensor,
	overkiz.UIWidgetSomfyThermostat:                     PlatformClimate,
	overkiz.UIWidgetStatefulAlarmController:             PlatformAlarmControlPanel,
	overkiz.UIWidgetStatelessAlarmController:            PlatformAlarmControlPanel,
	overkiz.UIWidgetStatelessExteriorHeating:            PlatformClimate,
	overkiz.UIWidgetTSKAlarmController:                  PlatformAlarmControlPanel,
}

var uiClassPlatform = map[overkiz.UIClass]Platform{
	overkiz.UIClassAdjustableSlatsRollerShutter: PlatformCover,
	overkiz.UIClassAwning:                       PlatformCover,
	overkiz.UIClassCurtain:                      PlatformCover,
	overkiz.UIClassDoorLock:                     PlatformLock,
	overkiz.UIClassExteriorScreen:               PlatformCover,
	overkiz.UIClassExteriorVenetianBlind:        PlatformCover,
	overkiz.UIClassGarageDoor:                   PlatformCover,
	overkiz.UIClassGate:                         PlatformCover,
	overkiz.UIClassLight:                        PlatformLight,
	overkiz.UIClassOnOff:                        PlatformSwitch,
	overkiz.UIClassPergola:                      PlatformCover,
	overkiz.UIClassRollerShutter:                PlatformCover,
	overkiz.UIClassScreen:                       PlatformCover,
	overkiz.UIClassShutter:                      PlatformCover,
	overkiz.UIClassSiren:                        PlatformSiren,
	overkiz.UIClassVenetianBlind:                PlatformCover,
	overkiz.UIClassWindow:                       PlatformCover,
}

// PlatformFor classifies a device, widget first, ui class as the fallback.
// ok is false for devices this bridge does not expose.
func PlatformFor(device overkiz.Device) (Platform, bool) {
	if p, ok := widgetPlatform[device.Widget]; ok {
		return p, true
	}
	if p, ok := uiClassPlatform[device.UIClass]; ok {
		return p, true
	}
	return "", false
}

// BucketByPlatform groups devices by platform, dropping the unmapped ones.
// Buckets keep the input order.
func BucketByPlatform(devices []overkiz.Device) map[Platform][]overkiz.Device {
	buckets := make(map[Platform][]overkiz.Device)
	for _, d := range devices {
		p, ok := PlatformFor(d)
		if !ok {
			continue
		}
		buckets[p] = append(buckets[p], d)
	}
	return buckets
}

// Platforms lists the populated buckets in stable order.
func Platforms(buckets map[Platform][]overkiz.Device) []Platform {
	out := make([]Platform, 0, len(buckets))
	for p := range buckets {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}
