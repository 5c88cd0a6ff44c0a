package overkiz

// APIType selects how a gateway is reached.
type APIType string

const (
	APITypeCloud APIType = "cloud"
	APITypeLocal APIType = "local"
)

// UIClass is the coarse device category reported by the hub.
type UIClass string

const (
	UIClassAdjustableSlatsRollerShutter UIClass = "AdjustableSlatsRollerShutter"
	UIClassAlarm                        UIClass = "Alarm"
	UIClassAwning                       UIClass = "Awning"
	UIClassContactSensor                UIClass = "ContactSensor"
	UIClassCurtain                      UIClass = "Curtain"
	UIClassDoorLock                     UIClass = "DoorLock"
	UIClassExteriorScreen               UIClass = "ExteriorScreen"
	UIClassExteriorVenetianBlind        UIClass = "ExteriorVenetianBlind"
	UIClassGarageDoor                   UIClass = "GarageDoor"
	UIClassGate                         UIClass = "Gate"
	UIClassHeatingSystem                UIClass = "HeatingSystem"
	UIClassHumiditySensor               UIClass = "HumiditySensor"
	UIClassLight                        UIClass = "Light"
	UIClassLightSensor                  UIClass = "LightSensor"
	UIClassOccupancySensor              UIClass = "OccupancySensor"
	UIClassOnOff                        UIClass = "OnOff"
	UIClassPergola                      UIClass = "Pergola"
	UIClassPod                          UIClass = "Pod"
	UIClassProtocolGateway              UIClass = "ProtocolGateway"
	UIClassRollerShutter                UIClass = "RollerShutter"
	UIClassScreen                       UIClass = "Screen"
	UIClassShutter                      UIClass = "Shutter"
	UIClassSiren                        UIClass = "Siren"
	UIClassSmokeSensor                  UIClass = "SmokeSensor"
	UIClassSwimmingPool                 UIClass = "SwimmingPool"
	UIClassTemperatureSensor            UIClass = "TemperatureSensor"
	UIClassVenetianBlind                UIClass = "VenetianBlind"
	UIClassWindow                       UIClass = "Window"
)

// UIWidget is the concrete widget type of a device, more specific than its
// UIClass.
type UIWidget string

const (
	UIWidgetAlarmPanelController                UIWidget = "AlarmPanelController"
	UIWidgetAtlanticElectricalHeater            UIWidget = "AtlanticElectricalHeater"
	UIWidgetAtlanticElectricalTowelDryer        UIWidget = "AtlanticElectricalTowelDryer"
	UIWidgetAtlanticPassAPCDHW                  UIWidget = "AtlanticPassAPCDHW"
	UIWidgetAtlanticPassAPCHeatingZone          UIWidget = "AtlanticPassAPCHeatingAndCoolingZone"
	UIWidgetAtlanticPassAPCZoneControl          UIWidget = "AtlanticPassAPCZoneControl"
	UIWidgetDomesticHotWaterProduction          UIWidget = "DomesticHotWaterProduction"
	UIWidgetDomesticHotWaterTank                UIWidget = "DomesticHotWaterTank"
	UIWidgetHitachiAirToAirHeatPump             UIWidget = "HitachiAirToAirHeatPump"
	UIWidgetHitachiAirToWaterHeatingZone        UIWidget = "HitachiAirToWaterHeatingZone"
	UIWidgetHitachiDHW                          UIWidget = "HitachiDHW"
	UIWidgetMyFoxSecurityCamera                 UIWidget = "MyFoxSecurityCamera"
	UIWidgetRTSGeneric                          UIWidget = "RTSGeneric"
	UIWidgetSirenStatus                         UIWidget = "SirenStatus"
	UIWidgetSomfyThermostat                     UIWidget = "SomfyThermostat"
	UIWidgetStatefulAlarmController             UIWidget = "StatefulAlarmController"
	UIWidgetStatelessAlarmController            UIWidget = "StatelessAlarmController"
	UIWidgetStatelessExteriorHeating            UIWidget = "StatelessExteriorHeating"
	UIWidgetTSKAlarmController                  UIWidget = "TSKAlarmController"
	UIWidgetAtlanticHeatRecoveryVentilation     UIWidget = "AtlanticHeatRecoveryVentilation"
	UIWidgetAtlanticElectricalHeaterWithAdjTemp UIWidget = "AtlanticElectricalHeaterWithAdjustableTemperatureSetpoint"
)

// GatewayType identifies the hub hardware family.
type GatewayType int

const (
	GatewayTypeVirtualKizbox GatewayType = 0
	GatewayTypeKizboxV1      GatewayType = 2
	GatewayTypeTahoma        GatewayType = 15
	GatewayTypeKizboxMini    GatewayType = 21
	GatewayTypeTahomaV2      GatewayType = 29
	GatewayTypeCozytouch     GatewayType = 32
	GatewayTypeConnexoon     GatewayType = 34
	GatewayTypeTahomaV2RTS   GatewayType = 41
	GatewayTypeConnexoonRTS  GatewayType = 53
	GatewayTypeTahomaSwitch  GatewayType = 77
)

var gatewayTypeLabels = map[GatewayType]string{
	GatewayTypeVirtualKizbox: "Virtual Kizbox",
	GatewayTypeKizboxV1:      "Kizbox V1",
	GatewayTypeTahoma:        "TaHoma",
	GatewayTypeKizboxMini:    "Kizbox Mini",
	GatewayTypeTahomaV2:      "TaHoma V2",
	GatewayTypeCozytouch:     "Cozytouch",
	GatewayTypeConnexoon:     "Connexoon",
	GatewayTypeTahomaV2RTS:   "TaHoma V2 RTS",
	GatewayTypeConnexoonRTS:  "Connexoon RTS",
	GatewayTypeTahomaSwitch:  "TaHoma Switch",
}

// Label returns a human readable name for the gateway type. ok is false for
// hardware this library does not know about.
func (t GatewayType) Label() (string, bool) {
	label, ok := gatewayTypeLabels[t]
	return label, ok
}

// GatewaySubType narrows the hardware family down to a commercial variant.
// Zero means the hub did not report one.
type GatewaySubType int

const (
	GatewaySubTypeTahomaBasic           GatewaySubType = 1
	GatewaySubTypeTahomaBasicPlus       GatewaySubType = 2
	GatewaySubTypeTahomaPremium         GatewaySubType = 3
	GatewaySubTypeSomfyBox              GatewaySubType = 4
	GatewaySubTypeHitachiBox            GatewaySubType = 5
	GatewaySubTypeMondialBox            GatewaySubType = 6
	GatewaySubTypeMarocTelecomBox       GatewaySubType = 7
	GatewaySubTypeTahomaSerenity        GatewaySubType = 8
	GatewaySubTypeTahomaVerisure        GatewaySubType = 9
	GatewaySubTypeTahomaSerenityPremium GatewaySubType = 10
)

var gatewaySubTypeLabels = map[GatewaySubType]string{
	GatewaySubTypeTahomaBasic:           "TaHoma Basic",
	GatewaySubTypeTahomaBasicPlus:       "TaHoma Basic Plus",
	GatewaySubTypeTahomaPremium:         "TaHoma Premium",
	GatewaySubTypeSomfyBox:              "Somfy Box",
	GatewaySubTypeHitachiBox:            "Hitachi Box",
	GatewaySubTypeMondialBox:            "Mondial Box",
	GatewaySubTypeMarocTelecomBox:       "Maroc Telecom Box",
	GatewaySubTypeTahomaSerenity:        "TaHoma Serenity",
	GatewaySubTypeTahomaVerisure:        "TaHoma Verisure",
	GatewaySubTypeTahomaSerenityPremium: "TaHoma Serenity Premium",
}

// Label returns a human readable name for the gateway sub type. ok is false
// when the hub reported no sub type or an unknown one.
func (t GatewaySubType) Label() (string, bool) {
	label, ok := gatewaySubTypeLabels[t]
	return label, ok
}

// EventName identifies the kind of an event returned by FetchEvents.
type EventName string

const (
	EventDeviceAvailable        EventName = "DeviceAvailableEvent"
	EventDeviceCreated          EventName = "DeviceCreatedEvent"
	EventDeviceRemoved          EventName = "DeviceRemovedEvent"
	EventDeviceStateChanged     EventName = "DeviceStateChangedEvent"
	EventDeviceUnavailable      EventName = "DeviceUnavailableEvent"
	EventDeviceUpdated          EventName = "DeviceUpdatedEvent"
	EventExecutionRegistered    EventName = "ExecutionRegisteredEvent"
	EventExecutionStateChanged  EventName = "ExecutionStateChangedEvent"
	EventGatewayAlive           EventName = "GatewayAliveEvent"
	EventGatewayDown            EventName = "GatewayDownEvent"
	EventRefreshAllDevicesState EventName = "RefreshAllDevicesStatesCompletedEvent"
)

// device protocols, as found in the scheme of a device URL
const (
	ProtocolIO              = "io"
	ProtocolRTS             = "rts"
	ProtocolZigbee          = "zigbee"
	ProtocolZWave           = "zwave"
	ProtocolHue             = "hue"
	ProtocolEnocean         = "enocean"
	ProtocolInternal        = "internal"
	ProtocolSomfyThermostat = "somfythermostat"
)
