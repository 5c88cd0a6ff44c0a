package domain

// Device is the device registry block shared by every entity config of one
// physical device. ViaDevice chains hub devices to their gateway and the
// gateway to the bridge.
type Device struct {
	Id               string
	Name             string
	Version          string
	Model            string
	Manufacturer     string
	ViaDevice        string
	ConfigurationURL string
}

type GenericSensor struct {
	Device            Device
	Id                string
	SensorType        string // sensor, binary_sensor
	Name              string
	UniqueId          string
	UnitOfMeasurement string
	StateClass        string
	DeviceClass       string
	EntityCategory    string // diagnostic, config, nil
	EnabledByDefault  *bool
	Icon              string
}

// GenericDeviceEntity is a platform mapped hub device. Stateless marks
// assumed state devices whose reported position can never be confirmed.
type GenericDeviceEntity struct {
	Device      Device
	Id          string
	Platform    Platform
	Name        string
	UniqueId    string
	DeviceURL   string
	DeviceClass string
	Icon        string
	Stateless   bool
}

// GenericScene is a scenario stored on the hub, activatable as a whole.
type GenericScene struct {
	Device   Device
	Id       string
	Name     string
	UniqueId string
	Icon     string
}
