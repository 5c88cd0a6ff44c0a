package overkiz

import "fmt"

// Server describes an Overkiz API endpoint and the vendor operating it.
type Server struct {
	Name             string
	Endpoint         string
	Manufacturer     string
	ConfigurationURL string
}

// known cloud server keys
const (
	ServerAtlanticCozytouch = "atlantic_cozytouch"
	ServerBrandt            = "brandt"
	ServerFlexom            = "flexom"
	ServerHexaomHexaconnect = "hexaom_hexaconnect"
	ServerHiKumoAsia        = "hi_kumo_asia"
	ServerHiKumoEurope      = "hi_kumo_europe"
	ServerHiKumoOceania     = "hi_kumo_oceania"
	ServerNexity            = "nexity"
	ServerRexel             = "rexel"
	ServerSomfyAmerica      = "somfy_america"
	ServerSomfyEurope       = "somfy_europe"
	ServerSomfyOceania      = "somfy_oceania"
	ServerUbiwizz           = "ubiwizz"
)

// SupportedServers maps server keys to the cloud endpoints this library can
// talk to. Endpoints carry no trailing slash, request paths start with one.
var SupportedServers = map[string]Server{
	ServerAtlanticCozytouch: {
		Name:         "Atlantic Cozytouch",
		Endpoint:     "https://ha110-1.overkiz.com/enduser-mobile-web/enduserAPI",
		Manufacturer: "Atlantic",
	},
	ServerBrandt: {
		Name:         "Brandt Smart Control",
		Endpoint:     "https://ha3-1.overkiz.com/enduser-mobile-web/enduserAPI",
		Manufacturer: "Brandt",
	},
	ServerFlexom: {
		Name:         "Flexom",
		Endpoint:     "https://ha108-1.overkiz.com/enduser-mobile-web/enduserAPI",
		Manufacturer: "Bouygues",
	},
	ServerHexaomHexaconnect: {
		Name:         "Hexaom HexaConnect",
		Endpoint:     "https://ha5-1.overkiz.com/enduser-mobile-web/enduserAPI",
		Manufacturer: "Hexaom",
	},
	ServerHiKumoAsia: {
		Name:         "Hitachi Hi Kumo (Asia)",
		Endpoint:     "https://ha203-1.overkiz.com/enduser-mobile-web/enduserAPI",
		Manufacturer: "Hitachi",
	},
	ServerHiKumoEurope: {
		Name:         "Hitachi Hi Kumo (Europe)",
		Endpoint:     "https://ha117-1.overkiz.com/enduser-mobile-web/enduserAPI",
		Manufacturer: "Hitachi",
	},
	ServerHiKumoOceania: {
		Name:         "Hitachi Hi Kumo (Oceania)",
		Endpoint:     "https://ha203-1.overkiz.com/enduser-mobile-web/enduserAPI",
		Manufacturer: "Hitachi",
	},
	ServerNexity: {
		Name:         "Nexity Eugénie",
		Endpoint:     "https://ha106-1.overkiz.com/enduser-mobile-web/enduserAPI",
		Manufacturer: "Nexity",
	},
	ServerRexel: {
		Name:             "Rexel Energeasy Connect",
		Endpoint:         "https://ha112-1.overkiz.com/enduser-mobile-web/enduserAPI",
		Manufacturer:     "Rexel",
		ConfigurationURL: "https://utils.energeasyconnect.com/energeasy/web/",
	},
	ServerSomfyAmerica: {
		Name:         "Somfy (North America)",
		Endpoint:     "https://ha401-1.overkiz.com/enduser-mobile-web/enduserAPI",
		Manufacturer: "Somfy",
	},
	ServerSomfyEurope: {
		Name:             "Somfy (Europe)",
		Endpoint:         "https://ha101-1.overkiz.com/enduser-mobile-web/enduserAPI",
		Manufacturer:     "Somfy",
		ConfigurationURL: "https://www.tahomalink.com",
	},
	ServerSomfyOceania: {
		Name:         "Somfy (Oceania)",
		Endpoint:     "https://ha201-1.overkiz.com/enduser-mobile-web/enduserAPI",
		Manufacturer: "Somfy",
	},
	ServerUbiwizz: {
		Name:         "Ubiwizz",
		Endpoint:     "https://ha129-1.overkiz.com/enduser-mobile-web/enduserAPI",
		Manufacturer: "Decelect",
	},
}

// ServersWithLocalAPI lists the server keys whose gateways expose the
// developer mode local API.
var ServersWithLocalAPI = []string{ServerSomfyEurope}

// NewLocalServer returns a Server for a gateway reachable on the LAN through
// the developer mode API. host may carry a port, the gateway listens on 8443
// by default ("gateway-1234-5678-9012.local:8443").
func NewLocalServer(host string) Server {
	return Server{
		Name:         "Somfy TaHoma Developer Mode",
		Endpoint:     fmt.Sprintf("https://%s/enduser-mobile-web/1/enduserAPI", host),
		Manufacturer: "Somfy",
	}
}

// HasLocalAPI reports whether gateways bound to the given server key can be
// switched to the local API.
func HasLocalAPI(serverKey string) bool {
	for _, k := range ServersWithLocalAPI {
		if k == serverKey {
			return true
		}
	}
	return false
}
