// Package classify infers a device category from scan metadata.
package classify

import "strings"

// Device categories returned by Classify.
const (
	TypeRouter  = "router"
	TypeSwitch  = "switch"
	TypeAP      = "ap"
	TypePrinter = "printer"
	TypePhone   = "phone"
	TypeTablet  = "tablet"
	TypeTV      = "tv"
	TypeCamera  = "camera"
	TypeIoT     = "iot"
	TypeNAS     = "nas"
	TypeGaming  = "gaming"
	TypeServer  = "server"
	TypeDesktop = "desktop"
	TypeLaptop  = "laptop"
	TypeOther   = "other"
)

var routerKeywords = []string{
	"router", "gateway", "mikrotik", "ubiquiti", "netgear",
	"tp-link", "tplink", "asus", "linksys", "dlink", "d-link",
	"cisco", "zyxel", "huawei", "openwrt", "pfsense", "fritz",
}

var apSubKeywords = []string{"unifi", "ap", "access point", "uap"}
var switchSubKeywords = []string{"switch", "gs3", "gs1"}

var apKeywords = []string{"access point", "unifi", "aruba", "ruckus", "meraki"}
var switchKeywords = []string{"switch", "netgear gs", "prosafe"}

var printerKeywords = []string{
	"printer", "print", "epson", "canon", "brother",
	"hp inc", "hewlett", "lexmark", "xerox", "kyocera",
	"ricoh", "sharp", "konica",
}

var phoneKeywords = []string{
	"iphone", "samsung galaxy", "xiaomi", "huawei",
	"oneplus", "pixel", "android", "oppo", "vivo",
	"realme", "motorola", "phone",
}

var tabletKeywords = []string{"ipad", "tablet", "galaxy tab", "fire hd", "surface"}

var tvKeywords = []string{
	"samsung elec", "lg elec", "sony", "roku",
	"fire tv", "chromecast", "apple tv", "nvidia shield",
	"tv", "vizio", "hisense", "tcl",
}

var cameraKeywords = []string{
	"camera", "cam", "hikvision", "dahua", "reolink",
	"ring", "nest", "arlo", "wyze", "ezviz", "axis",
}

var iotKeywords = []string{
	"espressif", "esp32", "esp8266", "tuya", "sonoff",
	"shelly", "tasmota", "zigbee", "alexa", "echo",
	"google home", "homepod", "smartthings", "hue",
	"nest", "ring", "iot",
}

var nasKeywords = []string{
	"synology", "qnap", "nas", "drobo", "buffalo",
	"western digital", "wd my",
}

var gamingKeywords = []string{"playstation", "xbox", "nintendo", "steam deck", "gaming"}

var serverKeywords = []string{"server", "proxmox", "vmware", "dell emc", "supermicro", "lenovo server"}

var desktopKeywords = []string{"intel", "amd", "dell", "lenovo", "hp ", "acer", "msi"}

var appleKeywords = []string{"apple", "macbook", "imac", "mac mini"}

var sbcKeywords = []string{"raspberry", "raspberrypi"}

// Classify maps a vendor brand, hostname and MAC to a device category.
// Rules form a precedence chain and the first match wins: vendors that make
// several product classes (a router vendor that also sells switches) are
// disambiguated by the nested sub-keyword checks.
func Classify(brand, hostname, mac string) string {
	combined := strings.ToLower(brand) + " " + strings.ToLower(hostname)

	if containsAny(combined, routerKeywords) {
		if containsAny(combined, apSubKeywords) {
			return TypeAP
		}
		if containsAny(combined, switchSubKeywords) {
			return TypeSwitch
		}
		return TypeRouter
	}

	switch {
	case containsAny(combined, apKeywords):
		return TypeAP
	case containsAny(combined, switchKeywords):
		return TypeSwitch
	case containsAny(combined, printerKeywords):
		return TypePrinter
	case containsAny(combined, phoneKeywords):
		return TypePhone
	case containsAny(combined, tabletKeywords):
		return TypeTablet
	case containsAny(combined, tvKeywords):
		return TypeTV
	case containsAny(combined, cameraKeywords):
		return TypeCamera
	case containsAny(combined, iotKeywords):
		return TypeIoT
	case containsAny(combined, nasKeywords):
		return TypeNAS
	case containsAny(combined, gamingKeywords):
		return TypeGaming
	case containsAny(combined, serverKeywords):
		return TypeServer
	case containsAny(combined, desktopKeywords):
		return TypeDesktop
	case containsAny(combined, appleKeywords):
		// Apple device of unknown shape, desktop is the safest bucket.
		return TypeDesktop
	case containsAny(combined, sbcKeywords):
		return TypeServer
	}

	return TypeOther
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
