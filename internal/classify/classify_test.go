package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		brand    string
		hostname string
		want     string
	}{
		{"router vendor", "TP-Link", "", TypeRouter},
		{"router vendor mikrotik", "MikroTik", "", TypeRouter},
		{"router vendor with ap hostname", "Ubiquiti", "UAP-AC-PRO", TypeAP},
		{"router vendor with switch hostname", "Netgear", "GS308-switch", TypeSwitch},
		{"dedicated ap vendor", "Aruba Networks", "", TypeAP},
		{"printer", "Brother Industries", "", TypePrinter},
		{"phone from hostname", "", "iPhone-Juan", TypePhone},
		{"android phone", "", "android-6ab23f", TypePhone},
		{"tablet", "", "ipad-kitchen", TypeTablet},
		{"smart tv", "Roku Inc", "", TypeTV},
		{"camera", "Hikvision", "", TypeCamera},
		{"iot", "Espressif Inc", "", TypeIoT},
		{"nas", "Synology", "nas1", TypeNAS},
		{"gaming console", "", "playstation-5", TypeGaming},
		{"server", "", "proxmox-node1", TypeServer},
		{"desktop oem", "Dell Inc", "", TypeDesktop},
		{"apple fallback", "Apple Inc", "", TypeDesktop},
		{"raspberry pi", "Raspberry Pi Foundation", "", TypeServer},
		{"unknown", "Mystery Corp", "thing42", TypeOther},
		{"empty", "", "", TypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.brand, tt.hostname, ""))
		})
	}
}

func TestClassifyPrecedence(t *testing.T) {
	// A vendor matching both the router chain and a later rule resolves to
	// the earlier rule.
	assert.Equal(t, TypeRouter, Classify("Cisco Systems", "", ""))

	// Sub-keyword disambiguation only applies inside the router chain.
	assert.Equal(t, TypeSwitch, Classify("", "office-switch", ""))
}
