package vedirect

import "fmt"

// ProductID is the decoded PID field.
type ProductID uint32

func (p ProductID) String() string { return fmt.Sprintf("0x%04X", uint32(p)) }

func (p ProductID) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Product describes a known Victron device.
type Product struct {
	ID    ProductID   `json:"id"`
	Name  string      `json:"name"`
	Class DeviceClass `json:"class"`
}

var products = map[ProductID]Product{}

func addProducts(class DeviceClass, list map[ProductID]string) {
	for id, name := range list {
		products[id] = Product{ID: id, Name: name, Class: class}
	}
}

func init() {
	addProducts(ClassBatteryMonitor, map[ProductID]string{
		0x0203: "BMV-700",
		0x0204: "BMV-702",
		0x0205: "BMV-700H",
		0xA381: "BMV-712 Smart",
		0xA382: "BMV-710H Smart",
		0xA383: "BMV-712 Smart Rev2",
		0xA389: "SmartShunt 500A/50mV",
		0xA38A: "SmartShunt 1000A/50mV",
		0xA38B: "SmartShunt 2000A/50mV",
	})
	addProducts(ClassSolarCharger, map[ProductID]string{
		0x0300: "BlueSolar MPPT 70|15",
		0xA040: "BlueSolar MPPT 75|50",
		0xA041: "BlueSolar MPPT 150|35",
		0xA042: "BlueSolar MPPT 75|15",
		0xA043: "BlueSolar MPPT 100|15",
		0xA044: "BlueSolar MPPT 100|30",
		0xA045: "BlueSolar MPPT 100|50",
		0xA046: "BlueSolar MPPT 150|70",
		0xA047: "BlueSolar MPPT 150|100",
		0xA049: "BlueSolar MPPT 100|50 rev2",
		0xA04A: "BlueSolar MPPT 100|30 rev2",
		0xA04B: "BlueSolar MPPT 150|35 rev2",
		0xA04C: "BlueSolar MPPT 75|10",
		0xA04D: "BlueSolar MPPT 150|45",
		0xA04E: "BlueSolar MPPT 150|60",
		0xA04F: "BlueSolar MPPT 150|85",
		0xA050: "SmartSolar MPPT 250|100",
		0xA051: "SmartSolar MPPT 150|100",
		0xA052: "SmartSolar MPPT 150|85",
		0xA053: "SmartSolar MPPT 75|15",
		0xA054: "SmartSolar MPPT 75|10",
		0xA055: "SmartSolar MPPT 100|15",
		0xA056: "SmartSolar MPPT 100|30",
		0xA057: "SmartSolar MPPT 100|50",
		0xA058: "SmartSolar MPPT 150|35",
	})
	addProducts(ClassInverter, map[ProductID]string{
		0xA201: "Phoenix Inverter 12V 250VA 230V",
		0xA202: "Phoenix Inverter 24V 250VA 230V",
		0xA204: "Phoenix Inverter 48V 250VA 230V",
		0xA211: "Phoenix Inverter 12V 375VA 230V",
		0xA212: "Phoenix Inverter 24V 375VA 230V",
		0xA214: "Phoenix Inverter 48V 375VA 230V",
		0xA221: "Phoenix Inverter 12V 500VA 230V",
		0xA222: "Phoenix Inverter 24V 500VA 230V",
		0xA224: "Phoenix Inverter 48V 500VA 230V",
	})
}

// LookupProduct returns the product registered for id.
func LookupProduct(id ProductID) (Product, bool) {
	p, ok := products[id]
	return p, ok
}

// classHints maps labels that only one device class sends. Used when a
// frame carries no PID.
var classHints = map[string]DeviceClass{
	"AC_OUT_V": ClassInverter,
	"AC_OUT_I": ClassInverter,
	"AC_OUT_S": ClassInverter,
	"MODE":     ClassInverter,
	"WARN":     ClassInverter,

	"VPV":  ClassSolarCharger,
	"PPV":  ClassSolarCharger,
	"MPPT": ClassSolarCharger,
	"H19":  ClassSolarCharger,
	"H20":  ClassSolarCharger,
	"H21":  ClassSolarCharger,
	"H22":  ClassSolarCharger,
	"H23":  ClassSolarCharger,
	"HSDS": ClassSolarCharger,

	"SOC": ClassBatteryMonitor,
	"CE":  ClassBatteryMonitor,
	"TTG": ClassBatteryMonitor,
	"VS":  ClassBatteryMonitor,
	"VM":  ClassBatteryMonitor,
	"DM":  ClassBatteryMonitor,
	"BMV": ClassBatteryMonitor,
	"H1":  ClassBatteryMonitor,
	"H2":  ClassBatteryMonitor,
	"H3":  ClassBatteryMonitor,
	"H4":  ClassBatteryMonitor,
	"H5":  ClassBatteryMonitor,
	"H6":  ClassBatteryMonitor,
	"H7":  ClassBatteryMonitor,
	"H8":  ClassBatteryMonitor,
	"H9":  ClassBatteryMonitor,
	"H10": ClassBatteryMonitor,
	"H17": ClassBatteryMonitor,
	"H18": ClassBatteryMonitor,
}

// classify picks the record variant for a frame. Inverter labels win over
// solar labels, which win over battery monitor labels.
func classify(fields []Field) (DeviceClass, Product) {
	for _, f := range fields {
		if f.Label != "PID" {
			continue
		}
		if !f.OK() {
			return ClassGeneric, Product{}
		}
		p, ok := LookupProduct(ProductID(f.Code))
		if !ok {
			return ClassGeneric, Product{ID: ProductID(f.Code)}
		}
		return p.Class, p
	}

	class := ClassGeneric
	for _, f := range fields {
		c, ok := classHints[f.Label]
		if ok && c > class {
			class = c
		}
	}
	return class, Product{}
}
