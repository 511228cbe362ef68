package models

import "time"

// DeviceType is the therapy device family an account was registered for.
type DeviceType string

const (
	DeviceTypeCPAP  DeviceType = "CPAP"
	DeviceTypeAPAP  DeviceType = "APAP"
	DeviceTypeBiPAP DeviceType = "BiPAP"
)

// Valid reports whether t is one of the supported device families.
func (t DeviceType) Valid() bool {
	switch t {
	case DeviceTypeCPAP, DeviceTypeAPAP, DeviceTypeBiPAP:
		return true
	}
	return false
}

// Account is a registered device account, keyed by its serial number.
type Account struct {
	SerialNumber     string     `json:"serial_number"`
	ModelNumber      string     `json:"model_number"`
	DeviceType       DeviceType `json:"device_type"`
	ContactNumber    string     `json:"contact_number"`
	CredentialSecret string     `json:"-"`
	RegisteredAt     time.Time  `json:"registration_date"`
}
