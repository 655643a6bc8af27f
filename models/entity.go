// Package models defines the core data structures shared across all layers of
// the SNMP worker. These types represent the canonical in-memory form of
// everything discovered from the backend and everything collected from
// devices; every other package depends on this package and nothing here
// depends on any other internal package.
package models

// Entity is a single monitored device as discovered from the backend.
// It is immutable for the lifetime of one job invocation.
type Entity struct {
	// EntityID identifies the device within AccountID.
	EntityID int64

	// AccountID scopes EntityID within the backend's multi-tenant model.
	AccountID int64

	// IPv4 is the device's management address.
	IPv4 string

	// Credential is the resolved credential material for this entity's
	// SNMP protocol binding.
	Credential Credential

	// Sensors is the ordered list of sensors configured for this entity.
	Sensors []Sensor
}

// CredentialVersion distinguishes the three supported SNMP credential shapes.
type CredentialVersion string

const (
	CredentialV1 CredentialVersion = "snmpv1"
	CredentialV2 CredentialVersion = "snmpv2"
	CredentialV3 CredentialVersion = "snmpv3"
)

// Credential carries the SNMP authentication material for one entity.
// Only the fields relevant to Version are meaningful.
type Credential struct {
	Version CredentialVersion

	// Community is used for CredentialV1 and CredentialV2.
	Community string

	// The remaining fields are used for CredentialV3 only.
	Username      string
	SecurityLevel string

	AuthProtocol   string
	AuthPassphrase string

	PrivacyProtocol   string
	PrivacyPassphrase string
}

// FetchMethod selects the SNMP operation used to retrieve an OID.
type FetchMethod string

const (
	FetchGet  FetchMethod = "get"
	FetchWalk FetchMethod = "walk"
)

// OIDSpec names one SNMP object identifier and how to retrieve it.
type OIDSpec struct {
	OID    string
	Method FetchMethod
}

// Sensor describes one measurement to take from an entity at a fixed
// interval: which OIDs to fetch, how to combine them into a number, and
// where to file the result.
type Sensor struct {
	SensorID int64

	// IntervalSeconds is the polling period; always a positive whole number
	// of seconds.
	IntervalSeconds int

	// Expression is evaluated over $1..$N, one variable per entry in OIDs.
	Expression string

	// OutputPathTemplate expands into the dotted time-series key for each
	// emitted sample.
	OutputPathTemplate string

	OIDs []OIDSpec
}
