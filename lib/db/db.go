package db

import (
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Logical Tables
// --------------------------------------------------------------------------

// Table is one of the fixed key-value namespaces exposed by the store.
// Each table maps 1:1 to a physical table of the same name.
type Table string

const (
	TablePwmMeta      Table = "PWM_META"      // Reserved metadata (heartbeat, health probe)
	TablePwmResponses Table = "PWM_RESPONSES" // Stored challenge/response answers
	TablePwmOTP       Table = "PWM_OTP"       // One-time-password secrets
	TablePwmTokens    Table = "PWM_TOKENS"    // Issued tokens
	TablePwmIntruder  Table = "PWM_INTRUDER"  // Intruder lockout records
	TablePwmAudit     Table = "PWM_AUDIT"     // Audit events
)

// Tables returns every logical table in declaration order.
// The returned slice is a copy and may be modified by the caller.
func Tables() []Table {
	return []Table{
		TablePwmMeta,
		TablePwmResponses,
		TablePwmOTP,
		TablePwmTokens,
		TablePwmIntruder,
		TablePwmAudit,
	}
}

// String returns the physical table name.
func (t Table) String() string {
	return string(t)
}

// Valid reports whether t is a member of the logical table set.
func (t Table) Valid() bool {
	for _, known := range Tables() {
		if t == known {
			return true
		}
	}
	return false
}

// ParseTable resolves a table name (case-insensitive) to a logical table.
func ParseTable(name string) (Table, error) {
	t := Table(strings.ToUpper(strings.TrimSpace(name)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown table %q", name)
	}
	return t, nil
}

// --------------------------------------------------------------------------
// Row Layout
// --------------------------------------------------------------------------

const (
	// KeyColumn is the primary key column of every table.
	KeyColumn = "id"
	// ValueColumn holds the stored value.
	ValueColumn = "value"
	// KeyLength bounds the key column; shared with schema creation.
	KeyLength = 128
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

// DataStorageMethod names a storage capability a service can declare.
type DataStorageMethod string

const (
	StorageMethodDB DataStorageMethod = "DB"
)

// DatabaseInfo holds debug properties of the live connection.
type DatabaseInfo struct {
	Dialect        string `json:"dialect"`
	DriverName     string `json:"driver_name"`
	DriverVersion  string `json:"driver_version"`
	ProductName    string `json:"product_name"`
	ProductVersion string `json:"product_version"`
	Liveness       string `json:"liveness"`
}

// String returns a single line rendering suitable for logging.
func (i DatabaseInfo) String() string {
	return fmt.Sprintf("dialect=%s, driver=%s@%s, product=%s, version=%s, liveness=%s",
		i.Dialect, i.DriverName, i.DriverVersion, i.ProductName, i.ProductVersion, i.Liveness)
}
