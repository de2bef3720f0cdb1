package db

import (
	"fmt"
	"strings"
)

// Config holds the connection parameters of a store.
// It is supplied once at construction and never modified afterwards.
type Config struct {
	// Enabled turns the store on. A disabled store rejects every operation.
	Enabled bool
	// Driver is the dialect identifier of a registered driver (e.g. "sqlite", "postgres").
	Driver string
	// ConnectionString is passed to the driver factory unchanged.
	ConnectionString string
	// Username and Password are optional credentials.
	Username string
	Password string
	// ColumnTypeKey and ColumnTypeValue override the dialect defaults for the key and value columns.
	ColumnTypeKey   string
	ColumnTypeValue string
	// TraceLogging enables per operation debug output.
	TraceLogging bool
	// InstanceID namespaces the per-process heartbeat key.
	InstanceID string
}

// IsConfigured reports whether enough parameters are present to attempt a connection.
func (c *Config) IsConfigured() bool {
	return c.Enabled && c.Driver != "" && c.ConnectionString != ""
}

// String returns a formatted string representation of the configuration.
// The password is never printed.
func (c *Config) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Database")
	addField("Enabled", fmt.Sprintf("%t", c.Enabled))
	addField("Driver", c.Driver)
	addField("Connection String", c.ConnectionString)
	addField("Username", c.Username)
	if c.Password != "" {
		addField("Password", "********")
	} else {
		addField("Password", "")
	}

	addSection("Schema")
	addField("Key Column Type", c.ColumnTypeKey)
	addField("Value Column Type", c.ColumnTypeValue)
	addField("Key Length", fmt.Sprintf("%d", KeyLength))

	addSection("Instance")
	addField("Instance ID", c.InstanceID)
	addField("Trace Logging", fmt.Sprintf("%t", c.TraceLogging))

	return sb.String()
}
