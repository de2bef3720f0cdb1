// Package health contains the records produced by service health checks.
package health

import (
	"encoding/json"
	"fmt"
)

// Status is the severity of a health record.
type Status uint8

const (
	StatusGood Status = iota
	StatusCaution
	StatusWarn
)

func (s Status) String() string {
	switch s {
	case StatusGood:
		return "GOOD"
	case StatusCaution:
		return "CAUTION"
	case StatusWarn:
		return "WARN"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON serializes the status by name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON parses a status name.
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "GOOD":
		*s = StatusGood
	case "CAUTION":
		*s = StatusCaution
	case "WARN":
		*s = StatusWarn
	default:
		return fmt.Errorf("unknown health status: %s", name)
	}
	return nil
}

// Topic groups health records by subsystem.
type Topic string

const (
	TopicDatabase Topic = "Database"
)

// Record is a single health check finding.
type Record struct {
	Status  Status `json:"status"`
	Topic   Topic  `json:"topic"`
	Message string `json:"message"`
}

// NewRecord creates a new health record.
func NewRecord(status Status, topic Topic, msg string) Record {
	return Record{Status: status, Topic: topic, Message: msg}
}

func (r Record) String() string {
	return fmt.Sprintf("%-7s %s: %s", r.Status, r.Topic, r.Message)
}

// Worst returns the most severe status among records, or StatusGood if there are none.
func Worst(records []Record) Status {
	worst := StatusGood
	for _, r := range records {
		if r.Status > worst {
			worst = r.Status
		}
	}
	return worst
}
