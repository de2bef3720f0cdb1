package health

import (
	"encoding/json"
	"testing"
)

func TestStatusJSON(t *testing.T) {
	for _, status := range []Status{StatusGood, StatusCaution, StatusWarn} {
		data, err := json.Marshal(status)
		if err != nil {
			t.Fatalf("failed to marshal %s: %v", status, err)
		}

		var result Status
		if err := json.Unmarshal(data, &result); err != nil {
			t.Fatalf("failed to unmarshal %s: %v", data, err)
		}
		if result != status {
			t.Errorf("got %s, want %s", result, status)
		}
	}

	var s Status
	if err := json.Unmarshal([]byte(`"BROKEN"`), &s); err == nil {
		t.Error("expected unknown status to fail")
	}
}

func TestWorst(t *testing.T) {
	tests := []struct {
		name    string
		records []Record
		want    Status
	}{
		{name: "empty", records: nil, want: StatusGood},
		{name: "good", records: []Record{NewRecord(StatusGood, TopicDatabase, "ok")}, want: StatusGood},
		{
			name: "mixed",
			records: []Record{
				NewRecord(StatusCaution, TopicDatabase, "recent error"),
				NewRecord(StatusWarn, TopicDatabase, "down"),
				NewRecord(StatusGood, TopicDatabase, "ok"),
			},
			want: StatusWarn,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Worst(tt.records); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}
