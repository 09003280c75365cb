package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Device is one entry of the provider's device listing. Only ID is
// guaranteed; everything else may be absent.
type Device struct {
	ID        FlexString `json:"id"`
	Name      string     `json:"name,omitempty"`
	Number    FlexString `json:"number,omitempty"`
	Latitude  FlexFloat  `json:"latitude,omitempty"`
	Longitude FlexFloat  `json:"longitude,omitempty"`
}

// DisplayName is the upstream name, falling back to "Device <number>" and
// then "Device <id>".
func (device Device) DisplayName() string {
	if device.Name != "" {
		return device.Name
	}
	if device.Number != "" {
		return fmt.Sprintf("Device %s", device.Number)
	}
	return fmt.Sprintf("Device %s", device.ID)
}

// FlexString accepts a JSON string or number.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			return err
		}
		*s = FlexString(value)
		return nil
	}

	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*s = FlexString(number.String())
	return nil
}

// FlexFloat accepts a JSON number or a numeric string. Null, empty strings
// and zero are all treated as "not set".
type FlexFloat struct {
	value float64
	set   bool
}

func NewFlexFloat(v float64) FlexFloat {
	return FlexFloat{value: v, set: v != 0}
}

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*f = FlexFloat{}

	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		if raw == "" {
			return nil
		}
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid coordinate %s: %w", data, err)
	}

	*f = NewFlexFloat(value)
	return nil
}

func (f FlexFloat) MarshalJSON() ([]byte, error) {
	if !f.set {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}

// Float returns the value, or nil when it is not set.
func (f FlexFloat) Float() *float64 {
	if !f.set {
		return nil
	}
	v := f.value
	return &v
}
