package profile

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/voyagen/matrixiptv/internal/models"
)

// StorageKey is the backend key holding the profile document.
const StorageKey = "iptv.profiles.v1"

const documentVersion = 1

// document is the persisted layout:
// {"state":{"profiles":{...},"activeProfileId":...},"version":1}
type document struct {
	State   documentState `json:"state"`
	Version int           `json:"version"`
}

type documentState struct {
	Profiles        orderedProfiles `json:"profiles"`
	ActiveProfileID *string         `json:"activeProfileId"`
}

// orderedProfiles is a JSON object of profiles by id that keeps key order
// through a round trip.
type orderedProfiles struct {
	order []string
	byID  map[string]models.UserProfile
}

func (o orderedProfiles) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range o.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(o.byID[id])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (o *orderedProfiles) UnmarshalJSON(data []byte) error {
	o.order = nil
	o.byID = make(map[string]models.UserProfile)
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("profiles: expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		id, ok := tok.(string)
		if !ok {
			return fmt.Errorf("profiles: expected key, got %v", tok)
		}
		var p models.UserProfile
		if err := dec.Decode(&p); err != nil {
			return fmt.Errorf("profiles[%s]: %w", id, err)
		}
		if _, dup := o.byID[id]; !dup {
			o.order = append(o.order, id)
		}
		o.byID[id] = p
	}
	_, err = dec.Token()
	return err
}
