package core

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/pkg/errors"
)

// StringList is a list of labels (languages, facilities...) stored as a jsonb array.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

func (l *StringList) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.Errorf("core.StringList: cannot scan %T", src)
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return errors.Wrap(err, "core.StringList: unmarshalling")
	}
	*l = out
	return nil
}

func (l StringList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

// Clone returns a copy that does not share the backing array.
func (l StringList) Clone() StringList {
	if l == nil {
		return nil
	}
	return append(StringList(nil), l...)
}
