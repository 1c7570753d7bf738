package flagrelay

import "encoding/json"

// Unmarshaler decodes response bytes into a typed value. The default is
// encoding/json; supply your own via WithUnmarshaler to use a different
// codec or to add validation.
type Unmarshaler interface {
	Unmarshal(data []byte, v interface{}) error
}

type jsonUnmarshaler struct{}

func (jsonUnmarshaler) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
