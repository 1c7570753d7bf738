package flagrelay

// Feature identifies a remotely configured feature.
type Feature struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Flag is one evaluated feature state returned by the flag API.
type Flag struct {
	Feature Feature     `json:"feature"`
	Enabled bool        `json:"enabled"`
	Value   interface{} `json:"feature_state_value"`
}

// Trait is a key/value attribute attached to an identity.
type Trait struct {
	Key   string      `json:"trait_key"`
	Value interface{} `json:"trait_value"`
}

// Identity is the envelope returned for identity-scoped requests: the
// identity's evaluated flags plus its stored traits.
type Identity struct {
	Flags  []Flag  `json:"flags"`
	Traits []Trait `json:"traits"`
}
