package cli

import (
	"encoding/json"
	"fmt"
)

// JMap is a generic named resource, a node or a run result, on its way to stdout
type JMap map[string]interface{}

// Name returns the name value
func (j JMap) Name() string {
	if name, ok := j["name"]; ok {
		if s, ok := name.(string); ok {
			return s
		}
	}
	return ""
}

// String marshals into a json string
func (j JMap) String() string {
	buf, err := json.Marshal(&j)
	if err != nil {
		return ""
	}
	return string(buf)
}

// Print prints either the json string or just the name
func (j JMap) Print(json bool) {
	if json {
		fmt.Println(j)
	} else {
		fmt.Println(j.Name())
	}
}

// JMapSlice is an array of generic resources, sortable by name
type JMapSlice []JMap

// Len returns the length of the array
func (js JMapSlice) Len() int {
	return len(js)
}

// Less returns the comparison of two elements
func (js JMapSlice) Less(i, j int) bool {
	return js[i].Name() < js[j].Name()
}

// Swap swaps two elements
func (js JMapSlice) Swap(i, j int) {
	js[j], js[i] = js[i], js[j]
}

// NewJMap converts any marshalable value into a JMap
func NewJMap(v interface{}) (JMap, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	j := JMap{}
	if err := json.Unmarshal(b, &j); err != nil {
		return nil, err
	}
	return j, nil
}
