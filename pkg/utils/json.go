package utils

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// IsJSONDocument reports whether data holds exactly one JSON value of any type
func IsJSONDocument(data []byte) bool {
	var v interface{}
	return json.Unmarshal(data, &v) == nil
}
