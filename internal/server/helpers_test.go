package server

import (
	"net/http"

	"github.com/goccy/go-json"
)

func decode(resp *http.Response, v any) error {
	return json.NewDecoder(resp.Body).Decode(v)
}
