package tuya

import (
	"fmt"
	"strings"
)

// regionEndpoints maps data-centre codes to OpenAPI base URLs.
var regionEndpoints = map[string]string{
	"cn":   "https://openapi.tuyacn.com",
	"us":   "https://openapi.tuyaus.com",
	"us-e": "https://openapi-ueaz.tuyaus.com",
	"eu":   "https://openapi.tuyaeu.com",
	"eu-w": "https://openapi-weaz.tuyaeu.com",
	"in":   "https://openapi.tuyain.com",
	"sg":   "https://openapi-sg.iotbing.com",
}

// Endpoint returns the OpenAPI base URL for a region code.
func Endpoint(region string) (string, error) {
	u, ok := regionEndpoints[strings.ToLower(strings.TrimSpace(region))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRegion, region)
	}
	return u, nil
}
