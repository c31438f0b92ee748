// Package tuya is a minimal Tuya Cloud OpenAPI client.
//
// It implements the registry side of the bridge: listing the devices linked
// to a cloud project, reading a device's status and sending commands. Every
// request is signed with HMAC-SHA256 over the client ID, access token,
// timestamp, nonce and a canonical form of the request.
//
// # Usage
//
//	client, err := tuya.New(tuya.ConfigFrom(cfg.Tuya))
//	if err != nil {
//	    return err
//	}
//	devices, err := client.ListDevices(ctx)
//
// # Errors
//
// Transport failures wrap ErrRequestFailed. Responses with "success": false
// are returned as *APIError; token problems additionally wrap ErrTokenFailed.
package tuya
