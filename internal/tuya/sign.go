package tuya

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// signMethod is sent in the sign_method header.
const signMethod = "HMAC-SHA256"

// stringToSign builds the canonical request string:
//
//	METHOD \n sha256(body) \n (signed headers, none) \n path?sorted-query
func stringToSign(method, path string, query url.Values, body []byte) string {
	sum := sha256.Sum256(body)
	return method + "\n" + hex.EncodeToString(sum[:]) + "\n\n" + signURL(path, query)
}

// signURL appends the query sorted by key, values unescaped.
func signURL(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		for _, v := range query[k] {
			pairs = append(pairs, k+"="+v)
		}
	}
	return path + "?" + strings.Join(pairs, "&")
}

// sign computes the request signature. accessToken is empty for token
// requests.
func sign(clientID, secret, accessToken, t, nonce, canonical string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(clientID + accessToken + t + nonce + canonical))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}
