package common

import (
	"encoding/json"
	"net/http"
)

// Session metadata headers attached to every authenticated request
const (
	HeaderUser          = "X-Devbox-User"
	HeaderAuthorization = "Authorization"
	BearerPrefix        = "Bearer "
)

func ParseJSONBodyReturn(w http.ResponseWriter, r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(v)
	if err != nil {
		WriteErrorResponse(w, StatusInvalidRequest, "Invalid JSON body")
		return err
	}
	return nil
}

// SessionFromRequest extracts the identity and credential headers
func SessionFromRequest(r *http.Request) (user, token string) {
	user = r.Header.Get(HeaderUser)
	auth := r.Header.Get(HeaderAuthorization)
	if len(auth) > len(BearerPrefix) && auth[:len(BearerPrefix)] == BearerPrefix {
		token = auth[len(BearerPrefix):]
	}
	return user, token
}
