package sdk

import "net/http"

// HeaderAdminToken is the header the operator reads the admin token from.
const HeaderAdminToken = "X-Operator-Token"

// AuthType represents the type of authentication to use for a request.
type AuthType int

const (
	// AuthTypeNone indicates no authentication headers should be added.
	AuthTypeNone AuthType = iota

	// AuthTypeAdmin sends the admin token.
	AuthTypeAdmin
)

// addAuthHeaders adds the appropriate authentication headers to the request based on the auth type.
// Returns an error if the required credentials are not available.
func (c *Client) addAuthHeaders(req *http.Request, authType AuthType) error {
	switch authType {
	case AuthTypeAdmin:
		if c.AdminToken == "" {
			return ErrMissingAuth
		}
		req.Header.Set(HeaderAdminToken, c.AdminToken)
	case AuthTypeNone:
		// No authentication required
	}

	return nil
}
