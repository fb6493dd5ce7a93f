// Package secretary provides methods for ciphering and token handling.
package secretary

// Secretary defines a set of methods for types implementing Secretary.
type Secretary interface {
	Encode(data string) string
	Decode(msg string) (string, error)
	NewToken() (string, string, error)
	GetTokenForUser(userID string) (string, error)
	ValidateToken(accessToken string) (string, error)
}
