package session

import (
	"encoding/json"
	"fmt"

	"github.com/golang-jwt/jwt"
)

// InvalidProfileError means a token's payload decoded but did not describe a
// usable user: treat it exactly like an invalid token and log out.
type InvalidProfileError struct {
	Reason string
}

func (e *InvalidProfileError) Error() string {
	return "invalid profile: " + e.Reason
}

// UserProfile is the validated shape decoded from a token payload. ID is
// required; everything else is optional. Claims outside the known fields are
// kept in Extra so nothing the server sends is lost.
type UserProfile struct {
	ID string `json:"id"`
	Role string `json:"role,omitempty"`
	Name string `json:"name,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Email string `json:"email,omitempty"`
	Extra map[string]interface{} `json:"extra,omitempty"`
}

func claimString(claims jwt.MapClaims, key string) string {
	switch v := claims[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return ""
}

// DecodeUserProfile extracts a profile from the payload segment of a token
// without verifying the signature. The transport and server are trusted;
// anything decoded here is still client-falsifiable and must never be used
// for authorization decisions on its own.
func DecodeUserProfile(tokenString string) (*UserProfile, error) {
	parser := &jwt.Parser{}
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, &InvalidProfileError{Reason: err.Error()}
	}
	profile := &UserProfile{
		ID: claimString(claims, "sub"),
		Role: claimString(claims, "role"),
		Name: claimString(claims, "name"),
		PhoneNumber: claimString(claims, "phoneNumber"),
		Email: claimString(claims, "email"),
	}
	if profile.ID == "" {
		profile.ID = claimString(claims, "id")
	}
	if profile.ID == "" {
		return nil, &InvalidProfileError{Reason: "token payload has no subject"}
	}
	known := map[string]bool{
		"sub": true, "id": true, "role": true, "name": true,
		"phoneNumber": true, "email": true,
		"exp": true, "iat": true, "nbf": true, "iss": true, "aud": true,
		"tokenType": true,
	}
	for key, value := range claims {
		if known[key] {
			continue
		}
		if profile.Extra == nil {
			profile.Extra = map[string]interface{}{}
		}
		profile.Extra[key] = value
	}
	return profile, nil
}

// Merge applies partial fields onto the profile. Known field names update the
// typed fields; everything else lands in Extra.
func (p *UserProfile) Merge(partial map[string]interface{}) {
	for key, value := range partial {
		str, isString := value.(string)
		switch key {
		case "id", "sub":
			if isString && str != "" {
				p.ID = str
			}
		case "role":
			if isString {
				p.Role = str
			}
		case "name", "fullName":
			if isString {
				p.Name = str
			}
		case "phoneNumber":
			if isString {
				p.PhoneNumber = str
			}
		case "email":
			if isString {
				p.Email = str
			}
		default:
			if p.Extra == nil {
				p.Extra = map[string]interface{}{}
			}
			p.Extra[key] = value
		}
	}
}

func (p *UserProfile) marshal() string {
	data, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return string(data)
}

func unmarshalProfile(data string) *UserProfile {
	if data == "" {
		return nil
	}
	var profile UserProfile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil
	}
	return &profile
}
