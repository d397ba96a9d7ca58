package server

// Profile is the subset of id_token claims the views display. Claims that
// are absent, or present with a non-string value, read as "".
type Profile struct {
	Name    string
	Email   string
	Picture string
}

func profileClaims(claims map[string]interface{}) Profile {
	return Profile{
		Name:    stringClaim(claims, "name"),
		Email:   stringClaim(claims, "email"),
		Picture: stringClaim(claims, "picture"),
	}
}

func stringClaim(claims map[string]interface{}, key string) string {
	if claims == nil {
		return ""
	}
	s, _ := claims[key].(string)
	return s
}
