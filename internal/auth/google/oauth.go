// Package google implements the Google Business Profile OAuth connect flow.
package google

import (
	"golang.org/x/oauth2"
	googleOAuth "golang.org/x/oauth2/google"
)

// Scopes required for reading and replying to Business Profile reviews.
var Scopes = []string{
	"https://www.googleapis.com/auth/business.manage",
}

// GetOAuthConfig returns the OAuth2 config for the Business Profile flow.
func GetOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
		Endpoint:     googleOAuth.Endpoint,
	}
}
