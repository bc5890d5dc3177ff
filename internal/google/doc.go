// Package google manages the OAuth2 credentials of the connected Google
// Calendar account.
//
// Credentials live in two tiers. The durable token file is the source of
// truth across sessions; the browser session holds an overlay that is
// consulted first and warmed from the file on a miss. Expired credentials
// with a refresh token are refreshed and written back to both tiers before
// they are handed to the calendar client.
//
// The package also wraps the authorization-code flow: loading the client
// secret file, building the consent URL and exchanging the returned code.
package google
