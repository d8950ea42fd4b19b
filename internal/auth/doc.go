// Package auth performs the login handshake against a monitored site and
// returns the credential the prober later replays. The monitored URL doubles
// as the login endpoint: one form POST of username and password is sent to it
// and the response is read according to the requested kind.
package auth
