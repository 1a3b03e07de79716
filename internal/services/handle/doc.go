// Package handle implements the Handle registry protocol client: nonce
// challenge-response session authentication signed with the configured RSA
// key, plus create/update operations for plain and location-based handles.
package handle
