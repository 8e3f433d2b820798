// Package common contains shared constants and sentinel errors used across
// secureshare components.
package common

// GrantHeaderName carries the download grant issued after a successful
// passcode verification.
const GrantHeaderName = "X-Download-Grant"

// PasscodeLength is the number of decimal digits in a one-time passcode.
const PasscodeLength = 6
