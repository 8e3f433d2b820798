// Package cli implements sharectl, the recipient-side command line.
//
// Commands:
//
//	status -f <file id>                          show the public file summary
//	verify -f <file id> -p <phone>               exchange a passcode for a download grant
//	fetch  -f <file id> [-p <phone>|-grant <g>]  download the encrypted blob and record it
//
// The passcode is read from the terminal without echo. fetch writes the
// ciphertext to -o (default <file id>.enc) and the decryption parameters to
// the same path with a .json suffix.
package cli
