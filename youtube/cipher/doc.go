/*
Package cipher turns protected stream URLs from the player API into
downloadable ones.

Some streams come without a plain url and carry a signatureCipher instead:
a query string holding the scrambled signature (s), the parameter name it
must be stored under (sp), and the base url. Others carry an n parameter
that the CDN throttles unless it is transformed. Both transforms live in
the player's base.js.

# Locating base.js

The watch page is parsed with goquery and the first script whose src ends
in base.js is used. When no such tag exists the "jsUrl" field of the
embedded player config is used instead.

# Deciphering

The signature transform is a short function that splits the signature into
an array, calls helper methods (reverse, splice, swap) on a transform
object, and joins it back. Those calls are extracted with regular
expressions and replayed in Go. When extraction fails the script is run in
otto and its global decipher function is called. The n transform is always
run in otto through the global ncode function when base.js defines one.

base.js bodies and extracted steps are cached per URL for PlayerTTL.

# Errors

Failures are *Error values with a Code; all of them match
errs.ErrCipherFailed with errors.Is.
*/
package cipher
