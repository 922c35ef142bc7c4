package frame

import "fmt"

// Encode builds an outgoing wire message for the server.
//
// The header carries the byte length of the body alone; the trailing
// newline and NUL terminator are framing, not payload. The body must be a
// single well-formed XML element, e.g. `<lc id="Loc1" V="50"/>`.
func Encode(msgType, body string) []byte {
	return []byte(fmt.Sprintf("<xmlh><xml size=\"%d\" name=\"%s\"/></xmlh>%s\n\x00", len(body), msgType, body))
}
