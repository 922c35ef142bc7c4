// Package frame converts the Rocrail client socket byte stream into
// discrete XML documents and encodes outgoing command messages.
//
// The Rocrail wire protocol is neither length-prefixed nor strictly
// delimiter-based: frames are NUL-terminated, but a single frame can carry
// several bare XML documents without a shared root, and one document can
// span several socket reads. The Decoder therefore accumulates bytes and
// lines across calls and scans forward for the earliest document boundary,
// peeling off one document at a time before reconstructing a parseable
// tree under a synthetic root element.
//
// # Usage
//
//	dec := frame.NewDecoder()
//	dec.Feed(chunk)
//	for {
//		doc, err := dec.Next()
//		if err != nil {
//			// malformed document dropped, decoder state is still valid
//			continue
//		}
//		if doc == nil {
//			break // need more bytes
//		}
//		handle(doc)
//	}
//
// Outgoing messages use the fixed header format expected by the server:
//
//	frame.Encode("sys", `<sys cmd="go"/>`)
package frame
