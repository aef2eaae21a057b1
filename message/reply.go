package message

// Reply is a fully decoded reply. Buf is non-nil exactly when the request
// kind is declared WithReplyBuf (it may be empty).
type Reply[R any] struct {
	Payload R
	Buf     []byte
}
