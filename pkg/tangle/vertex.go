package tangle

// Vertex owns a Message plus its Metadata. It is created once on first
// insert; the Message never changes afterwards, only the Metadata does.
type Vertex struct {
	Message  *Message
	Metadata *Metadata
}
