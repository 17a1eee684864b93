package domain

// Request is one call routed through a connector. Payload is opaque to the
// middleware; the interface's owners agree on its encoding.
type Request struct {
	Interface InterfaceID `json:"interface"`
	Method    string      `json:"method"`
	Payload   []byte      `json:"payload,omitempty"`
}

// Response is the result of a Request.
type Response struct {
	Payload []byte `json:"payload,omitempty"`
}

// NewRequest builds a request for method on iface.
func NewRequest(iface InterfaceID, method string, payload []byte) Request {
	return Request{Interface: iface, Method: method, Payload: payload}
}
