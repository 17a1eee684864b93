package transport

import (
	"github.com/sufield/junction/internal/core/domain"
	"github.com/sufield/junction/internal/core/ports"
)

type obeyConnectionRequest struct {
	ports.ObeyConnection
}

func (r *obeyConnectionRequest) LogAttrs() []any {
	return []any{"target", r.Target, "sender", r.Sender, "sender_location", r.SenderLocation, "connector", r.Spec.Kind}
}

type obeyDisconnectionRequest struct {
	Target domain.PortURI `json:"target"`
	Sender domain.PortURI `json:"sender"`
}

func (r *obeyDisconnectionRequest) LogAttrs() []any {
	return []any{"target", r.Target, "sender", r.Sender}
}

type invokeRequest struct {
	Target  domain.PortURI `json:"target"`
	Caller  domain.PortURI `json:"caller"`
	Request domain.Request `json:"request"`
}

func (r *invokeRequest) LogAttrs() []any {
	return []any{"target", r.Target, "caller", r.Caller, "interface", r.Request.Interface, "op", r.Request.Method}
}

type invokeResponse struct {
	Response domain.Response `json:"response"`
}

type empty struct{}
