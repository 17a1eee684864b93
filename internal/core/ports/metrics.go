package ports

import "github.com/sufield/junction/internal/core/domain"

// DirectoryMetrics receives directory service events.
type DirectoryMetrics interface {
	RecordRequest(command, outcome string)
	ConnectionOpened()
	ConnectionClosed()
}

// BarrierMetrics receives barrier service events.
type BarrierMetrics interface {
	RecordArrival()
	RecordDuplicate()
	RecordRelease(participants int)
	ParticipantLeft()
}

// PortMetrics receives connection protocol events.
type PortMetrics interface {
	RecordConnect(kind domain.PortKind, remote bool, err error)
	RecordDisconnect(kind domain.PortKind)
}

// NoopMetrics implements every metrics interface and records nothing.
type NoopMetrics struct{}

func (NoopMetrics) RecordRequest(string, string)               {}
func (NoopMetrics) ConnectionOpened()                          {}
func (NoopMetrics) ConnectionClosed()                          {}
func (NoopMetrics) RecordArrival()                             {}
func (NoopMetrics) RecordDuplicate()                           {}
func (NoopMetrics) RecordRelease(int)                          {}
func (NoopMetrics) ParticipantLeft()                           {}
func (NoopMetrics) RecordConnect(domain.PortKind, bool, error) {}
func (NoopMetrics) RecordDisconnect(domain.PortKind)           {}
