package transport

import (
	"context"
	stderrors "errors"
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sufield/junction/internal/core/errors"
)

// errorDomain tags the ErrorInfo details the gateway attaches to statuses.
const errorDomain = "junction"

const (
	metadataMessage = "message"
	metadataCause   = "cause"
)

var domainCodes = map[string]codes.Code{
	errors.CodeContractViolation: codes.FailedPrecondition,
	errors.CodeProtocol:          codes.InvalidArgument,
	errors.CodeNotFound:          codes.NotFound,
	errors.CodeAlreadyBound:      codes.AlreadyExists,
	errors.CodeNotBound:          codes.FailedPrecondition,
	errors.CodeTransport:         codes.Unavailable,
	errors.CodeMisconfigured:     codes.FailedPrecondition,
}

// toStatus converts a core error into a gRPC status error. DomainErrors keep
// their code in an ErrorInfo detail so the caller can rebuild them.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}

	var de *errors.DomainError
	if !stderrors.As(err, &de) {
		return status.Error(codes.Unknown, err.Error())
	}

	code, ok := domainCodes[de.Code]
	if !ok {
		code = codes.Unknown
	}
	info := &errdetails.ErrorInfo{
		Reason:   de.Code,
		Domain:   errorDomain,
		Metadata: map[string]string{metadataMessage: de.Message},
	}
	if de.Err != nil {
		info.Metadata[metadataCause] = de.Err.Error()
	}

	st, detailErr := status.New(code, err.Error()).WithDetails(info)
	if detailErr != nil {
		return status.Error(code, err.Error())
	}
	return st.Err()
}

// fromStatus converts a gateway call error back into a core error.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return errors.NewDomainError(errors.ErrTransport, err)
	}

	for _, detail := range st.Details() {
		info, ok := detail.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != errorDomain {
			continue
		}
		de := &errors.DomainError{Code: info.GetReason(), Message: info.GetMetadata()[metadataMessage]}
		if cause, ok := info.GetMetadata()[metadataCause]; ok {
			de.Err = stderrors.New(cause)
		}
		return de
	}

	switch st.Code() {
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	case codes.Unknown:
		return fmt.Errorf("remote peer: %s", st.Message())
	default:
		return errors.NewDomainError(errors.ErrTransport, err)
	}
}
