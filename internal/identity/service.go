package identity

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	errMissingLookup = errors.New("lookup service is required")
	noOpLogger       = zap.NewNop()
)

// ServiceError carries a stable operation.reason code alongside its cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew   = "identity.service.new"
	opDescribeUser = "identity.describe_user"
	opResolveBatch = "identity.resolve_batch"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ServiceConfig describes the dependencies required for identity resolution.
type ServiceConfig struct {
	Lookup Lookup
	Logger *zap.Logger
}

// Service resolves canonical identities over a read-only lookup service.
// Calls share no mutable state and may run concurrently.
type Service struct {
	lookup Lookup
	logger *zap.Logger
}

// NewService validates the configuration and constructs the service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Lookup == nil {
		return nil, newServiceError(opServiceNew, "missing_lookup", errMissingLookup)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		lookup: cfg.Lookup,
		logger: logger,
	}, nil
}

// DescribeUser fetches the user by internal id and projects its canonical
// descriptor. An unknown id surfaces as a coded error wrapping ErrUserNotFound.
func (s *Service) DescribeUser(ctx context.Context, internalID string) (Descriptor, error) {
	if s.lookup == nil {
		s.logError(opDescribeUser, "missing_lookup", errMissingLookup)
		return Descriptor{}, newServiceError(opDescribeUser, "missing_lookup", errMissingLookup)
	}

	validated, err := NewInternalID(internalID)
	if err != nil {
		s.logError(opDescribeUser, "invalid_internal_id", err)
		return Descriptor{}, newServiceError(opDescribeUser, "invalid_internal_id", err)
	}

	user, err := s.lookup.GetUserWithAccounts(ctx, validated.String())
	if errors.Is(err, ErrUserNotFound) {
		return Descriptor{}, newServiceError(opDescribeUser, "user_not_found", err)
	}
	if err != nil {
		s.logError(opDescribeUser, "lookup_failed", err, zap.String("internal_id", validated.String()))
		return Descriptor{}, newServiceError(opDescribeUser, "lookup_failed", err)
	}

	return Project(user), nil
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("identity service error", attrs...)
}
