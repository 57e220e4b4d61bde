// Package mocks provides generated mock implementations of the session ports.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the interfaces in internal/ports.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	dir := mocks.NewMockAdminDirectory(ctrl)
//	dir.EXPECT().FindActiveByEmail(gomock.Any(), "a@b.com").Return(domainauth.NotFound())
package mocks

// Generate mock for AdminDirectory (FindActiveByEmail, TouchLastLogin).
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=admin_directory_mock.go github.com/target/sitegate/internal/ports AdminDirectory

// Generate mock for SessionProbe (FetchSession).
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=session_probe_mock.go github.com/target/sitegate/internal/ports SessionProbe

// Generate mock for HostNotifier (PostMessage).
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=host_notifier_mock.go github.com/target/sitegate/internal/ports HostNotifier

// Generate mock for CredentialClient (Login, Logout, ResetPassword, ValidateToken).
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=credential_client_mock.go github.com/target/sitegate/internal/ports CredentialClient
