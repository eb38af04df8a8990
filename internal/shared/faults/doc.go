// Package faults defines the error taxonomy shared by the sync, install and
// preview paths.
//
// Every failure that crosses a component boundary is wrapped in an *Error
// carrying a Kind:
//   - Transport: network or HTTP failure talking to a registry
//   - Auth: missing or rejected registry credential
//   - Config: no registry endpoints configured
//   - Staging: temp file create or write failure
//   - HostOperation: install or uninstall rejected by the host
//   - Parse: malformed artifact contents during preview
//
// Example Usage:
//
//	if faults.Is(err, faults.KindTransport) {
//		logger.Warn("registry unreachable", zap.Error(err))
//	}
package faults
