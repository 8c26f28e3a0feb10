package homework

import (
	"context"
	"errors"

	"github.com/yangshenhuai/skid-homework/internal/models"
	"github.com/yangshenhuai/skid-homework/internal/scan"
	"github.com/yangshenhuai/skid-homework/pkg/logger"
)

// preflight checks scan preconditions and claims the scan slot
func (s *Service) preflight() ([]models.AiSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrServiceClosed
	}
	if s.scanning {
		return nil, scan.ErrScanInProgress
	}

	var retryable []models.FileItem
	for _, it := range s.store.Items() {
		if it.Status.Retryable() {
			retryable = append(retryable, it)
		}
	}
	if len(retryable) == 0 {
		return nil, scan.ErrNothingToScan
	}
	chain := s.Chain()
	if err := s.scanner.Validate(retryable, chain); err != nil {
		return nil, err
	}
	s.scanning = true
	return chain, nil
}

func (s *Service) runScan(ctx context.Context, chain []models.AiSource) (*scan.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.scanCancel = cancel
	s.mu.Unlock()

	report, err := s.scanner.Scan(ctx, chain)
	cancel()

	s.mu.Lock()
	s.scanning = false
	s.scanCancel = nil
	s.lastReport = report
	s.lastErr = err
	s.mu.Unlock()
	return report, err
}

// Scan runs a scan and waits for it
func (s *Service) Scan(ctx context.Context) (*scan.Report, error) {
	chain, err := s.preflight()
	if err != nil {
		return nil, err
	}
	return s.runScan(ctx, chain)
}

// StartScan checks preconditions synchronously, then scans in the
// background on the service context
func (s *Service) StartScan() error {
	chain, err := s.preflight()
	if err != nil {
		return err
	}
	started := s.goBackground(func(ctx context.Context) {
		if _, err := s.runScan(ctx, chain); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("Background scan failed", logger.Error(err))
		}
	})
	if !started {
		s.mu.Lock()
		s.scanning = false
		s.mu.Unlock()
		return ErrServiceClosed
	}
	return nil
}

// CancelScan stops the running scan. It reports whether one was running.
func (s *Service) CancelScan() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scanCancel == nil {
		return false
	}
	s.scanCancel()
	return true
}

func (s *Service) ScanStatus() ScanStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := ScanStatus{Working: s.scanning || s.store.Working(), Report: s.lastReport}
	if s.lastErr != nil {
		st.Error = s.lastErr.Error()
	}
	return st
}
