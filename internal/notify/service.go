package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mentorhub/crm-followup/internal/followup"
	"github.com/mentorhub/crm-followup/pkg/logging"
)

// Service emails the org's escalation contact when the follow-up pipeline
// fails in ways that need a human. The contact address comes from the org's
// follow-up settings; orgs without one configured are skipped.
type Service struct {
	email    EmailSender
	settings followup.SettingsSource
	logger   *logging.Logger

	mu        sync.Mutex
	lastAlert map[string]time.Time
	cooldown  time.Duration
	now       func() time.Time
}

var _ followup.Alerter = (*Service)(nil)

// NewService creates an escalation notification service.
func NewService(email EmailSender, settings followup.SettingsSource, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:     email,
		settings:  settings,
		logger:    logger,
		lastAlert: make(map[string]time.Time),
		cooldown:  15 * time.Minute,
		now:       time.Now,
	}
}

// AlertBatchFailure reports that a whole follow-up cycle aborted.
func (s *Service) AlertBatchFailure(ctx context.Context, orgID string, runErr error) error {
	subject := "Follow-up run failed"
	body := fmt.Sprintf(
		"The scheduled follow-up run for your account failed and no messages were sent.\n\nError: %v\nTime: %s\n\nThe next run will retry automatically.",
		runErr, s.now().UTC().Format(time.RFC1123),
	)
	return s.send(ctx, orgID, "batch:"+orgID, subject, body)
}

// AlertPersistenceFailure reports that a follow-up was delivered but its audit
// record could not be written. Alerts for the same org are throttled so a
// store outage during a large batch produces one email, not hundreds.
func (s *Service) AlertPersistenceFailure(ctx context.Context, orgID string, err error) {
	subject := "Follow-up log write failed"
	body := fmt.Sprintf(
		"A follow-up message was delivered but could not be recorded.\n\nError: %v\nTime: %s\n\nDeduplication and metrics may undercount until the store recovers.",
		err, s.now().UTC().Format(time.RFC1123),
	)
	if sendErr := s.send(ctx, orgID, "persistence:"+orgID, subject, body); sendErr != nil {
		s.logger.Error("notify: escalation email failed", "error", sendErr, "org_id", orgID)
	}
}

func (s *Service) send(ctx context.Context, orgID, throttleKey, subject, body string) error {
	if s.email == nil {
		s.logger.Debug("notify: no email sender configured, skipping alert", "org_id", orgID)
		return nil
	}
	if s.throttled(throttleKey) {
		s.logger.Debug("notify: alert throttled", "org_id", orgID, "key", throttleKey)
		return nil
	}

	settings, err := s.settings.GetOrCreate(ctx, orgID)
	if err != nil {
		return fmt.Errorf("notify: load settings: %w", err)
	}
	to := strings.TrimSpace(settings.EscalationEmail)
	if to == "" {
		s.logger.Warn("notify: no escalation email configured", "org_id", orgID)
		return nil
	}

	err = s.email.Send(ctx, EmailMessage{To: to, Subject: subject, Body: body})
	if err != nil {
		return err
	}
	s.logger.Info("notify: escalation alert sent", "org_id", orgID, "to", to, "subject", subject)
	return nil
}

func (s *Service) throttled(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if last, ok := s.lastAlert[key]; ok && now.Sub(last) < s.cooldown {
		return true
	}
	s.lastAlert[key] = now
	return false
}
