package provisioning

import (
	"context"
	"fmt"
	"time"

	"github.com/ClareAI/astra-receptionist-service/internal/adapters/elevenlabs"
	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"github.com/ClareAI/astra-receptionist-service/internal/repository"
	"github.com/ClareAI/astra-receptionist-service/pkg/logger"
	"github.com/jinzhu/copier"
	"go.uber.org/zap"
)

// compensationTimeout bounds the best-effort remote cleanup after a failed
// local insert. The cleanup runs detached from the request context so a
// caller timeout cannot leave the orphaned agent behind un-attempted.
const compensationTimeout = 10 * time.Second

// AgentProvider abstracts the remote conversational-agent service.
type AgentProvider interface {
	CreateAgent(ctx context.Context, name string, config elevenlabs.AgentConfig) (*elevenlabs.Agent, error)
	UpdateAgent(ctx context.Context, agentID string, req elevenlabs.UpdateAgentRequest) (*elevenlabs.Agent, error)
	DeleteAgent(ctx context.Context, agentID string) error
	GetAgent(ctx context.Context, agentID string) (*elevenlabs.Agent, error)
	ListAgents(ctx context.Context) (*elevenlabs.AgentList, error)
}

// Invalidator receives slug invalidation notices after a successful mutation.
type Invalidator interface {
	InvalidateSlug(ctx context.Context, slug string)
}

// CreateFailure reports a create whose local insert failed after the remote
// agent was already created. Cause is the primary (storage or conflict)
// error; Compensation is non-nil only when the compensating remote delete
// also failed, leaving an orphaned agent behind.
type CreateFailure struct {
	Cause        error
	Compensation error
}

func (e *CreateFailure) Error() string {
	return fmt.Sprintf("%v (compensating agent delete also failed: %v)", e.Cause, e.Compensation)
}

func (e *CreateFailure) Unwrap() error { return e.Cause }

// DeleteResult reports the outcome of a delete. RemoteCleanup carries the
// swallowed remote-deletion error, if any, for observability; the local
// delete succeeded whenever the operation returned no error.
type DeleteResult struct {
	Receptionist  *domain.Receptionist
	RemoteCleanup error
}

// Service orchestrates the remote agent provider and the local record store
// so the two stay consistent under partial failure.
type Service struct {
	provider    AgentProvider
	repo        repository.ReceptionistRepository
	invalidator Invalidator
}

// NewService creates a provisioning service. invalidator may be nil when no
// lookup cache is wired.
func NewService(provider AgentProvider, repo repository.ReceptionistRepository, invalidator Invalidator) *Service {
	return &Service{
		provider:    provider,
		repo:        repo,
		invalidator: invalidator,
	}
}

// Create provisions a new receptionist: remote agent first, then the local
// record. The ordering guarantees no stored record ever references an agent
// that was never created. If the local insert fails, the now-orphaned remote
// agent is deleted best-effort and the storage error is surfaced.
func (s *Service) Create(ctx context.Context, user *domain.User, req *domain.CreateReceptionistRequest) (*domain.Receptionist, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Pre-check the slug so an obvious duplicate fails before a remote agent
	// is provisioned and torn down. The unique index still decides races.
	exists, err := s.repo.ExistsBySlug(ctx, req.Slug)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, &domain.ConflictError{Resource: "receptionist", Key: req.Slug}
	}

	config := elevenlabs.BuildAgentConfig(req.Prompt, req.FirstMessage, req.VoiceID)

	agent, err := s.provider.CreateAgent(ctx, req.Name, config)
	if err != nil {
		return nil, err
	}

	receptionist := &domain.Receptionist{
		Slug:         req.Slug,
		Name:         req.Name,
		AgentID:      &agent.AgentID,
		AgentConfig:  snapshotConfig(config),
		FirstMessage: req.FirstMessage,
		Prompt:       req.Prompt,
		VoiceID:      req.VoiceID,
		IsActive:     true,
	}
	if user != nil {
		receptionist.CreatedBy = &user.ID
	}

	created, err := s.repo.Create(ctx, receptionist)
	if err != nil {
		return nil, s.compensateCreate(agent.AgentID, err)
	}

	s.invalidate(ctx, created.Slug)

	logger.Base().Info("provisioned receptionist",
		zap.String("id", created.ID),
		zap.String("slug", created.Slug),
		zap.String("agent_id", agent.AgentID))
	return created, nil
}

// compensateCreate deletes the orphaned remote agent after a failed insert.
// Its own failure is logged and attached as a secondary notice; it never
// masks the storage error.
func (s *Service) compensateCreate(agentID string, cause error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(context.Background()), compensationTimeout)
	defer cancel()

	if compErr := s.provider.DeleteAgent(ctx, agentID); compErr != nil {
		logger.Base().Error("failed to clean up orphaned agent after insert failure",
			zap.String("agent_id", agentID),
			zap.Error(compErr))
		return &CreateFailure{Cause: cause, Compensation: compErr}
	}

	logger.Base().Info("cleaned up orphaned agent after insert failure",
		zap.String("agent_id", agentID))
	return cause
}

// Update applies a partial update. When any agent-visible field is present,
// the merged configuration is pushed to the remote agent before the local
// record changes; a remote failure therefore leaves the record untouched. A
// local failure after a successful remote update is surfaced as-is - the
// resulting divergence is tolerated, not rolled back.
func (s *Service) Update(ctx context.Context, id string, upd *domain.ReceptionistUpdate) (*domain.Receptionist, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if existing.AgentID == nil || *existing.AgentID == "" {
		return nil, domain.ErrAgentNotProvisioned
	}

	var snapshot *domain.AgentConfigSnapshot
	if upd.TouchesAgent() {
		config := MergeConfig(existing, upd)
		name := existing.Name
		if upd.Name != nil {
			name = *upd.Name
		}

		if _, err := s.provider.UpdateAgent(ctx, *existing.AgentID, elevenlabs.UpdateAgentRequest{
			Name:               name,
			ConversationConfig: &config,
		}); err != nil {
			return nil, err
		}
		snapshot = snapshotConfig(config)
	}

	updated, err := s.repo.Update(ctx, id, upd, snapshot)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, existing.Slug)
	if updated.Slug != existing.Slug {
		s.invalidate(ctx, updated.Slug)
	}

	return updated, nil
}

// Delete removes the record and its remote agent. Remote deletion is
// best-effort: an orphaned agent is a recoverable nuisance, a record
// surviving a user-visible delete is not.
func (s *Service) Delete(ctx context.Context, id string) (*DeleteResult, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &DeleteResult{Receptionist: existing}
	if existing.AgentID != nil && *existing.AgentID != "" {
		if err := s.provider.DeleteAgent(ctx, *existing.AgentID); err != nil {
			logger.Base().Warn("failed to delete remote agent, continuing with local deletion",
				zap.String("agent_id", *existing.AgentID),
				zap.Error(err))
			result.RemoteCleanup = err
		}
	}

	if err := s.repo.Delete(ctx, existing.ID); err != nil {
		return nil, err
	}

	s.invalidate(ctx, existing.Slug)

	logger.Base().Info("deleted receptionist",
		zap.String("id", existing.ID),
		zap.String("slug", existing.Slug))
	return result, nil
}

// Get returns a single record by id.
func (s *Service) Get(ctx context.Context, id string) (*domain.Receptionist, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns all records, newest first.
func (s *Service) List(ctx context.Context) ([]*domain.Receptionist, error) {
	return s.repo.GetAll(ctx)
}

// Agent retrieves the live remote agent, for auditing drift between the
// stored snapshot and the provider's authoritative state.
func (s *Service) Agent(ctx context.Context, agentID string) (*elevenlabs.Agent, error) {
	return s.provider.GetAgent(ctx, agentID)
}

// Agents lists the provider's live agents, for spotting agents no stored
// record references.
func (s *Service) Agents(ctx context.Context) (*elevenlabs.AgentList, error) {
	return s.provider.ListAgents(ctx)
}

func (s *Service) invalidate(ctx context.Context, slug string) {
	if s.invalidator != nil {
		s.invalidator.InvalidateSlug(ctx, slug)
	}
}

// MergeConfig builds the full agent configuration for an update by merging
// present fields over the stored record.
func MergeConfig(existing *domain.Receptionist, upd *domain.ReceptionistUpdate) elevenlabs.AgentConfig {
	prompt := existing.Prompt
	if upd.Prompt != nil {
		prompt = *upd.Prompt
	}
	firstMessage := existing.FirstMessage
	if upd.FirstMessage != nil {
		firstMessage = *upd.FirstMessage
	}
	voiceID := existing.VoiceID
	if upd.VoiceID != nil {
		voiceID = *upd.VoiceID
	}
	return elevenlabs.BuildAgentConfig(prompt, firstMessage, voiceID)
}

// snapshotConfig copies the provider configuration into the storage shape.
func snapshotConfig(config elevenlabs.AgentConfig) *domain.AgentConfigSnapshot {
	snapshot := &domain.AgentConfigSnapshot{}
	if err := copier.CopyWithOption(snapshot, &config, copier.Option{DeepCopy: true}); err != nil {
		logger.Base().Warn("failed to snapshot agent config", zap.Error(err))
		return nil
	}
	return snapshot
}
