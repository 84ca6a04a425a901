package provisioning

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ClareAI/astra-receptionist-service/internal/adapters/elevenlabs"
	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider is an in-memory AgentProvider with failure hooks.
type fakeProvider struct {
	agents      map[string]*elevenlabs.Agent
	nextID      int
	createErr   error
	updateErr   error
	deleteErr   error
	createCalls int
	updateCalls int
	deleteCalls int
	lastUpdate  elevenlabs.UpdateAgentRequest
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{agents: make(map[string]*elevenlabs.Agent)}
}

func (p *fakeProvider) CreateAgent(ctx context.Context, name string, config elevenlabs.AgentConfig) (*elevenlabs.Agent, error) {
	p.createCalls++
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.nextID++
	agent := &elevenlabs.Agent{
		AgentID:            fmt.Sprintf("a%d", p.nextID),
		Name:               name,
		ConversationConfig: config,
	}
	p.agents[agent.AgentID] = agent
	return agent, nil
}

func (p *fakeProvider) UpdateAgent(ctx context.Context, agentID string, req elevenlabs.UpdateAgentRequest) (*elevenlabs.Agent, error) {
	p.updateCalls++
	p.lastUpdate = req
	if p.updateErr != nil {
		return nil, p.updateErr
	}
	agent, ok := p.agents[agentID]
	if !ok {
		return nil, &domain.ProviderError{Op: "update", StatusCode: 404, Err: errors.New("no such agent")}
	}
	if req.Name != "" {
		agent.Name = req.Name
	}
	if req.ConversationConfig != nil {
		agent.ConversationConfig = *req.ConversationConfig
	}
	return agent, nil
}

func (p *fakeProvider) DeleteAgent(ctx context.Context, agentID string) error {
	p.deleteCalls++
	if p.deleteErr != nil {
		return p.deleteErr
	}
	delete(p.agents, agentID)
	return nil
}

func (p *fakeProvider) ListAgents(ctx context.Context) (*elevenlabs.AgentList, error) {
	list := &elevenlabs.AgentList{}
	for _, agent := range p.agents {
		list.Agents = append(list.Agents, *agent)
	}
	return list, nil
}

func (p *fakeProvider) GetAgent(ctx context.Context, agentID string) (*elevenlabs.Agent, error) {
	agent, ok := p.agents[agentID]
	if !ok {
		return nil, &domain.ProviderError{Op: "get", StatusCode: 404, Err: errors.New("no such agent")}
	}
	return agent, nil
}

// fakeRepo is an in-memory ReceptionistRepository with failure hooks.
type fakeRepo struct {
	records   map[string]*domain.Receptionist
	nextID    int
	createErr error
	updateErr error
	deleteErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[string]*domain.Receptionist)}
}

func (r *fakeRepo) Create(ctx context.Context, receptionist *domain.Receptionist) (*domain.Receptionist, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	for _, existing := range r.records {
		if existing.Slug == receptionist.Slug {
			return nil, &domain.ConflictError{Resource: "receptionist", Key: receptionist.Slug}
		}
	}
	r.nextID++
	stored := *receptionist
	stored.ID = fmt.Sprintf("r%d", r.nextID)
	r.records[stored.ID] = &stored
	return &stored, nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id string) (*domain.Receptionist, error) {
	rec, ok := r.records[id]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "receptionist", Key: id}
	}
	copied := *rec
	return &copied, nil
}

func (r *fakeRepo) GetBySlug(ctx context.Context, slug string) (*domain.Receptionist, error) {
	for _, rec := range r.records {
		if rec.Slug == slug {
			copied := *rec
			return &copied, nil
		}
	}
	return nil, &domain.NotFoundError{Resource: "receptionist", Key: slug}
}

func (r *fakeRepo) GetActiveBySlug(ctx context.Context, slug string) (*domain.Receptionist, error) {
	for _, rec := range r.records {
		if rec.Slug == slug && rec.IsActive {
			copied := *rec
			return &copied, nil
		}
	}
	return nil, &domain.NotFoundError{Resource: "receptionist", Key: slug}
}

func (r *fakeRepo) GetAll(ctx context.Context) ([]*domain.Receptionist, error) {
	out := make([]*domain.Receptionist, 0, len(r.records))
	for _, rec := range r.records {
		copied := *rec
		out = append(out, &copied)
	}
	return out, nil
}

func (r *fakeRepo) Update(ctx context.Context, id string, upd *domain.ReceptionistUpdate, config *domain.AgentConfigSnapshot) (*domain.Receptionist, error) {
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	rec, ok := r.records[id]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "receptionist", Key: id}
	}
	if upd.Slug != nil {
		rec.Slug = *upd.Slug
	}
	if upd.Name != nil {
		rec.Name = *upd.Name
	}
	if upd.Prompt != nil {
		rec.Prompt = *upd.Prompt
	}
	if upd.FirstMessage != nil {
		rec.FirstMessage = *upd.FirstMessage
	}
	if upd.VoiceID != nil {
		rec.VoiceID = *upd.VoiceID
	}
	if config != nil {
		rec.AgentConfig = config
	}
	copied := *rec
	return &copied, nil
}

func (r *fakeRepo) Delete(ctx context.Context, id string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	if _, ok := r.records[id]; !ok {
		return &domain.NotFoundError{Resource: "receptionist", Key: id}
	}
	delete(r.records, id)
	return nil
}

func (r *fakeRepo) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	for _, rec := range r.records {
		if rec.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func validCreateReq() *domain.CreateReceptionistRequest {
	return &domain.CreateReceptionistRequest{
		Slug:         "john",
		Name:         "John",
		Prompt:       "P",
		FirstMessage: "Hi",
		VoiceID:      "V1",
	}
}

func TestCreateProvisionsRemoteFirst(t *testing.T) {
	provider := newFakeProvider()
	repo := newFakeRepo()
	svc := NewService(provider, repo, nil)

	created, err := svc.Create(context.Background(), &domain.User{ID: "u1"}, validCreateReq())
	require.NoError(t, err)

	assert.Equal(t, "john", created.Slug)
	require.NotNil(t, created.AgentID)
	assert.Equal(t, "a1", *created.AgentID)
	require.NotNil(t, created.CreatedBy)
	assert.Equal(t, "u1", *created.CreatedBy)
	assert.True(t, created.IsActive)

	require.NotNil(t, created.AgentConfig)
	assert.Equal(t, "P", created.AgentConfig.Agent.Prompt.Prompt)
	assert.Equal(t, "Hi", created.AgentConfig.Agent.FirstMessage)
	assert.Equal(t, "V1", created.AgentConfig.TTS.VoiceID)
	assert.Equal(t, elevenlabs.TTSModelID, created.AgentConfig.TTS.ModelID)
	assert.Equal(t, elevenlabs.DefaultLanguage, created.AgentConfig.Agent.Language)
}

func TestCreateValidationNeverReachesCollaborators(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.CreateReceptionistRequest)
	}{
		{"empty slug", func(r *domain.CreateReceptionistRequest) { r.Slug = "" }},
		{"uppercase slug", func(r *domain.CreateReceptionistRequest) { r.Slug = "John" }},
		{"slug with spaces", func(r *domain.CreateReceptionistRequest) { r.Slug = "front desk" }},
		{"empty name", func(r *domain.CreateReceptionistRequest) { r.Name = " " }},
		{"empty prompt", func(r *domain.CreateReceptionistRequest) { r.Prompt = "" }},
		{"empty first message", func(r *domain.CreateReceptionistRequest) { r.FirstMessage = "" }},
		{"empty voice id", func(r *domain.CreateReceptionistRequest) { r.VoiceID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newFakeProvider()
			repo := newFakeRepo()
			svc := NewService(provider, repo, nil)

			req := validCreateReq()
			tt.mutate(req)

			_, err := svc.Create(context.Background(), nil, req)
			var validationErr *domain.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Zero(t, provider.createCalls, "provider must not be called on validation failure")
			assert.Empty(t, repo.records)
		})
	}
}

func TestCreateRemoteFailureLeavesStoreUnchanged(t *testing.T) {
	provider := newFakeProvider()
	provider.createErr = &domain.ProviderError{Op: "create", StatusCode: 500, Err: errors.New("boom")}
	repo := newFakeRepo()
	svc := NewService(provider, repo, nil)

	_, err := svc.Create(context.Background(), nil, validCreateReq())
	var providerErr *domain.ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Empty(t, repo.records, "no local record may exist after remote create failure")
}

func TestCreateCompensatesOnInsertFailure(t *testing.T) {
	provider := newFakeProvider()
	repo := newFakeRepo()
	repo.createErr = &domain.StorageError{Op: "insert", Err: errors.New("db down")}
	svc := NewService(provider, repo, nil)

	_, err := svc.Create(context.Background(), nil, validCreateReq())

	var storageErr *domain.StorageError
	require.ErrorAs(t, err, &storageErr, "the reported error must be the storage error")
	assert.Equal(t, 1, provider.deleteCalls, "compensating delete must run exactly once")
	assert.Empty(t, provider.agents, "the orphaned agent must be cleaned up")
}

func TestCreateCompensationFailureStillReportsStorageError(t *testing.T) {
	provider := newFakeProvider()
	provider.deleteErr = errors.New("provider also down")
	repo := newFakeRepo()
	repo.createErr = &domain.StorageError{Op: "insert", Err: errors.New("db down")}
	svc := NewService(provider, repo, nil)

	_, err := svc.Create(context.Background(), nil, validCreateReq())

	var failure *CreateFailure
	require.ErrorAs(t, err, &failure)
	assert.Error(t, failure.Compensation)

	// The primary error stays the storage error even though compensation failed.
	var storageErr *domain.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, 1, provider.deleteCalls)
}

func TestCreateDuplicateSlugFailsBeforeProvisioning(t *testing.T) {
	provider := newFakeProvider()
	repo := newFakeRepo()
	svc := NewService(provider, repo, nil)

	_, err := svc.Create(context.Background(), nil, validCreateReq())
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), nil, validCreateReq())
	var conflictErr *domain.ConflictError
	require.ErrorAs(t, err, &conflictErr)

	assert.Len(t, repo.records, 1, "the first record must survive")
	assert.Equal(t, 1, provider.createCalls, "a known-duplicate slug must not provision an agent")
}

func TestCreateSlugRaceCleansUpDanglingAgent(t *testing.T) {
	// The pre-check passes (no stored record) but the insert loses the race
	// on the unique index; the freshly provisioned agent must be torn down.
	provider := newFakeProvider()
	repo := newFakeRepo()
	repo.createErr = &domain.ConflictError{Resource: "receptionist", Key: "john"}
	svc := NewService(provider, repo, nil)

	_, err := svc.Create(context.Background(), nil, validCreateReq())
	var conflictErr *domain.ConflictError
	require.ErrorAs(t, err, &conflictErr)

	assert.Equal(t, 1, provider.createCalls)
	assert.Equal(t, 1, provider.deleteCalls, "the losing attempt's agent must not dangle")
	assert.Empty(t, provider.agents)
}

func TestUpdateMergesConfigOverExisting(t *testing.T) {
	provider := newFakeProvider()
	repo := newFakeRepo()
	svc := NewService(provider, repo, nil)

	created, err := svc.Create(context.Background(), nil, validCreateReq())
	require.NoError(t, err)

	voice := "V2"
	updated, err := svc.Update(context.Background(), created.ID, &domain.ReceptionistUpdate{VoiceID: &voice})
	require.NoError(t, err)

	require.NotNil(t, provider.lastUpdate.ConversationConfig)
	merged := provider.lastUpdate.ConversationConfig
	assert.Equal(t, "P", merged.Agent.Prompt.Prompt)
	assert.Equal(t, "Hi", merged.Agent.FirstMessage)
	assert.Equal(t, "V2", merged.TTS.VoiceID)

	assert.Equal(t, "V2", updated.VoiceID)
	assert.Equal(t, "P", updated.Prompt)
	assert.Equal(t, "Hi", updated.FirstMessage)
	assert.Equal(t, "john", updated.Slug)
}

func TestUpdateRemoteFailureLeavesRecordUnchanged(t *testing.T) {
	provider := newFakeProvider()
	repo := newFakeRepo()
	svc := NewService(provider, repo, nil)

	created, err := svc.Create(context.Background(), nil, validCreateReq())
	require.NoError(t, err)
	before, err := repo.GetByID(context.Background(), created.ID)
	require.NoError(t, err)

	provider.updateErr = &domain.ProviderError{Op: "update", StatusCode: 500, Err: errors.New("boom")}

	prompt := "new prompt"
	_, err = svc.Update(context.Background(), created.ID, &domain.ReceptionistUpdate{Prompt: &prompt})
	var providerErr *domain.ProviderError
	require.ErrorAs(t, err, &providerErr)

	after, err := repo.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after, "local record must be unchanged after a remote update failure")
}

func TestUpdateWithoutAgentIDFails(t *testing.T) {
	provider := newFakeProvider()
	repo := newFakeRepo()
	repo.records["r1"] = &domain.Receptionist{ID: "r1", Slug: "john", Name: "John", IsActive: true}
	svc := NewService(provider, repo, nil)

	name := "Johnny"
	_, err := svc.Update(context.Background(), "r1", &domain.ReceptionistUpdate{Name: &name})
	require.ErrorIs(t, err, domain.ErrAgentNotProvisioned)
	assert.Zero(t, provider.updateCalls)
}

func TestUpdateNameOnlyPushesRemoteUpdate(t *testing.T) {
	provider := newFakeProvider()
	repo := newFakeRepo()
	svc := NewService(provider, repo, nil)

	created, err := svc.Create(context.Background(), nil, validCreateReq())
	require.NoError(t, err)

	name := "Johnny"
	updated, err := svc.Update(context.Background(), created.ID, &domain.ReceptionistUpdate{Name: &name})
	require.NoError(t, err)

	assert.Equal(t, 1, provider.updateCalls, "a name change must reach the remote agent")
	assert.Equal(t, "Johnny", provider.lastUpdate.Name)
	assert.Equal(t, "Johnny", updated.Name)
}

func TestUpdateSlugOnlySkipsRemote(t *testing.T) {
	provider := newFakeProvider()
	repo := newFakeRepo()
	svc := NewService(provider, repo, nil)

	created, err := svc.Create(context.Background(), nil, validCreateReq())
	require.NoError(t, err)

	slug := "front-desk"
	updated, err := svc.Update(context.Background(), created.ID, &domain.ReceptionistUpdate{Slug: &slug})
	require.NoError(t, err)

	assert.Zero(t, provider.updateCalls, "slug is local-only state")
	assert.Equal(t, "front-desk", updated.Slug)
}

func TestDeleteSwallowsRemoteFailure(t *testing.T) {
	provider := newFakeProvider()
	repo := newFakeRepo()
	svc := NewService(provider, repo, nil)

	created, err := svc.Create(context.Background(), nil, validCreateReq())
	require.NoError(t, err)

	provider.deleteErr = &domain.ProviderError{Op: "delete", StatusCode: 404, Err: errors.New("gone")}

	result, err := svc.Delete(context.Background(), created.ID)
	require.NoError(t, err, "remote deletion failure must not block local deletion")
	assert.Error(t, result.RemoteCleanup)
	assert.Empty(t, repo.records)
}

func TestDeleteWithoutAgentIDSkipsProvider(t *testing.T) {
	provider := newFakeProvider()
	repo := newFakeRepo()
	repo.records["r1"] = &domain.Receptionist{ID: "r1", Slug: "john", Name: "John"}
	svc := NewService(provider, repo, nil)

	result, err := svc.Delete(context.Background(), "r1")
	require.NoError(t, err)
	assert.Nil(t, result.RemoteCleanup)
	assert.Zero(t, provider.deleteCalls)
	assert.Empty(t, repo.records)
}

func TestDeleteStorageFailurePropagates(t *testing.T) {
	provider := newFakeProvider()
	repo := newFakeRepo()
	svc := NewService(provider, repo, nil)

	created, err := svc.Create(context.Background(), nil, validCreateReq())
	require.NoError(t, err)

	repo.deleteErr = &domain.StorageError{Op: "delete", Err: errors.New("db down")}

	_, err = svc.Delete(context.Background(), created.ID)
	var storageErr *domain.StorageError
	require.ErrorAs(t, err, &storageErr)
}

func TestMergeConfig(t *testing.T) {
	existing := &domain.Receptionist{
		Prompt:       "P",
		FirstMessage: "Hi",
		VoiceID:      "V1",
	}

	voice := "V2"
	merged := MergeConfig(existing, &domain.ReceptionistUpdate{VoiceID: &voice})
	assert.Equal(t, "P", merged.Agent.Prompt.Prompt)
	assert.Equal(t, "Hi", merged.Agent.FirstMessage)
	assert.Equal(t, "V2", merged.TTS.VoiceID)

	prompt := "P2"
	first := "Hello"
	merged = MergeConfig(existing, &domain.ReceptionistUpdate{Prompt: &prompt, FirstMessage: &first})
	assert.Equal(t, "P2", merged.Agent.Prompt.Prompt)
	assert.Equal(t, "Hello", merged.Agent.FirstMessage)
	assert.Equal(t, "V1", merged.TTS.VoiceID)

	merged = MergeConfig(existing, &domain.ReceptionistUpdate{})
	assert.Equal(t, elevenlabs.BuildAgentConfig("P", "Hi", "V1"), merged)
}
