package registry

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"agentvault/core/events"
	"agentvault/core/types"
	"agentvault/crypto"
)

const EventTypeAgentRegistered = "registry.agent.registered"

var (
	// ErrAgentNotFound is returned when an agent id has never been minted.
	ErrAgentNotFound = errors.New("agent registry: agent does not exist")
	// ErrInvalidOwner rejects registrations with an unset owner address.
	ErrInvalidOwner = errors.New("agent registry: owner address required")

	errNilState = errors.New("agent registry: state not configured")
)

// AgentRecord is the identity record minted for each registered agent. It
// links an opaque agent id to its owner and metadata; vault accounting never
// depends on its contents.
type AgentRecord struct {
	ID           uint64
	Owner        crypto.Address
	MetadataURI  string
	LinkedWallet crypto.Address
	CreatedAt    int64
}

// Resolver is the read-only slice of the registry that strategy contracts
// consume to validate their agent linkage.
type Resolver interface {
	Resolve(id uint64) (*AgentRecord, error)
}

type registryState interface {
	AgentGet(id uint64) (*AgentRecord, error)
	AgentPut(record *AgentRecord) error
	AgentNextID() (uint64, error)
}

type registryEvent struct {
	evt *types.Event
}

func (e registryEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e registryEvent) Event() *types.Event { return e.evt }

// Registry mints and resolves agent identity records.
type Registry struct {
	state   registryState
	emitter events.Emitter
	nowFn   func() int64
}

// NewRegistry creates a registry with a no-op emitter. Callers can override
// the emitter via SetEmitter.
func NewRegistry() *Registry {
	return &Registry{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the registry.
func (r *Registry) SetState(state registryState) { r.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetNowFunc overrides the time source, primarily for deterministic tests.
func (r *Registry) SetNowFunc(now func() int64) {
	if now == nil {
		r.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	r.nowFn = now
}

// Register mints a new agent record owned by the provided address and returns
// it. Ids are sequential and never reused.
func (r *Registry) Register(owner crypto.Address, metadataURI string, linkedWallet crypto.Address) (*AgentRecord, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	if owner.IsZero() {
		return nil, ErrInvalidOwner
	}
	id, err := r.state.AgentNextID()
	if err != nil {
		return nil, err
	}
	record := &AgentRecord{
		ID:           id,
		Owner:        owner,
		MetadataURI:  strings.TrimSpace(metadataURI),
		LinkedWallet: linkedWallet,
		CreatedAt:    r.now(),
	}
	if err := r.state.AgentPut(record); err != nil {
		return nil, err
	}
	r.emit(&types.Event{Type: EventTypeAgentRegistered, Attributes: map[string]string{
		"agentId": strconv.FormatUint(record.ID, 10),
		"owner":   record.Owner.String(),
	}})
	return record, nil
}

// Resolve returns the record for the agent id or ErrAgentNotFound.
func (r *Registry) Resolve(id uint64) (*AgentRecord, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	record, err := r.state.AgentGet(id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrAgentNotFound
	}
	return record, nil
}

func (r *Registry) emit(event *types.Event) {
	if r == nil || r.emitter == nil || event == nil {
		return
	}
	r.emitter.Emit(registryEvent{evt: event})
}

func (r *Registry) now() int64 {
	if r == nil || r.nowFn == nil {
		return time.Now().Unix()
	}
	return r.nowFn()
}
