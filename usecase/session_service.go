package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danuharapan/senandika/server/domain/entities"
	"github.com/danuharapan/senandika/server/domain/repositories"
)

// DefaultThinkDelay is the simulated latency before the agent reply appears.
const DefaultThinkDelay = 1 * time.Second

// ErrEmptyMessage rejects blank user messages without appending any turn.
var ErrEmptyMessage = errors.New("message text is required")

// TurnListener observes every turn appended to a device transcript.
type TurnListener func(deviceID string, turn entities.ConversationTurn)

type pendingReply struct {
	message string
	binding entities.PersonaBinding
	role    entities.Role
}

// deviceSession holds the transient per-device conversation state: the
// persona binding and the append-only transcript. Nothing here is persisted.
type deviceSession struct {
	binding entities.PersonaBinding
	turns   []entities.ConversationTurn

	queue  chan pendingReply
	done   chan struct{}
	cancel context.CancelFunc
	ctx    context.Context
	closed bool
}

// SessionService binds personas to devices and runs the turn-taking
// dialogue. The user turn is appended synchronously; exactly one agent reply
// follows asynchronously per accepted turn, in submission order (a single
// worker per device serializes them).
type SessionService struct {
	registry   repositories.DeviceRegistry
	responder  repositories.Responder
	thinkDelay time.Duration
	logger     *zap.Logger

	mu        sync.Mutex
	sessions  map[string]*deviceSession
	listeners []TurnListener
}

// NewSessionService creates the persona and session engine.
func NewSessionService(registry repositories.DeviceRegistry, responder repositories.Responder, logger *zap.Logger) *SessionService {
	return &SessionService{
		registry:   registry,
		responder:  responder,
		thinkDelay: DefaultThinkDelay,
		logger:     logger,
		sessions:   make(map[string]*deviceSession),
	}
}

// SetThinkDelay overrides the simulated reply latency.
func (s *SessionService) SetThinkDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thinkDelay = d
}

// OnTurn registers a listener for appended turns. Used by the websocket hub
// to push the transcript to app clients.
func (s *SessionService) OnTurn(listener TurnListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}

// Persona returns the device's current binding, creating the session with
// defaults on first contact.
func (s *SessionService) Persona(deviceID string) (entities.PersonaBinding, error) {
	s.mu.Lock()
	ds, err := s.sessionForLocked(deviceID)
	if err != nil {
		s.mu.Unlock()
		return entities.PersonaBinding{}, err
	}
	binding := ds.binding
	opened := s.pendingOpeningLocked(deviceID, ds)
	s.mu.Unlock()

	s.notify(deviceID, opened)
	return binding, nil
}

// SelectRole switches the conversational role. Prior turns are never
// cleared; the new role's opening line is appended and subsequent replies
// use the new persona.
func (s *SessionService) SelectRole(deviceID, roleID string) error {
	role, ok := entities.RoleByID(roleID)
	if !ok {
		return fmt.Errorf("unknown role: %s", roleID)
	}

	s.mu.Lock()
	ds, err := s.sessionForLocked(deviceID)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	var appended []entities.ConversationTurn
	if ds.binding.RoleID != role.ID {
		ds.binding.RoleID = role.ID
		appended = append(appended, s.appendTurnLocked(ds, entities.TurnSenderAgent, s.responder.Opening(role)))
	}
	appended = append(s.pendingOpeningLocked(deviceID, ds), appended...)
	s.mu.Unlock()

	s.notify(deviceID, appended)
	return nil
}

// SelectModel switches the bound language model.
func (s *SessionService) SelectModel(deviceID, modelID string) error {
	if _, ok := entities.ModelByID(modelID); !ok {
		return fmt.Errorf("unknown model: %s", modelID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ds, err := s.sessionForLocked(deviceID)
	if err != nil {
		return err
	}
	ds.binding.ModelID = modelID
	return nil
}

// SelectVoice switches the bound voice.
func (s *SessionService) SelectVoice(deviceID, voiceID string) error {
	if _, ok := entities.VoiceByID(voiceID); !ok {
		return fmt.Errorf("unknown voice: %s", voiceID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ds, err := s.sessionForLocked(deviceID)
	if err != nil {
		return err
	}
	ds.binding.VoiceID = voiceID
	return nil
}

// SendMessage appends the user turn synchronously and schedules exactly one
// agent reply after the thinking delay. Blank messages are rejected without
// mutating the transcript.
func (s *SessionService) SendMessage(deviceID, text string) (entities.ConversationTurn, error) {
	if strings.TrimSpace(text) == "" {
		return entities.ConversationTurn{}, ErrEmptyMessage
	}

	s.mu.Lock()
	ds, err := s.sessionForLocked(deviceID)
	if err != nil {
		s.mu.Unlock()
		return entities.ConversationTurn{}, err
	}

	appended := s.pendingOpeningLocked(deviceID, ds)
	turn := s.appendTurnLocked(ds, entities.TurnSenderUser, text)
	appended = append(appended, turn)

	role, _ := entities.RoleByID(ds.binding.RoleID)
	item := pendingReply{message: text, binding: ds.binding, role: role}
	queue := ds.queue
	s.mu.Unlock()

	s.notify(deviceID, appended)
	queue <- item
	return turn, nil
}

// Transcript returns a copy of the device's turn sequence.
func (s *SessionService) Transcript(deviceID string) ([]entities.ConversationTurn, error) {
	s.mu.Lock()
	ds, err := s.sessionForLocked(deviceID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	opened := s.pendingOpeningLocked(deviceID, ds)
	turns := append([]entities.ConversationTurn(nil), ds.turns...)
	s.mu.Unlock()

	s.notify(deviceID, opened)
	return turns, nil
}

// Close discards the device session and any in-flight reply work, e.g. when
// the user navigates away or the device is unbound. A late reply is dropped
// rather than appended into a transcript nobody is viewing.
func (s *SessionService) Close(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds, ok := s.sessions[deviceID]
	if !ok {
		return
	}
	ds.closed = true
	ds.cancel()
	close(ds.done)
	delete(s.sessions, deviceID)
}

// sessionForLocked returns the device session, creating it with the default
// persona on first contact. Caller holds s.mu.
func (s *SessionService) sessionForLocked(deviceID string) (*deviceSession, error) {
	if ds, ok := s.sessions[deviceID]; ok {
		return ds, nil
	}

	if _, err := s.registry.Get(deviceID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	ds := &deviceSession{
		binding: entities.DefaultPersona(deviceID),
		queue:   make(chan pendingReply, 64),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.sessions[deviceID] = ds
	go s.replyWorker(deviceID, ds)
	return ds, nil
}

// pendingOpeningLocked appends the bound role's opening line to an empty
// transcript. Caller holds s.mu; returned turns still need notifying.
func (s *SessionService) pendingOpeningLocked(deviceID string, ds *deviceSession) []entities.ConversationTurn {
	if len(ds.turns) > 0 {
		return nil
	}
	role, ok := entities.RoleByID(ds.binding.RoleID)
	if !ok {
		return nil
	}
	return []entities.ConversationTurn{s.appendTurnLocked(ds, entities.TurnSenderAgent, s.responder.Opening(role))}
}

func (s *SessionService) appendTurnLocked(ds *deviceSession, sender entities.TurnSender, text string) entities.ConversationTurn {
	turn := entities.ConversationTurn{
		ID:     uuid.New().String(),
		Sender: sender,
		Text:   text,
		SentAt: time.Now(),
	}
	ds.turns = append(ds.turns, turn)
	return turn
}

func (s *SessionService) notify(deviceID string, turns []entities.ConversationTurn) {
	if len(turns) == 0 {
		return
	}
	s.mu.Lock()
	listeners := append([]TurnListener(nil), s.listeners...)
	s.mu.Unlock()

	for _, turn := range turns {
		for _, listener := range listeners {
			listener(deviceID, turn)
		}
	}
}

// replyWorker serializes agent replies for one device: each accepted user
// turn produces exactly one reply, in submission order.
func (s *SessionService) replyWorker(deviceID string, ds *deviceSession) {
	for {
		select {
		case <-ds.done:
			return
		case item := <-ds.queue:
			s.mu.Lock()
			delay := s.thinkDelay
			s.mu.Unlock()

			select {
			case <-time.After(delay):
			case <-ds.done:
				return
			}

			text, err := s.responder.Reply(ds.ctx, item.binding, item.role, item.message)
			if err != nil {
				if ds.ctx.Err() != nil {
					return
				}
				s.logger.Warn("Responder failed, using role fallback",
					zap.String("device_id", deviceID),
					zap.Error(err))
				text = item.role.Reply
			}

			s.mu.Lock()
			if ds.closed {
				s.mu.Unlock()
				return
			}
			turn := s.appendTurnLocked(ds, entities.TurnSenderAgent, text)
			s.mu.Unlock()

			s.notify(deviceID, []entities.ConversationTurn{turn})
		}
	}
}
