package util

import (
	"errors"
	"fmt"
	"sync"

	"github.com/elijahnyp/thermostat_controller/state"
)

var ErrUnknownRoom = errors.New("unknown room")

type Model struct {
	Rooms []RoomConfig `mapstructure:"rooms"`

	status     *ModelStatus
	statusOnce sync.Once
}

type RoomConfig struct {
	Name          string `mapstructure:"name" json:"name"`
	Command_topic string `mapstructure:"command_topic" json:"command_topic"`
	State_topic   string `mapstructure:"state_topic" json:"state_topic"`
	Temperature   int    `mapstructure:"temperature" json:"temperature,omitempty"`
	Mode          string `mapstructure:"mode" json:"mode,omitempty"`
}

// RoomSnapshot is the published view of a room's thermostat.
type RoomSnapshot struct {
	Room        string     `json:"room"`
	Temperature int        `json:"temperature"`
	Mode        state.Mode `json:"mode"`
}

// ModelStatus holds the live rooms. state.Room is not safe for concurrent
// use, so every access goes through mu.
type ModelStatus struct {
	rooms map[string]*state.Room
	mu    sync.RWMutex
}

func newModelStatus() *ModelStatus {
	return &ModelStatus{rooms: make(map[string]*state.Room)}
}

func snapshotOf(r *state.Room) RoomSnapshot {
	return RoomSnapshot{
		Room:        r.Name(),
		Temperature: r.Thermostat().Temperature(),
		Mode:        r.Thermostat().Mode(),
	}
}

func applyInitial(r *state.Room, rc RoomConfig) {
	if rc.Temperature != 0 {
		if err := r.Thermostat().SetTemperature(rc.Temperature); err != nil {
			Logger.Warn().Err(err).Str("room", rc.Name).Msg("ignoring configured temperature")
		}
	}
	if rc.Mode != "" {
		m, err := state.ParseMode(rc.Mode)
		switch {
		case err != nil:
			Logger.Warn().Err(err).Str("room", rc.Name).Msg("ignoring configured mode")
		case m == state.ModeHeat:
			r.Thermostat().TurnOn()
		default:
			r.Thermostat().TurnOff()
		}
	}
}

// reconcile makes the live rooms match rooms. Rooms that already exist keep
// their current thermostat state. Callers hold s.mu.
func (s *ModelStatus) reconcile(rooms []RoomConfig) {
	keep := make(map[string]bool, len(rooms))
	for _, rc := range rooms {
		keep[rc.Name] = true
		if _, ok := s.rooms[rc.Name]; ok {
			continue
		}
		r := state.NewRoom(rc.Name)
		applyInitial(r, rc)
		s.rooms[rc.Name] = r
		Logger.Debug().Str("room", rc.Name).Msg("room added to model")
	}
	for name := range s.rooms {
		if !keep[name] {
			delete(s.rooms, name)
			Logger.Debug().Str("room", name).Msg("room removed from model")
		}
	}
}

func (m *Model) ModelStatus() *ModelStatus {
	m.statusOnce.Do(func() {
		m.status = newModelStatus()
	})
	return m.status
}

func (m *Model) BuildModel() error {
	var rooms struct {
		Rooms []RoomConfig `mapstructure:"rooms"`
	}
	if err := Config.UnmarshalKey("model", &rooms); err != nil {
		Logger.Error().Err(err).Msg("error unmarshaling model")
		return fmt.Errorf("unmarshaling model: %w", err)
	}
	seen := make(map[string]bool, len(rooms.Rooms))
	for i, rc := range rooms.Rooms {
		if rc.Name == "" {
			return fmt.Errorf("room %d has no name", i)
		}
		if seen[rc.Name] {
			return fmt.Errorf("room %s configured twice", rc.Name)
		}
		seen[rc.Name] = true
		if rooms.Rooms[i].Command_topic == "" {
			rooms.Rooms[i].Command_topic = fmt.Sprintf("%s/%s/set", TopicPrefix(), rc.Name)
		}
		if rooms.Rooms[i].State_topic == "" {
			rooms.Rooms[i].State_topic = fmt.Sprintf("%s/%s/state", TopicPrefix(), rc.Name)
		}
	}
	s := m.ModelStatus()
	s.mu.Lock()
	defer s.mu.Unlock()
	m.Rooms = rooms.Rooms
	s.reconcile(m.Rooms)
	return nil
}

func (m *Model) FindRoomByTopic(topic string) string {
	s := m.ModelStatus()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, entry := range m.Rooms {
		if entry.Command_topic == topic {
			return entry.Name
		}
	}
	return ""
}

func (m *Model) FindStateTopicByRoom(room string) string {
	s := m.ModelStatus()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return m.stateTopicLocked(room)
}

// RoomConfigs returns a copy of the configured rooms.
func (m *Model) RoomConfigs() []RoomConfig {
	s := m.ModelStatus()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]RoomConfig(nil), m.Rooms...)
}

func (m *Model) SubscribeTopics() []string {
	s := m.ModelStatus()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var topics []string
	for _, room := range m.Rooms {
		topics = append(topics, room.Command_topic)
	}
	return topics
}

func (m *Model) Snapshot(room string) (RoomSnapshot, bool) {
	s := m.ModelStatus()
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[room]
	if !ok {
		return RoomSnapshot{}, false
	}
	return snapshotOf(r), true
}

// Snapshots returns every room in configuration order.
func (m *Model) Snapshots() []RoomSnapshot {
	s := m.ModelStatus()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RoomSnapshot, 0, len(m.Rooms))
	for _, rc := range m.Rooms {
		if r, ok := s.rooms[rc.Name]; ok {
			out = append(out, snapshotOf(r))
		}
	}
	return out
}

// Announcer receives a room's snapshot and state topic while the model
// lock is held. It must not call back into the Model.
type Announcer func(snap RoomSnapshot, stateTopic string)

func (m *Model) stateTopicLocked(room string) string {
	for _, entry := range m.Rooms {
		if entry.Name == room {
			return entry.State_topic
		}
	}
	return ""
}

// Apply runs cmd against the room's thermostat. The returned snapshot
// reflects the room after the call whether or not cmd succeeded.
func (m *Model) Apply(room string, cmd Command) (RoomSnapshot, error) {
	return m.ApplyAndAnnounce(room, cmd, nil)
}

// ApplyAndAnnounce is Apply followed by announce under the same lock, so
// announcements for one room happen in the order the commands were applied.
func (m *Model) ApplyAndAnnounce(room string, cmd Command, announce Announcer) (RoomSnapshot, error) {
	s := m.ModelStatus()
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[room]
	if !ok {
		return RoomSnapshot{}, fmt.Errorf("%w: %s", ErrUnknownRoom, room)
	}
	err := cmd.ApplyTo(r.Thermostat())
	snap := snapshotOf(r)
	if announce != nil {
		announce(snap, m.stateTopicLocked(room))
	}
	return snap, err
}

// Announce passes the room's current snapshot to announce without letting
// a command run in between. It reports false for unknown rooms.
func (m *Model) Announce(room string, announce Announcer) bool {
	s := m.ModelStatus()
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[room]
	if !ok {
		return false
	}
	announce(snapshotOf(r), m.stateTopicLocked(room))
	return true
}
